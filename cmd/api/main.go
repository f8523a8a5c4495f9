// Package main is the entry point for the agenda API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/agenda/internal/api"
	"github.com/onnwee/agenda/internal/app"
	"github.com/onnwee/agenda/internal/config"
	"github.com/onnwee/agenda/internal/health"
	"github.com/onnwee/agenda/internal/middleware"
)

const (
	shutdownTimeout     = 10 * time.Second
	rateLimitCleanupInt = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Agenda API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, errs := config.Load(configPath)
	logger := middleware.NewLogger(envOf(cfg))
	slog.SetDefault(logger)
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		return 1
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("failed to close resources", "error", err)
		}
	}()

	store := rateLimitStore(ctx, a)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newHandler(a, store),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			return 1
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return 1
	}

	logger.Info("server stopped")
	return 0
}

// newHandler builds the routes and middleware chain of the server.
func newHandler(a *app.App, limiter middleware.RateLimitStore) http.Handler {
	cfg := a.Config

	healthCfg := api.HealthHandlersConfig{Timeout: 5 * time.Second, Logger: a.Logger}
	if a.DB != nil {
		healthCfg.DBChecker = health.NewDBChecker(a.DB)
	}
	if a.Redis != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(a.Redis)
	}
	healthHandlers := api.NewHealthHandlers(healthCfg)
	chatHandlers := api.NewChatHandlers(a.Resolver, a.Logger)

	limit := middleware.DefaultChatLimit()
	if cfg.RateLimitPerMinute > 0 {
		limit.RequestsPerWindow = cfg.RateLimitPerMinute
	}
	chat := middleware.RateLimiter(limiter, limit, middleware.IPKeyFunc(), a.HTTPMetrics)(
		http.HandlerFunc(chatHandlers.Chat))

	mux := http.NewServeMux()
	mux.Handle("/api/chat", chat)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
		api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
	})

	// Tracing -> RequestID -> Logging -> HTTPMetrics -> CORS -> mux
	var handler http.Handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxAge:         600,
	})(mux)
	handler = middleware.HTTPMetrics(a.HTTPMetrics)(handler)
	handler = middleware.Logging(a.Logger)(handler)
	handler = middleware.RequestID(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(app.ServiceName)(handler)
	}
	return handler
}

// rateLimitStore shares limits through Redis when it is configured. The
// in-memory store is swept until ctx is done.
func rateLimitStore(ctx context.Context, a *app.App) middleware.RateLimitStore {
	if a.Redis != nil {
		return middleware.NewRedisRateLimitStore(a.Redis).WithMetrics(a.HTTPMetrics)
	}
	store := middleware.NewInMemoryRateLimitStore()
	go func() {
		ticker := time.NewTicker(rateLimitCleanupInt)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.Cleanup()
			}
		}
	}()
	return store
}

func envOf(cfg *config.Config) string {
	if cfg == nil || cfg.Env == "" {
		return "development"
	}
	return cfg.Env
}
