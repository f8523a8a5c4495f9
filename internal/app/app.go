// Package app builds the agenda components from configuration. Providers
// whose credentials are missing are left out and the capability that needs
// them is disabled.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/chat"
	"github.com/onnwee/agenda/internal/config"
	"github.com/onnwee/agenda/internal/db"
	"github.com/onnwee/agenda/internal/embedding"
	"github.com/onnwee/agenda/internal/enrichment"
	"github.com/onnwee/agenda/internal/extraction"
	"github.com/onnwee/agenda/internal/geocode"
	"github.com/onnwee/agenda/internal/jobs"
	"github.com/onnwee/agenda/internal/middleware"
	"github.com/onnwee/agenda/internal/ranking"
	"github.com/onnwee/agenda/internal/retrieval"
	"github.com/onnwee/agenda/internal/tracing"
	"github.com/onnwee/agenda/internal/websearch"
)

// ServiceName identifies the service in traces.
const ServiceName = "agenda"

// App holds the wired components shared by cmd/api and cmd/backfill.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	DB     *sql.DB       // nil with the memory store
	Redis  *redis.Client // nil without REDIS_URL
	Events catalog.EventStore
	URLs   catalog.URLStore

	Pipeline *enrichment.Pipeline
	Resolver *chat.Resolver
	Tracing  *tracing.Provider

	HTTPMetrics *middleware.Metrics
	JobMetrics  *jobs.Metrics
}

// New connects the stores and builds every component. The caller must Close
// the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:      cfg,
		Logger:      logger,
		Registry:    prometheus.NewRegistry(),
		HTTPMetrics: middleware.NewMetrics(),
		JobMetrics:  jobs.NewMetrics(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  ServiceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.Tracing = tp

	if err := a.openStores(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
	}

	retrievalMetrics := retrieval.NewMetrics()
	enrichmentMetrics := enrichment.NewMetrics()
	chatMetrics := chat.NewMetrics()
	for _, reg := range []interface {
		Register(prometheus.Registerer) error
	}{a.HTTPMetrics, a.JobMetrics, retrievalMetrics, enrichmentMetrics, chatMetrics} {
		if err := reg.Register(a.Registry); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	embedder, queryEmbedder := a.embedders()
	a.Pipeline = enrichment.NewPipeline(enrichment.Dependencies{
		Events:    a.Events,
		URLs:      a.URLs,
		Search:    a.search(),
		Fetcher:   websearch.NewFetcher(nil, cfg.GeocodeUserAgent),
		Extractor: a.extractor(),
		Embedder:  embedder,
		Locator:   a.locator(),
		Archiver:  a.archiver(),
		Metrics:   enrichmentMetrics,
		Logger:    logger.With(slog.String("component", "enrichment")),
	}, enrichment.Config{
		Qualifier: cfg.SearchLocaleQualifier,
		City:      cfg.PrimaryCity,
	})

	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("using default ranking weights", slog.String("error", err.Error()))
	}
	retriever := retrieval.NewRetriever(a.Events,
		retrieval.WithWeights(weights),
		retrieval.WithMetrics(retrievalMetrics),
		retrieval.WithLogger(logger.With(slog.String("component", "retrieval"))))

	opts := []chat.Option{
		chat.WithEnricher(a.Pipeline),
		chat.WithMetrics(chatMetrics),
		chat.WithLogger(logger.With(slog.String("component", "chat"))),
	}
	if queryEmbedder != nil {
		opts = append(opts, chat.WithEmbedder(queryEmbedder))
	}
	a.Resolver = chat.NewResolver(retriever, opts...)

	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	if a.Config.Store == config.StoreMemory {
		a.Logger.Warn("using in-memory catalog; events are lost on restart")
		a.Events = catalog.NewInMemoryEventStore()
		a.URLs = catalog.NewInMemoryURLStore()
		return nil
	}
	conn, err := db.Open(ctx, a.Config.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return err
	}
	a.DB = conn
	a.Events = catalog.NewPostgresEventStore(conn, a.Logger.With(slog.String("component", "catalog")))
	a.URLs = catalog.NewPostgresURLStore(conn)
	return nil
}

// embedders returns the provider itself, used by backfills where a failing
// event is skipped until the next pass, and a retrying wrapper for query
// embedding. Both are nil when embeddings are not configured.
func (a *App) embedders() (embedding.Embedder, embedding.Embedder) {
	e, err := embedding.New(embedding.Config{
		Provider:   a.Config.EmbeddingProvider,
		Model:      a.Config.EmbeddingModel,
		APIKey:     a.Config.OpenAIAPIKey,
		BaseURL:    a.Config.OpenAIBaseURL,
		OllamaURL:  a.Config.OllamaURL,
		Dimensions: embedding.Dimensions,
	})
	if err != nil {
		a.disabled("embeddings", err)
		return nil, nil
	}
	return e, embedding.WithRetry(e, 3, time.Second)
}

func (a *App) extractor() extraction.Extractor {
	if a.Config.OpenAIAPIKey == "" {
		a.disabled("extraction", extraction.ErrNotConfigured)
		return nil
	}
	return extraction.NewOpenAI(a.Config.OpenAIAPIKey, a.Config.OpenAIBaseURL, a.Config.ExtractionModel)
}

func (a *App) search() websearch.Provider {
	if a.Config.TavilyAPIKey == "" {
		a.disabled("web search", websearch.ErrNotConfigured)
		return nil
	}
	return websearch.NewTavily(a.Config.TavilyAPIKey)
}

func (a *App) locator() enrichment.Locator {
	var limiter geocode.Limiter
	if a.Redis != nil {
		limiter = geocode.NewRedisLimiter(a.Redis, geocode.DefaultRedisKey, geocode.MinInterval)
	} else {
		a.Logger.Warn("geocode rate limit is per process without REDIS_URL; run api and backfill against a shared Redis to keep one request per second")
		limiter = geocode.NewIntervalLimiter(geocode.MinInterval)
	}
	nominatim := geocode.NewNominatim(a.Config.NominatimURL, a.Config.GeocodeUserAgent, nil)
	return geocode.NewResolver(nominatim, limiter, a.Config.PrimaryCity,
		a.Logger.With(slog.String("component", "geocode")))
}

func (a *App) archiver() enrichment.Archiver {
	if !a.Config.ArchiveEnabled() {
		return nil
	}
	archiver, err := enrichment.NewS3Archiver(enrichment.ArchiveConfig{
		Bucket:          a.Config.ArchiveBucket,
		Endpoint:        a.Config.ArchiveEndpoint,
		AccessKeyID:     a.Config.ArchiveAccessKeyID,
		SecretAccessKey: a.Config.ArchiveSecretAccessKey,
	})
	if err != nil {
		a.disabled("context archive", err)
		return nil
	}
	return archiver
}

func (a *App) disabled(capability string, err error) {
	a.Logger.Warn(capability+" disabled", slog.String("error", err.Error()))
}

// Close flushes pending spans and releases the database and Redis
// connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Tracing != nil {
		errs = append(errs, a.Tracing.Shutdown(ctx))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
