package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/onnwee/agenda/internal/tracing"
)

// DefaultMaxPageBytes bounds the HTML read from a fetched page.
const DefaultMaxPageBytes = 2 << 20

// Fetcher downloads a page and converts it to markdown.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewFetcher creates a Fetcher. A nil client uses a 15 second timeout.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, userAgent: userAgent, maxBytes: DefaultMaxPageBytes}
}

// Fetch returns the page at url as markdown.
func (f *Fetcher) Fetch(ctx context.Context, url string) (markdown string, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "websearch.fetch")
	defer func() { endSpan(err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create fetch request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return strings.TrimSpace(string(raw)), nil
	}

	markdown, err = htmltomarkdown.ConvertString(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to convert page: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
