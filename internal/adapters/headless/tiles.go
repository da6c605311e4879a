package headless

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/valyala/fasthttp"

	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
)

// TileFetcher downloads one base map tile.
type TileFetcher interface {
	FetchTile(ctx context.Context, url string) error
}

// TileURL expands an XYZ template ({z}, {x}, {y}) for t.
func TileURL(template string, t maptile.Tile) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
	).Replace(template)
}

// HTTPTileFetcher fetches tiles over HTTP. Tiles are neither cached nor retried.
type HTTPTileFetcher struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewHTTPTileFetcher creates a fetcher with a per-tile timeout.
func NewHTTPTileFetcher(userAgent string, timeout time.Duration) *HTTPTileFetcher {
	return &HTTPTileFetcher{
		client: &fasthttp.Client{
			Name:                userAgent,
			MaxConnsPerHost:     8,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
	}
}

// FetchTile downloads url and discards the body.
func (f *HTTPTileFetcher) FetchTile(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	if err := f.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode(), url)
	}
	return nil
}

// prefetch fetches tiles with bounded concurrency. Failures only degrade the
// picture: they are logged at debug level and counted.
func prefetch(ctx context.Context, fetcher TileFetcher, template string, tiles []maptile.Tile) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, 8) // max 8 concurrent fetches

	for _, t := range tiles {
		wg.Add(1)
		go func(t maptile.Tile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			url := TileURL(template, t)
			if err := fetcher.FetchTile(ctx, url); err != nil {
				metrics.TileFetches.WithLabelValues("error").Inc()
				slog.Debug("tile fetch failed", "url", url, "error", err)
				return
			}
			metrics.TileFetches.WithLabelValues("ok").Inc()
		}(t)
	}

	wg.Wait()
}
