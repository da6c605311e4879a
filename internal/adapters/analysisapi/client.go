// Package analysisapi fetches map previews from the analysis service.
package analysisapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
	"github.com/samirrijal/geoviewer/internal/pkg/telemetry"
)

// Client implements ports.PreviewSource over HTTP.
type Client struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
}

// New creates a client for the analysis service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			Name:                "geoviewer",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
			MaxResponseBodySize: 64 << 20,
		},
		timeout: timeout,
	}
}

// AnalysisPreview returns the preview of an uploaded file's analysis.
func (c *Client) AnalysisPreview(ctx context.Context, analysisID string) (*domain.Preview, error) {
	return c.fetch(ctx, "analysis", analysisID)
}

// TransformationPreview returns the preview of a transformed dataset.
func (c *Client) TransformationPreview(ctx context.Context, transformationID string) (*domain.Preview, error) {
	return c.fetch(ctx, "transformation", transformationID)
}

func (c *Client) fetch(ctx context.Context, kind, id string) (*domain.Preview, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanPreviewFetch)
	defer span.End()
	span.SetAttributes(attribute.String("preview.kind", kind), attribute.String("preview.id", id))

	start := time.Now()
	defer func() {
		metrics.PreviewFetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	p, err := c.do(ctx, fmt.Sprintf("%s/%s/%s/preview", c.baseURL, kind, url.PathEscape(id)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s %s preview: %w", kind, id, err)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, uri string) (*domain.Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	if err := c.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("GET %s: %w", uri, err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return nil, domain.ErrPreviewNotFound
	case status != fasthttp.StatusOK:
		return nil, fmt.Errorf("HTTP %d for %s", status, uri)
	}

	var p domain.Preview
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return &p, nil
}
