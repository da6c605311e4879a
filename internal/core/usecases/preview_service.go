package usecases

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
	"github.com/samirrijal/geoviewer/internal/pkg/telemetry"
)

const (
	previewKindAnalysis       = "analysis"
	previewKindTransformation = "transformation"
)

// PreviewService fetches previews from the analysis service through a cache.
type PreviewService struct {
	source  ports.PreviewSource
	cache   ports.CacheService
	ttlSecs int
}

// NewPreviewService creates a new PreviewService. cache may be nil.
func NewPreviewService(source ports.PreviewSource, cache ports.CacheService, ttlSeconds int) *PreviewService {
	return &PreviewService{source: source, cache: cache, ttlSecs: ttlSeconds}
}

// Analysis returns the preview of an analysis.
func (s *PreviewService) Analysis(ctx context.Context, analysisID string) (*domain.Preview, error) {
	return s.get(ctx, previewKindAnalysis, analysisID, s.source.AnalysisPreview)
}

// Transformation returns the preview of a transformation.
func (s *PreviewService) Transformation(ctx context.Context, transformationID string) (*domain.Preview, error) {
	return s.get(ctx, previewKindTransformation, transformationID, s.source.TransformationPreview)
}

// Invalidate drops cached previews so the next read goes upstream.
func (s *PreviewService) Invalidate(ctx context.Context, analysisID, transformationID string) {
	if s.cache == nil {
		return
	}
	if analysisID != "" {
		_ = s.cache.Delete(ctx, cacheKey(previewKindAnalysis, analysisID))
	}
	if transformationID != "" {
		_ = s.cache.Delete(ctx, cacheKey(previewKindTransformation, transformationID))
	}
}

func cacheKey(kind, id string) string {
	return "preview:" + kind + ":" + id
}

func (s *PreviewService) get(ctx context.Context, kind, id string, fetch func(context.Context, string) (*domain.Preview, error)) (*domain.Preview, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "preview."+kind)
	defer span.End()

	// Try cache
	key := cacheKey(kind, id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var p domain.Preview
			if err := json.Unmarshal(data, &p); err == nil {
				metrics.CacheHits.WithLabelValues("preview_" + kind).Inc()
				span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
				return &p, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("preview_" + kind).Inc()
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	p, err := fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttlSecs > 0 {
		if data, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttlSecs); err != nil {
				slog.Debug("cache preview failed", "key", key, "error", err)
			}
		}
	}

	return p, nil
}
