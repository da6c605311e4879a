package ports

import (
	"context"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// PreviewSource fetches preview payloads from the analysis service.
type PreviewSource interface {
	AnalysisPreview(ctx context.Context, analysisID string) (*domain.Preview, error)
	TransformationPreview(ctx context.Context, transformationID string) (*domain.Preview, error)
}

// SessionRepository persists session snapshots.
type SessionRepository interface {
	Save(ctx context.Context, snap *domain.SessionSnapshot) error
	Get(ctx context.Context, id string) (*domain.SessionSnapshot, error)
	List(ctx context.Context, limit int) ([]domain.SessionSnapshot, error)
}
