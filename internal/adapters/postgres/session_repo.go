package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// SessionRepo implements ports.SessionRepository with pgx.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Save inserts or updates a session snapshot.
func (r *SessionRepo) Save(ctx context.Context, s *domain.SessionSnapshot) error {
	cameras, err := json.Marshal(s.Cameras)
	if err != nil {
		return fmt.Errorf("encode cameras: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO viewer_sessions (id, kind, analysis_id, transformation_id, cameras, created_at, updated_at, closed_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET cameras = EXCLUDED.cameras,
		    updated_at = EXCLUDED.updated_at,
		    closed_at = EXCLUDED.closed_at
	`, s.ID, string(s.Kind), s.AnalysisID, s.TransformationID, cameras, s.CreatedAt, s.UpdatedAt, s.ClosedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Get returns a snapshot by session id.
func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, kind, analysis_id, COALESCE(transformation_id, ''), cameras, created_at, updated_at, closed_at
		FROM viewer_sessions WHERE id = $1
	`, id)
	s, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// List returns the most recently updated snapshots.
func (r *SessionRepo) List(ctx context.Context, limit int) ([]domain.SessionSnapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, kind, analysis_id, COALESCE(transformation_id, ''), cameras, created_at, updated_at, closed_at
		FROM viewer_sessions
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSnapshot(row pgx.Row) (*domain.SessionSnapshot, error) {
	var (
		s       domain.SessionSnapshot
		kind    string
		cameras []byte
	)
	if err := row.Scan(&s.ID, &kind, &s.AnalysisID, &s.TransformationID, &cameras, &s.CreatedAt, &s.UpdatedAt, &s.ClosedAt); err != nil {
		return nil, err
	}
	s.Kind = domain.SessionKind(kind)
	if len(cameras) > 0 {
		if err := json.Unmarshal(cameras, &s.Cameras); err != nil {
			return nil, fmt.Errorf("decode cameras: %w", err)
		}
	}
	return &s, nil
}
