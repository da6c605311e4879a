package domain

import "time"

// SessionKind distinguishes single-pane and comparison sessions.
type SessionKind string

const (
	KindAnalysis   SessionKind = "analysis"
	KindComparison SessionKind = "comparison"
)

// Pane names.
const (
	PaneMain  = "main"
	PaneLeft  = "left"
	PaneRight = "right"
)

// PaneView is a read-only snapshot of one pane.
type PaneView struct {
	Name     string         `json:"name"`
	Title    string         `json:"title"`
	CRSLabel string         `json:"crs_label"`
	Status   ViewportStatus `json:"status"`
	Camera   Camera         `json:"camera"`
	Layers   []LayerSet     `json:"layers"`
}

// SessionView is a read-only snapshot of a live viewer session.
type SessionView struct {
	ID               string      `json:"id"`
	Kind             SessionKind `json:"kind"`
	AnalysisID       string      `json:"analysis_id"`
	TransformationID string      `json:"transformation_id,omitempty"`
	Synchronized     bool        `json:"synchronized"`
	Panes            []PaneView  `json:"panes"`
	CreatedAt        time.Time   `json:"created_at"`
}

// SessionSnapshot is what gets persisted so a session can be resumed.
type SessionSnapshot struct {
	ID               string            `json:"id"`
	Kind             SessionKind       `json:"kind"`
	AnalysisID       string            `json:"analysis_id"`
	TransformationID string            `json:"transformation_id,omitempty"`
	Cameras          map[string]Camera `json:"cameras"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ClosedAt         *time.Time        `json:"closed_at,omitempty"`
}

// CameraEvent is published whenever a pane's camera changes.
type CameraEvent struct {
	SessionID string       `json:"session_id"`
	Pane      string       `json:"pane"`
	Camera    Camera       `json:"camera"`
	Source    CameraSource `json:"source"`
	Time      time.Time    `json:"time"`
}

// SessionEventType names a session lifecycle transition.
type SessionEventType string

const (
	SessionOpened  SessionEventType = "opened"
	SessionClosed  SessionEventType = "closed"
	SessionResumed SessionEventType = "resumed"
)

// SessionEvent is published on session lifecycle transitions.
type SessionEvent struct {
	SessionID string           `json:"session_id"`
	Kind      SessionKind      `json:"kind"`
	Type      SessionEventType `json:"type"`
	Time      time.Time        `json:"time"`
}
