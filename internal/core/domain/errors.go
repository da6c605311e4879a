package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionLimit     = errors.New("too many open sessions")
	ErrUnknownPane      = errors.New("unknown pane")
	ErrPreviewNotFound  = errors.New("preview not found")
	ErrInvalidCamera    = errors.New("invalid camera")
	ErrAnalysisRequired = errors.New("analysis id is required")
)
