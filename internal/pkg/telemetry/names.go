package telemetry

// Span and attribute names.
const (
	SpanPreviewFetch = "analysis.preview.fetch"
	SpanSessionOpen  = "viewer.session.open"

	AttrAnalysisID       = "geoviewer.analysis_id"
	AttrTransformationID = "geoviewer.transformation_id"
	AttrSessionID        = "geoviewer.session_id"
	AttrCacheHit         = "geoviewer.cache_hit"
)
