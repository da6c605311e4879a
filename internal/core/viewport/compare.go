package viewport

import (
	"fmt"
	"sync"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/pkg/eventloop"
	"github.com/samirrijal/geoviewer/internal/pkg/geospatial"
)

// Pane titles and the CRS placeholder shown in a comparison.
const (
	TitleOriginal        = "Original"
	TitleTransformed     = "Transformed"
	TitleUntransformed   = "Original (no transformation)"
	CRSLabelNotSpecified = "Not specified"
)

const (
	originalPaneSuffix    = "-left"
	transformedPaneSuffix = "-right"
)

// Labels are the captions of a comparison. Each pane carries its own CRS.
type Labels struct {
	LeftTitle  string
	RightTitle string
	LeftCRS    string
	RightCRS   string
}

// ComparisonLabels derives the captions for a pair of previews. The left
// pane shows the CRS of the original data; the right pane the transformed
// CRS, falling back to the original one.
func ComparisonLabels(original, transformed *domain.Preview) Labels {
	l := Labels{
		LeftTitle:  TitleOriginal,
		RightTitle: TitleUntransformed,
		LeftCRS:    CRSLabelNotSpecified,
		RightCRS:   CRSLabelNotSpecified,
	}
	if hasTransformed(transformed) {
		l.RightTitle = TitleTransformed
	}
	if original != nil && original.AppliedCRS != "" {
		l.LeftCRS = original.AppliedCRS
		l.RightCRS = original.AppliedCRS
	}
	if transformed != nil && transformed.AppliedCRS != "" {
		l.RightCRS = transformed.AppliedCRS
	}
	return l
}

func hasTransformed(p *domain.Preview) bool {
	return p.HasGeometry()
}

// SideBySideMap shows an original preview and its transformed counterpart on
// two panes whose cameras move together. Without transformed data the right
// pane shows the original data in the original color.
type SideBySideMap struct {
	left, right *Controller
	leftLayers  *LayerManager
	rightLayers *LayerManager

	mu          sync.Mutex
	link        *CameraLink
	original    *domain.Preview
	transformed *domain.Preview
	unmounted   bool
}

// NewSideBySideMap creates an unmounted comparison. Both panes share loop.
func NewSideBySideMap(loop *eventloop.Loop, factory ports.EngineFactory, opts Options) *SideBySideMap {
	leftOpts, rightOpts := opts, opts
	leftOpts.Container.ID = opts.Container.ID + originalPaneSuffix
	rightOpts.Container.ID = opts.Container.ID + transformedPaneSuffix

	left := NewController(domain.PaneLeft, loop, factory, leftOpts)
	right := NewController(domain.PaneRight, loop, factory, rightOpts)
	return &SideBySideMap{
		left:        left,
		right:       right,
		leftLayers:  NewLayerManager(left),
		rightLayers: NewLayerManager(right),
	}
}

// Mount creates both panes and links their cameras once both are ready.
func (s *SideBySideMap) Mount(original, transformed *domain.Preview) error {
	var leftBounds, rightBounds domain.CandidateBounds
	if original != nil {
		leftBounds = original.Bounds
	}
	rightBounds = leftBounds
	if transformed != nil && transformed.Bounds != nil {
		rightBounds = transformed.Bounds
	}

	if err := s.left.Mount(leftBounds); err != nil {
		return fmt.Errorf("left pane: %w", err)
	}
	if err := s.right.Mount(rightBounds); err != nil {
		s.left.Dispose()
		return fmt.Errorf("right pane: %w", err)
	}

	s.left.OnReady(func() {
		s.right.OnReady(s.attachLink)
	})

	s.Update(original, transformed)
	return nil
}

func (s *SideBySideMap) attachLink() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted || s.link != nil {
		return
	}
	s.link = Link(s.left, s.right)
}

// Update draws new data on both panes. Before the link is attached each pane
// fits its own data. Once linked, only the left pane is fitted, to the union
// of both extents, and the link carries that camera to the right pane.
func (s *SideBySideMap) Update(original, transformed *domain.Preview) {
	s.mu.Lock()
	s.original, s.transformed = original, transformed
	linked := s.link != nil && !s.unmounted
	s.mu.Unlock()

	has := hasTransformed(transformed)
	rightData := original
	if has {
		rightData = transformed
	}
	rightColor := domain.PaneColor(domain.RoleTransformed, has)

	if !linked {
		s.leftLayers.Upsert(domain.RoleOriginal, original, domain.ColorOriginal)
		s.rightLayers.Upsert(domain.RoleTransformed, rightData, rightColor)
		return
	}

	s.leftLayers.Draw(domain.RoleOriginal, original, domain.ColorOriginal)
	s.rightLayers.Draw(domain.RoleTransformed, rightData, rightColor)
	if box, ok := geospatial.UnionBounds(drawnBounds(original), drawnBounds(rightData)); ok {
		s.left.FitToBounds(box[:])
	}
}

// drawnBounds returns the bounds of a preview that gets drawn, nil otherwise.
func drawnBounds(p *domain.Preview) []float64 {
	if !p.HasGeometry() {
		return nil
	}
	return p.Bounds
}

// Labels returns the captions for the current data.
func (s *SideBySideMap) Labels() Labels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComparisonLabels(s.original, s.transformed)
}

// Synchronized reports whether the camera link is attached.
func (s *SideBySideMap) Synchronized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link != nil && !s.unmounted
}

// Unmount detaches the link and disposes both panes.
func (s *SideBySideMap) Unmount() {
	s.mu.Lock()
	s.unmounted = true
	link := s.link
	s.mu.Unlock()

	if link != nil {
		link.Close()
	}
	s.left.Dispose()
	s.right.Dispose()
}

func (s *SideBySideMap) Left() *Controller  { return s.left }
func (s *SideBySideMap) Right() *Controller { return s.right }

// LeftLayers returns the layer sets on the left pane.
func (s *SideBySideMap) LeftLayers() []domain.LayerSet { return s.leftLayers.LayerSets() }

// RightLayers returns the layer sets on the right pane.
func (s *SideBySideMap) RightLayers() []domain.LayerSet { return s.rightLayers.LayerSets() }
