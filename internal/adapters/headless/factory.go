package headless

import (
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/geoviewer/internal/core/ports"
)

// ErrNoContainer is returned when a map is requested without a render surface.
var ErrNoContainer = errors.New("headless: container has no size")

// Factory creates headless engines. Each engine loads on its own goroutine
// after LoadDelay, or once Gate is closed when set.
type Factory struct {
	Fetcher   TileFetcher
	LoadDelay time.Duration
	Gate      <-chan struct{}

	mu      sync.Mutex
	engines []*Engine
}

// NewFactory returns a factory that prefetches tiles through fetcher. A nil
// fetcher disables tile downloads.
func NewFactory(fetcher TileFetcher, loadDelay time.Duration) *Factory {
	return &Factory{Fetcher: fetcher, LoadDelay: loadDelay}
}

func (f *Factory) NewEngine(opts ports.EngineOptions) (ports.MapEngine, error) {
	if opts.Container.Width <= 0 || opts.Container.Height <= 0 {
		return nil, ErrNoContainer
	}

	e := newEngine(opts, f.Fetcher)

	f.mu.Lock()
	live := f.engines[:0]
	for _, old := range f.engines {
		if !old.Removed() {
			live = append(live, old)
		}
	}
	f.engines = append(live, e)
	gate, delay := f.Gate, f.LoadDelay
	f.mu.Unlock()

	go func() {
		if gate != nil {
			select {
			case <-gate:
			case <-e.ctx.Done():
				return
			}
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-e.ctx.Done():
				return
			}
		}
		e.load()
	}()

	return e, nil
}

// Engines returns every engine created so far, in creation order.
func (f *Factory) Engines() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Engine(nil), f.engines...)
}

// Engine returns the engine bound to the container id, if any.
func (f *Factory) Engine(containerID string) (*Engine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.engines) - 1; i >= 0; i-- {
		if f.engines[i].opts.Container.ID == containerID {
			return f.engines[i], true
		}
	}
	return nil, false
}
