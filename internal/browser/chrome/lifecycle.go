package chrome

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// lifecycle tracks the page lifecycle events of the main frame, grouped by
// the loader (document) that emitted them.
type lifecycle struct {
	mu      sync.Mutex
	frame   cdp.FrameID
	current cdp.LoaderID
	seen    map[cdp.LoaderID]map[string]bool
	changed chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		seen:    map[cdp.LoaderID]map[string]bool{},
		changed: make(chan struct{}),
	}
}

func (l *lifecycle) setFrame(frame cdp.FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = frame
}

func (l *lifecycle) broadcast() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// onEvent must not block, it is called from chromedp's event loop.
func (l *lifecycle) onEvent(ev *page.EventLifecycleEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frame == "" || ev.FrameID != l.frame {
		return
	}
	if ev.Name == "init" {
		l.current = ev.LoaderID
	}
	names, ok := l.seen[ev.LoaderID]
	if !ok {
		names = map[string]bool{}
		l.seen[ev.LoaderID] = names
	}
	names[ev.Name] = true
	l.broadcast()
}

// expect marks `loader` as the current document, lifecycle events may arrive
// before or after the navigation command returns.
func (l *lifecycle) expect(loader cdp.LoaderID) {
	if loader == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = loader
	l.broadcast()
}

// wait blocks until the current document has emitted `name`.
func (l *lifecycle) wait(ctx context.Context, name string) error {
	for {
		l.mu.Lock()
		reached := l.seen[l.current][name]
		changed := l.changed
		l.mu.Unlock()

		if reached {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
