// Package browser is the page-automation capability the scrapers depend on.
//
// A Page is a single tab, it is not safe to drive one Page from several
// goroutines except for waiting on its URL while an action is in flight.
// Implementations honor the deadline and cancellation of the context given to
// each method and never block past it.
package browser

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
)

// LoadState is a page lifecycle milestone that can be waited for.
type LoadState string

const (
	// LoadDOMContent is reached when the document has been parsed.
	LoadDOMContent LoadState = "DOMContentLoaded"
	// LoadNetworkIdle is reached when there has been no network activity
	// for a short quiet period after the document loaded.
	LoadNetworkIdle LoadState = "networkIdle"
)

// ErrNoMatch is returned by actions when their locator matches nothing.
var ErrNoMatch = errors.New("no element matches locator")

// ErrNavigationFailed is returned by Goto when the browser reports a failure
// to load the document (dns, connection refused, ...).
var ErrNavigationFailed = errors.New("navigation failed")

// ElementState describes the first element matched by a locator at the time
// it was probed.
type ElementState struct {
	Count   int
	Visible bool
	Enabled bool
}

func (s ElementState) Found() bool {
	return s.Count > 0
}

// Actionable reports whether the first match can be clicked or filled.
func (s ElementState) Actionable() bool {
	return s.Found() && s.Visible && s.Enabled
}

type Page interface {
	// Goto navigates the tab and returns once `until` is reached for the new document.
	Goto(ctx context.Context, url string, until LoadState) error
	// WaitForLoadState waits for `state` on the current document.
	WaitForLoadState(ctx context.Context, state LoadState) error
	// URL is the address of the current document.
	URL(ctx context.Context) (string, error)

	Probe(ctx context.Context, loc Locator) (ElementState, error)
	// Click and Fill act on the first match of `loc` without waiting, they
	// return ErrNoMatch if there is none.
	Click(ctx context.Context, loc Locator) error
	Fill(ctx context.Context, loc Locator, value string) error
	// Attribute reads an attribute of the first match, `ok` is false if the
	// element does not carry it.
	Attribute(ctx context.Context, loc Locator, name string) (value string, ok bool, err error)

	// Snapshot serializes the rendered DOM of the current document.
	Snapshot(ctx context.Context) (*goquery.Document, error)
}

type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Close releases the browser and every page it created, it is safe to
	// call more than once.
	Close(ctx context.Context) error
}

// Launcher starts a new, isolated browser instance. Instances never share
// cookies or pages.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a function to a Launcher.
type LauncherFunc func(ctx context.Context) (Browser, error)

func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) {
	return f(ctx)
}
