package ucd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
	"ucdresults-backend/internal/browser"
	"ucdresults-backend/internal/components/assert"
	"ucdresults-backend/internal/components/telemetry"
	"ucdresults-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_navigator_wait_for = "navigator.wait-for"
)

const pollInterval = time.Millisecond * 100

// Navigator drives the single page of a session. Every method is bounded by
// one of the session timeouts and reports failures as one of the error kinds.
type Navigator struct {
	page     browser.Page
	base     *url.URL
	timeouts Timeouts
	tel      telemetry.API
	interval time.Duration
}

func NewNavigator(page browser.Page, baseUrl string, timeouts Timeouts, tel telemetry.API) (*Navigator, error) {
	assert.NotNil(page)
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Navigator{
		page:     page,
		base:     base,
		timeouts: timeouts,
		tel:      tel,
		interval: pollInterval,
	}, nil
}

// classify wraps err in kind unless the caller's own context ended, in which
// case the caller's context error is returned as is.
func classify(ctx context.Context, kind error, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", kind, what, err)
}

func (n *Navigator) Goto(ctx context.Context, rawUrl string, until browser.LoadState) error {
	gotoCtx, cancel := context.WithTimeout(ctx, n.timeouts.Page)
	defer cancel()

	err := n.page.Goto(gotoCtx, rawUrl, until)
	if err != nil {
		return classify(ctx, ErrNavigation, fmt.Sprintf("goto %s (%s)", rawUrl, until), err)
	}
	return nil
}

func (n *Navigator) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	waitCtx, cancel := context.WithTimeout(ctx, n.timeouts.Page)
	defer cancel()

	err := n.page.WaitForLoadState(waitCtx, state)
	if err != nil {
		return classify(ctx, ErrNavigation, fmt.Sprintf("wait for %s", state), err)
	}
	return nil
}

func (n *Navigator) URL(ctx context.Context) (string, error) {
	urlCtx, cancel := context.WithTimeout(ctx, n.timeouts.Action)
	defer cancel()

	current, err := n.page.URL(urlCtx)
	if err != nil {
		return "", classify(ctx, ErrNavigation, "read url", err)
	}
	return current, nil
}

var errWaitTimeout = errors.New("timed out")

// poll calls check until it returns true or timeout elapses. Errors from
// check are retried since the page may be between documents, the last one is
// attached to the timeout.
func (n *Navigator) poll(ctx context.Context, timeout time.Duration, check func(ctx context.Context) (bool, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := check(waitCtx)
		if err == nil && ok {
			return nil
		}
		if err != nil && waitCtx.Err() == nil {
			lastErr = err
		}

		select {
		case <-waitCtx.Done():
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %w", errWaitTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", errWaitTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// WaitFor waits for a visible element matching selector. When mandatory is
// false a timeout is only reported as a warning.
func (n *Navigator) WaitFor(ctx context.Context, selector string, timeout time.Duration, mandatory bool) error {
	loc := browser.CSS(selector)
	err := n.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		state, err := n.page.Probe(ctx, loc)
		return state.Found() && state.Visible, err
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !mandatory {
		n.tel.ReportWarning(report_navigator_wait_for, selector, err)
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrElementNotFound, selector, err)
}

// WaitForURL waits until the url of the current document matches pattern, it
// returns an error wrapping errWaitTimeout on timeout.
func (n *Navigator) WaitForURL(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	return n.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		current, err := n.page.URL(ctx)
		if err != nil {
			return false, err
		}
		return pattern.MatchString(current), nil
	})
}

// ResolveAbsoluteURL resolves href against the portal base url.
func (n *Navigator) ResolveAbsoluteURL(href string) string {
	return htmlutil.ResolveHref(n.base, href)
}

// Evaluate runs fn over a snapshot of the rendered document.
func (n *Navigator) Evaluate(ctx context.Context, fn func(doc *goquery.Document) error) error {
	snapCtx, cancel := context.WithTimeout(ctx, n.timeouts.Action)
	defer cancel()

	doc, err := n.page.Snapshot(snapCtx)
	if err != nil {
		return classify(ctx, ErrNavigation, "snapshot", err)
	}
	return fn(doc)
}

func (n *Navigator) Locate(loc browser.Locator) Element {
	return Element{nav: n, loc: loc}
}

// Element is a lazy handle, the locator is resolved again on every call.
type Element struct {
	nav *Navigator
	loc browser.Locator
}

func (e Element) String() string {
	return e.loc.String()
}

// Visible reports whether the first match is visible right now, it never
// fails and is false when nothing matches.
func (e Element) Visible(ctx context.Context) bool {
	visibleCtx, cancel := context.WithTimeout(ctx, e.nav.timeouts.Action)
	defer cancel()

	state, err := e.nav.page.Probe(visibleCtx, e.loc)
	if err != nil {
		return false
	}
	return state.Found() && state.Visible
}

// waitFor polls until ready accepts the state of the first match.
func (e Element) waitFor(ctx context.Context, timeout time.Duration, ready func(browser.ElementState) bool) error {
	var last browser.ElementState
	err := e.nav.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		state, err := e.nav.page.Probe(ctx, e.loc)
		if err != nil {
			return false, err
		}
		last = state
		return ready(state), nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if last.Found() {
		return fmt.Errorf("%w: %s (visible=%v enabled=%v): %w", ErrElementNotInteractable, e.loc, last.Visible, last.Enabled, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrElementNotFound, e.loc, err)
}

func (e Element) actionError(ctx context.Context, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, browser.ErrNoMatch) {
		return fmt.Errorf("%w: %s %s: %w", ErrElementNotFound, action, e.loc, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrElementNotInteractable, action, e.loc, err)
}

// Click waits for the first match to be actionable and clicks it.
func (e Element) Click(ctx context.Context) error {
	err := e.waitFor(ctx, e.nav.timeouts.Action, browser.ElementState.Actionable)
	if err != nil {
		return err
	}
	actionCtx, cancel := context.WithTimeout(ctx, e.nav.timeouts.Action)
	defer cancel()
	err = e.nav.page.Click(actionCtx, e.loc)
	if err != nil {
		return e.actionError(ctx, "click", err)
	}
	return nil
}

// Fill waits for the first match to be actionable and replaces its value.
func (e Element) Fill(ctx context.Context, value string) error {
	err := e.waitFor(ctx, e.nav.timeouts.Action, browser.ElementState.Actionable)
	if err != nil {
		return err
	}
	actionCtx, cancel := context.WithTimeout(ctx, e.nav.timeouts.Action)
	defer cancel()
	err = e.nav.page.Fill(actionCtx, e.loc, value)
	if err != nil {
		return e.actionError(ctx, "fill", err)
	}
	return nil
}

// Attr waits up to timeout for a visible match and reads one of its
// attributes, a missing attribute reads as "".
func (e Element) Attr(ctx context.Context, name string, timeout time.Duration) (string, error) {
	err := e.waitFor(ctx, timeout, func(s browser.ElementState) bool {
		return s.Found() && s.Visible
	})
	if err != nil {
		return "", err
	}
	actionCtx, cancel := context.WithTimeout(ctx, e.nav.timeouts.Action)
	defer cancel()
	value, _, err := e.nav.page.Attribute(actionCtx, e.loc, name)
	if err != nil {
		return "", e.actionError(ctx, "read "+name, err)
	}
	return value, nil
}
