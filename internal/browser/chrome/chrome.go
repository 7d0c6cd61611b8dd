// Package chrome implements the browser port on top of chromedp.
package chrome

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"ucdresults-backend/internal/browser"
	"ucdresults-backend/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	report_launcher_launch = "launcher.launch"
	report_browser_close   = "browser.close"
	report_chromedp        = "chromedp"
)

//go:embed locate.js
var locateScript string

type Options struct {
	Headless bool `json:"headless"`
	// ExecPath overrides the chrome binary chromedp looks for.
	ExecPath string `json:"exec_path"`
	// RemoteUrl connects to an already running chrome (ex. ws://127.0.0.1:9222)
	// instead of launching a local process.
	RemoteUrl string `json:"remote_url"`
	UserAgent string `json:"user_agent"`
	NoSandbox bool   `json:"no_sandbox"`
}

func DefaultOptions() Options {
	return Options{Headless: true}
}

// Launcher starts one chrome instance per Launch call.
type Launcher struct {
	opts Options
	tel  telemetry.API
}

func NewLauncher(opts Options, tel telemetry.API) Launcher {
	return Launcher{
		opts: opts,
		tel:  telemetry.NewScopedAPI("chrome", tel),
	}
}

func (l Launcher) allocator(parent context.Context) (context.Context, context.CancelFunc) {
	if l.opts.RemoteUrl != "" {
		return chromedp.NewRemoteAllocator(parent, l.opts.RemoteUrl)
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.WindowSize(1280, 900))
	if !l.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	if l.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return chromedp.NewExecAllocator(parent, opts...)
}

// Launch starts the browser and its first tab. The browser outlives ctx, it
// is only released by Browser.Close.
func (l Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	allocCtx, allocCancel := l.allocator(context.WithoutCancel(ctx))

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithErrorf(func(format string, args ...any) {
			l.tel.ReportDebug(report_chromedp, fmt.Sprintf(format, args...))
		}),
	}
	if l.opts.RemoteUrl != "" {
		ctxOpts = append(ctxOpts, chromedp.WithNewBrowserContext())
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	b := &Browser{
		tel:         l.tel,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}
	first := newPage(tabCtx, tabCancel)

	// the first Run allocates the browser, it has to run on the tab context
	// itself since cancelling it would also kill the browser.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true))
	}()
	select {
	case err := <-started:
		if err != nil {
			l.tel.ReportBroken(report_launcher_launch, err)
			b.Close(context.Background())
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
	case <-ctx.Done():
		b.Close(context.Background())
		return nil, ctx.Err()
	}

	first.life.setFrame(cdp.FrameID(chromedp.FromContext(tabCtx).Target.TargetID))
	b.pages = []*Page{first}
	return b, nil
}

type Browser struct {
	tel telemetry.API

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu        sync.Mutex
	pages     []*Page
	handedOut int
	closeOnce sync.Once
	closeErr  error
}

// NewPage hands out the tab created at launch first, every later call opens a
// new tab in the same browser.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handedOut < len(b.pages) {
		p := b.pages[b.handedOut]
		b.handedOut++
		return p, nil
	}

	tabCtx, tabCancel := chromedp.NewContext(b.tabCtx)
	p := newPage(tabCtx, tabCancel)
	err := chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true))
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p.life.setFrame(cdp.FrameID(chromedp.FromContext(tabCtx).Target.TargetID))

	b.pages = append(b.pages, p)
	b.handedOut++
	return p, nil
}

// Close gracefully closes the browser, if that does not finish before ctx is
// done the process is killed.
func (b *Browser) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() {
			done <- chromedp.Cancel(b.tabCtx)
		}()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				b.closeErr = err
			}
		case <-ctx.Done():
			b.closeErr = ctx.Err()
		}
		b.tabCancel()
		b.allocCancel()
		if b.closeErr != nil {
			b.tel.ReportWarning(report_browser_close, b.closeErr)
		}
	})
	return b.closeErr
}

type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	life   *lifecycle
	marks  atomic.Uint64
}

func newPage(tabCtx context.Context, cancel context.CancelFunc) *Page {
	p := &Page{
		ctx:    tabCtx,
		cancel: cancel,
		life:   newLifecycle(),
	}
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			p.life.onEvent(e)
		}
	})
	return p
}

// bind derives a context from the tab that carries the deadline and
// cancellation of the caller's ctx. Cancelling it aborts the running action
// without closing the tab.
func (p *Page) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parentCancel := cancel
		cancel = func() {
			cancelDeadline()
			parentCancel()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// callerErr prefers the caller's context error so timeouts are reported as
// context.DeadlineExceeded regardless of how chromedp wrapped them.
func callerErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		return callerErr(ctx, err)
	}
	return nil
}

func (p *Page) Goto(ctx context.Context, rawUrl string, until browser.LoadState) error {
	runCtx, cancel := p.bind(ctx)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, loaderID, errorText, err := page.Navigate(rawUrl).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("%w: %s", browser.ErrNavigationFailed, errorText)
		}
		p.life.expect(loaderID)
		return nil
	}))
	if err != nil {
		return callerErr(ctx, err)
	}
	return callerErr(ctx, p.life.wait(runCtx, string(until)))
}

func (p *Page) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	return callerErr(ctx, p.life.wait(runCtx, string(state)))
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, chromedp.Location(&location))
	return location, err
}

type locateResult struct {
	Count   int    `json:"count"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

func (p *Page) locate(ctx context.Context, loc browser.Locator, mark bool) (locateResult, error) {
	args := map[string]any{
		"selector": loc.Selector,
		"role":     string(loc.Role),
		"name":     loc.Name,
		"mark":     "",
	}
	if mark {
		args["mark"] = strconv.FormatUint(p.marks.Add(1), 10)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return locateResult{}, err
	}

	var res locateResult
	expr := fmt.Sprintf("(%s)(%s)", strings.TrimSpace(locateScript), encoded)
	err = p.run(ctx, chromedp.Evaluate(expr, &res))
	return res, err
}

func markedSelector(token string) string {
	return fmt.Sprintf(`[data-ucdresults-target="%s"]`, token)
}

func (p *Page) Probe(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	res, err := p.locate(ctx, loc, false)
	if err != nil {
		return browser.ElementState{}, err
	}
	return browser.ElementState{
		Count:   res.Count,
		Visible: res.Visible,
		Enabled: res.Enabled,
	}, nil
}

func (p *Page) mark(ctx context.Context, loc browser.Locator) (string, error) {
	res, err := p.locate(ctx, loc, true)
	if err != nil {
		return "", err
	}
	if res.Count == 0 {
		return "", fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
	return markedSelector(res.Token), nil
}

func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	sel, err := p.mark(ctx, loc)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Click(sel, chromedp.ByQuery))
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, value string) error {
	sel, err := p.mark(ctx, loc)
	if err != nil {
		return err
	}
	return p.run(
		ctx,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

func (p *Page) Attribute(ctx context.Context, loc browser.Locator, name string) (string, bool, error) {
	sel, err := p.mark(ctx, loc)
	if err != nil {
		return "", false, err
	}
	var value string
	var ok bool
	err = p.run(ctx, chromedp.AttributeValue(sel, name, &value, &ok, chromedp.ByQuery))
	return value, ok, err
}

func (p *Page) Snapshot(ctx context.Context) (*goquery.Document, error) {
	var location, outer string
	err := p.run(
		ctx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outer))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(location)
	return doc, nil
}

var _ browser.Launcher = Launcher{}
var _ browser.Browser = (*Browser)(nil)
var _ browser.Page = (*Page)(nil)
