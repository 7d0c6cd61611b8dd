// Package browsertest provides a browser driver that serves static HTML from
// memory, it lets scrapers be tested against recorded portal pages.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"ucdresults-backend/internal/browser"
	"ucdresults-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// SubmitFunc is called when a submit control is clicked. It returns the url
// the browser should navigate to, or "" to stay on the current page.
type SubmitFunc func(action string, values url.Values) string

// Site is an in-memory website. The zero value serves nothing.
type Site struct {
	// Pages maps absolute urls (query included) to html documents.
	Pages map[string]string
	// Redirects maps a url to the url it redirects to.
	Redirects map[string]string
	OnSubmit  SubmitFunc
	// LaunchErr makes every launch fail.
	LaunchErr error

	mu       sync.Mutex
	launches int
	closes   int
	visited  []string
}

func (s *Site) Launcher() browser.Launcher {
	return browser.LauncherFunc(s.launch)
}

func (s *Site) launch(ctx context.Context) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	s.launches++
	return &Browser{site: s}, nil
}

func (s *Site) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

// Closes counts browsers that have been closed, repeated closes of the same
// browser count once.
func (s *Site) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Visited lists every url navigated to, in order.
func (s *Site) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

func (s *Site) load(rawUrl string) (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visited = append(s.visited, rawUrl)
	for hops := 0; hops < 10; hops++ {
		target, ok := s.Redirects[rawUrl]
		if !ok {
			break
		}
		rawUrl = target
	}
	src, ok := s.Pages[rawUrl]
	if !ok {
		return nil, fmt.Errorf("%w: net::ERR_NAME_NOT_RESOLVED %s", browser.ErrNavigationFailed, rawUrl)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	doc.Url, err = url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type Browser struct {
	site   *Site
	mu     sync.Mutex
	closed bool
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("browser has been closed")
	}
	return &Page{site: b.site}, nil
}

func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	b.site.mu.Lock()
	b.site.closes++
	b.site.mu.Unlock()
	return nil
}

// Page is a tab showing one document of a Site, every load state is reached
// as soon as the document is parsed.
type Page struct {
	site *Site

	mu  sync.Mutex
	doc *goquery.Document
}

func (p *Page) current() *goquery.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

func (p *Page) navigate(rawUrl string) error {
	doc, err := p.site.load(rawUrl)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

func (p *Page) Goto(ctx context.Context, rawUrl string, until browser.LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.navigate(rawUrl)
}

func (p *Page) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	return ctx.Err()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc := p.current()
	if doc == nil {
		return "about:blank", nil
	}
	return doc.Url.String(), nil
}

func (p *Page) Probe(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return browser.ElementState{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return browser.ElementState{}, nil
	}
	return browser.StateOf(p.doc.Selection, loc), nil
}

// first must be called with p.mu held.
func (p *Page) first(ctx context.Context, loc browser.Locator) (*goquery.Document, *goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	doc := p.doc
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
	match := loc.Find(doc.Selection).First()
	if match.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
	return doc, match, nil
}

func isSubmit(sel *goquery.Selection) bool {
	if sel.Is("input[type=submit], input[type=image]") {
		return true
	}
	if sel.Is("button") {
		typ := strings.ToLower(sel.AttrOr("type", "submit"))
		return typ == "submit"
	}
	return false
}

func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, field *goquery.Selection) {
		values.Add(field.AttrOr("name", ""), field.AttrOr("value", ""))
	})
	return values
}

// Click follows anchors and submits forms, clicking anything else does nothing.
func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	doc, match, err := p.first(ctx, loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}

	var next string
	switch {
	case match.Is("a[href]"):
		next = htmlutil.ResolveHref(doc.Url, match.AttrOr("href", ""))
	case isSubmit(match):
		form := match.Closest("form")
		action := htmlutil.ResolveHref(doc.Url, form.AttrOr("action", ""))
		if action == "" {
			action = doc.Url.String()
		}
		values := formValues(form)
		p.mu.Unlock()
		if p.site.OnSubmit == nil {
			return nil
		}
		next = p.site.OnSubmit(action, values)
		if next == "" {
			return nil
		}
		return p.navigate(next)
	}
	p.mu.Unlock()

	if next == "" {
		return nil
	}
	return p.navigate(next)
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, match, err := p.first(ctx, loc)
	if err != nil {
		return err
	}
	match.SetAttr("value", value)
	return nil
}

func (p *Page) Attribute(ctx context.Context, loc browser.Locator, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, match, err := p.first(ctx, loc)
	if err != nil {
		return "", false, err
	}
	value, ok := match.Attr(name)
	return value, ok, nil
}

// Snapshot returns a copy of the current document, later actions on the page
// do not affect it.
func (p *Page) Snapshot(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, fmt.Errorf("nothing has been loaded")
	}
	src, err := goquery.OuterHtml(p.doc.Selection)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	doc.Url = p.doc.Url
	return doc, nil
}

var _ browser.Browser = (*Browser)(nil)
var _ browser.Page = (*Page)(nil)
