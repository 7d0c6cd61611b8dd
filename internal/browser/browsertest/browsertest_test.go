package browsertest

import (
	"context"
	"net/url"
	"testing"
	"ucdresults-backend/internal/browser"

	"github.com/stretchr/testify/require"
)

const (
	homeUrl  = "https://portal.test/home"
	loginUrl = "https://portal.test/login"
)

func newSite() *Site {
	site := &Site{
		Pages: map[string]string{
			homeUrl: `<html><body><a href="login">Log in</a></body></html>`,
			loginUrl: `<html><body><form action="/auth">
				<label for="u">Username</label><input id="u" name="user">
				<button>Submit</button>
			</form></body></html>`,
		},
	}
	site.OnSubmit = func(action string, values url.Values) string {
		if action == "https://portal.test/auth" && values.Get("user") == "alice" {
			return homeUrl
		}
		return ""
	}
	return site
}

func TestSiteNavigation(t *testing.T) {
	ctx := context.Background()
	site := newSite()

	b, err := site.Launcher().Launch(ctx)
	require.NoError(t, err)
	p, err := b.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Goto(ctx, homeUrl, browser.LoadDOMContent))
	require.NoError(t, p.Click(ctx, browser.ByRole(browser.RoleLink, "log in")))

	current, err := p.URL(ctx)
	require.NoError(t, err)
	require.Equal(t, loginUrl, current)

	// wrong value keeps the page
	require.NoError(t, p.Fill(ctx, browser.ByRole(browser.RoleTextbox, "username"), "bob"))
	require.NoError(t, p.Click(ctx, browser.ByRole(browser.RoleButton, "submit")))
	current, err = p.URL(ctx)
	require.NoError(t, err)
	require.Equal(t, loginUrl, current)

	require.NoError(t, p.Fill(ctx, browser.ByRole(browser.RoleTextbox, "username"), "alice"))
	require.NoError(t, p.Click(ctx, browser.ByRole(browser.RoleButton, "submit")))
	current, err = p.URL(ctx)
	require.NoError(t, err)
	require.Equal(t, homeUrl, current)

	require.Equal(t, []string{homeUrl, loginUrl, homeUrl}, site.Visited())

	require.NoError(t, b.Close(ctx))
	require.NoError(t, b.Close(ctx))
	require.Equal(t, 1, site.Launches())
	require.Equal(t, 1, site.Closes())
}

func TestSiteErrors(t *testing.T) {
	ctx := context.Background()
	site := newSite()

	b, err := site.Launcher().Launch(ctx)
	require.NoError(t, err)
	p, err := b.NewPage(ctx)
	require.NoError(t, err)

	err = p.Goto(ctx, "https://portal.test/missing", browser.LoadDOMContent)
	require.ErrorIs(t, err, browser.ErrNavigationFailed)

	require.NoError(t, p.Goto(ctx, homeUrl, browser.LoadDOMContent))
	err = p.Click(ctx, browser.CSS("#nothing"))
	require.ErrorIs(t, err, browser.ErrNoMatch)

	_, _, err = p.Attribute(ctx, browser.CSS("#nothing"), "href")
	require.ErrorIs(t, err, browser.ErrNoMatch)

	href, ok, err := p.Attribute(ctx, browser.CSS("a"), "href")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "login", href)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Probe(cancelled, browser.CSS("a"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSiteRedirect(t *testing.T) {
	ctx := context.Background()
	site := newSite()
	site.Redirects = map[string]string{"https://portal.test/old": homeUrl}

	b, err := site.Launcher().Launch(ctx)
	require.NoError(t, err)
	p, err := b.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Goto(ctx, "https://portal.test/old", browser.LoadNetworkIdle))
	current, err := p.URL(ctx)
	require.NoError(t, err)
	require.Equal(t, homeUrl, current)
}

func TestSnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	site := newSite()
	b, err := site.Launcher().Launch(ctx)
	require.NoError(t, err)
	p, err := b.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Goto(ctx, loginUrl, browser.LoadDOMContent))
	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, loginUrl, snap.Url.String())

	require.NoError(t, p.Fill(ctx, browser.CSS("#u"), "changed"))
	_, ok := snap.Find("#u").Attr("value")
	require.False(t, ok)
}
