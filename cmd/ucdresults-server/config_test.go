package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"ucdresults-backend/internal/scrapers/ucd"
	"ucdresults-backend/internal/service"
	"ucdresults-backend/pkg/configutil"

	"github.com/stretchr/testify/require"
)

func TestScraperOptions(t *testing.T) {
	cfg := Config{
		Portal: ucd.Portal{
			BaseUrl:      "https://staging.example.ie/usis/",
			SummaryTable: "#RG160-1Q-NEW",
		},
		Timeouts: TimeoutsConfig{
			Login: 120,
			Page:  -1,
		},
	}

	opts, err := cfg.ScraperOptions()
	require.NoError(t, err)

	defaults := ucd.DefaultPortal()
	require.Equal(t, "https://staging.example.ie/usis/", opts.Portal.BaseUrl)
	require.Equal(t, "#RG160-1Q-NEW", opts.Portal.SummaryTable)
	require.Equal(t, defaults.WelcomePage, opts.Portal.WelcomePage)
	require.Equal(t, defaults.DetailMarker, opts.Portal.DetailMarker)

	require.Equal(t, time.Minute*2, opts.Timeouts.Login)
	require.Equal(t, ucd.DefaultTimeouts().Page, opts.Timeouts.Page)
	require.Equal(t, ucd.DefaultTimeouts().Teardown, opts.Timeouts.Teardown)
}

func TestBrowserConfig(t *testing.T) {
	require.True(t, BrowserConfig{}.ChromeOptions().Headless)
	require.False(t, BrowserConfig{Headful: true}.ChromeOptions().Headless)
}

func readTestConfig(t *testing.T, contents string) Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	cfg, err := configutil.ReadConfigOr(path, DefaultConfig())
	require.NoError(t, err)
	return cfg
}

func TestCacheConfig(t *testing.T) {
	cfg, err := configutil.ReadConfigOr(filepath.Join(t.TempDir(), "config.json5"), DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Cache.Size)

	cfg = readTestConfig(t, `{ cache: { size: 0 } }`)
	require.Equal(t, 0, cfg.Cache.Size)
	require.Equal(t, 600, cfg.Cache.Ttl)

	cfg = readTestConfig(t, `{ port: 9000, cache: { size: 16, ttl: 30 } }`)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 16, cfg.Cache.Size)
	require.Equal(t, 30, cfg.Cache.Ttl)
	require.Equal(t, service.DefaultLimits(), cfg.Limits)
}
