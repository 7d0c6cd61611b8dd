package main

import (
	"time"
	"ucdresults-backend/internal/browser/chrome"
	"ucdresults-backend/internal/scrapers/ucd"
	"ucdresults-backend/internal/service"

	"dario.cat/mergo"
)

type BrowserConfig struct {
	// Headful shows the browser window, it is only useful for debugging.
	Headful   bool   `json:"headful"`
	ExecPath  string `json:"exec_path"`
	RemoteUrl string `json:"remote_url"`
	UserAgent string `json:"user_agent"`
	NoSandbox bool   `json:"no_sandbox"`
}

func (c BrowserConfig) ChromeOptions() chrome.Options {
	return chrome.Options{
		Headless:  !c.Headful,
		ExecPath:  c.ExecPath,
		RemoteUrl: c.RemoteUrl,
		UserAgent: c.UserAgent,
		NoSandbox: c.NoSandbox,
	}
}

// TimeoutsConfig is in seconds, zero keeps the default.
type TimeoutsConfig struct {
	Page         int `json:"page"`
	Login        int `json:"login"`
	Link         int `json:"link"`
	Action       int `json:"action"`
	SummaryTable int `json:"summary_table"`
	CourseWork   int `json:"course_work"`
	Teardown     int `json:"teardown"`
}

func seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

func (c TimeoutsConfig) Timeouts() ucd.Timeouts {
	defaults := ucd.DefaultTimeouts()
	return ucd.Timeouts{
		Page:         seconds(c.Page, defaults.Page),
		Login:        seconds(c.Login, defaults.Login),
		Link:         seconds(c.Link, defaults.Link),
		Action:       seconds(c.Action, defaults.Action),
		SummaryTable: seconds(c.SummaryTable, defaults.SummaryTable),
		CourseWork:   seconds(c.CourseWork, defaults.CourseWork),
		Teardown:     seconds(c.Teardown, defaults.Teardown),
	}
}

type Config struct {
	Port int `json:"port"`
	// Portal overrides individual fields of the default portal description.
	Portal   ucd.Portal           `json:"portal"`
	Browser  BrowserConfig        `json:"browser"`
	Timeouts TimeoutsConfig       `json:"timeouts"`
	Limits   service.LimitsConfig `json:"limits"`
	Cache    service.CacheConfig  `json:"cache"`
	// ProbeSchedule is a cron spec (UTC) for checking the portal in the
	// background, empty disables it.
	ProbeSchedule string `json:"probe_schedule"`
}

func DefaultConfig() Config {
	return Config{
		Port:   8000,
		Portal: ucd.DefaultPortal(),
		Limits: service.DefaultLimits(),
		// the cache stays off unless the config file gives it a size
		Cache: service.CacheConfig{
			Ttl: 600,
		},
	}
}

func (c Config) ScraperOptions() (ucd.Options, error) {
	portal := c.Portal
	err := mergo.Merge(&portal, ucd.DefaultPortal())
	if err != nil {
		return ucd.Options{}, err
	}
	return ucd.Options{
		Portal:   portal,
		Timeouts: c.Timeouts.Timeouts(),
	}, nil
}
