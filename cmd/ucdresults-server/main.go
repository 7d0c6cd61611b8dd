package main

import (
	"flag"
	"log/slog"
	"net/http"
	"time"
	"ucdresults-backend/internal/browser/chrome"
	"ucdresults-backend/internal/components/chrono"
	"ucdresults-backend/internal/components/telemetry"
	"ucdresults-backend/internal/scrapers/ucd"
	"ucdresults-backend/internal/service"
	"ucdresults-backend/pkg/configutil"
	"ucdresults-backend/pkg/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "The config file to read.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfigOr(*configPath, DefaultConfig())
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	opts, err := cfg.ScraperOptions()
	if err != nil {
		serviceutil.Fatal("read scraper options", err)
	}

	tel := telemetry.SlogAPI{}
	launcher := chrome.NewLauncher(cfg.Browser.ChromeOptions(), tel)
	scraper, err := ucd.NewScraper(launcher, opts, tel)
	if err != nil {
		serviceutil.Fatal("init scraper", err)
	}
	prober := ucd.NewProber(opts.Portal, tel)

	svc := service.NewService(scraper, prober, service.Options{
		Limits: cfg.Limits,
		Cache:  cfg.Cache,
	}, tel)

	if cfg.ProbeSchedule != "" {
		cron := chrono.NewStandardCron(time.UTC, tel)
		defer cron.Stop()
		err = svc.Watch(cron, cfg.ProbeSchedule)
		if err != nil {
			serviceutil.Fatal("schedule portal probe", err)
		}
	}

	mux := http.NewServeMux()
	svc.Register(mux)

	slog.Info(
		"starting ucd results server",
		"portal", opts.Portal.BaseUrl,
		"max_sessions", cfg.Limits.MaxSessions,
		"remote_browser", cfg.Browser.RemoteUrl != "",
	)
	err = serviceutil.StartHttpServer(ctx, cfg.Port, mux, time.Second*30)
	if err != nil {
		serviceutil.Fatal("http server", err)
	}
}
