// Package ucd scrapes academic results from the UCD student information
// portal by driving a browser through its login and results reports.
package ucd

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"ucdresults-backend/internal/browser"
	"ucdresults-backend/internal/components/assert"
	"ucdresults-backend/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_scraper_session  = "scraper.session"
	report_scraper_teardown = "scraper.teardown"
	report_scraper_results  = "scraper.results"
)

type Options struct {
	Portal   Portal
	Timeouts Timeouts
}

func DefaultOptions() Options {
	return Options{
		Portal:   DefaultPortal(),
		Timeouts: DefaultTimeouts(),
	}
}

// Scraper runs independent sessions, each call launches and closes its own
// browser so it is safe to call concurrently.
type Scraper struct {
	launcher browser.Launcher
	portal   Portal
	home     *regexp.Regexp
	timeouts Timeouts
	metrics  instruments
	tel      telemetry.API
}

func NewScraper(launcher browser.Launcher, opts Options, tel telemetry.API) (Scraper, error) {
	assert.NotNil(launcher)

	home, err := opts.Portal.Validate()
	if err != nil {
		return Scraper{}, err
	}
	metrics, err := newInstruments(otel.GetMeterProvider().Meter(library_name))
	if err != nil {
		return Scraper{}, err
	}
	return Scraper{
		launcher: launcher,
		portal:   opts.Portal,
		home:     home,
		timeouts: opts.Timeouts,
		metrics:  metrics,
		tel:      telemetry.NewScopedAPI("ucd", tel),
	}, nil
}

// Scrape logs in with creds and reads the summary report and every detail
// report it links to. Results are in summary table order, on error no
// results are returned.
func (s Scraper) Scrape(ctx context.Context, creds Credentials) ([]AggregatedResult, error) {
	var results []AggregatedResult
	err := s.session(ctx, "Scrape", creds, func(ctx context.Context, nav *Navigator) error {
		rows, err := extractSummary(ctx, nav, s.portal)
		if err != nil {
			return err
		}

		collected := make([]AggregatedResult, 0, len(rows))
		for _, row := range rows {
			detail, err := extractDetail(ctx, nav, s.portal, row)
			if err != nil {
				return fmt.Errorf("detail of %q: %w", row.Term, err)
			}
			collected = append(collected, AggregatedResult{
				Summary: row,
				Detail:  detail,
			})
		}

		s.tel.ReportDebug(report_scraper_results, "summary_rows", len(rows), "details", len(collected))
		results = collected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ScrapeSummary logs in with creds and only reads the summary report.
func (s Scraper) ScrapeSummary(ctx context.Context, creds Credentials) ([]SummaryRow, error) {
	var rows []SummaryRow
	err := s.session(ctx, "ScrapeSummary", creds, func(ctx context.Context, nav *Navigator) error {
		var err error
		rows, err = extractSummary(ctx, nav, s.portal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// session launches a browser, logs in and runs fn on the authenticated page.
// The browser is closed on every path out of session, including when ctx is
// cancelled.
func (s Scraper) session(ctx context.Context, name string, creds Credentials, fn func(ctx context.Context, nav *Navigator) error) (err error) {
	creds, err = creds.Validate()
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	s.metrics.sessions.Add(ctx, 1)
	defer func() {
		s.metrics.duration.Record(
			context.WithoutCancel(ctx),
			time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("success", err == nil)),
		)
		if err == nil {
			return
		}
		kind := ErrorKind(err)
		s.metrics.failures.Add(
			context.WithoutCancel(ctx), 1,
			metric.WithAttributes(attribute.String("kind", kind)),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.tel.ReportBroken(report_scraper_session, name, kind, err)
	}()

	b, err := s.launcher.Launch(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeouts.Teardown)
		defer cancel()
		closeErr := b.Close(closeCtx)
		if closeErr != nil {
			s.tel.ReportWarning(report_scraper_teardown, closeErr)
		}
	}()

	page, err := b.NewPage(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("open page: %w", err)
	}
	nav, err := NewNavigator(page, s.portal.BaseUrl, s.timeouts, s.tel)
	if err != nil {
		return err
	}

	auth := &authFlow{
		nav:    nav,
		portal: s.portal,
		home:   s.home,
		tel:    s.tel,
	}
	err = auth.login(ctx, creds)
	if err != nil {
		return err
	}
	return fn(ctx, nav)
}
