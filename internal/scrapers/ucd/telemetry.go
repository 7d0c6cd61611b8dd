package ucd

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const library_name = "ucdresults.scrapers.ucd"

var tracer = otel.Tracer(library_name)

type instruments struct {
	sessions metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (instruments, error) {
	sessions, err := meter.Int64Counter(
		"ucd.scrape.sessions",
		metric.WithDescription("Browser sessions started."),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("sessions counter: %w", err)
	}
	failures, err := meter.Int64Counter(
		"ucd.scrape.failures",
		metric.WithDescription("Browser sessions that failed, by error kind."),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("failures counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"ucd.scrape.duration",
		metric.WithDescription("Duration of a browser session."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("duration histogram: %w", err)
	}
	return instruments{
		sessions: sessions,
		failures: failures,
		duration: duration,
	}, nil
}
