package ucd

import (
	"bytes"
	"context"
	"fmt"
	"time"
	"ucdresults-backend/internal/browser"
	"ucdresults-backend/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const report_prober_probe = "prober.probe"

// ProbeResult describes the welcome page as seen without a browser.
type ProbeResult struct {
	Url        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Latency    time.Duration `json:"latency"`
	// LoginLink is true when the welcome page still links to the login form.
	LoginLink bool `json:"login_link"`
}

// Prober checks that the portal is reachable and still looks the way the
// scraper expects, it never logs in.
type Prober struct {
	client *resty.Client
	portal Portal
	tel    telemetry.API
}

func NewProber(portal Portal, tel telemetry.API) Prober {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 15)

	scoped := telemetry.NewScopedAPI("ucd_probe", tel)
	telemetry.InstrumentResty(client, scoped)

	return Prober{
		client: client,
		portal: portal,
		tel:    scoped,
	}
}

func (p Prober) Probe(ctx context.Context) (ProbeResult, error) {
	ctx, span := tracer.Start(ctx, "Probe", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	result, err := p.probe(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.tel.ReportWarning(report_prober_probe, err)
		return result, err
	}
	return result, nil
}

func (p Prober) probe(ctx context.Context) (ProbeResult, error) {
	result := ProbeResult{Url: p.portal.WelcomeUrl()}

	start := time.Now()
	res, err := p.client.R().
		SetContext(ctx).
		Get(result.Url)
	result.Latency = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("%w: get %s: %w", ErrNavigation, result.Url, err)
	}
	result.StatusCode = res.StatusCode()
	if res.IsError() {
		return result, fmt.Errorf("%w: get %s: status %s", ErrNavigation, result.Url, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return result, fmt.Errorf("parse welcome page: %w", err)
	}
	state := browser.StateOf(doc.Selection, browser.ByRole(browser.RoleLink, p.portal.LoginLink))
	result.LoginLink = state.Found()
	if !result.LoginLink {
		return result, fmt.Errorf("%w: %s has no %q link", ErrElementNotFound, result.Url, p.portal.LoginLink)
	}
	return result, nil
}
