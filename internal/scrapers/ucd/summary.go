package ucd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"ucdresults-backend/internal/browser"
	"ucdresults-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_summary_skipped_row = "summary.skipped-row"

// followLink navigates to the href of the first visible match of selector,
// failures to find the link are reported as notFound.
func followLink(ctx context.Context, nav *Navigator, selector string, notFound error) error {
	href, err := nav.Locate(browser.CSS(selector)).Attr(ctx, "href", nav.timeouts.Link)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", notFound, err)
	}
	if strings.TrimSpace(href) == "" {
		return fmt.Errorf("%w: %s has an empty href", notFound, selector)
	}

	err = nav.Goto(ctx, nav.ResolveAbsoluteURL(href), browser.LoadDOMContent)
	if err != nil {
		return err
	}
	return nav.WaitForLoadState(ctx, browser.LoadNetworkIdle)
}

// ParseSummaryTable reads the rows of the results summary report in order.
// Rows that do not have six cells or do not link to a detail report are
// skipped, a table without any remaining rows is ErrNoResults.
func (p Portal) ParseSummaryTable(doc *goquery.Document, base *url.URL) ([]SummaryRow, error) {
	rows, _, err := p.parseSummaryTable(doc, base)
	return rows, err
}

// parseSummaryTable also returns the terms of full rows that were skipped
// for lacking a detail link.
func (p Portal) parseSummaryTable(doc *goquery.Document, base *url.URL) ([]SummaryRow, []string, error) {
	table := doc.Find(p.SummaryTable).First()
	if table.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: %s not found", ErrNoResults, p.SummaryTable)
	}

	marker := strings.ToLower(p.DetailMarker)
	rows := []SummaryRow{}
	var skipped []string
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < 6 {
			return
		}
		resultsUrl := ""
		for _, a := range htmlutil.GetAnchors(base, cells.Eq(5).Find("a[href]")) {
			if a.Url != "" && strings.Contains(strings.ToLower(a.Href), marker) {
				resultsUrl = a.Url
				break
			}
		}
		term := htmlutil.Text(cells.Eq(0))
		if resultsUrl == "" {
			skipped = append(skipped, term)
			return
		}

		rows = append(rows, SummaryRow{
			Term:      term,
			Stage:     htmlutil.Text(cells.Eq(1)),
			Year:      htmlutil.Text(cells.Eq(2)),
			Programme: htmlutil.Text(cells.Eq(3)),
			// majors spanning several lines are separated by <br>, Text
			// turns those into spaces
			Major:      htmlutil.Text(cells.Eq(4)),
			ResultsURL: resultsUrl,
		})
	})

	if len(rows) == 0 {
		return nil, skipped, ErrNoResults
	}
	return rows, skipped, nil
}

// extractSummary navigates from the home menu to the results summary report
// and reads it.
func extractSummary(ctx context.Context, nav *Navigator, portal Portal) ([]SummaryRow, error) {
	ctx, span := tracer.Start(ctx, "extractSummary")
	defer span.End()

	rows, err := func() ([]SummaryRow, error) {
		err := followLink(ctx, nav, portal.RegistrationLink, ErrMenuLinkNotFound)
		if err != nil {
			return nil, err
		}
		err = followLink(ctx, nav, portal.ResultsLink, ErrReportLinkNotFound)
		if err != nil {
			return nil, err
		}
		err = nav.WaitFor(ctx, portal.SummaryTable, nav.timeouts.SummaryTable, true)
		if err != nil {
			return nil, err
		}

		var rows []SummaryRow
		var skipped []string
		err = nav.Evaluate(ctx, func(doc *goquery.Document) error {
			var err error
			rows, skipped, err = portal.parseSummaryTable(doc, nav.base)
			return err
		})
		for _, term := range skipped {
			nav.tel.ReportDebug(report_summary_skipped_row, "term", term)
		}
		return rows, err
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}
