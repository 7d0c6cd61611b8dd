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

// readKeyValues reads a table of `<th>label:</th><td>value</td>` rows, later
// rows overwrite earlier ones with the same label.
func readKeyValues(doc *goquery.Document, selector string) map[string]string {
	out := map[string]string{}
	doc.Find(selector).First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		th := tr.Find("th").First()
		td := tr.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		key := htmlutil.Normalize(strings.TrimSuffix(htmlutil.Text(th), ":"))
		out[key] = htmlutil.Text(td)
	})
	return out
}

func (p Portal) ParseStudentInfo(doc *goquery.Document) StudentInfo {
	info := readKeyValues(doc, p.StudentInfoTable)
	result := readKeyValues(doc, p.DegreeResultTable)
	return StudentInfo{
		Degree:       info["Degree"],
		Programme:    info["Programme"],
		SemesterGPA:  info["Semester GPA"],
		DegreeResult: result["Degree Result"],
	}
}

// bodyRows calls fn with the cells of each body row of table that has at
// least one td.
func bodyRows(doc *goquery.Document, table string, fn func(cells *goquery.Selection)) {
	doc.Find(table).First().Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		fn(cells)
	})
}

func (p Portal) ParseStageResults(doc *goquery.Document) []StageResult {
	rows := []StageResult{}
	bodyRows(doc, p.StageTable, func(cells *goquery.Selection) {
		rows = append(rows, StageResult{
			Major:            htmlutil.Text(cells.Eq(0)),
			Stage:            htmlutil.Text(cells.Eq(1)),
			Status:           htmlutil.Text(cells.Eq(2)),
			AttemptedCredits: htmlutil.Text(cells.Eq(3)),
			EarnedCredits:    htmlutil.Text(cells.Eq(4)),
			StageGPA:         htmlutil.Text(cells.Eq(5)),
			Award:            htmlutil.Text(cells.Eq(6)),
			AwardDescription: htmlutil.Text(cells.Eq(7)),
			AwardGPA:         htmlutil.Text(cells.Eq(8)),
		})
	})
	return rows
}

// ParseCourseWork reads the course-work table, a crn cell without a link keeps
// its text as the crn and leaves the url empty.
func (p Portal) ParseCourseWork(doc *goquery.Document, base *url.URL) []CourseWorkRow {
	rows := []CourseWorkRow{}
	bodyRows(doc, p.CourseWorkTable, func(cells *goquery.Selection) {
		crnCell := cells.Eq(1)
		crn := htmlutil.Text(crnCell)
		crnUrl := ""
		if anchors := htmlutil.GetAnchors(base, crnCell.Find("a").First()); len(anchors) > 0 {
			if anchors[0].Name != "" {
				crn = anchors[0].Name
			}
			crnUrl = anchors[0].Url
		}

		rows = append(rows, CourseWorkRow{
			Semester:              htmlutil.Text(cells.Eq(0)),
			CRN:                   crn,
			CRNURL:                crnUrl,
			Module:                htmlutil.Text(cells.Eq(2)),
			ModuleTitle:           htmlutil.Text(cells.Eq(3)),
			Stage:                 htmlutil.Text(cells.Eq(4)),
			Credits:               htmlutil.Text(cells.Eq(5)),
			Grade:                 htmlutil.Text(cells.Eq(6)),
			CompensationAvailable: htmlutil.Text(cells.Eq(7)),
		})
	})
	return rows
}

// ParseDetail reads every section of a detail report.
func (p Portal) ParseDetail(doc *goquery.Document, base *url.URL) ResultDetail {
	return ResultDetail{
		StudentInfo:  p.ParseStudentInfo(doc),
		StageResults: p.ParseStageResults(doc),
		CourseWork:   p.ParseCourseWork(doc, base),
	}
}

// extractDetail opens the detail report of row and reads it.
func extractDetail(ctx context.Context, nav *Navigator, portal Portal, row SummaryRow) (ResultDetail, error) {
	ctx, span := tracer.Start(ctx, "extractDetail")
	defer span.End()

	span.SetAttributes(
		attribute.String("term", row.Term),
		attribute.String("results_url", row.ResultsURL),
	)

	detail, err := func() (ResultDetail, error) {
		err := nav.Goto(ctx, row.ResultsURL, browser.LoadDOMContent)
		if err != nil {
			return ResultDetail{}, err
		}
		err = nav.WaitForLoadState(ctx, browser.LoadNetworkIdle)
		if err != nil {
			return ResultDetail{}, err
		}

		landed, err := nav.URL(ctx)
		if err != nil {
			return ResultDetail{}, err
		}
		if !portal.IsDetailUrl(landed) {
			return ResultDetail{}, fmt.Errorf("%w: expected %s, landed on %s", ErrUnexpectedPage, portal.DetailMarker, landed)
		}

		err = nav.WaitFor(ctx, portal.CourseWorkTable, nav.timeouts.CourseWork, false)
		if err != nil {
			return ResultDetail{}, err
		}
		err = nav.WaitForLoadState(ctx, browser.LoadNetworkIdle)
		if err != nil {
			return ResultDetail{}, err
		}

		var detail ResultDetail
		err = nav.Evaluate(ctx, func(doc *goquery.Document) error {
			detail = portal.ParseDetail(doc, nav.base)
			return nil
		})
		return detail, err
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ResultDetail{}, err
	}

	span.SetAttributes(
		attribute.Int("stage_results", len(detail.StageResults)),
		attribute.Int("course_work", len(detail.CourseWork)),
	)
	return detail, nil
}
