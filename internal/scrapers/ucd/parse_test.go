package ucd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testBase = "https://hub.ucd.ie/usis/"

func readFixture(t testing.TB, name string) string {
	content, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(content)
}

func parseDoc(t testing.TB, src string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func testBaseUrl(t testing.TB) *url.URL {
	base, err := url.Parse(testBase)
	require.NoError(t, err)
	return base
}

func TestParseSummaryTable(t *testing.T) {
	portal := DefaultPortal()
	doc := parseDoc(t, readFixture(t, "summary.html"))

	rows, err := portal.ParseSummaryTable(doc, testBaseUrl(t))
	require.NoError(t, err)

	expected := []SummaryRow{
		{
			Term:       "Autumn 2023",
			Stage:      "S2",
			Year:       "2023/24",
			Programme:  "B.Sc. Computer Science",
			Major:      "Computer Science with Data Science",
			ResultsURL: testBase + "W_HU_REPORTING.P_DISPLAY_REPORT?p_report=RG160-2R&p_parameters=T1",
		},
		{
			Term:       "Spring 2024",
			Stage:      "S2",
			Year:       "2023/24",
			Programme:  "B.Sc. Computer Science",
			Major:      "Major",
			ResultsURL: testBase + "W_HU_REPORTING.P_DISPLAY_REPORT?p_report=RG160-2R&p_parameters=T2",
		},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatal(diff)
	}
}

func summaryWithRows(n int) string {
	var body strings.Builder
	for i := 0; i < n; i++ {
		body.WriteString("<tr><td>Term ")
		body.WriteString(string(rune('A' + i)))
		body.WriteString("</td><td>S1</td><td>2024/25</td><td>Programme</td><td>Major</td>")
		body.WriteString(`<td><a href="W_HU_REPORTING.P_DISPLAY_REPORT?p_report=RG160-2R&amp;p_parameters=`)
		body.WriteString(string(rune('A' + i)))
		body.WriteString(`">View</a></td></tr>`)
	}
	return `<table id="RG160-1Q"><tbody>` + body.String() + `</tbody></table>`
}

func TestParseSummaryTableRowCount(t *testing.T) {
	portal := DefaultPortal()
	for _, n := range []int{1, 3, 12} {
		rows, err := portal.ParseSummaryTable(parseDoc(t, summaryWithRows(n)), testBaseUrl(t))
		require.NoError(t, err)
		require.Len(t, rows, n)

		for i, row := range rows {
			suffix := string(rune('A' + i))
			require.Equal(t, "Term "+suffix, row.Term)

			parsed, err := url.Parse(row.ResultsURL)
			require.NoError(t, err)
			require.True(t, parsed.IsAbs(), row.ResultsURL)
			require.True(t, strings.HasSuffix(row.ResultsURL, "p_parameters="+suffix), row.ResultsURL)
		}
	}
}

func TestParseSummaryTableEmpty(t *testing.T) {
	portal := DefaultPortal()

	_, err := portal.ParseSummaryTable(parseDoc(t, readFixture(t, "summary_empty.html")), testBaseUrl(t))
	require.ErrorIs(t, err, ErrNoResults)

	_, err = portal.ParseSummaryTable(parseDoc(t, summaryWithRows(0)), testBaseUrl(t))
	require.ErrorIs(t, err, ErrNoResults)

	_, err = portal.ParseSummaryTable(parseDoc(t, "<p>nothing</p>"), testBaseUrl(t))
	require.ErrorIs(t, err, ErrNoResults)
}

const summaryWithUnlinkedRow = `<table id="RG160-1Q"><tbody>
<tr><td>Autumn 2023</td><td>S2</td><td>2023/24</td><td>Programme</td><td>Major</td>
	<td><a href="W_HU_REPORTING.P_DISPLAY_REPORT?p_report=RG160-2R&p_parameters=T1">View</a></td></tr>
<tr><td>Summer 2024</td><td>S3</td><td>2023/24</td><td>Programme</td><td>Major</td><td>Pending</td></tr>
<tr><td colspan="6">&nbsp;</td></tr>
</tbody></table>`

func TestParseSummaryTableSkippedRows(t *testing.T) {
	portal := DefaultPortal()

	rows, skipped, err := portal.parseSummaryTable(parseDoc(t, summaryWithUnlinkedRow), testBaseUrl(t))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Autumn 2023", rows[0].Term)
	require.Equal(t, []string{"Summer 2024"}, skipped)
}

func TestParseStudentInfo(t *testing.T) {
	portal := DefaultPortal()

	info := portal.ParseStudentInfo(parseDoc(t, readFixture(t, "detail.html")))
	expected := StudentInfo{
		Degree:       "Bachelor of Science",
		Programme:    "Computer Science",
		SemesterGPA:  "3.42",
		DegreeResult: "Second Class Honours, Grade 1",
	}
	if diff := cmp.Diff(expected, info); diff != "" {
		t.Fatal(diff)
	}

	info = portal.ParseStudentInfo(parseDoc(t, readFixture(t, "detail_no_coursework.html")))
	expected = StudentInfo{
		Degree:    "Bachelor of Science",
		Programme: "Computer Science",
	}
	if diff := cmp.Diff(expected, info); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseStageResults(t *testing.T) {
	portal := DefaultPortal()

	stages := portal.ParseStageResults(parseDoc(t, readFixture(t, "detail.html")))
	expected := []StageResult{{
		Major:            "Computer Science",
		Stage:            "2",
		Status:           "Progressing",
		AttemptedCredits: "60",
		EarnedCredits:    "55",
		StageGPA:         "3.42",
		Award:            "",
		AwardDescription: "",
		AwardGPA:         "N/A",
	}}
	if diff := cmp.Diff(expected, stages); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseCourseWork(t *testing.T) {
	portal := DefaultPortal()

	rows := portal.ParseCourseWork(parseDoc(t, readFixture(t, "detail.html")), testBaseUrl(t))
	expected := []CourseWorkRow{
		{
			Semester:              "Autumn",
			CRN:                   "10123",
			CRNURL:                testBase + "W_HU_REPORTING.P_DISPLAY_REPORT?p_report=CRN&p_crn=10123",
			Module:                "COMP20010",
			ModuleTitle:           "Data Structures and Algorithms",
			Stage:                 "2",
			Credits:               "5",
			Grade:                 "A-",
			CompensationAvailable: "No",
		},
		{
			Semester:              "Autumn",
			CRN:                   "10456",
			CRNURL:                "https://hub.ucd.ie/usis/crn?id=10456",
			Module:                "COMP20080",
			ModuleTitle:           "Databases",
			Stage:                 "2",
			Credits:               "5",
			Grade:                 "B+",
			CompensationAvailable: "No",
		},
		{
			Semester:              "Autumn",
			CRN:                   "10789",
			CRNURL:                "",
			Module:                "STAT20060",
			ModuleTitle:           "Statistics & Probability",
			Stage:                 "2",
			Credits:               "5",
			Grade:                 "D",
			CompensationAvailable: "Yes",
		},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseDetailMissingCourseWork(t *testing.T) {
	portal := DefaultPortal()

	detail := portal.ParseDetail(parseDoc(t, readFixture(t, "detail_no_coursework.html")), testBaseUrl(t))
	require.NotNil(t, detail.CourseWork)
	require.Empty(t, detail.CourseWork)
	require.Len(t, detail.StageResults, 1)
	require.Equal(t, "Bachelor of Science", detail.StudentInfo.Degree)
}

func TestCredentialsValidate(t *testing.T) {
	testCases := []struct {
		creds Credentials
		valid bool
	}{
		{creds: Credentials{Username: "alice", Password: "secret"}, valid: true},
		{creds: Credentials{Username: "  alice ", Password: " secret"}, valid: true},
		{creds: Credentials{Username: "", Password: "secret"}},
		{creds: Credentials{Username: "alice", Password: "   "}},
		{creds: Credentials{}},
	}

	for _, test := range testCases {
		creds, err := test.creds.Validate()
		if !test.valid {
			require.ErrorIs(t, err, ErrInvalidCredentialsInput)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, Credentials{Username: "alice", Password: "secret"}, creds)
	}

	require.NotContains(t, Credentials{Username: "alice", Password: "secret"}.String(), "secret")
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, "", ErrorKind(nil))
	require.Equal(t, "menu_link_not_found", ErrorKind(
		fmt.Errorf("%w: %w", ErrMenuLinkNotFound, ErrElementNotFound),
	))
	require.Equal(t, "authentication_timeout", ErrorKind(
		fmt.Errorf("%w: %w", ErrAuthenticationTimeout, errWaitTimeout),
	))
	require.Equal(t, "navigation", ErrorKind(fmt.Errorf("%w: %w", ErrNavigation, os.ErrDeadlineExceeded)))
	require.Equal(t, "internal", ErrorKind(os.ErrNotExist))
}
