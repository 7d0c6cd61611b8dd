package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	devenv "ucdresults-backend/dev/env"
	"ucdresults-backend/internal/scrapers/ucd"

	"github.com/jedib0t/go-pretty/v6/table"
)

// writeJson writes value to path, or to stdout when path is empty.
func writeJson(path string, value any) error {
	var out io.Writer = os.Stdout
	if path != "" {
		resolved, err := devenv.ResolvePath(path)
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		f, err := os.Create(resolved)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	err := enc.Encode(value)
	if err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func printSummary(rows []ucd.SummaryRow) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Term", "Stage", "Year", "Programme", "Major"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Term, r.Stage, r.Year, r.Programme, r.Major})
	}
	t.Render()
}

func printResult(result ucd.AggregatedResult) {
	info := result.Detail.StudentInfo

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("%s %s (%s)", result.Summary.Term, result.Summary.Year, result.Summary.Programme)
	t.AppendRows([]table.Row{
		{"Degree", info.Degree},
		{"Programme", info.Programme},
		{"Semester GPA", info.SemesterGPA},
		{"Degree Result", info.DegreeResult},
	})
	t.Render()

	if len(result.Detail.StageResults) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Major", "Stage", "Status", "Attempted", "Earned", "GPA", "Award"})
		for _, s := range result.Detail.StageResults {
			t.AppendRow(table.Row{s.Major, s.Stage, s.Status, s.AttemptedCredits, s.EarnedCredits, s.StageGPA, s.Award})
		}
		t.Render()
	}

	if len(result.Detail.CourseWork) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Semester", "CRN", "Module", "Title", "Credits", "Grade"})
		for _, c := range result.Detail.CourseWork {
			t.AppendRow(table.Row{c.Semester, c.CRN, c.Module, c.ModuleTitle, c.Credits, c.Grade})
		}
		t.Render()
	}
}
