package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestNormalize(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "", expected: ""},
		{input: "  Autumn\u00a02023 ", expected: "Autumn 2023"},
		{input: "B.Sc.\n\t Computer   Science", expected: "B.Sc. Computer Science"},
		{input: "\u00a0\u00a0", expected: ""},
		{input: "3.42", expected: "3.42"},
	}

	for _, row := range table {
		once := Normalize(row.input)
		require.Equal(t, row.expected, once)
		require.Equal(t, once, Normalize(once), "normalize must be idempotent")
	}
}

func TestTextLineBreaks(t *testing.T) {
	doc := parse(t, `<table><tr><td id="major">Computer<br>Science<br/>with&nbsp;Data   Science</td></tr></table>`)
	require.Equal(t, "Computer Science with Data Science", Text(doc.Find("#major")))

	doc = parse(t, `<div id="x"><span>Grade</span><div>A+</div></div>`)
	require.Equal(t, "Grade A+", Text(doc.Find("#x")))

	require.Equal(t, "", Text(doc.Find("#missing")))
}

func TestTextSkipsScripts(t *testing.T) {
	doc := parse(t, `<table><tr><td id="x">GPA<script>var a = 1;</script> 3.2</td></tr></table>`)
	require.Equal(t, "GPA 3.2", Text(doc.Find("#x")))
}

func TestResolveHref(t *testing.T) {
	base, err := url.Parse("https://hub.ucd.ie/usis/")
	require.NoError(t, err)

	require.Equal(t,
		"https://hub.ucd.ie/usis/W_HU_REPORTING.P_DISPLAY_REPORT?p_report=RG160-2R",
		ResolveHref(base, "W_HU_REPORTING.P_DISPLAY_REPORT?p_report=RG160-2R"),
	)
	require.Equal(t, "https://hub.ucd.ie/other", ResolveHref(base, "/other"))
	require.Equal(t, "https://example.com/x", ResolveHref(base, "https://example.com/x"))
	require.Equal(t, "", ResolveHref(base, "  "))
}

func TestGetAnchors(t *testing.T) {
	base, err := url.Parse("https://hub.ucd.ie/usis/")
	require.NoError(t, err)
	doc := parse(t, `<p><a href="a?x=1"> First
		link</a><a>no href</a></p>`)

	anchors := GetAnchors(base, doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "First link", Href: "a?x=1", Url: "https://hub.ucd.ie/usis/a?x=1"},
		{Name: "no href", Href: "", Url: ""},
	}, anchors)
}
