package htmlutil

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Normalize converts non-breaking spaces to regular spaces, collapses runs of
// whitespace into a single space and trims the ends. It is idempotent.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// separators are elements whose boundaries are rendered as whitespace.
var separators = map[atom.Atom]bool{
	atom.Br:    true,
	atom.P:     true,
	atom.Div:   true,
	atom.Li:    true,
	atom.Tr:    true,
	atom.Td:    true,
	atom.Th:    true,
	atom.Table: true,
}

// GetText returns the raw text content of a node, line breaks and block
// boundaries become spaces so words on separate lines never get glued together.
func GetText(node *html.Node) string {
	var buffer strings.Builder
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *strings.Builder) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if node.DataAtom == atom.Script || node.DataAtom == atom.Style {
			return
		}
	}

	sep := node.Type == html.ElementNode && separators[node.DataAtom]
	if sep {
		buffer.WriteByte(' ')
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
	if sep {
		buffer.WriteByte(' ')
	}
}

// Text is the normalized text of every node in the selection.
func Text(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	var buffer strings.Builder
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
		buffer.WriteByte(' ')
	}
	return Normalize(buffer.String())
}

// ResolveHref resolves a possibly relative href against base, an empty or
// unparsable href yields an empty string.
func ResolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

type Anchor struct {
	Name string
	Href string
	Url  string
}

// GetAnchors reads every anchor in the selection, Url is Href resolved
// against base.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	sel.Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		anchors = append(anchors, Anchor{
			Name: Text(s),
			Href: href,
			Url:  ResolveHref(base, href),
		})
	})
	return anchors
}
