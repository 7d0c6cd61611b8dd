package browser

import (
	"fmt"
	"strings"
	"ucdresults-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Role is an ARIA role, only the roles the scrapers need are supported.
type Role string

const (
	RoleButton  Role = "button"
	RoleLink    Role = "link"
	RoleTextbox Role = "textbox"
)

// Locator identifies elements either by CSS selector, or by role and a
// case-insensitive substring of their accessible name. When both are set the
// selector narrows the candidates before role and name are checked.
type Locator struct {
	Selector string
	Role     Role
	Name     string
}

func CSS(selector string) Locator {
	return Locator{Selector: selector}
}

func ByRole(role Role, name string) Locator {
	return Locator{Role: role, Name: name}
}

func (l Locator) String() string {
	switch {
	case l.Role != "" && l.Selector != "":
		return fmt.Sprintf("%s >> role=%s[name~=%q]", l.Selector, l.Role, l.Name)
	case l.Role != "":
		return fmt.Sprintf("role=%s[name~=%q]", l.Role, l.Name)
	default:
		return l.Selector
	}
}

var implicitRoles = map[Role]string{
	RoleButton: `button, input[type=submit], input[type=button], input[type=reset], input[type=image], [role=button]`,
	RoleLink:   `a[href], area[href], [role=link]`,
	RoleTextbox: `input:not([type]), input[type=text], input[type=email], input[type=password], ` +
		`input[type=search], input[type=tel], input[type=url], textarea, [role=textbox]`,
}

// RoleOf returns the ARIA role of the first element in the selection, an
// explicit role attribute wins over the implicit one.
func RoleOf(sel *goquery.Selection) Role {
	if explicit, ok := sel.Attr("role"); ok && explicit != "" {
		return Role(strings.ToLower(strings.Fields(explicit)[0]))
	}
	for role, css := range implicitRoles {
		if sel.Is(css) {
			return role
		}
	}
	return ""
}

// AccessibleName is a simplified version of the accname computation, it covers
// aria-label, aria-labelledby, associated labels, placeholders, values of
// input buttons and text content.
func AccessibleName(doc *goquery.Selection, sel *goquery.Selection) string {
	if label := htmlutil.Normalize(sel.AttrOr("aria-label", "")); label != "" {
		return label
	}
	if ids := strings.Fields(sel.AttrOr("aria-labelledby", "")); len(ids) > 0 {
		var parts []string
		for _, id := range ids {
			parts = append(parts, htmlutil.Text(doc.Find("#"+cssEscape(id))))
		}
		if name := htmlutil.Normalize(strings.Join(parts, " ")); name != "" {
			return name
		}
	}

	if sel.Is("input, textarea, select") {
		typ := strings.ToLower(sel.AttrOr("type", ""))
		if typ == "submit" || typ == "button" || typ == "reset" {
			if value := htmlutil.Normalize(sel.AttrOr("value", "")); value != "" {
				return value
			}
			if typ == "submit" {
				return "Submit"
			}
		}
		if id := sel.AttrOr("id", ""); id != "" {
			if name := htmlutil.Text(doc.Find(fmt.Sprintf(`label[for="%s"]`, id))); name != "" {
				return name
			}
		}
		if name := htmlutil.Text(sel.Closest("label")); name != "" {
			return name
		}
		if placeholder := htmlutil.Normalize(sel.AttrOr("placeholder", "")); placeholder != "" {
			return placeholder
		}
		return htmlutil.Normalize(sel.AttrOr("title", ""))
	}

	if name := htmlutil.Text(sel); name != "" {
		return name
	}
	if alt := htmlutil.Normalize(sel.Find("img[alt]").First().AttrOr("alt", "")); alt != "" {
		return alt
	}
	return htmlutil.Normalize(sel.AttrOr("title", ""))
}

func cssEscape(id string) string {
	var out strings.Builder
	for _, r := range id {
		if r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			out.WriteRune(r)
			continue
		}
		out.WriteString(`\` + string(r))
	}
	return out.String()
}

// Find returns every element of the document that matches the locator, in
// document order.
func (l Locator) Find(doc *goquery.Selection) *goquery.Selection {
	candidates := doc
	if l.Selector != "" {
		candidates = doc.Find(l.Selector)
	}
	if l.Role == "" {
		return candidates
	}

	css, ok := implicitRoles[l.Role]
	if !ok {
		css = fmt.Sprintf(`[role=%s]`, l.Role)
	}
	if l.Selector != "" {
		candidates = candidates.Filter(css)
	} else {
		candidates = doc.Find(css)
	}

	needle := strings.ToLower(htmlutil.Normalize(l.Name))
	return candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		if RoleOf(s) != l.Role {
			return false
		}
		name := strings.ToLower(AccessibleName(doc, s))
		return strings.Contains(name, needle)
	})
}

// Visible reports whether the element and none of its ancestors are hidden
// through attributes or inline styles.
func Visible(sel *goquery.Selection) bool {
	if sel.Length() == 0 {
		return false
	}
	if sel.Is("input[type=hidden]") {
		return false
	}
	for node := sel.First(); node.Length() > 0; node = node.Parent() {
		if _, hidden := node.Attr("hidden"); hidden {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(node.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// Enabled reports whether the element is not disabled directly or through a
// disabled fieldset.
func Enabled(sel *goquery.Selection) bool {
	if sel.Length() == 0 {
		return false
	}
	if _, disabled := sel.First().Attr("disabled"); disabled {
		return false
	}
	if sel.First().Closest("fieldset[disabled]").Length() > 0 {
		return false
	}
	return sel.AttrOr("aria-disabled", "") != "true"
}

// StateOf probes a locator against a document.
func StateOf(doc *goquery.Selection, loc Locator) ElementState {
	matches := loc.Find(doc)
	first := matches.First()
	return ElementState{
		Count:   matches.Length(),
		Visible: Visible(first),
		Enabled: Enabled(first),
	}
}
