package scrape

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func classContains(n *html.Node, sub string) bool {
	return strings.Contains(strings.ToLower(attr(n, "class")), sub)
}

// nodeText returns the subtree's visible text with whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

type loginForm struct {
	action        string
	emailField    string
	passwordField string
	hidden        url.Values
}

// findLoginForm locates the form carrying a password input and pulls out
// its action, credential field names and hidden inputs (CSRF tokens and
// friends, echoed back verbatim on submit).
func findLoginForm(doc *html.Node) (loginForm, bool) {
	var out loginForm
	found := false
	walk(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode || n.Data != "form" {
			return
		}
		f := loginForm{action: attr(n, "action"), hidden: url.Values{}}
		walk(n, func(in *html.Node) {
			if in.Type != html.ElementNode || in.Data != "input" {
				return
			}
			name := attr(in, "name")
			typ := strings.ToLower(attr(in, "type"))
			lname := strings.ToLower(name)
			lid := strings.ToLower(attr(in, "id"))
			switch {
			case typ == "password" || strings.Contains(lname, "password") || strings.Contains(lid, "password"):
				if f.passwordField == "" && name != "" {
					f.passwordField = name
				}
			case typ == "email" || strings.Contains(lname, "email") || strings.Contains(lid, "email"):
				if f.emailField == "" && name != "" {
					f.emailField = name
				}
			case typ == "hidden" && name != "":
				f.hidden.Set(name, attr(in, "value"))
			}
		})
		if f.passwordField != "" {
			out = f
			found = true
		}
	})
	return out, found
}

// findErrorText returns the first error-styled element's text, mirroring
// the .error / .alert-danger / [class*="error"] convention.
func findErrorText(doc *html.Node) (string, bool) {
	var text string
	found := false
	walk(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode {
			return
		}
		if classContains(n, "error") || classContains(n, "alert-danger") {
			text = nodeText(n)
			found = true
		}
	})
	return text, found
}

// findDateFilterField returns the name of the listing's date filter input.
func findDateFilterField(doc *html.Node) (string, bool) {
	var field string
	found := false
	walk(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode || n.Data != "input" {
			return
		}
		name := attr(n, "name")
		if name == "" {
			return
		}
		typ := strings.ToLower(attr(n, "type"))
		if typ == "date" ||
			strings.Contains(strings.ToLower(attr(n, "placeholder")), "date") ||
			strings.Contains(strings.ToLower(name), "date") {
			field = name
			found = true
		}
	})
	return field, found
}

var rowContainers = map[string]bool{
	"tr":      true,
	"li":      true,
	"article": true,
	"div":     true,
	"section": true,
}

// findTitleURL locates the listing entry whose text mentions name and
// returns the href of its "View" link.
func findTitleURL(doc *html.Node, name string) (string, bool) {
	lname := strings.ToLower(name)
	var href string
	found := false
	walk(doc, func(n *html.Node) {
		if found || n.Type != html.TextNode {
			return
		}
		if !strings.Contains(strings.ToLower(n.Data), lname) {
			return
		}
		row := closestContainer(n)
		if row == nil {
			return
		}
		if h, ok := viewLink(row); ok {
			href = h
			found = true
		}
	})
	return href, found
}

func closestContainer(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && rowContainers[p.Data] {
			return p
		}
	}
	return nil
}

func viewLink(row *html.Node) (string, bool) {
	var href string
	found := false
	walk(row, func(n *html.Node) {
		if found || n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		if !strings.Contains(strings.ToLower(nodeText(n)), "view") {
			return
		}
		if h := attr(n, "href"); h != "" {
			href = h
			found = true
		}
	})
	return href, found
}

// collectDates pulls date-looking strings from a detail page, preserving
// document order and dropping exact duplicates.
func collectDates(doc *html.Node) []string {
	seen := map[string]struct{}{}
	var out []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		match := n.Data == "time" || attr(n, "datetime") != "" ||
			classContains(n, "date") || classContains(n, "performance") || classContains(n, "availability")
		if !match {
			return
		}
		txt := nodeText(n)
		if txt == "" || !looksLikeDate(txt) {
			return
		}
		if _, dup := seen[txt]; dup {
			return
		}
		seen[txt] = struct{}{}
		out = append(out, txt)
	})
	return out
}

var monthTokens = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// looksLikeDate keeps the deliberately permissive heuristic: a month-name
// fragment or any digit qualifies. Free-form venue strings ("Dec 25, 2025
// 7:30 PM") must survive it untouched.
func looksLikeDate(s string) bool {
	ls := strings.ToLower(s)
	for _, m := range monthTokens {
		if strings.Contains(ls, m) {
			return true
		}
	}
	return strings.ContainsAny(s, "0123456789")
}
