package dom

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MaxElementText is the rune limit for an element's text.
const MaxElementText = 100

// InteractiveSelector is the allow-list of elements worth acting on.
const InteractiveSelector = `button:not([disabled]), form, a[href], input:not([disabled]), select:not([disabled]), [role="button"], [contenteditable]`

// Element is an actionable node found on a page.
type Element struct {
	Text  string `json:"text"`
	XPath string `json:"xpath"`
	Tag   string `json:"tag"`
}

// InteractiveElements returns the visible interactive elements of doc in
// document order.
func InteractiveElements(doc *goquery.Document) []Element {
	elements := []Element{}
	doc.Find(InteractiveSelector).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if Hidden(n) {
			return
		}
		elements = append(elements, Element{
			Text:  truncate(strings.TrimSpace(s.Text()), MaxElementText),
			XPath: XPath(n),
			Tag:   n.Data,
		})
	})
	return elements
}

// Hidden reports whether n or one of its ancestors is hidden by markup.
// Computed styles are not available, so only inline styles are checked.
func Hidden(n *html.Node) bool {
	if n != nil && n.Data == "input" {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return true
		}
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if _, ok := attr(cur, "hidden"); ok {
			return true
		}
		if v, _ := attr(cur, "aria-hidden"); strings.EqualFold(v, "true") {
			return true
		}
		if style, ok := attr(cur, "style"); ok && hiddenByStyle(style) {
			return true
		}
	}
	return false
}

func hiddenByStyle(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		key, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important")))
		switch {
		case key == "display" && value == "none":
			return true
		case key == "visibility" && value == "hidden":
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
