package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// xpathAttributes are tried in order when an element has no id.
var xpathAttributes = []string{"name", "role", "type", "placeholder", "aria-label", "title", "value"}

// XPath derives a locator for n. An id wins, then the first non-empty
// attribute from xpathAttributes, then a structural path rooted at /html.
func XPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if id, ok := attr(n, "id"); ok && id != "" {
		return fmt.Sprintf(`//*[@id=%s]`, quote(id))
	}
	for _, name := range xpathAttributes {
		if v, ok := attr(n, name); ok && v != "" {
			return fmt.Sprintf(`//%s[@%s=%s]`, n.Data, name, quote(v))
		}
	}
	return structuralPath(n)
}

func structuralPath(n *html.Node) string {
	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if isRootElement(cur) {
			break
		}
		segments = append(segments, segment(cur))
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(append([]string{"/html"}, segments...), "/")
}

// segment renders tag or tag[i], where i is the 1-based position among
// same-tag siblings. The index is only written when there is more than one.
func segment(n *html.Node) string {
	if n.Parent == nil {
		return n.Data
	}
	index, count := 0, 0
	for sib := n.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode || sib.Data != n.Data {
			continue
		}
		count++
		if sib == n {
			index = count
		}
	}
	if count > 1 {
		return fmt.Sprintf("%s[%d]", n.Data, index)
	}
	return n.Data
}

func isRootElement(n *html.Node) bool {
	return n.Data == "html" && (n.Parent == nil || n.Parent.Type == html.DocumentNode)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// quote wraps v in double quotes. Values containing a double quote fall
// back to single quotes, and values with both use concat().
func quote(v string) string {
	switch {
	case !strings.Contains(v, `"`):
		return `"` + v + `"`
	case !strings.Contains(v, `'`):
		return `'` + v + `'`
	}
	parts := strings.Split(v, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
