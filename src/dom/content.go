package dom

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Format selects how page content is rendered.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tr": true, "ul": true,
}

// Parse parses an HTML document.
func Parse(source string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Title returns the trimmed document title.
func Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Content renders the body of doc in the given format. doc is not modified.
func Content(doc *goquery.Document, format Format) (string, error) {
	body := doc.Find("body").First().Clone()
	if body.Length() == 0 {
		body = doc.Selection.Clone()
	}
	body.Find("script, style, noscript").Remove()

	switch format {
	case FormatMarkdown:
		h, err := body.Html()
		if err != nil {
			return "", fmt.Errorf("failed to render body: %w", err)
		}
		return toMarkdown(h)
	case FormatText, "":
		return toText(body), nil
	default:
		return "", fmt.Errorf("unknown content format %q", format)
	}
}

// toText approximates innerText: block elements break lines and blank
// lines are dropped.
func toText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if blockElements[n.Data] {
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if trimmed := collapse(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}

func toMarkdown(source string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(source)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}
	return markdown, nil
}

// Find evaluates an XPath expression against doc and returns the first
// match, or nil when nothing matches.
func Find(doc *goquery.Document, xpath string) (*html.Node, error) {
	if len(doc.Nodes) == 0 {
		return nil, nil
	}
	n, err := htmlquery.Query(doc.Nodes[0], xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", xpath, err)
	}
	return n, nil
}

// Closest returns the nearest ancestor-or-self of n with the given tag.
func Closest(n *html.Node, tag string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

// Attr returns the value of an attribute on n.
func Attr(n *html.Node, key string) (string, bool) {
	return attr(n, key)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
