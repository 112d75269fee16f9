package pagebridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/elee1766/pagepilot/src/dom"
	"golang.org/x/net/html"
)

const maxPageSize = 5 * 1024 * 1024

// ErrNoDocument is returned by StaticPage before the first navigation.
var ErrNoDocument = errors.New("no document loaded")

var _ Page = (*StaticPage)(nil)

// StaticPage is a Page over fetched HTML without script execution. Links
// are followed and forms are submitted over plain HTTP.
type StaticPage struct {
	client *http.Client
	format dom.Format
	logger *slog.Logger

	mu  sync.Mutex
	doc *goquery.Document
	url *url.URL
}

type StaticPageOptions struct {
	Client *http.Client
	Format dom.Format
	Logger *slog.Logger
}

func NewStaticPage(opts StaticPageOptions) *StaticPage {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticPage{client: client, format: opts.Format, logger: logger.With("component", "static_page")}
}

// Load replaces the current document with source as if served from rawURL.
func (p *StaticPage) Load(rawURL, source string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	doc, err := dom.Parse(source)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.doc, p.url = doc, u
	p.mu.Unlock()
	return nil
}

func (p *StaticPage) current() (*goquery.Document, *url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, nil, ErrNoDocument
	}
	return p.doc, p.url, nil
}

func (p *StaticPage) Content(ctx context.Context) (string, error) {
	doc, _, err := p.current()
	if err != nil {
		return "", err
	}
	return dom.Content(doc, p.format)
}

func (p *StaticPage) InteractiveElements(ctx context.Context) ([]dom.Element, error) {
	doc, _, err := p.current()
	if err != nil {
		return nil, err
	}
	return dom.InteractiveElements(doc), nil
}

func (p *StaticPage) PerformAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	doc, base, err := p.current()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	n, err := dom.Find(doc, req.ElementXPath)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, NotFound(req.ElementXPath)
	}

	switch req.Action {
	case ActionClick:
		if err := p.click(ctx, base, n); err != nil {
			return nil, err
		}
	case ActionType:
		p.mu.Lock()
		setValue(n, req.Value)
		p.mu.Unlock()
	case ActionSubmit:
		form := dom.Closest(n, "form")
		if form == nil {
			return nil, fmt.Errorf("no form encloses %s", req.ElementXPath)
		}
		if err := p.submit(ctx, base, form); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported action %q", req.Action)
	}

	return p.result()
}

func (p *StaticPage) Navigate(ctx context.Context, rawURL string) (*NavigateResult, error) {
	if err := p.fetch(ctx, http.MethodGet, rawURL, nil); err != nil {
		return nil, err
	}
	doc, u, err := p.current()
	if err != nil {
		return nil, err
	}
	return &NavigateResult{Title: dom.Title(doc), URL: u.String(), Elements: dom.InteractiveElements(doc)}, nil
}

func (p *StaticPage) result() (*ActionResult, error) {
	doc, u, err := p.current()
	if err != nil {
		return nil, err
	}
	return &ActionResult{Title: dom.Title(doc), URL: u.String()}, nil
}

func (p *StaticPage) click(ctx context.Context, base *url.URL, n *html.Node) error {
	if link := dom.Closest(n, "a"); link != nil {
		if href, ok := dom.Attr(link, "href"); ok && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
			target, err := base.Parse(href)
			if err != nil {
				return fmt.Errorf("invalid link %q: %w", href, err)
			}
			return p.fetch(ctx, http.MethodGet, target.String(), nil)
		}
		return nil
	}
	if isSubmitControl(n) {
		if form := dom.Closest(n, "form"); form != nil {
			return p.submit(ctx, base, form)
		}
	}
	return nil
}

func isSubmitControl(n *html.Node) bool {
	t, _ := dom.Attr(n, "type")
	t = strings.ToLower(t)
	switch n.Data {
	case "button":
		return t == "" || t == "submit"
	case "input":
		return t == "submit" || t == "image"
	}
	return false
}

func (p *StaticPage) submit(ctx context.Context, base *url.URL, form *html.Node) error {
	action, _ := dom.Attr(form, "action")
	target, err := base.Parse(action)
	if err != nil {
		return fmt.Errorf("invalid form action %q: %w", action, err)
	}

	p.mu.Lock()
	values := formValues(form)
	p.mu.Unlock()

	method, _ := dom.Attr(form, "method")
	if strings.EqualFold(method, http.MethodPost) {
		return p.fetch(ctx, http.MethodPost, target.String(), values)
	}
	target.RawQuery = values.Encode()
	return p.fetch(ctx, http.MethodGet, target.String(), nil)
}

func formValues(form *html.Node) url.Values {
	values := url.Values{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			name, hasName := dom.Attr(n, "name")
			_, disabled := dom.Attr(n, "disabled")
			if hasName && name != "" && !disabled {
				switch n.Data {
				case "input":
					t, _ := dom.Attr(n, "type")
					switch strings.ToLower(t) {
					case "submit", "button", "image", "reset", "file":
					case "checkbox", "radio":
						if _, checked := dom.Attr(n, "checked"); checked {
							v, ok := dom.Attr(n, "value")
							if !ok {
								v = "on"
							}
							values.Add(name, v)
						}
					default:
						v, _ := dom.Attr(n, "value")
						values.Add(name, v)
					}
				case "textarea":
					values.Add(name, textOf(n))
				case "select":
					if v, ok := selectedOption(n); ok {
						values.Add(name, v)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)
	return values
}

func selectedOption(sel *html.Node) (string, bool) {
	var first, selected *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "option" {
			if first == nil {
				first = n
			}
			if _, ok := dom.Attr(n, "selected"); ok && selected == nil {
				selected = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel)
	if selected == nil {
		selected = first
	}
	if selected == nil {
		return "", false
	}
	if v, ok := dom.Attr(selected, "value"); ok {
		return v, true
	}
	return strings.TrimSpace(textOf(selected)), true
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// setValue stores typed text the way a browser would expose it to a form
// submission.
func setValue(n *html.Node, value string) {
	switch n.Data {
	case "textarea":
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	default:
		for i, a := range n.Attr {
			if a.Key == "value" && a.Namespace == "" {
				n.Attr[i].Val = value
				return
			}
		}
		n.Attr = append(n.Attr, html.Attribute{Key: "value", Val: value})
	}
}

func (p *StaticPage) fetch(ctx context.Context, method, rawURL string, form url.Values) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "pagepilot/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request to %s failed with status code: %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	p.logger.Debug("loaded page", "method", method, "url", resp.Request.URL.String(), "status", resp.StatusCode, "size", len(data))
	return p.Load(resp.Request.URL.String(), string(data))
}
