// Package browser drives a Chrome tab over the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/elee1766/pagepilot/src/dom"
	"github.com/elee1766/pagepilot/src/pagebridge"
)

const DefaultDebugURL = "http://localhost:9222"

// ErrNoTab is returned when no page target matches.
var ErrNoTab = errors.New("no matching tab")

type Options struct {
	// DebugURL is the Chrome remote debugging endpoint.
	DebugURL string
	// URLPattern selects the tab whose URL matches. Empty picks the first page.
	URLPattern  string
	TypingDelay time.Duration
	Format      dom.Format
	Logger      *slog.Logger
}

var _ pagebridge.Page = (*Tab)(nil)

// Tab is a pagebridge.Page backed by a live Chrome tab.
type Tab struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	typingDelay time.Duration
	format      dom.Format
	logger      *slog.Logger
	info        *target.Info
}

// Attach connects to Chrome at opts.DebugURL and binds to one page target.
func Attach(ctx context.Context, opts Options) (*Tab, error) {
	if opts.DebugURL == "" {
		opts.DebugURL = DefaultDebugURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var pattern *regexp.Regexp
	if opts.URLPattern != "" {
		re, err := regexp.Compile(opts.URLPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid url pattern: %w", err)
		}
		pattern = re
	}

	listAlloc, listAllocCancel := chromedp.NewRemoteAllocator(ctx, opts.DebugURL)
	listCtx, listCancel := chromedp.NewContext(listAlloc)
	targets, err := chromedp.Targets(listCtx)
	listCancel()
	listAllocCancel()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Chrome at %s: %w", opts.DebugURL, err)
	}

	info := pickTarget(targets, pattern)
	if info == nil {
		return nil, ErrNoTab
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), opts.DebugURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(info.TargetID))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to attach to tab %s: %w", info.TargetID, err)
	}

	logger.Info("attached to tab", "target", info.TargetID, "url", info.URL, "title", info.Title)
	return &Tab{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		typingDelay: opts.TypingDelay,
		format:      opts.Format,
		logger:      logger.With("component", "browser_tab", "target", string(info.TargetID)),
		info:        info,
	}, nil
}

// pickTarget returns the first page target whose URL matches pattern, or
// the first page when pattern is nil.
func pickTarget(targets []*target.Info, pattern *regexp.Regexp) *target.Info {
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if pattern == nil || pattern.MatchString(t.URL) {
			return t
		}
	}
	return nil
}

// Close detaches from the tab without closing it.
func (t *Tab) Close() error {
	t.cancel()
	t.allocCancel()
	return nil
}

// run executes actions on the tab, honoring cancellation of ctx.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (t *Tab) document(ctx context.Context) (string, error) {
	var source string
	if err := t.run(ctx, chromedp.OuterHTML("html", &source, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return source, nil
}

func (t *Tab) Content(ctx context.Context) (string, error) {
	source, err := t.document(ctx)
	if err != nil {
		return "", err
	}
	doc, err := dom.Parse(source)
	if err != nil {
		return "", err
	}
	return dom.Content(doc, t.format)
}

func (t *Tab) InteractiveElements(ctx context.Context) ([]dom.Element, error) {
	source, err := t.document(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := dom.Parse(source)
	if err != nil {
		return nil, err
	}
	return dom.InteractiveElements(doc), nil
}

func (t *Tab) PerformAction(ctx context.Context, req pagebridge.ActionRequest) (*pagebridge.ActionResult, error) {
	var nodes []*cdp.Node
	if err := t.run(ctx, chromedp.Nodes(req.ElementXPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to look up element: %w", err)
	}
	if len(nodes) == 0 {
		return nil, pagebridge.NotFound(req.ElementXPath)
	}
	node := []cdp.NodeID{nodes[0].NodeID}

	var actions []chromedp.Action
	switch req.Action {
	case pagebridge.ActionClick:
		actions = append(actions, chromedp.Click(node, chromedp.ByNodeID))
	case pagebridge.ActionType:
		actions = append(actions, chromedp.Clear(node, chromedp.ByNodeID))
		for _, r := range req.Value {
			actions = append(actions, chromedp.SendKeys(node, string(r), chromedp.ByNodeID))
			if t.typingDelay > 0 {
				actions = append(actions, chromedp.Sleep(t.typingDelay))
			}
		}
	case pagebridge.ActionSubmit:
		actions = append(actions, chromedp.Submit(node, chromedp.ByNodeID))
	default:
		return nil, fmt.Errorf("unsupported action %q", req.Action)
	}

	if err := t.run(ctx, actions...); err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", req.Action, req.ElementXPath, err)
	}
	t.logger.Debug("performed action", "action", req.Action, "xpath", req.ElementXPath)

	var result pagebridge.ActionResult
	if err := t.run(ctx, chromedp.Title(&result.Title), chromedp.Location(&result.URL)); err != nil {
		return nil, fmt.Errorf("failed to read page state: %w", err)
	}
	return &result, nil
}

func (t *Tab) Navigate(ctx context.Context, url string) (*pagebridge.NavigateResult, error) {
	var result pagebridge.NavigateResult
	err := t.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&result.Title),
		chromedp.Location(&result.URL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	elements, err := t.InteractiveElements(ctx)
	if err != nil {
		return nil, err
	}
	result.Elements = elements
	return &result, nil
}
