package pagebridge

import (
	"context"

	"github.com/elee1766/pagepilot/src/dom"
)

// Page is a live document that can be read and acted on.
type Page interface {
	Content(ctx context.Context) (string, error)
	InteractiveElements(ctx context.Context) ([]dom.Element, error)
	PerformAction(ctx context.Context, req ActionRequest) (*ActionResult, error)
	Navigate(ctx context.Context, url string) (*NavigateResult, error)
}

// Transport delivers a request to a page and returns its response.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}
