package pagebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elee1766/pagepilot/src/dom"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every bridge call unless overridden.
const DefaultTimeout = 30 * time.Second

var _ Page = (*Client)(nil)

// Client issues typed page operations over a Transport. Each call is
// bounded by the client timeout.
type Client struct {
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger
}

type ClientOptions struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClient(transport Transport, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		timeout:   opts.Timeout,
		logger:    logger.With("component", "pagebridge_client"),
	}
}

func (c *Client) Content(ctx context.Context) (string, error) {
	out, err := call[PageContentResult](ctx, c, OpGetPageContent, PageContentRequest{})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) InteractiveElements(ctx context.Context) ([]dom.Element, error) {
	out, err := call[InteractiveElementsResult](ctx, c, OpGetInteractiveElements, InteractiveElementsRequest{})
	if err != nil {
		return nil, err
	}
	return out.Elements, nil
}

func (c *Client) PerformAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return call[ActionResult](ctx, c, OpPerformAction, req)
}

func (c *Client) Navigate(ctx context.Context, url string) (*NavigateResult, error) {
	return call[NavigateResult](ctx, c, OpNavigate, NavigateRequest{URL: url})
}

func call[T any](ctx context.Context, c *Client, op Op, payload any) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}
	req := &Request{ID: uuid.New().String(), Op: op, Payload: body}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.transport.RoundTrip(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, op, c.timeout)
		}
		return nil, err
	}
	c.logger.Debug("bridge call completed", "op", op, "id", req.ID, "ok", resp.OK, "duration", time.Since(start))

	if !resp.OK {
		return nil, &Error{Op: op, Code: resp.Code, Message: resp.Error}
	}

	var out T
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return &out, nil
}
