package pagebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// Dispatcher serves bridge requests against a Page.
type Dispatcher struct {
	page     Page
	validate *validator.Validate
	logger   *slog.Logger
}

func NewDispatcher(page Page, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		page:     page,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "pagebridge_dispatcher"),
	}
}

// Handle decodes and validates the payload, calls the page and encodes the
// result. Failures are reported in the response, never as a Go error.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) *Response {
	result, err := d.dispatch(ctx, req)
	if err != nil {
		resp := failure(req.ID, err)
		d.logger.Debug("bridge request failed", "op", req.Op, "id", req.ID, "code", resp.Code, "error", err)
		return resp
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return &Response{ID: req.ID, Error: fmt.Sprintf("failed to encode result: %v", err), Code: CodePageError}
	}
	return &Response{ID: req.ID, OK: true, Payload: payload}
}

type requestError struct {
	code string
	err  error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func failure(id string, err error) *Response {
	code := codeFor(err)
	if re, ok := err.(*requestError); ok {
		code = re.code
	}
	return &Response{ID: id, Error: err.Error(), Code: code}
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (any, error) {
	switch req.Op {
	case OpGetPageContent:
		content, err := d.page.Content(ctx)
		if err != nil {
			return nil, err
		}
		return PageContentResult{Content: content}, nil

	case OpGetInteractiveElements:
		elements, err := d.page.InteractiveElements(ctx)
		if err != nil {
			return nil, err
		}
		return InteractiveElementsResult{Elements: elements}, nil

	case OpPerformAction:
		var in ActionRequest
		if err := d.decode(req.Payload, &in); err != nil {
			return nil, err
		}
		return d.page.PerformAction(ctx, in)

	case OpNavigate:
		var in NavigateRequest
		if err := d.decode(req.Payload, &in); err != nil {
			return nil, err
		}
		return d.page.Navigate(ctx, in.URL)

	default:
		return nil, &requestError{code: CodeUnknownOp, err: fmt.Errorf("unknown op %q", req.Op)}
	}
}

func (d *Dispatcher) decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &requestError{code: CodeInvalidRequest, err: fmt.Errorf("invalid payload: %w", err)}
	}
	if err := d.validate.Struct(v); err != nil {
		return &requestError{code: CodeInvalidRequest, err: fmt.Errorf("invalid payload: %w", err)}
	}
	return nil
}
