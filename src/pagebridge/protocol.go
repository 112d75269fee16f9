package pagebridge

import (
	"encoding/json"

	"github.com/elee1766/pagepilot/src/dom"
)

// Op names a page operation.
type Op string

const (
	OpGetPageContent         Op = "get_page_content"
	OpGetInteractiveElements Op = "get_interactive_elements"
	OpPerformAction          Op = "perform_action"
	OpNavigate               Op = "navigate"
)

// Action is the kind of interaction performed on an element.
type Action string

const (
	ActionClick  Action = "click"
	ActionType   Action = "type"
	ActionSubmit Action = "submit"
)

// Error codes carried in Response.Code.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeUnknownOp       = "unknown_op"
	CodeElementNotFound = "element_not_found"
	CodePageError       = "page_error"
)

// Request is sent to the page peer.
type Request struct {
	ID      string          `json:"id"`
	Op      Op              `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

type PageContentRequest struct{}

type PageContentResult struct {
	Content string `json:"content"`
}

type InteractiveElementsRequest struct{}

type InteractiveElementsResult struct {
	Elements []dom.Element `json:"elements"`
}

// ActionRequest targets one element by XPath. Value is the text for the
// type action.
type ActionRequest struct {
	ElementXPath string `json:"elementXpath" validate:"required"`
	Action       Action `json:"action" validate:"required,oneof=click type submit"`
	Value        string `json:"value,omitempty"`
}

// ActionResult describes the page after an action.
type ActionResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type NavigateRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// NavigateResult is produced once the new page has loaded.
type NavigateResult struct {
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Elements []dom.Element `json:"elements"`
}
