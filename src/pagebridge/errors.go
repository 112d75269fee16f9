package pagebridge

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the page does not answer within the
	// bridge timeout.
	ErrTimeout = errors.New("page bridge timeout")
	// ErrNoActivePage is returned when no page peer is connected.
	ErrNoActivePage = errors.New("no active page")
	// ErrElementNotFound is returned when an XPath matches nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrPeerDisconnected fails calls pending on a peer that went away.
	ErrPeerDisconnected = errors.New("page peer disconnected")
)

// Error is a failure reported by the page.
type Error struct {
	Op      Op
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is lets errors.Is match ErrElementNotFound on remote failures.
func (e *Error) Is(target error) bool {
	return target == ErrElementNotFound && e.Code == CodeElementNotFound
}

// NotFound wraps ErrElementNotFound with the xpath that missed.
func NotFound(xpath string) error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, xpath)
}

func codeFor(err error) string {
	if errors.Is(err, ErrElementNotFound) {
		return CodeElementNotFound
	}
	return CodePageError
}
