package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/elee1766/pagepilot/src/browser"
	"github.com/elee1766/pagepilot/src/config"
	"github.com/elee1766/pagepilot/src/embeddings"
	"github.com/elee1766/pagepilot/src/models"
	"github.com/elee1766/pagepilot/src/theme"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

// errTurnFailed is returned when a chat turn ended with the error reply.
var errTurnFailed = errors.New("the agent could not complete the request")

// usageError marks a problem with the command line itself.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	var (
		validationErr config.ValidationError
		usageErr      usageError
		netErr        net.Error
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.As(err, &usageErr):
		return ExitUsage
	case errors.As(err, &validationErr):
		return ExitConfig
	case errors.Is(err, models.ErrNoAPIKey), errors.Is(err, embeddings.ErrNoAPIKey):
		return ExitAuth
	case errors.Is(err, browser.ErrNoTab), errors.As(err, &netErr):
		return ExitNetwork
	default:
		return ExitError
	}
}

// FatalError prints err and exits with the matching code
func FatalError(err error) {
	fmt.Fprintln(os.Stderr, theme.Error().Render("Error: "+err.Error()))
	os.Exit(exitCode(err))
}
