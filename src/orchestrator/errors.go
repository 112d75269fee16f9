package orchestrator

import (
	"errors"

	"github.com/elee1766/pagepilot/src/models"
)

// User-visible replies persisted as assistant messages.
const (
	NoAPIKeyReply = "Please set your API key in the extension options before chatting."
	ErrorReply    = "An error occurred while processing your request."
	StepLimitNote = "Error: step limit reached"
)

var (
	// ErrNoAPIKey is the missing credential condition. It is never returned
	// from HandleChat.
	ErrNoAPIKey = models.ErrNoAPIKey

	ErrModelClientRequired = errors.New("model client is required")
	ErrDatabaseRequired    = errors.New("database is required")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrEmptyResponse       = errors.New("model returned an empty answer")
)
