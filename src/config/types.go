package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for pagepilot
type Config struct {
	// Version of the configuration format
	Version string `json:"version" yaml:"version"`

	Agent AgentConfig `json:"agent" yaml:"agent"`

	// Providers overrides model provider endpoints
	Providers ProvidersConfig `json:"providers" yaml:"providers"`

	Memory MemoryConfig `json:"memory" yaml:"memory"`

	Bridge BridgeConfig `json:"bridge" yaml:"bridge"`

	Server ServerConfig `json:"server" yaml:"server"`

	// Data directory configuration
	Data DataConfig `json:"data" yaml:"data"`

	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// AgentConfig controls the tool loop
type AgentConfig struct {
	// MaxSteps is the number of tool calls allowed per turn
	MaxSteps int `json:"max_steps" yaml:"max_steps" validate:"min=1,max=100"`

	// HistoryWindow is the number of stored messages sent to the model. 0 sends all.
	HistoryWindow int `json:"history_window" yaml:"history_window" validate:"min=0"`

	// MaxTokens caps each model response. 0 uses the provider default.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" validate:"min=0"`

	// ToolTimeout bounds a single tool execution. 0 disables it.
	ToolTimeout Duration `json:"tool_timeout" yaml:"tool_timeout" validate:"min=0"`
}

// ProvidersConfig holds per-provider endpoint overrides
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai" yaml:"openai"`
	Anthropic  ProviderConfig `json:"anthropic" yaml:"anthropic"`
	OpenRouter ProviderConfig `json:"openrouter" yaml:"openrouter"`
}

// ProviderConfig defines configuration for a model provider
type ProviderConfig struct {
	// BaseURL for the provider
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
}

// MemoryConfig controls the episodic memory engine
type MemoryConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Threshold is the cosine similarity at which memories are consolidated
	Threshold float64 `json:"threshold" yaml:"threshold" validate:"gt=0,lte=1"`

	// QueryLimit is the number of memories injected into the system prompt
	QueryLimit int `json:"query_limit" yaml:"query_limit" validate:"min=0"`

	// TaskTimeout bounds each detached memory update
	TaskTimeout Duration `json:"task_timeout" yaml:"task_timeout" validate:"min=0"`

	Embeddings EmbeddingsConfig `json:"embeddings" yaml:"embeddings"`
}

// EmbeddingsConfig selects the embedding provider
type EmbeddingsConfig struct {
	// Provider is "openai" or "ollama"
	Provider string `json:"provider" yaml:"provider" validate:"provider"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey defaults to the stored chat API key for openai
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// BridgeConfig controls page bridge calls
type BridgeConfig struct {
	// Timeout for a single page operation
	Timeout Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	// TypingDelay is the pause between typed characters
	TypingDelay Duration `json:"typing_delay" yaml:"typing_delay" validate:"min=0"`

	// DebugURL is the Chrome remote debugging endpoint used by the cdp tab
	DebugURL string `json:"debug_url,omitempty" yaml:"debug_url,omitempty" validate:"omitempty,url"`

	// ContentFormat is "text" or "markdown"
	ContentFormat string `json:"content_format" yaml:"content_format" validate:"content_format"`
}

// ServerConfig controls the local HTTP server
type ServerConfig struct {
	Listen         string          `json:"listen" yaml:"listen" validate:"required,hostname_port"`
	AllowedOrigins []string        `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	RateLimit      RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig defines the per-connection inbound frame limit
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `json:"burst" yaml:"burst" validate:"min=0"`
}

// DataConfig defines data directory configuration
type DataConfig struct {
	// Directory where the database is stored
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Format is the output format (text, json)
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"log_format"`
}

// ConfigPrecedence defines the order of configuration loading
type ConfigPrecedence struct {
	// UserConfig path
	UserConfig string

	// ProjectConfig path
	ProjectConfig string

	// ExplicitConfig is a path passed on the command line
	ExplicitConfig string

	// EnvironmentPrefix for env var overrides
	EnvironmentPrefix string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return e.Message
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceExplicit    ConfigSource = "explicit"
	SourceEnvironment ConfigSource = "environment"
	SourceCLI         ConfigSource = "cli"
)

// Duration is a time.Duration that reads "30s" style strings from JSON and
// YAML. Plain numbers are taken as nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val))
	case int:
		*d = Duration(time.Duration(val))
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}
