// Package embeddings turns text into fixed-length vectors.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAPIKey is returned by providers that need a key and have none.
var ErrNoAPIKey = errors.New("embeddings API key is required")

// Provider generates embeddings.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
}

// Config selects and configures a provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// New builds the provider named by cfg.Provider. Empty means openai.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "ollama":
		return NewOllama(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
}
