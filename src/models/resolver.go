// Package models maps the user's model setting onto a provider client.
package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/anthropicclient"
	"github.com/elee1766/pagepilot/src/oaiclient"
	"github.com/elee1766/pagepilot/src/orclient"
)

// DefaultModel is used when no model setting is stored.
const DefaultModel = "gpt-4o-mini"

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

type ProviderKind string

const (
	ProviderOpenAI     ProviderKind = "openai"
	ProviderAnthropic  ProviderKind = "anthropic"
	ProviderOpenRouter ProviderKind = "openrouter"
)

// KindFor returns the provider that serves model. An empty model maps to
// OpenAI.
func KindFor(model string) ProviderKind {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == "":
		return ProviderOpenAI
	case strings.Contains(m, "/"):
		return ProviderOpenRouter
	case strings.HasPrefix(m, "claude-"):
		return ProviderAnthropic
	default:
		return ProviderOpenAI
	}
}

// Endpoints overrides provider base URLs. Empty values use the public APIs.
type Endpoints struct {
	OpenAI     string
	Anthropic  string
	OpenRouter string
}

// Resolver builds a model client from the stored settings. Provider clients
// are kept per kind and rebuilt when the API key changes, so their caches
// outlive a single turn.
type Resolver struct {
	Endpoints Endpoints
	Logger    *slog.Logger

	mu        sync.Mutex
	providers map[ProviderKind]cachedProvider
}

type cachedProvider struct {
	apiKey   string
	provider aisdk.Provider
}

// Resolve returns a client for model authenticated with apiKey.
func (r *Resolver) Resolve(ctx context.Context, apiKey, model string) (aisdk.ModelClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	provider, err := r.provider(KindFor(model), apiKey)
	if err != nil {
		return nil, err
	}

	client, err := provider.Model(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to bind model %s: %w", model, err)
	}
	return client, nil
}

func (r *Resolver) provider(kind ProviderKind, apiKey string) (aisdk.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.providers[kind]; ok && cached.apiKey == apiKey {
		return cached.provider, nil
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var provider aisdk.Provider
	switch kind {
	case ProviderOpenAI:
		provider = oaiclient.NewClient(oaiclient.Config{APIKey: apiKey, BaseURL: r.Endpoints.OpenAI, Logger: logger})
	case ProviderAnthropic:
		provider = anthropicclient.NewClient(anthropicclient.Config{APIKey: apiKey, BaseURL: r.Endpoints.Anthropic, Logger: logger})
	case ProviderOpenRouter:
		provider = orclient.NewClient(orclient.Config{APIKey: apiKey, BaseURL: r.Endpoints.OpenRouter, Logger: logger, SiteName: "pagepilot"})
	default:
		return nil, fmt.Errorf("unsupported provider %q", kind)
	}

	if r.providers == nil {
		r.providers = make(map[ProviderKind]cachedProvider)
	}
	r.providers[kind] = cachedProvider{apiKey: apiKey, provider: provider}
	return provider, nil
}
