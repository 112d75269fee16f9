package models

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFor(t *testing.T) {
	tests := []struct {
		model string
		want  ProviderKind
	}{
		{"", ProviderOpenAI},
		{"gpt-4o", ProviderOpenAI},
		{"o1-mini", ProviderOpenAI},
		{"o3-mini", ProviderOpenAI},
		{"claude-3.5-sonnet", ProviderAnthropic},
		{"Claude-3-opus-latest", ProviderAnthropic},
		{"anthropic/claude-3.5-sonnet", ProviderOpenRouter},
		{"meta-llama/llama-3-70b", ProviderOpenRouter},
		{"mistral-large", ProviderOpenAI},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFor(tt.model))
		})
	}
}

func TestResolveRequiresKey(t *testing.T) {
	r := &Resolver{}
	_, err := r.Resolve(context.Background(), "  ", "gpt-4o")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestResolveModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	r := &Resolver{Endpoints: Endpoints{OpenRouter: srv.URL}}

	tests := []struct {
		model    string
		id       string
		provider string
	}{
		{"", DefaultModel, "openai"},
		{"gpt-4o", "gpt-4o", "openai"},
		{"claude-3.5-sonnet", "claude-3-5-sonnet-latest", "anthropic"},
		{"openai/gpt-4o", "openai/gpt-4o", "openrouter"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			mc, err := r.Resolve(context.Background(), "key", tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.id, mc.GetModelInfo().ID)
			assert.Equal(t, tt.provider, mc.GetModelInfo().Provider)
		})
	}
}

func TestResolveReusesProviders(t *testing.T) {
	var listings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			listings.Add(1)
		}
		w.Write([]byte(`{"data":[{"id":"openai/gpt-4o","name":"GPT-4o"}]}`))
	}))
	defer srv.Close()

	r := &Resolver{Endpoints: Endpoints{OpenRouter: srv.URL}}
	ctx := context.Background()

	for range 5 {
		mc, err := r.Resolve(ctx, "key", "openai/gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "GPT-4o", mc.GetModelInfo().Name)
	}
	assert.EqualValues(t, 1, listings.Load(), "model list is fetched once")

	_, err := r.Resolve(ctx, "key", "meta-llama/llama-3-70b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, listings.Load(), "unlisted models reuse the cached list")

	_, err = r.Resolve(ctx, "other-key", "openai/gpt-4o")
	require.NoError(t, err)
	assert.EqualValues(t, 2, listings.Load(), "a new key builds a new client")
}
