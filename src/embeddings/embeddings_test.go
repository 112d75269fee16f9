package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{name: "default is openai", cfg: Config{APIKey: "k"}, wantName: "openai"},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: ErrNoAPIKey},
		{name: "ollama", cfg: Config{Provider: "ollama"}, wantName: "ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}

	_, err := New(Config{Provider: "gemini"})
	assert.Error(t, err)
}

func TestOpenAIEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOpenAIModel, req.Model)

		// answer out of order to check indexing
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"model":"text-embedding-3-small"}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	assert.Equal(t, 1536, p.Dimension())

	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	empty, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Prompt == "fail" {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.5, 0.25, float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	p := NewOllama(OllamaConfig{BaseURL: srv.URL + "/"})
	assert.Equal(t, 768, p.Dimension())

	vec, err := p.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 3}, vec)

	batch, err := p.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, float32(2), batch[1][2])

	_, err = p.Embed(context.Background(), "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

type constProvider struct{ vec []float32 }

func (c constProvider) Embed(ctx context.Context, text string) ([]float32, error) { return c.vec, nil }
func (c constProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vec
	}
	return out, nil
}
func (c constProvider) Name() string   { return "const" }
func (c constProvider) Dimension() int { return len(c.vec) }

func TestLazy(t *testing.T) {
	builds := 0
	fail := true
	lazy := NewLazy(func(ctx context.Context) (Provider, error) {
		builds++
		if fail {
			return nil, errors.New("not yet")
		}
		return constProvider{vec: []float32{1, 2}}, nil
	})

	assert.Equal(t, "lazy", lazy.Name())
	assert.Equal(t, 0, lazy.Dimension())

	_, err := lazy.Embed(context.Background(), "x")
	require.Error(t, err)

	fail = false
	vec, err := lazy.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	_, err = lazy.EmbedBatch(context.Background(), []string{"y"})
	require.NoError(t, err)
	assert.Equal(t, 2, builds, "a successful build is reused")
	assert.Equal(t, "const", lazy.Name())
	assert.Equal(t, 2, lazy.Dimension())

	lazy.Reset()
	_, err = lazy.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 3, builds)

	require.NoError(t, lazy.Close())
	_, err = lazy.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}
