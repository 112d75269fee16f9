package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elee1766/pagepilot/src/config"
	"github.com/elee1766/pagepilot/src/embeddings"
	"github.com/elee1766/pagepilot/src/models"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Data.Directory = t.TempDir()
	return cfg
}

func newTestApp(t *testing.T, cfg AppConfig) *App {
	t.Helper()
	if cfg.Config == nil {
		cfg.Config = testConfig(t)
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewWiresServices(t *testing.T) {
	a := newTestApp(t, AppConfig{})

	require.NotNil(t, a.Orchestrator)
	require.NotNil(t, a.Memory)
	require.NotNil(t, a.Runner)
	require.NotNil(t, a.Embedder)
	assert.Nil(t, a.Page)
	assert.Nil(t, a.Hub)
	assert.Equal(t, config.DatabasePath(a.Config), a.Store.Path())

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
}

func TestNewWithoutMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.Enabled = false
	a := newTestApp(t, AppConfig{Config: cfg})

	assert.Nil(t, a.Memory)
	assert.Nil(t, a.Runner)
	assert.Nil(t, a.Embedder)
	require.NotNil(t, a.Orchestrator)
}

func TestModelFromSettings(t *testing.T) {
	a := newTestApp(t, AppConfig{})
	ctx := context.Background()

	_, err := a.ModelFromSettings(ctx)
	assert.ErrorIs(t, err, models.ErrNoAPIKey)
}

func TestEmbedderBorrowsChatKey(t *testing.T) {
	a := newTestApp(t, AppConfig{})
	ctx := context.Background()

	_, err := a.Embedder.Get(ctx)
	assert.ErrorIs(t, err, embeddings.ErrNoAPIKey)

	require.NoError(t, a.Orchestrator.SaveSetting(ctx, storage.SettingAPIKey, "sk-test"))
	p, err := a.Embedder.Get(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Name())
}

func TestPageModes(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><head><title>Start</title></head><body><a href="/next">Next</a></body></html>`)
	}))
	defer site.Close()

	t.Run("bridge", func(t *testing.T) {
		a := newTestApp(t, AppConfig{PageMode: PageBridge})
		require.NotNil(t, a.Hub)
		require.NotNil(t, a.Page)

		srv, err := a.NewServer()
		require.NoError(t, err)
		defer srv.Close()
	})

	t.Run("static", func(t *testing.T) {
		a := newTestApp(t, AppConfig{PageMode: PageStatic, StartURL: site.URL})
		require.NotNil(t, a.Page)

		content, err := a.Page.Content(context.Background())
		require.NoError(t, err)
		assert.Contains(t, content, "Next")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(context.Background(), AppConfig{
			Config:   testConfig(t),
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
			PageMode: PageMode("carrier-pigeon"),
		})
		assert.ErrorContains(t, err, "unknown page mode")
	})
}
