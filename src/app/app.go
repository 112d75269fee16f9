package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/browser"
	"github.com/elee1766/pagepilot/src/config"
	"github.com/elee1766/pagepilot/src/dom"
	"github.com/elee1766/pagepilot/src/embeddings"
	"github.com/elee1766/pagepilot/src/memory"
	"github.com/elee1766/pagepilot/src/models"
	"github.com/elee1766/pagepilot/src/orchestrator"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/server"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PageMode selects what backs the page tools.
type PageMode string

const (
	// PageNone runs without page tools.
	PageNone PageMode = "none"
	// PageBridge forwards page operations to a peer connected at /bridge.
	PageBridge PageMode = "bridge"
	// PageCDP drives a Chrome tab over the DevTools protocol.
	PageCDP PageMode = "cdp"
	// PageStatic fetches pages over plain HTTP.
	PageStatic PageMode = "static"
)

// App represents the main application with all services
type App struct {
	Config       *config.Config
	Store        *storage.DB
	Models       *models.Resolver
	Embedder     *embeddings.Lazy
	Memory       *memory.Engine
	Runner       *memory.Runner
	Hub          *pagebridge.Hub
	Page         pagebridge.Page
	Registry     *prometheus.Registry
	Metrics      *orchestrator.Metrics
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger

	tab *browser.Tab
}

// AppConfig holds configuration for creating a new App instance
type AppConfig struct {
	Config *config.Config
	Logger *slog.Logger

	PageMode PageMode
	// StartURL is loaded into a static page before the first turn.
	StartURL string
	// TabPattern selects the Chrome tab in cdp mode.
	TabPattern string
}

// New creates a new App instance with all services initialized
func New(ctx context.Context, cfg AppConfig) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	conf := cfg.Config
	if conf == nil {
		conf = config.DefaultConfig()
	}

	storagePath := config.DatabasePath(conf)
	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	store, err := storage.Open(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &App{
		Config:   conf,
		Store:    store,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Models: &models.Resolver{
			Endpoints: models.Endpoints{
				OpenAI:     conf.Providers.OpenAI.BaseURL,
				Anthropic:  conf.Providers.Anthropic.BaseURL,
				OpenRouter: conf.Providers.OpenRouter.BaseURL,
			},
			Logger: logger,
		},
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = orchestrator.NewMetrics(a.Registry)

	if err := a.initMemory(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPage(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	opts := orchestrator.Options{
		DB:            store,
		Models:        a.Models,
		Page:          a.Page,
		MaxSteps:      conf.Agent.MaxSteps,
		HistoryWindow: conf.Agent.HistoryWindow,
		MaxTokens:     conf.Agent.MaxTokens,
		ToolTimeout:   conf.Agent.ToolTimeout.Std(),
		MemoryLimit:   conf.Memory.QueryLimit,
		Metrics:       a.Metrics,
		Logger:        logger,
	}
	opts.OnSettingSaved = a.settingSaved
	if a.Memory != nil {
		opts.Memory = a.Memory
		opts.Runner = a.Runner
	}
	a.Orchestrator, err = orchestrator.New(opts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return a, nil
}

// settingSaved rebuilds the embeddings provider when the key it may
// borrow changes.
func (a *App) settingSaved(t storage.SettingType) {
	if t == storage.SettingAPIKey && a.Embedder != nil {
		a.Embedder.Reset()
	}
}

func (a *App) initMemory() error {
	if !a.Config.Memory.Enabled {
		return nil
	}
	emb := a.Config.Memory.Embeddings
	a.Embedder = embeddings.NewLazy(func(ctx context.Context) (embeddings.Provider, error) {
		cfg := embeddings.Config{
			Provider: emb.Provider,
			Model:    emb.Model,
			BaseURL:  emb.BaseURL,
			APIKey:   emb.APIKey,
		}
		if cfg.APIKey == "" && (cfg.Provider == "" || cfg.Provider == "openai") {
			key, err := storage.GetSettingValue(ctx, a.Store.DB(), storage.SettingAPIKey)
			if err != nil {
				return nil, err
			}
			if key == "" {
				return nil, embeddings.ErrNoAPIKey
			}
			cfg.APIKey = key
		}
		return embeddings.New(cfg)
	})

	engine, err := memory.NewEngine(memory.Options{
		DB:        a.Store,
		Model:     a.ModelFromSettings,
		Embedder:  a.Embedder,
		Threshold: a.Config.Memory.Threshold,
		Logger:    a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create memory engine: %w", err)
	}
	a.Memory = engine
	a.Runner = memory.NewRunner(memory.RunnerOptions{
		Timeout: a.Config.Memory.TaskTimeout.Std(),
		Logger:  a.Logger,
		OnError: func(task string, err error) {
			a.Logger.Warn("background task failed", "task", task, "error", err)
			if a.Metrics != nil {
				a.Metrics.ErrorsTotal.WithLabelValues(task).Inc()
			}
		},
	})
	return nil
}

func (a *App) initPage(ctx context.Context, cfg AppConfig) error {
	bridge := a.Config.Bridge
	format := dom.Format(bridge.ContentFormat)

	switch cfg.PageMode {
	case "", PageNone:
		return nil
	case PageBridge:
		a.Hub = pagebridge.NewHub(pagebridge.HubOptions{
			Logger:      a.Logger,
			CheckOrigin: server.OriginChecker(a.Config.Server.AllowedOrigins),
		})
		a.Page = pagebridge.NewClient(a.Hub, pagebridge.ClientOptions{Timeout: bridge.Timeout.Std(), Logger: a.Logger})
	case PageCDP:
		tab, err := browser.Attach(ctx, browser.Options{
			DebugURL:    bridge.DebugURL,
			URLPattern:  cfg.TabPattern,
			TypingDelay: bridge.TypingDelay.Std(),
			Format:      format,
			Logger:      a.Logger,
		})
		if err != nil {
			return fmt.Errorf("failed to attach to chrome: %w", err)
		}
		a.tab = tab
		a.Page = tab
	case PageStatic:
		page := pagebridge.NewStaticPage(pagebridge.StaticPageOptions{Format: format, Logger: a.Logger})
		if cfg.StartURL != "" {
			navCtx, cancel := context.WithTimeout(ctx, bridge.Timeout.Std())
			defer cancel()
			if _, err := page.Navigate(navCtx, cfg.StartURL); err != nil {
				return fmt.Errorf("failed to load %s: %w", cfg.StartURL, err)
			}
		}
		a.Page = page
	default:
		return fmt.Errorf("unknown page mode %q", cfg.PageMode)
	}
	return nil
}

// ModelFromSettings resolves the chat model from the stored settings.
func (a *App) ModelFromSettings(ctx context.Context) (aisdk.ModelClient, error) {
	apiKey, err := storage.GetSettingValue(ctx, a.Store.DB(), storage.SettingAPIKey)
	if err != nil {
		return nil, err
	}
	model, err := storage.GetSettingValue(ctx, a.Store.DB(), storage.SettingModel)
	if err != nil {
		return nil, err
	}
	return a.Models.Resolve(ctx, apiKey, model)
}

// NewServer builds the HTTP server for this app.
func (a *App) NewServer() (*server.Server, error) {
	return server.New(server.Options{
		Backend:           a.Orchestrator,
		Hub:               a.Hub,
		Gatherer:          a.Registry,
		AllowedOrigins:    a.Config.Server.AllowedOrigins,
		RequestsPerSecond: a.Config.Server.RateLimit.RequestsPerSecond,
		Burst:             a.Config.Server.RateLimit.Burst,
		Logger:            a.Logger,
	})
}

func (a *App) drainTimeout() time.Duration {
	d := a.Config.Memory.TaskTimeout.Std()
	if d <= 0 {
		d = memory.DefaultTaskTimeout
	}
	return d + time.Second
}

// Close waits for background memory work and closes all resources held by
// the app.
func (a *App) Close() error {
	var errs []error
	if a.Runner != nil {
		done := make(chan struct{})
		go func() {
			a.Runner.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(a.drainTimeout()):
			errs = append(errs, errors.New("timed out waiting for memory tasks"))
		}
	}
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	if a.Hub != nil {
		errs = append(errs, a.Hub.Close())
	}
	if a.tab != nil {
		errs = append(errs, a.tab.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
