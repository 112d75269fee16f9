// Package server exposes the orchestrator to the extension UI over a
// WebSocket and hosts the page bridge, metrics and health endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/elee1766/pagepilot/src/orchestrator"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// Backend is what the UI socket drives. *orchestrator.Orchestrator
// implements it.
type Backend interface {
	HandleChat(ctx context.Context, req orchestrator.ChatRequest, sink orchestrator.EventSink) (*orchestrator.ChatResponse, error)
	DeleteConversation(ctx context.Context, id string, sink orchestrator.EventSink) (bool, error)
	ListConversations(ctx context.Context) ([]storage.Conversation, error)
	LoadConversation(ctx context.Context, id string) ([]storage.Message, error)
	LatestConversation(ctx context.Context) (string, error)
	GetSettings(ctx context.Context) (*orchestrator.SettingsView, error)
	SaveSetting(ctx context.Context, settingType storage.SettingType, value string) error
}

var _ Backend = (*orchestrator.Orchestrator)(nil)

// Options configures a Server.
type Options struct {
	Backend Backend

	// Hub serves /bridge when set.
	Hub *pagebridge.Hub

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer

	AllowedOrigins []string

	// RequestsPerSecond and Burst limit inbound UI frames per connection.
	// Zero disables the limit.
	RequestsPerSecond float64
	Burst             int

	Logger *slog.Logger
}

type Server struct {
	backend  Backend
	hub      *pagebridge.Hub
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	limit    rate.Limit
	burst    int
	logger   *slog.Logger

	// turns run on ctx so they finish when the UI disconnects
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closing  bool
	sessions map[*session]struct{}
}

func New(opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		backend:  opts.Backend,
		hub:      opts.Hub,
		gatherer: opts.Gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     OriginChecker(opts.AllowedOrigins),
		},
		limit:    limit,
		burst:    burst,
		logger:   logger.With("component", "server"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[*session]struct{}),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveUI)
	if s.hub != nil {
		mux.Handle("/bridge", s.hub)
	}
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", s.serveHealth)
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.hub != nil {
		body["peers"] = s.hub.Peers()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("failed to write health response", "error", err)
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down and
// waits for running turns.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close disconnects UI sessions, cancels running turns and waits for
// them.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.conn.Close()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Server) track(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[sess] = struct{}{}
	return true
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

// startTurn registers a running turn unless the server is closing.
func (s *Server) startTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}
