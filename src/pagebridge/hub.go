package pagebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame types on the bridge socket.
const (
	FrameHello    = "hello"
	FrameRequest  = "request"
	FrameResponse = "response"
)

const writeWait = 10 * time.Second

// peerFrame is anything a page peer sends: a hello announcing whether its
// tab is active, or a response to a request.
type peerFrame struct {
	Type   string `json:"type"`
	Active bool   `json:"active,omitempty"`
	Response
}

type requestFrame struct {
	Type string `json:"type"`
	Request
}

// Hub is a Transport over page peers connected by WebSocket. Requests go
// to the active peer: the one most recently connected or activated.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.Mutex
	peers  []*peer
	active *peer
}

type HubOptions struct {
	Logger      *slog.Logger
	CheckOrigin func(r *http.Request) bool
}

var _ Transport = (*Hub)(nil)

func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		logger:   logger.With("component", "pagebridge_hub"),
	}
}

type peer struct {
	conn   *websocket.Conn
	remote string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Response
	closed  bool
}

func (p *peer) send(v any) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(v)
}

func (p *peer) register(id string) (chan *Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPeerDisconnected
	}
	ch := make(chan *Response, 1)
	p.pending[id] = ch
	return ch, nil
}

func (p *peer) forget(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *peer) deliver(resp *Response) bool {
	p.mu.Lock()
	ch, ok := p.pending[resp.ID]
	delete(p.pending, resp.ID)
	p.mu.Unlock()
	if ok {
		ch <- resp
	}
	return ok
}

// shutdown closes every pending channel so waiting callers fail.
func (p *peer) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
}

// ServeHTTP upgrades the connection and reads peer frames until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("bridge upgrade failed", "error", err)
		return
	}

	p := &peer{conn: conn, remote: r.RemoteAddr, pending: make(map[string]chan *Response)}
	h.add(p)
	h.logger.Info("page peer connected", "remote", p.remote)

	defer func() {
		h.remove(p)
		p.shutdown()
		conn.Close()
		h.logger.Info("page peer disconnected", "remote", p.remote)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("bridge read failed", "remote", p.remote, "error", err)
			}
			return
		}

		var frame peerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Warn("invalid bridge frame", "remote", p.remote, "error", err)
			continue
		}

		switch frame.Type {
		case FrameHello:
			if frame.Active {
				h.activate(p)
			}
		case FrameResponse, "":
			resp := frame.Response
			if !p.deliver(&resp) {
				h.logger.Debug("response for unknown request", "id", resp.ID)
			}
		default:
			h.logger.Debug("ignoring bridge frame", "type", frame.Type)
		}
	}
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers = append(h.peers, p)
	h.active = p
}

func (h *Hub) activate(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = p
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, other := range h.peers {
		if other == p {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			break
		}
	}
	if h.active == p {
		h.active = nil
		if n := len(h.peers); n > 0 {
			h.active = h.peers[n-1]
		}
	}
}

// Peers returns the number of connected page peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// RoundTrip sends req to the active peer and waits for the matching
// response.
func (h *Hub) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	h.mu.Lock()
	p := h.active
	h.mu.Unlock()
	if p == nil {
		return nil, ErrNoActivePage
	}

	ch, err := p.register(req.ID)
	if err != nil {
		return nil, err
	}
	defer p.forget(req.ID)

	if err := p.send(requestFrame{Type: FrameRequest, Request: *req}); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", req.Op, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrPeerDisconnected
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close disconnects every peer.
func (h *Hub) Close() error {
	h.mu.Lock()
	peers := append([]*peer(nil), h.peers...)
	h.mu.Unlock()
	for _, p := range peers {
		p.conn.Close()
	}
	return nil
}
