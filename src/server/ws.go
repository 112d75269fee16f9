package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elee1766/pagepilot/src/orchestrator"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	maxFrameBytes = 1 << 20
	sendBuffer    = 64
	writeWait     = 10 * time.Second
)

// Inbound frame types from the UI.
const (
	FrameChat               = "chat"
	FrameDeleteConversation = "delete_conversation"
	FrameListConversations  = "list_conversations"
	FrameLoadConversation   = "load_conversation"
	FrameLatestConversation = "latest_conversation"
	FrameGetSettings        = "get_settings"
	FrameSaveSetting        = "save_setting"
)

// Outbound frame types that are not orchestrator events.
const (
	FrameConversations        = "conversations"
	FrameConversationMessages = "conversation_messages"
	FrameSettings             = "settings"
	FrameSettingSaved         = "setting_saved"
	FrameError                = "error"
)

var errSessionClosed = errors.New("session closed")

type inboundFrame struct {
	Type           string `json:"type"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	SettingType    string `json:"settingType,omitempty"`
	Value          string `json:"value,omitempty"`
}

type conversationsFrame struct {
	Type          string                 `json:"type"`
	Conversations []storage.Conversation `json:"conversations"`
}

type messagesFrame struct {
	Type           string            `json:"type"`
	ConversationID string            `json:"conversationId"`
	Messages       []storage.Message `json:"messages"`
}

type latestFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

type settingsFrame struct {
	Type string `json:"type"`
	orchestrator.SettingsView
}

type settingSavedFrame struct {
	Type        string `json:"type"`
	SettingType string `json:"settingType"`
	Success     bool   `json:"success"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// session is one UI connection.
type session struct {
	server  *Server
	conn    *websocket.Conn
	limiter *rate.Limiter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (s *Server) serveUI(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ui upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sess := &session{
		server:  s,
		conn:    conn,
		limiter: rate.NewLimiter(s.limit, s.burst),
		logger:  s.logger.With("session", uuid.NewString()),
		ctx:     ctx,
		cancel:  cancel,
		send:    make(chan []byte, sendBuffer),
	}
	if !s.track(sess) {
		conn.Close()
		cancel()
		return
	}
	defer s.untrack(sess)
	sess.logger.Debug("ui connected", "remote", r.RemoteAddr)
	sess.run()
}

func (s *session) run() {
	defer s.close()
	go s.writeLoop()
	s.readLoop()
}

func (s *session) close() {
	s.cancel()
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()
	s.conn.Close()
	s.logger.Debug("ui disconnected")
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(maxFrameBytes)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !s.limiter.Allow() {
			s.sendError("rate limit exceeded")
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError(fmt.Sprintf("invalid frame: %v", err))
			continue
		}
		if err := s.dispatch(&frame); err != nil {
			s.sendError(err.Error())
		}
	}
}

func (s *session) writeLoop() {
	for msg := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.cancel()
			s.conn.Close()
			return
		}
	}
}

// enqueue queues v for the writer. It never blocks.
func (s *session) enqueue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	select {
	case s.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (s *session) sendError(msg string) {
	if err := s.enqueue(errorFrame{Type: FrameError, Message: msg}); err != nil {
		s.logger.Debug("failed to send error frame", "error", err)
	}
}

// sink forwards orchestrator events to this connection. Events for a
// closed connection are dropped.
func (s *session) sink() orchestrator.EventSink {
	return orchestrator.SinkFunc(func(e orchestrator.Event) error {
		err := s.enqueue(e)
		if errors.Is(err, errSessionClosed) {
			return nil
		}
		return err
	})
}

func (s *session) dispatch(frame *inboundFrame) error {
	switch frame.Type {
	case FrameChat:
		return s.handleChat(frame)
	case FrameDeleteConversation:
		if frame.ConversationID == "" {
			return errors.New("conversationId is required")
		}
		return s.handleDelete(frame.ConversationID)
	case FrameListConversations:
		convs, err := s.server.backend.ListConversations(s.ctx)
		if err != nil {
			return err
		}
		if convs == nil {
			convs = []storage.Conversation{}
		}
		return s.enqueue(conversationsFrame{Type: FrameConversations, Conversations: convs})
	case FrameLoadConversation:
		if frame.ConversationID == "" {
			return errors.New("conversationId is required")
		}
		msgs, err := s.server.backend.LoadConversation(s.ctx, frame.ConversationID)
		if err != nil {
			return err
		}
		if msgs == nil {
			msgs = []storage.Message{}
		}
		return s.enqueue(messagesFrame{Type: FrameConversationMessages, ConversationID: frame.ConversationID, Messages: msgs})
	case FrameLatestConversation:
		id, err := s.server.backend.LatestConversation(s.ctx)
		if err != nil {
			return err
		}
		return s.enqueue(latestFrame{Type: FrameLatestConversation, ConversationID: id})
	case FrameGetSettings:
		view, err := s.server.backend.GetSettings(s.ctx)
		if err != nil {
			return err
		}
		return s.enqueue(settingsFrame{Type: FrameSettings, SettingsView: *view})
	case FrameSaveSetting:
		err := s.server.backend.SaveSetting(s.ctx, storage.SettingType(frame.SettingType), frame.Value)
		if err != nil {
			s.logger.Warn("failed to save setting", "type", frame.SettingType, "error", err)
		}
		return s.enqueue(settingSavedFrame{Type: FrameSettingSaved, SettingType: frame.SettingType, Success: err == nil})
	case "":
		return errors.New("frame type is required")
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

// handleChat runs the turn on the server context so it completes and is
// persisted even if the UI goes away.
// handleDelete runs off the read loop since the delete waits for any turn
// running on the same conversation.
func (s *session) handleDelete(id string) error {
	sink := s.sink()
	if !s.server.startTurn() {
		return errors.New("server is shutting down")
	}
	go func() {
		defer s.server.wg.Done()
		if _, err := s.server.backend.DeleteConversation(s.ctx, id, sink); err != nil {
			s.logger.Error("delete failed", "conversation_id", id, "error", err)
			s.sendError(err.Error())
		}
	}()
	return nil
}

func (s *session) handleChat(frame *inboundFrame) error {
	if frame.Message == "" {
		return errors.New("message is required")
	}
	req := orchestrator.ChatRequest{Message: frame.Message, ConversationID: frame.ConversationID}
	sink := s.sink()

	if !s.server.startTurn() {
		return errors.New("server is shutting down")
	}
	go func() {
		defer s.server.wg.Done()
		if _, err := s.server.backend.HandleChat(s.server.ctx, req, sink); err != nil {
			s.logger.Error("chat failed", "error", err)
			s.sendError(err.Error())
		}
	}()
	return nil
}
