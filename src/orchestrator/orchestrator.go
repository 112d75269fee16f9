// Package orchestrator runs one chat turn: it resolves the model, persists
// the exchange, drives the tool loop against the page and schedules memory
// consolidation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/memory"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/pilotagent"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxSteps    = 10
	DefaultMemoryLimit = 3

	stepLimitReply = "I reached the step limit before finishing this request."
)

// ModelResolver binds the stored settings to a model client.
type ModelResolver interface {
	Resolve(ctx context.Context, apiKey, model string) (aisdk.ModelClient, error)
}

// MemoryStore is the part of the memory engine used during a turn.
type MemoryStore interface {
	Query(ctx context.Context, text string, limit int) ([]memory.Result, error)
	Update(ctx context.Context, conversationID string, transcript memory.Transcript) (*memory.UpdateResult, error)
}

// TaskRunner runs detached work.
type TaskRunner interface {
	Go(task string, fn func(ctx context.Context) error) error
}

// Options configures an Orchestrator.
type Options struct {
	DB     *storage.DB
	Models ModelResolver

	// Page backs the page tools. Nil runs without them.
	Page pagebridge.Page

	// Memory and Runner are optional. Consolidation runs only when both
	// are set.
	Memory MemoryStore
	Runner TaskRunner

	// MaxSteps is the number of tool calls allowed per turn.
	MaxSteps int
	// HistoryWindow is the number of stored messages sent to the model.
	// 0 sends all of them.
	HistoryWindow int
	MaxTokens     int
	ToolTimeout   time.Duration
	MemoryLimit   int

	// OnSettingSaved runs after a setting is stored.
	OnSettingSaved func(storage.SettingType)

	Metrics *Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// ChatRequest is one user message.
type ChatRequest struct {
	Message string
	// ConversationID is generated when empty.
	ConversationID string
}

// ChatResponse is the persisted assistant reply of a turn.
type ChatResponse struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Role           string `json:"role"`
	Timestamp      int64  `json:"timestamp"`
	Error          bool   `json:"error,omitempty"`
	Steps          int    `json:"-"`
}

type Orchestrator struct {
	db            *storage.DB
	models        ModelResolver
	page          pagebridge.Page
	memory        MemoryStore
	runner        TaskRunner
	maxSteps      int
	historyWindow int
	maxTokens     int
	toolTimeout   time.Duration
	memoryLimit   int
	metrics       *Metrics
	logger        *slog.Logger
	now           func() time.Time
	locks         *keyedMutex
	onSaved       func(storage.SettingType)
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.DB == nil {
		return nil, ErrDatabaseRequired
	}
	if opts.Models == nil {
		return nil, ErrModelClientRequired
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = DefaultMemoryLimit
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		db:            opts.DB,
		models:        opts.Models,
		page:          opts.Page,
		memory:        opts.Memory,
		runner:        opts.Runner,
		maxSteps:      opts.MaxSteps,
		historyWindow: opts.HistoryWindow,
		maxTokens:     opts.MaxTokens,
		toolTimeout:   opts.ToolTimeout,
		memoryLimit:   opts.MemoryLimit,
		metrics:       opts.Metrics,
		logger:        opts.Logger.With("component", "orchestrator"),
		now:           opts.Now,
		locks:         newKeyedMutex(),
		onSaved:       opts.OnSettingSaved,
	}, nil
}

// HandleChat runs one turn. Failures after validation are reported as a
// persisted error reply; the returned error is non-nil only when the
// request is invalid or the reply itself could not be stored.
func (o *Orchestrator) HandleChat(ctx context.Context, req ChatRequest, sink EventSink) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}

	unlock := o.locks.Lock(convID)
	defer unlock()

	ctx, span := GetTracer().Start(ctx, "orchestrator.handle_chat",
		trace.WithAttributes(attribute.String("conversation.id", convID)))
	defer span.End()

	logger := o.logger.With("conversation_id", convID)

	model, err := o.resolveModel(ctx)
	if errors.Is(err, ErrNoAPIKey) {
		logger.Info("chat without API key")
		o.metrics.ChatsTotal.WithLabelValues("no_api_key").Inc()
		return o.reply(ctx, convID, NoAPIKeyReply, false, sink)
	}
	if err != nil {
		return o.fail(ctx, span, logger, convID, "resolve_model", err, sink)
	}
	modelID := model.GetModelInfo().ID
	span.SetAttributes(chatAttributes(convID, modelID)...)

	if err := storage.CreateMessage(ctx, o.db.DB(), &storage.Message{
		ConversationID: convID,
		Role:           storage.RoleUser,
		Content:        req.Message,
	}); err != nil {
		return o.fail(ctx, span, logger, convID, "persist_user", fmt.Errorf("failed to save user message: %w", err), sink)
	}

	history, err := storage.GetRecentMessages(ctx, o.db.DB(), convID, o.historyWindow)
	if err != nil {
		return o.fail(ctx, span, logger, convID, "load_history", fmt.Errorf("failed to load history: %w", err), sink)
	}

	toolbox, err := pilotagent.NewToolbox(pilotagent.ToolboxOptions{
		Page:        o.page,
		Model:       model,
		Logger:      logger,
		Timeout:     o.toolTimeout,
		Middlewares: []agent.ToolMiddleware{o.metrics.ToolMiddleware()},
	})
	if err != nil {
		return o.fail(ctx, span, logger, convID, "toolbox", err, sink)
	}

	systemPrompt := pilotagent.GenerateSystemPrompt(pilotagent.PromptContext{
		Now:      o.now(),
		Memories: o.queryMemories(ctx, logger, req.Message),
		Toolbox:  toolbox,
	})

	answer, steps, err := o.runLoop(ctx, logger, convID, model, toolbox, systemPrompt, toAISDKMessages(history), sink)
	o.metrics.StepsPerChat.Observe(float64(steps))
	span.SetAttributes(attribute.Int("chat.steps", steps))
	if err != nil {
		return o.fail(ctx, span, logger, convID, "model", err, sink)
	}

	resp, err := o.reply(ctx, convID, answer, false, sink)
	if err != nil {
		return nil, err
	}
	resp.Steps = steps
	o.metrics.ChatsTotal.WithLabelValues("ok").Inc()
	logger.Info("chat completed", "model", modelID, "steps", steps)

	o.scheduleMemoryUpdate(convID, logger)
	return resp, nil
}

func (o *Orchestrator) resolveModel(ctx context.Context) (aisdk.ModelClient, error) {
	apiKey, err := storage.GetSettingValue(ctx, o.db.DB(), storage.SettingAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read api key setting: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	model, err := storage.GetSettingValue(ctx, o.db.DB(), storage.SettingModel)
	if err != nil {
		return nil, fmt.Errorf("failed to read model setting: %w", err)
	}
	client, err := o.models.Resolve(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrModelClientRequired
	}
	return client, nil
}

func (o *Orchestrator) queryMemories(ctx context.Context, logger *slog.Logger, text string) []memory.Result {
	if o.memory == nil {
		return nil
	}
	results, err := o.memory.Query(ctx, text, o.memoryLimit)
	if err != nil {
		logger.Warn("memory query failed", "error", err)
		return nil
	}
	return results
}

// runLoop alternates model calls and tool calls. Every tool call is one
// step. Once the budget is spent the model is called once more without
// tools for a final answer.
func (o *Orchestrator) runLoop(ctx context.Context, logger *slog.Logger, convID string, model aisdk.ModelClient, toolbox *agent.DefaultToolbox, systemPrompt string, history []*aisdk.Message, sink EventSink) (string, int, error) {
	a := &agent.Agent{
		SystemPrompt: systemPrompt,
		Model:        model,
		Toolbox:      toolbox,
		Logger:       logger,
		MaxTokens:    o.maxTokens,
	}
	conv := aisdk.NewConversation(convID, "", history)

	steps := 0
	for {
		exhausted := steps >= o.maxSteps
		start := time.Now()
		msg, err := a.SendMessage(ctx, conv, nil, agent.SendOptions{DisableTools: exhausted})
		o.metrics.ModelLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return "", steps, fmt.Errorf("model call failed: %w", err)
		}

		if exhausted || len(msg.ToolCalls) == 0 {
			content := strings.TrimSpace(msg.Content)
			if content != "" {
				return content, steps, nil
			}
			if exhausted {
				return stepLimitReply, steps, nil
			}
			return "", steps, ErrEmptyResponse
		}

		conv.Append(msg)
		for i := range msg.ToolCalls {
			call := msg.ToolCalls[i]
			if steps >= o.maxSteps {
				logger.Debug("tool call beyond step limit", "tool", call.Function.Name)
				conv.Append(toolMessage(&call, StepLimitNote, true))
				continue
			}
			steps++
			conv.Append(o.executeTool(ctx, logger, convID, toolbox, &call, steps, sink))
		}
	}
}

// executeTool runs one call. Failures become "Error: ..." observations.
func (o *Orchestrator) executeTool(ctx context.Context, logger *slog.Logger, convID string, toolbox *agent.DefaultToolbox, call *aisdk.ToolCall, step int, sink EventSink) *aisdk.Message {
	ctx, span := GetTracer().Start(ctx, "orchestrator.tool",
		trace.WithAttributes(toolAttributes(call.Function.Name, call.ID, step)...))
	defer span.End()

	o.emit(logger, sink, &ToolCallEvent{
		BaseEvent: BaseEvent{Type: EventToolCall, ConversationID: convID},
		Tool:      call.Function.Name,
		CallID:    call.ID,
		Arguments: call.Function.Arguments,
		Step:      step,
	})

	start := time.Now()
	resp, err := toolbox.ExecuteTool(ctx, call)
	duration := time.Since(start)

	var content string
	isError := false
	switch {
	case err != nil:
		content = "Error: " + err.Error()
		isError = true
	case resp == nil:
		content = "Error: tool returned no result"
		isError = true
	case resp.IsError:
		content = "Error: " + string(resp.Content)
		isError = true
	default:
		content = string(resp.Content)
	}
	if isError {
		span.SetStatus(codes.Error, content)
	}

	o.emit(logger, sink, &ToolResultEvent{
		BaseEvent:  BaseEvent{Type: EventToolResult, ConversationID: convID},
		Tool:       call.Function.Name,
		CallID:     call.ID,
		Content:    content,
		IsError:    isError,
		DurationMs: duration.Milliseconds(),
	})
	return toolMessage(call, content, isError)
}

func toolMessage(call *aisdk.ToolCall, content string, isError bool) *aisdk.Message {
	return &aisdk.Message{
		Role:       aisdk.RoleTool,
		Content:    content,
		Name:       call.Function.Name,
		ToolCallID: call.ID,
		IsError:    isError,
	}
}

// reply persists an assistant message and emits it.
func (o *Orchestrator) reply(ctx context.Context, convID, content string, isError bool, sink EventSink) (*ChatResponse, error) {
	msg := &storage.Message{
		ConversationID: convID,
		Role:           storage.RoleAssistant,
		Content:        content,
	}
	// the reply is stored even when the caller has gone away
	if err := storage.CreateMessage(context.WithoutCancel(ctx), o.db.DB(), msg); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	resp := &ChatResponse{
		ConversationID: convID,
		Content:        content,
		Role:           string(storage.RoleAssistant),
		Timestamp:      msg.Timestamp,
		Error:          isError,
	}
	o.emit(o.logger, sink, &ChatResponseEvent{
		BaseEvent: BaseEvent{Type: EventChatResponse, ConversationID: convID},
		Content:   resp.Content,
		Role:      resp.Role,
		Timestamp: resp.Timestamp,
		Error:     isError,
	})
	return resp, nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, logger *slog.Logger, convID, stage string, err error, sink EventSink) (*ChatResponse, error) {
	logger.Error("chat failed", "stage", stage, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	o.metrics.ErrorsTotal.WithLabelValues(stage).Inc()
	o.metrics.ChatsTotal.WithLabelValues("error").Inc()
	return o.reply(ctx, convID, ErrorReply, true, sink)
}

func (o *Orchestrator) emit(logger *slog.Logger, sink EventSink, event Event) {
	if sink == nil {
		return
	}
	if err := sink.Send(event); err != nil {
		logger.Warn("failed to emit event", "type", event.GetType(), "error", err)
	}
}

// scheduleMemoryUpdate hands the conversation to the memory engine on a
// detached task.
func (o *Orchestrator) scheduleMemoryUpdate(convID string, logger *slog.Logger) {
	if o.memory == nil || o.runner == nil {
		return
	}
	err := o.runner.Go("memory_update", func(ctx context.Context) error {
		msgs, err := storage.GetMessagesByConversationID(ctx, o.db.DB(), convID)
		if err != nil {
			o.metrics.MemoryTasksTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to load conversation %s: %w", convID, err)
		}
		result, err := o.memory.Update(ctx, convID, memory.TranscriptOf(msgs))
		if err != nil {
			o.metrics.MemoryTasksTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("memory update for %s: %w", convID, err)
		}
		o.metrics.MemoryTasksTotal.WithLabelValues("ok").Inc()
		logger.Debug("memory updated", "replaced", len(result.Replaced))
		return nil
	})
	if err != nil {
		logger.Warn("failed to schedule memory update", "error", err)
	}
}
