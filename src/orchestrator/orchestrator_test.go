package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/dom"
	"github.com/elee1766/pagepilot/src/memory"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptModel struct {
	mu       sync.Mutex
	requests []*aisdk.ChatCompletionRequest
	respond  func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error)
}

func (m *scriptModel) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	msg, err := m.respond(n, req)
	if err != nil {
		return nil, err
	}
	return &aisdk.ChatCompletionResponse{Choices: []aisdk.Choice{{Message: *msg}}}, nil
}

func (m *scriptModel) GetModelInfo() *aisdk.ModelInfo { return &aisdk.ModelInfo{ID: "script"} }

func (m *scriptModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func text(s string) *aisdk.Message {
	return &aisdk.Message{Role: aisdk.RoleAssistant, Content: s}
}

func toolCalls(names ...string) *aisdk.Message {
	msg := &aisdk.Message{Role: aisdk.RoleAssistant}
	for i, name := range names {
		args := `{}`
		if name == "performAction" {
			args = `{"elementXpath":"//button","action":"click"}`
		}
		msg.ToolCalls = append(msg.ToolCalls, aisdk.ToolCall{
			ID:       fmt.Sprintf("call_%d", i),
			Type:     "function",
			Function: aisdk.FunctionCall{Name: name, Arguments: json.RawMessage(args)},
		})
	}
	return msg
}

type fakeResolver struct {
	model aisdk.ModelClient
	err   error
	calls int
	key   string
	name  string
}

func (r *fakeResolver) Resolve(ctx context.Context, apiKey, model string) (aisdk.ModelClient, error) {
	r.calls++
	r.key, r.name = apiKey, model
	return r.model, r.err
}

type fakePage struct {
	mu        sync.Mutex
	reads     int
	actionErr error
}

func (p *fakePage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	return "Welcome to the shop", nil
}

func (p *fakePage) InteractiveElements(ctx context.Context) ([]dom.Element, error) {
	return []dom.Element{{Text: "Buy", XPath: "//button", Tag: "button"}}, nil
}

func (p *fakePage) PerformAction(ctx context.Context, req pagebridge.ActionRequest) (*pagebridge.ActionResult, error) {
	if p.actionErr != nil {
		return nil, p.actionErr
	}
	return &pagebridge.ActionResult{Title: "Cart", URL: "https://shop.example/cart"}, nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) (*pagebridge.NavigateResult, error) {
	return &pagebridge.NavigateResult{Title: "Shop", URL: url}, nil
}

type fakeMemory struct {
	mu      sync.Mutex
	results []memory.Result
	queries []string
	updates []memory.Transcript
}

func (m *fakeMemory) Query(ctx context.Context, text string, limit int) ([]memory.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, text)
	return m.results, nil
}

func (m *fakeMemory) Update(ctx context.Context, conversationID string, transcript memory.Transcript) (*memory.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, transcript)
	return &memory.UpdateResult{}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Send(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, e := range r.events {
		out = append(out, e.GetType())
	}
	return out
}

type fixture struct {
	db       *storage.DB
	model    *scriptModel
	resolver *fakeResolver
	page     *fakePage
	memory   *fakeMemory
	runner   *memory.Runner
	metrics  *Metrics
	orch     *Orchestrator
}

func newFixture(t *testing.T, withKey bool, respond func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error), mutate ...func(*Options)) *fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "pagepilot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if withKey {
		require.NoError(t, storage.UpsertSetting(context.Background(), db.DB(), storage.SettingAPIKey, "sk-test"))
	}

	f := &fixture{
		db:      db,
		model:   &scriptModel{respond: respond},
		page:    &fakePage{},
		memory:  &fakeMemory{},
		runner:  memory.NewRunner(memory.RunnerOptions{Timeout: 5 * time.Second}),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.resolver = &fakeResolver{model: f.model}

	opts := Options{
		DB:       db,
		Models:   f.resolver,
		Page:     f.page,
		Memory:   f.memory,
		Runner:   f.runner,
		MaxSteps: 10,
		Metrics:  f.metrics,
		Now:      func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.orch, err = New(opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) messages(t *testing.T, convID string) []storage.Message {
	t.Helper()
	msgs, err := f.orch.LoadConversation(context.Background(), convID)
	require.NoError(t, err)
	return msgs
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrDatabaseRequired)

	db, err := storage.Open(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = New(Options{DB: db})
	assert.ErrorIs(t, err, ErrModelClientRequired)
}

func TestHandleChatWithoutAPIKey(t *testing.T) {
	f := newFixture(t, false, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		return text("should not happen"), nil
	})
	rec := &recorder{}

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "hello", ConversationID: "c1"}, rec)
	require.NoError(t, err)
	assert.Equal(t, NoAPIKeyReply, resp.Content)
	assert.False(t, resp.Error)

	assert.Zero(t, f.resolver.calls)
	assert.Zero(t, f.model.calls())

	msgs := f.messages(t, "c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, storage.RoleAssistant, msgs[0].Role)
	assert.Equal(t, NoAPIKeyReply, msgs[0].Content)
	assert.Equal(t, []EventType{EventChatResponse}, rec.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChatsTotal.WithLabelValues("no_api_key")))
}

func TestHandleChatPlainAnswer(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		return text("  Hi there  "), nil
	})
	require.NoError(t, f.orch.SaveSetting(context.Background(), storage.SettingModel, "claude-3.5-sonnet"))
	f.memory.results = []memory.Result{{Memory: storage.EpisodicMemory{Context: "User likes trail shoes", Good: "g", ToBeImproved: "i"}, Score: 0.8}}
	rec := &recorder{}

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "hello", ConversationID: "c1"}, rec)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.NotZero(t, resp.Timestamp)

	assert.Equal(t, "sk-test", f.resolver.key)
	assert.Equal(t, "claude-3.5-sonnet", f.resolver.name)

	msgs := f.messages(t, "c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, storage.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, storage.RoleAssistant, msgs[1].Role)

	req := f.model.requests[0]
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hello", req.Messages[0].Content)
	assert.Contains(t, req.SystemPrompt, "User likes trail shoes")
	assert.Contains(t, req.SystemPrompt, "Fri, 02 Jan 2026 03:04:05 UTC")
	assert.NotEmpty(t, req.Tools)
	assert.Equal(t, []string{"hello"}, f.memory.queries)

	require.NoError(t, f.runner.Close())
	require.Len(t, f.memory.updates, 1)
	assert.Equal(t, memory.Transcript{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "Hi there"}}, f.memory.updates[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MemoryTasksTotal.WithLabelValues("ok")))
}

func TestHandleChatGeneratesConversationID(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		return text("ok"), nil
	})
	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "hi"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Len(t, f.messages(t, resp.ConversationID), 2)

	_, err = f.orch.HandleChat(context.Background(), ChatRequest{Message: "   "}, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandleChatToolRound(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		if n == 1 {
			return toolCalls("getCurrentTabContent"), nil
		}
		return text("The page welcomes you to the shop."), nil
	})
	rec := &recorder{}

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "what is this page?", ConversationID: "c1"}, rec)
	require.NoError(t, err)
	assert.Equal(t, "The page welcomes you to the shop.", resp.Content)
	assert.Equal(t, 1, resp.Steps)
	assert.Equal(t, 1, f.page.reads)

	require.Equal(t, 2, f.model.calls())
	second := f.model.requests[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, aisdk.RoleAssistant, second[1].Role)
	assert.Equal(t, aisdk.RoleTool, second[2].Role)
	assert.Equal(t, "call_0", second[2].ToolCallID)
	assert.JSONEq(t, `{"content":"Welcome to the shop"}`, second[2].Content)

	assert.Equal(t, []EventType{EventToolCall, EventToolResult, EventChatResponse}, rec.types())
	assert.Len(t, f.messages(t, "c1"), 2, "tool traffic is not persisted")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ToolCallsTotal.WithLabelValues("getCurrentTabContent", "ok")))
}

func TestHandleChatToolErrorObservation(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		if n == 1 {
			return toolCalls("performAction", "noSuchTool"), nil
		}
		return text("I could not click it."), nil
	})
	f.page.actionErr = pagebridge.NotFound("//button")

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "click buy", ConversationID: "c1"}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Error)

	msgs := f.model.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "Error: performAction failed: element not found; call getInteractiveElements for fresh xpaths", msgs[2].Content)
	assert.True(t, strings.HasPrefix(msgs[3].Content, "Error: tool not found"))
}

func TestHandleChatStepCeiling(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		if req.ToolChoice == "none" {
			return text("Best effort: the cart has one item."), nil
		}
		return toolCalls("getCurrentTabContent", "getInteractiveElements"), nil
	}, func(o *Options) { o.MaxSteps = 3 })

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "loop forever", ConversationID: "c1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Best effort: the cart has one item.", resp.Content)
	assert.Equal(t, 3, resp.Steps)

	require.Equal(t, 3, f.model.calls())
	final := f.model.requests[2]
	assert.NotEmpty(t, final.Tools)
	assert.Equal(t, "none", final.ToolChoice)

	var limited int
	for _, m := range final.Messages {
		if m.Role == aisdk.RoleTool && m.Content == StepLimitNote {
			limited++
		}
	}
	assert.Equal(t, 1, limited)
	assert.Equal(t, 2, f.page.reads)
}

func TestHandleChatStepCeilingEmptyFinal(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		if req.ToolChoice == "none" {
			return text(""), nil
		}
		return toolCalls("getCurrentTabContent"), nil
	}, func(o *Options) { o.MaxSteps = 1 })

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "go", ConversationID: "c1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, stepLimitReply, resp.Content)
}

func TestHandleChatModelFailure(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		return nil, errors.New("rate limited")
	})
	rec := &recorder{}

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "hello", ConversationID: "c1"}, rec)
	require.NoError(t, err)
	assert.True(t, resp.Error)
	assert.Equal(t, ErrorReply, resp.Content)

	msgs := f.messages(t, "c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, ErrorReply, msgs[1].Content)

	require.Len(t, rec.events, 1)
	ev := rec.events[0].(*ChatResponseEvent)
	assert.True(t, ev.Error)

	require.NoError(t, f.runner.Close())
	assert.Empty(t, f.memory.updates, "failed turns are not consolidated")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ErrorsTotal.WithLabelValues("model")))
}

func TestHandleChatResolveFailure(t *testing.T) {
	f := newFixture(t, true, nil)
	f.resolver.model = nil
	f.resolver.err = errors.New("unsupported provider")

	resp, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "hello", ConversationID: "c1"}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Error)
	msgs := f.messages(t, "c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, ErrorReply, msgs[0].Content)
}

func TestHandleChatHistoryWindow(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		return text("ok"), nil
	}, func(o *Options) { o.HistoryWindow = 3 })

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		role := storage.RoleUser
		if i%2 == 1 {
			role = storage.RoleAssistant
		}
		require.NoError(t, storage.CreateMessage(ctx, f.db.DB(), &storage.Message{ConversationID: "c1", Role: role, Content: fmt.Sprintf("m%d", i)}))
	}

	_, err := f.orch.HandleChat(ctx, ChatRequest{Message: "latest", ConversationID: "c1"}, nil)
	require.NoError(t, err)

	sent := f.model.requests[0].Messages
	require.Len(t, sent, 3)
	assert.Equal(t, "m3", sent[0].Content)
	assert.Equal(t, "m4", sent[1].Content)
	assert.Equal(t, "latest", sent[2].Content)
}

func TestHandleChatWithoutPage(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		return text("ok"), nil
	}, func(o *Options) { o.Page = nil })

	_, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: "hi", ConversationID: "c1"}, nil)
	require.NoError(t, err)
	tools := f.model.requests[0].Tools
	require.Len(t, tools, 1)
	assert.Equal(t, "decideAction", tools[0].Function.Name)
}

func TestHandleChatSerializesConversation(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return text("ok"), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.orch.HandleChat(context.Background(), ChatRequest{Message: fmt.Sprintf("msg %d", i), ConversationID: "same"}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Len(t, f.messages(t, "same"), 8)
	assert.Zero(t, f.orch.locks.size())
}

func TestConversationOperations(t *testing.T) {
	f := newFixture(t, true, func(n int, req *aisdk.ChatCompletionRequest) (*aisdk.Message, error) {
		return text("reply"), nil
	})
	ctx := context.Background()

	latest, err := f.orch.LatestConversation(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)

	_, err = f.orch.HandleChat(ctx, ChatRequest{Message: "first", ConversationID: "a"}, nil)
	require.NoError(t, err)
	_, err = f.orch.HandleChat(ctx, ChatRequest{Message: "second", ConversationID: "b"}, nil)
	require.NoError(t, err)

	convs, err := f.orch.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "b", convs[0].ID)

	latest, err = f.orch.LatestConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", latest)

	rec := &recorder{}
	ok, err := f.orch.DeleteConversation(ctx, "a", rec)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, rec.events, 1)
	assert.Equal(t, &ConversationDeletedEvent{BaseEvent: BaseEvent{Type: EventConversationDeleted, ConversationID: "a"}, Success: true}, rec.events[0])

	assert.Empty(t, f.messages(t, "a"))
	assert.Len(t, f.messages(t, "b"), 2)

	rec = &recorder{}
	ok, err = f.orch.DeleteConversation(ctx, "a", rec)
	require.NoError(t, err)
	assert.True(t, ok, "deleting an empty conversation succeeds")
	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].(*ConversationDeletedEvent).Success)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	view, err := f.orch.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SettingsView{APIKeySet: false, Model: "gpt-4o-mini"}, view)

	require.NoError(t, f.orch.SaveSetting(ctx, storage.SettingAPIKey, " sk-1 "))
	require.NoError(t, f.orch.SaveSetting(ctx, storage.SettingModel, "openai/gpt-4o"))
	require.NoError(t, f.orch.SaveSetting(ctx, storage.SettingModel, "openai/gpt-4o"))
	assert.Error(t, f.orch.SaveSetting(ctx, storage.SettingType("theme"), "dark"))

	view, err = f.orch.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SettingsView{APIKeySet: true, Model: "openai/gpt-4o"}, view)

	settings, err := storage.ListSettings(ctx, f.db.DB())
	require.NoError(t, err)
	assert.Len(t, settings, 2)
}

func TestToAISDKMessages(t *testing.T) {
	name := "lookup"
	got := toAISDKMessages([]storage.Message{
		{Role: storage.RoleSystem, Content: "old prompt"},
		{Role: storage.RoleUser, Content: "q"},
		{Role: storage.RoleFunction, Content: "42", Name: &name},
		{Role: storage.RoleAssistant, Content: "a"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, aisdk.RoleUser, got[0].Role)
	assert.Equal(t, aisdk.RoleAssistant, got[1].Role)
	assert.Equal(t, "[lookup] 42", got[1].Content)
	assert.Equal(t, "a", got[2].Content)
}

func TestChannelEventSink(t *testing.T) {
	var out strings.Builder
	console := NewConsoleEventProcessor(&out, ConsoleProcessorConfig{RawMode: true})
	sink := NewChannelEventSink(4, nil, console)

	require.NoError(t, sink.Send(&ToolCallEvent{BaseEvent: BaseEvent{Type: EventToolCall}, Tool: "x"}))
	require.NoError(t, sink.Send(&ChatResponseEvent{BaseEvent: BaseEvent{Type: EventChatResponse}, Content: "final"}))
	require.NoError(t, sink.Close())

	assert.Equal(t, "final\n", out.String())
	assert.Error(t, sink.Send(&ChatResponseEvent{}))
}

func TestConsoleEventProcessor(t *testing.T) {
	var out strings.Builder
	p := NewConsoleEventProcessor(&out, ConsoleProcessorConfig{ShowToolArguments: true, ShowToolResults: true, MaxResultPreview: 5})

	require.NoError(t, p.Process(&ToolCallEvent{Tool: "navigateToUrl", Step: 1, Arguments: json.RawMessage(`{"url":"https://go.dev"}`)}))
	require.NoError(t, p.Process(&ToolResultEvent{Tool: "navigateToUrl", Content: "abcdefghij", DurationMs: 120}))
	require.NoError(t, p.Process(&ToolResultEvent{Tool: "performAction", Content: "Error: boom", IsError: true}))

	s := out.String()
	assert.Contains(t, s, "navigateToUrl")
	assert.Contains(t, s, "https://go.dev")
	assert.Contains(t, s, "abcde...")
	assert.Contains(t, s, "Error")
}

func TestEventJSON(t *testing.T) {
	b, err := json.Marshal(&ChatResponseEvent{
		BaseEvent: BaseEvent{Type: EventChatResponse, ConversationID: "c1"},
		Content:   "hi",
		Role:      "assistant",
		Timestamp: 42,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat_response","conversationId":"c1","content":"hi","role":"assistant","timestamp":42}`, string(b))
}
