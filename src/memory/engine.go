// Package memory keeps episodic memories: short reflections on past
// conversations, retrieved by embedding similarity and merged when they
// overlap.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/embeddings"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultThreshold is the similarity at which memories are merged.
	DefaultThreshold = 0.7
	// DefaultQueryLimit is the number of memories recalled per chat turn.
	DefaultQueryLimit = 3
)

// ModelSource resolves the language model to use for a call.
type ModelSource func(ctx context.Context) (aisdk.ModelClient, error)

// Memory is the structured reflection generated from a transcript.
type Memory struct {
	Context      string `json:"context" required:"true" minLength:"1" description:"A summary of the context of the conversation" validate:"required"`
	Good         string `json:"good" required:"true" description:"What went well"`
	ToBeImproved string `json:"toBeImproved" required:"true" description:"What could be better"`
}

type conversationSummary struct {
	Summary string `json:"summary" required:"true" minLength:"1" description:"A summary of the context of the conversation" validate:"required"`
}

type mergedSentence struct {
	Sentence string `json:"sentence" required:"true" description:"One sentence capturing every statement" validate:"required"`
}

// Line is one transcript entry.
type Line struct {
	Role    string
	Content string
}

// Transcript is a conversation rendered for the model.
type Transcript []Line

func (t Transcript) String() string {
	var b strings.Builder
	for i, l := range t {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Role)
		b.WriteString(": ")
		b.WriteString(l.Content)
	}
	return b.String()
}

// TranscriptOf formats stored messages for the engine. System rows are
// skipped.
func TranscriptOf(msgs []storage.Message) Transcript {
	out := make(Transcript, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == storage.RoleSystem {
			continue
		}
		out = append(out, Line{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

// Result is a stored memory with its similarity to a query.
type Result struct {
	Memory storage.EpisodicMemory `json:"memory"`
	Score  float64                `json:"score"`
}

// UpdateResult reports what Update stored.
type UpdateResult struct {
	Memory *storage.EpisodicMemory
	// Replaced lists the ids merged into Memory. Empty when the memory was
	// stored standalone.
	Replaced []string
}

type Options struct {
	DB        *storage.DB
	Model     ModelSource
	Embedder  embeddings.Provider
	Threshold float64
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine generates, stores, recalls and consolidates episodic memories.
type Engine struct {
	db        *storage.DB
	model     ModelSource
	embedder  embeddings.Provider
	threshold float64
	logger    *slog.Logger
	now       func() time.Time
	validate  *validator.Validate

	memorySchema   *objectSchema
	summarySchema  *objectSchema
	sentenceSchema *objectSchema
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.DB == nil {
		return nil, errors.New("memory: database is required")
	}
	if opts.Model == nil {
		return nil, errors.New("memory: model source is required")
	}
	if opts.Embedder == nil {
		return nil, errors.New("memory: embeddings provider is required")
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		db:        opts.DB,
		model:     opts.Model,
		embedder:  opts.Embedder,
		threshold: opts.Threshold,
		logger:    opts.Logger.With("component", "memory"),
		now:       opts.Now,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	var err error
	if e.memorySchema, err = newObjectSchema("memory", Memory{}); err != nil {
		return nil, err
	}
	if e.summarySchema, err = newObjectSchema("summary", conversationSummary{}); err != nil {
		return nil, err
	}
	if e.sentenceSchema, err = newObjectSchema("sentence", mergedSentence{}); err != nil {
		return nil, err
	}
	return e, nil
}

// Threshold returns the merge similarity threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

const reflectionSystemPrompt = `You are an assistant agent, tasked with summarizing your interaction with the user. The user will provide you with a transcript of the conversation. Provide your summary and reflection on this interaction accordingly.
Respond with a JSON object with the keys "context", "good" and "toBeImproved".`

const summarySystemPrompt = `You are an assistant agent, tasked with summarizing your interaction with the user. Based on the conversation transcript between you and the user, generate a summary of the conversation.
Respond with a JSON object with the key "summary".`

const mergeSystemPrompt = `You merge notes. Combine every statement the user gives you into a single sentence that captures all of them.
Respond with a JSON object with the key "sentence".`

func (e *Engine) transcriptPrompt(instruction string, transcript Transcript) string {
	return fmt.Sprintf("It is %s, %s:\n============= conversation transcript =============\n%s\n===================================================",
		e.now().UTC().Format(time.RFC3339), instruction, transcript.String())
}

// Generate produces a reflection on transcript.
func (e *Engine) Generate(ctx context.Context, transcript Transcript) (*Memory, error) {
	model, err := e.model(ctx)
	if err != nil {
		return nil, err
	}
	var out Memory
	prompt := e.transcriptPrompt("generate a memory object based on the following conversation transcript", transcript)
	if err := generateObject(ctx, model, e.validate, e.memorySchema, reflectionSystemPrompt, prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SummarizeConversation returns a one-paragraph summary of transcript.
func (e *Engine) SummarizeConversation(ctx context.Context, transcript Transcript) (string, error) {
	model, err := e.model(ctx)
	if err != nil {
		return "", err
	}
	var out conversationSummary
	prompt := e.transcriptPrompt("generate a summary based on the following conversation transcript", transcript)
	if err := generateObject(ctx, model, e.validate, e.summarySchema, summarySystemPrompt, prompt, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

// Query returns stored memories ranked by similarity to text, best first.
// A non-positive limit returns every memory.
func (e *Engine) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := e.rank(ctx, vec)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (e *Engine) rank(ctx context.Context, vec []float32) ([]Result, error) {
	stored, err := storage.ListMemories(ctx, e.db.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	results := make([]Result, 0, len(stored))
	for _, m := range stored {
		results = append(results, Result{Memory: m, Score: CosineSimilarity(vec, m.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Add generates a memory for the conversation and stores it without
// consolidation.
func (e *Engine) Add(ctx context.Context, conversationID string, transcript Transcript) (*storage.EpisodicMemory, error) {
	mem, err := e.Generate(ctx, transcript)
	if err != nil {
		return nil, err
	}
	stored, err := e.toStored(ctx, conversationID, mem)
	if err != nil {
		return nil, err
	}
	if err := storage.CreateMemory(ctx, e.db.DB(), stored); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	return stored, nil
}

// Update generates a memory for the conversation and merges it with every
// stored memory at or above the threshold. When nothing matches, or when
// merging fails, the new memory is stored on its own.
func (e *Engine) Update(ctx context.Context, conversationID string, transcript Transcript) (*UpdateResult, error) {
	mem, err := e.Generate(ctx, transcript)
	if err != nil {
		return nil, err
	}
	stored, err := e.toStored(ctx, conversationID, mem)
	if err != nil {
		return nil, err
	}

	ranked, err := e.rank(ctx, stored.Embedding)
	if err != nil {
		return nil, err
	}
	var matches []storage.EpisodicMemory
	for _, r := range ranked {
		if r.Score < e.threshold {
			break
		}
		matches = append(matches, r.Memory)
	}

	logger := e.logger.With("conversation_id", conversationID)
	if len(matches) == 0 {
		if err := storage.CreateMemory(ctx, e.db.DB(), stored); err != nil {
			return nil, fmt.Errorf("failed to store memory: %w", err)
		}
		logger.Debug("stored standalone memory", "id", stored.ID)
		return &UpdateResult{Memory: stored}, nil
	}

	merged, err := e.consolidate(ctx, conversationID, mem, matches)
	if err != nil {
		logger.Warn("consolidation failed, storing memory standalone", "matches", len(matches), "error", err)
		if err := storage.CreateMemory(ctx, e.db.DB(), stored); err != nil {
			return nil, fmt.Errorf("failed to store memory: %w", err)
		}
		return &UpdateResult{Memory: stored}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	if err := storage.ReplaceMemories(ctx, e.db, ids, merged); err != nil {
		return nil, fmt.Errorf("failed to replace memories: %w", err)
	}
	logger.Debug("consolidated memories", "id", merged.ID, "replaced", len(ids))
	return &UpdateResult{Memory: merged, Replaced: ids}, nil
}

// consolidate summarizes each field of the matches and the new memory into
// one sentence.
func (e *Engine) consolidate(ctx context.Context, conversationID string, mem *Memory, matches []storage.EpisodicMemory) (*storage.EpisodicMemory, error) {
	contexts := []string{mem.Context}
	goods := []string{mem.Good}
	improvements := []string{mem.ToBeImproved}
	for _, m := range matches {
		contexts = append(contexts, m.Context)
		goods = append(goods, m.Good)
		improvements = append(improvements, m.ToBeImproved)
	}

	var merged Memory
	var err error
	if merged.Context, err = e.mergeSentences(ctx, contexts); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	if merged.Good, err = e.mergeSentences(ctx, goods); err != nil {
		return nil, fmt.Errorf("good: %w", err)
	}
	if merged.ToBeImproved, err = e.mergeSentences(ctx, improvements); err != nil {
		return nil, fmt.Errorf("toBeImproved: %w", err)
	}
	return e.toStored(ctx, conversationID, &merged)
}

func (e *Engine) mergeSentences(ctx context.Context, statements []string) (string, error) {
	var nonEmpty []string
	for _, s := range statements {
		if s = strings.TrimSpace(s); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return "", nil
	}

	model, err := e.model(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, s := range nonEmpty {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteByte('\n')
	}
	var out mergedSentence
	if err := generateObject(ctx, model, e.validate, e.sentenceSchema, mergeSystemPrompt, b.String(), &out); err != nil {
		return "", err
	}
	return out.Sentence, nil
}

func (e *Engine) toStored(ctx context.Context, conversationID string, mem *Memory) (*storage.EpisodicMemory, error) {
	vec, err := e.embedder.Embed(ctx, mem.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to embed memory: %w", err)
	}
	return &storage.EpisodicMemory{
		ConversationID: conversationID,
		Context:        mem.Context,
		Good:           mem.Good,
		ToBeImproved:   mem.ToBeImproved,
		Embedding:      vec,
		CreatedAt:      e.now(),
	}, nil
}

// List returns every stored memory, newest first.
func (e *Engine) List(ctx context.Context) ([]storage.EpisodicMemory, error) {
	return storage.ListMemories(ctx, e.db.DB())
}

// Delete removes a memory and reports whether it existed.
func (e *Engine) Delete(ctx context.Context, id string) (bool, error) {
	return storage.DeleteMemory(ctx, e.db.DB(), id)
}
