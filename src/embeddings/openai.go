package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAI implements Provider with the OpenAI embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Provider = (*OpenAI)(nil)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: cfg.Model}, nil
}

func (p *OpenAI) Name() string {
	return "openai"
}

// Dimension returns the native size for known models.
func (p *OpenAI) Dimension() int {
	switch p.model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

func (p *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		results[data.Index] = data.Embedding
	}
	return results, nil
}
