package orclient

import (
	"context"
	"errors"

	"github.com/elee1766/pagepilot/src/aisdk"
)

var _ aisdk.ModelClient = (*ModelClient)(nil)

// ModelClient represents a client bound to a specific model
type ModelClient struct {
	client *Client
	model  *aisdk.ModelInfo
}

// Model binds modelName. The model list is consulted to fill in metadata; an
// unlisted model is still usable and OpenRouter reports the error at request
// time.
func (c *Client) Model(ctx context.Context, modelName string) (aisdk.ModelClient, error) {
	info, err := c.modelCache.GetModel(ctx, modelName)
	if err != nil {
		if !errors.Is(err, ErrModelNotFound) {
			c.logger.Warn("failed to look up model metadata", "model", modelName, "error", err)
		}
		info = &aisdk.ModelInfo{ID: modelName, Name: modelName, Provider: "openrouter"}
	}

	return &ModelClient{
		client: c,
		model:  info,
	}, nil
}

// CreateChatCompletion creates a chat completion with the bound model
func (mc *ModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	req.Model = mc.model.ID
	return mc.client.createChatCompletion(ctx, req)
}

// GetModelInfo returns the model information
func (mc *ModelClient) GetModelInfo() *aisdk.ModelInfo {
	return mc.model
}
