package orclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
)

// ModelCache caches the OpenRouter model list for ttl.
type ModelCache struct {
	mu        sync.RWMutex
	models    map[string]*aisdk.ModelInfo
	list      []*aisdk.ModelInfo
	fetchedAt time.Time
	ttl       time.Duration
	client    *Client
}

// NewModelCache creates a new model cache
func NewModelCache(client *Client, ttl time.Duration) *ModelCache {
	return &ModelCache{
		ttl:    ttl,
		client: client,
	}
}

// GetModel returns the cached entry for modelID, refreshing the list when
// stale.
func (mc *ModelCache) GetModel(ctx context.Context, modelID string) (*aisdk.ModelInfo, error) {
	if _, err := mc.GetModelList(ctx); err != nil {
		return nil, err
	}

	mc.mu.RLock()
	defer mc.mu.RUnlock()
	model, ok := mc.models[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	return model, nil
}

// GetModelList gets the model list from cache or fetches it
func (mc *ModelCache) GetModelList(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	mc.mu.RLock()
	if !mc.fetchedAt.IsZero() && time.Since(mc.fetchedAt) < mc.ttl {
		list := mc.list
		mc.mu.RUnlock()
		return list, nil
	}
	mc.mu.RUnlock()

	list, err := mc.client.listModelsUncached(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*aisdk.ModelInfo, len(list))
	for _, m := range list {
		byID[m.ID] = m
	}

	mc.mu.Lock()
	mc.list = list
	mc.models = byID
	mc.fetchedAt = time.Now()
	mc.mu.Unlock()

	return list, nil
}

// ClearCache clears the entire cache
func (mc *ModelCache) ClearCache() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.list = nil
	mc.models = nil
}

type modelsResponse struct {
	Data []*aisdk.ModelInfo `json:"data"`
}

// GetModels lists the models OpenRouter serves.
func (c *Client) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	return c.modelCache.GetModelList(ctx)
}

func (c *Client) listModelsUncached(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	for _, m := range out.Data {
		m.Provider = "openrouter"
	}
	return out.Data, nil
}
