package aisdk

import (
	"encoding/json"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// ChatTool represents a tool in the format expected by chat completion APIs
type ChatTool struct {
	Type     string           `json:"type"` // Always "function" for function tools
	Function ChatToolFunction `json:"function"`
}

// ChatToolFunction represents the function definition for chat APIs
type ChatToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"` // JSON Schema for parameters
}

// ParametersMap renders the parameter schema as a generic map, the shape
// the OpenAI and Anthropic SDKs accept. A missing schema becomes an empty
// object schema.
func (f ChatToolFunction) ParametersMap() map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if f.Parameters == nil {
		return out
	}
	raw, err := json.Marshal(f.Parameters)
	if err != nil {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return m
}
