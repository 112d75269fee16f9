package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/go-playground/validator/v10"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	swaggest "github.com/swaggest/jsonschema-go"
)

// objectSchema pairs the schema sent to the model with the compiled form
// used to check its answer.
type objectSchema struct {
	name     string
	schema   *swaggest.Schema
	compiled *jsonschema.Schema
}

func newObjectSchema(name string, sample any) (*objectSchema, error) {
	reflector := swaggest.Reflector{}
	schema, err := reflector.Reflect(sample)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect %s schema: %w", name, err)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s schema: %w", name, err)
	}
	compiled, err := jsonschema.CompileString(name+".json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
	}
	return &objectSchema{name: name, schema: &schema, compiled: compiled}, nil
}

// generateObject asks the model for a JSON object matching s and decodes it
// into out. The answer must pass both the JSON schema and the struct's
// validate tags; there are no partial results.
func generateObject(ctx context.Context, model aisdk.ModelClient, v *validator.Validate, s *objectSchema, system, prompt string, out any) error {
	req := &aisdk.ChatCompletionRequest{
		SystemPrompt: system,
		Messages:     []*aisdk.Message{{Role: aisdk.RoleUser, Content: prompt}},
		ResponseFormat: &aisdk.ResponseFormat{
			Type:   "json_object",
			Schema: s.schema,
		},
	}
	resp, err := model.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", s.name, err)
	}
	msg, ok := resp.FirstMessage()
	if !ok {
		return fmt.Errorf("failed to generate %s: no choices in response", s.name)
	}

	raw := stripFences(msg.Content)
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("invalid %s JSON: %w", s.name, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("invalid %s: %w", s.name, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("invalid %s JSON: %w", s.name, err)
	}
	if err := v.Struct(out); err != nil {
		return fmt.Errorf("invalid %s: %w", s.name, err)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, which some models
// add even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
