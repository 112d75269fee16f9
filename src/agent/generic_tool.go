package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/swaggest/jsonschema-go"
)

// GenericTool is a type-safe tool whose parameter schema is reflected from
// TInput. Parse, validation and handler failures are reported to the model
// as error responses rather than Go errors.
type GenericTool[TInput any, TOutput any] struct {
	Type        string
	Name        string
	Description string
	InputType   reflect.Type
	OutputType  reflect.Type
	Schema      *jsonschema.Schema
	Handler     GenericToolHandler[TInput, TOutput]
}

// GenericToolHandler is a type-safe handler function
type GenericToolHandler[TInput any, TOutput any] func(ctx context.Context, input TInput) (TOutput, error)

func (gt *GenericTool[TInput, TOutput]) GetType() string {
	return gt.Type
}

func (gt *GenericTool[TInput, TOutput]) GetName() string {
	return gt.Name
}

func (gt *GenericTool[TInput, TOutput]) GetDescription() string {
	return gt.Description
}

func (gt *GenericTool[TInput, TOutput]) GetParameters() *jsonschema.Schema {
	return gt.Schema
}

// Execute decodes the call arguments into TInput, checks required fields and
// runs the handler.
func (gt *GenericTool[TInput, TOutput]) Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	var input TInput
	args := call.Function.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResponse(fmt.Sprintf("failed to parse input: %v", err)), nil
	}

	if err := gt.validateRequired(input); err != nil {
		return errorResponse(fmt.Sprintf("validation failed: %v", err)), nil
	}

	output, err := gt.Handler(ctx, input)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	content, err := json.Marshal(output)
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}

	return &aisdk.ToolResponse{
		Type:    "success",
		Content: content,
	}, nil
}

func errorResponse(msg string) *aisdk.ToolResponse {
	return &aisdk.ToolResponse{
		Type:    "error",
		Content: []byte(msg),
		IsError: true,
	}
}

// validateRequired checks that required fields are not empty
func (gt *GenericTool[TInput, TOutput]) validateRequired(input TInput) error {
	if gt.Schema == nil || len(gt.Schema.Required) == 0 {
		return nil
	}

	val := reflect.Indirect(reflect.ValueOf(input))
	if !val.IsValid() {
		return fmt.Errorf("input is empty")
	}
	typ := val.Type()

	for _, requiredField := range gt.Schema.Required {
		found := false
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			fieldName := strings.Split(field.Tag.Get("json"), ",")[0]
			if fieldName != requiredField {
				continue
			}
			found = true
			if val.Field(i).IsZero() {
				return fmt.Errorf("required field '%s' is missing", requiredField)
			}
			break
		}
		if !found {
			return fmt.Errorf("required field '%s' not found in struct", requiredField)
		}
	}

	return nil
}

// NewGenericTool creates a new generic tool with automatic schema generation
func NewGenericTool[TInput any, TOutput any](name, description string, handler GenericToolHandler[TInput, TOutput]) (*GenericTool[TInput, TOutput], error) {
	var input TInput
	inputType := reflect.TypeOf(input)
	if err := requireStruct("input", inputType); err != nil {
		return nil, err
	}

	var output TOutput
	outputType := reflect.TypeOf(output)
	if err := requireStruct("output", outputType); err != nil {
		return nil, err
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &GenericTool[TInput, TOutput]{
		Type:        "function",
		Name:        name,
		Description: description,
		InputType:   inputType,
		OutputType:  outputType,
		Schema:      &schema,
		Handler:     handler,
	}, nil
}

func requireStruct(what string, t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("tool %s type must be a struct, got interface", what)
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("tool %s type must be a struct, got %s", what, t.Kind())
	}
	return nil
}

// MustNewGenericTool creates a new generic tool and panics on error
func MustNewGenericTool[TInput any, TOutput any](name, description string, handler GenericToolHandler[TInput, TOutput]) Tool {
	tool, err := NewGenericTool(name, description, handler)
	if err != nil {
		panic(fmt.Sprintf("failed to create generic tool: %v", err))
	}
	return tool
}

var _ Tool = (*GenericTool[struct{}, struct{}])(nil)
