package orchestrator

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/elee1766/pagepilot/src/orchestrator"

// GetTracer returns the orchestrator tracer from the global provider.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func chatAttributes(conversationID, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("conversation.id", conversationID),
		attribute.String("model.id", model),
	}
}

func toolAttributes(name, callID string, step int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("tool.name", name),
		attribute.String("tool.call_id", callID),
		attribute.Int("tool.step", step),
	}
}
