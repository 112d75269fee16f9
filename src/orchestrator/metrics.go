package orchestrator

import (
	"context"
	"time"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator collectors.
type Metrics struct {
	ChatsTotal         *prometheus.CounterVec
	StepsPerChat       prometheus.Histogram
	ToolCallsTotal     *prometheus.CounterVec
	ToolDuration       *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	ModelLatency       prometheus.Histogram
	MemoryTasksTotal   *prometheus.CounterVec
	ConversationsDeleted prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pagepilot",
				Subsystem: "orchestrator",
				Name:      "chats_total",
				Help:      "Chat turns handled, by outcome",
			},
			[]string{"outcome"},
		),
		StepsPerChat: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pagepilot",
				Subsystem: "orchestrator",
				Name:      "steps_per_chat",
				Help:      "Tool steps used per chat turn",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
			},
		),
		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pagepilot",
				Subsystem: "orchestrator",
				Name:      "tool_calls_total",
				Help:      "Tool calls executed, by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pagepilot",
				Subsystem: "orchestrator",
				Name:      "tool_duration_seconds",
				Help:      "Tool execution duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pagepilot",
				Subsystem: "orchestrator",
				Name:      "errors_total",
				Help:      "Failures by stage",
			},
			[]string{"stage"},
		),
		ModelLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pagepilot",
				Subsystem: "orchestrator",
				Name:      "model_latency_seconds",
				Help:      "Model call duration in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
		),
		MemoryTasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pagepilot",
				Subsystem: "memory",
				Name:      "tasks_total",
				Help:      "Detached memory tasks, by outcome",
			},
			[]string{"outcome"},
		),
		ConversationsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pagepilot",
				Subsystem: "orchestrator",
				Name:      "conversations_deleted_total",
				Help:      "Conversations deleted",
			},
		),
	}
}

// ToolMiddleware records tool call counts and durations.
func (m *Metrics) ToolMiddleware() agent.ToolMiddleware {
	return func(next agent.ToolExecutor) agent.ToolExecutor {
		return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			start := time.Now()
			resp, err := next(ctx, call)
			outcome := "ok"
			if err != nil || (resp != nil && resp.IsError) {
				outcome = "error"
			}
			m.ToolCallsTotal.WithLabelValues(call.Function.Name, outcome).Inc()
			m.ToolDuration.WithLabelValues(call.Function.Name).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}
