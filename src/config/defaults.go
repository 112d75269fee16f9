package config

import (
	"time"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",

		Agent: AgentConfig{
			MaxSteps:      10,
			HistoryWindow: 40,
			MaxTokens:     4096,
			ToolTimeout:   Duration(60 * time.Second),
		},

		Memory: MemoryConfig{
			Enabled:     true,
			Threshold:   0.7,
			QueryLimit:  3,
			TaskTimeout: Duration(2 * time.Minute),
			Embeddings: EmbeddingsConfig{
				Provider: "openai",
				Model:    "text-embedding-3-small",
			},
		},

		Bridge: BridgeConfig{
			Timeout:       Duration(30 * time.Second),
			TypingDelay:   Duration(200 * time.Millisecond),
			DebugURL:      "http://localhost:9222",
			ContentFormat: "text",
		},

		Server: ServerConfig{
			Listen: "127.0.0.1:8765",
			AllowedOrigins: []string{
				"chrome-extension://*",
				"moz-extension://*",
				"http://localhost:*",
				"http://127.0.0.1:*",
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 5,
				Burst:             10,
			},
		},

		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}
