package pricelens

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Logger overrides the logger if provided.
	Logger *slog.Logger

	// Handler is used to build a logger if Logger is nil.
	Handler slog.Handler

	// Level is used when creating a default handler if Logger and Handler are nil.
	Level slog.Level

	// LogToolCalls enables logging tool call summaries.
	LogToolCalls bool

	// RedactSensitive enables best-effort redaction of sensitive fields in logs.
	RedactSensitive bool
}

// DefaultLoggingConfig returns default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:           slog.LevelInfo,
		LogToolCalls:    true,
		RedactSensitive: true,
	}
}

func resolveLogger(cfg LoggingConfig) *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	if cfg.Handler != nil {
		return slog.New(cfg.Handler)
	}

	level := cfg.Level
	if level == 0 {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

var sensitiveKeys = map[string]struct{}{
	"api_key":        {},
	"apikey":         {},
	"authorization":  {},
	"token":          {},
	"password":       {},
	"secret":         {},
	"bearer":         {},
	"x-api-key":      {},
	"openai_api_key": {},
	"serpapi":        {},
}

func redactSensitiveValue(value any) any {
	data, err := json.Marshal(value)
	if err != nil {
		return value
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return value
	}

	return redactAny(decoded)
}

func redactAny(value any) any {
	switch v := value.(type) {
	case map[string]any:
		redacted := make(map[string]any, len(v))
		for key, val := range v {
			if isSensitiveKey(key) {
				redacted[key] = "[redacted]"
				continue
			}
			redacted[key] = redactAny(val)
		}
		return redacted
	case []any:
		redacted := make([]any, len(v))
		for i, item := range v {
			redacted[i] = redactAny(item)
		}
		return redacted
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}
