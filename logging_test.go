package pricelens

import (
	"log/slog"
	"os"
	"testing"
)

func TestResolveLogger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if got := resolveLogger(LoggingConfig{Logger: custom}); got != custom {
		t.Error("expected explicit logger to be used")
	}

	if got := resolveLogger(LoggingConfig{}); got == nil {
		t.Error("expected a default logger")
	}
}

func TestRedactSensitiveValue(t *testing.T) {
	input := map[string]any{
		"query":   "gladiator sandals",
		"api_key": "sk-secret",
		"nested": map[string]any{
			"SERPAPI": "serp-secret",
			"keep":    "visible",
		},
	}

	redacted, ok := redactSensitiveValue(input).(map[string]any)
	if !ok {
		t.Fatal("expected a map back")
	}

	if redacted["query"] != "gladiator sandals" {
		t.Errorf("query was altered: %v", redacted["query"])
	}
	if redacted["api_key"] != "[redacted]" {
		t.Errorf("api_key not redacted: %v", redacted["api_key"])
	}

	nested := redacted["nested"].(map[string]any)
	if nested["SERPAPI"] != "[redacted]" {
		t.Errorf("nested credential not redacted: %v", nested["SERPAPI"])
	}
	if nested["keep"] != "visible" {
		t.Errorf("non-sensitive value altered: %v", nested["keep"])
	}
}
