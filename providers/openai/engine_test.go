package openai

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/pricelens/pricelens/providers"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc) *Engine {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := goopenai.DefaultConfig("sk-test")
	cfg.BaseURL = server.URL + "/v1"
	return NewWithConfig(cfg, nil)
}

func TestDescribeImage_RequestShape(t *testing.T) {
	var body map[string]any
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "A red mug."}, "finish_reason": "stop"}]
		}`)
	})

	text, err := engine.DescribeImage(t.Context(), providers.ImageRequest{
		Instruction: "Describe this product.",
		Image:       []byte{0x89, 'P', 'N', 'G'},
		MIMEType:    "image/png",
		Model:       "gpt-4-vision-preview",
		MaxTokens:   300,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "A red mug." {
		t.Errorf("text = %q", text)
	}

	if body["model"] != "gpt-4-vision-preview" {
		t.Errorf("model = %v", body["model"])
	}
	if body["max_tokens"] != float64(300) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}

	messages := body["messages"].([]any)
	parts := messages[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %d", len(parts))
	}
	imagePart := parts[1].(map[string]any)
	url := imagePart["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url is not an inline data url: %q", url)
	}
}

func TestDescribeImage_SniffsMIMEType(t *testing.T) {
	var url string
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content []struct {
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		url = body.Messages[0].Content[1].ImageURL.URL
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`)
	})

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	if _, err := engine.DescribeImage(t.Context(), providers.ImageRequest{Image: jpeg, Model: "m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("sniffed url = %q", url)
	}
}

func TestRetrieveRun_MapsRequiredAction(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/runs/run_1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "run_1",
			"object": "thread.run",
			"thread_id": "thread_1",
			"status": "requires_action",
			"required_action": {
				"type": "submit_tool_outputs",
				"submit_tool_outputs": {
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "search_ebay", "arguments": "{\"query\": \"red mug\"}"}
					}]
				}
			}
		}`)
	})

	run, err := engine.RetrieveRun(t.Context(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != providers.RunStatusRequiresAction {
		t.Errorf("status = %q", run.Status)
	}
	if len(run.PendingCalls) != 1 {
		t.Fatalf("pending calls = %d, want 1", len(run.PendingCalls))
	}
	call := run.PendingCalls[0]
	if call.ID != "call_1" || call.Name != "search_ebay" {
		t.Errorf("call = %+v", call)
	}
	if call.Arguments["query"] != "red mug" {
		t.Errorf("arguments = %v", call.Arguments)
	}
}

func TestRetrieveRun_BadToolArguments(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "run_1",
			"thread_id": "thread_1",
			"status": "requires_action",
			"required_action": {
				"type": "submit_tool_outputs",
				"submit_tool_outputs": {
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "search_ebay", "arguments": "not json"}
					}]
				}
			}
		}`)
	})

	_, err := engine.RetrieveRun(t.Context(), "thread_1", "run_1")
	if err == nil {
		t.Fatal("expected an error for malformed arguments")
	}
	var engineErr *providers.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError, got %T", err)
	}
}

func TestRetrieveRun_CarriesLastError(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "run_1",
			"thread_id": "thread_1",
			"status": "failed",
			"last_error": {"code": "rate_limit_exceeded", "message": "slow down"}
		}`)
	})

	run, err := engine.RetrieveRun(t.Context(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != providers.RunStatusFailed {
		t.Errorf("status = %q", run.Status)
	}
	if run.LastError != "rate_limit_exceeded slow down" {
		t.Errorf("last error = %q", run.LastError)
	}
}

func TestEnsureAssistant_SendsToolSchema(t *testing.T) {
	var body map[string]any
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/assistants" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": "asst_1", "object": "assistant"}`)
	})

	id, err := engine.EnsureAssistant(t.Context(), providers.Persona{
		Name:         "eBay Price Validator",
		Instructions: "You help people check prices.",
		Model:        "gpt-4-1106-preview",
		Tools: []providers.ToolDefinition{{
			Name:        "search_ebay",
			Description: "Search eBay listings.",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "asst_1" {
		t.Errorf("id = %q", id)
	}

	if body["name"] != "eBay Price Validator" {
		t.Errorf("name = %v", body["name"])
	}
	tools := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(tools))
	}
	tool := tools[0].(map[string]any)
	if tool["type"] != "function" {
		t.Errorf("tool type = %v", tool["type"])
	}
	fn := tool["function"].(map[string]any)
	if fn["name"] != "search_ebay" {
		t.Errorf("function name = %v", fn["name"])
	}
}

func TestSubmitToolOutputs_Batch(t *testing.T) {
	var body map[string]any
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/runs/run_1/submit_tool_outputs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": "run_1", "thread_id": "thread_1", "status": "queued"}`)
	})

	err := engine.SubmitToolOutputs(t.Context(), "thread_1", "run_1", []providers.ToolOutput{
		{CallID: "call_1", Output: "- **Title:** mug"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outputs := body["tool_outputs"].([]any)
	if len(outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(outputs))
	}
	out := outputs[0].(map[string]any)
	if out["tool_call_id"] != "call_1" {
		t.Errorf("tool_call_id = %v", out["tool_call_id"])
	}
}

func TestLatestAssistantMessage_SkipsUserTurns(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"object": "list",
			"data": [
				{"id": "msg_3", "role": "user", "created_at": 30,
					"content": [{"type": "text", "text": {"value": "thanks"}}]},
				{"id": "msg_2", "role": "assistant", "created_at": 20,
					"content": [{"type": "text", "text": {"value": "Here are some listings."}}]},
				{"id": "msg_1", "role": "user", "created_at": 10,
					"content": [{"type": "text", "text": {"value": "how much is this?"}}]}
			]
		}`)
	})

	msg, err := engine.LatestAssistantMessage(t.Context(), "thread_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != "msg_2" {
		t.Errorf("id = %q", msg.ID)
	}
	if msg.Text != "Here are some listings." {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestLatestAssistantMessage_NoneFound(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object": "list", "data": []}`)
	})

	_, err := engine.LatestAssistantMessage(t.Context(), "thread_1")
	if err == nil {
		t.Fatal("expected an error for an empty thread")
	}
}
