// Package openai implements the Engine interface on the OpenAI Assistants API.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/pricelens/pricelens/providers"
)

// Engine implements providers.Engine for OpenAI.
type Engine struct {
	client *goopenai.Client
	logger *slog.Logger
}

// New creates a new OpenAI engine.
func New(apiKey string, logger *slog.Logger) *Engine {
	return NewWithConfig(goopenai.DefaultConfig(apiKey), logger)
}

// NewWithConfig creates an engine from an explicit client config.
// Useful for tests and proxies that override BaseURL.
func NewWithConfig(cfg goopenai.ClientConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

// Name returns the provider name.
func (e *Engine) Name() string {
	return "openai"
}

// CreateThread creates a new conversation thread.
func (e *Engine) CreateThread(ctx context.Context) (string, error) {
	thread, err := e.client.CreateThread(ctx, goopenai.ThreadRequest{})
	if err != nil {
		return "", e.wrap("create thread", err)
	}
	return thread.ID, nil
}

// AppendUserMessage appends a user turn to the thread.
func (e *Engine) AppendUserMessage(ctx context.Context, threadID, text string) error {
	_, err := e.client.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    goopenai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return e.wrap("append message", err)
	}
	return nil
}

// EnsureAssistant creates the assistant persona and returns its id.
func (e *Engine) EnsureAssistant(ctx context.Context, persona providers.Persona) (string, error) {
	tools := make([]goopenai.AssistantTool, 0, len(persona.Tools))
	for _, def := range persona.Tools {
		tools = append(tools, goopenai.AssistantTool{
			Type: goopenai.AssistantToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	name := persona.Name
	instructions := persona.Instructions
	assistant, err := e.client.CreateAssistant(ctx, goopenai.AssistantRequest{
		Model:        persona.Model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        tools,
	})
	if err != nil {
		return "", e.wrap("create assistant", err)
	}

	e.logger.Debug("assistant created", "assistant_id", assistant.ID, "model", persona.Model)
	return assistant.ID, nil
}

// CreateRun starts a processing cycle over the thread.
func (e *Engine) CreateRun(ctx context.Context, threadID string, req providers.RunRequest) (*providers.Run, error) {
	run, err := e.client.CreateRun(ctx, threadID, goopenai.RunRequest{
		AssistantID:  req.AssistantID,
		Instructions: req.Instructions,
	})
	if err != nil {
		return nil, e.wrap("create run", err)
	}
	return e.fromAPIRun(run)
}

// RetrieveRun fetches the current state of a run.
func (e *Engine) RetrieveRun(ctx context.Context, threadID, runID string) (*providers.Run, error) {
	run, err := e.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, e.wrap("retrieve run", err)
	}
	return e.fromAPIRun(run)
}

// SubmitToolOutputs returns one batch of tool results to a paused run.
func (e *Engine) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []providers.ToolOutput) error {
	apiOutputs := make([]goopenai.ToolOutput, 0, len(outputs))
	for _, out := range outputs {
		apiOutputs = append(apiOutputs, goopenai.ToolOutput{
			ToolCallID: out.CallID,
			Output:     out.Output,
		})
	}

	_, err := e.client.SubmitToolOutputs(ctx, threadID, runID, goopenai.SubmitToolOutputsRequest{
		ToolOutputs: apiOutputs,
	})
	if err != nil {
		return e.wrap("submit tool outputs", err)
	}
	return nil
}

// LatestAssistantMessage returns the most recent assistant turn on the thread.
func (e *Engine) LatestAssistantMessage(ctx context.Context, threadID string) (*providers.Message, error) {
	limit := 10
	order := "desc"
	list, err := e.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, e.wrap("list messages", err)
	}

	for _, msg := range list.Messages {
		if msg.Role != goopenai.ChatMessageRoleAssistant {
			continue
		}
		return &providers.Message{
			ID:        msg.ID,
			Role:      msg.Role,
			Text:      messageText(msg),
			CreatedAt: time.Unix(int64(msg.CreatedAt), 0),
		}, nil
	}

	return nil, e.wrap("list messages", fmt.Errorf("thread %s has no assistant message", threadID))
}

// DescribeImage runs a single-turn multimodal request over an inline image.
func (e *Engine) DescribeImage(ctx context.Context, req providers.ImageRequest) (string, error) {
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(req.Image)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(req.Image))

	resp, err := e.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: req.Instruction,
					},
					{
						Type:     goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", e.wrap("describe image", err)
	}
	if len(resp.Choices) == 0 {
		return "", e.wrap("describe image", fmt.Errorf("completion returned no choices"))
	}

	return resp.Choices[0].Message.Content, nil
}

func (e *Engine) fromAPIRun(run goopenai.Run) (*providers.Run, error) {
	out := &providers.Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		Status:   providers.RunStatus(run.Status),
	}

	if run.LastError != nil {
		out.LastError = strings.TrimSpace(string(run.LastError.Code) + " " + run.LastError.Message)
	}

	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			args := map[string]any{}
			if raw := call.Function.Arguments; raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return nil, e.wrap("decode tool arguments", fmt.Errorf("call %s: %w", call.ID, err))
				}
			}
			out.PendingCalls = append(out.PendingCalls, providers.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: args,
			})
		}
	}

	return out, nil
}

func messageText(msg goopenai.Message) string {
	var sb strings.Builder
	for _, part := range msg.Content {
		if part.Text != nil {
			sb.WriteString(part.Text.Value)
		}
	}
	return sb.String()
}

func (e *Engine) wrap(op string, err error) error {
	return &providers.EngineError{Provider: "openai", Op: op, Err: err}
}
