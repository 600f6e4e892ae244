// Package providers defines the provider-agnostic contract for the hosted
// conversation engine that drives assistant runs.
package providers

import (
	"context"
	"fmt"
	"time"
)

// Engine defines the interface for a thread-based conversation provider.
// Implementations: OpenAI Assistants API, mocks.
type Engine interface {
	// CreateThread creates a new conversation thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// AppendUserMessage appends a user turn to the thread.
	AppendUserMessage(ctx context.Context, threadID, text string) error

	// EnsureAssistant creates (or reuses) the assistant persona and returns its id.
	EnsureAssistant(ctx context.Context, persona Persona) (string, error)

	// CreateRun starts a processing cycle over the thread's accumulated turns.
	CreateRun(ctx context.Context, threadID string, req RunRequest) (*Run, error)

	// RetrieveRun fetches the current state of a run.
	RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error)

	// SubmitToolOutputs returns one batch of tool results to a paused run.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error

	// LatestAssistantMessage returns the most recent assistant turn on the thread.
	LatestAssistantMessage(ctx context.Context, threadID string) (*Message, error)

	// DescribeImage runs a single-turn multimodal request over an inline image.
	DescribeImage(ctx context.Context, req ImageRequest) (string, error)

	// Name returns the provider name (e.g., "openai", "mock").
	Name() string
}

// RunStatus is the lifecycle state of a run as reported by the engine.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// Terminal reports whether the run has settled and will never progress again.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	}
	return false
}

// Succeeded reports whether the run settled successfully.
func (s RunStatus) Succeeded() bool {
	return s == RunStatusCompleted
}

// Run represents one processing cycle over a thread.
type Run struct {
	ID       string
	ThreadID string
	Status   RunStatus

	// PendingCalls holds the tool calls the engine is waiting on.
	// Populated only when Status is RunStatusRequiresAction.
	PendingCalls []ToolCall

	// LastError carries the engine's failure description for terminal
	// failure states, empty otherwise.
	LastError string
}

// RunRequest configures a new run.
type RunRequest struct {
	AssistantID  string
	Instructions string
}

// Persona is the fixed assistant identity a run executes under.
type Persona struct {
	Name         string
	Instructions string
	Model        string
	Tools        []ToolDefinition
}

// ToolDefinition describes a function tool exposed to the engine.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a structured request from the engine asking local code
// to execute a named tool before the run continues.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolOutput is the result of one tool call, keyed by the originating call id.
type ToolOutput struct {
	CallID string
	Output string
}

// Message is one turn in a thread's history.
type Message struct {
	ID        string
	Role      string
	Text      string
	CreatedAt time.Time
}

// ImageRequest describes a single-turn multimodal describe call.
type ImageRequest struct {
	Instruction string
	Image       []byte
	MIMEType    string
	Model       string
	MaxTokens   int
}

// EngineError wraps a provider failure with the operation that caused it.
type EngineError struct {
	Provider string
	Op       string
	Err      error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
