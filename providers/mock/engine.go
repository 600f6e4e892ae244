// Package mock implements a scriptable Engine for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pricelens/pricelens/providers"
)

var (
	ErrNoScript   = errors.New("mock: no run script configured")
	ErrNoDescribe = errors.New("mock: no describe response configured")
)

// RunScript drives one run through a fixed status sequence.
// Successive RetrieveRun calls observe the statuses in order; the final
// status repeats once the sequence is exhausted.
type RunScript struct {
	// Statuses observed by successive RetrieveRun calls.
	Statuses []providers.RunStatus

	// PendingCalls attached whenever the observed status is requires_action.
	PendingCalls []providers.ToolCall

	// FinalText is appended to the thread as the assistant reply when the
	// run reaches completed.
	FinalText string

	// LastError is reported on terminal failure statuses.
	LastError string
}

type runState struct {
	script   RunScript
	threadID string
	step     int
	answered bool
}

// Engine implements providers.Engine with scripted behavior.
type Engine struct {
	mu sync.Mutex

	threadSeq int
	runSeq    int

	threads map[string][]providers.Message
	scripts []RunScript
	runs    map[string]*runState

	submissions map[string][][]providers.ToolOutput

	describeTexts []string
	describeErr   error
	describeReqs  []providers.ImageRequest

	assistantID string
	persona     *providers.Persona
}

// New creates a new mock engine.
func New() *Engine {
	return &Engine{
		threads:     make(map[string][]providers.Message),
		runs:        make(map[string]*runState),
		submissions: make(map[string][][]providers.ToolOutput),
		assistantID: "asst_mock",
	}
}

// WithRun appends a run script, consumed in order by CreateRun.
func (e *Engine) WithRun(script RunScript) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts = append(e.scripts, script)
	return e
}

// WithDescribeText appends a canned image description.
func (e *Engine) WithDescribeText(text string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.describeTexts = append(e.describeTexts, text)
	return e
}

// WithDescribeError makes DescribeImage fail.
func (e *Engine) WithDescribeError(err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.describeErr = err
	return e
}

// Name returns the provider name.
func (e *Engine) Name() string {
	return "mock"
}

// CreateThread mints a new thread id.
func (e *Engine) CreateThread(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threadSeq++
	id := fmt.Sprintf("thread_mock_%d", e.threadSeq)
	e.threads[id] = nil
	return id, nil
}

// AppendUserMessage appends a user turn to the thread.
func (e *Engine) AppendUserMessage(ctx context.Context, threadID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.threads[threadID]; !ok {
		return fmt.Errorf("mock: unknown thread %s", threadID)
	}
	e.threads[threadID] = append(e.threads[threadID], providers.Message{
		ID:   fmt.Sprintf("msg_%s_%d", threadID, len(e.threads[threadID])+1),
		Role: "user",
		Text: text,
	})
	return nil
}

// EnsureAssistant records the persona and returns a fixed assistant id.
func (e *Engine) EnsureAssistant(ctx context.Context, persona providers.Persona) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persona = &persona
	return e.assistantID, nil
}

// CreateRun consumes the next run script.
func (e *Engine) CreateRun(ctx context.Context, threadID string, req providers.RunRequest) (*providers.Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.scripts) == 0 {
		return nil, ErrNoScript
	}
	script := e.scripts[0]
	e.scripts = e.scripts[1:]

	e.runSeq++
	id := fmt.Sprintf("run_mock_%d", e.runSeq)
	e.runs[id] = &runState{script: script, threadID: threadID}

	return &providers.Run{ID: id, ThreadID: threadID, Status: providers.RunStatusQueued}, nil
}

// RetrieveRun advances the run's scripted status sequence by one step.
func (e *Engine) RetrieveRun(ctx context.Context, threadID, runID string) (*providers.Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.runs[runID]
	if !ok {
		return nil, fmt.Errorf("mock: unknown run %s", runID)
	}

	idx := state.step
	if idx >= len(state.script.Statuses) {
		idx = len(state.script.Statuses) - 1
	} else {
		state.step++
	}
	status := state.script.Statuses[idx]

	run := &providers.Run{ID: runID, ThreadID: threadID, Status: status}
	if status == providers.RunStatusRequiresAction {
		run.PendingCalls = state.script.PendingCalls
	}
	if status.Terminal() && !status.Succeeded() {
		run.LastError = state.script.LastError
	}
	if status == providers.RunStatusCompleted && !state.answered {
		state.answered = true
		e.threads[threadID] = append(e.threads[threadID], providers.Message{
			ID:   fmt.Sprintf("msg_%s_%d", threadID, len(e.threads[threadID])+1),
			Role: "assistant",
			Text: state.script.FinalText,
		})
	}

	return run, nil
}

// SubmitToolOutputs records the submitted batch for later assertions.
func (e *Engine) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []providers.ToolOutput) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.runs[runID]; !ok {
		return fmt.Errorf("mock: unknown run %s", runID)
	}
	batch := make([]providers.ToolOutput, len(outputs))
	copy(batch, outputs)
	e.submissions[runID] = append(e.submissions[runID], batch)
	return nil
}

// LatestAssistantMessage returns the most recent assistant turn on the thread.
func (e *Engine) LatestAssistantMessage(ctx context.Context, threadID string) (*providers.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := e.threads[threadID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "assistant" {
			msg := msgs[i]
			return &msg, nil
		}
	}
	return nil, fmt.Errorf("mock: thread %s has no assistant message", threadID)
}

// DescribeImage returns the next canned description.
func (e *Engine) DescribeImage(ctx context.Context, req providers.ImageRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.describeReqs = append(e.describeReqs, req)
	if e.describeErr != nil {
		return "", e.describeErr
	}
	if len(e.describeTexts) == 0 {
		return "", ErrNoDescribe
	}
	text := e.describeTexts[0]
	e.describeTexts = e.describeTexts[1:]
	return text, nil
}

// Submissions returns the tool output batches submitted for a run.
func (e *Engine) Submissions(runID string) [][]providers.ToolOutput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submissions[runID]
}

// SubmissionCount returns the total number of submitted batches across runs.
func (e *Engine) SubmissionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, batches := range e.submissions {
		count += len(batches)
	}
	return count
}

// DescribeRequests returns the recorded describe calls.
func (e *Engine) DescribeRequests() []providers.ImageRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	reqs := make([]providers.ImageRequest, len(e.describeReqs))
	copy(reqs, e.describeReqs)
	return reqs
}

// Persona returns the persona recorded by EnsureAssistant, if any.
func (e *Engine) Persona() *providers.Persona {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persona
}

// Threads returns the number of threads created.
func (e *Engine) Threads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.threads)
}

// Messages returns a copy of the thread's message log.
func (e *Engine) Messages(threadID string) []providers.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := make([]providers.Message, len(e.threads[threadID]))
	copy(msgs, e.threads[threadID])
	return msgs
}
