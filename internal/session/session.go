// Package session provides the per-caller session registry.
//
// Each session owns one conversation thread and admits at most one active
// run at a time; concurrent callers get their own isolated sessions instead
// of sharing a process-wide thread.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a session doesn't exist.
	ErrNotFound = errors.New("pricelens: session not found")

	// ErrRunInFlight is returned when a second run is started against a
	// session whose previous run hasn't settled.
	ErrRunInFlight = errors.New("pricelens: a run is already in flight for this session")
)

// Session is one caller's conversation state.
type Session struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Turns     []Turn    `json:"turns"`
	ActiveRun string    `json:"active_run,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is a local append-only mirror of one message in the session's thread.
type Turn struct {
	Role      string    `json:"role"` // "user", "assistant", "tool"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the session registry.
type Store interface {
	// Create registers a session. An empty id mints a fresh one.
	Create(ctx context.Context, id string) (Session, error)

	// Get retrieves a session by id.
	Get(ctx context.Context, id string) (Session, error)

	// SetThread binds the provider thread backing the session.
	SetThread(ctx context.Context, id, threadID string) error

	// AppendTurn adds a turn to the session's local log.
	AppendTurn(ctx context.Context, id string, turn Turn) error

	// BeginRun claims the session's run slot. Returns ErrRunInFlight if a
	// run is already active.
	BeginRun(ctx context.Context, id, runID string) error

	// EndRun releases the session's run slot.
	EndRun(ctx context.Context, id string) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error
}
