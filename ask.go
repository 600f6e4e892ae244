package pricelens

import (
	"context"
	"errors"
	"fmt"

	"github.com/pricelens/pricelens/internal/session"
	"github.com/pricelens/pricelens/providers"
)

// Ask appends the user query to the session's thread, runs the assistant
// over it and blocks until the final reply. Exactly one run may be active
// per session; a second concurrent Ask returns ErrRunInFlight.
func (a *Assistant) Ask(ctx context.Context, sessionID, query string) (string, error) {
	if sessionID == "" {
		return "", ErrMissingSessionID
	}

	traceCtx, endTrace := a.tracer.StartTrace(ctx, "assistant.ask",
		WithTraceSessionID(sessionID),
		WithTraceInput(query),
	)
	defer endTrace()
	ctx = traceCtx

	sess, err := a.ensureSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	assistantID, err := a.ensureAssistant(ctx)
	if err != nil {
		return "", err
	}

	// Claim the session's run slot before touching the thread so that
	// concurrent callers cannot interleave turns.
	if err := a.sessions.BeginRun(ctx, sess.ID, "pending"); err != nil {
		return "", err
	}
	defer func() {
		if endErr := a.sessions.EndRun(context.WithoutCancel(ctx), sess.ID); endErr != nil {
			a.logger.Warn("failed to release run slot", "session_id", sess.ID, "error", endErr)
		}
	}()

	if err := a.engine.AppendUserMessage(ctx, sess.ThreadID, query); err != nil {
		return "", fmt.Errorf("pricelens: append user turn: %w", err)
	}
	if err := a.sessions.AppendTurn(ctx, sess.ID, Turn{Role: "user", Content: query}); err != nil {
		return "", err
	}

	run, err := a.engine.CreateRun(ctx, sess.ThreadID, providers.RunRequest{
		AssistantID:  assistantID,
		Instructions: runInstructions,
	})
	if err != nil {
		return "", fmt.Errorf("pricelens: create run: %w", err)
	}

	a.logger.Info("run started", "session_id", sess.ID, "run_id", run.ID)

	if err := a.waitForRun(ctx, sess.ThreadID, run.ID); err != nil {
		return "", err
	}

	msg, err := a.engine.LatestAssistantMessage(ctx, sess.ThreadID)
	if err != nil {
		return "", fmt.Errorf("pricelens: fetch final reply: %w", err)
	}
	if err := a.sessions.AppendTurn(ctx, sess.ID, Turn{Role: "assistant", Content: msg.Text}); err != nil {
		return "", err
	}

	a.logger.Info("run completed", "session_id", sess.ID, "run_id", run.ID, "reply_length", len(msg.Text))
	return msg.Text, nil
}

// UploadImage describes the image, synthesizes the merged query message
// according to the configured MergePolicy and asks the assistant with it.
// It returns the assistant's reply and the synthesized message.
func (a *Assistant) UploadImage(ctx context.Context, sessionID string, image []byte, userQuery string) (reply, message string, err error) {
	summary, err := a.DescribeImage(ctx, image)
	if err != nil {
		return "", "", err
	}

	message = a.uploadMessage(summary, userQuery)
	reply, err = a.Ask(ctx, sessionID, message)
	return reply, message, err
}

// ensureSession resolves the session and lazily binds its provider thread.
// Unknown session ids are registered on first use.
func (a *Assistant) ensureSession(ctx context.Context, sessionID string) (Session, error) {
	sess, err := a.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		sess, err = a.sessions.Create(ctx, sessionID)
	}
	if err != nil {
		return Session{}, err
	}

	if sess.ThreadID == "" {
		threadID, err := a.engine.CreateThread(ctx)
		if err != nil {
			return Session{}, fmt.Errorf("pricelens: create thread: %w", err)
		}
		if err := a.sessions.SetThread(ctx, sess.ID, threadID); err != nil {
			return Session{}, err
		}
		sess.ThreadID = threadID
		a.logger.Debug("thread bound to session", "session_id", sess.ID, "thread_id", threadID)
	}

	return sess, nil
}
