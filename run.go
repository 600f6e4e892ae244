package pricelens

import (
	"context"
	"fmt"

	"github.com/pricelens/pricelens/internal/poll"
	"github.com/pricelens/pricelens/providers"
)

// RunFailedError is returned when a run settles in a terminal failure state
// (failed, cancelled or expired) instead of completing.
type RunFailedError struct {
	RunID   string
	Status  providers.RunStatus
	Message string
}

func (e *RunFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("pricelens: run %s settled as %s: %s", e.RunID, e.Status, e.Message)
	}
	return fmt.Sprintf("pricelens: run %s settled as %s", e.RunID, e.Status)
}

// waitForRun polls the run until it settles, dispatching tool calls every
// time it pauses for action. Every terminal status is handled explicitly;
// the wait is bounded by the configured poll deadline and the context.
func (a *Assistant) waitForRun(ctx context.Context, threadID string, runID string) error {
	_, err := poll.Wait(ctx, a.pollConfig, func(ctx context.Context) (struct{}, bool, error) {
		run, err := a.engine.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return struct{}{}, false, err
		}

		switch {
		case run.Status == providers.RunStatusRequiresAction:
			if err := a.handleRequiredAction(ctx, run); err != nil {
				return struct{}{}, false, err
			}
			return struct{}{}, false, nil

		case run.Status.Succeeded():
			return struct{}{}, true, nil

		case run.Status.Terminal():
			return struct{}{}, false, &RunFailedError{
				RunID:   run.ID,
				Status:  run.Status,
				Message: run.LastError,
			}

		default:
			a.logger.Debug("run still in progress", "run_id", run.ID, "status", run.Status)
			return struct{}{}, false, nil
		}
	})
	return err
}

// handleRequiredAction dispatches the run's pending calls and submits the
// resulting outputs as one batch. If any handler fails, nothing is
// submitted and the run is abandoned with an error.
func (a *Assistant) handleRequiredAction(ctx context.Context, run *providers.Run) error {
	spanCtx, end := a.tracer.StartSpan(ctx, "run.dispatch",
		WithSpanType(SpanTypeTool),
		WithSpanInput(run.PendingCalls),
	)
	defer end()

	outputs, err := a.dispatcher.Dispatch(spanCtx, run.PendingCalls)
	if err != nil {
		return err
	}

	if err := a.engine.SubmitToolOutputs(spanCtx, run.ThreadID, run.ID, outputs); err != nil {
		return fmt.Errorf("pricelens: submit tool outputs for run %s: %w", run.ID, err)
	}

	a.logger.Info("tool outputs submitted", "run_id", run.ID, "outputs", len(outputs))
	return nil
}
