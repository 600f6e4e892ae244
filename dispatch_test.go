package pricelens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pricelens/pricelens/marketplace"
	"github.com/pricelens/pricelens/providers"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(nil, DefaultLoggingConfig())
}

func TestDispatch_UnknownToolAbortsBatch(t *testing.T) {
	d := newTestDispatcher()
	d.Register(NewTool("known").
		WithHandler(func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		}).
		Build())

	outputs, err := d.Dispatch(context.Background(), []providers.ToolCall{
		{ID: "call_1", Name: "known"},
		{ID: "call_2", Name: "mystery_tool"},
	})

	var unknownErr *UnknownToolError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
	if unknownErr.Name != "mystery_tool" {
		t.Errorf("error names tool %q, want %q", unknownErr.Name, "mystery_tool")
	}
	if outputs != nil {
		t.Errorf("expected no outputs on abort, got %v", outputs)
	}
}

func TestDispatch_OneOutputPerCallMatchingIDs(t *testing.T) {
	d := newTestDispatcher()
	d.Register(NewTool("echo").
		WithHandler(func(ctx context.Context, args map[string]any) (any, error) {
			return args["value"], nil
		}).
		Build())

	calls := []providers.ToolCall{
		{ID: "call_a", Name: "echo", Arguments: map[string]any{"value": "first"}},
		{ID: "call_b", Name: "echo", Arguments: map[string]any{"value": "second"}},
		{ID: "call_c", Name: "echo", Arguments: map[string]any{"value": "third"}},
	}

	outputs, err := d.Dispatch(context.Background(), calls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(outputs) != len(calls) {
		t.Fatalf("expected %d outputs, got %d", len(calls), len(outputs))
	}
	for i, out := range outputs {
		if out.CallID != calls[i].ID {
			t.Errorf("output %d call id = %q, want %q", i, out.CallID, calls[i].ID)
		}
	}
	if outputs[0].Output != "first" || outputs[2].Output != "third" {
		t.Errorf("outputs out of order: %v", outputs)
	}
}

func TestDispatch_HandlerErrorAbortsBatch(t *testing.T) {
	d := newTestDispatcher()
	d.Register(NewTool("boom").
		WithHandler(func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("handler exploded")
		}).
		Build())

	outputs, err := d.Dispatch(context.Background(), []providers.ToolCall{
		{ID: "call_1", Name: "boom"},
	})

	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
	if execErr.CallID != "call_1" {
		t.Errorf("error call id = %q, want %q", execErr.CallID, "call_1")
	}
	if outputs != nil {
		t.Errorf("expected no outputs on abort, got %v", outputs)
	}
}

func TestFormatToolResult(t *testing.T) {
	if got := formatToolResult(nil); got != "null" {
		t.Errorf("nil = %q, want null", got)
	}
	if got := formatToolResult("plain"); got != "plain" {
		t.Errorf("string = %q, want plain", got)
	}
	if got := formatToolResult(map[string]any{"k": "v"}); got != `{"k":"v"}` {
		t.Errorf("map = %q, want JSON", got)
	}
}

type stubSearcher struct {
	result *marketplace.Result
	err    error
	calls  []string
}

func (s *stubSearcher) Search(ctx context.Context, query string) (*marketplace.Result, error) {
	s.calls = append(s.calls, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestSearchTool_RendersListings(t *testing.T) {
	searcher := &stubSearcher{result: &marketplace.Result{
		Query: "gladiator sandals",
		Listings: []marketplace.Listing{
			{Title: "Sandals", Price: "$25.00", Link: "https://www.ebay.com/itm/1", Thumbnail: "https://i.ebayimg.com/1.jpg"},
		},
	}}

	d := newTestDispatcher()
	d.Register(newSearchTool(searcher))

	outputs, err := d.Dispatch(context.Background(), []providers.ToolCall{
		{ID: "call_1", Name: "search_ebay", Arguments: map[string]any{"query": "gladiator sandals"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(searcher.calls) != 1 || searcher.calls[0] != "gladiator sandals" {
		t.Errorf("searcher calls = %v", searcher.calls)
	}
	if want := "- **Title:** [Sandals]"; len(outputs) != 1 || !strings.Contains(outputs[0].Output, want) {
		t.Errorf("output missing listing block: %v", outputs)
	}
}

func TestSearchTool_UnavailableProviderDegradesToText(t *testing.T) {
	for name, searchErr := range map[string]error{
		"no credentials": marketplace.ErrNoCredentials,
		"transport":      &marketplace.ProviderError{Op: "search", Err: fmt.Errorf("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			d := newTestDispatcher()
			d.Register(newSearchTool(&stubSearcher{err: searchErr}))

			outputs, err := d.Dispatch(context.Background(), []providers.ToolCall{
				{ID: "call_1", Name: "search_ebay", Arguments: map[string]any{"query": "anything"}},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outputs[0].Output != searchUnavailableOutput {
				t.Errorf("output = %q, want unavailable notice", outputs[0].Output)
			}
		})
	}
}

func TestSearchTool_ZeroResultsDistinctFromUnavailable(t *testing.T) {
	d := newTestDispatcher()
	d.Register(newSearchTool(&stubSearcher{result: &marketplace.Result{Query: "nothing"}}))

	outputs, err := d.Dispatch(context.Background(), []providers.ToolCall{
		{ID: "call_1", Name: "search_ebay", Arguments: map[string]any{"query": "nothing"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs[0].Output != searchNoResultsOutput {
		t.Errorf("output = %q, want no-results notice", outputs[0].Output)
	}
}

func TestSearchTool_MissingQueryArgument(t *testing.T) {
	d := newTestDispatcher()
	d.Register(newSearchTool(&stubSearcher{}))

	_, err := d.Dispatch(context.Background(), []providers.ToolCall{
		{ID: "call_1", Name: "search_ebay", Arguments: map[string]any{}},
	})

	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
}
