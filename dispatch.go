package pricelens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pricelens/pricelens/marketplace"
	"github.com/pricelens/pricelens/providers"
)

// UnknownToolError is returned when the engine requests a tool that was
// never registered. The whole batch is aborted; nothing is submitted.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("pricelens: run requested unknown tool %q", e.Name)
}

// ToolExecutionError wraps a handler failure for one call in a batch.
type ToolExecutionError struct {
	Name   string
	CallID string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("pricelens: tool %s (call %s) failed: %v", e.Name, e.CallID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// Dispatcher maps engine tool calls to registered local handlers.
type Dispatcher struct {
	tools  map[string]Tool
	logger *slog.Logger
	config LoggingConfig
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger, config LoggingConfig) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		tools:  make(map[string]Tool),
		logger: logger,
		config: config,
	}
}

// Register adds a tool to the registry.
func (d *Dispatcher) Register(tool Tool) {
	d.tools[tool.Name()] = tool
}

// Definitions returns the engine-facing schemas of all registered tools.
func (d *Dispatcher) Definitions() []providers.ToolDefinition {
	defs := make([]providers.ToolDefinition, 0, len(d.tools))
	for _, tool := range d.tools {
		defs = append(defs, tool.Definition())
	}
	return defs
}

// Dispatch executes every pending call and returns exactly one output per
// call, in input order, with matching call ids. The batch is all-or-nothing:
// an unknown tool or a handler failure aborts with no outputs, leaving the
// run for the caller to fail explicitly.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []providers.ToolCall) ([]providers.ToolOutput, error) {
	outputs := make([]providers.ToolOutput, 0, len(calls))

	for _, call := range calls {
		tool, exists := d.tools[call.Name]
		if !exists {
			d.logger.Error("unknown tool requested", "tool", call.Name, "call_id", call.ID)
			return nil, &UnknownToolError{Name: call.Name}
		}

		if d.config.LogToolCalls {
			args := any(call.Arguments)
			if d.config.RedactSensitive {
				args = redactSensitiveValue(call.Arguments)
			}
			d.logger.Info("dispatching tool call", "tool", call.Name, "call_id", call.ID, "args", args)
		}

		result, err := tool.handler(ctx, call.Arguments)
		if err != nil {
			d.logger.Error("tool execution failed", "tool", call.Name, "call_id", call.ID, "error", err)
			return nil, &ToolExecutionError{Name: call.Name, CallID: call.ID, Err: err}
		}

		outputs = append(outputs, providers.ToolOutput{
			CallID: call.ID,
			Output: formatToolResult(result),
		})
	}

	return outputs, nil
}

func formatToolResult(result any) string {
	if result == nil {
		return "null"
	}

	switch v := result.(type) {
	case string:
		return v
	case error:
		return fmt.Sprintf("Error: %v", v)
	default:
		if data, err := json.Marshal(result); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", result)
	}
}

// Tool result strings shown to the model when a search cannot produce
// listings. The model relays these instead of inventing prices.
const (
	searchUnavailableOutput = "eBay search is currently unavailable, so no listings could be retrieved. Tell the user a price check is not possible right now."
	searchNoResultsOutput   = "The eBay search returned no matching listings for this query."
)

// newSearchTool builds the search_ebay tool backed by the marketplace client.
func newSearchTool(searcher Searcher) Tool {
	return NewTool("search_ebay").
		WithDescription("Retrieve eBay search results for a given query.").
		WithStringParameter("query", "The search query for finding products on eBay.").
		WithHandler(func(ctx context.Context, args map[string]any) (any, error) {
			query, ok := args["query"].(string)
			if !ok || query == "" {
				return nil, fmt.Errorf("query argument is required")
			}

			result, err := searcher.Search(ctx, query)
			if err != nil {
				// Degraded search is relayed to the model as text, not
				// surfaced as a run failure.
				var provErr *marketplace.ProviderError
				if errors.Is(err, marketplace.ErrNoCredentials) || errors.As(err, &provErr) {
					return searchUnavailableOutput, nil
				}
				return nil, err
			}
			if result.Empty() {
				return searchNoResultsOutput, nil
			}
			return result.Markdown(), nil
		}).
		Build()
}
