package pricelens

import (
	"context"

	"github.com/pricelens/pricelens/providers"
)

// ToolHandler is a function that executes a tool.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Tool represents a dispatchable function tool with its schema and handler.
type Tool struct {
	name        string
	description string
	parameters  map[string]any
	handler     ToolHandler
}

// ToolBuilder helps construct tools with a fluent API.
type ToolBuilder struct {
	tool     Tool
	required []string
}

// NewTool creates a new tool builder.
func NewTool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool: Tool{
			name:       name,
			parameters: map[string]any{},
		},
	}
}

// WithDescription sets the tool description.
func (tb *ToolBuilder) WithDescription(desc string) *ToolBuilder {
	tb.tool.description = desc
	return tb
}

// WithStringParameter adds a required string parameter to the tool schema.
func (tb *ToolBuilder) WithStringParameter(name, description string) *ToolBuilder {
	if tb.tool.parameters["properties"] == nil {
		tb.tool.parameters = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	props := tb.tool.parameters["properties"].(map[string]any)
	props[name] = map[string]any{
		"type":        "string",
		"description": description,
	}

	tb.required = append(tb.required, name)
	return tb
}

// WithHandler sets the tool handler.
func (tb *ToolBuilder) WithHandler(handler ToolHandler) *ToolBuilder {
	tb.tool.handler = handler
	return tb
}

// Build finalizes the tool.
func (tb *ToolBuilder) Build() Tool {
	if len(tb.required) > 0 {
		tb.tool.parameters["required"] = tb.required
	}
	return tb.tool
}

// Name returns the tool name.
func (t Tool) Name() string {
	return t.name
}

// Definition returns the engine-facing schema for this tool.
func (t Tool) Definition() providers.ToolDefinition {
	return providers.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
	}
}
