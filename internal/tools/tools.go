package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/workspace-mcp/internal/calendar"
	"github.com/teemow/workspace-mcp/internal/drive"
	"github.com/teemow/workspace-mcp/internal/gmail"
)

// ErrUnknownTool is returned by Call for a name that was never
// registered. The dispatcher maps it to a method-not-found error.
var ErrUnknownTool = errors.New("unknown tool")

// Capabilities bundles the Google service clients bound to one
// session's credential. All clients share the same token source.
type Capabilities struct {
	Gmail    *gmail.Client
	Drive    *drive.Client
	Calendar *calendar.Client
}

// HandlerFunc executes one tool call. The returned value is serialized
// to JSON for the tool result text.
type HandlerFunc func(ctx context.Context, caps *Capabilities, args map[string]any) (any, error)

type registration struct {
	tool    mcp.Tool
	handler HandlerFunc
}

// Registry is the single source of truth for the tool catalog.
// Registration happens once at startup; afterwards the registry is
// read-only and safe for concurrent use.
type Registry struct {
	order []string
	tools map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registration),
	}
}

// Register adds a tool and its handler. Registering the same name
// twice is a programming error and panics at startup.
func (r *Registry) Register(tool mcp.Tool, handler HandlerFunc) {
	if _, exists := r.tools[tool.Name]; exists {
		panic(fmt.Sprintf("tool %q registered twice", tool.Name))
	}
	r.order = append(r.order, tool.Name)
	r.tools[tool.Name] = registration{tool: tool, handler: handler}
}

// Catalog returns all tool schemas in registration order. The slice is
// a copy; callers may not mutate registry state through it.
func (r *Registry) Catalog() []mcp.Tool {
	catalog := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		catalog = append(catalog, r.tools[name].tool)
	}
	return catalog
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Call dispatches one tool invocation to its registered handler.
func (r *Registry) Call(ctx context.Context, caps *Capabilities, name string, args map[string]any) (any, error) {
	reg, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return reg.handler(ctx, caps, args)
}
