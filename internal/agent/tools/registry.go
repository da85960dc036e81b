// Package tools holds the tools offered to chat agents and the registry
// that executes them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/agent"
)

// ErrUnknownTool is returned when a requested tool is not registered.
var ErrUnknownTool = errors.New("tools: unknown tool") //nolint:gochecknoglobals // sentinel error

// Tool is a capability the model may invoke mid-response.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool input.
	Parameters() map[string]any
	Call(ctx context.Context, input json.RawMessage) ([]agent.ToolResultContent, error)
}

var _ agent.ToolExecutor = (*Registry)(nil)

// Registry maps tool names to tools. It implements agent.ToolExecutor.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tools.Registry.Get(%q): %w", name, ErrUnknownTool)
	}
	return t, nil
}

// Available returns registered tool names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.tools {
			if !yield(name) {
				return
			}
		}
	})
	sort.Strings(names)

	return names
}

// Specs returns the tool declarations offered to the model, sorted by name.
func (r *Registry) Specs() []agent.ToolSpec {
	names := r.Available()

	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]agent.ToolSpec, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		specs = append(specs, agent.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return specs
}

// Execute runs the requested tool. Unknown tools and tool failures come back
// as error-status results so the model can see and react to them.
func (r *Registry) Execute(ctx context.Context, call agent.ToolUse) agent.ToolResultBlock {
	t, err := r.Get(call.Name)
	if err != nil {
		log.Warn().Str("tool", call.Name).Str("tool_use_id", call.ToolUseID).Msg("model requested unknown tool")
		return errorResult(call.ToolUseID, err)
	}

	content, err := t.Call(ctx, call.Input)
	if err != nil {
		log.Debug().Err(err).Str("tool", call.Name).Str("tool_use_id", call.ToolUseID).Msg("tool failed")
		return errorResult(call.ToolUseID, err)
	}

	log.Debug().Str("tool", call.Name).Str("tool_use_id", call.ToolUseID).Msg("tool succeeded")

	return agent.ToolResultBlock{
		ToolUseID: call.ToolUseID,
		Status:    "success",
		Content:   content,
	}
}

func errorResult(toolUseID string, err error) agent.ToolResultBlock {
	return agent.ToolResultBlock{
		ToolUseID: toolUseID,
		Status:    "error",
		Content:   []agent.ToolResultContent{agent.TextContent(err.Error())},
	}
}
