package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one user or assistant exchange in a transcript. Turns are frozen
// once appended; readers always receive copies.
type Turn struct {
	ID          uuid.UUID    `json:"id"`
	Role        Role         `json:"role"`
	DisplayText string       `json:"display_text"`
	Flow        []FlowItem   `json:"flow,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Attachments []string     `json:"attachments,omitempty"` // base names, user turns only
	CreatedAt   time.Time    `json:"created_at"`
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	out := t
	out.Flow = cloneEach(t.Flow, FlowItem.Clone)
	out.ToolCalls = cloneEach(t.ToolCalls, ToolCall.Clone)
	out.ToolResults = cloneEach(t.ToolResults, ToolResult.Clone)
	out.Attachments = slices.Clone(t.Attachments)
	return out
}

func cloneEach[T any](in []T, clone func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}
