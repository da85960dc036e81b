// Package conversation folds agent events into chat turns and renders
// transcripts as display instructions.
package conversation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gosuda/chatflow/internal/agent"
	"github.com/gosuda/chatflow/internal/domain"
)

// Display receives instructions as soon as they are produced. It is a
// write-only sink: failures are the implementation's to log.
type Display interface {
	Show(ctx context.Context, in Instruction)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(ctx context.Context, in Instruction)

func (f DisplayFunc) Show(ctx context.Context, in Instruction) { f(ctx, in) }

// NopDisplay discards every instruction.
var NopDisplay Display = DisplayFunc(func(context.Context, Instruction) {}) //nolint:gochecknoglobals // stateless sink

var _ agent.EventSink = (*Collector)(nil)

// Collector folds the events of one agent invocation into per-turn buffers.
// It is owned by a single session and must not be shared by concurrent
// invocations.
type Collector struct {
	display     Display
	text        strings.Builder
	flow        []domain.FlowItem
	toolCalls   []domain.ToolCall
	toolResults []domain.ToolResult
}

func NewCollector(display Display) *Collector {
	if display == nil {
		display = NopDisplay
	}
	return &Collector{display: display}
}

// Reset clears all per-turn buffers.
func (c *Collector) Reset() {
	c.text.Reset()
	c.flow = nil
	c.toolCalls = nil
	c.toolResults = nil
}

// HandleEvent records one event. The first matching shape wins: text delta,
// tool-use fragment (ignored), message. Anything else is a no-op.
func (c *Collector) HandleEvent(ctx context.Context, ev agent.Event) {
	switch ev.Kind() {
	case agent.EventTextDelta:
		c.text.WriteString(ev.Data)
	case agent.EventToolUseFragment:
		// Only the completed tool call in the assistant message is recorded.
	case agent.EventMessage:
		c.handleMessage(ctx, ev.Message)
	case agent.EventUnknown:
	}
}

func (c *Collector) handleMessage(ctx context.Context, msg *agent.Message) {
	switch msg.Role {
	case agent.RoleAssistant:
		for _, block := range msg.Content {
			switch {
			case block.Text != nil:
				c.flow = append(c.flow, domain.TextChunk(*block.Text))
				c.display.Show(ctx, textInstruction(domain.RoleAssistant, *block.Text))
			case block.ToolUse != nil:
				tc := domain.ToolCall{
					Name:         block.ToolUse.Name,
					Input:        agent.NormalizeInput(block.ToolUse.Input),
					InvocationID: block.ToolUse.ToolUseID,
				}.Clone()
				c.flow = append(c.flow, domain.ToolCallItem(tc))
				c.toolCalls = append(c.toolCalls, tc)
				c.display.Show(ctx, toolCallInstruction(tc))
			}
		}
	case agent.RoleUser:
		for _, block := range msg.Content {
			if block.ToolResult == nil {
				continue
			}
			tr := convertToolResult(block.ToolResult)
			c.flow = append(c.flow, domain.ToolResultItem(tr))
			c.toolResults = append(c.toolResults, tr)
			c.display.Show(ctx, toolResultInstruction(tr, true))
		}
	}
}

func convertToolResult(b *agent.ToolResultBlock) domain.ToolResult {
	tr := domain.ToolResult{
		InvocationID: b.ToolUseID,
		Status:       domain.NormalizeStatus(b.Status),
		Content:      make([]domain.ResultPart, 0, len(b.Content)),
	}
	for _, part := range b.Content {
		switch {
		case part.Text != nil:
			tr.Content = append(tr.Content, domain.TextPart(*part.Text))
		case len(part.JSON) > 0 && json.Valid(part.JSON):
			tr.Content = append(tr.Content, domain.StructuredPart(part.JSON))
		case len(part.JSON) > 0:
			tr.Content = append(tr.Content, domain.TextPart(string(part.JSON)))
		}
	}
	return tr
}

// Snapshot is a copy of the collector's buffers.
type Snapshot struct {
	Text        string
	Flow        []domain.FlowItem
	ToolCalls   []domain.ToolCall
	ToolResults []domain.ToolResult
}

// Snapshot copies the current buffers. Later Reset or HandleEvent calls do
// not affect the returned value.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Text:        c.text.String(),
		Flow:        cloneAll(c.flow, domain.FlowItem.Clone),
		ToolCalls:   cloneAll(c.toolCalls, domain.ToolCall.Clone),
		ToolResults: cloneAll(c.toolResults, domain.ToolResult.Clone),
	}
}

func cloneAll[T any](in []T, clone func(T) T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}
