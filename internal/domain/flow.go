package domain

import (
	"encoding/json"
	"slices"
)

// FlowItemType discriminates the variants of FlowItem.
type FlowItemType string

const (
	FlowItemText       FlowItemType = "text"
	FlowItemToolCall   FlowItemType = "tool_call"
	FlowItemToolResult FlowItemType = "tool_result"
)

// FlowItem is one unit of an assistant turn's chronological narrative.
// Type selects which of Content, Tool or Result carries the payload.
type FlowItem struct {
	Type    FlowItemType `json:"type"`
	Content string       `json:"content,omitempty"`
	Tool    *ToolCall    `json:"tool,omitempty"`
	Result  *ToolResult  `json:"result,omitempty"`
}

// TextChunk returns a text flow item.
func TextChunk(content string) FlowItem {
	return FlowItem{Type: FlowItemText, Content: content}
}

// ToolCallItem returns a tool-call flow item holding a copy of tc.
func ToolCallItem(tc ToolCall) FlowItem {
	c := tc.Clone()
	return FlowItem{Type: FlowItemToolCall, Tool: &c}
}

// ToolResultItem returns a tool-result flow item holding a copy of tr.
func ToolResultItem(tr ToolResult) FlowItem {
	c := tr.Clone()
	return FlowItem{Type: FlowItemToolResult, Result: &c}
}

// Clone returns a deep copy of the item.
func (f FlowItem) Clone() FlowItem {
	out := FlowItem{Type: f.Type, Content: f.Content}
	if f.Tool != nil {
		tc := f.Tool.Clone()
		out.Tool = &tc
	}
	if f.Result != nil {
		tr := f.Result.Clone()
		out.Result = &tr
	}
	return out
}

// ToolCall is a completed tool invocation announced by the agent.
type ToolCall struct {
	Name         string          `json:"name"`
	Input        json.RawMessage `json:"input"`
	InvocationID string          `json:"tool_use_id"`
}

// Clone returns a copy of the call with its own input buffer.
func (tc ToolCall) Clone() ToolCall {
	tc.Input = slices.Clone(tc.Input)
	return tc
}

// ToolStatus is the outcome reported for a tool invocation. Values other than
// ToolStatusSuccess and ToolStatusError are kept verbatim.
type ToolStatus string

const (
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// StatusKind is the three-way classification of a ToolStatus.
type StatusKind int

const (
	StatusKindOther StatusKind = iota
	StatusKindSuccess
	StatusKindError
)

// NormalizeStatus maps a raw status string reported by an agent onto a
// ToolStatus. Only the exact strings "success" and "error" are recognized;
// anything else, including "Success", is kept verbatim and classified as
// StatusKindOther.
func NormalizeStatus(raw string) ToolStatus {
	switch ToolStatus(raw) {
	case ToolStatusSuccess:
		return ToolStatusSuccess
	case ToolStatusError:
		return ToolStatusError
	default:
		return ToolStatus(raw)
	}
}

// Kind classifies the status.
func (s ToolStatus) Kind() StatusKind {
	switch s {
	case ToolStatusSuccess:
		return StatusKindSuccess
	case ToolStatusError:
		return StatusKindError
	default:
		return StatusKindOther
	}
}

// Label is the human readable badge text for the status.
func (s ToolStatus) Label() string {
	switch {
	case s == ToolStatusSuccess:
		return "Success"
	case s == "":
		return "Failed"
	default:
		return string(s)
	}
}

// PartKind discriminates ResultPart variants.
type PartKind string

const (
	PartText       PartKind = "text"
	PartStructured PartKind = "json"
)

// ResultPart is one element of a tool result's content.
type ResultPart struct {
	Kind PartKind        `json:"kind"`
	Text string          `json:"text,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
}

// TextPart returns a plain-text result part.
func TextPart(text string) ResultPart {
	return ResultPart{Kind: PartText, Text: text}
}

// StructuredPart returns a JSON result part.
func StructuredPart(raw json.RawMessage) ResultPart {
	return ResultPart{Kind: PartStructured, JSON: slices.Clone(raw)}
}

// ToolResult is the response to a tool invocation, echoed back by the agent.
type ToolResult struct {
	InvocationID string       `json:"tool_use_id,omitempty"`
	Status       ToolStatus   `json:"status"`
	Content      []ResultPart `json:"content"`
}

// Clone returns a deep copy of the result.
func (tr ToolResult) Clone() ToolResult {
	if tr.Content == nil {
		return tr
	}
	parts := make([]ResultPart, len(tr.Content))
	for i, p := range tr.Content {
		p.JSON = slices.Clone(p.JSON)
		parts[i] = p
	}
	tr.Content = parts
	return tr
}
