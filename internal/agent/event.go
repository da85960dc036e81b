package agent

import "encoding/json"

// EventKind is the shape an Event is dispatched as.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventTextDelta
	EventToolUseFragment
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventToolUseFragment:
		return "tool_use_fragment"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is one callback emitted by an agent during an invocation. A decoded
// event may carry more than one field; Kind resolves it to a single shape.
type Event struct {
	Data           string           `json:"data,omitempty"`
	CurrentToolUse *ToolUseFragment `json:"current_tool_use,omitempty"`
	Message        *Message         `json:"message,omitempty"`
}

// Kind returns the dispatch shape. Priority: text delta, tool-use fragment,
// message, unknown. The first match wins.
func (e Event) Kind() EventKind {
	switch {
	case e.Data != "":
		return EventTextDelta
	case e.CurrentToolUse != nil:
		return EventToolUseFragment
	case e.Message != nil:
		return EventMessage
	default:
		return EventUnknown
	}
}

// TextDelta returns a raw text delta event.
func TextDelta(data string) Event {
	return Event{Data: data}
}

// ToolUseInProgress returns an event for a tool call that is still being built.
func ToolUseInProgress(f ToolUseFragment) Event {
	return Event{CurrentToolUse: &f}
}

// MessageEvent returns a completed structured message event.
func MessageEvent(m Message) Event {
	return Event{Message: &m}
}

// ToolUseFragment is a partial tool call streamed while the model is still
// generating its arguments.
type ToolUseFragment struct {
	ToolUseID string `json:"toolUseId,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     string `json:"input,omitempty"`
}

// Message roles.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Message is a completed structured message. Assistant messages carry text
// and tool-use blocks; user messages echo tool results back to the model.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// AssistantMessage builds an assistant message from blocks.
func AssistantMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// ToolResultMessage builds the user-role message that echoes tool results.
func ToolResultMessage(results ...ToolResultBlock) Message {
	blocks := make([]ContentBlock, 0, len(results))
	for i := range results {
		blocks = append(blocks, ContentBlock{ToolResult: &results[i]})
	}
	return Message{Role: RoleUser, Content: blocks}
}

// ContentBlock is one element of a message. At most one field is expected to
// be set; a nil Text means the block carries no text at all.
type ContentBlock struct {
	Text       *string          `json:"text,omitempty"`
	ToolUse    *ToolUse         `json:"toolUse,omitempty"`
	ToolResult *ToolResultBlock `json:"toolResult,omitempty"`
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Text: &text}
}

// ToolUseBlock returns a tool-use content block.
func ToolUseBlock(tu ToolUse) ContentBlock {
	return ContentBlock{ToolUse: &tu}
}

// ToolUse is a completed tool invocation requested by the model.
type ToolUse struct {
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

// ToolResultBlock is the outcome of a tool invocation.
type ToolResultBlock struct {
	ToolUseID string              `json:"toolUseId,omitempty"`
	Status    string              `json:"status,omitempty"`
	Content   []ToolResultContent `json:"content,omitempty"`
}

// ToolResultContent is one element of a tool result: text or JSON.
type ToolResultContent struct {
	Text *string         `json:"text,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
}

// TextContent returns a text tool-result element.
func TextContent(text string) ToolResultContent {
	return ToolResultContent{Text: &text}
}

// JSONContent returns a structured tool-result element.
func JSONContent(raw json.RawMessage) ToolResultContent {
	return ToolResultContent{JSON: raw}
}
