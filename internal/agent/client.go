package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// EventSink receives agent events. Clients call HandleEvent synchronously,
// zero or more times, before Invoke returns, delivering each completed
// message exactly once.
type EventSink interface {
	HandleEvent(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event)

func (f EventSinkFunc) HandleEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Result is the value returned by a completed invocation.
type Result struct {
	Text       string `json:"text"`
	StopReason string `json:"stop_reason,omitempty"`
	ToolRounds int    `json:"tool_rounds"`
}

func (r Result) String() string { return r.Text }

// Client is a conversational agent. Implementations keep their own message
// history between invocations.
type Client interface {
	Invoke(ctx context.Context, prompt string, sink EventSink) (Result, error)
}

// Resetter is implemented by clients that can forget their message history.
type Resetter interface {
	Reset()
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolExecutor runs tools on behalf of a client. Failures are reported in
// the returned block's status, never as Go errors.
type ToolExecutor interface {
	Specs() []ToolSpec
	Execute(ctx context.Context, call ToolUse) ToolResultBlock
}

// Options configures a client created by a ClientFactory.
type Options struct {
	Model         string
	APIKey        string //nolint:gosec // G117: provider credential
	BaseURL       string
	SystemPrompt  string
	Temperature   float32
	TopP          float32
	MaxTokens     int
	MaxToolRounds int
	Timeout       time.Duration
	Tools         ToolExecutor
}

// DecodeInput parses a tool input payload, tolerating empty input.
func DecodeInput(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// NormalizeInput turns a tool input payload into a JSON value. Empty input
// becomes an empty object; invalid JSON is kept as a JSON string.
func NormalizeInput(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(bytes.Clone(trimmed))
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
