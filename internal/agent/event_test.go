package agent_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/chatflow/internal/agent"
)

func TestEvent_KindPriority(t *testing.T) {
	t.Parallel()

	msg := agent.AssistantMessage(agent.TextBlock("hi"))
	frag := &agent.ToolUseFragment{Name: "calculator"}

	tests := []struct {
		name string
		ev   agent.Event
		want agent.EventKind
	}{
		{name: "text delta", ev: agent.TextDelta("abc"), want: agent.EventTextDelta},
		{name: "fragment", ev: agent.ToolUseInProgress(*frag), want: agent.EventToolUseFragment},
		{name: "message", ev: agent.MessageEvent(msg), want: agent.EventMessage},
		{name: "empty", ev: agent.Event{}, want: agent.EventUnknown},
		{name: "data wins over message", ev: agent.Event{Data: "x", Message: &msg}, want: agent.EventTextDelta},
		{name: "fragment wins over message", ev: agent.Event{CurrentToolUse: frag, Message: &msg}, want: agent.EventToolUseFragment},
		{name: "empty data falls through", ev: agent.Event{Data: "", Message: &msg}, want: agent.EventMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.ev.Kind())
		})
	}
}

func TestEvent_DecodeWireShape(t *testing.T) {
	t.Parallel()

	raw := `{"message":{"role":"assistant","content":[
		{"text":"Let me check that."},
		{"toolUse":{"name":"calculator","input":{"expr":"2+2"},"toolUseId":"t1"}}
	]}}`

	var ev agent.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, agent.EventMessage, ev.Kind())
	require.Len(t, ev.Message.Content, 2)
	require.NotNil(t, ev.Message.Content[0].Text)
	assert.Equal(t, "Let me check that.", *ev.Message.Content[0].Text)
	require.NotNil(t, ev.Message.Content[1].ToolUse)
	assert.Equal(t, "t1", ev.Message.Content[1].ToolUse.ToolUseID)
	assert.JSONEq(t, `{"expr":"2+2"}`, string(ev.Message.Content[1].ToolUse.Input))
}

func TestToolResultMessage(t *testing.T) {
	t.Parallel()

	msg := agent.ToolResultMessage(
		agent.ToolResultBlock{ToolUseID: "a", Status: "success"},
		agent.ToolResultBlock{ToolUseID: "b", Status: "error"},
	)

	assert.Equal(t, agent.RoleUser, msg.Role)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "a", msg.Content[0].ToolResult.ToolUseID)
	assert.Equal(t, "b", msg.Content[1].ToolResult.ToolUseID)
}

func TestDecodeInput(t *testing.T) {
	t.Parallel()

	var v struct {
		Expression string `json:"expression"`
	}

	require.NoError(t, agent.DecodeInput(nil, &v))
	require.NoError(t, agent.DecodeInput(json.RawMessage("null"), &v))
	require.NoError(t, agent.DecodeInput(json.RawMessage(`{"expression":"1+1"}`), &v))
	assert.Equal(t, "1+1", v.Expression)
	assert.Error(t, agent.DecodeInput(json.RawMessage(`{`), &v))
}

func TestNormalizeInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   json.RawMessage
		want string
	}{
		{name: "nil", in: nil, want: `{}`},
		{name: "blank", in: json.RawMessage("  \n"), want: `{}`},
		{name: "valid object", in: json.RawMessage(` {"expr":"2+2"} `), want: `{"expr":"2+2"}`},
		{name: "truncated object", in: json.RawMessage(`{"expr":`), want: `"{\"expr\":"`},
		{name: "plain text", in: json.RawMessage(`2+2 please`), want: `"2+2 please"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := agent.NormalizeInput(tt.in)
			require.True(t, json.Valid(got))
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
