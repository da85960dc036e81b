package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/gosuda/chatflow/internal/agent"
)

func TestGeminiAssistantMessage(t *testing.T) {
	t.Parallel()

	calls := []*genai.Part{
		{FunctionCall: &genai.FunctionCall{ID: "fc-1", Name: "calculator", Args: map[string]any{"expression": "2+2"}}},
		{FunctionCall: &genai.FunctionCall{Name: "list_uploads"}},
	}

	msg := geminiAssistantMessage("thinking", calls)

	assert.Equal(t, agent.RoleAssistant, msg.Role)
	require.Len(t, msg.Content, 3)
	require.NotNil(t, msg.Content[0].Text)
	assert.Equal(t, "thinking", *msg.Content[0].Text)

	require.NotNil(t, msg.Content[1].ToolUse)
	assert.Equal(t, "fc-1", msg.Content[1].ToolUse.ToolUseID)
	assert.JSONEq(t, `{"expression":"2+2"}`, string(msg.Content[1].ToolUse.Input))

	require.NotNil(t, msg.Content[2].ToolUse)
	assert.Equal(t, "call_1", msg.Content[2].ToolUse.ToolUseID)
	assert.JSONEq(t, `{}`, string(msg.Content[2].ToolUse.Input))
}

func TestFunctionResponse(t *testing.T) {
	t.Parallel()

	ok := functionResponse(agent.ToolResultBlock{
		Status:  "success",
		Content: []agent.ToolResultContent{agent.TextContent("4")},
	})
	assert.Equal(t, map[string]any{"output": "4"}, ok)

	failed := functionResponse(agent.ToolResultBlock{
		Status:  "error",
		Content: []agent.ToolResultContent{agent.TextContent("division by zero")},
	})
	assert.Equal(t, map[string]any{"error": "division by zero"}, failed)
}

func TestFunctionDeclarations(t *testing.T) {
	t.Parallel()

	decls := functionDeclarations([]agent.ToolSpec{{
		Name:        "calculator",
		Description: "math",
		Parameters:  map[string]any{"type": "object"},
	}})

	require.Len(t, decls, 1)
	assert.Equal(t, "calculator", decls[0].Name)
	assert.Equal(t, map[string]any{"type": "object"}, decls[0].ParametersJsonSchema)
}

func TestNormalizeArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", `{}`},
		{"  ", `{}`},
		{`{"a":1}`, `{"a":1}`},
		{`not json`, `"not json"`},
	}

	for _, tt := range tests {
		assert.JSONEq(t, tt.want, string(normalizeArguments(tt.in)), tt.in)
	}
}
