// Package backends provides the agent.Client implementations chat sessions
// can be configured with.
package backends

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gosuda/chatflow/internal/agent"
)

var discardSink = agent.EventSinkFunc(func(context.Context, agent.Event) {}) //nolint:gochecknoglobals // stateless sink

// normalizeArguments turns streamed tool arguments into a JSON value.
func normalizeArguments(args string) json.RawMessage {
	return agent.NormalizeInput([]byte(args))
}

// toolResultText flattens a tool result into the plain text the model sees.
func toolResultText(res agent.ToolResultBlock) string {
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		switch {
		case c.Text != nil:
			parts = append(parts, *c.Text)
		case len(c.JSON) > 0:
			parts = append(parts, string(c.JSON))
		}
	}
	if len(parts) == 0 {
		return res.Status
	}
	return strings.Join(parts, "\n")
}

// RegisterAll registers every built-in backend under its configuration name.
func RegisterAll(reg *agent.Registry) {
	reg.Register("openai", NewOpenAIBackend)
	reg.Register("gemini", NewGeminiBackend)
	reg.Register("echo", NewEchoBackend)
}
