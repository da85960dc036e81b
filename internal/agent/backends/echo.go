package backends

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosuda/chatflow/internal/agent"
)

const echoToolPrefix = "/tool "

// ErrInvalidCommand is returned for a malformed "/tool" prompt.
var ErrInvalidCommand = errors.New("agent: invalid tool command") //nolint:gochecknoglobals // sentinel error

// EchoBackend is an offline client for local development. It repeats the
// prompt back, and a prompt of the form "/tool <name> <json>" invokes a tool
// directly so the tool-call path can be exercised without a model.
type EchoBackend struct {
	tools agent.ToolExecutor
	calls int
}

func NewEchoBackend(_ context.Context, opts agent.Options) (agent.Client, error) {
	return &EchoBackend{tools: opts.Tools}, nil
}

// Reset restarts tool-call numbering.
func (b *EchoBackend) Reset() { b.calls = 0 }

func (b *EchoBackend) Invoke(ctx context.Context, prompt string, sink agent.EventSink) (agent.Result, error) {
	if sink == nil {
		sink = discardSink
	}

	line, _, _ := strings.Cut(prompt, "\n")
	if rest, ok := strings.CutPrefix(line, echoToolPrefix); ok {
		return b.invokeTool(ctx, rest, sink)
	}

	reply := "You said: " + strings.TrimSpace(line)
	b.say(ctx, sink, reply)
	return agent.Result{Text: reply, StopReason: "end_turn"}, nil
}

func (b *EchoBackend) invokeTool(ctx context.Context, command string, sink agent.EventSink) (agent.Result, error) {
	name, input, _ := strings.Cut(strings.TrimSpace(command), " ")
	if name == "" {
		return agent.Result{}, fmt.Errorf("agent.EchoBackend.Invoke: %w: tool name is required", ErrInvalidCommand)
	}
	if b.tools == nil {
		return agent.Result{}, fmt.Errorf("agent.EchoBackend.Invoke: %w: no tools are configured", ErrInvalidCommand)
	}

	b.calls++
	call := agent.ToolUse{
		ToolUseID: fmt.Sprintf("echo_%d", b.calls),
		Name:      name,
		Input:     normalizeArguments(input),
	}

	intro := fmt.Sprintf("Calling %s. ", name)
	sink.HandleEvent(ctx, agent.TextDelta(intro))
	sink.HandleEvent(ctx, agent.ToolUseInProgress(agent.ToolUseFragment{
		ToolUseID: call.ToolUseID,
		Name:      call.Name,
		Input:     string(call.Input),
	}))
	sink.HandleEvent(ctx, agent.MessageEvent(agent.AssistantMessage(agent.TextBlock(intro), agent.ToolUseBlock(call))))

	res := b.tools.Execute(ctx, call)
	sink.HandleEvent(ctx, agent.MessageEvent(agent.ToolResultMessage(res)))

	reply := fmt.Sprintf("%s finished with %s: %s", name, res.Status, toolResultText(res))
	b.say(ctx, sink, reply)
	return agent.Result{Text: reply, StopReason: "end_turn", ToolRounds: 1}, nil
}

func (b *EchoBackend) say(ctx context.Context, sink agent.EventSink, text string) {
	sink.HandleEvent(ctx, agent.TextDelta(text))
	sink.HandleEvent(ctx, agent.MessageEvent(agent.AssistantMessage(agent.TextBlock(text))))
}
