package backends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/gosuda/chatflow/internal/agent"
)

const (
	openAIDefaultModel   = "gpt-4o-mini"
	defaultMaxToolRounds = 8
)

// ErrMissingAPIKey is returned when a hosted backend is configured without credentials.
var ErrMissingAPIKey = errors.New("agent: missing api key") //nolint:gochecknoglobals // sentinel error

// ErrToolRoundsExceeded is returned when the model keeps requesting tools past the configured limit.
var ErrToolRoundsExceeded = errors.New("agent: tool rounds exceeded") //nolint:gochecknoglobals // sentinel error

// OpenAIBackend implements agent.Client against any OpenAI-compatible chat
// completions endpoint. It streams each model round, runs requested tools
// through the configured executor and loops until the model stops asking.
type OpenAIBackend struct {
	client  *openai.Client
	opts    agent.Options
	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func NewOpenAIBackend(_ context.Context, opts agent.Options) (agent.Client, error) {
	if opts.APIKey == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("agent.NewOpenAIBackend: %w", ErrMissingAPIKey)
	}
	if opts.Model == "" {
		opts.Model = openAIDefaultModel
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}, nil
}

// Reset forgets the conversation history.
func (b *OpenAIBackend) Reset() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}

func (b *OpenAIBackend) Invoke(ctx context.Context, prompt string, sink agent.EventSink) (agent.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sink == nil {
		sink = discardSink
	}

	messages := slices.Clone(b.history)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	for round := 0; ; round++ {
		if round > b.opts.MaxToolRounds {
			return agent.Result{}, fmt.Errorf("agent.OpenAIBackend.Invoke: %w (limit %d)", ErrToolRoundsExceeded, b.opts.MaxToolRounds)
		}

		turn, err := b.stream(ctx, messages, sink)
		if err != nil {
			return agent.Result{}, fmt.Errorf("agent.OpenAIBackend.Invoke: %w", err)
		}

		messages = append(messages, turn.completionMessage())
		sink.HandleEvent(ctx, agent.MessageEvent(turn.assistantMessage()))

		if len(turn.calls) == 0 {
			b.history = messages
			return agent.Result{
				Text:       turn.text.String(),
				StopReason: turn.finishReason,
				ToolRounds: round,
			}, nil
		}

		results := make([]agent.ToolResultBlock, 0, len(turn.calls))
		for _, call := range turn.calls {
			res := b.execute(ctx, call.toolUse())
			results = append(results, res)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    toolResultText(res),
				ToolCallID: call.id,
			})
		}
		sink.HandleEvent(ctx, agent.MessageEvent(agent.ToolResultMessage(results...)))
	}
}

func (b *OpenAIBackend) execute(ctx context.Context, call agent.ToolUse) agent.ToolResultBlock {
	if b.opts.Tools == nil {
		return agent.ToolResultBlock{
			ToolUseID: call.ToolUseID,
			Status:    "error",
			Content:   []agent.ToolResultContent{agent.TextContent("no tools are configured")},
		}
	}
	return b.opts.Tools.Execute(ctx, call)
}

func (b *OpenAIBackend) request(messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	all := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if b.opts.SystemPrompt != "" {
		all = append(all, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: b.opts.SystemPrompt,
		})
	}
	all = append(all, messages...)

	req := openai.ChatCompletionRequest{
		Model:       b.opts.Model,
		Messages:    all,
		Temperature: b.opts.Temperature,
		TopP:        b.opts.TopP,
		MaxTokens:   b.opts.MaxTokens,
	}

	if b.opts.Tools != nil {
		for _, spec := range b.opts.Tools.Specs() {
			req.Tools = append(req.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        spec.Name,
					Description: spec.Description,
					Parameters:  spec.Parameters,
				},
			})
		}
	}

	return req
}

// stream runs one model round, forwarding text deltas and tool-call fragments
// to the sink as they arrive.
func (b *OpenAIBackend) stream(ctx context.Context, messages []openai.ChatCompletionMessage, sink agent.EventSink) (*openAITurn, error) {
	stream, err := b.client.CreateChatCompletionStream(ctx, b.request(messages))
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	defer stream.Close()

	turn := &openAITurn{byIndex: make(map[int]*openAIToolCall)}

	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, fmt.Errorf("recv: %w", recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			turn.text.WriteString(choice.Delta.Content)
			sink.HandleEvent(ctx, agent.TextDelta(choice.Delta.Content))
		}

		for i, tc := range choice.Delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			call := turn.call(idx)
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Function.Name != "" {
				call.name = tc.Function.Name
			}
			call.args.WriteString(tc.Function.Arguments)

			sink.HandleEvent(ctx, agent.ToolUseInProgress(agent.ToolUseFragment{
				ToolUseID: call.id,
				Name:      call.name,
				Input:     call.args.String(),
			}))
		}

		if choice.FinishReason != "" {
			turn.finishReason = string(choice.FinishReason)
		}
	}

	turn.seal()
	log.Debug().
		Str("model", b.opts.Model).
		Int("tool_calls", len(turn.calls)).
		Str("finish_reason", turn.finishReason).
		Msg("openai round complete")

	return turn, nil
}

type openAIToolCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

func (c *openAIToolCall) toolUse() agent.ToolUse {
	return agent.ToolUse{
		ToolUseID: c.id,
		Name:      c.name,
		Input:     normalizeArguments(c.args.String()),
	}
}

type openAITurn struct {
	text         strings.Builder
	byIndex      map[int]*openAIToolCall
	calls        []*openAIToolCall
	finishReason string
}

func (t *openAITurn) call(idx int) *openAIToolCall {
	c, ok := t.byIndex[idx]
	if !ok {
		c = &openAIToolCall{index: idx}
		t.byIndex[idx] = c
	}
	return c
}

// seal orders accumulated tool calls by stream index and fills missing ids.
func (t *openAITurn) seal() {
	t.calls = make([]*openAIToolCall, 0, len(t.byIndex))
	for _, c := range t.byIndex {
		t.calls = append(t.calls, c)
	}
	sort.Slice(t.calls, func(i, j int) bool { return t.calls[i].index < t.calls[j].index })
	for _, c := range t.calls {
		if c.id == "" {
			c.id = fmt.Sprintf("call_%d", c.index)
		}
	}
}

func (t *openAITurn) completionMessage() openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: t.text.String(),
	}
	for _, c := range t.calls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   c.id,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c.name,
				Arguments: string(normalizeArguments(c.args.String())),
			},
		})
	}
	return msg
}

func (t *openAITurn) assistantMessage() agent.Message {
	blocks := make([]agent.ContentBlock, 0, len(t.calls)+1)
	if text := t.text.String(); text != "" {
		blocks = append(blocks, agent.TextBlock(text))
	}
	for _, c := range t.calls {
		blocks = append(blocks, agent.ToolUseBlock(c.toolUse()))
	}
	return agent.AssistantMessage(blocks...)
}
