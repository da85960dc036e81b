package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/gosuda/chatflow/internal/agent"
)

const geminiDefaultModel = "gemini-2.5-flash"

// GeminiBackend implements agent.Client on the Gemini API.
type GeminiBackend struct {
	client  *genai.Client
	opts    agent.Options
	mu      sync.Mutex
	history []*genai.Content
}

func NewGeminiBackend(ctx context.Context, opts agent.Options) (agent.Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("agent.NewGeminiBackend: %w", ErrMissingAPIKey)
	}
	if opts.Model == "" {
		opts.Model = geminiDefaultModel
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("agent.NewGeminiBackend: %w", err)
	}

	return &GeminiBackend{client: client, opts: opts}, nil
}

// Reset forgets the conversation history.
func (b *GeminiBackend) Reset() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}

func (b *GeminiBackend) Invoke(ctx context.Context, prompt string, sink agent.EventSink) (agent.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sink == nil {
		sink = discardSink
	}

	contents := slices.Clone(b.history)
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))
	config := b.config()

	for round := 0; ; round++ {
		if round > b.opts.MaxToolRounds {
			return agent.Result{}, fmt.Errorf("agent.GeminiBackend.Invoke: %w (limit %d)", ErrToolRoundsExceeded, b.opts.MaxToolRounds)
		}

		turn, err := b.stream(ctx, contents, config, sink)
		if err != nil {
			return agent.Result{}, fmt.Errorf("agent.GeminiBackend.Invoke: %w", err)
		}

		contents = append(contents, turn.content())
		sink.HandleEvent(ctx, agent.MessageEvent(geminiAssistantMessage(turn.text.String(), turn.calls)))

		if len(turn.calls) == 0 {
			b.history = contents
			return agent.Result{
				Text:       turn.text.String(),
				StopReason: turn.finishReason,
				ToolRounds: round,
			}, nil
		}

		results := make([]agent.ToolResultBlock, 0, len(turn.calls))
		responses := make([]*genai.Part, 0, len(turn.calls))
		for i, call := range turn.calls {
			res := b.execute(ctx, geminiToolUse(i, call.FunctionCall))
			results = append(results, res)
			responses = append(responses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.FunctionCall.ID,
				Name:     call.FunctionCall.Name,
				Response: functionResponse(res),
			}})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responses})
		sink.HandleEvent(ctx, agent.MessageEvent(agent.ToolResultMessage(results...)))
	}
}

func (b *GeminiBackend) execute(ctx context.Context, call agent.ToolUse) agent.ToolResultBlock {
	if b.opts.Tools == nil {
		return agent.ToolResultBlock{
			ToolUseID: call.ToolUseID,
			Status:    "error",
			Content:   []agent.ToolResultContent{agent.TextContent("no tools are configured")},
		}
	}
	return b.opts.Tools.Execute(ctx, call)
}

func (b *GeminiBackend) config() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(b.opts.Temperature),
		TopP:            genai.Ptr(b.opts.TopP),
		MaxOutputTokens: int32(b.opts.MaxTokens), //nolint:gosec // bounded by config validation
	}
	if b.opts.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(b.opts.SystemPrompt, genai.RoleUser)
	}
	if b.opts.Tools != nil {
		if decls := functionDeclarations(b.opts.Tools.Specs()); len(decls) > 0 {
			cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		}
	}
	return cfg
}

func (b *GeminiBackend) stream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, sink agent.EventSink) (*geminiTurn, error) {
	turn := &geminiTurn{}

	for resp, err := range b.client.Models.GenerateContentStream(ctx, b.opts.Model, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("stream: %w", err)
		}
		if resp == nil || len(resp.Candidates) == 0 {
			continue
		}

		cand := resp.Candidates[0]
		if cand.FinishReason != "" {
			turn.finishReason = string(cand.FinishReason)
		}
		if cand.Content == nil {
			continue
		}

		for _, part := range cand.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				turn.calls = append(turn.calls, part)
				input, _ := json.Marshal(part.FunctionCall.Args)
				sink.HandleEvent(ctx, agent.ToolUseInProgress(agent.ToolUseFragment{
					ToolUseID: part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Input:     string(input),
				}))
			case part.Text != "" && !part.Thought:
				turn.text.WriteString(part.Text)
				sink.HandleEvent(ctx, agent.TextDelta(part.Text))
			}
		}
	}

	log.Debug().
		Str("model", b.opts.Model).
		Int("tool_calls", len(turn.calls)).
		Str("finish_reason", turn.finishReason).
		Msg("gemini round complete")

	return turn, nil
}

type geminiTurn struct {
	text         strings.Builder
	calls        []*genai.Part
	finishReason string
}

// content rebuilds the model turn for history. Function-call parts are kept
// as received so their thought signatures are echoed back.
func (t *geminiTurn) content() *genai.Content {
	parts := make([]*genai.Part, 0, len(t.calls)+1)
	if text := t.text.String(); text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	parts = append(parts, t.calls...)
	return &genai.Content{Role: genai.RoleModel, Parts: parts}
}

func functionDeclarations(specs []agent.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 spec.Name,
			Description:          spec.Description,
			ParametersJsonSchema: spec.Parameters,
		})
	}
	return decls
}

func geminiToolUse(index int, fc *genai.FunctionCall) agent.ToolUse {
	id := fc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", index)
	}
	input, err := json.Marshal(fc.Args)
	if err != nil || fc.Args == nil {
		input = json.RawMessage(`{}`)
	}
	return agent.ToolUse{ToolUseID: id, Name: fc.Name, Input: input}
}

func geminiAssistantMessage(text string, calls []*genai.Part) agent.Message {
	blocks := make([]agent.ContentBlock, 0, len(calls)+1)
	if text != "" {
		blocks = append(blocks, agent.TextBlock(text))
	}
	for i, part := range calls {
		blocks = append(blocks, agent.ToolUseBlock(geminiToolUse(i, part.FunctionCall)))
	}
	return agent.AssistantMessage(blocks...)
}

// functionResponse maps a tool result to the response object Gemini expects:
// "output" on success, "error" otherwise.
func functionResponse(res agent.ToolResultBlock) map[string]any {
	key := "output"
	if !strings.EqualFold(res.Status, "success") {
		key = "error"
	}
	return map[string]any{key: toolResultText(res)}
}
