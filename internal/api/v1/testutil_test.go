package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/chatflow/internal/agent"
	v1 "github.com/gosuda/chatflow/internal/api/v1"
	"github.com/gosuda/chatflow/internal/conversation"
	"github.com/gosuda/chatflow/internal/upload"
	"github.com/gosuda/chatflow/internal/view"
)

// ---------------------------------------------------------------------------
// Fake agent client
// ---------------------------------------------------------------------------

// fakeClient answers every prompt with a calculator exchange, or fails when
// the prompt starts with "fail".
type fakeClient struct {
	mu      sync.Mutex
	prompts []string
	block   chan struct{}
	started chan struct{}
}

func (c *fakeClient) Invoke(ctx context.Context, prompt string, sink agent.EventSink) (agent.Result, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	if c.block != nil {
		close(c.started)
		<-c.block
	}
	if strings.HasPrefix(prompt, "fail") {
		return agent.Result{}, errors.New("upstream 500")
	}

	sink.HandleEvent(ctx, agent.TextDelta("Let me check that."))
	sink.HandleEvent(ctx, agent.MessageEvent(agent.AssistantMessage(
		agent.TextBlock("Let me check **that**."),
		agent.ToolUseBlock(agent.ToolUse{ToolUseID: "t1", Name: "calculator", Input: json.RawMessage(`{"expr":"2+2"}`)}),
	)))
	sink.HandleEvent(ctx, agent.MessageEvent(agent.ToolResultMessage(agent.ToolResultBlock{
		ToolUseID: "t1",
		Status:    "success",
		Content:   []agent.ToolResultContent{agent.TextContent("4")},
	})))
	return agent.Result{Text: "4"}, nil
}

func (c *fakeClient) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// ---------------------------------------------------------------------------
// Test API
// ---------------------------------------------------------------------------

type testEnv struct {
	api      humatest.TestAPI
	manager  *conversation.Manager
	uploads  *upload.Store
	client   *fakeClient
	failNext bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	_, api := humatest.New(t)
	env := &testEnv{
		api:     api,
		client:  &fakeClient{},
		uploads: upload.NewStore(filepath.Join(t.TempDir(), "uploads"), 1024),
	}
	env.manager = conversation.NewManager(conversation.ManagerConfig{
		Backend:    "fake",
		UploadsDir: env.uploads.Dir(),
		NewClient: func(context.Context) (agent.Client, error) {
			if env.failNext {
				return nil, errors.New("no credentials")
			}
			return env.client, nil
		},
	})

	v1.RegisterSessionRoutes(api, env.manager, env.uploads, view.NewMarkdown())
	v1.RegisterUploadRoutes(api, env.uploads)

	return env
}

func (e *testEnv) createSession(t *testing.T) conversation.Info {
	t.Helper()

	resp := e.api.Post("/sessions")
	require.Equal(t, 201, resp.Code, resp.Body.String())

	var info conversation.Info
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &info))
	return info
}

// parseErrorBody decodes the RFC 9457 problem detail from the response body.
func parseErrorBody(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
