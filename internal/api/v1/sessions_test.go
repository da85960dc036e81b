package v1_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/chatflow/internal/api/v1"
	"github.com/gosuda/chatflow/internal/conversation"
)

// ---------------------------------------------------------------------------
// /sessions
// ---------------------------------------------------------------------------

func TestCreateSession(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		info := env.createSession(t)

		assert.NotEqual(t, uuid.Nil, info.ID)
		assert.Equal(t, "fake", info.Backend)
		assert.Equal(t, conversation.Stats{}, info.Stats)

		resp := env.api.Get("/sessions")
		require.Equal(t, http.StatusOK, resp.Code)
		var list []conversation.Info
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, info.ID, list[0].ID)
	})

	t.Run("client_factory_error", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.failNext = true

		resp := env.api.Post("/sessions")

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

func TestGetAndDeleteSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	info := env.createSession(t)
	path := "/sessions/" + info.ID.String()

	resp := env.api.Get(path)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.api.Delete(path)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.api.Get(path)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	body := parseErrorBody(t, resp.Body.Bytes())
	assert.Contains(t, body["detail"], "session not found")

	resp = env.api.Delete(path)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

// ---------------------------------------------------------------------------
// POST /sessions/{id}/messages
// ---------------------------------------------------------------------------

func TestSubmitMessage(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		info := env.createSession(t)

		resp := env.api.Post("/sessions/"+info.ID.String()+"/messages", map[string]any{
			"text": "What is 2+2?",
		})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var ex conversation.Exchange
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &ex))
		assert.Equal(t, "What is 2+2?", ex.User.Turn.DisplayText)
		assert.Equal(t, "Let me check that.", ex.Assistant.Turn.DisplayText)
		require.Len(t, ex.Assistant.Instructions, 3)
		assert.Contains(t, ex.Assistant.Instructions[0].HTML, "<strong>that</strong>")
		assert.Equal(t, conversation.KindToolCall, ex.Assistant.Instructions[1].Kind)
		assert.Equal(t, "Tool Result: Success", ex.Assistant.Instructions[2].Label)
		assert.Equal(t, "What is 2+2?", env.client.lastPrompt())
	})

	t.Run("with_uploaded_files", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		info := env.createSession(t)
		_, err := env.uploads.Save("data.csv", strings.NewReader("a,b\n1,2\n"))
		require.NoError(t, err)

		resp := env.api.Post("/sessions/"+info.ID.String()+"/messages", map[string]any{
			"text":  "Summarize",
			"files": []string{"data.csv"},
		})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, "Summarize\n\nUploaded files: "+env.uploads.Dir()+"/data.csv", env.client.lastPrompt())

		var ex conversation.Exchange
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &ex))
		assert.Equal(t, []string{"data.csv"}, ex.User.Turn.Attachments)
	})

	t.Run("unknown_upload", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		info := env.createSession(t)

		resp := env.api.Post("/sessions/"+info.ID.String()+"/messages", map[string]any{
			"text":  "Summarize",
			"files": []string{"missing.csv"},
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		body := parseErrorBody(t, resp.Body.Bytes())
		assert.Contains(t, body["detail"], "unknown upload")
	})

	t.Run("empty_prompt", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		info := env.createSession(t)

		resp := env.api.Post("/sessions/"+info.ID.String()+"/messages", map[string]any{"text": "  "})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		body := parseErrorBody(t, resp.Body.Bytes())
		assert.Contains(t, body["detail"], "prompt must not be empty")
	})

	t.Run("unknown_session", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		resp := env.api.Post("/sessions/"+uuid.NewString()+"/messages", map[string]any{"text": "hi"})

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("agent_failure", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		info := env.createSession(t)

		resp := env.api.Post("/sessions/"+info.ID.String()+"/messages", map[string]any{"text": "fail please"})

		assert.Equal(t, http.StatusBadGateway, resp.Code)
		body := parseErrorBody(t, resp.Body.Bytes())
		assert.Contains(t, body["detail"], "agent invocation failed")

		resp = env.api.Get("/sessions/" + info.ID.String())
		var got conversation.Info
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
		assert.Equal(t, conversation.Stats{UserMessages: 1}, got.Stats)
	})

	t.Run("busy", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.client.block = make(chan struct{})
		env.client.started = make(chan struct{})
		info := env.createSession(t)
		path := "/sessions/" + info.ID.String() + "/messages"

		var wg sync.WaitGroup
		wg.Go(func() {
			resp := env.api.Post(path, map[string]any{"text": "slow"})
			assert.Equal(t, http.StatusOK, resp.Code)
		})

		<-env.client.started
		resp := env.api.Post(path, map[string]any{"text": "second"})
		assert.Equal(t, http.StatusConflict, resp.Code)

		resp = env.api.Delete("/sessions/" + info.ID.String() + "/transcript")
		assert.Equal(t, http.StatusConflict, resp.Code)

		close(env.client.block)
		wg.Wait()
	})
}

// ---------------------------------------------------------------------------
// /sessions/{id}/transcript
// ---------------------------------------------------------------------------

func TestTranscript(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	info := env.createSession(t)
	base := "/sessions/" + info.ID.String()

	for range 2 {
		resp := env.api.Post(base+"/messages", map[string]any{"text": "again"})
		require.Equal(t, http.StatusOK, resp.Code)
	}

	resp := env.api.Get(base + "/transcript")
	require.Equal(t, http.StatusOK, resp.Code)

	var body v1.TranscriptBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, info.ID, body.SessionID)
	require.Len(t, body.Turns, 4)
	assert.Equal(t, conversation.Stats{UserMessages: 2, AssistantMessages: 2, ToolCalls: 2}, body.Stats)
	assert.False(t, body.Turns[3].Instructions[2].Expanded, "history results collapsed")

	resp = env.api.Delete(base + "/transcript")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.api.Get(base + "/transcript")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Empty(t, body.Turns)
	assert.Equal(t, conversation.Stats{}, body.Stats)
}
