package agent_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/chatflow/internal/agent"
)

// --- stub Client for registry tests ---

type stubClient struct {
	model string
}

func (s *stubClient) Invoke(context.Context, string, agent.EventSink) (agent.Result, error) {
	return agent.Result{Text: s.model}, nil
}

func stubFactory(_ context.Context, opts agent.Options) (agent.Client, error) {
	return &stubClient{model: opts.Model}, nil
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()
		reg.Register("openai", stubFactory)

		client, err := reg.Create(context.Background(), "openai", agent.Options{Model: "gpt-test"})

		require.NoError(t, err)
		require.NotNil(t, client)
		res, err := client.Invoke(context.Background(), "hi", nil)
		require.NoError(t, err)
		assert.Equal(t, "gpt-test", res.String())
	})

	t.Run("unknown backend returns ErrUnknownBackend", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()

		client, err := reg.Create(context.Background(), "nonexistent", agent.Options{})

		require.Error(t, err)
		assert.Nil(t, client)
		assert.ErrorIs(t, err, agent.ErrUnknownBackend)
		assert.False(t, reg.Has("nonexistent"))
	})

	t.Run("factory error propagated", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()
		reg.Register("broken", func(context.Context, agent.Options) (agent.Client, error) {
			return nil, errors.New("factory boom")
		})

		client, err := reg.Create(context.Background(), "broken", agent.Options{})

		require.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "factory boom")
	})

	t.Run("Available returns sorted names", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()
		reg.Register("openai", stubFactory)
		reg.Register("echo", stubFactory)
		reg.Register("gemini", stubFactory)

		assert.Equal(t, []string{"echo", "gemini", "openai"}, reg.Available())
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	reg := agent.NewRegistry()
	reg.Register("echo", stubFactory)

	var wg sync.WaitGroup

	for i := range 10 {
		name := fmt.Sprintf("backend-%d", i)
		wg.Go(func() {
			reg.Register(name, stubFactory)
		})
	}

	for range 10 {
		wg.Go(func() {
			client, err := reg.Create(context.Background(), "echo", agent.Options{})
			assert.NoError(t, err)
			assert.NotNil(t, client)
		})
	}

	for range 5 {
		wg.Go(func() {
			_ = reg.Available()
		})
	}

	wg.Wait()

	assert.Len(t, reg.Available(), 11)
}
