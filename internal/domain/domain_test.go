package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/chatflow/internal/domain"
)

// ---------------------------------------------------------------------------
// 1. Sentinel errors — distinctness and wrapping.
// ---------------------------------------------------------------------------

func sentinels() []error {
	return []error{
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrInvalidInput,
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	t.Parallel()

	all := sentinels()
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}

			t.Run(a.Error()+"!="+b.Error(), func(t *testing.T) {
				t.Parallel()

				assert.NotErrorIs(t, a, b, "sentinel errors must be distinct")
			})
		}
	}
}

func TestSentinelErrors_WrappingPreservesIdentity(t *testing.T) {
	t.Parallel()

	for _, sentinel := range sentinels() {
		t.Run(sentinel.Error(), func(t *testing.T) {
			t.Parallel()

			detail := errors.New("session busy")
			wrapped := fmt.Errorf("conversation.Session.Submit: %w: %w", sentinel, detail)
			require.ErrorIs(t, wrapped, sentinel)
			require.ErrorIs(t, wrapped, detail)

			doubleWrapped := fmt.Errorf("outer: %w", wrapped)
			require.ErrorIs(t, doubleWrapped, sentinel)
		})
	}
}

// ---------------------------------------------------------------------------
// 2. Wire constants — string value regression guards.
// ---------------------------------------------------------------------------

func TestWireConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"RoleUser", string(domain.RoleUser), "user"},
		{"RoleAssistant", string(domain.RoleAssistant), "assistant"},
		{"FlowItemText", string(domain.FlowItemText), "text"},
		{"FlowItemToolCall", string(domain.FlowItemToolCall), "tool_call"},
		{"FlowItemToolResult", string(domain.FlowItemToolResult), "tool_result"},
		{"ToolStatusSuccess", string(domain.ToolStatusSuccess), "success"},
		{"ToolStatusError", string(domain.ToolStatusError), "error"},
		{"PartText", string(domain.PartText), "text"},
		{"PartStructured", string(domain.PartStructured), "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestToolStatus_Label(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status domain.ToolStatus
		want   string
	}{
		{domain.ToolStatusSuccess, "Success"},
		{domain.ToolStatusError, "error"},
		{"", "Failed"},
		{"timeout", "timeout"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.Label())
		})
	}
}
