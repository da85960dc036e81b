package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/agent"
	"github.com/gosuda/chatflow/internal/domain"
)

// Sentinel errors.
var (
	ErrEmptyPrompt     = errors.New("conversation: empty prompt")      //nolint:gochecknoglobals // sentinel error
	ErrSessionBusy     = errors.New("conversation: session busy")      //nolint:gochecknoglobals // sentinel error
	ErrAgentFailed     = errors.New("conversation: agent failed")      //nolint:gochecknoglobals // sentinel error
	ErrSessionNotFound = errors.New("conversation: session not found") //nolint:gochecknoglobals // sentinel error
)

// Exchange is the outcome of one successful submission.
type Exchange struct {
	User      TurnView     `json:"user"`
	Assistant TurnView     `json:"assistant"`
	Result    agent.Result `json:"result"`
}

// Info describes a session.
type Info struct {
	ID        uuid.UUID `json:"id"`
	Backend   string    `json:"backend"`
	CreatedAt time.Time `json:"created_at"`
	Busy      bool      `json:"busy"`
	Stats     Stats     `json:"stats"`
}

// Session owns one conversation: its agent client, collector and
// transcript. Submissions are serialized; a second concurrent submission
// fails with ErrSessionBusy instead of queueing.
type Session struct {
	id         uuid.UUID
	backend    string
	uploadsDir string
	createdAt  time.Time
	client     agent.Client
	display    Display
	collector  *Collector

	submitMu sync.Mutex // held for the whole agent invocation
	mu       sync.RWMutex
	busy     bool
	turns    Transcript
}

// NewSession creates a session. uploadsDir is only used in the upload notice.
func NewSession(id uuid.UUID, backend string, client agent.Client, display Display, uploadsDir string) *Session {
	if display == nil {
		display = NopDisplay
	}
	if uploadsDir == "" {
		uploadsDir = "uploads"
	}
	return &Session{
		id:         id,
		backend:    backend,
		uploadsDir: strings.TrimSuffix(uploadsDir, "/"),
		createdAt:  time.Now().UTC(),
		client:     client,
		display:    display,
		collector:  NewCollector(display),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// Submit sends text, with the paths of any attached uploads, to the agent
// and records both sides of the exchange. Each recognized agent message is
// shown on the display as it arrives. If the agent fails, the user turn is
// kept, nothing is recorded for the assistant and the error wraps
// ErrAgentFailed.
func (s *Session) Submit(ctx context.Context, text string, files []string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("conversation.Session.Submit: %w: %w", domain.ErrInvalidInput, ErrEmptyPrompt)
	}
	if !s.submitMu.TryLock() {
		return nil, fmt.Errorf("conversation.Session.Submit: %w: %w", domain.ErrConflict, ErrSessionBusy)
	}
	defer s.submitMu.Unlock()

	s.setBusy(true)
	defer s.setBusy(false)

	logger := log.With().Str("session_id", s.id.String()).Str("backend", s.backend).Logger()

	if len(files) > 0 {
		s.display.Show(ctx, NoticeInstruction(fmt.Sprintf("Uploaded %d file(s) to %s/ directory", len(files), s.uploadsDir)))
	}

	user := FinalizeUser(text, baseNames(files))
	s.mu.Lock()
	s.turns.Append(user)
	s.mu.Unlock()

	userView := TurnView{Turn: user, Instructions: Render(user)}
	for _, in := range userView.Instructions {
		s.display.Show(ctx, in)
	}

	s.collector.Reset()
	started := time.Now()

	result, err := s.client.Invoke(ctx, BuildPrompt(text, files), s.collector)
	if err != nil {
		s.collector.Reset()
		s.display.Show(context.WithoutCancel(ctx), ErrorInstruction(err))
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("agent invocation failed")
		return nil, fmt.Errorf("conversation.Session.Submit: %w: %w", ErrAgentFailed, err)
	}

	assistant := FinalizeAssistant(s.collector.Snapshot(), result)
	s.mu.Lock()
	s.turns.Append(assistant)
	s.mu.Unlock()

	logger.Info().
		Int("flow_items", len(assistant.Flow)).
		Int("tool_calls", len(assistant.ToolCalls)).
		Dur("elapsed", time.Since(started)).
		Msg("agent turn complete")

	return &Exchange{
		User:      userView,
		Assistant: TurnView{Turn: assistant, Instructions: Render(assistant)},
		Result:    result,
	}, nil
}

func (s *Session) setBusy(v bool) {
	s.mu.Lock()
	s.busy = v
	s.mu.Unlock()
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turns.Turns()
}

// Render returns every turn with its display instructions.
func (s *Session) Render() []TurnView {
	turns := s.Turns()
	views := make([]TurnView, len(turns))
	for i, t := range turns {
		views[i] = TurnView{Turn: t, Instructions: Render(t)}
	}
	return views
}

// Clear empties the transcript and, when the client supports it, the
// agent's own conversation memory.
func (s *Session) Clear() error {
	if !s.submitMu.TryLock() {
		return fmt.Errorf("conversation.Session.Clear: %w: %w", domain.ErrConflict, ErrSessionBusy)
	}
	defer s.submitMu.Unlock()

	s.mu.Lock()
	s.turns.Clear()
	s.mu.Unlock()

	s.collector.Reset()
	if r, ok := s.client.(agent.Resetter); ok {
		r.Reset()
	}

	log.Info().Str("session_id", s.id.String()).Msg("transcript cleared")
	return nil
}

func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turns.Stats()
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:        s.id,
		Backend:   s.backend,
		CreatedAt: s.createdAt,
		Busy:      s.busy,
		Stats:     s.turns.Stats(),
	}
}
