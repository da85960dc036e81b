package conversation

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/agent"
	"github.com/gosuda/chatflow/internal/domain"
)

// ClientFactory creates the agent client for a new session.
type ClientFactory func(ctx context.Context) (agent.Client, error)

// DisplayFactory returns the display bound to a session.
type DisplayFactory func(sessionID uuid.UUID) Display

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Backend    string
	UploadsDir string
	NewClient  ClientFactory
	NewDisplay DisplayFactory
}

// Manager tracks live sessions by ID.
type Manager struct {
	cfg      ManagerConfig
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.NewDisplay == nil {
		cfg.NewDisplay = func(uuid.UUID) Display { return NopDisplay }
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a session with a fresh agent client.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	client, err := m.cfg.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("conversation.Manager.Create: %w", err)
	}

	id := uuid.New()
	s := NewSession(id, m.cfg.Backend, client, m.cfg.NewDisplay(id), m.cfg.UploadsDir)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Info().Str("session_id", id.String()).Str("backend", m.cfg.Backend).Msg("session created")
	return s, nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("conversation.Manager.Get(%s): %w: %w", id, domain.ErrNotFound, ErrSessionNotFound)
	}
	return s, nil
}

// Delete ends a session. A session in the middle of a submission is
// removed from the index but finishes its current invocation.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("conversation.Manager.Delete(%s): %w: %w", id, domain.ErrNotFound, ErrSessionNotFound)
	}

	log.Info().Str("session_id", id.String()).Msg("session deleted")
	return nil
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return slices.Compare(a.id[:], b.id[:])
	})
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
