package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/chatflow/internal/agent"
	"github.com/gosuda/chatflow/internal/conversation"
	"github.com/gosuda/chatflow/internal/domain"
)

// SessionService abstracts chat session management for handler testing.
// *conversation.Manager satisfies this interface.
type SessionService interface {
	Create(ctx context.Context) (*conversation.Session, error)
	Get(id uuid.UUID) (*conversation.Session, error)
	Delete(id uuid.UUID) error
	List() []*conversation.Session
}

// UploadStore abstracts the upload directory for handler testing.
// *upload.Store satisfies this interface.
type UploadStore interface {
	Dir() string
	List() ([]domain.UploadedFile, error)
	Resolve(path string) (string, error)
	Clear() error
}

// Formatter adds rendered HTML to instructions. *view.Markdown satisfies
// this interface.
type Formatter interface {
	FormatAll(ins []conversation.Instruction) []conversation.Instruction
	FormatViews(views []conversation.TurnView) []conversation.TurnView
}

// BackendCatalog lists the registered agent backends. *agent.Registry
// satisfies this interface.
type BackendCatalog interface {
	Available() []string
}

// ToolCatalog lists the tools offered to the agent. *tools.Registry
// satisfies this interface.
type ToolCatalog interface {
	Specs() []agent.ToolSpec
}

type nopFormatter struct{}

func (nopFormatter) FormatAll(ins []conversation.Instruction) []conversation.Instruction { return ins }

func (nopFormatter) FormatViews(views []conversation.TurnView) []conversation.TurnView {
	return views
}
