package v1

import (
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/conversation"
	"github.com/gosuda/chatflow/internal/domain"
)

type CreateSessionOutput struct {
	Body conversation.Info
}

type ListSessionsOutput struct {
	Body []conversation.Info
}

type SessionPathInput struct {
	ID uuid.UUID `path:"id" doc:"Chat session ID"`
}

type GetSessionOutput struct {
	Body conversation.Info
}

type SubmitMessageInput struct {
	ID   uuid.UUID `path:"id" doc:"Chat session ID"`
	Body struct {
		Text  string   `json:"text" maxLength:"100000" doc:"Prompt text"`
		Files []string `json:"files,omitempty" maxItems:"50" doc:"Paths of previously uploaded files to attach"`
	}
}

type SubmitMessageOutput struct {
	Body *conversation.Exchange
}

type TranscriptBody struct {
	SessionID uuid.UUID               `json:"session_id"`
	Turns     []conversation.TurnView `json:"turns"`
	Stats     conversation.Stats      `json:"stats"`
}

type GetTranscriptOutput struct {
	Body TranscriptBody
}

// RegisterSessionRoutes registers the chat session endpoints. uploads
// validates attached file paths; format may be nil.
func RegisterSessionRoutes(api huma.API, sessions SessionService, uploads UploadStore, format Formatter) {
	if format == nil {
		format = nopFormatter{}
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Start a chat session",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*CreateSessionOutput, error) {
		s, err := sessions.Create(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create session", err)
		}
		return &CreateSessionOutput{Body: s.Info()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List chat sessions",
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, _ *struct{}) (*ListSessionsOutput, error) {
		list := sessions.List()
		infos := make([]conversation.Info, 0, len(list))
		for _, s := range list {
			infos = append(infos, s.Info())
		}
		return &ListSessionsOutput{Body: infos}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}",
		Summary:     "Get a chat session with its stats",
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, input *SessionPathInput) (*GetSessionOutput, error) {
		s, err := sessions.Get(input.ID)
		if err != nil {
			return nil, sessionError(err)
		}
		return &GetSessionOutput{Body: s.Info()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-session",
		Method:      http.MethodDelete,
		Path:        "/sessions/{id}",
		Summary:     "End a chat session",
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, input *SessionPathInput) (*struct{}, error) {
		if err := sessions.Delete(input.ID); err != nil {
			return nil, sessionError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-message",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/messages",
		Summary:     "Send a prompt to the agent",
		Description: "Blocks until the agent has answered. Intermediate tool calls and results are streamed on the session websocket while the request is in flight.",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SubmitMessageInput) (*SubmitMessageOutput, error) {
		s, err := sessions.Get(input.ID)
		if err != nil {
			return nil, sessionError(err)
		}

		files, err := attachmentPaths(uploads, input.Body.Files)
		if err != nil {
			return nil, err
		}

		ex, err := s.Submit(ctx, input.Body.Text, files)
		if err != nil {
			return nil, sessionError(err)
		}

		ex.User.Instructions = format.FormatAll(ex.User.Instructions)
		ex.Assistant.Instructions = format.FormatAll(ex.Assistant.Instructions)

		return &SubmitMessageOutput{Body: ex}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transcript",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/transcript",
		Summary:     "Get the rendered chat history",
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, input *SessionPathInput) (*GetTranscriptOutput, error) {
		s, err := sessions.Get(input.ID)
		if err != nil {
			return nil, sessionError(err)
		}
		return &GetTranscriptOutput{Body: TranscriptBody{
			SessionID: s.ID(),
			Turns:     format.FormatViews(s.Render()),
			Stats:     s.Stats(),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-transcript",
		Method:      http.MethodDelete,
		Path:        "/sessions/{id}/transcript",
		Summary:     "Clear the chat history",
		Tags:        []string{"Sessions"},
	}, func(_ context.Context, input *SessionPathInput) (*struct{}, error) {
		s, err := sessions.Get(input.ID)
		if err != nil {
			return nil, sessionError(err)
		}
		if err := s.Clear(); err != nil {
			return nil, sessionError(err)
		}
		return nil, nil
	})
}

// attachmentPaths checks every attached path against the upload store and
// returns them in the "<dir>/<name>" form shown to the agent.
func attachmentPaths(uploads UploadStore, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		full, err := uploads.Resolve(f)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error400BadRequest("unknown upload: " + f)
			}
			if errors.Is(err, domain.ErrInvalidInput) {
				return nil, huma.Error400BadRequest("invalid upload path: " + f)
			}
			return nil, huma.Error500InternalServerError("failed to resolve upload", err)
		}
		out = append(out, path.Join(uploads.Dir(), path.Base(full)))
	}
	return out, nil
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, conversation.ErrEmptyPrompt):
		return huma.Error400BadRequest("prompt must not be empty")
	case errors.Is(err, conversation.ErrSessionBusy):
		return huma.Error409Conflict("session is busy with another message")
	case errors.Is(err, conversation.ErrAgentFailed):
		return huma.Error502BadGateway("agent invocation failed", err)
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("session not found")
	default:
		log.Error().Err(err).Msg("session request failed")
		return huma.Error500InternalServerError("session request failed", err)
	}
}
