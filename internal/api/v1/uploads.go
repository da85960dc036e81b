package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/chatflow/internal/domain"
)

type UploadListBody struct {
	Dir   string                `json:"dir" doc:"Directory uploads are stored in"`
	Count int                   `json:"count"`
	Files []domain.UploadedFile `json:"files"`
}

type ListUploadsOutput struct {
	Body UploadListBody
}

// RegisterUploadRoutes registers the upload listing and clearing endpoints.
// File bodies are received by the multipart handler in internal/server.
func RegisterUploadRoutes(api huma.API, uploads UploadStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-uploads",
		Method:      http.MethodGet,
		Path:        "/uploads",
		Summary:     "List uploaded files",
		Tags:        []string{"Uploads"},
	}, func(_ context.Context, _ *struct{}) (*ListUploadsOutput, error) {
		files, err := uploads.List()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list uploads", err)
		}
		return &ListUploadsOutput{Body: UploadListBody{
			Dir:   uploads.Dir(),
			Count: len(files),
			Files: files,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-uploads",
		Method:      http.MethodDelete,
		Path:        "/uploads",
		Summary:     "Delete every uploaded file",
		Tags:        []string{"Uploads"},
	}, func(_ context.Context, _ *struct{}) (*struct{}, error) {
		if err := uploads.Clear(); err != nil {
			return nil, huma.Error500InternalServerError("failed to clear uploads", err)
		}
		return nil, nil
	})
}
