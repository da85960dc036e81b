package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/gosuda/chatflow/internal/agent"
	"github.com/gosuda/chatflow/internal/domain"
)

// DefaultReadLimit caps how much of an uploaded file read_upload returns.
const DefaultReadLimit = 64 * 1024

// UploadSource is the read side of the upload store.
type UploadSource interface {
	List() ([]domain.UploadedFile, error)
	Open(name string) (io.ReadCloser, error)
}

// ListUploads lists the files the user has uploaded.
type ListUploads struct {
	src UploadSource
}

func NewListUploads(src UploadSource) *ListUploads { return &ListUploads{src: src} }

func (t *ListUploads) Name() string { return "list_uploads" }

func (t *ListUploads) Description() string {
	return "List files the user has uploaded, with their paths and sizes in bytes."
}

func (t *ListUploads) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *ListUploads) Call(_ context.Context, _ json.RawMessage) ([]agent.ToolResultContent, error) {
	files, err := t.src.List()
	if err != nil {
		return nil, fmt.Errorf("tools.ListUploads.Call: %w", err)
	}
	if files == nil {
		files = []domain.UploadedFile{}
	}

	raw, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("tools.ListUploads.Call: marshal: %w", err)
	}

	return []agent.ToolResultContent{agent.JSONContent(raw)}, nil
}

// ReadUpload returns the text content of an uploaded file.
type ReadUpload struct {
	src   UploadSource
	limit int64
}

func NewReadUpload(src UploadSource, limit int64) *ReadUpload {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	return &ReadUpload{src: src, limit: limit}
}

func (t *ReadUpload) Name() string { return "read_upload" }

func (t *ReadUpload) Description() string {
	return "Read the text content of an uploaded file. Pass the file name or the path shown in the prompt."
}

func (t *ReadUpload) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File name or uploads/<name> path.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadUpload) Call(_ context.Context, input json.RawMessage) ([]agent.ToolResultContent, error) {
	var args struct {
		Path string `json:"path"`
		Name string `json:"name"`
	}
	if err := agent.DecodeInput(input, &args); err != nil {
		return nil, fmt.Errorf("tools.ReadUpload.Call: decode input: %w", err)
	}

	name := args.Path
	if name == "" {
		name = args.Name
	}
	if name == "" {
		return nil, errors.New("tools.ReadUpload.Call: path is required")
	}

	rc, err := t.src.Open(name)
	if err != nil {
		return nil, fmt.Errorf("tools.ReadUpload.Call: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, t.limit+1))
	if err != nil {
		return nil, fmt.Errorf("tools.ReadUpload.Call: read: %w", err)
	}

	truncated := int64(len(data)) > t.limit
	if truncated {
		data = data[:t.limit]
		// Drop a rune split by the cut.
		for i := 0; i < utf8.UTFMax && len(data) > 0 && !utf8.Valid(data); i++ {
			data = data[:len(data)-1]
		}
	}
	if !utf8.Valid(data) {
		return nil, errors.New("tools.ReadUpload.Call: file is not UTF-8 text")
	}

	out := []agent.ToolResultContent{agent.TextContent(string(data))}
	if truncated {
		out = append(out, agent.TextContent(fmt.Sprintf("[truncated after %d bytes]", t.limit)))
	}
	return out, nil
}
