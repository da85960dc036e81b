package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/domain"
	"github.com/gosuda/chatflow/internal/upload"
)

const (
	uploadField    = "files"
	maxUploadFiles = 16
)

// UploadResult is the body returned by POST /api/v1/uploads.
type UploadResult struct {
	Dir   string   `json:"dir"`
	Count int      `json:"count"`
	Paths []string `json:"paths"`
}

// maxUploadRequest bounds a whole multipart request.
func maxUploadRequest(perFile int64) int64 {
	return perFile*maxUploadFiles + 1<<20
}

// uploadHandler stores every part of the "files" form field and returns the
// stored paths in upload order. A request that fails part way removes the
// files it already wrote.
func uploadHandler(store *upload.Store, maxRequest int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequest)

		mr, err := r.MultipartReader()
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "expected a multipart/form-data body")
			return
		}

		paths := make([]string, 0, 1)
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				discardUploads(store, paths)
				writeUploadError(w, err)
				return
			}

			if part.FormName() != uploadField || part.FileName() == "" {
				_ = part.Close()
				continue
			}
			if len(paths) == maxUploadFiles {
				_ = part.Close()
				discardUploads(store, paths)
				writeProblem(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per request", maxUploadFiles))
				return
			}

			p, err := store.Save(part.FileName(), part)
			_ = part.Close()
			if err != nil {
				discardUploads(store, paths)
				writeUploadError(w, err)
				return
			}
			paths = append(paths, p)
		}

		if len(paths) == 0 {
			writeProblem(w, http.StatusBadRequest, fmt.Sprintf("no files in form field %q", uploadField))
			return
		}

		log.Info().Int("count", len(paths)).Str("dir", store.Dir()).Msg("files uploaded")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(UploadResult{Dir: store.Dir(), Count: len(paths), Paths: paths})
	}
}

func discardUploads(store *upload.Store, paths []string) {
	for _, p := range paths {
		if err := store.Remove(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("discard partial upload")
		}
	}
}

func writeUploadError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		writeProblem(w, http.StatusRequestEntityTooLarge, "upload request too large")
	case errors.Is(err, upload.ErrTooLarge):
		writeProblem(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("upload failed")
		writeProblem(w, http.StatusInternalServerError, "failed to store upload")
	}
}

// writeProblem writes the same problem-details shape huma uses.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
