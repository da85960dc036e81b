package domain

import "time"

// UploadedFile describes a file persisted by the upload store.
type UploadedFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
