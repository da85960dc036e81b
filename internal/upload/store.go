// Package upload persists user-uploaded files under a single directory.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/domain"
)

// DefaultDir is the directory uploads are stored in when none is configured.
const DefaultDir = "uploads"

const tempPrefix = ".upload-"

// Sentinel errors.
var (
	ErrInvalidName = errors.New("upload: invalid file name")  //nolint:gochecknoglobals // sentinel error
	ErrTooLarge    = errors.New("upload: file exceeds limit") //nolint:gochecknoglobals // sentinel error
)

// Store keeps uploaded files flat under dir. Files outlive chat sessions and
// are shared by all of them.
type Store struct {
	dir      string
	maxBytes int64
	mu       sync.Mutex
}

// NewStore returns a store rooted at dir. maxBytes <= 0 disables the size cap.
func NewStore(dir string, maxBytes int64) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: filepath.Clean(dir), maxBytes: maxBytes}
}

// Dir returns the directory as shown to the agent.
func (s *Store) Dir() string { return filepath.ToSlash(s.dir) }

// Save writes r to <dir>/<base(name)> and returns that relative path.
// An existing file of the same name is replaced.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	base, err := cleanName(name)
	if err != nil {
		return "", fmt.Errorf("upload.Store.Save: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("upload.Store.Save: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("upload.Store.Save: create: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("upload.Store.Save: write %s: %w", base, err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return "", fmt.Errorf("upload.Store.Save: %s: %w: %w (%d bytes)", base, domain.ErrInvalidInput, ErrTooLarge, s.maxBytes)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, base)); err != nil {
		return "", fmt.Errorf("upload.Store.Save: rename: %w", err)
	}

	p := path.Join(s.Dir(), base)
	log.Info().Str("path", p).Int64("size", n).Msg("upload saved")

	return p, nil
}

// List returns the stored files sorted by name. A missing directory yields
// an empty list.
func (s *Store) List() ([]domain.UploadedFile, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.UploadedFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("upload.Store.List: %w", err)
	}

	files := make([]domain.UploadedFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, domain.UploadedFile{
			Name:    e.Name(),
			Path:    path.Join(s.Dir(), e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return files, nil
}

// Resolve maps a bare file name or a "<dir>/<name>" path to the file's
// location on disk. Anything that would escape the store is rejected.
func (s *Store) Resolve(p string) (string, error) {
	name := filepath.ToSlash(strings.TrimSpace(p))
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, s.Dir()+"/")

	if strings.Contains(name, "/") {
		return "", fmt.Errorf("upload.Store.Resolve(%q): %w: %w", p, domain.ErrInvalidInput, ErrInvalidName)
	}
	base, err := cleanName(name)
	if err != nil {
		return "", fmt.Errorf("upload.Store.Resolve(%q): %w", p, err)
	}

	full := filepath.Join(s.dir, base)
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("upload.Store.Resolve(%q): %w", p, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("upload.Store.Resolve(%q): %w", p, err)
	}

	return full, nil
}

// Open opens a stored file by name or relative path.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	full, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full) //nolint:gosec // path validated by Resolve
	if err != nil {
		return nil, fmt.Errorf("upload.Store.Open: %w", err)
	}
	return f, nil
}

// Remove deletes one stored file, addressed like Resolve.
func (s *Store) Remove(p string) error {
	full, err := s.Resolve(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("upload.Store.Remove(%q): %w", p, err)
	}
	return nil
}

// Clear removes the upload directory and everything in it.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("upload.Store.Clear: %w", err)
	}
	log.Info().Str("dir", s.Dir()).Msg("uploads cleared")
	return nil
}

func cleanName(name string) (string, error) {
	base := filepath.Base(filepath.Clean(filepath.FromSlash(strings.TrimSpace(name))))
	switch {
	case base == "", base == ".", base == "..", base == string(filepath.Separator):
		return "", fmt.Errorf("%w: %w: %q", domain.ErrInvalidInput, ErrInvalidName, name)
	case strings.HasPrefix(base, tempPrefix):
		return "", fmt.Errorf("%w: %w: %q", domain.ErrInvalidInput, ErrInvalidName, name)
	}
	return base, nil
}
