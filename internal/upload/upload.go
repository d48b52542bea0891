package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
}

// Extension returns the lowercased text after the last dot, or "" when the
// name has no dot.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// AllowedFile reports whether filename has one of the supported image
// extensions, ignoring case.
func AllowedFile(filename string) bool {
	return allowedExtensions[Extension(filename)]
}

// Store keeps uploads in Dir just long enough to run them through the model.
// File names are random so concurrent uploads never collide.
type Store struct {
	Dir string
}

// NewStore creates dir if it does not exist yet.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create upload directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save copies r into a new file named <uuid>.<ext> and returns its path.
func (s *Store) Save(r io.Reader, ext string) (string, error) {
	path := filepath.Join(s.Dir, uuid.NewString()+"."+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("could not create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("could not write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("could not write temp file: %w", err)
	}
	return path, nil
}

// Remove deletes a saved upload. Failures are returned for logging only;
// callers are not expected to act on them.
func (s *Store) Remove(path string) error {
	return os.Remove(path)
}
