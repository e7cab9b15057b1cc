// Package files stores uploaded receipt images in a directory on local
// disk, keyed by a generated filename.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Store struct {
	dir string
	// now is swappable in tests so generated names are deterministic.
	now func() time.Time
}

// NewStore creates the upload directory if absent and returns a store
// rooted at it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	return &Store{dir: abs, now: time.Now}, nil
}

// Dir returns the absolute upload directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the uploaded content under a generated name: the original
// filename sanitized and prefixed with a nanosecond timestamp. The prefix
// keeps concurrent uploads of the same filename from colliding; the
// resolution makes a collision unlikely, not impossible.
func (s *Store) Save(originalName string, content io.Reader) (string, error) {
	name := strconv.FormatInt(s.now().UnixNano(), 10) + "_" + SanitizeFilename(originalName)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return name, nil
}

// Resolve maps a stored filename to its absolute path, rejecting any name
// that escapes the upload directory.
func (s *Store) Resolve(name string) (string, error) {
	path := filepath.Join(s.dir, filepath.Clean("/"+name))
	if !strings.HasPrefix(path, s.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("filename %q escapes upload directory", name)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat upload file: %w", err)
	}
	return path, nil
}

// SanitizeFilename strips directory components and collapses anything
// outside [A-Za-z0-9._-] to underscores.
func SanitizeFilename(name string) string {
	// Drop any client-supplied directory part, for both separators.
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "upload"
	}
	return name
}
