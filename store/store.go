// Package store supplies script lines to the runner, either from the file
// system or from a SQLite database.
package store

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates the requested script doesn't exist. It matches
// fs.ErrNotExist so callers can treat every source alike.
var ErrNotFound = fmt.Errorf("script not found: %w", fs.ErrNotExist)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SplitLines decodes a UTF-8 script body into lines. A leading byte order
// mark is dropped, "\r\n" and "\n" both end a line, and a trailing line
// break does not start an extra empty line.
func SplitLines(data []byte) []string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(data) == 0 {
		return nil
	}
	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// ---------------------------------------------------------------------------
// FileStore
// ---------------------------------------------------------------------------

// FileStore reads scripts from disk. Relative paths resolve against Dir;
// when a path does not exist as given, each of Extensions is tried in
// order.
type FileStore struct {
	Dir        string
	Extensions []string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, extensions ...string) *FileStore {
	return &FileStore{Dir: dir, Extensions: extensions}
}

// Resolve returns the file a script path refers to.
func (s *FileStore) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, path)
	}
	candidates := []string{path}
	for _, ext := range s.Extensions {
		candidates = append(candidates, path+ext)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	// Report the error for the path as given.
	_, err := os.Stat(path)
	if err == nil {
		err = fmt.Errorf("%s is a directory", path)
	}
	return "", err
}

// ReadLines reads every line of the script at path.
func (s *FileStore) ReadLines(path string) ([]string, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, err
	}
	return SplitLines(data), nil
}

// WriteLines stores lines at path, creating parent directories.
func (s *FileStore) WriteLines(path string, lines []string) error {
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(JoinLines(lines)), 0o644)
}
