package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileStore abstracts durable storage for uploaded statement files
type FileStore interface {
	// Put stores the content under a generated path derived from name and
	// returns the stored path
	Put(name string, r io.Reader) (string, error)
	// Open reads back a previously stored file by its stored path
	Open(path string) (io.ReadCloser, error)
}

// LocalFileStore stores uploaded statements on the local filesystem under a
// base directory
type LocalFileStore struct {
	baseDir string
}

// NewLocalFileStore creates a file store rooted at baseDir, creating the
// directory if needed
func NewLocalFileStore(baseDir string) (*LocalFileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create statement storage directory: %w", err)
	}
	return &LocalFileStore{baseDir: baseDir}, nil
}

// Put stores the content under a unique name and returns the stored path
func (s *LocalFileStore) Put(name string, r io.Reader) (string, error) {
	stored := fmt.Sprintf("%s_%s_%s",
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
		filepath.Base(name))
	path := filepath.Join(s.baseDir, stored)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create stored statement file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write stored statement file: %w", err)
	}

	return path, nil
}

// Open reads back a previously stored file
func (s *LocalFileStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stored statement file: %w", err)
	}
	return f, nil
}
