package blobfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps uploaded files on disk for the lifetime of the process. Upload
// metadata outlives it; the bytes do not.
type Storage struct {
	basePath string
	owned    bool
}

// New uses basePath when given, otherwise a fresh temp dir that Close removes.
func New(basePath string) (*Storage, error) {
	if basePath == "" {
		dir, err := os.MkdirTemp("", "migration-hub-uploads-")
		if err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
		return &Storage{basePath: dir, owned: true}, nil
	}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Dir() string {
	return s.basePath
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, data)
	if err != nil {
		return n, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) Close() error {
	if !s.owned {
		return nil
	}
	return os.RemoveAll(s.basePath)
}

func (s *Storage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.basePath, key), nil
}
