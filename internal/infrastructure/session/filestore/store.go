package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

const (
	fileName   = "session.json"
	sessionKey = "google_access_token"
)

// Store keeps the credential for the current login session. It writes under
// XDG_RUNTIME_DIR, which the OS clears on logout; without a runtime dir the
// credential lives in memory only.
type Store struct {
	path string

	mu  sync.Mutex
	mem *domain.Credential
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return &Store{}, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, fileName)}, nil
}

type sessionFile struct {
	Tokens map[string]domain.Credential `json:"tokens"`
}

func (s *Store) Save(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		c := cred
		s.mem = &c
		return nil
	}
	raw, err := json.Marshal(sessionFile{Tokens: map[string]domain.Credential{sessionKey: cred}})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (s *Store) Load(_ context.Context) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		if s.mem == nil {
			return domain.Credential{}, domain.ErrNoSession
		}
		return *s.mem, nil
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Credential{}, domain.ErrNoSession
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("read session: %w", err)
	}

	var file sessionFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return domain.Credential{}, domain.WrapError(domain.ErrNoSession, "load session", domain.WrapError(domain.ErrMalformedState, "decode session", err))
	}
	cred, ok := file.Tokens[sessionKey]
	if !ok || cred.Empty() {
		return domain.Credential{}, domain.ErrNoSession
	}
	return cred, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
