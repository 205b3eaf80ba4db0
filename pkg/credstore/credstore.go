// Package credstore persists the session credentials (bearer token and
// user snapshot) on disk. It is the durable half of the session store:
// every session mutation writes through here synchronously.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hiddensweep/hiddensweep/pkg/models"
)

const (
	tokenFile = "token.json"
	userFile  = "user.json"
)

// Store reads and writes credential files under a single directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

type tokenPayload struct {
	Token string `json:"token"`
}

// DefaultDir returns the default state directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "hiddensweep"), nil
}

// New creates a store rooted at dir, creating it if needed.
// An empty dir selects the platform default.
func New(dir string) (*Store, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the credential files.
func (s *Store) Dir() string {
	return s.dir
}

// SaveToken persists the bearer token.
func (s *Store) SaveToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(tokenFile, tokenPayload{Token: token})
}

// LoadToken returns the stored token, or "" when none is saved.
func (s *Store) LoadToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p tokenPayload
	if err := s.readJSON(tokenFile, &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return p.Token, nil
}

// SaveUser persists the user snapshot.
func (s *Store) SaveUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(userFile, u)
}

// LoadUser returns the stored user snapshot, or nil when none is saved.
func (s *Store) LoadUser() (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u models.User
	if err := s.readJSON(userFile, &u); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Save persists token and user together.
func (s *Store) Save(token string, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeJSON(tokenFile, tokenPayload{Token: token}); err != nil {
		return err
	}
	return s.writeJSON(userFile, u)
}

// Clear removes both credential files. Missing files are not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, name := range []string{tokenFile, userFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// writeJSON writes atomically (temp file then rename) with 0600 perms.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
