package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Store.Load for an unseen session id.
var ErrNotFound = errors.New("session not found")

// Store is the durable mapping from session id to SessionState. Saves
// rewrite the whole state, so persistence is idempotent by overwrite.
type Store interface {
	Load(sessionID string) (*SessionState, error)
	Save(state *SessionState) error
	Delete(sessionID string) error
}

// FileStore persists one JSON file per session under a base directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates a file-backed session store rooted at basePath.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{basePath: basePath}
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%s.json", sessionID))
}

// Load retrieves a session's state. Returns ErrNotFound when no file
// exists for the id.
func (s *FileStore) Load(sessionID string) (*SessionState, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

// Save persists a session's state to disk.
func (s *FileStore) Save(state *SessionState) error {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.path(state.SessionID), data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Delete removes a session's state. Deleting an unknown id is a no-op.
func (s *FileStore) Delete(sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
