package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists session state between runs, keyed by platform
// identity and credential reference.
type Store interface {
	Load(platformName, credentialRef string) (*State, error)
	Save(state *State) error
}

// FileStore keeps one JSON state file per (platform, account) under a
// directory, the moral equivalent of a browser storage-state file.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (fs *FileStore) path(platformName, credentialRef string) string {
	return filepath.Join(fs.dir, fmt.Sprintf("session_%s_%s.json", platformName, credentialRef))
}

// Load returns nil (not an error) when no state has been persisted.
func (fs *FileStore) Load(platformName, credentialRef string) (*State, error) {
	data, err := os.ReadFile(fs.path(platformName, credentialRef))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding session state: %w", err)
	}
	return &state, nil
}

func (fs *FileStore) Save(state *State) error {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	// Cookie material grants account access; keep it owner-only.
	return os.WriteFile(fs.path(state.Platform, state.CredentialRef), data, 0o600)
}
