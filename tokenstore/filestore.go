package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const tokensFile = "tokens.json"

// FileStore persists the token pair as a JSON file in a data directory. The
// file is written with owner-only permissions and replaced atomically so a
// crash mid-write never leaves a torn pair behind.
type FileStore struct {
	path string
	lock sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the data directory if needed and returns a store
// backed by <dir>/tokens.json.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[NewFileStore] create data dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, tokensFile)}, nil
}

func (fs *FileStore) Save(access, refresh string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	data, err := json.Marshal(Tokens{Access: access, Refresh: refresh})
	if err != nil {
		return fmt.Errorf("[FileStore.Save] marshal: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("[FileStore.Save] write: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("[FileStore.Save] rename: %w", err)
	}
	return nil
}

func (fs *FileStore) Load() (Tokens, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return Tokens{}, ErrNoTokens
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("[FileStore.Load] read: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("[FileStore.Load] unmarshal: %w", err)
	}
	if tokens.Access == "" && tokens.Refresh == "" {
		return Tokens{}, ErrNoTokens
	}
	return tokens, nil
}

func (fs *FileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[FileStore.Clear] remove: %w", err)
	}
	return nil
}
