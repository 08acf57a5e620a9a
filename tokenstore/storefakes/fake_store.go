package storefakes

import (
	"sync"

	"github.com/tasknest/go-tasknest-client/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory tokenstore.Store for tests, with optional failure
// injection.
type FakeStore struct {
	tokens tokenstore.Tokens
	saved  bool
	lock   sync.RWMutex

	SaveErr  error // returned by Save when set
	LoadErr  error // returned by Load when set
	ClearErr error // returned by Clear when set
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Save(access, refresh string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	fs.tokens = tokenstore.Tokens{Access: access, Refresh: refresh}
	fs.saved = true
	return nil
}

func (fs *FakeStore) Load() (tokenstore.Tokens, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.LoadErr != nil {
		return tokenstore.Tokens{}, fs.LoadErr
	}
	if !fs.saved {
		return tokenstore.Tokens{}, tokenstore.ErrNoTokens
	}
	return fs.tokens, nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.tokens = tokenstore.Tokens{}
	fs.saved = false
	return nil
}
