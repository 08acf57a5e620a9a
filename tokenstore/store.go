// Package tokenstore persists the bearer token pair across client restarts.
package tokenstore

import "errors"

// ErrNoTokens is returned by Load when nothing has been saved yet or the
// store has been cleared.
var ErrNoTokens = errors.New("no stored tokens")

// Tokens is the persisted credential pair. The access token is short-lived
// and carries an expiry claim; the refresh token is longer-lived and opaque.
type Tokens struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken"`
}

// Store is durable key-value persistence for the token pair. No validation of
// token shape is performed; any string is accepted. Writes must be visible to
// subsequent Loads immediately.
type Store interface {
	Save(access, refresh string) error
	Load() (Tokens, error)
	Clear() error
}
