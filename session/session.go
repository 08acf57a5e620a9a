// Package session owns the client's authentication state. Exactly one
// Session exists per running client; it is created by the caller and injected
// into every consumer - there is no package-level state. All mutation goes
// through its methods, and subscribers are notified after each transition so
// dependent views can re-render.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tasknest/go-tasknest-client/gateway"
	"github.com/tasknest/go-tasknest-client/token"
	"github.com/tasknest/go-tasknest-client/tokenstore"
	"github.com/tasknest/go-tasknest-client/users"
)

// ErrNotAuthenticated is returned by Do before any network activity when the
// session has no authenticated user.
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthGateway is the slice of the gateway the session drives.
type AuthGateway interface {
	Login(ctx context.Context, username, password string) (*gateway.LoginResult, error)
	Register(ctx context.Context, username, email, password string) (*gateway.LoginResult, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (string, error)
	FetchProfile(ctx context.Context) (*users.User, error)
	UpdateProfile(ctx context.Context, update gateway.ProfileUpdate) (*users.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// Verifier performs the local token expiry check.
type Verifier interface {
	IsValid(rawToken string) bool
}

// Snapshot is an immutable view of the session state, delivered to
// subscribers and returned by State.
type Snapshot struct {
	User            *users.User
	AccessToken     string
	RefreshToken    string
	IsLoading       bool
	IsAuthenticated bool
}

// Deps holds all dependencies for the Session.
type Deps struct {
	Gateway  AuthGateway
	Store    tokenstore.Store
	Verifier Verifier
}

// Session is the process-wide authentication context.
//
// Invariant: IsAuthenticated implies a non-nil user and both tokens present
// in the store and mirrored here; whenever either token is cleared the user
// is nil and IsAuthenticated is false.
type Session struct {
	deps       Deps
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	lock          sync.RWMutex
	user          *users.User
	access        string
	refresh       string
	loading       bool
	authenticated bool

	subLock     sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int

	refreshLock     sync.Mutex
	inflightRefresh *refreshCall
}

// Option defines a function type to modify the Session instance.
type Option func(*Session)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client used by the authenticated request
// wrapper.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.httpClient = client
	}
}

// New initializes a Session with required dependencies. The session starts
// anonymous; call Initialize to resolve any persisted tokens.
func New(baseURL string, deps Deps, options ...Option) (*Session, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("[session.New] baseURL is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("[session.New] gateway is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("[session.New] token store is required")
	}
	if deps.Verifier == nil {
		deps.Verifier = token.NewVerifier()
	}

	s := &Session{
		deps:        deps,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      zerolog.Nop(),
		subscribers: make(map[int]func(Snapshot)),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// State returns the current snapshot.
func (s *Session) State() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether a user is currently logged in.
func (s *Session) IsAuthenticated() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.authenticated
}

// User returns the current user snapshot, nil when anonymous.
func (s *Session) User() *users.User {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user
}

// Subscribe registers a callback invoked with a snapshot after every state
// transition. The returned function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subLock.Lock()
	defer s.subLock.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subLock.Lock()
		defer s.subLock.Unlock()
		delete(s.subscribers, id)
	}
}

// Initialize resolves persisted tokens into a stable state: authenticated
// when the stored access token still works (directly or after one refresh),
// anonymous otherwise. Safe to call on every startup.
func (s *Session) Initialize(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	tokens, err := s.deps.Store.Load()
	if err != nil || (tokens.Access == "" && tokens.Refresh == "") {
		s.becomeAnonymous(false)
		return nil
	}

	s.lock.Lock()
	s.access = tokens.Access
	s.refresh = tokens.Refresh
	s.lock.Unlock()

	if s.deps.Verifier.IsValid(tokens.Access) {
		err := s.adoptProfile(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gateway.ErrUnauthorized) {
			// A transport fault or server error says nothing about the
			// tokens; keep them stored and start anonymous.
			s.logger.Debug().Err(err).Msg("startup profile fetch failed, starting anonymous")
			s.becomeAnonymous(false)
			return nil
		}
		// The local check passed but the server rejected the token; fall
		// through to the refresh path before giving up.
	}

	if _, err := s.sharedRefresh(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("startup refresh failed, starting anonymous")
		s.becomeAnonymous(true)
		return nil
	}
	if err := s.adoptProfile(ctx); err != nil {
		s.becomeAnonymous(true)
		return nil
	}
	return nil
}

// adoptProfile fetches the profile over the stored access token and, on
// success, promotes the session to authenticated.
func (s *Session) adoptProfile(ctx context.Context) error {
	user, err := s.deps.Gateway.FetchProfile(ctx)
	if err != nil {
		return err
	}

	tokens, err := s.deps.Store.Load()
	if err != nil {
		return err
	}

	s.lock.Lock()
	s.user = user
	s.access = tokens.Access
	s.refresh = tokens.Refresh
	s.authenticated = true
	s.lock.Unlock()
	s.notify()
	return nil
}

// Login authenticates and promotes the session on success. On failure the
// server's message is returned and the session stays anonymous.
func (s *Session) Login(ctx context.Context, username, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	result, err := s.deps.Gateway.Login(ctx, username, password)
	if err != nil {
		return err
	}
	s.adoptLogin(result)
	return nil
}

// Register creates an account and logs in with the same credentials in one
// step.
func (s *Session) Register(ctx context.Context, username, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	result, err := s.deps.Gateway.Register(ctx, username, email, password)
	if err != nil {
		return err
	}
	s.adoptLogin(result)
	return nil
}

func (s *Session) adoptLogin(result *gateway.LoginResult) {
	s.lock.Lock()
	s.user = result.User
	s.access = result.AccessToken
	s.refresh = result.RefreshToken
	s.authenticated = true
	s.lock.Unlock()
	s.notify()
}

// Logout resets the session to anonymous. The server call inside the gateway
// is best-effort; locally this always ends anonymous.
func (s *Session) Logout(ctx context.Context) error {
	err := s.deps.Gateway.Logout(ctx)
	s.becomeAnonymous(false)
	return err
}

// UpdateProfile replaces the in-memory user with the server's returned
// representation.
func (s *Session) UpdateProfile(ctx context.Context, update gateway.ProfileUpdate) (*users.User, error) {
	user, err := s.deps.Gateway.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	s.user = user
	s.lock.Unlock()
	s.notify()
	return user, nil
}

// ChangePassword changes the account password. Tokens remain valid.
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return s.deps.Gateway.ChangePassword(ctx, oldPassword, newPassword)
}

// becomeAnonymous resets to the guest state. When clearStore is set the
// persisted tokens are removed as well; the gateway has usually done that
// already on the failure paths that lead here.
func (s *Session) becomeAnonymous(clearStore bool) {
	if clearStore {
		if err := s.deps.Store.Clear(); err != nil {
			s.logger.Error().Err(err).Msg("failed clearing token store")
		}
	}

	s.lock.Lock()
	s.user = nil
	s.access = ""
	s.refresh = ""
	s.authenticated = false
	s.lock.Unlock()
	s.notify()
}

func (s *Session) setLoading(loading bool) {
	s.lock.Lock()
	s.loading = loading
	s.lock.Unlock()
	s.notify()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		User:            s.user,
		AccessToken:     s.access,
		RefreshToken:    s.refresh,
		IsLoading:       s.loading,
		IsAuthenticated: s.authenticated,
	}
}

func (s *Session) notify() {
	s.lock.RLock()
	snapshot := s.snapshotLocked()
	s.lock.RUnlock()

	s.subLock.Lock()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subLock.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
