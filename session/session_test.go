package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasknest/go-tasknest-client/gateway"
	"github.com/tasknest/go-tasknest-client/session"
	"github.com/tasknest/go-tasknest-client/session/sessionfakes"
	"github.com/tasknest/go-tasknest-client/tokenstore/storefakes"
	"github.com/tasknest/go-tasknest-client/users"
)

const (
	testBaseURL    = "http://api.test.invalid"
	testAccessTok  = "access-token-1"
	testRefreshTok = "refresh-token-1"
	testNewAccess  = "access-token-2"
)

// staticVerifier answers every IsValid call with a fixed verdict.
type staticVerifier bool

func (v staticVerifier) IsValid(string) bool { return bool(v) }

type testFixture struct {
	gw      *sessionfakes.FakeGateway
	store   *storefakes.FakeStore
	session *session.Session
}

func setupTestFixture(t *testing.T, tokenValid bool) *testFixture {
	t.Helper()

	f := &testFixture{
		gw:    sessionfakes.NewFakeGateway(),
		store: storefakes.NewFakeStore(),
	}

	s, err := session.New(testBaseURL, session.Deps{
		Gateway:  f.gw,
		Store:    f.store,
		Verifier: staticVerifier(tokenValid),
	})
	require.NoError(t, err)
	f.session = s

	return f
}

func testUser() *users.User {
	return &users.User{ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true}
}

func loginOK(f *testFixture) {
	f.gw.LoginFn = func(ctx context.Context, username, password string) (*gateway.LoginResult, error) {
		_ = f.store.Save(testAccessTok, testRefreshTok)
		return &gateway.LoginResult{User: testUser(), AccessToken: testAccessTok, RefreshToken: testRefreshTok}, nil
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	store := storefakes.NewFakeStore()
	gw := sessionfakes.NewFakeGateway()

	_, err := session.New("", session.Deps{Gateway: gw, Store: store})
	require.Error(t, err)

	_, err = session.New(testBaseURL, session.Deps{Store: store})
	require.Error(t, err)

	_, err = session.New(testBaseURL, session.Deps{Gateway: gw})
	require.Error(t, err)
}

func TestInitializeWithoutStoredTokens(t *testing.T) {
	f := setupTestFixture(t, true)

	require.NoError(t, f.session.Initialize(context.Background()))

	state := f.session.State()
	require.False(t, state.IsAuthenticated)
	require.False(t, state.IsLoading)
	require.Nil(t, state.User)
	require.Zero(t, f.gw.ProfileFetches())
}

func TestInitializeWithValidToken(t *testing.T) {
	f := setupTestFixture(t, true)
	require.NoError(t, f.store.Save(testAccessTok, testRefreshTok))
	f.gw.FetchProfileFn = func(ctx context.Context) (*users.User, error) {
		return testUser(), nil
	}

	require.NoError(t, f.session.Initialize(context.Background()))

	state := f.session.State()
	require.True(t, state.IsAuthenticated)
	require.Equal(t, "alice", state.User.Username)
	require.Equal(t, testAccessTok, state.AccessToken)
	require.Equal(t, testRefreshTok, state.RefreshToken)
	require.Zero(t, f.gw.RefreshCalls(), "a valid token needs no refresh")
}

func TestInitializeWithExpiredTokenRefreshes(t *testing.T) {
	f := setupTestFixture(t, false)
	require.NoError(t, f.store.Save(testAccessTok, testRefreshTok))
	f.gw.RefreshFn = func(ctx context.Context) (string, error) {
		_ = f.store.Save(testNewAccess, testRefreshTok)
		return testNewAccess, nil
	}
	f.gw.FetchProfileFn = func(ctx context.Context) (*users.User, error) {
		return testUser(), nil
	}

	require.NoError(t, f.session.Initialize(context.Background()))

	state := f.session.State()
	require.True(t, state.IsAuthenticated)
	require.Equal(t, testNewAccess, state.AccessToken)
	require.Equal(t, 1, f.gw.RefreshCalls())
}

func TestInitializeRefreshFailureEndsAnonymous(t *testing.T) {
	f := setupTestFixture(t, false)
	require.NoError(t, f.store.Save(testAccessTok, testRefreshTok))
	f.gw.RefreshFn = func(ctx context.Context) (string, error) {
		_ = f.store.Clear()
		return "", gateway.ErrReauthenticationRequired
	}

	require.NoError(t, f.session.Initialize(context.Background()))

	state := f.session.State()
	require.False(t, state.IsAuthenticated)
	require.Nil(t, state.User)
	require.Empty(t, state.AccessToken)

	_, err := f.store.Load()
	require.Error(t, err, "store ends cleared")
}

func TestInitializeUnauthorizedProfileFetchFallsBackToRefresh(t *testing.T) {
	f := setupTestFixture(t, true)
	require.NoError(t, f.store.Save(testAccessTok, testRefreshTok))
	f.gw.FetchProfileFn = func(ctx context.Context) (*users.User, error) {
		return nil, &gateway.APIError{StatusCode: 401, Message: "token invalid"}
	}
	f.gw.RefreshFn = func(ctx context.Context) (string, error) {
		_ = f.store.Clear()
		return "", gateway.ErrReauthenticationRequired
	}

	require.NoError(t, f.session.Initialize(context.Background()))
	require.False(t, f.session.IsAuthenticated())
	require.Equal(t, 1, f.gw.RefreshCalls(), "server rejection of a locally-valid token triggers the refresh path")
}

func TestInitializeTransientProfileFetchFailureEndsAnonymous(t *testing.T) {
	f := setupTestFixture(t, true)
	require.NoError(t, f.store.Save(testAccessTok, testRefreshTok))
	f.gw.FetchProfileFn = func(ctx context.Context) (*users.User, error) {
		return nil, errors.New("connection refused")
	}

	require.NoError(t, f.session.Initialize(context.Background()))

	state := f.session.State()
	require.False(t, state.IsAuthenticated)
	require.Nil(t, state.User)
	require.Zero(t, f.gw.RefreshCalls(), "a transport fault must not burn the refresh token")

	tokens, err := f.store.Load()
	require.NoError(t, err, "tokens survive for the next startup")
	require.Equal(t, testAccessTok, tokens.Access)
}

func TestInitializeServerErrorProfileFetchEndsAnonymous(t *testing.T) {
	f := setupTestFixture(t, true)
	require.NoError(t, f.store.Save(testAccessTok, testRefreshTok))
	f.gw.FetchProfileFn = func(ctx context.Context) (*users.User, error) {
		return nil, &gateway.APIError{StatusCode: 500, Message: "internal error"}
	}

	require.NoError(t, f.session.Initialize(context.Background()))
	require.False(t, f.session.IsAuthenticated())
	require.Zero(t, f.gw.RefreshCalls())
}

func TestLoginSuccess(t *testing.T) {
	f := setupTestFixture(t, true)
	loginOK(f)

	require.NoError(t, f.session.Login(context.Background(), "alice", "pw"))

	state := f.session.State()
	require.True(t, state.IsAuthenticated)
	require.NotNil(t, state.User)
	require.False(t, state.IsLoading)

	tokens, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, testAccessTok, tokens.Access)
	require.Equal(t, testRefreshTok, tokens.Refresh)
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	f := setupTestFixture(t, true)
	f.gw.LoginFn = func(ctx context.Context, username, password string) (*gateway.LoginResult, error) {
		return nil, &gateway.APIError{StatusCode: 401, Message: "bad credentials"}
	}

	err := f.session.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)

	var apiErr *gateway.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "bad credentials", apiErr.Message)

	state := f.session.State()
	require.False(t, state.IsAuthenticated)
	require.False(t, state.IsLoading)
	require.Nil(t, state.User)
}

func TestRegisterEndsAuthenticated(t *testing.T) {
	f := setupTestFixture(t, true)
	f.gw.RegisterFn = func(ctx context.Context, username, email, password string) (*gateway.LoginResult, error) {
		_ = f.store.Save(testAccessTok, testRefreshTok)
		return &gateway.LoginResult{User: testUser(), AccessToken: testAccessTok, RefreshToken: testRefreshTok}, nil
	}

	require.NoError(t, f.session.Register(context.Background(), "alice", "a@x.com", "Sup3rSecret!"))
	require.True(t, f.session.IsAuthenticated())
	require.NotNil(t, f.session.User())
}

func TestLogoutAlwaysEndsAnonymous(t *testing.T) {
	f := setupTestFixture(t, true)
	loginOK(f)
	require.NoError(t, f.session.Login(context.Background(), "alice", "pw"))

	f.gw.LogoutFn = func(ctx context.Context) error {
		// The gateway clears the store even when the server call failed.
		_ = f.store.Clear()
		return nil
	}

	require.NoError(t, f.session.Logout(context.Background()))

	state := f.session.State()
	require.False(t, state.IsAuthenticated)
	require.Nil(t, state.User)
	require.Empty(t, state.AccessToken)
	require.Empty(t, state.RefreshToken)
	require.Equal(t, 1, f.gw.LogoutCalls())
}

func TestUpdateProfileReplacesUserWholesale(t *testing.T) {
	f := setupTestFixture(t, true)
	loginOK(f)
	require.NoError(t, f.session.Login(context.Background(), "alice", "pw"))

	updated := testUser()
	updated.FirstName = "Alice"
	f.gw.UpdateProfileFn = func(ctx context.Context, update gateway.ProfileUpdate) (*users.User, error) {
		return updated, nil
	}

	first := "Alice"
	user, err := f.session.UpdateProfile(context.Background(), gateway.ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	require.Same(t, updated, user)
	require.Same(t, updated, f.session.User())
}

func TestSubscribeNotifiedOnTransitions(t *testing.T) {
	f := setupTestFixture(t, true)
	loginOK(f)

	var snapshots []session.Snapshot
	unsubscribe := f.session.Subscribe(func(s session.Snapshot) {
		snapshots = append(snapshots, s)
	})

	require.NoError(t, f.session.Login(context.Background(), "alice", "pw"))

	// loading(true) -> authenticated -> loading(false)
	require.GreaterOrEqual(t, len(snapshots), 3)
	require.True(t, snapshots[0].IsLoading)
	last := snapshots[len(snapshots)-1]
	require.True(t, last.IsAuthenticated)
	require.False(t, last.IsLoading)

	seen := len(snapshots)
	unsubscribe()
	require.NoError(t, f.session.Logout(context.Background()))
	require.Len(t, snapshots, seen, "no notifications after unsubscribe")
}

func TestChangePasswordDelegates(t *testing.T) {
	f := setupTestFixture(t, true)
	wantErr := errors.New("old password wrong")
	f.gw.ChangePasswordFn = func(ctx context.Context, oldPassword, newPassword string) error {
		return wantErr
	}

	require.ErrorIs(t, f.session.ChangePassword(context.Background(), "old", "new"), wantErr)
}
