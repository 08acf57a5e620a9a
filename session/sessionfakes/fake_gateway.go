package sessionfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/tasknest/go-tasknest-client/gateway"
	"github.com/tasknest/go-tasknest-client/session"
	"github.com/tasknest/go-tasknest-client/users"
)

var _ session.AuthGateway = (*FakeGateway)(nil)

var errNotStubbed = errors.New("not stubbed")

// FakeGateway is a stub session.AuthGateway. Behaviour is injected per
// operation; unset operations fail. Call counts are safe for concurrent use.
type FakeGateway struct {
	LoginFn          func(ctx context.Context, username, password string) (*gateway.LoginResult, error)
	RegisterFn       func(ctx context.Context, username, email, password string) (*gateway.LoginResult, error)
	LogoutFn         func(ctx context.Context) error
	RefreshFn        func(ctx context.Context) (string, error)
	FetchProfileFn   func(ctx context.Context) (*users.User, error)
	UpdateProfileFn  func(ctx context.Context, update gateway.ProfileUpdate) (*users.User, error)
	ChangePasswordFn func(ctx context.Context, oldPassword, newPassword string) error

	lock           sync.Mutex
	loginCalls     int
	refreshCalls   int
	logoutCalls    int
	profileFetches int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (f *FakeGateway) Login(ctx context.Context, username, password string) (*gateway.LoginResult, error) {
	f.lock.Lock()
	f.loginCalls++
	f.lock.Unlock()
	if f.LoginFn == nil {
		return nil, errNotStubbed
	}
	return f.LoginFn(ctx, username, password)
}

func (f *FakeGateway) Register(ctx context.Context, username, email, password string) (*gateway.LoginResult, error) {
	if f.RegisterFn == nil {
		return nil, errNotStubbed
	}
	return f.RegisterFn(ctx, username, email, password)
}

func (f *FakeGateway) Logout(ctx context.Context) error {
	f.lock.Lock()
	f.logoutCalls++
	f.lock.Unlock()
	if f.LogoutFn == nil {
		return nil
	}
	return f.LogoutFn(ctx)
}

func (f *FakeGateway) Refresh(ctx context.Context) (string, error) {
	f.lock.Lock()
	f.refreshCalls++
	f.lock.Unlock()
	if f.RefreshFn == nil {
		return "", errNotStubbed
	}
	return f.RefreshFn(ctx)
}

func (f *FakeGateway) FetchProfile(ctx context.Context) (*users.User, error) {
	f.lock.Lock()
	f.profileFetches++
	f.lock.Unlock()
	if f.FetchProfileFn == nil {
		return nil, errNotStubbed
	}
	return f.FetchProfileFn(ctx)
}

func (f *FakeGateway) UpdateProfile(ctx context.Context, update gateway.ProfileUpdate) (*users.User, error) {
	if f.UpdateProfileFn == nil {
		return nil, errNotStubbed
	}
	return f.UpdateProfileFn(ctx, update)
}

func (f *FakeGateway) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if f.ChangePasswordFn == nil {
		return errNotStubbed
	}
	return f.ChangePasswordFn(ctx, oldPassword, newPassword)
}

func (f *FakeGateway) LoginCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.loginCalls
}

func (f *FakeGateway) RefreshCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshCalls
}

func (f *FakeGateway) LogoutCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.logoutCalls
}

func (f *FakeGateway) ProfileFetches() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.profileFetches
}
