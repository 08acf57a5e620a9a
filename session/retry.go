package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/tasknest/go-tasknest-client/gateway"
)

// refreshCall is one in-flight refresh shared by concurrent callers.
type refreshCall struct {
	done   chan struct{}
	access string
	err    error
}

// Do performs an authenticated request against the API. The caller must
// already be authenticated; otherwise ErrNotAuthenticated is returned
// immediately, before any network activity.
//
// On a 401 response with a refresh token present, exactly one refresh-and-
// retry cycle runs: the refresh completes (success or failure) before the
// retry is issued, and a failed refresh leaves the session anonymous and
// returns ErrReauthenticationRequired. Any other failure propagates unchanged
// after the first attempt. The retried response is returned to the caller
// as-is, whatever its status.
func (s *Session) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	s.lock.RLock()
	authenticated := s.authenticated
	access := s.access
	refresh := s.refresh
	s.lock.RUnlock()

	if !authenticated {
		return nil, ErrNotAuthenticated
	}

	resp, err := s.send(ctx, method, path, body, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if refresh == "" {
		s.becomeAnonymous(true)
		return nil, fmt.Errorf("[Session.Do] %w: %w", gateway.ErrReauthenticationRequired, gateway.ErrNoRefreshToken)
	}

	s.logger.Debug().Str("path", path).Msg("request unauthorized, refreshing access token")
	newAccess, err := s.sharedRefresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("[Session.Do] %w", err)
	}

	return s.send(ctx, method, path, body, newAccess)
}

// Get issues an authenticated GET.
func (s *Session) Get(ctx context.Context, path string) (*http.Response, error) {
	return s.Do(ctx, http.MethodGet, path, nil)
}

// PostJSON issues an authenticated POST with a JSON body.
func (s *Session) PostJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	return s.Do(ctx, http.MethodPost, path, body)
}

func (s *Session) send(ctx context.Context, method, path string, body any, access string) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("[Session.Do] marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("[Session.Do] build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[Session.Do] %s %s: %w", method, path, err)
	}
	return resp, nil
}

// sharedRefresh runs at most one concurrent refresh. Callers arriving while
// one is in flight block on its result instead of issuing their own; the
// original client had no such guard, so two simultaneous 401s could race two
// refresh calls.
func (s *Session) sharedRefresh(ctx context.Context) (string, error) {
	s.refreshLock.Lock()
	if call := s.inflightRefresh; call != nil {
		s.refreshLock.Unlock()
		select {
		case <-call.done:
			return call.access, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	s.inflightRefresh = call
	s.refreshLock.Unlock()

	call.access, call.err = s.deps.Gateway.Refresh(ctx)

	s.refreshLock.Lock()
	s.inflightRefresh = nil
	s.refreshLock.Unlock()

	if call.err != nil {
		// The gateway has cleared the store; mirror that here.
		s.becomeAnonymous(false)
	} else {
		s.lock.Lock()
		s.access = call.access
		s.lock.Unlock()
		s.notify()
	}

	close(call.done)
	return call.access, call.err
}
