// Package gateway translates user intents into calls against the tasknest
// HTTP API and typed results or errors back out. It owns the wire contract:
// every endpoint, payload shape, and error body is dealt with here and
// nowhere else.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tasknest/go-tasknest-client/tokenstore"
	"github.com/tasknest/go-tasknest-client/users"
)

const (
	loginPath          = "/api/auth/login"
	registerPath       = "/api/auth/register"
	logoutPath         = "/api/auth/logout"
	refreshPath        = "/api/auth/refresh"
	userPath           = "/api/auth/user"
	changePasswordPath = "/api/auth/change-password"
	checkUsernamePath  = "/api/auth/check-username"
	checkEmailPath     = "/api/auth/check-email"

	defaultTimeout = 15 * time.Second
)

// Gateway performs authentication operations against the remote API,
// persisting the resulting token pair through the configured store.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	store      tokenstore.Store
	logger     zerolog.Logger
	limiter    *rate.Limiter
}

// Option defines a function type to modify the Gateway instance.
type Option func(*Gateway)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithAvailabilityLimiter overrides the throttle applied to the
// check-username / check-email endpoints.
func WithAvailabilityLimiter(limiter *rate.Limiter) Option {
	return func(g *Gateway) {
		g.limiter = limiter
	}
}

// New initializes a Gateway with required dependencies. Optional
// configuration can be provided via options.
func New(baseURL string, store tokenstore.Store, options ...Option) (*Gateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("[gateway.New] baseURL is required")
	}
	if store == nil {
		return nil, fmt.Errorf("[gateway.New] token store is required")
	}

	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		store:      store,
		logger:     zerolog.Nop(),
		// The server rate-limits the availability endpoints; stay under its
		// budget instead of burning requests that will come back 429.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
	}

	for _, opt := range options {
		opt(g)
	}

	return g, nil
}

// LoginResult is the outcome of a successful login or registration.
type LoginResult struct {
	User         *users.User
	AccessToken  string
	RefreshToken string
}

type loginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         *users.User `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type userEnvelope struct {
	User *users.User `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Login exchanges credentials for a token pair and the user snapshot. The
// username field also accepts an email address. On success both tokens are
// persisted before the result is returned.
func (g *Gateway) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var resp loginResponse
	err := g.postJSON(ctx, loginPath, map[string]string{
		"username": username,
		"password": password,
	}, "", &resp)
	if err != nil {
		return nil, fmt.Errorf("[Gateway.Login] %w", err)
	}

	if err := g.store.Save(resp.AccessToken, resp.RefreshToken); err != nil {
		return nil, fmt.Errorf("[Gateway.Login] persist tokens: %w", err)
	}

	g.logger.Debug().Str("username", username).Msg("login succeeded")
	return &LoginResult{
		User:         resp.User,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// Register creates an account and, on success, immediately logs in with the
// same credentials. Auto-login after registration is part of the product
// contract: a freshly registered user is never left at the login screen.
func (g *Gateway) Register(ctx context.Context, username, email, password string) (*LoginResult, error) {
	if err := ValidateRegistration(username, email, password); err != nil {
		return nil, fmt.Errorf("[Gateway.Register] %w", err)
	}

	err := g.postJSON(ctx, registerPath, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, "", nil)
	if err != nil {
		return nil, fmt.Errorf("[Gateway.Register] %w", err)
	}

	return g.Login(ctx, username, password)
}

// Logout notifies the server on a best-effort basis and unconditionally
// clears the stored tokens. A failed server call is logged, never surfaced:
// logout always succeeds locally.
func (g *Gateway) Logout(ctx context.Context) error {
	tokens, err := g.store.Load()
	if err == nil && tokens.Access != "" {
		if err := g.postJSON(ctx, logoutPath, nil, tokens.Access, nil); err != nil {
			g.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}

	if err := g.store.Clear(); err != nil {
		return fmt.Errorf("[Gateway.Logout] clear tokens: %w", err)
	}
	return nil
}

// Refresh exchanges the stored refresh token for a new access token. Only the
// access token is overwritten; the server does not rotate refresh tokens. On
// any failure the store is cleared and ErrReauthenticationRequired is
// returned so the caller can redirect to login.
func (g *Gateway) Refresh(ctx context.Context) (string, error) {
	tokens, err := g.store.Load()
	if err != nil || tokens.Refresh == "" {
		return "", g.failRefresh(ErrNoRefreshToken)
	}

	var resp refreshResponse
	err = g.postJSON(ctx, refreshPath, map[string]string{
		"refresh_token": tokens.Refresh,
	}, "", &resp)
	if err != nil {
		return "", g.failRefresh(err)
	}

	if err := g.store.Save(resp.AccessToken, tokens.Refresh); err != nil {
		return "", g.failRefresh(fmt.Errorf("persist access token: %w", err))
	}

	g.logger.Debug().Msg("access token refreshed")
	return resp.AccessToken, nil
}

func (g *Gateway) failRefresh(cause error) error {
	if err := g.store.Clear(); err != nil {
		g.logger.Error().Err(err).Msg("failed clearing tokens after refresh failure")
	}
	return fmt.Errorf("[Gateway.Refresh] %w: %w", ErrReauthenticationRequired, cause)
}

// FetchProfile retrieves the current user with the stored access token.
func (g *Gateway) FetchProfile(ctx context.Context) (*users.User, error) {
	access, err := g.storedAccessToken()
	if err != nil {
		return nil, fmt.Errorf("[Gateway.FetchProfile] %w", err)
	}

	var resp userEnvelope
	if err := g.doJSON(ctx, http.MethodGet, userPath, nil, access, &resp); err != nil {
		return nil, fmt.Errorf("[Gateway.FetchProfile] %w", err)
	}
	return resp.User, nil
}

// ProfileUpdate carries the mutable profile fields. Nil fields are omitted
// from the request and left unchanged server-side.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// UpdateProfile applies a partial update and returns the server's full
// replacement snapshot.
func (g *Gateway) UpdateProfile(ctx context.Context, update ProfileUpdate) (*users.User, error) {
	access, err := g.storedAccessToken()
	if err != nil {
		return nil, fmt.Errorf("[Gateway.UpdateProfile] %w", err)
	}

	var resp userEnvelope
	if err := g.postJSON(ctx, userPath, update, access, &resp); err != nil {
		return nil, fmt.Errorf("[Gateway.UpdateProfile] %w", err)
	}
	return resp.User, nil
}

// ChangePassword verifies the old password server-side and replaces it.
func (g *Gateway) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	access, err := g.storedAccessToken()
	if err != nil {
		return fmt.Errorf("[Gateway.ChangePassword] %w", err)
	}

	err = g.postJSON(ctx, changePasswordPath, map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	}, access, nil)
	if err != nil {
		return fmt.Errorf("[Gateway.ChangePassword] %w", err)
	}
	return nil
}

func (g *Gateway) storedAccessToken() (string, error) {
	tokens, err := g.store.Load()
	if err != nil || tokens.Access == "" {
		return "", ErrNoAccessToken
	}
	return tokens.Access, nil
}

func (g *Gateway) postJSON(ctx context.Context, path string, body any, bearer string, out any) error {
	return g.doJSON(ctx, http.MethodPost, path, body, bearer, out)
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// apiError extracts the server's {"error": ...} body; when the body is
// missing or unparseable the HTTP status text stands in.
func (g *Gateway) apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
