package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAccessToken  = errors.New("no access token stored")
	ErrNoRefreshToken = errors.New("no refresh token stored")

	// ErrUnauthorized matches any APIError with a 401 status.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrReauthenticationRequired is returned once a refresh has failed and
	// the stored tokens have been cleared. The only way forward is a new
	// login.
	ErrReauthenticationRequired = errors.New("reauthentication required")
)

// APIError carries a non-2xx response from the server. Message is the
// server's own error text, surfaced verbatim so callers can display it.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match expired or invalid token
// rejections without callers inspecting status codes.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
