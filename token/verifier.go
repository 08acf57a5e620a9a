// Package token performs local inspection of bearer tokens issued by the
// tasknest API. Tokens are treated as opaque strings whose embedded expiry
// claim is decoded without signature verification; the check exists only to
// skip a doomed network round-trip. The server remains the authority - any
// request it rejects still drives the session through the refresh path.
package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrNoExpiryClaim  = errors.New("token has no expiry claim")
)

// Verifier checks the expiry claim embedded in a bearer token.
type Verifier struct {
	nowTime func() time.Time
}

// VerifierOption defines a function type to modify the Verifier instance.
type VerifierOption func(*Verifier)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowTime = nowFunc
	}
}

// NewVerifier creates a Verifier. Optional configuration can be provided via
// options (e.g. WithNowTime for testing).
func NewVerifier(options ...VerifierOption) *Verifier {
	v := &Verifier{nowTime: func() time.Time { return NowTimeFunc() }}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// IsValid reports whether the token carries an expiry claim strictly in the
// future. It fails closed: any decode error, missing claim, or empty input
// yields false.
func (v *Verifier) IsValid(rawToken string) bool {
	expiry, err := v.ExpiresAt(rawToken)
	if err != nil {
		return false
	}
	return expiry.After(v.nowTime())
}

// ExpiresAt extracts the expiry deadline from the token without verifying its
// signature.
func (v *Verifier) ExpiresAt(rawToken string) (time.Time, error) {
	if strings.TrimSpace(rawToken) == "" {
		return time.Time{}, ErrMalformedToken
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, errors.Join(ErrMalformedToken, err)
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return time.Time{}, ErrMalformedToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, ErrNoExpiryClaim
	}

	return time.Unix(int64(exp), 0), nil
}
