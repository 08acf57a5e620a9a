package token_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/tasknest/go-tasknest-client/token"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestVerifier() *token.Verifier {
	return token.NewVerifier(token.WithNowTime(func() time.Time { return testNow }))
}

// signedToken builds a real HS256 token with the given claims. Signature
// validity is irrelevant to the verifier, but the shape is authentic.
func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestIsValidFutureExpiry(t *testing.T) {
	v := newTestVerifier()
	tok := signedToken(t, jwtlib.MapClaims{
		"user_id": 1,
		"type":    "access",
		"exp":     testNow.Add(15 * time.Minute).Unix(),
	})
	require.True(t, v.IsValid(tok))
}

func TestIsValidExpired(t *testing.T) {
	v := newTestVerifier()
	tok := signedToken(t, jwtlib.MapClaims{
		"user_id": 1,
		"exp":     testNow.Add(-time.Second).Unix(),
	})
	require.False(t, v.IsValid(tok))
}

func TestIsValidExpiryExactlyNow(t *testing.T) {
	v := newTestVerifier()
	tok := signedToken(t, jwtlib.MapClaims{"exp": testNow.Unix()})
	// Strictly-in-the-future contract: expiring this instant is invalid.
	require.False(t, v.IsValid(tok))
}

func TestIsValidFailsClosed(t *testing.T) {
	v := newTestVerifier()

	missingExp := signedToken(t, jwtlib.MapClaims{"user_id": 1})
	truncated := signedToken(t, jwtlib.MapClaims{"exp": testNow.Add(time.Hour).Unix()})
	truncated = truncated[:len(truncated)/2]

	badPayload := "a." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c"

	for name, tok := range map[string]string{
		"empty":           "",
		"whitespace":      "   ",
		"not a jwt":       "just-an-opaque-string",
		"two segments":    "aaaa.bbbb",
		"bad payload":     badPayload,
		"missing exp":     missingExp,
		"truncated":       truncated,
		"exp wrong type":  signedToken(t, jwtlib.MapClaims{"exp": "tomorrow"}),
		"refresh opaque":  "8f14e45fceea167a5a36dedd4bea2543",
	} {
		require.False(t, v.IsValid(tok), "token %q should be invalid", name)
	}
}

func TestExpiresAt(t *testing.T) {
	v := newTestVerifier()
	deadline := testNow.Add(15 * time.Minute).Truncate(time.Second)
	tok := signedToken(t, jwtlib.MapClaims{"exp": deadline.Unix()})

	expiry, err := v.ExpiresAt(tok)
	require.NoError(t, err)
	require.True(t, expiry.Equal(deadline))

	_, err = v.ExpiresAt(signedToken(t, jwtlib.MapClaims{"sub": "1"}))
	require.ErrorIs(t, err, token.ErrNoExpiryClaim)

	_, err = v.ExpiresAt("")
	require.ErrorIs(t, err, token.ErrMalformedToken)
}

func TestExpiresAtHandcraftedPayload(t *testing.T) {
	// Payload built by hand rather than via the jwt library, to pin the
	// decode-second-segment-as-base64-JSON behaviour.
	payload, err := json.Marshal(map[string]any{"exp": testNow.Add(time.Hour).Unix()})
	require.NoError(t, err)
	tok := "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"

	v := newTestVerifier()
	require.True(t, v.IsValid(tok))
}
