package users

import (
	"fmt"
	"strings"
	"time"
)

// User is the account snapshot returned by the tasknest API. It is replaced
// wholesale whenever the profile is fetched or updated, never partially
// mutated on the client.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"` // First name of the user
	LastName   string    `json:"last_name,omitempty"`  // Last name of the user
	AvatarURL  string    `json:"avatar_url,omitempty"` // URL of the user's avatar image
	IsActive   bool      `json:"is_active"`            // Account enabled
	IsVerified bool      `json:"is_verified"`          // Email verified
	IsAdmin    bool      `json:"is_admin"`             // Administrative account
	CreatedAt  Timestamp `json:"created_at"`           // When the account was created
	UpdatedAt  Timestamp `json:"updated_at"`           // Last profile modification
	LastLogin  Timestamp `json:"last_login_at"`        // Last successful login, zero if never
}

// DisplayName returns the user's full name, falling back to the username when
// no name fields are set.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Timestamp decodes the server's timestamps, which arrive either as RFC 3339
// or as a bare ISO 8601 form without a zone designator. Null and missing
// values decode to the zero time.
type Timestamp struct {
	time.Time
}

const isoNoZone = "2006-01-02T15:04:05.999999"

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, isoNoZone} {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(time.RFC3339Nano) + `"`), nil
}
