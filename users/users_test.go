package users_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tasknest/go-tasknest-client/users"
)

func TestUserDecode(t *testing.T) {
	payload := `{
		"id": 42,
		"username": "alice",
		"email": "alice@example.com",
		"first_name": "Alice",
		"last_name": "Liddell",
		"avatar_url": null,
		"is_active": true,
		"is_verified": true,
		"is_admin": false,
		"created_at": "2024-03-01T09:30:00.123456",
		"updated_at": "2024-03-02T10:00:00+00:00",
		"last_login_at": null
	}`

	var u users.User
	require.NoError(t, json.Unmarshal([]byte(payload), &u))

	require.Equal(t, int64(42), u.ID)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "Alice Liddell", u.DisplayName())
	require.True(t, u.IsActive)
	require.False(t, u.IsAdmin)
	require.Equal(t, 2024, u.CreatedAt.Year())
	require.Equal(t, time.March, u.CreatedAt.Month())
	require.True(t, u.LastLogin.IsZero())
}

func TestDisplayNameFallsBackToUsername(t *testing.T) {
	u := users.User{Username: "bob"}
	require.Equal(t, "bob", u.DisplayName())

	u.FirstName = "Bob"
	require.Equal(t, "Bob", u.DisplayName())
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := users.Timestamp{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	data, err := json.Marshal(ts)
	require.NoError(t, err)

	var decoded users.Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, ts.Equal(decoded.Time))

	data, err = json.Marshal(users.Timestamp{})
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts users.Timestamp
	require.Error(t, json.Unmarshal([]byte(`"not-a-time"`), &ts))
}
