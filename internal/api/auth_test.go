package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionToken(t *testing.T) {
	app := newTestApp(t, database.NewMemoryRepository())

	t.Run("round trip", func(t *testing.T) {
		token, err := app.createConnectionToken("conn-1", defaultTokenExpiration)
		require.NoError(t, err)

		id, err := app.verifyConnectionToken(token)
		require.NoError(t, err)
		assert.Equal(t, "conn-1", id)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := app.createConnectionToken("conn-1", -time.Minute)
		require.NoError(t, err)

		_, err = app.verifyConnectionToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("signed with another key", func(t *testing.T) {
		other := &WhiteboardApp{signingKey: []byte("another-key")}
		token, err := other.createConnectionToken("conn-1", defaultTokenExpiration)
		require.NoError(t, err)

		_, err = app.verifyConnectionToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := app.verifyConnectionToken("not-a-token")
		assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
	})
}

func TestConnectionId(t *testing.T) {
	app := newTestApp(t, database.NewMemoryRepository())
	app.newConnId = func() string { return "fresh" }

	token, err := app.createConnectionToken("resumed", defaultTokenExpiration)
	require.NoError(t, err)

	tcases := []struct {
		name     string
		token    string
		live     bool
		expected string
	}{
		{name: "no token", expected: "fresh"},
		{name: "invalid token", token: "bogus", expected: "fresh"},
		{name: "valid token", token: token, expected: "resumed"},
		{name: "identity already live", token: token, live: true, expected: "fresh"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.live {
				c := server.NewClient("resumed", nil, app.bs, testutil.TestLogger(t))
				require.NoError(t, app.bs.RegisterClient(c))
				t.Cleanup(func() { app.bs.DeRegisterClient(c) })
			}

			assert.Equal(t, tc.expected, app.connectionId(tc.token))
		})
	}
}
