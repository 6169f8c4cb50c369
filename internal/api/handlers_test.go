package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/testutil"
	"github.com/npezzotti/go-whiteboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:3000"

func newTestApp(t *testing.T, repo database.Repository) *WhiteboardApp {
	logger := testutil.TestLogger(t)
	bs, err := server.NewBoardServer(logger, repo, (&stats.MockStatsUpdater{}).Quiet(), server.Options{
		IdleRoomTimeout: time.Minute,
		StoreTimeout:    time.Second,
	})
	require.NoError(t, err)

	return NewWhiteboardApp(http.NewServeMux(), logger, bs, repo, &config.Config{
		ServerAddr:     "localhost:0",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{testOrigin},
	})
}

func serve(app *WhiteboardApp, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestCreateRoom(t *testing.T) {
	t.Run("returns a free id", func(t *testing.T) {
		app := newTestApp(t, database.NewMemoryRepository())
		app.generateShortId = func() (string, error) { return "EoGKUXPHgz", nil }

		rr := serve(app, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
		assert.JSONEq(t, `{"room_id":"EoGKUXPHgz"}`, rr.Body.String())
	})

	t.Run("skips ids already in use", func(t *testing.T) {
		repo := database.NewMemoryRepository()
		require.NoError(t, repo.SaveRoom(context.Background(), board.NewRoom("taken", "someone")))

		app := newTestApp(t, repo)
		ids := []string{"taken", "free"}
		app.generateShortId = func() (string, error) {
			id := ids[0]
			ids = ids[1:]
			return id, nil
		}

		rr := serve(app, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.JSONEq(t, `{"room_id":"free"}`, rr.Body.String())
	})

	t.Run("gives up when every id is taken", func(t *testing.T) {
		repo := database.NewMemoryRepository()
		require.NoError(t, repo.SaveRoom(context.Background(), board.NewRoom("taken", "someone")))

		app := newTestApp(t, repo)
		app.generateShortId = func() (string, error) { return "taken", nil }

		rr := serve(app, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("generator error", func(t *testing.T) {
		app := newTestApp(t, database.NewMemoryRepository())
		app.generateShortId = func() (string, error) { return "", errors.New("entropy exhausted") }

		rr := serve(app, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("store error", func(t *testing.T) {
		repo := &database.MockRepository{}
		defer repo.AssertExpectations(t)
		repo.On("GetRoom", mock.Anything, "abc").Return(nil, errors.New("connection refused")).Once()

		app := newTestApp(t, repo)
		app.generateShortId = func() (string, error) { return "abc", nil }

		rr := serve(app, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("default generator", func(t *testing.T) {
		app := newTestApp(t, database.NewMemoryRepository())

		rr := serve(app, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp CreateRoomResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.NotEmpty(t, resp.RoomId)
		assert.LessOrEqual(t, len(resp.RoomId), 64)
	})
}

func TestGetRoom(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo := database.NewMemoryRepository()
		doc := board.NewRoom("abc", "owner")
		doc.UpsertUser("owner", "Olive")
		doc.AppendDrawable(types.NewRect(types.Rect{X: 1, Y: 1, Width: 10, Height: 10, Color: "red", LineWidth: 2}))
		require.NoError(t, repo.SaveRoom(context.Background(), doc))

		app := newTestApp(t, repo)
		rr := serve(app, httptest.NewRequest(http.MethodGet, "/api/rooms/abc", nil))

		require.Equal(t, http.StatusOK, rr.Code)

		var info types.RoomInfo
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
		assert.Equal(t, "abc", info.RoomId)
		assert.True(t, info.IsPrivate)
		assert.Equal(t, "owner", info.CreatorId)
		assert.Equal(t, 1, info.UserCount)
		assert.Equal(t, 1, info.StrokeCount)
	})

	t.Run("not found", func(t *testing.T) {
		app := newTestApp(t, database.NewMemoryRepository())
		rr := serve(app, httptest.NewRequest(http.MethodGet, "/api/rooms/missing", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"status_code":404,"message":"not found"}`, rr.Body.String())
	})

	t.Run("store error", func(t *testing.T) {
		repo := &database.MockRepository{}
		defer repo.AssertExpectations(t)
		repo.On("GetRoom", mock.Anything, "abc").Return(nil, errors.New("connection refused")).Once()

		app := newTestApp(t, repo)
		rr := serve(app, httptest.NewRequest(http.MethodGet, "/api/rooms/abc", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestHealthz(t *testing.T) {
	tcases := []struct {
		name     string
		pingErr  error
		expected int
	}{
		{name: "healthy", expected: http.StatusOK},
		{name: "store down", pingErr: errors.New("connection refused"), expected: http.StatusServiceUnavailable},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &database.MockRepository{}
			defer repo.AssertExpectations(t)
			repo.On("Ping", mock.Anything).Return(tc.pingErr).Once()

			app := newTestApp(t, repo)
			rr := serve(app, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tc.expected, rr.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	app := newTestApp(t, database.NewMemoryRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/missing", nil)
	req.Header.Set("Origin", testOrigin)
	rr := serve(app, req)

	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckOrigin(t *testing.T) {
	app := newTestApp(t, database.NewMemoryRepository())

	tcases := []struct {
		name     string
		origin   string
		expected bool
	}{
		{name: "no origin", expected: true},
		{name: "allowed origin", origin: testOrigin, expected: true},
		{name: "foreign origin", origin: "http://evil.example", expected: false},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.expected, app.checkOrigin(req))
		})
	}
}
