package database

import (
	"context"
	"encoding/json"
	"io/fs"
	"strings"
	"testing"

	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/npezzotti/go-whiteboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoom(t *testing.T) *board.Room {
	t.Helper()
	r := board.NewRoom("abc123", "creator")
	r.UpsertUser("creator", "alice")
	r.UpsertUser("guest", "bob")
	r.AppendDrawable(types.NewFreehand([]types.Segment{{X0: 0, Y0: 0, X1: 5, Y1: 5, Color: "#000", LineWidth: 3}}))
	r.AppendDrawable(types.NewText(types.Text{Id: "t1", X: 2, Y: 2, Value: "hi", Color: "#111", FontSize: 12}))
	r.AppendMessage(types.Message{SenderId: "creator", SenderName: "alice", Content: "hello"})
	return r
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups, "expected at least one up migration")
	assert.Equal(t, ups, downs, "expected every up migration to have a down migration")
}

func Test_roomRow(t *testing.T) {
	r := testRoom(t)

	row, err := newRoomRow(r)
	require.NoError(t, err)
	assert.Equal(t, r.RoomId, row.RoomId)
	assert.Equal(t, r.CreatorId, row.CreatorId)
	assert.True(t, row.IsPrivate)

	decoded, err := row.room()
	require.NoError(t, err)
	assert.Equal(t, r.Users, decoded.Users)
	assert.Equal(t, r.Strokes, decoded.Strokes)
	assert.Equal(t, r.UndoStack, decoded.UndoStack)
	assert.Equal(t, r.RedoStack, decoded.RedoStack)
	assert.Equal(t, r.Messages, decoded.Messages)
}

func Test_roomRowNilCollections(t *testing.T) {
	row, err := newRoomRow(&board.Room{RoomId: "x"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(row.Strokes), "expected nil strokes to encode as an empty array")
	assert.Equal(t, "[]", string(row.Users))

	decoded, err := roomRow{RoomId: "x"}.room()
	require.NoError(t, err)
	assert.NotNil(t, decoded.Strokes)
	assert.NotNil(t, decoded.UndoStack)
}

func Test_roomRowBadColumn(t *testing.T) {
	_, err := roomRow{RoomId: "x", Strokes: []byte(`[{"type":"hexagon"}]`)}.room()
	assert.ErrorIs(t, err, types.ErrUnknownKind)
	assert.ErrorContains(t, err, "decode strokes")
}

func Test_encodeDecodeRoom(t *testing.T) {
	r := testRoom(t)

	b, err := encodeRoom(r)
	require.NoError(t, err)

	decoded, err := decodeRoom(b)
	require.NoError(t, err)
	assert.Equal(t, r.RoomId, decoded.RoomId)
	assert.Equal(t, r.CreatorId, decoded.CreatorId)
	assert.Equal(t, r.Strokes, decoded.Strokes)
	assert.Equal(t, r.Users, decoded.Users)

	_, err = decodeRoom([]byte("not json"))
	assert.Error(t, err)
}

func Test_decodeRoomNullCollections(t *testing.T) {
	decoded, err := decodeRoom([]byte(`{"room_id":"abc","creator_id":"c1","users":null,"messages":null}`))
	require.NoError(t, err)
	assert.NotNil(t, decoded.Users)
	assert.NotNil(t, decoded.Strokes)
	assert.NotNil(t, decoded.UndoStack)
	assert.NotNil(t, decoded.RedoStack)
	assert.NotNil(t, decoded.Messages)

	b, err := json.Marshal(decoded.SnapshotFor("c1"))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "null")

	fromRow, err := roomRow{RoomId: "abc", Users: []byte("null"), Messages: []byte("null")}.room()
	require.NoError(t, err)
	assert.NotNil(t, fromRow.Users)
	assert.NotNil(t, fromRow.Messages)
}

func Test_roomKey(t *testing.T) {
	assert.Equal(t, "room:public", roomKey(board.PublicRoomId))
	assert.Equal(t, "room:abc123", roomKey("abc123"))
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	defer repo.Close()

	assert.NoError(t, repo.Ping(ctx))

	_, err := repo.GetRoom(ctx, "abc123")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	r := testRoom(t)
	require.NoError(t, repo.SaveRoom(ctx, r))

	got, err := repo.GetRoom(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, r.Strokes, got.Strokes)

	t.Run("stored copy is isolated", func(t *testing.T) {
		got.Strokes = nil
		r.Users[0].Name = "changed"

		again, err := repo.GetRoom(ctx, "abc123")
		require.NoError(t, err)
		assert.Len(t, again.Strokes, 2)
		assert.Equal(t, "alice", again.Users[0].Name)
	})

	t.Run("upsert keeps the creator", func(t *testing.T) {
		other := board.NewRoom("abc123", "intruder")
		require.NoError(t, repo.SaveRoom(ctx, other))

		again, err := repo.GetRoom(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "creator", again.CreatorId)
		assert.Empty(t, again.Strokes)
	})
}
