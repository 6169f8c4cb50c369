package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

// roomRow is the column layout of the rooms table. The collection columns
// hold JSON documents.
type roomRow struct {
	RoomId    string
	IsPrivate bool
	CreatorId string
	Users     []byte
	Strokes   []byte
	UndoStack []byte
	RedoStack []byte
	Messages  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newRoomRow(r *board.Room) (roomRow, error) {
	row := roomRow{
		RoomId:    r.RoomId,
		IsPrivate: r.IsPrivate,
		CreatorId: r.CreatorId,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	var err error
	if row.Users, err = marshalColumn("users", r.Users, []types.User{}); err != nil {
		return row, err
	}
	if row.Strokes, err = marshalColumn("strokes", r.Strokes, []types.Drawable{}); err != nil {
		return row, err
	}
	if row.UndoStack, err = marshalColumn("undo_stack", r.UndoStack, [][]types.Drawable{}); err != nil {
		return row, err
	}
	if row.RedoStack, err = marshalColumn("redo_stack", r.RedoStack, [][]types.Drawable{}); err != nil {
		return row, err
	}
	if row.Messages, err = marshalColumn("messages", r.Messages, []types.Message{}); err != nil {
		return row, err
	}

	return row, nil
}

func marshalColumn[T any](name string, v []T, empty []T) ([]byte, error) {
	if v == nil {
		v = empty
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return b, nil
}

func (row roomRow) room() (*board.Room, error) {
	r := &board.Room{
		RoomId:    row.RoomId,
		IsPrivate: row.IsPrivate,
		CreatorId: row.CreatorId,
		Users:     []types.User{},
		Strokes:   []types.Drawable{},
		UndoStack: [][]types.Drawable{},
		RedoStack: [][]types.Drawable{},
		Messages:  []types.Message{},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	columns := []struct {
		name string
		data []byte
		dst  any
	}{
		{"users", row.Users, &r.Users},
		{"strokes", row.Strokes, &r.Strokes},
		{"undo_stack", row.UndoStack, &r.UndoStack},
		{"redo_stack", row.RedoStack, &r.RedoStack},
		{"messages", row.Messages, &r.Messages},
	}
	for _, c := range columns {
		if len(c.data) == 0 {
			continue
		}
		if err := json.Unmarshal(c.data, c.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
	}

	fillCollections(r)
	return r, nil
}

// fillCollections replaces nil collections left by missing or null JSON
// fields so snapshots always carry arrays.
func fillCollections(r *board.Room) {
	if r.Users == nil {
		r.Users = []types.User{}
	}
	if r.Strokes == nil {
		r.Strokes = []types.Drawable{}
	}
	if r.UndoStack == nil {
		r.UndoStack = [][]types.Drawable{}
	}
	if r.RedoStack == nil {
		r.RedoStack = [][]types.Drawable{}
	}
	if r.Messages == nil {
		r.Messages = []types.Message{}
	}
}

func encodeRoom(r *board.Room) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode room %q: %w", r.RoomId, err)
	}
	return b, nil
}

func decodeRoom(b []byte) (*board.Room, error) {
	var r board.Room
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	fillCollections(&r)
	return &r, nil
}
