package database

import (
	"context"
	"errors"

	"github.com/npezzotti/go-whiteboard/internal/board"
)

var ErrRoomNotFound = errors.New("room not found")

// Repository is a document store for rooms. SaveRoom is an upsert keyed by
// room id; implementations never rewrite the creator of an existing room.
type Repository interface {
	Ping(ctx context.Context) error
	GetRoom(ctx context.Context, roomId string) (*board.Room, error)
	SaveRoom(ctx context.Context, room *board.Room) error
	Close() error
}
