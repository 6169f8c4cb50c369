package database

import (
	"context"

	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockRepository) GetRoom(ctx context.Context, roomId string) (*board.Room, error) {
	args := m.Called(ctx, roomId)
	if room, ok := args.Get(0).(*board.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) SaveRoom(ctx context.Context, room *board.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}
func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
