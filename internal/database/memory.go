package database

import (
	"context"
	"sync"

	"github.com/npezzotti/go-whiteboard/internal/board"
)

// MemoryRepository stores deep copies of rooms in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	rooms map[string]*board.Room
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rooms: make(map[string]*board.Room)}
}

func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (m *MemoryRepository) GetRoom(_ context.Context, roomId string) (*board.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomId]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryRepository) SaveRoom(_ context.Context, r *board.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := r.Clone()
	if existing, ok := m.rooms[r.RoomId]; ok {
		c.CreatorId = existing.CreatorId
		c.IsPrivate = existing.IsPrivate
		c.CreatedAt = existing.CreatedAt
	}
	m.rooms[r.RoomId] = c
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
