package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/redis/go-redis/v9"
)

const roomKeyPrefix = "room:"

// RedisRepository keeps each room as one JSON document. A positive ttl
// expires rooms that have not been saved within that window.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(ctx context.Context, addr, password string, ttl time.Duration) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisRepository{client: client, ttl: ttl}, nil
}

func roomKey(roomId string) string {
	return roomKeyPrefix + roomId
}

func (rr *RedisRepository) Ping(ctx context.Context) error {
	return rr.client.Ping(ctx).Err()
}

func (rr *RedisRepository) GetRoom(ctx context.Context, roomId string) (*board.Room, error) {
	b, err := rr.client.Get(ctx, roomKey(roomId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room %q: %w", roomId, err)
	}

	return decodeRoom(b)
}

func (rr *RedisRepository) SaveRoom(ctx context.Context, r *board.Room) error {
	b, err := encodeRoom(r)
	if err != nil {
		return err
	}

	expiration := time.Duration(0)
	if rr.ttl > 0 {
		expiration = rr.ttl
	}

	if err := rr.client.Set(ctx, roomKey(r.RoomId), b, expiration).Err(); err != nil {
		return fmt.Errorf("save room %q: %w", r.RoomId, err)
	}

	return nil
}

func (rr *RedisRepository) Close() error {
	return rr.client.Close()
}
