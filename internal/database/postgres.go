package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/board"
)

type PgRepository struct {
	conn *sql.DB
}

// NewPgRepository connects to Postgres and brings the schema up to date.
func NewPgRepository(dsn string) (*PgRepository, error) {
	db, err := openPostgres(dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PgRepository{conn: db}, nil
}

func (db *PgRepository) Ping(ctx context.Context) error {
	var one int
	return db.conn.QueryRowContext(ctx, pingQuery).Scan(&one)
}

func (db *PgRepository) GetRoom(ctx context.Context, roomId string) (*board.Room, error) {
	var row roomRow
	err := db.conn.QueryRowContext(ctx, getRoomQuery, roomId).Scan(
		&row.RoomId,
		&row.IsPrivate,
		&row.CreatorId,
		&row.Users,
		&row.Strokes,
		&row.UndoStack,
		&row.RedoStack,
		&row.Messages,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room %q: %w", roomId, err)
	}

	return row.room()
}

func (db *PgRepository) SaveRoom(ctx context.Context, r *board.Room) error {
	row, err := newRoomRow(r)
	if err != nil {
		return err
	}

	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}

	// jsonb parameters are sent as text; lib/pq would encode []byte as bytea.
	_, err = db.conn.ExecContext(ctx, saveRoomQuery,
		row.RoomId,
		row.IsPrivate,
		row.CreatorId,
		string(row.Users),
		string(row.Strokes),
		string(row.UndoStack),
		string(row.RedoStack),
		string(row.Messages),
		row.CreatedAt,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save room %q: %w", r.RoomId, err)
	}

	return nil
}

func (db *PgRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
