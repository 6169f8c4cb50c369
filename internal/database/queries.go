package database

const (
	pingQuery = "SELECT 1"

	getRoomQuery = "SELECT room_id, is_private, creator_id, users, strokes, undo_stack, redo_stack, messages, created_at, updated_at " +
		"FROM rooms WHERE room_id = $1 LIMIT 1"

	// creator_id, is_private and created_at are written once.
	saveRoomQuery = "INSERT INTO rooms " +
		"(room_id, is_private, creator_id, users, strokes, undo_stack, redo_stack, messages, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10) " +
		"ON CONFLICT (room_id) DO UPDATE SET " +
		"users = EXCLUDED.users, " +
		"strokes = EXCLUDED.strokes, " +
		"undo_stack = EXCLUDED.undo_stack, " +
		"redo_stack = EXCLUDED.redo_stack, " +
		"messages = EXCLUDED.messages, " +
		"updated_at = EXCLUDED.updated_at"
)
