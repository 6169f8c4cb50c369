package types

import (
	"time"
)

type Permission string

const (
	PermissionEdit Permission = "edit"
	PermissionView Permission = "view"
)

func (p Permission) Valid() bool {
	return p == PermissionEdit || p == PermissionView
}

// User is a roster entry. Id is the identity of the connection that joined.
type User struct {
	Id          string     `json:"id"`
	Name        string     `json:"name"`
	Permissions Permission `json:"permissions"`
}

type Message struct {
	SenderId   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// RoomInfo is the public summary of a room returned by the HTTP API.
type RoomInfo struct {
	RoomId      string    `json:"room_id"`
	IsPrivate   bool      `json:"is_private"`
	CreatorId   string    `json:"creator_id"`
	UserCount   int       `json:"user_count"`
	StrokeCount int       `json:"stroke_count"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}
