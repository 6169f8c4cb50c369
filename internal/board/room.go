// Package board holds the authoritative document of a whiteboard room and
// the operations that mutate it. A Room is not safe for concurrent use; the
// server gives each loaded room a single owning goroutine.
package board

import (
	"errors"
	"slices"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

const (
	PublicRoomId  = "public"
	AnonymousName = "Anonymous"

	// DefaultHistoryDepth bounds each of the undo and redo stacks.
	DefaultHistoryDepth = 100
)

var (
	ErrNotCreator        = errors.New("only the room creator may change permissions")
	ErrUserNotFound      = errors.New("user not in room")
	ErrInvalidPermission = errors.New("invalid permission")
	ErrPublicRoom        = errors.New("permissions are fixed in the public room")
	ErrCreatorPermission = errors.New("creator permission cannot be changed")
	ErrDrawableNotFound  = errors.New("drawable not found")
)

// Room is the persisted state of one whiteboard session.
type Room struct {
	RoomId    string             `json:"room_id"`
	IsPrivate bool               `json:"is_private"`
	CreatorId string             `json:"creator_id"`
	Users     []types.User       `json:"users"`
	Strokes   []types.Drawable   `json:"strokes"`
	UndoStack [][]types.Drawable `json:"undo_stack"`
	RedoStack [][]types.Drawable `json:"redo_stack"`
	Messages  []types.Message    `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`

	historyDepth int
}

// NewRoom creates an empty room owned by creatorId. Every room other than the
// public one is private.
func NewRoom(roomId, creatorId string) *Room {
	now := time.Now().UTC()
	return &Room{
		RoomId:    roomId,
		IsPrivate: roomId != PublicRoomId,
		CreatorId: creatorId,
		Users:     []types.User{},
		Strokes:   []types.Drawable{},
		UndoStack: [][]types.Drawable{},
		RedoStack: [][]types.Drawable{},
		Messages:  []types.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Room) IsPublic() bool {
	return r.RoomId == PublicRoomId
}

// SetHistoryDepth bounds the undo and redo stacks. Values below one disable
// the bound.
func (r *Room) SetHistoryDepth(n int) {
	r.historyDepth = n
	r.UndoStack = r.trim(r.UndoStack)
	r.RedoStack = r.trim(r.RedoStack)
}

func (r *Room) trim(stack [][]types.Drawable) [][]types.Drawable {
	if r.historyDepth > 0 && len(stack) > r.historyDepth {
		return slices.Clone(stack[len(stack)-r.historyDepth:])
	}
	return stack
}

func (r *Room) push(stack [][]types.Drawable, snapshot []types.Drawable) [][]types.Drawable {
	return r.trim(append(stack, snapshot))
}

func (r *Room) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// ApplyMutation replaces the stroke list with fn applied to a deep copy of it,
// recording the previous list for undo and discarding redo history.
func (r *Room) ApplyMutation(fn func(strokes []types.Drawable) []types.Drawable) {
	before := types.CloneStrokes(r.Strokes)
	after := fn(types.CloneStrokes(r.Strokes))
	if after == nil {
		after = []types.Drawable{}
	}

	r.UndoStack = r.push(r.UndoStack, before)
	r.Strokes = after
	r.RedoStack = [][]types.Drawable{}
	r.touch()
}

func (r *Room) AppendDrawable(d types.Drawable) {
	r.ApplyMutation(func(strokes []types.Drawable) []types.Drawable {
		return append(strokes, d.Clone())
	})
}

func (r *Room) Clear() {
	r.ApplyMutation(func([]types.Drawable) []types.Drawable {
		return []types.Drawable{}
	})
}

// UpdateText replaces the element carrying the same id as d. Nothing is
// recorded when no such element exists.
func (r *Room) UpdateText(d types.Drawable) error {
	id := d.Id()
	idx := slices.IndexFunc(r.Strokes, func(s types.Drawable) bool {
		return id != "" && s.Id() == id
	})
	if idx < 0 {
		return ErrDrawableNotFound
	}

	r.ApplyMutation(func(strokes []types.Drawable) []types.Drawable {
		strokes[idx] = d.Clone()
		return strokes
	})
	return nil
}

// CommitErase installs the result of an erase gesture. original is recorded
// verbatim as the undo snapshot, as computed by the erasing client.
func (r *Room) CommitErase(original, final []types.Drawable) {
	r.UndoStack = r.push(r.UndoStack, types.CloneStrokes(original))
	r.Strokes = types.CloneStrokes(final)
	r.RedoStack = [][]types.Drawable{}
	r.touch()
}

// Undo restores the most recent snapshot. ok is false when there is nothing
// to undo, in which case the room is unchanged.
func (r *Room) Undo() (strokes []types.Drawable, ok bool) {
	if len(r.UndoStack) == 0 {
		return nil, false
	}

	prev := r.UndoStack[len(r.UndoStack)-1]
	r.UndoStack = r.UndoStack[:len(r.UndoStack)-1]
	r.RedoStack = r.push(r.RedoStack, r.Strokes)
	r.Strokes = prev
	r.touch()

	return r.Strokes, true
}

func (r *Room) Redo() (strokes []types.Drawable, ok bool) {
	if len(r.RedoStack) == 0 {
		return nil, false
	}

	next := r.RedoStack[len(r.RedoStack)-1]
	r.RedoStack = r.RedoStack[:len(r.RedoStack)-1]
	r.UndoStack = r.push(r.UndoStack, r.Strokes)
	r.Strokes = next
	r.touch()

	return r.Strokes, true
}

func (r *Room) AppendMessage(msg types.Message) {
	r.Messages = append(r.Messages, msg)
	r.touch()
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	c := *r
	c.Users = slices.Clone(r.Users)
	c.Messages = slices.Clone(r.Messages)
	c.Strokes = types.CloneStrokes(r.Strokes)
	c.UndoStack = cloneStack(r.UndoStack)
	c.RedoStack = cloneStack(r.RedoStack)
	return &c
}

func cloneStack(stack [][]types.Drawable) [][]types.Drawable {
	out := make([][]types.Drawable, len(stack))
	for i, s := range stack {
		out[i] = types.CloneStrokes(s)
	}
	return out
}

// Info summarizes the room for listing.
func (r *Room) Info() types.RoomInfo {
	return types.RoomInfo{
		RoomId:      r.RoomId,
		IsPrivate:   r.IsPrivate,
		CreatorId:   r.CreatorId,
		UserCount:   len(r.Users),
		StrokeCount: len(r.Strokes),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
