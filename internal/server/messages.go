package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

var (
	ErrNoPayload        = errors.New("message has no payload")
	ErrMultiplePayloads = errors.New("message has more than one payload")
	ErrNotText          = errors.New("payload is not a text element")
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is an inbound frame. Exactly one payload field is set.
type ClientMessage struct {
	BaseMessage
	JoinRoom          *JoinRoom          `json:"join_room,omitempty"`
	LeaveRoom         *RoomRef           `json:"leave_room,omitempty"`
	ChangePermissions *ChangePermissions `json:"change_permissions,omitempty"`
	Drawing           *Drawing           `json:"drawing,omitempty"`
	Text              *Drawing           `json:"text,omitempty"`
	UpdateText        *Drawing           `json:"update_text,omitempty"`
	Clear             *RoomRef           `json:"clear,omitempty"`
	Undo              *RoomRef           `json:"undo,omitempty"`
	Redo              *RoomRef           `json:"redo,omitempty"`
	EraseCommit       *EraseCommit       `json:"erase_commit,omitempty"`
	LiveErase         *LiveErase         `json:"live_erase,omitempty"`
	SendMessage       *SendMessage       `json:"send_message,omitempty"`
	JoinVoice         *RoomRef           `json:"join_voice,omitempty"`
	SendingSignal     *SendingSignal     `json:"sending_signal,omitempty"`
	ReturningSignal   *ReturningSignal   `json:"returning_signal,omitempty"`
	client            *Client
}

type RoomRef struct {
	RoomId string `json:"room_id" validate:"required,max=64"`
}

type JoinRoom struct {
	RoomId      string `json:"room_id" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=64"`
}

type ChangePermissions struct {
	RoomId     string           `json:"room_id" validate:"required,max=64"`
	TargetId   string           `json:"target_id" validate:"required"`
	Permission types.Permission `json:"permission" validate:"oneof=edit view"`
}

type Drawing struct {
	RoomId string         `json:"room_id" validate:"required,max=64"`
	Data   types.Drawable `json:"data"`
}

type EraseCommit struct {
	RoomId          string           `json:"room_id" validate:"required,max=64"`
	OriginalStrokes []types.Drawable `json:"original_strokes"`
	FinalStrokes    []types.Drawable `json:"final_strokes"`
}

// LiveErase is both the inbound eraser position and its relayed form.
type LiveErase struct {
	RoomId string  `json:"room_id" validate:"required,max=64"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius" validate:"gt=0"`
}

type SendMessage struct {
	RoomId  string `json:"room_id" validate:"required,max=64"`
	Content string `json:"content" validate:"required,max=4096"`
}

// SendingSignal carries an opaque voice offer. The caller is always the
// sending connection; a caller_id in the payload is ignored.
type SendingSignal struct {
	UserToSignal string          `json:"user_to_signal" validate:"required"`
	CallerId     string          `json:"caller_id,omitempty"`
	Signal       json.RawMessage `json:"signal" validate:"required"`
}

type ReturningSignal struct {
	CallerId string          `json:"caller_id" validate:"required"`
	Signal   json.RawMessage `json:"signal" validate:"required"`
}

func (m *ClientMessage) payload() (any, error) {
	var found []any
	add := func(set bool, v any) {
		if set {
			found = append(found, v)
		}
	}

	add(m.JoinRoom != nil, m.JoinRoom)
	add(m.LeaveRoom != nil, m.LeaveRoom)
	add(m.ChangePermissions != nil, m.ChangePermissions)
	add(m.Drawing != nil, m.Drawing)
	add(m.Text != nil, m.Text)
	add(m.UpdateText != nil, m.UpdateText)
	add(m.Clear != nil, m.Clear)
	add(m.Undo != nil, m.Undo)
	add(m.Redo != nil, m.Redo)
	add(m.EraseCommit != nil, m.EraseCommit)
	add(m.LiveErase != nil, m.LiveErase)
	add(m.SendMessage != nil, m.SendMessage)
	add(m.JoinVoice != nil, m.JoinVoice)
	add(m.SendingSignal != nil, m.SendingSignal)
	add(m.ReturningSignal != nil, m.ReturningSignal)

	switch len(found) {
	case 0:
		return nil, ErrNoPayload
	case 1:
		return found[0], nil
	default:
		return nil, ErrMultiplePayloads
	}
}

// RoomId returns the room a room-scoped message targets.
func (m *ClientMessage) RoomId() string {
	switch {
	case m.JoinRoom != nil:
		return m.JoinRoom.RoomId
	case m.LeaveRoom != nil:
		return m.LeaveRoom.RoomId
	case m.ChangePermissions != nil:
		return m.ChangePermissions.RoomId
	case m.Drawing != nil:
		return m.Drawing.RoomId
	case m.Text != nil:
		return m.Text.RoomId
	case m.UpdateText != nil:
		return m.UpdateText.RoomId
	case m.Clear != nil:
		return m.Clear.RoomId
	case m.Undo != nil:
		return m.Undo.RoomId
	case m.Redo != nil:
		return m.Redo.RoomId
	case m.EraseCommit != nil:
		return m.EraseCommit.RoomId
	case m.LiveErase != nil:
		return m.LiveErase.RoomId
	case m.SendMessage != nil:
		return m.SendMessage.RoomId
	case m.JoinVoice != nil:
		return m.JoinVoice.RoomId
	}
	return ""
}

// validateMessage checks the envelope shape, the payload's struct tags and
// any drawables it carries.
func validateMessage(v *validator.Validate, m *ClientMessage) error {
	p, err := m.payload()
	if err != nil {
		return err
	}

	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	switch {
	case m.Drawing != nil:
		return m.Drawing.Data.Validate()
	case m.Text != nil:
		return validateText(m.Text.Data)
	case m.UpdateText != nil:
		return validateText(m.UpdateText.Data)
	case m.EraseCommit != nil:
		for _, strokes := range [][]types.Drawable{m.EraseCommit.OriginalStrokes, m.EraseCommit.FinalStrokes} {
			for _, d := range strokes {
				if err := d.Validate(); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func validateText(d types.Drawable) error {
	if d.Kind != types.KindText {
		return fmt.Errorf("%w: %q", ErrNotText, d.Kind)
	}
	return d.Validate()
}

type ServerMessage struct {
	BaseMessage
	Response                *Response           `json:"response,omitempty"`
	Connected               *Connected          `json:"connected,omitempty"`
	RoomJoined              *board.Snapshot     `json:"room_joined,omitempty"`
	UserListUpdated         *UserListUpdated    `json:"user_list_updated,omitempty"`
	PermissionsUpdated      *PermissionsUpdated `json:"permissions_updated,omitempty"`
	Strokes                 *Strokes            `json:"strokes,omitempty"`
	LiveErase               *LiveErase          `json:"live_erase,omitempty"`
	NewMessage              *NewMessage         `json:"new_message,omitempty"`
	AllOtherUsers           *AllOtherUsers      `json:"all_other_users,omitempty"`
	UserJoined              *UserJoined         `json:"user_joined,omitempty"`
	ReceivingReturnedSignal *ReturnedSignal     `json:"receiving_returned_signal,omitempty"`
	SkipClient              *Client             `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Connected struct {
	ConnectionId string `json:"connection_id"`
	Token        string `json:"token"`
}

type UserListUpdated struct {
	RoomId string       `json:"room_id"`
	Users  []types.User `json:"users"`
}

type PermissionsUpdated struct {
	RoomId      string           `json:"room_id"`
	Permissions types.Permission `json:"permissions"`
}

// Strokes always carries the complete document.
type Strokes struct {
	RoomId  string           `json:"room_id"`
	Strokes []types.Drawable `json:"strokes"`
}

type NewMessage struct {
	RoomId  string        `json:"room_id"`
	Message types.Message `json:"message"`
}

type AllOtherUsers struct {
	RoomId  string   `json:"room_id"`
	UserIds []string `json:"user_ids"`
}

type UserJoined struct {
	Signal   json.RawMessage `json:"signal"`
	CallerId string          `json:"caller_id"`
}

type ReturnedSignal struct {
	Signal json.RawMessage `json:"signal"`
	Id     string          `json:"id"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func NewConnected(connId, token string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Connected:   &Connected{ConnectionId: connId, Token: token},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
