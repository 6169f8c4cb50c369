package server

import (
	"errors"
	"slices"

	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/npezzotti/go-whiteboard/internal/geometry"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

// handleClientMessage dispatches a room-scoped message. Messages from
// connections that have not joined, and mutations from connections without
// edit rights, are dropped without a reply.
func (r *Room) handleClientMessage(msg *ClientMessage) {
	c := msg.client
	if _, ok := r.clients[c.id]; !ok || r.doc == nil {
		r.log.Printf("ignoring message from %q: not joined to room %q", c.id, r.roomId)
		return
	}

	switch {
	case msg.ChangePermissions != nil:
		r.handleChangePermissions(msg)
	case msg.SendMessage != nil:
		r.handleSendMessage(msg)
	case msg.JoinVoice != nil:
		r.handleJoinVoice(msg)
	default:
		if !r.doc.CanMutate(c.id) {
			r.log.Printf("ignoring mutation from %q in room %q: view only", c.id, r.roomId)
			return
		}

		if msg.LiveErase != nil {
			r.handleLiveErase(msg)
			return
		}
		r.handleMutation(msg)
	}
}

func (r *Room) handleMutation(msg *ClientMessage) {
	var ok bool
	switch {
	case msg.Drawing != nil:
		ok = r.commit(func(doc *board.Room) bool {
			doc.AppendDrawable(msg.Drawing.Data)
			return true
		})
	case msg.Text != nil:
		ok = r.commit(func(doc *board.Room) bool {
			doc.AppendDrawable(msg.Text.Data)
			return true
		})
	case msg.UpdateText != nil:
		ok = r.commit(func(doc *board.Room) bool {
			err := doc.UpdateText(msg.UpdateText.Data)
			if errors.Is(err, board.ErrDrawableNotFound) {
				r.log.Printf("update_text in room %q: no element %q", r.roomId, msg.UpdateText.Data.Id())
			}
			return err == nil
		})
	case msg.Clear != nil:
		ok = r.commit(func(doc *board.Room) bool {
			doc.Clear()
			return true
		})
	case msg.Undo != nil:
		ok = r.commit(func(doc *board.Room) bool {
			_, changed := doc.Undo()
			return changed
		})
	case msg.Redo != nil:
		ok = r.commit(func(doc *board.Room) bool {
			_, changed := doc.Redo()
			return changed
		})
	case msg.EraseCommit != nil:
		ok = r.commitErase(msg)
	default:
		r.log.Printf("unhandled message in room %q", r.roomId)
	}

	if ok {
		r.bs.stats.Incr(stats.NumMutations)
		r.broadcastStrokes()
	}
}

// commitErase installs the result of an erase gesture. In strict mode the
// result is recomputed from the connection's recorded trail and the arrays
// in the message are ignored.
func (r *Room) commitErase(msg *ClientMessage) bool {
	c := msg.client

	if r.bs.opts.StrictErase {
		trail := r.trails[c.id]
		delete(r.trails, c.id)

		final, changed := geometry.EraseTrail(r.doc.Strokes, trail)
		if !changed {
			return false
		}

		return r.commit(func(doc *board.Room) bool {
			doc.ApplyMutation(func([]types.Drawable) []types.Drawable {
				return final
			})
			return true
		})
	}

	ec := msg.EraseCommit
	return r.commit(func(doc *board.Room) bool {
		doc.CommitErase(ec.OriginalStrokes, ec.FinalStrokes)
		return true
	})
}

func (r *Room) handleLiveErase(msg *ClientMessage) {
	c := msg.client
	le := msg.LiveErase

	if r.bs.opts.StrictErase && len(r.trails[c.id]) < maxTrailLength {
		r.trails[c.id] = append(r.trails[c.id], geometry.Contact{X: le.X, Y: le.Y, Radius: le.Radius})
	}

	r.broadcast(&ServerMessage{
		LiveErase:  le,
		SkipClient: c,
	})
}

func (r *Room) handleChangePermissions(msg *ClientMessage) {
	c := msg.client
	cp := msg.ChangePermissions

	var updated types.User
	if !r.commit(func(doc *board.Room) bool {
		u, err := doc.SetPermission(c.id, cp.TargetId, cp.Permission)
		if err != nil {
			r.log.Printf("change permissions in room %q by %q: %v", r.roomId, c.id, err)
			return false
		}
		updated = u
		return true
	}) {
		return
	}

	if target, ok := r.clients[updated.Id]; ok {
		target.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			PermissionsUpdated: &PermissionsUpdated{
				RoomId:      r.roomId,
				Permissions: updated.Permissions,
			},
		})
	}

	r.broadcastUsers()
}

func (r *Room) handleSendMessage(msg *ClientMessage) {
	c := msg.client

	name := board.AnonymousName
	if u, ok := r.doc.User(c.id); ok {
		name = u.Name
	}

	chat := types.Message{
		SenderId:   c.id,
		SenderName: name,
		Content:    msg.SendMessage.Content,
		Timestamp:  msg.Timestamp,
	}

	if !r.commit(func(doc *board.Room) bool {
		doc.AppendMessage(chat)
		return true
	}) {
		return
	}

	r.broadcast(&ServerMessage{
		NewMessage: &NewMessage{
			RoomId:  r.roomId,
			Message: chat,
		},
	})
}

func (r *Room) handleJoinVoice(msg *ClientMessage) {
	c := msg.client

	others := make([]string, 0, len(r.clients))
	for id := range r.clients {
		if id != c.id {
			others = append(others, id)
		}
	}
	slices.Sort(others)

	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Id: msg.Id, Timestamp: Now()},
		AllOtherUsers: &AllOtherUsers{
			RoomId:  r.roomId,
			UserIds: others,
		},
	})
}
