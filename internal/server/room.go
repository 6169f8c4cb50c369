package server

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/geometry"
	"github.com/npezzotti/go-whiteboard/internal/stats"
	"github.com/npezzotti/go-whiteboard/internal/types"
)

// maxTrailLength caps the eraser contacts recorded per connection.
const maxTrailLength = 10000

type exitReq struct {
	force bool
	done  chan bool
}

// Room is the actor for one loaded room. Every read and write of doc happens
// on the start goroutine, so mutations are applied, persisted and broadcast
// in a single order.
type Room struct {
	roomId        string
	bs            *BoardServer
	log           *log.Logger
	doc           *board.Room
	clients       map[string]*Client
	trails        map[string][]geometry.Contact
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	// killTimer unloads the room once it has been empty for a while
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func newRoom(roomId string, bs *BoardServer) *Room {
	killTimer := time.NewTimer(bs.opts.IdleRoomTimeout)
	killTimer.Stop()

	return &Room{
		roomId:        roomId,
		bs:            bs,
		log:           bs.log,
		clients:       make(map[string]*Client),
		trails:        make(map[string][]geometry.Contact),
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		killTimer:     killTimer,
		exit:          make(chan exitReq, 1),
		done:          make(chan struct{}),
	}
}

func (r *Room) start() {
	defer close(r.done)

	r.log.Printf("starting room %q", r.roomId)

	for {
		select {
		case msg := <-r.joinChan:
			r.handleJoin(msg)
		case msg := <-r.leaveChan:
			r.handleLeave(msg)
		case msg := <-r.clientMsgChan:
			r.handleClientMessage(msg)
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			if r.handleRoomExit(e) {
				return
			}
		}
	}
}

// post queues a room-scoped message without blocking the caller.
func (r *Room) post(msg *ClientMessage) bool {
	select {
	case r.clientMsgChan <- msg:
		return true
	default:
		return false
	}
}

// leave queues a leave, waiting for room capacity unless the room has exited.
func (r *Room) leave(msg *ClientMessage) bool {
	select {
	case r.leaveChan <- msg:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.roomId)
	select {
	case r.bs.unloadRoomChan <- unloadRoomRequest{roomId: r.roomId}:
	default:
		r.resetKillTimer()
	}
}

func (r *Room) handleRoomExit(e exitReq) bool {
	if !e.force && (len(r.clients) > 0 || len(r.joinChan) > 0) {
		e.done <- false
		return false
	}

	r.log.Printf("room %q is exiting", r.roomId)
	r.killTimer.Stop()

	r.refusePendingJoins()

	if len(r.clients) > 0 && r.doc != nil {
		r.commit(func(doc *board.Room) bool {
			for id := range r.clients {
				doc.RemoveUser(id)
			}
			return true
		})
	}

	for id, c := range r.clients {
		c.delRoom(r.roomId)
		delete(r.clients, id)
	}

	e.done <- true
	return true
}

func (r *Room) refusePendingJoins() {
	for {
		select {
		case msg := <-r.joinChan:
			msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
		default:
			return
		}
	}
}

func (r *Room) resetKillTimer() {
	if len(r.clients) == 0 {
		r.killTimer.Reset(r.bs.opts.IdleRoomTimeout)
	}
}

// ensureLoaded fetches the document on first use, creating it with
// creatorId as owner when the store has no such room.
func (r *Room) ensureLoaded(creatorId string) (created bool, err error) {
	if r.doc != nil {
		return false, nil
	}

	ctx, cancel := r.bs.storeContext()
	defer cancel()

	doc, err := r.bs.repo.GetRoom(ctx, r.roomId)
	switch {
	case errors.Is(err, database.ErrRoomNotFound):
		r.log.Printf("creating room %q for %q", r.roomId, creatorId)
		doc = board.NewRoom(r.roomId, creatorId)
		created = true
	case err != nil:
		return false, fmt.Errorf("get room: %w", err)
	default:
		// nobody is connected to a room that was not loaded
		for _, u := range slices.Clone(doc.Users) {
			doc.RemoveUser(u.Id)
		}
	}

	doc.SetHistoryDepth(r.bs.opts.HistoryDepth)
	r.doc = doc
	return created, nil
}

// commit runs fn against the document and persists the result. If fn
// declines or the save fails, the document is left as it was before.
func (r *Room) commit(fn func(doc *board.Room) bool) bool {
	before := r.doc.Clone()
	if !fn(r.doc) {
		return false
	}

	ctx, cancel := r.bs.storeContext()
	defer cancel()

	if err := r.bs.repo.SaveRoom(ctx, r.doc); err != nil {
		r.log.Printf("SaveRoom %q: %v", r.roomId, err)
		r.bs.stats.Incr(stats.NumPersistFailures)
		r.doc = before
		return false
	}

	return true
}

func (r *Room) handleJoin(msg *ClientMessage) {
	r.killTimer.Stop()
	c := msg.client

	created, err := r.ensureLoaded(c.id)
	if err != nil {
		r.log.Printf("load room %q: %v", r.roomId, err)
		c.queueMessage(ErrInternalError(msg.Id))
		r.resetKillTimer()
		return
	}

	if !r.addClient(c) {
		r.log.Printf("connection %q closed before joining room %q", c.id, r.roomId)
		if created {
			r.doc = nil
		}
		r.resetKillTimer()
		return
	}

	name := msg.JoinRoom.DisplayName
	if !r.commit(func(doc *board.Room) bool {
		doc.UpsertUser(c.id, name)
		return true
	}) {
		if created {
			r.doc = nil
		}
		r.removeClient(c)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	snapshot := r.doc.SnapshotFor(c.id)
	c.queueMessage(NoErrOK(msg.Id, nil))
	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Id: msg.Id, Timestamp: Now()},
		RoomJoined:  &snapshot,
	})

	r.broadcastUsers()
}

func (r *Room) handleLeave(msg *ClientMessage) {
	c := msg.client
	if _, ok := r.clients[c.id]; !ok {
		r.log.Printf("connection %q not found in room %q", c.id, r.roomId)
		return
	}

	r.removeClient(c)

	if r.commit(func(doc *board.Room) bool {
		return doc.RemoveUser(c.id)
	}) {
		r.broadcastUsers()
	}

	if msg.Id > 0 {
		c.queueMessage(NoErrOK(msg.Id, nil))
	}
}

func (r *Room) addClient(c *Client) bool {
	if !c.addRoom(r) {
		return false
	}
	r.clients[c.id] = c
	return true
}

func (r *Room) removeClient(c *Client) {
	delete(r.clients, c.id)
	delete(r.trails, c.id)
	c.delRoom(r.roomId)

	r.log.Printf("removed connection %q from room %q", c.id, r.roomId)
	if len(r.clients) == 0 {
		r.log.Printf("no connections in %q, starting kill timer", r.roomId)
		r.resetKillTimer()
	}
}

func (r *Room) broadcast(msg *ServerMessage) {
	msg.Timestamp = Now()

	for _, client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}

func (r *Room) broadcastUsers() {
	r.broadcast(&ServerMessage{
		UserListUpdated: &UserListUpdated{
			RoomId: r.roomId,
			Users:  slices.Clone(r.doc.Users),
		},
	})
}

func (r *Room) broadcastStrokes() {
	r.broadcast(&ServerMessage{
		Strokes: &Strokes{
			RoomId:  r.roomId,
			Strokes: types.CloneStrokes(r.doc.Strokes),
		},
	})
}
