package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-whiteboard/internal/board"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/stats"
)

const (
	defaultIdleRoomTimeout = 30 * time.Second
	defaultStoreTimeout    = 5 * time.Second
)

var ErrClientExists = errors.New("connection id already live")

type Options struct {
	// HistoryDepth bounds each undo and redo stack; zero means unbounded.
	HistoryDepth int
	// IdleRoomTimeout is how long an empty room stays loaded.
	IdleRoomTimeout time.Duration
	// StoreTimeout bounds each repository call.
	StoreTimeout time.Duration
	// StrictErase derives erase results from the recorded eraser trail
	// instead of trusting the arrays sent by the client.
	StrictErase bool
}

func DefaultOptions() Options {
	return Options{
		HistoryDepth:    board.DefaultHistoryDepth,
		IdleRoomTimeout: defaultIdleRoomTimeout,
		StoreTimeout:    defaultStoreTimeout,
	}
}

type unloadRoomRequest struct {
	roomId string
}

type stopReq struct {
	done chan struct{}
}

// BoardServer owns the table of loaded rooms and the registry of live
// connections. The room table is only written by the Run goroutine.
type BoardServer struct {
	log            *log.Logger
	repo           database.Repository
	stats          stats.StatsProvider
	opts           Options
	validate       *validator.Validate
	joinChan       chan *ClientMessage
	unloadRoomChan chan unloadRoomRequest
	stop           chan stopReq
	roomsMap       sync.Map
	numRooms       int
	clients        map[string]*Client
	clientsLock    sync.RWMutex
}

func NewBoardServer(logger *log.Logger, repo database.Repository, su stats.StatsProvider, opts Options) (*BoardServer, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if opts.IdleRoomTimeout <= 0 {
		opts.IdleRoomTimeout = defaultIdleRoomTimeout
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}

	for _, name := range []string{
		stats.NumActiveRooms,
		stats.NumActiveClients,
		stats.NumMutations,
		stats.NumPersistFailures,
	} {
		su.RegisterMetric(name)
	}

	return &BoardServer{
		log:            logger,
		repo:           repo,
		stats:          su,
		opts:           opts,
		validate:       validator.New(),
		joinChan:       make(chan *ClientMessage, 256),
		unloadRoomChan: make(chan unloadRoomRequest, 256),
		stop:           make(chan stopReq),
		clients:        make(map[string]*Client),
	}, nil
}

func (bs *BoardServer) Run() {
	for {
		select {
		case msg := <-bs.joinChan:
			bs.handleJoinRoom(msg)
		case req := <-bs.unloadRoomChan:
			bs.unloadRoom(req.roomId, false)
		case req := <-bs.stop:
			bs.log.Println("shutting down rooms")
			bs.unloadAllRooms()
			bs.stopClients()
			close(req.done)
			return
		}
	}
}

// Shutdown unloads every room and disconnects every client.
func (bs *BoardServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case bs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleJoinRoom routes a join to the room's actor, starting one if the
// room is not loaded. The actor loads or creates the document itself.
func (bs *BoardServer) handleJoinRoom(msg *ClientMessage) {
	roomId := msg.JoinRoom.RoomId

	r, ok := bs.getRoom(roomId)
	if !ok {
		r = newRoom(roomId, bs)
		bs.addRoom(roomId, r)
		go r.start()
	}

	select {
	case r.joinChan <- msg:
	default:
		bs.log.Printf("join channel full on room %q", roomId)
		msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// unloadRoom asks a room to exit. Unless forced, a room that still has
// connections or pending joins refuses and stays loaded.
func (bs *BoardServer) unloadRoom(roomId string, force bool) bool {
	r, ok := bs.getRoom(roomId)
	if !ok {
		return false
	}

	done := make(chan bool, 1)
	r.exit <- exitReq{force: force, done: done}
	if !<-done {
		bs.log.Printf("room %q is active, keeping it loaded", roomId)
		return false
	}

	bs.removeRoom(roomId)
	bs.log.Printf("unloaded room %q", roomId)
	return true
}

func (bs *BoardServer) unloadAllRooms() {
	var pending []struct {
		roomId string
		done   chan bool
	}

	bs.roomsMap.Range(func(key, value any) bool {
		r := value.(*Room)
		done := make(chan bool, 1)
		r.exit <- exitReq{force: true, done: done}
		pending = append(pending, struct {
			roomId string
			done   chan bool
		}{key.(string), done})
		return true
	})

	for _, p := range pending {
		<-p.done
		bs.removeRoom(p.roomId)
	}
}

func (bs *BoardServer) stopClients() {
	bs.clientsLock.RLock()
	defer bs.clientsLock.RUnlock()

	for _, c := range bs.clients {
		c.stopClient()
	}
}

func (bs *BoardServer) addRoom(roomId string, r *Room) {
	bs.roomsMap.Store(roomId, r)
	bs.numRooms++
	bs.stats.Incr(stats.NumActiveRooms)
}

func (bs *BoardServer) getRoom(roomId string) (*Room, bool) {
	v, ok := bs.roomsMap.Load(roomId)
	if !ok {
		return nil, false
	}
	return v.(*Room), true
}

func (bs *BoardServer) removeRoom(roomId string) {
	if _, ok := bs.roomsMap.LoadAndDelete(roomId); ok {
		bs.numRooms--
		bs.stats.Decr(stats.NumActiveRooms)
	}
}

// RegisterClient adds a connection to the registry. It fails if another
// live connection already holds the same id.
func (bs *BoardServer) RegisterClient(c *Client) error {
	bs.clientsLock.Lock()
	defer bs.clientsLock.Unlock()

	if _, ok := bs.clients[c.id]; ok {
		return ErrClientExists
	}

	bs.clients[c.id] = c
	bs.stats.Incr(stats.NumActiveClients)
	bs.log.Printf("registered connection %q", c.id)
	return nil
}

func (bs *BoardServer) DeRegisterClient(c *Client) {
	bs.clientsLock.Lock()
	defer bs.clientsLock.Unlock()

	if cur, ok := bs.clients[c.id]; ok && cur == c {
		delete(bs.clients, c.id)
		bs.stats.Decr(stats.NumActiveClients)
		bs.log.Printf("deregistered connection %q", c.id)
	}
}

func (bs *BoardServer) getClient(id string) (*Client, bool) {
	bs.clientsLock.RLock()
	defer bs.clientsLock.RUnlock()

	c, ok := bs.clients[id]
	return c, ok
}

// IsLive reports whether a connection with the given id is registered.
func (bs *BoardServer) IsLive(id string) bool {
	_, ok := bs.getClient(id)
	return ok
}

func (bs *BoardServer) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), bs.opts.StoreTimeout)
}
