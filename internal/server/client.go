package server

import (
	"encoding/json"
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Client is one websocket connection. It starts out joined to no room and
// may join any number of rooms over its lifetime.
type Client struct {
	id        string
	conn      *websocket.Conn
	bs        *BoardServer
	log       *log.Logger
	send      chan *ServerMessage
	rooms     map[string]*Room
	roomsLock sync.RWMutex
	// closed is set once the connection has started leaving its rooms
	closed   bool
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(id string, conn *websocket.Conn, bs *BoardServer, l *log.Logger) *Client {
	return &Client{
		id:    id,
		conn:  conn,
		bs:    bs,
		log:   l,
		send:  make(chan *ServerMessage, 256),
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

// SendConnected tells the connection its identity and resume token.
func (c *Client) SendConnected(token string) bool {
	return c.queueMessage(NewConnected(c.id, token))
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Printf("error parsing message from %q: %v", c.id, err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		if err := validateMessage(c.bs.validate, &msg); err != nil {
			c.log.Printf("invalid message from %q: %v", c.id, err)
			c.queueMessage(ErrInvalidMessage(msg.Id))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.JoinRoom != nil:
		c.joinRoom(msg)
	case msg.LeaveRoom != nil:
		c.leaveRoom(msg)
	case msg.SendingSignal != nil:
		c.relaySignal(msg)
	case msg.ReturningSignal != nil:
		c.returnSignal(msg)
	default:
		r := c.getRoom(msg.RoomId())
		if r == nil {
			c.log.Printf("ignoring message from %q: not joined to room %q", c.id, msg.RoomId())
			return
		}

		if !r.post(msg) {
			c.log.Printf("clientMsgChan full for room %q", r.roomId)
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("failed to send message to %q, channel is full", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.bs.DeRegisterClient(c)
	c.leaveAllRooms()
	c.stopClient()
}

// leaveAllRooms removes the connection from every room it joined. It blocks
// until each room has accepted the leave or exited.
func (c *Client) leaveAllRooms() {
	c.roomsLock.Lock()
	c.closed = true
	rooms := slices.Collect(maps.Values(c.rooms))
	c.roomsLock.Unlock()

	for _, r := range rooms {
		r.leave(&ClientMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			LeaveRoom:   &RoomRef{RoomId: r.roomId},
			client:      c,
		})
	}
}

func (c *Client) joinRoom(msg *ClientMessage) {
	select {
	case c.bs.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	r := c.getRoom(msg.LeaveRoom.RoomId)
	if r == nil {
		c.log.Printf("leave from %q: not joined to room %q", c.id, msg.LeaveRoom.RoomId)
		return
	}

	select {
	case r.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full for room %q", r.roomId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, id)
}

// addRoom records a joined room. It fails once the connection is closing.
func (c *Client) addRoom(r *Room) bool {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	if c.closed {
		return false
	}
	c.rooms[r.roomId] = r
	return true
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	return c.rooms[id]
}
