package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/checkers-match-backend/internal/types"
)

const DefaultSendBuffer = 32

// Client is one live socket as seen by the room loops: an outbound queue
// plus a done channel closed when the socket must go away.
type Client struct {
	ID   string
	send chan types.ServerMessage
	done chan struct{}
	once sync.Once
	code string // guarded by Connections.mu
}

func (c *Client) Send() <-chan types.ServerMessage { return c.send }

// Done is closed on unregister or when the client fell too far behind.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) kill() { c.once.Do(func() { close(c.done) }) }

// Connections indexes live clients and the room each one is seated in. It
// is the room.Outbox of the process.
type Connections struct {
	mu      sync.RWMutex
	clients map[string]*Client
	bufSize int
	log     *zap.Logger
}

func NewConnections(bufSize int, log *zap.Logger) *Connections {
	if bufSize <= 0 {
		bufSize = DefaultSendBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Connections{
		clients: make(map[string]*Client),
		bufSize: bufSize,
		log:     log,
	}
}

func (cs *Connections) Register(id string) *Client {
	c := &Client{
		ID:   id,
		send: make(chan types.ServerMessage, cs.bufSize),
		done: make(chan struct{}),
	}
	cs.mu.Lock()
	cs.clients[id] = c
	n := len(cs.clients)
	cs.mu.Unlock()

	cs.log.Debug("connection_registered", zap.String("conn_id", id), zap.Int("connections", n))
	return c
}

// Unregister forgets the client and returns the room code it was seated in,
// if any.
func (cs *Connections) Unregister(id string) string {
	cs.mu.Lock()
	c, ok := cs.clients[id]
	var code string
	if ok {
		code = c.code
		delete(cs.clients, id)
	}
	cs.mu.Unlock()
	if !ok {
		return ""
	}

	c.kill()
	cs.log.Debug("connection_unregistered", zap.String("conn_id", id), zap.String("code", code))
	return code
}

// SendTo enqueues without blocking. A client whose queue is full is dropped;
// its socket handler then runs the normal disconnect path.
func (cs *Connections) SendTo(connID, eventType string, payload any) {
	cs.mu.RLock()
	c, ok := cs.clients[connID]
	cs.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- types.ServerMessage{Type: eventType, Data: payload}:
	default:
		cs.log.Warn("send_buffer_full", zap.String("conn_id", connID), zap.String("type", eventType))
		c.kill()
	}
}

// Attach records that connID is now a member of code. Rooms call it from
// their loop, ordered with Detach.
func (cs *Connections) Attach(connID, code string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok := cs.clients[connID]; ok {
		c.code = code
	}
}

// Detach clears the seat only if it still points at code.
func (cs *Connections) Detach(connID, code string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok := cs.clients[connID]; ok && c.code == code {
		c.code = ""
	}
}

func (cs *Connections) SeatOf(connID string) (string, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.clients[connID]
	if !ok || c.code == "" {
		return "", false
	}
	return c.code, true
}

func (cs *Connections) Count() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.clients)
}
