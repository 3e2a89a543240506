// Package webfanout is a gorilla/websocket broadcaster that pushes
// every fused sample, JSON-encoded, to whichever browser clients are
// currently connected on its path. Each connection gets its own
// streamer.Consumer and its own lossy queue via the streamer, rather
// than a hand-rolled broadcast list.
package webfanout

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sixaxis-fusion/imud/internal/sample"
	"github.com/sixaxis-fusion/imud/internal/streamer"
)

// Remover lets a connection deregister itself from the streamer after
// a fatal write error, without blocking on its own worker goroutine —
// satisfied by *streamer.Streamer's RemoveConsumerAsync.
type Remover interface {
	RemoveConsumerAsync(id uint64)
}

// Registrar registers a new streamer.Consumer — satisfied by
// *streamer.Streamer's AddConsumer.
type Registrar interface {
	AddConsumer(c streamer.Consumer) (id uint64, ok bool)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Fanout serves /ws, upgrading each request to a websocket connection
// and registering a streamer.Consumer for its lifetime.
type Fanout struct {
	remover  Remover
	register Registrar
}

// New builds a Fanout. register and remover are normally the same
// *streamer.Streamer instance.
func New(register Registrar, remover Remover) *Fanout {
	return &Fanout{remover: remover, register: register}
}

// Handler returns the http.HandlerFunc to mount at the fan-out's path.
func (f *Fanout) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("webfanout: upgrade failed: %v", err)
			return
		}

		c := &connConsumer{conn: conn}
		id, ok := f.register.AddConsumer(c)
		if !ok {
			conn.Close()
			return
		}
		c.id = id
		c.remover = f.remover

		go c.readPump()
	}
}

// connConsumer adapts one websocket connection into a
// streamer.Consumer; a write error deregisters it from the streamer
// and closes the socket.
type connConsumer struct {
	conn    *websocket.Conn
	remover Remover

	mu sync.Mutex
	id uint64
}

func (c *connConsumer) Handle(s sample.Fused) {
	payload, err := json.Marshal(s)
	if err != nil {
		log.Printf("webfanout: marshal error: %v", err)
		return
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.mu.Unlock()
	if err != nil {
		c.remover.RemoveConsumerAsync(c.id)
		c.conn.Close()
	}
}

// readPump discards inbound frames (browsers only read this feed) but
// must run so gorilla's pong/close control frames are processed and
// the connection's death is noticed promptly.
func (c *connConsumer) readPump() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.remover.RemoveConsumerAsync(c.id)
			return
		}
	}
}
