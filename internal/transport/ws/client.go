package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384
	sendBufferSize = 64
)

// client wraps one websocket connection. The send channel feeds the write
// pump; done is closed exactly once when the connection is torn down so that
// Enqueue never races a channel close.
type client struct {
	ws  *websocket.Conn
	log zerolog.Logger

	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	// Binding set by the dispatcher after a successful join or rejoin. Only
	// the read pump goroutine touches these.
	roomCode string
	playerID string
}

func newClient(ws *websocket.Conn, log zerolog.Logger) *client {
	return &client{
		ws:   ws,
		log:  log,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Enqueue hands a frame to the write pump without blocking. It reports false
// when the connection is gone or its buffer is full; a slow reader loses
// frames rather than stalling the room that is broadcasting.
func (c *client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn().Msg("send buffer full, dropping frame")
		return false
	}
}

// shutdown signals both pumps to exit. Safe to call from any goroutine.
func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump owns all writes to the socket, including pings. It never closes
// the send channel; it exits on done and closes the underlying connection,
// which in turn unblocks the read pump.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}
