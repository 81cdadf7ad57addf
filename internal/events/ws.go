package events

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator UIs are served from a different origin in development;
	// auth happens at the proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTransport adapts one websocket connection to the hub's Transport.
// Writes go through a buffered channel drained by a single write pump, so
// per-client delivery is FIFO and Send never blocks the broadcaster.
type wsTransport struct {
	conn *websocket.Conn
	send chan Envelope
	done chan struct{}
}

var errSlowClient = errors.New("events: client send buffer full")

func newWSTransport(conn *websocket.Conn) *wsTransport {
	t := &wsTransport{
		conn: conn,
		send: make(chan Envelope, sendBufferSize),
		done: make(chan struct{}),
	}
	go t.writePump()
	return t
}

func (t *wsTransport) Send(env Envelope) error {
	select {
	case <-t.done:
		return errors.New("events: transport closed")
	default:
	}
	select {
	case t.send <- env:
		return nil
	default:
		return errSlowClient
	}
}

func (t *wsTransport) Close() error {
	select {
	case <-t.done:
		return nil
	default:
		close(t.done)
	}
	return t.conn.Close()
}

func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteJSON(env); err != nil {
				_ = t.Close()
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = t.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}

// WSHandler upgrades HTTP requests into hub clients.
type WSHandler struct {
	hub *Hub
}

// NewWSHandler builds the /events/ws handler.
func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// ServeHTTP upgrades the connection, registers it, and runs the read loop.
// A text frame "ping" is answered with a pong envelope; anything else is
// ignored. The read loop exiting (client gone) unregisters the client.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[EventHub] upgrade failed: %v", err)
		return
	}

	transport := newWSTransport(conn)
	id := h.hub.Connect(transport)
	defer h.hub.Disconnect(id)

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if string(msg) == "ping" {
			_ = transport.Send(Envelope{Type: "pong", Timestamp: time.Now().UTC()})
		}
	}
}
