// Package events is the in-process pub/sub that keeps operator UIs
// current: every successful pipeline run or reply action broadcasts a
// refresh envelope to all connected clients.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Envelope is one event as the client sees it.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Scope values understood by the operator UI.
const (
	ScopeAll           = "all"
	ScopeConversations = "conversations"
	ScopeDashboard     = "dashboard"
)

// Transport is one connected client. Send must preserve per-client FIFO
// order; a Send error marks the transport dead and the hub drops it.
type Transport interface {
	Send(env Envelope) error
	Close() error
}

// Hub fans events out to every registered transport. Broadcast works on a
// snapshot of the client set, so a slow or failing client never blocks the
// others; it only gets removed.
type Hub struct {
	mu      sync.Mutex
	clients map[string]Transport
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]Transport)}
}

// Connect registers a transport and greets it with a connected envelope.
// Returns the client id used for Disconnect.
func (h *Hub) Connect(t Transport) string {
	id := uuid.New().String()

	h.mu.Lock()
	h.clients[id] = t
	n := len(h.clients)
	h.mu.Unlock()

	if err := t.Send(Envelope{Type: "connected", Timestamp: time.Now().UTC(), ClientID: id}); err != nil {
		h.Disconnect(id)
		return id
	}
	log.Printf("[EventHub] client %s connected (%d total)", id, n)
	return id
}

// Disconnect removes and closes one client. Safe to call twice.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	t, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		_ = t.Close()
		log.Printf("[EventHub] client %s disconnected", id)
	}
}

// Broadcast sends the envelope to every connected client and returns how
// many received it. Failing transports are removed.
func (h *Hub) Broadcast(env Envelope) int {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	snapshot := make(map[string]Transport, len(h.clients))
	for id, t := range h.clients {
		snapshot[id] = t
	}
	h.mu.Unlock()

	delivered := 0
	for id, t := range snapshot {
		if err := t.Send(env); err != nil {
			log.Printf("[EventHub] dropping client %s: %v", id, err)
			h.Disconnect(id)
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastRefresh tells clients to re-query the named scope.
func (h *Hub) BroadcastRefresh(scope, reason string) int {
	return h.Broadcast(Envelope{Type: "refresh", Scope: scope, Reason: reason})
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every client. Used during graceful drain after pending
// broadcasts have gone out.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Transport)
	h.mu.Unlock()

	for _, t := range clients {
		_ = t.Close()
	}
}
