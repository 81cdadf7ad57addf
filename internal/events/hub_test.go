package events

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTransport records envelopes in arrival order.
type memTransport struct {
	mu     sync.Mutex
	got    []Envelope
	fail   bool
	closed bool
}

func (t *memTransport) Send(env Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return errors.New("boom")
	}
	t.got = append(t.got, env)
	return nil
}

func (t *memTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *memTransport) envelopes() []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Envelope, len(t.got))
	copy(out, t.got)
	return out
}

func TestHub_ConnectSendsConnectedEnvelope(t *testing.T) {
	hub := NewHub()
	tr := &memTransport{}

	id := hub.Connect(tr)
	require.NotEmpty(t, id)

	envs := tr.envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, "connected", envs[0].Type)
	assert.Equal(t, id, envs[0].ClientID)
	assert.False(t, envs[0].Timestamp.IsZero())
}

// A refresh broadcast returns the connected-client count and each client
// observes envelopes in order.
func TestHub_BroadcastRefreshCountAndOrder(t *testing.T) {
	hub := NewHub()
	transports := []*memTransport{{}, {}, {}}
	for _, tr := range transports {
		hub.Connect(tr)
	}

	assert.Equal(t, 3, hub.BroadcastRefresh(ScopeConversations, "new message"))
	assert.Equal(t, 3, hub.BroadcastRefresh(ScopeDashboard, "stats changed"))

	for _, tr := range transports {
		envs := tr.envelopes()
		require.Len(t, envs, 3) // connected + two refreshes
		assert.Equal(t, "connected", envs[0].Type)
		assert.Equal(t, ScopeConversations, envs[1].Scope)
		assert.Equal(t, ScopeDashboard, envs[2].Scope)
		assert.False(t, envs[2].Timestamp.Before(envs[1].Timestamp))
	}
}

func TestHub_FailingTransportIsRemoved(t *testing.T) {
	hub := NewHub()
	healthy := &memTransport{}
	flaky := &memTransport{}
	hub.Connect(healthy)
	hub.Connect(flaky)

	flaky.mu.Lock()
	flaky.fail = true
	flaky.mu.Unlock()

	assert.Equal(t, 1, hub.BroadcastRefresh(ScopeAll, "tick"))
	assert.Equal(t, 1, hub.Count())

	flaky.mu.Lock()
	closed := flaky.closed
	flaky.mu.Unlock()
	assert.True(t, closed, "removed transport must be closed")
}

func TestHub_DisconnectIsIdempotent(t *testing.T) {
	hub := NewHub()
	tr := &memTransport{}
	id := hub.Connect(tr)

	hub.Disconnect(id)
	hub.Disconnect(id)
	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 0, hub.BroadcastRefresh(ScopeAll, "none left"))
}

func TestHub_ShutdownClosesAll(t *testing.T) {
	hub := NewHub()
	transports := []*memTransport{{}, {}}
	for _, tr := range transports {
		hub.Connect(tr)
	}

	hub.Shutdown()
	assert.Equal(t, 0, hub.Count())
	for _, tr := range transports {
		tr.mu.Lock()
		assert.True(t, tr.closed)
		tr.mu.Unlock()
	}
}

// End-to-end over a real websocket: connected envelope on connect, pong
// for "ping", refresh envelopes thereafter.
func TestWSHandler_ConnectPingRefresh(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewWSHandler(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected Envelope
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, "connected", connected.Type)
	assert.NotEmpty(t, connected.ClientID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	var pong Envelope
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)

	// Hub registration is synchronous with the handshake; broadcast now.
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.BroadcastRefresh(ScopeAll, "test"))

	var refresh Envelope
	require.NoError(t, conn.ReadJSON(&refresh))
	assert.Equal(t, "refresh", refresh.Type)
	assert.Equal(t, ScopeAll, refresh.Scope)
	assert.Equal(t, "test", refresh.Reason)
}
