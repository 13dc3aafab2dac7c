/*
Package hub fans real-time events out to every connected WebSocket session.

Each accepted connection becomes a Client with its own buffered send queue.
Broadcast and SendTo never block on a slow or departed client: the message
for that client is dropped and logged, and every other client still gets it.
*/
package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lanshare/internal/pkg/logx"
)

// Envelope is the frame exchanged in both directions on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub tracks the attached clients by connection id.
type Hub struct {
	// mu protects clients and closed.
	mu sync.RWMutex

	// currently attached clients, keyed by connection id.
	clients map[string]*Client

	// set by Shutdown; later attaches are closed straight away.
	closed bool

	logger zerolog.Logger
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logx.Component("hub"),
	}
}

// Attach registers conn under a fresh connection id. The caller runs the
// client's pumps and calls Detach once ReadPump returns.
func (h *Hub) Attach(conn *websocket.Conn, remoteAddr string) *Client {
	c := newClient(uuid.NewString(), conn, remoteAddr)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		h.logger.Warn().Str("conn_id", c.id).Msg("Hub is shut down. Closing new connection.")
		return c
	}
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().
		Str("conn_id", c.id).
		Str("remote_addr", remoteAddr).
		Int("total_clients", total).
		Msg("Client attached.")

	return c
}

// Detach removes the client and stops its write pump. Unknown ids are ignored.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	c.close()
	h.logger.Info().Str("conn_id", connID).Int("total_clients", total).Msg("Client detached.")
}

// Broadcast delivers event to every attached client.
func (h *Hub) Broadcast(event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode broadcast.")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(msg)
	}

	h.logger.Debug().Str("event", event).Int("recipients", len(targets)).Msg("Broadcast queued.")
}

// SendTo delivers event to one client. A missing client is logged and skipped.
func (h *Hub) SendTo(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug().Str("conn_id", connID).Str("event", event).Msg("SendTo unknown connection, dropping.")
		return
	}

	msg, err := encode(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode message.")
		return
	}

	c.enqueue(msg)
}

// Len returns the number of attached clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every attached client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	h.logger.Info().Int("clients", len(clients)).Msg("Shutting down hub.")

	for _, c := range clients {
		c.close()
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
