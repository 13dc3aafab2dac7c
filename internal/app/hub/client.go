package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lanshare/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	// Chat images travel inline as data URLs, hence the generous limit.
	maxMessageSize = 8 << 20

	// capacity of each client's outbound queue.
	sendBufferSize = 256
)

// MessageHandler receives each inbound envelope read from a client.
type MessageHandler func(event string, data json.RawMessage)

// Client is one attached WebSocket connection.
type Client struct {
	id         string
	remoteAddr string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// queued outbound frames. Never closed; done signals the end instead.
	send chan []byte

	// closed once when the client is detached or the hub shuts down.
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

func newClient(id string, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		id:         id,
		remoteAddr: remoteAddr,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		logger: logx.Logger().With().
			Str("conn_id", id).
			Str("remote_addr", remoteAddr).
			Logger(),
	}
}

// ID returns the server-assigned connection id.
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the client host the connection came from.
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// close signals the write pump to send a close frame and exit.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue hands msg to the write pump without blocking.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return false
	}
}

// ReadPump reads envelopes until the connection fails or closes, passing
// each one to onMessage. A panic in onMessage is logged and the loop goes on.
func (c *Client) ReadPump(onMessage MessageHandler) {
	defer func() {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in ReadPump")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		var in Envelope
		if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
			c.logger.Warn().Err(err).Int("size", len(raw)).Msg("Client sent invalid envelope")
			continue
		}

		c.dispatch(onMessage, in)
	}
}

func (c *Client) dispatch(onMessage MessageHandler, in Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Str("event", in.Event).
				Msg("Recovered from panic while handling client message.")
		}
	}()

	onMessage(in.Event, in.Data)
}

// WritePump writes queued frames and heartbeat pings until the client is
// closed or a write fails. It closes the connection on exit.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued when the client is closed.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}

	return true
}
