/*
Package session binds WebSocket connections to logical users.

A connection starts anonymous, becomes bound to a user on user_login, and is
released on disconnect. The Gateway keeps its own connection-to-user table,
drives the presence registry, and emits every outbound event through a
Broadcaster so it never touches the transport directly. Events always go out
after the internal locks are released.
*/
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"lanshare/internal/app/storage"
	"lanshare/internal/app/user"
	"lanshare/internal/pkg/logx"
)

// MaxUsernameLength is the longest display name accepted, in runes.
const MaxUsernameLength = 50

// fileListTimeout bounds the blob store listing sent on login and after changes.
const fileListTimeout = 10 * time.Second

var (
	// ErrUserNotFound is returned by RenameUser for an unknown user id.
	ErrUserNotFound = errors.New("session: user not found")

	// ErrInvalidUsername is returned for an empty or over-long username.
	ErrInvalidUsername = errors.New("session: invalid username")
)

// Broadcaster delivers events to connected sessions.
type Broadcaster interface {
	Broadcast(event string, payload any)
	SendTo(connectionID, event string, payload any)
}

// UserStore is the part of the user directory the gateway uses.
type UserStore interface {
	CreateOrGet(address, deviceInfo string) user.User
	FindByID(userID string) (user.User, bool)
	Update(userID string, upd user.Update) (user.User, bool)
	TouchLastSeen(userID string)
}

// Presence is the online-state registry.
type Presence interface {
	MarkConnected(userID, connectionID string)
	MarkDisconnected(userID, connectionID string)
	ResolveUserByConnection(connectionID string) (string, bool)
	OnlineUsers() []user.User
}

// FileLister lists the shared files.
type FileLister interface {
	List(ctx context.Context) ([]storage.FileInfo, error)
}

// Gateway runs the per-connection session lifecycle.
type Gateway struct {
	users    UserStore
	presence Presence
	out      Broadcaster
	files    FileLister

	// mu guards sessions.
	mu sync.Mutex

	// sessions maps a logged-in connection id to its user id.
	sessions map[string]string

	now    func() time.Time
	logger zerolog.Logger
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway wires a Gateway to its collaborators.
func NewGateway(users UserStore, presence Presence, out Broadcaster, files FileLister, opts ...Option) *Gateway {
	g := &Gateway{
		users:    users,
		presence: presence,
		out:      out,
		files:    files,
		sessions: make(map[string]string),
		now:      time.Now,
		logger:   logx.Component("session"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// OnConnect records a new anonymous connection.
func (g *Gateway) OnConnect(connID string) {
	g.logger.Info().Str("conn_id", connID).Msg("Connection opened.")
}

// OnLogin binds connID to the user at remoteAddr, creating the user on first
// sight. The caller gets login_success and the file list; every session gets
// the new online list. A repeat login on a bound connection changes nothing.
func (g *Gateway) OnLogin(ctx context.Context, connID, remoteAddr, deviceInfo string) user.User {
	if userID, ok := g.userFor(connID); ok {
		u, _ := g.users.FindByID(userID)
		g.logger.Debug().Str("conn_id", connID).Str("user_id", userID).Msg("Repeat login on bound connection ignored.")
		return u
	}

	u := g.users.CreateOrGet(remoteAddr, deviceInfo)
	if touched, ok := g.users.Update(u.ID, user.Update{}); ok {
		u = touched
	}

	g.mu.Lock()
	if existing, ok := g.sessions[connID]; ok {
		g.mu.Unlock()
		current, _ := g.users.FindByID(existing)
		return current
	}
	g.sessions[connID] = u.ID
	g.mu.Unlock()

	g.presence.MarkConnected(u.ID, connID)

	g.logger.Info().
		Str("conn_id", connID).
		Str("user_id", u.ID).
		Str("username", u.Username).
		Str("address", remoteAddr).
		Msg("User logged in.")

	g.out.SendTo(connID, EventLoginSuccess, u.Payload())
	g.out.SendTo(connID, EventFileListUpdate, g.fileList(ctx))
	g.broadcastOnlineUsers()

	return u
}

// OnDisconnect releases the session bound to connID. Connections that never
// logged in are ignored.
func (g *Gateway) OnDisconnect(connID string) {
	g.mu.Lock()
	userID, ok := g.sessions[connID]
	if ok {
		delete(g.sessions, connID)
	}
	g.mu.Unlock()

	if !ok {
		// The registry tracks connection ids too; a hit here means the two
		// tables drifted, so release the presence entry anyway.
		userID, ok = g.presence.ResolveUserByConnection(connID)
		if !ok {
			g.logger.Debug().Str("conn_id", connID).Msg("Anonymous connection closed.")
			return
		}
		g.logger.Warn().Str("conn_id", connID).Str("user_id", userID).Msg("Connection tracked by presence but missing from session table.")
	}

	g.presence.MarkDisconnected(userID, connID)
	g.users.TouchLastSeen(userID)

	g.logger.Info().Str("conn_id", connID).Str("user_id", userID).Msg("User disconnected.")

	g.broadcastOnlineUsers()
}

// OnSendMessage broadcasts a chat message from the user bound to connID.
// Messages from anonymous connections and empty messages are dropped.
func (g *Gateway) OnSendMessage(connID, text string, isImage bool) {
	userID, ok := g.userFor(connID)
	if !ok {
		g.logger.Debug().Str("conn_id", connID).Msg("Message from anonymous connection dropped.")
		return
	}
	if text == "" {
		g.logger.Debug().Str("conn_id", connID).Str("user_id", userID).Msg("Empty message dropped.")
		return
	}

	u, ok := g.users.FindByID(userID)
	if !ok {
		g.logger.Warn().Str("conn_id", connID).Str("user_id", userID).Msg("Session bound to unknown user.")
		return
	}

	msg := ChatMessage{
		UserID:    u.ID,
		Username:  u.Username,
		Message:   text,
		IsImage:   isImage,
		Timestamp: g.now().Format(user.TimeLayout),
	}

	ev := g.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Bool("is_image", isImage)
	if !isImage {
		ev = ev.Int("length", len(text))
	}
	ev.Msg("Chat message sent.")

	g.out.Broadcast(EventNewMessage, msg)
}

// OnUpdateUsername renames the user bound to connID, broadcasts the online
// list, and confirms to the caller.
func (g *Gateway) OnUpdateUsername(connID, username string) {
	userID, ok := g.userFor(connID)
	if !ok {
		g.logger.Debug().Str("conn_id", connID).Msg("Rename from anonymous connection dropped.")
		return
	}

	u, err := g.rename(userID, username)
	if err != nil {
		g.logger.Debug().Err(err).Str("conn_id", connID).Str("user_id", userID).Msg("Rename rejected.")
		return
	}

	g.out.SendTo(connID, EventUsernameUpdated, u.Payload())
}

// RenameUser renames userID outside of any session and broadcasts the online list.
func (g *Gateway) RenameUser(userID, username string) (user.User, error) {
	return g.rename(userID, username)
}

func (g *Gateway) rename(userID, username string) (user.User, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return user.User{}, err
	}

	u, ok := g.users.Update(userID, user.Update{Username: &name})
	if !ok {
		return user.User{}, ErrUserNotFound
	}

	g.logger.Info().Str("user_id", userID).Str("username", name).Msg("Username updated.")

	g.broadcastOnlineUsers()
	return u, nil
}

// HandleEvent decodes one inbound envelope from connID and dispatches it.
// Malformed payloads and unknown events are logged and dropped.
func (g *Gateway) HandleEvent(ctx context.Context, connID, remoteAddr, event string, data json.RawMessage) {
	switch event {
	case EventUserLogin:
		var in loginRequest
		if !g.decode(connID, event, data, &in) {
			return
		}
		g.OnLogin(ctx, connID, remoteAddr, in.DeviceInfo)

	case EventSendMessage:
		var in sendMessageRequest
		if !g.decode(connID, event, data, &in) {
			return
		}
		g.OnSendMessage(connID, in.Message, in.IsImage)

	case EventUpdateUsername:
		var in updateUsernameRequest
		if !g.decode(connID, event, data, &in) {
			return
		}
		g.OnUpdateUsername(connID, in.Username)

	default:
		g.logger.Warn().Str("conn_id", connID).Str("event", event).Msg("Client sent unsupported event")
	}
}

// NotifyFilesChanged broadcasts the current file list to every session.
func (g *Gateway) NotifyFilesChanged(ctx context.Context) {
	g.out.Broadcast(EventFileListUpdate, g.fileList(ctx))
}

// Sessions returns the number of logged-in connections.
func (g *Gateway) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Gateway) userFor(connID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	userID, ok := g.sessions[connID]
	return userID, ok
}

func (g *Gateway) broadcastOnlineUsers() {
	online := g.presence.OnlineUsers()
	g.out.Broadcast(EventUserListUpdate, UserListPayload{Users: user.Payloads(online)})
}

// fileList lists the blob store. A listing failure yields an empty list.
func (g *Gateway) fileList(ctx context.Context) FileListPayload {
	ctx, cancel := context.WithTimeout(ctx, fileListTimeout)
	defer cancel()

	files, err := g.files.List(ctx)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to list shared files.")
		files = nil
	}
	if files == nil {
		files = []storage.FileInfo{}
	}

	return FileListPayload{Files: files}
}

func (g *Gateway) decode(connID, event string, data json.RawMessage, dst any) bool {
	if len(data) == 0 || string(data) == "null" {
		return true
	}

	if err := json.Unmarshal(data, dst); err != nil {
		g.logger.Warn().Err(err).Str("conn_id", connID).Str("event", event).Msg("Client sent invalid payload")
		return false
	}
	return true
}

func normalizeUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" || utf8.RuneCountInString(name) > MaxUsernameLength {
		return "", ErrInvalidUsername
	}
	return name, nil
}
