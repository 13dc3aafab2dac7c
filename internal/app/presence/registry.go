/*
Package presence tracks which users currently hold at least one live connection.

A user may be connected from several tabs or devices at once. The registry keeps
a reference count and the set of connection ids per user, and only reports the
user offline once the last tracked connection is released, whatever order the
connections close in. Identity fields are never copied: OnlineUsers reads them
back from the user directory.
*/
package presence

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"lanshare/internal/app/user"
	"lanshare/internal/pkg/logx"
)

// UserLister is the directory view the registry needs.
type UserLister interface {
	ListAll() []user.User
}

// Registry is the online-state bookkeeping for all users.
type Registry struct {
	// mu guards refs and conns.
	mu sync.Mutex

	// refs holds a positive connection count per online user id.
	refs map[string]int

	// conns holds the tracked connection ids per user id; never an empty set.
	conns map[string]map[string]struct{}

	users  UserLister
	logger zerolog.Logger
}

// NewRegistry creates an empty Registry reading identities from users.
func NewRegistry(users UserLister) *Registry {
	return &Registry{
		refs:   make(map[string]int),
		conns:  make(map[string]map[string]struct{}),
		users:  users,
		logger: logx.Component("presence"),
	}
}

// MarkConnected records one more connection for userID.
// A non-empty connectionID is tracked in the user's set; marking an id that
// is already tracked for this user changes nothing. An empty connectionID
// only bumps the count.
func (r *Registry) MarkConnected(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connectionID != "" {
		set, ok := r.conns[userID]
		if !ok {
			set = make(map[string]struct{})
			r.conns[userID] = set
		}
		if _, dup := set[connectionID]; dup {
			r.logger.Debug().
				Str("user_id", userID).
				Str("connection_id", connectionID).
				Msg("Connection already tracked; ignoring.")
			return
		}
		set[connectionID] = struct{}{}
	}

	r.refs[userID]++

	r.logger.Debug().
		Str("user_id", userID).
		Str("connection_id", connectionID).
		Int("ref_count", r.refs[userID]).
		Msg("Connection marked.")
}

// MarkDisconnected releases a connection for userID.
// Releasing a connection id not tracked for the user, or a user with no
// presence entry, is a no-op. An empty connectionID only releases one of the
// untracked connections, so the count never drops below the tracked set size.
// The entry is dropped when the count reaches zero.
func (r *Registry) MarkDisconnected(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connectionID == "" {
		if r.refs[userID] <= len(r.conns[userID]) {
			r.logger.Debug().
				Str("user_id", userID).
				Msg("No untracked connection to release; ignoring.")
			return
		}
	} else {
		set, ok := r.conns[userID]
		if !ok {
			return
		}
		if _, tracked := set[connectionID]; !tracked {
			return
		}
		delete(set, connectionID)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}

	count, ok := r.refs[userID]
	if !ok {
		return
	}

	count--
	if count <= 0 {
		delete(r.refs, userID)
		r.logger.Debug().Str("user_id", userID).Msg("User went offline.")
		return
	}
	r.refs[userID] = count
}

// ResolveUserByConnection returns the user owning connectionID.
func (r *Registry) ResolveUserByConnection(connectionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, set := range r.conns {
		if _, ok := set[connectionID]; ok {
			return userID, true
		}
	}
	return "", false
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	return r.Count(userID) > 0
}

// Count returns the reference count for userID.
func (r *Registry) Count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[userID]
}

// Size returns the number of online users.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}

// OnlineUsers returns the online users in directory order.
func (r *Registry) OnlineUsers() []user.User {
	r.mu.Lock()
	online := make(map[string]struct{}, len(r.refs))
	for id := range r.refs {
		online[id] = struct{}{}
	}
	r.mu.Unlock()

	return lo.Filter(r.users.ListAll(), func(u user.User, _ int) bool {
		_, ok := online[u.ID]
		return ok
	})
}
