/*
Package directory holds the persistent record of every device that has logged in.

Users are keyed by the network address they first connected from. The whole
collection lives in memory and is written back through a Repository after each
mutation; a single mutex covers the read-modify-persist sequence so racing
logins from a new address can never create two users or reuse an ordinal.
*/
package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lanshare/internal/app/user"
	"lanshare/internal/pkg/logx"
)

// saveTimeout bounds a single Repository.Save call.
const saveTimeout = 5 * time.Second

// usernamePrefix starts every generated display name.
const usernamePrefix = "User_"

// Directory is the in-memory user collection and its persistence.
type Directory struct {
	// mu guards users and both indexes, and is held across Repository.Save.
	mu sync.RWMutex

	// users in insertion order.
	users []user.User

	// byID and byAddress map to positions in users.
	byID      map[string]int
	byAddress map[string]int

	repo   Repository
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// Option customizes a Directory.
type Option func(*Directory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithIDGenerator replaces the UUID v4 generator, for tests.
func WithIDGenerator(newID func() string) Option {
	return func(d *Directory) { d.newID = newID }
}

// New creates an empty Directory persisting through repo. Call Load to restore saved users.
func New(repo Repository, opts ...Option) *Directory {
	d := &Directory{
		byID:      make(map[string]int),
		byAddress: make(map[string]int),
		repo:      repo,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		logger:    logx.Component("directory"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Load replaces the in-memory collection with the repository contents.
// When two stored records share an address the first one keeps the address index.
func (d *Directory) Load(ctx context.Context) error {
	users, err := d.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load user directory: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.users = d.users[:0]
	clear(d.byID)
	clear(d.byAddress)

	for _, u := range users {
		if u.ID == "" {
			d.logger.Warn().Str("address", u.Address).Msg("Skipping stored user without an id.")
			continue
		}
		if _, dup := d.byID[u.ID]; dup {
			d.logger.Warn().Str("user_id", u.ID).Msg("Skipping duplicate stored user id.")
			continue
		}

		d.byID[u.ID] = len(d.users)
		if _, taken := d.byAddress[u.Address]; !taken {
			d.byAddress[u.Address] = len(d.users)
		}
		d.users = append(d.users, u)
	}

	d.logger.Info().Int("users", len(d.users)).Msg("User directory loaded.")
	return nil
}

// FindByAddress returns the user first seen at address.
func (d *Directory) FindByAddress(address string) (user.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.byAddress[address]
	if !ok {
		return user.User{}, false
	}
	return d.users[i], true
}

// FindByID returns the user with the given id.
func (d *Directory) FindByID(userID string) (user.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.byID[userID]
	if !ok {
		return user.User{}, false
	}
	return d.users[i], true
}

// nextUsernameLocked returns User_<count+1>, moving past ordinals already
// taken by a stored or renamed user.
func (d *Directory) nextUsernameLocked() string {
	taken := make(map[string]struct{}, len(d.users))
	for _, u := range d.users {
		taken[u.Username] = struct{}{}
	}
	for n := len(d.users) + 1; ; n++ {
		name := fmt.Sprintf("%s%d", usernamePrefix, n)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}

// CreateOrGet returns the user known at address, or creates one.
// An existing user is returned unchanged: deviceInfo from a repeat login is not merged.
func (d *Directory) CreateOrGet(address, deviceInfo string) user.User {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i, ok := d.byAddress[address]; ok {
		return d.users[i]
	}

	u := user.User{
		ID:         d.newID(),
		Username:   d.nextUsernameLocked(),
		Address:    address,
		DeviceInfo: deviceInfo,
		LastSeen:   d.now(),
	}

	d.byID[u.ID] = len(d.users)
	d.byAddress[address] = len(d.users)
	d.users = append(d.users, u)

	d.persistLocked("create", u.ID)

	d.logger.Info().
		Str("user_id", u.ID).
		Str("username", u.Username).
		Str("address", address).
		Msg("New user created.")

	return u
}

// Update merges upd into the stored user and refreshes LastSeen.
// It reports false when userID is unknown.
func (d *Directory) Update(userID string, upd user.Update) (user.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, ok := d.byID[userID]
	if !ok {
		return user.User{}, false
	}

	d.users[i].Apply(upd)
	d.users[i].LastSeen = d.now()

	d.persistLocked("update", userID)

	return d.users[i], true
}

// TouchLastSeen refreshes LastSeen without changing any other field.
func (d *Directory) TouchLastSeen(userID string) {
	if _, ok := d.Update(userID, user.Update{}); !ok {
		d.logger.Debug().Str("user_id", userID).Msg("Touch for unknown user ignored.")
	}
}

// ListAll returns a copy of every user in insertion order.
func (d *Directory) ListAll() []user.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]user.User, len(d.users))
	copy(out, d.users)
	return out
}

// Len returns the number of known users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// persistLocked writes the whole collection. Failures are logged and the
// in-memory state is kept; the next successful save reconciles storage.
// d.mu must be held.
func (d *Directory) persistLocked(op, userID string) {
	snapshot := make([]user.User, len(d.users))
	copy(snapshot, d.users)

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := d.repo.Save(ctx, snapshot); err != nil {
		d.logger.Error().
			Err(err).
			Str("operation", op).
			Str("user_id", userID).
			Int("users", len(snapshot)).
			Msg("Failed to persist user directory; keeping in-memory state.")
	}
}
