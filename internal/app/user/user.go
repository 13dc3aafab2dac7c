/*
Package user contains the data structures describing a LAN participant.

User is the record owned by the user directory. Payload is the sanitized form
that crosses the WebSocket and HTTP boundaries.
*/
package user

import "time"

// TimeLayout is the wall-clock format used for timestamps sent to clients.
const TimeLayout = "2006-01-02 15:04:05"

// User is a known device on the network, identified by the address it first connected from.
type User struct {
	// ID is a server-generated UUID v4.
	ID string

	// Username is the display name, "User_<n>" until the user renames it.
	Username string

	// Address is the remote IP of the first login from this device.
	Address string

	// DeviceInfo is the client-supplied description recorded at creation.
	DeviceInfo string

	// LastSeen is refreshed on every login, disconnect and rename.
	LastSeen time.Time
}

// Update lists the fields to change on a stored User. Nil fields are left as they are.
type Update struct {
	Username   *string
	DeviceInfo *string
}

// Apply merges the non-nil fields of upd into u.
func (u *User) Apply(upd Update) {
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.DeviceInfo != nil {
		u.DeviceInfo = *upd.DeviceInfo
	}
}

// Payload is the sanitized user record sent to clients.
type Payload struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Address    string `json:"address"`
	DeviceInfo string `json:"device_info"`
	LastSeen   string `json:"last_seen"`
}

// Payload returns the wire representation of u.
func (u User) Payload() Payload {
	lastSeen := ""
	if !u.LastSeen.IsZero() {
		lastSeen = u.LastSeen.Format(TimeLayout)
	}

	return Payload{
		UserID:     u.ID,
		Username:   u.Username,
		Address:    u.Address,
		DeviceInfo: u.DeviceInfo,
		LastSeen:   lastSeen,
	}
}

// Payloads sanitizes every user in order.
func Payloads(users []User) []Payload {
	out := make([]Payload, 0, len(users))
	for _, u := range users {
		out = append(out, u.Payload())
	}
	return out
}
