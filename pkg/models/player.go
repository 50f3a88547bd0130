package models

import "time"

// Player represents an authenticated player and the containers they own
type Player struct {
	// From JWT claims
	ID          string `json:"id"`          // Converted from int64 user_id
	Username    string `json:"username"`    // JWT claim
	Email       string `json:"email"`       // JWT claim
	Permissions int64  `json:"permissions"` // JWT claim: bitwise permission flags
	Activated   int64  `json:"activated"`   // JWT claim: activation timestamp or ban status
	AuthMethod  string `json:"auth_method"` // JWT claim: "password" or "oauth"

	// Connection state
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`

	// Session state
	SessionID   string    `json:"session_id"`
	Containers  []string  `json:"containers,omitempty"` // container ids in the player's workspace
	LastSavedAt time.Time `json:"last_saved_at,omitempty"`
}

// Permission flags carried in the permissions claim
const (
	PermReadOnly int64 = 1 << iota // may inspect containers but not change them
	PermAdmin
)

// IsActive checks if the player account is activated and not banned
func (p *Player) IsActive() bool {
	// activated > 0 means activated
	// activated == 0 means not activated
	// activated == -1 means banned
	return p.Activated > 0
}

// IsBanned checks if the player is banned
func (p *Player) IsBanned() bool {
	return p.Activated == -1
}

// IsConnected checks if the player is currently connected
func (p *Player) IsConnected() bool {
	return p.Connected
}

// CanEdit reports whether the player may mutate their containers
func (p *Player) CanEdit() bool {
	return p.Permissions&PermReadOnly == 0 || p.Permissions&PermAdmin != 0
}

// Touch records activity at now
func (p *Player) Touch(now time.Time) {
	p.LastSeen = now
}
