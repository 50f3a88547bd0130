package network

import (
	"encoding/json"

	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
)

// Message types - Client → Server
const (
	MsgTypeJoin     = "join"
	MsgTypeLeave    = "leave"
	MsgTypePing     = "ping"
	MsgTypePlace    = "place"
	MsgTypeMove     = "move"
	MsgTypeRemove   = "remove"
	MsgTypePreview  = "preview"
	MsgTypeSnapshot = "snapshot"
	MsgTypeSave     = "save"
	MsgTypeLoad     = "load"

	MsgTypeOpenLoot   = "open_loot"
	MsgTypeCommitLoot = "commit_loot"
	MsgTypeMergeLoot  = "merge_loot"
)

// Message types - Server → Client
const (
	MsgTypeWelcome       = "welcome"
	MsgTypePlayerJoined  = "player_joined"
	MsgTypePlayerLeft    = "player_left"
	MsgTypePlaced        = "placed"
	MsgTypeRemoved       = "removed"
	MsgTypeMoved         = "moved"
	MsgTypeRejected      = "rejected"
	MsgTypePreviewResult = "preview"
	MsgTypeSnapshotData  = "snapshot"
	MsgTypeCellChanged   = "cell_changed"
	MsgTypeSaved         = "saved"
	MsgTypeLoaded        = "loaded"
	MsgTypeError         = "error"
	MsgTypePong          = "pong"
	MsgTypeLootOpened    = "loot_opened"
	MsgTypeLootCommitted = "loot_committed"
	MsgTypeLootMerged    = "loot_merged"
)

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// --- Client Message Payloads ---

// JoinPayload is sent by client to join the session
type JoinPayload struct {
	// Skip restoring saved containers on join
	Fresh bool `json:"fresh,omitempty"`
}

// Target is where an item should go: either a cell anchor or a world-space
// position that the server snaps to a cell. Anchor wins when both are set.
type Target struct {
	Anchor *grid.Point `json:"anchor,omitempty"`
	World  *grid.Vec2  `json:"world,omitempty"`
}

// PlacePayload places a new item into a container
type PlacePayload struct {
	Container   string                `json:"container"`
	Item        inventory.ItemID      `json:"item"`
	Orientation inventory.Orientation `json:"orientation"`
	Auto        bool                  `json:"auto,omitempty"` // first fit, ignores the target
	Target
}

// MovePayload moves a placed instance, possibly into another container
type MovePayload struct {
	From        string                `json:"from"`
	Instance    inventory.InstanceID  `json:"instance"`
	To          string                `json:"to"`
	Orientation inventory.Orientation `json:"orientation"`
	Target
}

// RemovePayload removes a placed instance
type RemovePayload struct {
	Container string               `json:"container"`
	Instance  inventory.InstanceID `json:"instance"`
}

// PreviewPayload asks for the footprint of an item at an orientation. With a
// container and target it also reports whether the drop would be legal;
// Moving names an instance of that container that should not block itself.
type PreviewPayload struct {
	Item        inventory.ItemID      `json:"item"`
	Orientation inventory.Orientation `json:"orientation"`
	Container   string                `json:"container,omitempty"`
	Moving      inventory.InstanceID  `json:"moving,omitempty"`
	Target
}

// ContainerPayload names a container; empty means every container
type ContainerPayload struct {
	Container string `json:"container,omitempty"`
}

// OpenLootPayload shows an external loot source in the loot container
type OpenLootPayload struct {
	Source           string `json:"source"`
	DestroyWhenEmpty bool   `json:"destroy_when_empty,omitempty"`
}

// MergeLootPayload drops a container's contents into a loot source
type MergeLootPayload struct {
	From   string `json:"from"`
	Target string `json:"target"`
}

// --- Server Message Payloads ---

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	PlayerID      string          `json:"player_id"`
	Username      string          `json:"username"`
	SessionID     string          `json:"session_id"`
	SessionStatus SessionStatus   `json:"session_status"`
	Containers    []ContainerInfo `json:"containers"`
}

// PlayerJoinedPayload notifies clients when a player joins
type PlayerJoinedPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// PlayerLeftPayload notifies clients when a player leaves
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// ContainerInfo describes a container's geometry
type ContainerInfo struct {
	ID       string              `json:"id"`
	Width    int                 `json:"width"`
	Height   int                 `json:"height"`
	CellSize float64             `json:"cell_size"`
	Origin   grid.Vec2           `json:"origin"`
	Rows     []inventory.RowSpan `json:"rows,omitempty"`
}

// InstanceInfo describes one placed instance
type InstanceInfo struct {
	ID          inventory.InstanceID  `json:"id"`
	Item        inventory.ItemID      `json:"item"`
	Anchor      grid.Point            `json:"anchor"`
	Orientation inventory.Orientation `json:"orientation"`
	Cells       []grid.Point          `json:"cells"`
}

// PlacedPayload confirms a placement
type PlacedPayload struct {
	Container string       `json:"container"`
	Instance  InstanceInfo `json:"instance"`
}

// RemovedPayload confirms a removal
type RemovedPayload struct {
	Container string               `json:"container"`
	Instance  inventory.InstanceID `json:"instance"`
	Item      inventory.ItemID     `json:"item"`
}

// MovedPayload confirms a move. Removed is the instance id the item had in
// the source container; the target assigns a new one.
type MovedPayload struct {
	From     string               `json:"from"`
	To       string               `json:"to"`
	Removed  inventory.InstanceID `json:"removed"`
	Instance InstanceInfo         `json:"instance"`
}

// RejectedPayload reports an illegal placement
type RejectedPayload struct {
	Request   string               `json:"request"`
	Container string               `json:"container"`
	Reason    inventory.Reason     `json:"reason"`
	Cell      grid.Point           `json:"cell"`
	Blocker   inventory.InstanceID `json:"blocker,omitempty"`
}

// PreviewResultPayload is the footprint of an item at an orientation
type PreviewResultPayload struct {
	Item        inventory.ItemID      `json:"item"`
	Orientation inventory.Orientation `json:"orientation"`
	Width       int                   `json:"width"`
	Height      int                   `json:"height"`
	Cells       []grid.Point          `json:"cells"`
	Verdict     *inventory.Verdict    `json:"verdict,omitempty"`
}

// SnapshotPayload is the full state of one container
type SnapshotPayload struct {
	Container ContainerInfo  `json:"container"`
	Instances []InstanceInfo `json:"instances"`
}

// CellChangedPayload reports one cell gaining or losing its occupant
type CellChangedPayload struct {
	Container string               `json:"container"`
	Change    string               `json:"change"` // claimed or freed
	Cell      grid.Point           `json:"cell"`
	Instance  inventory.InstanceID `json:"instance"`
	Item      inventory.ItemID     `json:"item"`
}

// SavedPayload confirms a save
type SavedPayload struct {
	Container string `json:"container"`
	Entries   int    `json:"entries"`
}

// LoadedPayload reports a best-effort load
type LoadedPayload struct {
	Container string              `json:"container"`
	Restored  int                 `json:"restored"`
	Skipped   []inventory.Skipped `json:"skipped,omitempty"`
}

// LootOpenedPayload reports an opened loot source and what it holds
type LootOpenedPayload struct {
	Source   string              `json:"source"`
	Restored int                 `json:"restored"`
	Skipped  []inventory.Skipped `json:"skipped,omitempty"`
	Snapshot SnapshotPayload     `json:"snapshot"`
}

// LootCommittedPayload confirms a loot source was written back or destroyed
type LootCommittedPayload struct {
	Source    string `json:"source"`
	Items     int    `json:"items"`
	Destroyed bool   `json:"destroyed,omitempty"`
}

// LootMergedPayload reports a drop into a loot source. Relocated items did
// not fit at their old spot and were auto-placed.
type LootMergedPayload struct {
	From      string `json:"from"`
	Target    string `json:"target"`
	Merged    int    `json:"merged"`
	Relocated int    `json:"relocated,omitempty"`
	Created   bool   `json:"created,omitempty"`
}

// SessionStatus represents the current session state
type SessionStatus struct {
	State       string `json:"state"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	ServerTick  int64  `json:"server_tick"`
	Uptime      int64  `json:"uptime"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
