package server

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gravitas-games/lanternbound/internal/network"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"github.com/gravitas-games/lanternbound/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	// WebSocket connection
	ws *websocket.Conn

	// Server reference
	server *Server

	// Player information (set after authentication)
	player *models.Player

	// Buffered channel for outbound messages. Never closed; done signals
	// the end of the connection instead.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Is connection authenticated
	authenticated bool

	// Detaches the cell change observer; set and cleared on the session loop
	unsubscribe func()
	joined      atomic.Bool
}

// NewConnection creates a new connection
func NewConnection(ws *websocket.Conn, server *Server) *Connection {
	return &Connection{
		ws:     ws,
		server: server,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	// Set up connection parameters
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start read and write pumps
	go c.writePump()
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the server
func (c *Connection) readPump() {
	defer c.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			log.Printf("Failed to parse client message: %v", err)
			c.SendError("invalid_message", "Failed to parse message")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.server.ctx.Done():
			// Server shutting down
			return
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	if c.player != nil {
		c.player.Touch(time.Now())
	}

	switch msg.Type {
	case network.MsgTypeJoin:
		c.handleJoin(msg.Payload)
	case network.MsgTypeLeave:
		c.handleLeave()
	case network.MsgTypePing:
		c.handlePing()
	case network.MsgTypePlace:
		c.handlePlace(msg.Payload)
	case network.MsgTypeMove:
		c.handleMove(msg.Payload)
	case network.MsgTypeRemove:
		c.handleRemove(msg.Payload)
	case network.MsgTypePreview:
		c.handlePreview(msg.Payload)
	case network.MsgTypeSnapshot:
		c.handleSnapshot(msg.Payload)
	case network.MsgTypeSave:
		c.handleSave(msg.Payload)
	case network.MsgTypeLoad:
		c.handleLoad(msg.Payload)
	case network.MsgTypeOpenLoot:
		c.handleOpenLoot(msg.Payload)
	case network.MsgTypeCommitLoot:
		c.handleCommitLoot()
	case network.MsgTypeMergeLoot:
		c.handleMergeLoot(msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
		c.SendError("unknown_message_type", "Unknown message type")
	}
}

// decode unmarshals an optional payload; an absent payload leaves v zeroed
func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}

// inSession runs fn on the session loop against the player's workspace
func (c *Connection) inSession(fn func(ws *Workspace)) {
	if !c.joined.Load() {
		c.SendError("not_joined", "Join the session first")
		return
	}
	session := c.server.session
	err := session.Do(func() {
		ws, ok := session.workspaces[c.player.ID]
		if !ok {
			c.SendError("not_joined", "No workspace for player")
			return
		}
		fn(ws)
	})
	if err != nil {
		c.SendError("session_stopped", err.Error())
	}
}

// mutating is inSession for handlers that change container contents
func (c *Connection) mutating(fn func(ws *Workspace)) {
	if c.player != nil && !c.player.CanEdit() {
		c.SendError("read_only", "Player may not modify containers")
		return
	}
	c.inSession(fn)
}

// handleJoin handles player join requests
func (c *Connection) handleJoin(payload json.RawMessage) {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Connection not authenticated")
		return
	}
	log.Printf("Player join request from %s", c.player.Username)

	var join network.JoinPayload
	if err := decode(payload, &join); err != nil {
		c.SendError("invalid_join", "Invalid join payload")
		return
	}

	session := c.server.session
	if err := session.AddPlayer(c.player, c); err != nil {
		log.Printf("Failed to add player to session: %v", err)
		code := "join_failed"
		if errors.Is(err, ErrAlreadyJoined) {
			code = "already_joined"
		}
		c.SendError(code, err.Error())
		return
	}

	c.player.Connected = true
	c.player.ConnectedAt = time.Now()
	c.player.SessionID = session.ID

	var infos []network.ContainerInfo
	var joinErr error
	err := session.Do(func() {
		ws, created, err := session.workspace(c.player.ID)
		if err != nil {
			joinErr = err
			return
		}
		if created && !join.Fresh {
			reports, err := ws.LoadAll(c.server.ctx)
			if err != nil {
				log.Printf("[Session] Restore for %s failed: %v", c.player.ID, err)
			}
			for id, r := range reports {
				for _, sk := range r.Skipped {
					log.Printf("[Session] Restore %s/%s skipped %s", c.player.ID, id, sk)
				}
			}
		}
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.unsubscribe = ws.Subscribe(c.forwardCellChange)
		c.player.Containers = ws.IDs()
		infos = ws.Infos()
	})
	if err == nil {
		err = joinErr
	}
	if err != nil {
		log.Printf("Failed to set up workspace for %s: %v", c.player.ID, err)
		session.RemovePlayer(c)
		c.SendError("join_failed", "Failed to set up containers")
		return
	}
	c.joined.Store(true)

	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeWelcome,
		Payload: network.WelcomePayload{
			PlayerID:      c.player.ID,
			Username:      c.player.Username,
			SessionID:     session.ID,
			SessionStatus: session.GetStatus().NetworkStatus(),
			Containers:    infos,
		},
	})

	session.BroadcastExcept(c, &network.ServerMessage{
		Type: network.MsgTypePlayerJoined,
		Payload: network.PlayerJoinedPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})

	log.Printf("Player %s joined session %s", c.player.Username, session.ID)
}

// forwardCellChange runs on the session loop for every claimed or freed cell
func (c *Connection) forwardCellChange(e inventory.CellChanged) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeCellChanged,
		Payload: network.CellChangedPayload{
			Container: e.Container,
			Change:    e.Type.String(),
			Cell:      e.Cell,
			Instance:  e.Instance,
			Item:      e.Item,
		},
	})
}

// handleLeave detaches the player, committing any open loot source and
// saving their containers. A saved workspace is dropped from memory.
func (c *Connection) handleLeave() {
	if c.player == nil || !c.joined.CompareAndSwap(true, false) {
		return
	}
	session := c.server.session
	err := session.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
			c.unsubscribe = nil
		}
		ws, ok := session.workspaces[c.player.ID]
		if !ok {
			return
		}
		if _, open := ws.LootSource(); open {
			if _, err := session.commitLoot(c.server.ctx, ws); err != nil {
				log.Printf("[Session] Loot commit on leave for %s failed: %v", c.player.ID, err)
				return
			}
		}
		if err := ws.SaveAll(c.server.ctx); err != nil {
			log.Printf("[Session] Save on leave for %s failed: %v", c.player.ID, err)
			return
		}
		c.player.LastSavedAt = time.Now()
		session.evict(c.player.ID)
	})
	if err != nil {
		log.Printf("Leave for %s not saved: %v", c.player.ID, err)
	}

	c.player.Connected = false
	if !session.RemovePlayer(c) {
		return
	}
	session.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypePlayerLeft,
		Payload: network.PlayerLeftPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})
}

// handlePing handles ping requests
func (c *Connection) handlePing() {
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypePong,
		Payload: map[string]interface{}{"timestamp": time.Now().Unix(), "tick": c.server.session.GetStatus().ServerTick},
	})
}

func (c *Connection) handlePlace(payload json.RawMessage) {
	var req network.PlacePayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_place", "Invalid place payload")
		return
	}
	c.mutating(func(ws *Workspace) {
		var inst *inventory.PlacedInstance
		var v inventory.Verdict
		var err error
		if req.Auto {
			inst, v, err = ws.AutoPlace(req.Container, req.Item, req.Orientation)
		} else {
			inst, v, err = ws.Place(req.Container, req.Item, req.Orientation, req.Target)
		}
		if err != nil {
			c.sendFailure(err)
			return
		}
		if !v.OK() {
			c.sendRejected(network.MsgTypePlace, req.Container, v)
			return
		}
		c.SendMessage(&network.ServerMessage{
			Type:    network.MsgTypePlaced,
			Payload: network.PlacedPayload{Container: req.Container, Instance: instanceInfo(inst)},
		})
	})
}

func (c *Connection) handleMove(payload json.RawMessage) {
	var req network.MovePayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_move", "Invalid move payload")
		return
	}
	if req.To == "" {
		req.To = req.From
	}
	c.mutating(func(ws *Workspace) {
		inst, v, err := ws.Move(req.From, req.Instance, req.To, req.Orientation, req.Target)
		if err != nil {
			c.sendFailure(err)
			return
		}
		if !v.OK() {
			c.sendRejected(network.MsgTypeMove, req.To, v)
			return
		}
		c.SendMessage(&network.ServerMessage{
			Type: network.MsgTypeMoved,
			Payload: network.MovedPayload{
				From:     req.From,
				To:       req.To,
				Removed:  req.Instance,
				Instance: instanceInfo(inst),
			},
		})
	})
}

func (c *Connection) handleRemove(payload json.RawMessage) {
	var req network.RemovePayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_remove", "Invalid remove payload")
		return
	}
	c.mutating(func(ws *Workspace) {
		inst, err := ws.Remove(req.Container, req.Instance)
		if err != nil {
			c.sendFailure(err)
			return
		}
		c.SendMessage(&network.ServerMessage{
			Type:    network.MsgTypeRemoved,
			Payload: network.RemovedPayload{Container: req.Container, Instance: inst.ID(), Item: inst.Item()},
		})
	})
}

func (c *Connection) handlePreview(payload json.RawMessage) {
	var req network.PreviewPayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_preview", "Invalid preview payload")
		return
	}
	c.inSession(func(ws *Workspace) {
		res, err := ws.Preview(req)
		if err != nil {
			c.sendFailure(err)
			return
		}
		c.SendMessage(&network.ServerMessage{Type: network.MsgTypePreviewResult, Payload: res})
	})
}

// targets expands an empty container name to every container
func targets(ws *Workspace, container string) []string {
	if container == "" {
		return ws.IDs()
	}
	return []string{container}
}

func (c *Connection) handleSnapshot(payload json.RawMessage) {
	var req network.ContainerPayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_snapshot", "Invalid snapshot payload")
		return
	}
	c.inSession(func(ws *Workspace) {
		for _, id := range targets(ws, req.Container) {
			snap, err := ws.Snapshot(id)
			if err != nil {
				c.sendFailure(err)
				return
			}
			c.SendMessage(&network.ServerMessage{Type: network.MsgTypeSnapshotData, Payload: snap})
		}
	})
}

func (c *Connection) handleSave(payload json.RawMessage) {
	var req network.ContainerPayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_save", "Invalid save payload")
		return
	}
	c.inSession(func(ws *Workspace) {
		for _, id := range targets(ws, req.Container) {
			n, err := ws.Save(c.server.ctx, id)
			if err != nil {
				c.sendFailure(err)
				return
			}
			c.SendMessage(&network.ServerMessage{
				Type:    network.MsgTypeSaved,
				Payload: network.SavedPayload{Container: id, Entries: n},
			})
		}
		c.player.LastSavedAt = time.Now()
	})
}

func (c *Connection) handleLoad(payload json.RawMessage) {
	var req network.ContainerPayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_load", "Invalid load payload")
		return
	}
	c.mutating(func(ws *Workspace) {
		for _, id := range targets(ws, req.Container) {
			report, err := ws.Load(c.server.ctx, id)
			if err != nil {
				c.sendFailure(err)
				return
			}
			for _, sk := range report.Skipped {
				log.Printf("[Session] Load %s/%s skipped %s", c.player.ID, id, sk)
			}
			c.SendMessage(&network.ServerMessage{
				Type:    network.MsgTypeLoaded,
				Payload: network.LoadedPayload{Container: id, Restored: report.Restored, Skipped: report.Skipped},
			})
		}
	})
}

func (c *Connection) handleOpenLoot(payload json.RawMessage) {
	var req network.OpenLootPayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_loot", "Invalid open_loot payload")
		return
	}
	c.mutating(func(ws *Workspace) {
		report, err := c.server.session.openLoot(c.server.ctx, ws, req.Source, req.DestroyWhenEmpty)
		if err != nil {
			c.sendFailure(err)
			return
		}
		for _, sk := range report.Skipped {
			log.Printf("[Session] Loot %s for %s skipped %s", req.Source, c.player.ID, sk)
		}
		snap, err := ws.Snapshot(ws.LootContainer())
		if err != nil {
			c.sendFailure(err)
			return
		}
		c.SendMessage(&network.ServerMessage{
			Type: network.MsgTypeLootOpened,
			Payload: network.LootOpenedPayload{
				Source:   req.Source,
				Restored: report.Restored,
				Skipped:  report.Skipped,
				Snapshot: snap,
			},
		})
	})
}

func (c *Connection) handleCommitLoot() {
	c.mutating(func(ws *Workspace) {
		res, err := c.server.session.commitLoot(c.server.ctx, ws)
		if err != nil {
			c.sendFailure(err)
			return
		}
		c.SendMessage(&network.ServerMessage{Type: network.MsgTypeLootCommitted, Payload: res})
	})
}

func (c *Connection) handleMergeLoot(payload json.RawMessage) {
	var req network.MergeLootPayload
	if err := decode(payload, &req); err != nil {
		c.SendError("invalid_loot", "Invalid merge_loot payload")
		return
	}
	c.mutating(func(ws *Workspace) {
		res, err := c.server.session.mergeLoot(c.server.ctx, ws, req.From, req.Target)
		if err != nil {
			c.sendFailure(err)
			return
		}
		c.SendMessage(&network.ServerMessage{Type: network.MsgTypeLootMerged, Payload: res})
	})
}

func (c *Connection) sendRejected(request, container string, v inventory.Verdict) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeRejected,
		Payload: network.RejectedPayload{
			Request:   request,
			Container: container,
			Reason:    v.Reason,
			Cell:      v.Cell,
			Blocker:   v.Blocker,
		},
	})
}

// errorCode maps handler errors onto protocol error codes
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownContainer):
		return "unknown_container"
	case errors.Is(err, ErrUnknownInstance):
		return "unknown_instance"
	case errors.Is(err, inventory.ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, ErrNoTarget):
		return "invalid_target"
	case errors.Is(err, savestore.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrLootDisabled):
		return "loot_disabled"
	case errors.Is(err, ErrNoLootSource):
		return "invalid_loot"
	case errors.Is(err, ErrLootNotOpen):
		return "loot_not_open"
	case errors.Is(err, ErrLootOpen):
		return "loot_open"
	case errors.Is(err, ErrLootBusy):
		return "loot_busy"
	case errors.Is(err, ErrLootFull):
		return "loot_full"
	default:
		return "internal_error"
	}
}

func (c *Connection) sendFailure(err error) {
	code := errorCode(err)
	if code == "internal_error" {
		log.Printf("Request from %s failed: %v", c.player.ID, err)
	}
	c.SendError(code, err.Error())
}

// SendMessage queues a message for the client, dropping it when the buffer
// is full or the connection is closed
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Send buffer full, dropping message")
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close closes the connection
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		// Remove player from session if joined
		if c.authenticated && c.player != nil {
			c.handleLeave()
		}
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}
