package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gravitas-games/lanternbound/internal/config"
	"github.com/gravitas-games/lanternbound/internal/network"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"github.com/gravitas-games/lanternbound/pkg/models"
)

var (
	ErrSessionStopped = errors.New("session stopped")
	ErrSessionFull    = errors.New("session full")
	ErrAlreadyJoined  = errors.New("player already joined from another connection")
)

// Session represents a game session. Every container of every player is
// mutated only by the session loop; other goroutines hand it closures via Do.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Player management
	players     map[string]*models.Player // playerID -> Player
	connections map[string]*Connection    // playerID -> Connection
	mu          sync.RWMutex

	// Inventory state, owned by the loop goroutine
	workspaces  map[string]*Workspace
	lootHolders map[string]string // loot source -> playerID
	registry    *inventory.Registry
	store       savestore.Store

	status SessionStatus

	// Command loop
	commands chan func()
	done     chan struct{}
	stopOnce sync.Once

	// Configuration
	config *config.Config
}

// SessionStatus represents the current state of the session
type SessionStatus struct {
	State       string `json:"state"` // "waiting", "running", "stopped"
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	ServerTick  int64  `json:"server_tick"`
	Uptime      int64  `json:"uptime"` // seconds
}

// NewSession creates a new game session
func NewSession(id string, cfg *config.Config, reg *inventory.Registry, store savestore.Store) (*Session, error) {
	if reg == nil {
		return nil, inventory.ErrNoRegistry
	}
	if store == nil {
		return nil, errors.New("session needs a save store")
	}
	log.Printf("Creating session: %s", id)

	session := &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		players:     make(map[string]*models.Player),
		connections: make(map[string]*Connection),
		workspaces:  make(map[string]*Workspace),
		lootHolders: make(map[string]string),
		registry:    reg,
		store:       store,
		commands:    make(chan func(), cfg.Session.QueueSize),
		done:        make(chan struct{}),
		config:      cfg,
		status: SessionStatus{
			State:      "waiting",
			MaxPlayers: cfg.Session.MaxPlayers,
		},
	}

	log.Printf("Session %s created with %d item types and %d containers per player",
		id, reg.Len(), len(cfg.Inventory.Containers))
	return session, nil
}

// Run executes queued commands and advances the server tick until ctx is
// cancelled or Stop is called.
func (s *Session) Run(ctx context.Context) {
	defer s.Stop()

	rate := s.config.Server.TickRate
	if rate <= 0 {
		rate = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	s.setState("running")
	for {
		select {
		case fn := <-s.commands:
			s.exec(fn)
		case <-ticker.C:
			s.mu.Lock()
			s.status.ServerTick++
			s.mu.Unlock()
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Session) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Session %s: command panicked: %v", s.ID, r)
		}
	}()
	fn()
}

// Stop ends the loop. Pending and future Do calls fail with ErrSessionStopped.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.setState("stopped")
	})
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) setState(state string) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

// Do runs fn on the loop goroutine and waits for it to finish. It must not
// be called from the loop itself.
func (s *Session) Do(fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSessionStopped
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionStopped
	}
}

// workspace returns the player's workspace, creating it on first use. Loop
// goroutine only.
func (s *Session) workspace(playerID string) (ws *Workspace, created bool, err error) {
	if ws, ok := s.workspaces[playerID]; ok {
		return ws, false, nil
	}
	ws, err = NewWorkspace(playerID, s.config, s.registry, s.store)
	if err != nil {
		return nil, false, err
	}
	s.workspaces[playerID] = ws
	return ws, true, nil
}

// evict drops the player's workspace so the next join restores it from the
// store. Loop goroutine only.
func (s *Session) evict(playerID string) {
	delete(s.workspaces, playerID)
}

// openLoot claims source for the workspace owner and opens it. A source held
// by another player is refused with ErrLootBusy. Loop goroutine only.
func (s *Session) openLoot(ctx context.Context, ws *Workspace, source string, destroyWhenEmpty bool) (inventory.LoadReport, error) {
	if holder, ok := s.lootHolders[source]; ok && holder != ws.Owner() {
		return inventory.LoadReport{}, fmt.Errorf("%w: %s", ErrLootBusy, source)
	}
	prev, hadPrev := ws.LootSource()
	report, err := ws.OpenLoot(ctx, source, destroyWhenEmpty)
	if cur, open := ws.LootSource(); hadPrev && (!open || cur != prev) {
		delete(s.lootHolders, prev)
	}
	if err != nil {
		return report, err
	}
	s.lootHolders[source] = ws.Owner()
	return report, nil
}

// commitLoot commits the workspace's open source and releases its claim.
// Loop goroutine only.
func (s *Session) commitLoot(ctx context.Context, ws *Workspace) (network.LootCommittedPayload, error) {
	res, err := ws.CommitLoot(ctx)
	if _, open := ws.LootSource(); !open && res.Source != "" {
		delete(s.lootHolders, res.Source)
	}
	return res, err
}

// mergeLoot drops a container into target unless another player has target
// open. Loop goroutine only.
func (s *Session) mergeLoot(ctx context.Context, ws *Workspace, from, target string) (network.LootMergedPayload, error) {
	if holder, ok := s.lootHolders[target]; ok && holder != ws.Owner() {
		return network.LootMergedPayload{From: from, Target: target}, fmt.Errorf("%w: %s", ErrLootBusy, target)
	}
	return ws.MergeLoot(ctx, from, target)
}

// AddPlayer adds a player to the session. A player can be joined from one
// connection at a time.
func (s *Session) AddPlayer(player *models.Player, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.connections[player.ID]; ok && existing != conn {
		return ErrAlreadyJoined
	}
	if _, exists := s.players[player.ID]; !exists && s.status.MaxPlayers > 0 && len(s.players) >= s.status.MaxPlayers {
		return ErrSessionFull
	}
	s.players[player.ID] = player
	s.connections[player.ID] = conn
	s.status.PlayerCount = len(s.players)

	log.Printf("Player %s (%s) joined session %s", player.Username, player.ID, s.ID)
	return nil
}

// RemovePlayer removes the player joined through conn. It reports false when
// conn is not the player's registered connection.
func (s *Session) RemovePlayer(conn *Connection) bool {
	if conn == nil || conn.player == nil {
		return false
	}
	playerID := conn.player.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[playerID] != conn {
		return false
	}
	if player, exists := s.players[playerID]; exists {
		log.Printf("Player %s (%s) left session %s", player.Username, playerID, s.ID)
	}
	delete(s.players, playerID)
	delete(s.connections, playerID)
	s.status.PlayerCount = len(s.players)
	return true
}

// GetPlayer retrieves a player by ID
func (s *Session) GetPlayer(playerID string) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[playerID]
	return player, exists
}

// GetPlayers returns all players in the session
func (s *Session) GetPlayers() []*models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*models.Player, 0, len(s.players))
	for _, player := range s.players {
		players = append(players, player)
	}
	return players
}

// BroadcastMessage sends a message to all connected players
func (s *Session) BroadcastMessage(msg *network.ServerMessage) {
	s.BroadcastExcept(nil, msg)
}

// BroadcastExcept sends a message to all players except the specified connection
func (s *Session) BroadcastExcept(exclude *Connection, msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		if conn != exclude {
			conn.SendMessage(msg)
		}
	}
}

// GetStatus returns the current session status
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.status
	status.Uptime = int64(time.Since(s.CreatedAt).Seconds())
	return status
}

// NetworkStatus converts the status for the wire
func (st SessionStatus) NetworkStatus() network.SessionStatus {
	return network.SessionStatus{
		State:       st.State,
		PlayerCount: st.PlayerCount,
		MaxPlayers:  st.MaxPlayers,
		ServerTick:  st.ServerTick,
		Uptime:      st.Uptime,
	}
}
