package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gravitas-games/lanternbound/internal/config"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"github.com/gravitas-games/lanternbound/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := NewSession("test", cfg, inventory.SampleRegistry(), savestore.NewMemory())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s
}

func TestNewSessionRequiresDependencies(t *testing.T) {
	cfg := config.Default()
	_, err := NewSession("x", cfg, nil, savestore.NewMemory())
	assert.ErrorIs(t, err, inventory.ErrNoRegistry)
	_, err = NewSession("x", cfg, inventory.SampleRegistry(), nil)
	assert.Error(t, err)
}

func TestSessionDoRunsSerially(t *testing.T) {
	s := runSession(t, config.Default())

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Do(func() { counter++ }))
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, s.Do(func() { got = counter }))
	assert.Equal(t, 50, got)
}

func TestSessionSurvivesPanickingCommand(t *testing.T) {
	s := runSession(t, config.Default())
	assert.NoError(t, s.Do(func() { panic("boom") }))

	ran := false
	require.NoError(t, s.Do(func() { ran = true }))
	assert.True(t, ran)
}

func TestSessionStop(t *testing.T) {
	s := runSession(t, config.Default())
	require.NoError(t, s.Do(func() {}))
	assert.Equal(t, "running", s.GetStatus().State)

	s.Stop()
	s.Stop()
	assert.ErrorIs(t, s.Do(func() {}), ErrSessionStopped)
	assert.Equal(t, "stopped", s.GetStatus().State)
}

func TestSessionTicks(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TickRate = 200
	s := runSession(t, cfg)
	assert.Eventually(t, func() bool { return s.GetStatus().ServerTick >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionWorkspaceCreatedOnce(t *testing.T) {
	s := runSession(t, config.Default())
	require.NoError(t, s.Do(func() {
		ws, created, err := s.workspace("7")
		require.NoError(t, err)
		assert.True(t, created)
		again, created, err := s.workspace("7")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Same(t, ws, again)
	}))
}

func TestSessionPlayers(t *testing.T) {
	cfg := config.Default()
	cfg.Session.MaxPlayers = 1
	s := runSession(t, cfg)

	ash := &models.Player{ID: "1", Username: "ash"}
	conn := &Connection{player: ash}
	require.NoError(t, s.AddPlayer(ash, conn))
	// rejoining does not count against the limit
	require.NoError(t, s.AddPlayer(ash, conn))
	ember := &models.Player{ID: "2", Username: "ember"}
	assert.ErrorIs(t, s.AddPlayer(ember, &Connection{player: ember}), ErrSessionFull)

	got, ok := s.GetPlayer("1")
	require.True(t, ok)
	assert.Same(t, ash, got)
	assert.Len(t, s.GetPlayers(), 1)
	assert.Equal(t, 1, s.GetStatus().PlayerCount)

	assert.True(t, s.RemovePlayer(conn))
	assert.False(t, s.RemovePlayer(conn))
	assert.False(t, s.RemovePlayer(nil))
	_, ok = s.GetPlayer("1")
	assert.False(t, ok)
	assert.Zero(t, s.GetStatus().NetworkStatus().PlayerCount)
}

func TestSessionOneConnectionPerPlayer(t *testing.T) {
	s := runSession(t, config.Default())

	first := &Connection{player: &models.Player{ID: "1", Username: "ash"}}
	second := &Connection{player: &models.Player{ID: "1", Username: "ash"}}
	require.NoError(t, s.AddPlayer(first.player, first))
	assert.ErrorIs(t, s.AddPlayer(second.player, second), ErrAlreadyJoined)

	// the refused connection cannot remove the joined one
	assert.False(t, s.RemovePlayer(second))
	_, ok := s.GetPlayer("1")
	assert.True(t, ok)

	assert.True(t, s.RemovePlayer(first))
	require.NoError(t, s.AddPlayer(second.player, second))
}

func TestSessionEvict(t *testing.T) {
	s := runSession(t, config.Default())
	require.NoError(t, s.Do(func() {
		ws, _, err := s.workspace("7")
		require.NoError(t, err)
		s.evict("7")
		assert.Empty(t, s.workspaces)
		again, created, err := s.workspace("7")
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotSame(t, ws, again)
	}))
}

func TestSessionLootClaims(t *testing.T) {
	s := runSession(t, config.Default())
	ctx := context.Background()
	require.NoError(t, s.Do(func() {
		ash, _, err := s.workspace("1")
		require.NoError(t, err)
		ember, _, err := s.workspace("2")
		require.NoError(t, err)

		_, err = s.openLoot(ctx, ash, "crate-1", false)
		require.NoError(t, err)
		assert.Equal(t, "1", s.lootHolders["crate-1"])

		_, err = s.openLoot(ctx, ember, "crate-1", false)
		assert.ErrorIs(t, err, ErrLootBusy)
		_, err = s.mergeLoot(ctx, ember, "loadout", "crate-1")
		assert.ErrorIs(t, err, ErrLootBusy)

		// switching sources releases the previous one
		_, err = s.openLoot(ctx, ash, "crate-2", false)
		require.NoError(t, err)
		assert.NotContains(t, s.lootHolders, "crate-1")
		_, err = s.openLoot(ctx, ember, "crate-1", false)
		require.NoError(t, err)

		res, err := s.commitLoot(ctx, ash)
		require.NoError(t, err)
		assert.Equal(t, "crate-2", res.Source)
		assert.NotContains(t, s.lootHolders, "crate-2")
		assert.Equal(t, map[string]string{"crate-1": "2"}, s.lootHolders)

		_, err = s.commitLoot(ctx, ash)
		assert.ErrorIs(t, err, ErrLootNotOpen)
	}))
}
