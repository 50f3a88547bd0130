package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gravitas-games/lanternbound/internal/config"
	"github.com/gravitas-games/lanternbound/internal/network"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndCatalog(t *testing.T) {
	srv := newTestServer(t, savestore.NewMemory(), nil)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health struct {
		Status  string                `json:"status"`
		Session network.SessionStatus `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 100, health.Session.MaxPlayers)

	resp, err = http.Get(ts.URL + "/catalog")
	require.NoError(t, err)
	defer resp.Body.Close()
	var items []inventory.ItemDetails
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	assert.Equal(t, inventory.SampleRegistry().Export(), items)
}

func TestLoadRegistry(t *testing.T) {
	cfg := config.Default()
	reg, err := loadRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, reg.Len())

	cfg.Inventory.CatalogPath = t.TempDir() + "/missing.yaml"
	_, err = loadRegistry(cfg)
	assert.Error(t, err)
}

func TestWebSocketSession(t *testing.T) {
	key := newKey(t)
	v := NewStaticJWTValidator(context.Background(), testJWTConfig(), &key.PublicKey, nil)
	store := savestore.NewMemory()
	srv := newTestServer(t, store, v)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer garbage"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + sign(t, key, validClaims())}})
	require.NoError(t, err)

	read := func() received {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var m received
		require.NoError(t, ws.ReadJSON(&m))
		return m
	}

	require.NoError(t, ws.WriteJSON(network.ClientMessage{Type: network.MsgTypeJoin}))
	welcome := read()
	require.Equal(t, network.MsgTypeWelcome, welcome.Type)

	payload, err := json.Marshal(network.PlacePayload{Container: "ground", Item: "hand-axe", Target: network.Target{Anchor: &grid.Point{X: 2, Y: 0}}})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(network.ClientMessage{Type: network.MsgTypePlace, Payload: payload}))
	for i := 0; i < 4; i++ {
		assert.Equal(t, network.MsgTypeCellChanged, read().Type)
	}
	assert.Equal(t, network.MsgTypePlaced, read().Type)

	require.NoError(t, ws.Close())

	// closing the socket saves the player's containers
	assert.Eventually(t, func() bool {
		ok, err := store.Exists(context.Background(), savestore.Key{Player: "42", Container: "ground"})
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)
}
