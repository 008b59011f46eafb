package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hexplanet/config"
	"hexplanet/rendering"
	"hexplanet/simulation"
)

func newTestServer(t *testing.T) (*simulation.World, *simulation.Engine, *httptest.Server) {
	t.Helper()
	_, world, engine, ts := startTestServer(t)
	return world, engine, ts
}

func startTestServer(t *testing.T) (*Server, *simulation.World, *simulation.Engine, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.Grid.Level = 1
	cfg.Plates.BasePlates = 5
	cfg.Plates.Subplates = 0
	cfg.Server.UpdateIntervalMs = 0

	world, err := simulation.BuildWorld(cfg, logger)
	require.NoError(t, err)

	engine := simulation.NewEngine(world.Sim, time.Hour, logger)
	engine.Pause()
	srv := NewServer(cfg.Server, world, engine, rendering.PlateColors(world.Sim.NumPlates(), 1), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx)
	}()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return srv, world, engine, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func TestWebSocketSendsMeshFirst(t *testing.T) {
	world, _, ts := newTestServer(t)
	conn := dial(t, ts)

	var mesh rendering.MeshData
	require.NoError(t, conn.ReadJSON(&mesh))
	n := world.Grid.NumCells()
	assert.Equal(t, "mesh", mesh.Type)
	assert.Equal(t, 1, mesh.Level)
	assert.Len(t, mesh.Vertices, 7*n-12)
	assert.Len(t, mesh.Heights, n)
	assert.Len(t, mesh.PlateIDs, n)
	assert.True(t, mesh.Paused)
	assert.Equal(t, 0, mesh.Step)
}

func TestWebSocketStepControl(t *testing.T) {
	world, _, ts := newTestServer(t)
	conn := dial(t, ts)

	var mesh rendering.MeshData
	require.NoError(t, conn.ReadJSON(&mesh))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "step"}))
	var update rendering.StateUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "state", update.Type)
	assert.Equal(t, 1, update.Step)
	assert.Len(t, update.Colors, world.Grid.NumCells())
	assert.Greater(t, update.TotalMass, 0.0)
}

func TestWebSocketModeAndErrors(t *testing.T) {
	_, engine, ts := newTestServer(t)
	conn := dial(t, ts)

	var mesh rendering.MeshData
	require.NoError(t, conn.ReadJSON(&mesh))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "mode", Mode: "plate"}))
	var update rendering.StateUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "state", update.Type)
	assert.NotEqual(t, mesh.Colors, update.Colors)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "explode"}))
	var msg errorMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "explode")

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "resume"}))
	require.Eventually(t, func() bool { return !engine.Paused() }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.WriteJSON(controlMessage{Action: "pause"}))
	require.Eventually(t, engine.Paused, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectedWhileShuttingDown(t *testing.T) {
	srv, _, _, ts := startTestServer(t)
	conn := dial(t, ts)

	var mesh rendering.MeshData
	require.NoError(t, conn.ReadJSON(&mesh))

	srv.stopAccepting()
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// The viewer connected before shutdown is still tracked until it leaves.
	conn.Close()
	released := make(chan struct{})
	go func() {
		srv.clients.Wait()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("connected viewer was never released")
	}
}

func TestStatusEndpoint(t *testing.T) {
	world, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, world.Grid.NumCells(), st.Cells)
	assert.Equal(t, world.Sim.NumPlates(), st.Plates)
	assert.True(t, st.Paused)
	assert.Greater(t, st.TotalMass, 0.0)
}
