package dispatch

import (
	"encoding/json"
	"math/rand"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mazeserver/internal/broadcast"
	"mazeserver/internal/engine"
	"mazeserver/internal/maze"
	"mazeserver/internal/registry"
	"mazeserver/internal/transport"
	"mazeserver/internal/wire"
)

// listenerTable defers Snapshot to a *transport.Listener assigned after
// construction, breaking the broadcast/dispatch/listener construction cycle
// the same way the supervisor wires the real server together.
type listenerTable struct {
	get func() *transport.Listener
}

func (t listenerTable) Snapshot() []*transport.Connection {
	if l := t.get(); l != nil {
		return l.Snapshot()
	}
	return nil
}

// testServer bundles a Dispatcher wired onto a real httptest WebSocket
// listener, the same integration shape transport's own tests use.
type testServer struct {
	eng *engine.Engine
	reg *registry.Registry
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m, pool := maze.Generate(maze.GenConfig{
		Width: 11, Height: 11, Layers: 1,
		CoinMin: 1, CoinMax: 1,
		Rand: rand.New(rand.NewSource(3)),
	})
	eng := engine.New(m, pool, rand.New(rand.NewSource(3)))
	reg, err := registry.New(filepath.Join(t.TempDir(), "players.json"), nil)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	var listener *transport.Listener
	bc := broadcast.New(listenerTable{get: func() *transport.Listener { return listener }})
	disp := New(eng, reg, bc, nil, nil, nil)
	listener = transport.New("", nil, disp.OnMessage, disp.OnClose)

	srv := httptest.NewServer(listener.Handler())
	t.Cleanup(srv.Close)
	return &testServer{eng: eng, reg: reg, srv: srv}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wire.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func readUntilType(t *testing.T, conn *websocket.Conn, msgType string) wire.Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := readEnvelope(t, conn)
		if env.Type == msgType {
			return env
		}
	}
	t.Fatalf("did not see message type %q", msgType)
	return wire.Envelope{}
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestAuthAssignsNewPlayerAndSendsBootstrap(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	sendJSON(t, conn, map[string]interface{}{
		"type": wire.TypeAuth,
		"data": map[string]string{"playerName": "Newcomer"},
	})

	success := readUntilType(t, conn, wire.TypeAuthSuccess)
	var sp authSuccessPayload
	if err := json.Unmarshal(success.Data, &sp); err != nil {
		t.Fatalf("unmarshal auth_success: %v", err)
	}
	if sp.PlayerID == "" {
		t.Fatal("expected a minted playerId")
	}
	if !ts.reg.IsValid(sp.PlayerID) {
		t.Fatal("expected the minted playerId to be registered")
	}

	pdEnv := readUntilType(t, conn, wire.TypePlayerData)
	var pd playerDataPayload
	if err := json.Unmarshal(pdEnv.Data, &pd); err != nil {
		t.Fatalf("unmarshal player_data: %v", err)
	}
	if pd.PlayerID != sp.PlayerID {
		t.Fatalf("player_data playerId = %q, want %q", pd.PlayerID, sp.PlayerID)
	}

	readUntilType(t, conn, wire.TypeMazeData)

	if _, ok := ts.eng.GetPlayer(sp.PlayerID); !ok {
		t.Fatal("expected engine to track the new player")
	}
}

func TestSecondAuthSupersedesFirstConnection(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dial(t)

	sendJSON(t, first, map[string]interface{}{
		"type": wire.TypeAuth,
		"data": map[string]string{"playerName": "Returning"},
	})
	success := readUntilType(t, first, wire.TypeAuthSuccess)
	var sp authSuccessPayload
	json.Unmarshal(success.Data, &sp)
	readUntilType(t, first, wire.TypePlayerData)
	readUntilType(t, first, wire.TypeMazeData)

	second := ts.dial(t)
	sendJSON(t, second, map[string]interface{}{
		"type": wire.TypeAuth,
		"data": map[string]string{"playerId": sp.PlayerID},
	})
	readUntilType(t, second, wire.TypeAuthSuccess)

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("expected the first connection to be closed once superseded")
	}
}

func TestMoveRejectsNonAdjacentCell(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	observer := ts.dial(t)

	sendJSON(t, conn, map[string]interface{}{
		"type": wire.TypeAuth,
		"data": map[string]string{"playerName": "Mover"},
	})
	success := readUntilType(t, conn, wire.TypeAuthSuccess)
	var sp authSuccessPayload
	json.Unmarshal(success.Data, &sp)
	readUntilType(t, conn, wire.TypePlayerData)
	readUntilType(t, conn, wire.TypeMazeData)

	sendJSON(t, observer, map[string]interface{}{
		"type": wire.TypeAuth,
		"data": map[string]string{"playerName": "Observer"},
	})
	readUntilType(t, observer, wire.TypeAuthSuccess)
	readUntilType(t, observer, wire.TypePlayerData)
	readUntilType(t, observer, wire.TypeMazeData)
	readUntilType(t, conn, wire.TypePlayerJoin) // the observer's own join

	before, _ := ts.eng.GetPlayer(sp.PlayerID)

	// A jump of (10, 10) from START cannot be reached in one step in any
	// direction, so the engine must clamp it back to the pre-move position.
	sendJSON(t, conn, map[string]interface{}{
		"type": wire.TypeMove,
		"data": map[string]interface{}{
			"position": [3]float64{before.Position.X + 10, before.Position.Y + 10, before.Position.Z},
			"rotation": 0,
		},
	})

	// The mover excludes itself from the player_moved broadcast, so read it
	// on the observer connection: once it arrives, handleMove has already
	// finished mutating (or declining to mutate) engine state.
	readUntilType(t, observer, wire.TypePlayerMoved)
	after, _ := ts.eng.GetPlayer(sp.PlayerID)
	if after.Position != before.Position {
		t.Fatalf("expected clamp to reject the move, position changed to %+v", after.Position)
	}
}

func TestChatMessageTruncatesAndBroadcasts(t *testing.T) {
	ts := newTestServer(t)
	sender := ts.dial(t)
	sendJSON(t, sender, map[string]interface{}{
		"type": wire.TypeAuth,
		"data": map[string]string{"playerName": "Chatty"},
	})
	readUntilType(t, sender, wire.TypeAuthSuccess)
	readUntilType(t, sender, wire.TypePlayerData)
	readUntilType(t, sender, wire.TypeMazeData)

	listener := ts.dial(t)
	sendJSON(t, listener, map[string]interface{}{
		"type": wire.TypeAuth,
		"data": map[string]string{"playerName": "Listener"},
	})
	readUntilType(t, listener, wire.TypeAuthSuccess)
	readUntilType(t, listener, wire.TypePlayerData)
	readUntilType(t, listener, wire.TypeMazeData)
	// The listener's own join broadcasts a player_join to sender; drain it
	// so the next read on sender is the chat message under test.
	readUntilType(t, sender, wire.TypePlayerJoin)

	longMessage := strings.Repeat("x", chatMessageMaxCodepoints+50)
	sendJSON(t, sender, map[string]interface{}{
		"type": wire.TypeChatMessage,
		"data": map[string]string{"message": longMessage},
	})

	env := readUntilType(t, listener, wire.TypeChatMessage)
	var payload chatMessagePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal chat_message: %v", err)
	}
	if len([]rune(payload.Message)) != chatMessageMaxCodepoints {
		t.Fatalf("message length = %d, want %d", len([]rune(payload.Message)), chatMessageMaxCodepoints)
	}
}
