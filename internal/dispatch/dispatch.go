// Package dispatch implements the session/dispatch layer: it binds
// connections to authenticated players, routes inbound wire messages to
// the game state engine, and turns engine results into outbound broadcasts.
package dispatch

import (
	"crypto/sha1"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"mazeserver/internal/apperr"
	"mazeserver/internal/broadcast"
	"mazeserver/internal/engine"
	"mazeserver/internal/maze"
	"mazeserver/internal/ratelimit"
	"mazeserver/internal/registry"
	"mazeserver/internal/transport"
	"mazeserver/internal/wire"
)

const chatMessageMaxCodepoints = 200

// session is the dispatcher's own view of a bound connection: which
// playerId it speaks for and the last server-validated position, used to
// clamp client-submitted movement.
type session struct {
	conn          *transport.Connection
	playerID      string
	lastValidated engine.Position
}

// Dispatcher holds no back-pointer into the connection layer
// beyond what it needs to bind/unbind sessions; events flow out only
// through the Broadcaster.
type Dispatcher struct {
	eng  *engine.Engine
	reg  *registry.Registry
	bc   *broadcast.Broadcaster
	rl   *ratelimit.Limiter
	log  *log.Logger
	chat io.Writer

	mu           sync.Mutex
	byConn       map[uint64]*session
	byPlayerConn map[string]uint64
}

// New builds a Dispatcher wired to its collaborators. chat may be nil to
// disable chat-log persistence.
func New(eng *engine.Engine, reg *registry.Registry, bc *broadcast.Broadcaster, rl *ratelimit.Limiter, logger *log.Logger, chat io.Writer) *Dispatcher {
	return &Dispatcher{
		eng:          eng,
		reg:          reg,
		bc:           bc,
		rl:           rl,
		log:          logger,
		chat:         chat,
		byConn:       make(map[uint64]*session),
		byPlayerConn: make(map[string]uint64),
	}
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.log != nil {
		d.log.Printf(format, args...)
	}
}

// OnMessage is the transport.Listener onMessage callback.
func (d *Dispatcher) OnMessage(conn *transport.Connection, raw []byte) {
	in, err := wire.Decode(raw)
	if err != nil {
		conn.CloseWithCode(websocket.CloseProtocolError, "malformed message")
		return
	}

	if sess := d.sessionFor(conn.ID); sess != nil {
		if d.rl != nil && in.Type != wire.TypePing && in.Type != wire.TypeAuth && !d.rl.Allow(sess.playerID) {
			d.sendError(conn, apperr.RateLimited, "rate limited")
			return
		}
	}

	switch in.Type {
	case wire.TypeAuth:
		d.handleAuth(conn, in)
	case wire.TypeMove:
		d.handleMove(conn, in)
	case wire.TypePurchaseItem:
		d.handlePurchaseItem(conn, in)
	case wire.TypeUseItem:
		d.handleUseItem(conn, in)
	case wire.TypeChatMessage:
		d.handleChatMessage(conn, in)
	case wire.TypePing:
		d.handlePing(conn, in)
	default:
		conn.CloseWithCode(websocket.CloseProtocolError, "unknown message type")
	}
}

// OnClose is the transport.Listener onClose callback.
func (d *Dispatcher) OnClose(conn *transport.Connection) {
	d.mu.Lock()
	sess, ok := d.byConn[conn.ID]
	if ok {
		delete(d.byConn, conn.ID)
		if d.byPlayerConn[sess.playerID] == conn.ID {
			delete(d.byPlayerConn, sess.playerID)
		}
	}
	d.mu.Unlock()

	if !ok || sess.playerID == "" {
		return
	}
	d.reg.Logout(sess.playerID)
	d.eng.RemovePlayer(sess.playerID)
	d.bc.BroadcastExcept(conn.ID, encodeOrNil(wire.TypePlayerLeave, playerLeavePayload{PlayerID: sess.playerID}))
}

func (d *Dispatcher) sessionFor(connID uint64) *session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byConn[connID]
}

func (d *Dispatcher) boundPlayerID(connID uint64) (string, bool) {
	sess := d.sessionFor(connID)
	if sess == nil || sess.playerID == "" {
		return "", false
	}
	return sess.playerID, true
}

func encodeOrNil(msgType string, payload interface{}) []byte {
	data, err := wire.Encode(msgType, payload)
	if err != nil {
		return nil
	}
	return data
}

// send routes a targeted message through the broadcaster so every outbound
// frame, targeted or fanned out, takes the same path to the wire.
func (d *Dispatcher) send(conn *transport.Connection, msgType string, payload interface{}) {
	data, err := wire.Encode(msgType, payload)
	if err != nil {
		d.logf("dispatch: encode %s failed: %v", msgType, err)
		return
	}
	d.bc.Send(conn.ID, data)
}

func (d *Dispatcher) sendError(conn *transport.Connection, kind apperr.Kind, message string) {
	d.send(conn, wire.TypeError, errorPayload{Code: string(kind), Message: message})
	if kind.ClosesConnection() {
		conn.CloseWithCode(websocket.CloseProtocolError, message)
	}
}

// kindFromErr extracts the apperr.Kind from err, defaulting to Internal.
func kindFromErr(err error) apperr.Kind {
	if ae, ok := err.(*apperr.Error); ok {
		return ae.Kind
	}
	return apperr.Internal
}

// surrogateFingerprint derives a canonical-form fingerprint from connId so
// RegisterOrResolve has a stable, unique key for clients that omit one.
func surrogateFingerprint(connID uint64) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("conn-%d", connID)))
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", sum[0], sum[1], sum[2], sum[3], sum[4], sum[5])
}

func (d *Dispatcher) handleAuth(conn *transport.Connection, in *wire.Inbound) {
	var f authFields
	_, _ = in.Field("playerId", &f.PlayerID)
	_, _ = in.Field("playerName", &f.PlayerName)
	_, _ = in.Field("token", &f.Token)

	playerID := f.PlayerID
	if playerID == "" || !d.reg.IsValid(playerID) {
		id, err := d.reg.RegisterOrResolve(surrogateFingerprint(conn.ID), f.PlayerName)
		if err != nil {
			d.send(conn, wire.TypeAuthFailed, authFailedPayload{Reason: "registration failed"})
			conn.CloseWithCode(websocket.CloseNormalClosure, "auth failed")
			return
		}
		playerID = id
	}

	if !d.reg.Login(playerID) {
		d.send(conn, wire.TypeAuthFailed, authFailedPayload{Reason: "login failed"})
		conn.CloseWithCode(websocket.CloseNormalClosure, "auth failed")
		return
	}

	d.mu.Lock()
	if priorConnID, exists := d.byPlayerConn[playerID]; exists {
		if prior, ok := d.byConn[priorConnID]; ok {
			d.mu.Unlock()
			prior.conn.CloseWithCode(websocket.CloseNormalClosure, "superseded by a new session")
			d.mu.Lock()
			delete(d.byConn, priorConnID)
		}
	}
	d.byPlayerConn[playerID] = conn.ID
	d.mu.Unlock()

	if _, ok := d.eng.GetPlayer(playerID); !ok {
		_ = d.eng.AddPlayer(playerID)
	}
	p, _ := d.eng.GetPlayer(playerID)

	conn.BindPlayer(playerID)
	d.mu.Lock()
	d.byConn[conn.ID] = &session{conn: conn, playerID: playerID, lastValidated: p.Position}
	d.mu.Unlock()

	token := fmt.Sprintf("session_%d", time.Now().Unix())
	d.send(conn, wire.TypeAuthSuccess, authSuccessPayload{Token: token, PlayerID: playerID})

	rec, _ := d.reg.Get(playerID)
	d.send(conn, wire.TypePlayerData, playerDataPayload{
		PlayerID:    playerID,
		Coins:       p.Coins,
		Position:    toWirePosition(p.Position),
		Inventory:   toWireInventory(p.Inventory),
		HasCompass:  p.HasCompass,
		Alive:       p.Alive,
		TotalCoins:  rec.TotalCoins,
		GamesPlayed: rec.GamesPlayed,
	})
	d.send(conn, wire.TypeMazeData, d.eng.MazeSnapshot())

	d.bc.BroadcastExcept(conn.ID, encodeOrNil(wire.TypePlayerJoin, playerJoinPayload{PlayerID: playerID}))
}

func toWirePosition(p engine.Position) positionWire {
	return positionWire{X: p.X, Y: p.Y, Z: p.Z}
}

func toWireInventory(inv map[engine.ItemKind]int) map[string]int {
	out := make(map[string]int, len(inv))
	for k, v := range inv {
		out[string(k)] = v
	}
	return out
}

func (d *Dispatcher) handleMove(conn *transport.Connection, in *wire.Inbound) {
	playerID, ok := d.boundPlayerID(conn.ID)
	if !ok {
		return
	}
	var f moveFields
	if _, err := in.Field("position", &f.Position); err != nil {
		return
	}
	_, _ = in.Field("rotation", &f.Rotation)

	submitted := engine.Position{X: f.Position[0], Y: f.Position[1], Z: f.Position[2]}
	resolved := d.applyMove(playerID, submitted, f.Rotation)

	d.mu.Lock()
	if sess, ok := d.byConn[conn.ID]; ok {
		sess.lastValidated = resolved
	}
	d.mu.Unlock()

	d.bc.BroadcastExcept(conn.ID, encodeOrNil(wire.TypePlayerMoved, playerMovedPayload{
		PlayerID: playerID,
		Position: toWirePosition(resolved),
		Rotation: f.Rotation,
	}))
}

// applyMove replays the submitted position as a single engine.Move in
// whichever direction (if any) reproduces it. The server is authoritative:
// moves not reachable in one step from the last accepted position are
// rejected and the last validated position stands.
func (d *Dispatcher) applyMove(playerID string, submitted engine.Position, yaw float64) engine.Position {
	d.eng.SetFacing(playerID, yaw)
	before, ok := d.eng.GetPlayer(playerID)
	if !ok {
		return submitted
	}
	targetCell := submitted.Cell()
	if targetCell == before.Position.Cell() {
		return before.Position
	}

	directions := []engine.Direction{
		engine.Forward, engine.Backward, engine.StrafeLeft, engine.StrafeRight, engine.Up, engine.Down,
	}
	for _, dir := range directions {
		cand, err := d.eng.CandidateCell(playerID, dir)
		if err != nil || cand != targetCell {
			continue
		}
		outcome, err := d.eng.Move(playerID, dir)
		if err != nil {
			continue
		}
		after, _ := d.eng.GetPlayer(playerID)
		if outcome.CoinCollected {
			d.emitCoinCollected(playerID, outcome.CoinIndex, after)
		}
		if outcome.ReachedGoal {
			d.maybeEmitGoalEvent(playerID, after)
		}
		return after.Position
	}
	return before.Position
}

func (d *Dispatcher) maybeEmitGoalEvent(playerID string, p engine.PlayerState) {
	if p.ReachedGoal && p.FinishRank > 0 {
		d.bc.Broadcast(encodeOrNil(wire.TypeGameEvent, gameEventPayload{
			EventType:  wire.EventPlayerReachedGoal,
			PlayerID:   playerID,
			FinishRank: p.FinishRank,
			Bonus:      61 - p.FinishRank,
		}))
		if d.eng.FinishedCount() == d.eng.PlayerCount() {
			d.bc.Broadcast(encodeOrNil(wire.TypeGameEvent, gameEventPayload{
				EventType: wire.EventGameOver,
			}))
		}
	}
}

func (d *Dispatcher) emitCoinCollected(playerID string, coinIndex int, p engine.PlayerState) {
	d.bc.Broadcast(encodeOrNil(wire.TypeGameEvent, gameEventPayload{
		EventType: wire.EventCoinCollected,
		PlayerID:  playerID,
		CoinIndex: coinIndex,
		Coins:     p.Coins,
	}))
}

func (d *Dispatcher) handlePurchaseItem(conn *transport.Connection, in *wire.Inbound) {
	playerID, ok := d.boundPlayerID(conn.ID)
	if !ok {
		return
	}
	var f purchaseItemFields
	_, _ = in.Field("itemType", &f.ItemType)

	kind, known := engine.ParseItemKind(wire.NormalizeItemKind(f.ItemType))
	if !known {
		d.sendError(conn, apperr.InvalidTarget, "unknown item type")
		return
	}
	if err := d.eng.PurchaseItem(playerID, kind); err != nil {
		d.sendError(conn, kindFromErr(err), err.Error())
		return
	}
	p, _ := d.eng.GetPlayer(playerID)
	d.send(conn, wire.TypeGameState, gameStatePayload{
		PlayerID:       playerID,
		Coins:          p.Coins,
		Inventory:      toWireInventory(p.Inventory),
		RemainingCoins: d.eng.RemainingCoins(),
		FinishedCount:  d.eng.FinishedCount(),
	})
}

func (d *Dispatcher) handleUseItem(conn *transport.Connection, in *wire.Inbound) {
	playerID, ok := d.boundPlayerID(conn.ID)
	if !ok {
		return
	}
	var f useItemFields
	_, _ = in.Field("itemType", &f.ItemType)
	_, _ = in.Field("targetPlayerId", &f.TargetPlayerID)
	_, _ = in.Field("targetPosition", &f.TargetPosition)

	kind, known := engine.ParseItemKind(wire.NormalizeItemKind(f.ItemType))
	if !known {
		d.sendError(conn, apperr.InvalidTarget, "unknown item type")
		return
	}

	var targetCell *maze.Coord
	var targetPosPtr *positionWire
	if f.TargetPosition != nil {
		c := maze.Coord{X: int(f.TargetPosition[0]), Y: int(f.TargetPosition[1]), Z: int(f.TargetPosition[2])}
		targetCell = &c
		targetPosPtr = &positionWire{X: f.TargetPosition[0], Y: f.TargetPosition[1], Z: f.TargetPosition[2]}
	}

	if err := d.eng.UseItem(playerID, kind, f.TargetPlayerID, targetCell); err != nil {
		d.sendError(conn, kindFromErr(err), err.Error())
		return
	}

	d.bc.Broadcast(encodeOrNil(wire.TypeItemEffect, itemEffectPayload{
		PlayerID:       playerID,
		ItemType:       string(kind),
		TargetPlayerID: f.TargetPlayerID,
		TargetPosition: targetPosPtr,
	}))
}

func (d *Dispatcher) handleChatMessage(conn *transport.Connection, in *wire.Inbound) {
	playerID, ok := d.boundPlayerID(conn.ID)
	if !ok {
		return
	}
	var f chatMessageFields
	_, _ = in.Field("message", &f.Message)

	msg := truncateToCodepoints(f.Message, chatMessageMaxCodepoints)
	if d.chat != nil {
		fmt.Fprintf(d.chat, "%s %s: %s\n", time.Now().Format(time.RFC3339), playerID, msg)
	}
	d.bc.Broadcast(encodeOrNil(wire.TypeChatMessage, chatMessagePayload{
		PlayerID: playerID,
		Sender:   playerID,
		Message:  msg,
	}))
}

func truncateToCodepoints(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func (d *Dispatcher) handlePing(conn *transport.Connection, in *wire.Inbound) {
	var f pingFields
	if ok, _ := in.Field("timestamp", &f.Timestamp); !ok {
		// A flat-dialect ping's timestamp is the envelope's own.
		f.Timestamp = in.Timestamp
	}
	d.send(conn, wire.TypePong, pongPayload{Timestamp: f.Timestamp})
}

// OnlineCount returns the number of currently bound sessions.
func (d *Dispatcher) OnlineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byPlayerConn)
}

// CloseBoundConnection closes playerId's bound connection, if any, with a
// normal-closure code and reason. Used by the operator console's "kick"
// command. Reports whether a bound connection was found.
func (d *Dispatcher) CloseBoundConnection(playerID, reason string) bool {
	d.mu.Lock()
	connID, ok := d.byPlayerConn[playerID]
	var conn *transport.Connection
	if ok {
		if sess, exists := d.byConn[connID]; exists {
			conn = sess.conn
		}
	}
	d.mu.Unlock()

	if conn == nil {
		return false
	}
	conn.CloseWithCode(websocket.CloseNormalClosure, reason)
	return true
}
