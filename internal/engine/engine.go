// Package engine implements the authoritative game state engine: the
// maze, coin pool, player runtime states, item inventories, ephemeral
// effects, and finish ordering for a single match. Every exported method
// takes the engine's single mutex for its duration; none suspend on I/O.
package engine

import (
	"math/rand"
	"sync"
	"time"

	"mazeserver/internal/apperr"
	"mazeserver/internal/maze"
)

// Position is a player's float position in the maze's coordinate space.
type Position struct {
	X, Y, Z float64
}

// Cell rounds each coordinate of a Position to the nearest integer (halves
// away from zero) to give its integer cell.
func (p Position) Cell() maze.Coord {
	return maze.Coord{X: int(round(p.X)), Y: int(round(p.Y)), Z: int(round(p.Z))}
}

func round(f float64) float64 {
	if f >= 0 {
		return float64(int(f + 0.5))
	}
	return float64(int(f - 0.5))
}

func cellPosition(c maze.Coord) Position {
	return Position{X: float64(c.X), Y: float64(c.Y), Z: float64(c.Z)}
}

// PlayerState is a player's runtime state for the current match.
type PlayerState struct {
	PlayerID        string
	Position        Position
	Yaw             float64
	Alive           bool
	HasCompass      bool
	SpeedBoostUntil time.Time
	Coins           int
	Inventory       map[ItemKind]int
	ReachedGoal     bool
	FinishRank      int
}

func newPlayerState(playerID string, start maze.Coord) *PlayerState {
	return &PlayerState{
		PlayerID:  playerID,
		Position:  cellPosition(start),
		Alive:     true,
		Inventory: make(map[ItemKind]int),
	}
}

func (p *PlayerState) speedBoosted(now time.Time) bool {
	return !p.SpeedBoostUntil.IsZero() && p.SpeedBoostUntil.After(now)
}

// clone returns a deep copy safe to hand to callers outside the lock.
func (p *PlayerState) clone() PlayerState {
	cp := *p
	cp.Inventory = make(map[ItemKind]int, len(p.Inventory))
	for k, v := range p.Inventory {
		cp.Inventory[k] = v
	}
	return cp
}

type brokenWall struct {
	repairAt time.Time
}

type slowTrap struct {
	placedAt time.Time
}

// Engine is the single source of truth for match state, guarded by one
// mutex (the "coarse exclusion region"). Callers never see it suspend on
// I/O.
type Engine struct {
	mu sync.Mutex

	maze  *maze.Maze
	coins *maze.CoinPool

	players map[string]*PlayerState

	brokenWalls map[maze.Coord]brokenWall
	slowTraps   map[maze.Coord]slowTrap

	running        bool
	finishedCount  int
	nextFinishRank int

	nonBlocking []maze.Coord
	rng         *rand.Rand
	timeNow     func() time.Time
}

// New constructs an Engine over m and pool. rng may be nil (defaults to a
// time-seeded source); tests should pass a seeded one for determinism.
func New(m *maze.Maze, pool *maze.CoinPool, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Engine{
		maze:           m,
		coins:          pool,
		players:        make(map[string]*PlayerState),
		brokenWalls:    make(map[maze.Coord]brokenWall),
		slowTraps:      make(map[maze.Coord]slowTrap),
		running:        true,
		nextFinishRank: 1,
		rng:            rng,
		timeNow:        time.Now,
	}
	e.nonBlocking = collectNonBlocking(m)
	return e
}

func collectNonBlocking(m *maze.Maze) []maze.Coord {
	var out []maze.Coord
	for z := 0; z < m.Layers; z++ {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				c := maze.Coord{X: x, Y: y, Z: z}
				if !m.Blocking(c) {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// AddPlayer creates runtime state for playerId at START with an empty
// inventory and zero coins. Fails if already present.
func (e *Engine) AddPlayer(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.players[playerID]; exists {
		return apperr.New(apperr.Internal, "player already present in engine")
	}
	e.players[playerID] = newPlayerState(playerID, e.maze.StartPos)
	return nil
}

// RemovePlayer removes playerId's runtime state. A no-op if absent.
func (e *Engine) RemovePlayer(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.players, playerID)
}

// GetPlayer returns a copy of playerId's runtime state.
func (e *Engine) GetPlayer(playerID string) (PlayerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return PlayerState{}, false
	}
	return p.clone(), true
}

// RemainingCoins returns the count of non-collected coins.
func (e *Engine) RemainingCoins() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coins.Remaining()
}

// FinishedCount returns the number of players who have reached END this match.
func (e *Engine) FinishedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishedCount
}

// PlayerCount returns the number of players currently tracked in the engine.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.players)
}

// MazeSnapshot returns the maze and coin pool rendered for persistence or
// for the initial maze_data message.
func (e *Engine) MazeSnapshot() maze.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maze.ToSnapshot(e.maze, e.coins)
}

// CollectCoin flips coinIndex's collected bit for playerId. Idempotent:
// fails on an already-collected or invalid index.
func (e *Engine) CollectCoin(playerID string, coinIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return apperr.New(apperr.PlayerNotFound, "player not found")
	}
	if !e.coins.Collect(coinIndex) {
		return apperr.New(apperr.InvalidTarget, "coin already collected or invalid index")
	}
	p.Coins++
	return nil
}

// Tick advances ephemeral effects: reverts broken walls whose repair time
// has passed, drops slow traps older than 30s, and clears expired speed
// boosts. now is the caller's notion of the current instant, allowing
// tests to drive the clock explicitly.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for cell, bw := range e.brokenWalls {
		if !now.Before(bw.repairAt) {
			e.maze.Set(cell, maze.Wall)
			delete(e.brokenWalls, cell)
		}
	}
	for cell, st := range e.slowTraps {
		if now.Sub(st.placedAt) >= 30*time.Second {
			delete(e.slowTraps, cell)
		}
	}
	for _, p := range e.players {
		if !p.SpeedBoostUntil.IsZero() && !p.SpeedBoostUntil.After(now) {
			p.SpeedBoostUntil = time.Time{}
		}
	}
}

// checkGoal assigns finish rank and bonus coins the first time p reaches
// END. Once every tracked player has finished, the match stops running
// until Reset. Must be called with the lock held.
func (e *Engine) checkGoal(p *PlayerState) {
	if p.Position.Cell() != e.maze.EndPos || p.ReachedGoal {
		return
	}
	p.ReachedGoal = true
	p.FinishRank = e.nextFinishRank
	e.nextFinishRank++
	p.Coins += 61 - p.FinishRank
	e.finishedCount++
	if e.finishedCount == len(e.players) {
		e.running = false
	}
}

// Running reports whether the match is still in progress. The match stops
// once every tracked player has reached END and resumes on Reset.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// respawn places p at a uniformly random non-blocking cell, alive, with
// coins and inventory preserved but compass/speed-boost cleared. Must be
// called with the lock held.
func (e *Engine) respawn(p *PlayerState) {
	if len(e.nonBlocking) > 0 {
		p.Position = cellPosition(e.nonBlocking[e.rng.Intn(len(e.nonBlocking))])
	}
	p.Alive = true
	p.HasCompass = false
	p.SpeedBoostUntil = time.Time{}
}

// Reset returns all players to START and clears match-scoped state. Coins
// and inventory (this-match) are preserved; durable records are untouched.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for cell := range e.brokenWalls {
		e.maze.Set(cell, maze.Wall)
	}
	e.brokenWalls = make(map[maze.Coord]brokenWall)
	e.slowTraps = make(map[maze.Coord]slowTrap)
	e.coins.Reset()

	for _, p := range e.players {
		p.Position = cellPosition(e.maze.StartPos)
		p.Alive = true
		p.HasCompass = false
		p.SpeedBoostUntil = time.Time{}
		p.ReachedGoal = false
		p.FinishRank = 0
	}
	e.nextFinishRank = 1
	e.finishedCount = 0
	e.running = true
}
