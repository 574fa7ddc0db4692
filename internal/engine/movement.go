package engine

import (
	"math"

	"mazeserver/internal/apperr"
	"mazeserver/internal/maze"
)

// Direction is the closed set of single-step moves the engine accepts.
// Forward/Backward/StrafeLeft/StrafeRight are relative to the player's yaw
// within a layer; Up/Down cross a stair pair between layers.
type Direction int

const (
	Forward Direction = iota
	Backward
	StrafeLeft
	StrafeRight
	Up
	Down
)

// snapYaw rounds yaw (degrees, any range) to the nearest cardinal facing:
// 0 (north, -Y), 90 (east, +X), 180 (south, +Y), 270 (west, -X).
func snapYaw(yaw float64) int {
	yaw = math.Mod(yaw, 360)
	if yaw < 0 {
		yaw += 360
	}
	snapped := int(math.Round(yaw/90)) * 90 % 360
	return snapped
}

func facingDelta(snapped int) (dx, dy int) {
	switch snapped {
	case 0:
		return 0, -1
	case 90:
		return 1, 0
	case 180:
		return 0, 1
	case 270:
		return -1, 0
	default:
		return 0, -1
	}
}

// MoveOutcome reports the side effects of a successful Move beyond the
// position change itself, so a caller can decide what to broadcast.
type MoveOutcome struct {
	CoinCollected bool
	CoinIndex     int
	ReachedGoal   bool
}

// Move computes a candidate cell from the player's current yaw and dir,
// validates it, and on success updates position, auto-collecting a coin at
// the candidate cell (if any remains there) and invoking checkGoal if the
// candidate is END.
func (e *Engine) Move(playerID string, dir Direction) (MoveOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return MoveOutcome{}, apperr.New(apperr.PlayerNotFound, "player not found")
	}
	if !e.running {
		return MoveOutcome{}, apperr.New(apperr.GameNotRunning, "match is over")
	}
	if !p.Alive {
		return MoveOutcome{}, apperr.New(apperr.InvalidMove, "player is not alive")
	}

	candidate, err := e.computeCandidate(p, dir)
	if err != nil {
		return MoveOutcome{}, err
	}

	p.Position = cellPosition(candidate)

	var outcome MoveOutcome
	if idx, ok := e.coinIndexAt(candidate); ok && e.coins.Collect(idx) {
		p.Coins++
		outcome.CoinCollected = true
		outcome.CoinIndex = idx
	}

	wasReached := p.ReachedGoal
	if candidate == e.maze.EndPos {
		e.checkGoal(p)
	}
	outcome.ReachedGoal = !wasReached && p.ReachedGoal

	return outcome, nil
}

// CandidateCell computes, without mutating any state, the cell dir would
// move playerId into from their current position and facing: the same cell
// validation Move performs, just read-only. Unlike Move it does not check
// whether the match is running. Used by the dispatcher to find
// which direction (if any) reproduces a client-submitted position before
// committing to a single Move call.
func (e *Engine) CandidateCell(playerID string, dir Direction) (maze.Coord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return maze.Coord{}, apperr.New(apperr.PlayerNotFound, "player not found")
	}
	if !p.Alive {
		return maze.Coord{}, apperr.New(apperr.InvalidMove, "player is not alive")
	}
	return e.computeCandidate(p, dir)
}

// computeCandidate is the shared validation logic behind Move and
// CandidateCell. Must be called with the lock held.
func (e *Engine) computeCandidate(p *PlayerState, dir Direction) (maze.Coord, error) {
	cur := p.Position.Cell()
	speed := 1
	if p.speedBoosted(e.timeNow()) {
		speed = 2
	}

	var candidate maze.Coord

	switch dir {
	case Up, Down:
		c, err := e.verticalCandidate(cur, dir)
		if err != nil {
			return maze.Coord{}, err
		}
		candidate = c
	default:
		dx, dy := facingDeltaFor(p.Yaw, dir)
		candidate = maze.Coord{X: cur.X + dx*speed, Y: cur.Y + dy*speed, Z: cur.Z}
	}

	if !e.maze.InBounds(candidate) {
		return maze.Coord{}, apperr.New(apperr.InvalidMove, "candidate cell out of bounds")
	}
	if e.maze.Blocking(candidate) {
		return maze.Coord{}, apperr.New(apperr.InvalidMove, "candidate cell is blocking")
	}
	return candidate, nil
}

// coinIndexAt returns the index of an uncollected coin at c, if any. Must
// be called with the lock held.
func (e *Engine) coinIndexAt(c maze.Coord) (int, bool) {
	for i, pos := range e.coins.Positions {
		if pos == c && !e.coins.Collected(i) {
			return i, true
		}
	}
	return 0, false
}

func facingDeltaFor(yaw float64, dir Direction) (int, int) {
	snapped := snapYaw(yaw)
	switch dir {
	case Forward:
		return facingDelta(snapped)
	case Backward:
		dx, dy := facingDelta(snapped)
		return -dx, -dy
	case StrafeLeft:
		return facingDelta((snapped + 270) % 360)
	case StrafeRight:
		return facingDelta((snapped + 90) % 360)
	default:
		return 0, 0
	}
}

func (e *Engine) verticalCandidate(cur maze.Coord, dir Direction) (maze.Coord, error) {
	if dir == Up {
		above := maze.Coord{X: cur.X, Y: cur.Y, Z: cur.Z + 1}
		if !e.maze.IsStairPair(cur, above) {
			return maze.Coord{}, apperr.New(apperr.InvalidMove, "not on a stair-up cell")
		}
		return above, nil
	}
	below := maze.Coord{X: cur.X, Y: cur.Y, Z: cur.Z - 1}
	if !e.maze.IsStairPair(below, cur) {
		return maze.Coord{}, apperr.New(apperr.InvalidMove, "not on a stair-down cell")
	}
	return below, nil
}

// SetFacing updates playerId's yaw without otherwise moving them. The
// dispatcher calls this before replaying a submitted move so Move's
// direction math uses the client's latest rotation.
func (e *Engine) SetFacing(playerID string, yaw float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.players[playerID]; ok {
		p.Yaw = yaw
	}
}

