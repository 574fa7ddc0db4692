package engine

import "mazeserver/internal/apperr"

// Teleport sets playerId's position to pos. Rejected if pos is not a valid
// (in-bounds, non-blocking) position.
func (e *Engine) Teleport(playerID string, pos Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return apperr.New(apperr.PlayerNotFound, "player not found")
	}
	c := pos.Cell()
	if !e.maze.InBounds(c) || e.maze.Blocking(c) {
		return apperr.New(apperr.InvalidTarget, "invalid teleport position")
	}
	p.Position = pos
	return nil
}

// Kill marks playerId not alive and immediately respawns them, identical to
// the KILL_SWORD effect.
func (e *Engine) Kill(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return apperr.New(apperr.PlayerNotFound, "player not found")
	}
	p.Alive = false
	e.respawn(p)
	return nil
}

// SetCoins sets playerId's this-match coin count. The caller is
// responsible for mirroring the change into the durable registry record.
func (e *Engine) SetCoins(playerID string, amount int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return apperr.New(apperr.PlayerNotFound, "player not found")
	}
	if amount < 0 {
		amount = 0
	}
	p.Coins = amount
	return nil
}
