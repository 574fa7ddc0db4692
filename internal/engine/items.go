package engine

import (
	"time"

	"mazeserver/internal/apperr"
	"mazeserver/internal/maze"
)

// ItemKind is the closed set of purchasable/usable items, plus the
// operator-only pseudo-kind Coin.
type ItemKind string

const (
	SpeedPotion ItemKind = "SPEED_POTION"
	Compass     ItemKind = "COMPASS"
	Hammer      ItemKind = "HAMMER"
	KillSword   ItemKind = "KILL_SWORD"
	SlowTrap    ItemKind = "SLOW_TRAP"
	SwapItem    ItemKind = "SWAP_ITEM"
	Coin        ItemKind = "COIN"
)

// Prices holds this-match coin cost for each purchasable kind. Coin is not
// purchasable and carries no price.
var Prices = map[ItemKind]int{
	SpeedPotion: 20,
	Compass:     25,
	Hammer:      50,
	KillSword:   50,
	SlowTrap:    30,
	SwapItem:    60,
}

// PurchaseItem debits the price of kind from playerId's this-match coins
// and increments its inventory. Fails on unknown kind or insufficient coins.
func (e *Engine) PurchaseItem(playerID string, kind ItemKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return apperr.New(apperr.PlayerNotFound, "player not found")
	}
	price, known := Prices[kind]
	if !known {
		return apperr.New(apperr.InvalidTarget, "unknown item kind")
	}
	if p.Coins < price {
		return apperr.New(apperr.InsufficientCoins, "not enough coins")
	}
	p.Coins -= price
	p.Inventory[kind]++
	return nil
}

// UseItem applies kind's effect for playerId, consuming one unit of
// inventory only if its precondition holds.
func (e *Engine) UseItem(playerID string, kind ItemKind, targetPlayerID string, targetCell *maze.Coord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return apperr.New(apperr.PlayerNotFound, "player not found")
	}
	if p.Inventory[kind] <= 0 {
		return apperr.New(apperr.ItemNotOwned, "item not owned")
	}

	now := e.timeNow()

	switch kind {
	case SpeedPotion:
		p.SpeedBoostUntil = now.Add(10 * time.Second)

	case Compass:
		p.HasCompass = true

	case Hammer:
		if targetCell == nil || !e.maze.InBounds(*targetCell) || e.maze.At(*targetCell) != maze.Wall {
			return apperr.New(apperr.InvalidTarget, "target cell is not a breakable wall")
		}
		e.maze.Set(*targetCell, maze.Path)
		e.brokenWalls[*targetCell] = brokenWall{repairAt: now.Add(60 * time.Second)}

	case KillSword:
		target, exists := e.players[targetPlayerID]
		if targetPlayerID == "" || !exists {
			return apperr.New(apperr.InvalidTarget, "no target player")
		}
		target.Alive = false
		e.respawn(target)

	case SlowTrap:
		if targetCell == nil || !e.maze.InBounds(*targetCell) {
			return apperr.New(apperr.InvalidTarget, "target cell out of bounds")
		}
		e.slowTraps[*targetCell] = slowTrap{placedAt: now}

	case SwapItem:
		target, exists := e.players[targetPlayerID]
		if targetPlayerID == "" || !exists {
			return apperr.New(apperr.InvalidTarget, "no target player")
		}
		p.Position, target.Position = target.Position, p.Position

	default:
		return apperr.New(apperr.InvalidTarget, "unknown item kind")
	}

	p.Inventory[kind]--
	return nil
}

// Give is the operator-privileged grant path: it increments playerId's
// inventory for a real item kind by count, bypassing price. The pseudo-kind
// Coin is not handled here; operator "give coin" mutates the durable
// registry record instead (see the console package).
func (e *Engine) Give(playerID string, kind ItemKind, count int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return apperr.New(apperr.PlayerNotFound, "player not found")
	}
	if _, known := Prices[kind]; !known {
		return apperr.New(apperr.InvalidTarget, "unknown item kind")
	}
	if count <= 0 {
		count = 1
	}
	p.Inventory[kind] += count
	return nil
}

// ParseItemKind maps a canonical wire item-kind string (as normalized by
// the wire package) onto ItemKind. Returns ok=false for unrecognized input.
func ParseItemKind(s string) (ItemKind, bool) {
	switch s {
	case "speed_potion":
		return SpeedPotion, true
	case "compass":
		return Compass, true
	case "hammer":
		return Hammer, true
	case "kill_sword":
		return KillSword, true
	case "slow_trap":
		return SlowTrap, true
	case "swap_item":
		return SwapItem, true
	case "coin":
		return Coin, true
	default:
		return "", false
	}
}
