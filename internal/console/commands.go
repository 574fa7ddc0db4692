package console

import (
	"fmt"
	"strconv"
	"strings"

	"mazeserver/internal/engine"
	"mazeserver/internal/registry"
	"mazeserver/internal/wire"
)

// command is one console verb: its minimum privilege level and handler.
type command struct {
	minLevel Level
	usage    string
	run      func(c *Console, args []string) (success bool, message string)
}

// commandTable holds the console command set and its minimum-level gate:
// give/tp/coin require Admin, kick/kill/system/players require Moderator,
// clear/admin/restart require SuperAdmin, help requires nothing.
var commandTable map[string]command

func init() {
	commandTable = map[string]command{
		"help":     {minLevel: LevelNone, usage: "help", run: cmdHelp},
		"history":  {minLevel: LevelNone, usage: "history [n]", run: cmdHistory},
		"auditlog": {minLevel: LevelModerator, usage: "auditlog [n]", run: cmdAuditLog},
		"players":  {minLevel: LevelModerator, usage: "players", run: cmdPlayers},
		"kick":     {minLevel: LevelModerator, usage: "kick <playerId> [reason]", run: cmdKick},
		"kill":     {minLevel: LevelModerator, usage: "kill <playerId>", run: cmdKill},
		"system":   {minLevel: LevelModerator, usage: `system "<message>"`, run: cmdSystem},
		"give":     {minLevel: LevelAdmin, usage: "give <playerId> <item> [count]", run: cmdGive},
		"tp":       {minLevel: LevelAdmin, usage: "tp <playerId> <x> <y> <z>", run: cmdTeleport},
		"coin":     {minLevel: LevelAdmin, usage: "coin <playerId> <amount>", run: cmdCoin},
		"clear":    {minLevel: LevelSuperAdmin, usage: "clear", run: cmdClear},
		"admin":    {minLevel: LevelSuperAdmin, usage: "admin <playerId> <level>", run: cmdAdmin},
		"restart":  {minLevel: LevelSuperAdmin, usage: "restart", run: cmdRestart},
	}
}

func cmdHelp(c *Console, _ []string) (bool, string) {
	msg := "available commands:\n"
	for _, cmd := range commandTable {
		if c.level >= cmd.minLevel {
			msg += fmt.Sprintf("  %s\n", cmd.usage)
		}
	}
	return true, msg
}

// cmdHistory prints the most recent n (default 20) entries of the
// console's own bounded in-memory command history.
func cmdHistory(c *Console, args []string) (bool, string) {
	n := 20
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return false, "n must be a positive integer"
		}
		n = parsed
	}
	hist := c.History()
	if len(hist) > n {
		hist = hist[len(hist)-n:]
	}
	if len(hist) == 0 {
		return true, "no history yet"
	}
	msg := fmt.Sprintf("last %d command(s):\n", len(hist))
	for _, e := range hist {
		status := "ok"
		if !e.Success {
			status = "fail"
		}
		msg += fmt.Sprintf("  [%s] %s: %s (%s)\n", e.At.Format("15:04:05"), e.Line, e.Message, status)
	}
	return true, msg
}

// cmdAuditLog prints the most recent n (default 20) entries of the
// persisted audit trail, which unlike "history" survives restarts and
// records every operator session.
func cmdAuditLog(c *Console, args []string) (bool, string) {
	if c.audit == nil {
		return false, "audit trail is not configured"
	}
	n := 20
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return false, "n must be a positive integer"
		}
		n = parsed
	}
	entries, err := c.audit.Recent(n)
	if err != nil {
		return false, fmt.Sprintf("query audit trail: %v", err)
	}
	if len(entries) == 0 {
		return true, "audit trail is empty"
	}
	msg := fmt.Sprintf("last %d audited command(s):\n", len(entries))
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "fail"
		}
		msg += fmt.Sprintf("  [%s] %s (level %d): %s (%s)\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Operator, e.Level, e.Line, status)
	}
	return true, msg
}

func cmdPlayers(c *Console, _ []string) (bool, string) {
	online := c.reg.Online()
	if len(online) == 0 {
		return true, "no players online"
	}
	msg := fmt.Sprintf("%d player(s) online:\n", len(online))
	for _, id := range online {
		state, ok := c.eng.GetPlayer(id)
		if !ok {
			msg += fmt.Sprintf("  %s (no engine state)\n", id)
			continue
		}
		msg += fmt.Sprintf("  %s  pos=(%.1f,%.1f,%.1f)  coins=%d  alive=%v\n",
			id, state.Position.X, state.Position.Y, state.Position.Z, state.Coins, state.Alive)
	}
	return true, msg
}

func cmdKick(c *Console, args []string) (bool, string) {
	if len(args) < 1 {
		return false, "usage: kick <playerId> [reason]"
	}
	playerID := args[0]
	reason := "kicked by operator"
	if len(args) > 1 {
		reason = args[1]
	}
	if !c.disp.CloseBoundConnection(playerID, reason) {
		return false, fmt.Sprintf("no bound connection for %s", playerID)
	}
	return true, fmt.Sprintf("kicked %s", playerID)
}

func cmdKill(c *Console, args []string) (bool, string) {
	if len(args) < 1 {
		return false, "usage: kill <playerId>"
	}
	if err := c.eng.Kill(args[0]); err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("killed %s", args[0])
}

// systemSender is the sender name attached to operator-originated chat
// broadcasts.
const systemSender = "SYSTEM"

func cmdSystem(c *Console, args []string) (bool, string) {
	if len(args) < 1 {
		return false, "usage: system <message>"
	}
	// Unquoted messages arrive as several tokens; join them rather than
	// silently broadcasting only the first word.
	text := strings.Join(args, " ")
	msg, err := wire.Encode(wire.TypeChatMessage, map[string]string{
		"playerId": systemSender,
		"sender":   systemSender,
		"message":  text,
	})
	if err != nil {
		return false, fmt.Sprintf("encode system message: %v", err)
	}
	c.bc.Broadcast(msg)
	return true, "system message broadcast"
}

func cmdGive(c *Console, args []string) (bool, string) {
	if len(args) < 2 {
		return false, "usage: give <playerId> <item> [count]"
	}
	playerID := args[0]
	kindName := wire.NormalizeItemKind(args[1])
	kind, ok := engine.ParseItemKind(kindName)
	if !ok {
		return false, fmt.Sprintf("unknown item kind: %s", args[1])
	}
	count := 1
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return false, "count must be a positive integer"
		}
		count = n
	}

	if kind == engine.Coin {
		if !c.reg.IsValid(playerID) {
			return false, fmt.Sprintf("player not found: %s", playerID)
		}
		c.reg.Update(playerID, func(rec *registry.Record) { rec.TotalCoins += count })
		return true, fmt.Sprintf("gave %d coin(s) to %s (durable totalCoins)", count, playerID)
	}

	if err := c.eng.Give(playerID, kind, count); err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("gave %d x %s to %s", count, kind, playerID)
}

func cmdTeleport(c *Console, args []string) (bool, string) {
	if len(args) < 4 {
		return false, "usage: tp <playerId> <x> <y> <z>"
	}
	x, errX := strconv.ParseFloat(args[1], 64)
	y, errY := strconv.ParseFloat(args[2], 64)
	z, errZ := strconv.ParseFloat(args[3], 64)
	if errX != nil || errY != nil || errZ != nil {
		return false, "x, y, z must be numbers"
	}
	if err := c.eng.Teleport(args[0], engine.Position{X: x, Y: y, Z: z}); err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("teleported %s to (%.1f,%.1f,%.1f)", args[0], x, y, z)
}

func cmdCoin(c *Console, args []string) (bool, string) {
	if len(args) < 2 {
		return false, "usage: coin <playerId> <amount>"
	}
	amount, err := strconv.Atoi(args[1])
	if err != nil || amount < 0 {
		return false, "amount must be a non-negative integer"
	}
	if err := c.eng.SetCoins(args[0], amount); err != nil {
		return false, err.Error()
	}
	c.reg.Update(args[0], func(rec *registry.Record) { rec.TotalCoins = amount })
	return true, fmt.Sprintf("set %s's coins to %d", args[0], amount)
}

func cmdClear(c *Console, _ []string) (bool, string) {
	c.eng.Reset()
	msg, err := wire.Encode(wire.TypeGameEvent, map[string]string{"eventType": wire.EventGameOver})
	if err == nil {
		c.bc.Broadcast(msg)
	}
	return true, "match state cleared"
}

func cmdAdmin(c *Console, args []string) (bool, string) {
	if len(args) < 2 {
		return false, "usage: admin <playerId> <level>"
	}
	level, err := strconv.Atoi(args[1])
	if err != nil || level < 0 || level > int(LevelSuperAdmin) {
		return false, fmt.Sprintf("level must be 0..%d", int(LevelSuperAdmin))
	}
	if !c.reg.IsValid(args[0]) {
		return false, fmt.Sprintf("unknown player: %s", args[0])
	}
	c.admin.Set(args[0], level)
	if err := c.admin.Save(); err != nil && c.log != nil {
		c.log.Printf("console: admin table save failed: %v", err)
	}
	return true, fmt.Sprintf("set %s's admin level to %d", args[0], level)
}

func cmdRestart(c *Console, _ []string) (bool, string) {
	c.eng.Reset()
	return true, "restart requested: match state cleared (process restart is operator-managed)"
}
