// Package wire implements the game socket's message envelope: the inbound
// dialect normalization (older clients send fields flat, newer ones wrap
// them in "data") and the canonical outbound envelope.
package wire

import (
	"encoding/json"
	"time"
)

// Inbound message types.
const (
	TypeAuth         = "auth"
	TypeMove         = "move"
	TypePurchaseItem = "purchase_item"
	TypeUseItem      = "use_item"
	TypeChatMessage  = "chat_message"
	TypePing         = "ping"
)

// Outbound message types.
const (
	TypeAuthSuccess   = "auth_success"
	TypeAuthFailed    = "auth_failed"
	TypePlayerData    = "player_data"
	TypeMazeData      = "maze_data"
	TypePlayerJoin    = "player_join"
	TypePlayerLeave   = "player_leave"
	TypePlayerMoved   = "player_moved"
	TypeGameState     = "game_state"
	TypeItemEffect    = "item_effect"
	TypeGameEvent     = "game_event"
	TypePong          = "pong"
	TypeError         = "error"
)

// Game-event subtypes (outbound "game_event.eventType").
const (
	EventPlayerReachedGoal = "player_reached_goal"
	EventCoinCollected     = "coin_collected"
	EventGameOver          = "game_over"
)

// Envelope is the canonical wire shape in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Inbound is a decoded, normalized incoming message: Type plus a flat field
// map drawn from either the "data" wrapper or the envelope's top level,
// whichever dialect the client used.
type Inbound struct {
	Type      string
	Timestamp int64
	Fields    map[string]json.RawMessage
}

// Decode normalizes an inbound frame payload. Older clients omit the "data"
// wrapper and place fields at the top level alongside type/timestamp;
// newer clients wrap them. Both are accepted.
func Decode(raw []byte) (*Inbound, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}

	in := &Inbound{Fields: map[string]json.RawMessage{}}

	if t, ok := top["type"]; ok {
		_ = json.Unmarshal(t, &in.Type)
	}
	if ts, ok := top["timestamp"]; ok {
		_ = json.Unmarshal(ts, &in.Timestamp)
	}

	if dataRaw, ok := top["data"]; ok && len(dataRaw) > 0 && string(dataRaw) != "null" {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(dataRaw, &data); err == nil {
			for k, v := range data {
				in.Fields[k] = v
			}
		}
	}
	for k, v := range top {
		if k == "type" || k == "timestamp" || k == "data" {
			continue
		}
		if _, exists := in.Fields[k]; !exists {
			in.Fields[k] = v
		}
	}

	return in, nil
}

// Field unmarshals a named field into dst; returns false if the field is
// absent. It never errors on absence, only on malformed JSON once present.
func (in *Inbound) Field(name string, dst interface{}) (bool, error) {
	raw, ok := in.Fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, err
	}
	return true, nil
}

// Encode produces the canonical wrapped outbound envelope.
func Encode(msgType string, data interface{}) ([]byte, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      dataBytes,
	}
	return json.Marshal(env)
}

// NormalizeItemKind maps wire item-kind strings, including historical
// aliases, onto the canonical closed set. The empty string is returned for
// unrecognized kinds.
func NormalizeItemKind(s string) string {
	switch s {
	case "speed_potion", "compass", "hammer", "kill_sword", "slow_trap", "swap_item":
		return s
	case "sword":
		return "kill_sword"
	case "coin":
		return "coin"
	default:
		return ""
	}
}
