package dispatch

// Inbound payload shapes, decoded from a wire.Inbound's normalized field map.

type authFields struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Token      string `json:"token"`
}

type moveFields struct {
	Position [3]float64 `json:"position"`
	Rotation float64    `json:"rotation"`
}

type purchaseItemFields struct {
	ItemType string `json:"itemType"`
}

type useItemFields struct {
	ItemType       string      `json:"itemType"`
	TargetPlayerID string      `json:"targetPlayerId"`
	TargetPosition *[3]float64 `json:"targetPosition"`
}

type chatMessageFields struct {
	Message string `json:"message"`
}

type pingFields struct {
	Timestamp int64 `json:"timestamp"`
}

// Outbound payload shapes.

type positionWire struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type authSuccessPayload struct {
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
}

type authFailedPayload struct {
	Reason string `json:"reason"`
}

type playerDataPayload struct {
	PlayerID    string         `json:"playerId"`
	Coins       int            `json:"coins"`
	Position    positionWire   `json:"position"`
	Inventory   map[string]int `json:"inventory"`
	HasCompass  bool           `json:"hasCompass"`
	Alive       bool           `json:"alive"`
	TotalCoins  int            `json:"totalCoins"`
	GamesPlayed int            `json:"gamesPlayed"`
}

type playerJoinPayload struct {
	PlayerID string `json:"playerId"`
}

type playerLeavePayload struct {
	PlayerID string `json:"playerId"`
}

type playerMovedPayload struct {
	PlayerID string       `json:"playerId"`
	Position positionWire `json:"position"`
	Rotation float64      `json:"rotation"`
}

type gameStatePayload struct {
	PlayerID       string         `json:"playerId"`
	Coins          int            `json:"coins"`
	Inventory      map[string]int `json:"inventory"`
	RemainingCoins int            `json:"remainingCoins"`
	FinishedCount  int            `json:"finishedCount"`
}

type itemEffectPayload struct {
	PlayerID       string        `json:"playerId"`
	ItemType       string        `json:"itemType"`
	TargetPlayerID string        `json:"targetPlayerId,omitempty"`
	TargetPosition *positionWire `json:"targetPosition,omitempty"`
}

type gameEventPayload struct {
	EventType  string `json:"eventType"`
	PlayerID   string `json:"playerId"`
	FinishRank int    `json:"finishRank,omitempty"`
	Bonus      int    `json:"bonus,omitempty"`
	CoinIndex  int    `json:"coinIndex,omitempty"`
	Coins      int    `json:"coins,omitempty"`
}

type chatMessagePayload struct {
	PlayerID string `json:"playerId"`
	Sender   string `json:"sender"`
	Message  string `json:"message"`
}

type pongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
