// Package apperr holds the closed set of error kinds the game protocol can
// report back to a client or an operator, per the server's error design.
package apperr

import "fmt"

// Kind is one of the wire-visible error categories.
type Kind string

const (
	InvalidMove       Kind = "INVALID_MOVE"
	InsufficientCoins Kind = "INSUFFICIENT_COINS"
	ItemNotOwned      Kind = "ITEM_NOT_OWNED"
	PlayerNotFound    Kind = "PLAYER_NOT_FOUND"
	InvalidTarget     Kind = "INVALID_TARGET"
	GameNotRunning    Kind = "GAME_NOT_RUNNING"
	AuthFailed        Kind = "AUTH_FAILED"
	ProtocolError     Kind = "PROTOCOL_ERROR"
	RateLimited       Kind = "RATE_LIMITED"
	Internal          Kind = "INTERNAL"
)

// Error is a tagged failure: a Kind plus a short human string.
type Error struct {
	Kind    Kind
	Message string
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ClosesConnection reports whether errors of this kind should close the
// connection: true for protocol and internal errors, false for all other
// kinds, which are addressed to the offending connection without affecting
// the session.
func (k Kind) ClosesConnection() bool {
	return k == ProtocolError || k == Internal
}
