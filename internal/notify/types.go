package notify

import (
	"context"

	"scorebot/internal/store"
)

// Config controls the push fan-out.
type Config struct {
	RatePerSec int // token bucket for pushes, default 3
}

// System author for every bot-generated message.
const (
	SystemUserID   = "system"
	SystemUsername = "Game Bot"
)

// Pusher delivers one best-effort push notification. Implementations must be
// safe for concurrent use.
type Pusher interface {
	Push(ctx context.Context, to store.Recipient, title, body string) error
}

// MessageStore is the slice of the store the dispatcher needs.
type MessageStore interface {
	AppendMessage(ctx context.Context, m store.Message) (store.Message, error)
	ListNotifyRecipients(ctx context.Context, scope string) ([]store.Recipient, error)
}

// TeamPayload is one side of a structured game-update message.
type TeamPayload struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Logo         string `json:"logo,omitempty"`
	Score        int    `json:"score"`
}

type StatusPayload struct {
	Period int    `json:"period"`
	Clock  string `json:"clock"`
	State  string `json:"state"`
}

type PreviousScores struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// GameUpdatePayload is the JSON content of a game_update message. The
// rendering layer keys off the message kind to draw score cards instead of
// plain text.
type GameUpdatePayload struct {
	HomeTeam       TeamPayload    `json:"homeTeam"`
	AwayTeam       TeamPayload    `json:"awayTeam"`
	Status         StatusPayload  `json:"status"`
	Sport          string         `json:"sport"`
	PreviousScores PreviousScores `json:"previousScores"`
}
