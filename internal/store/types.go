package store

import "time"

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Baseline is the last-observed score/period pair persisted against a
// subscription. A nil Baseline means "never observed yet".
type Baseline struct {
	Home   int
	Away   int
	Period int
}

// Subscription is one tracked game inside one chat scope.
//
// At most one active subscription exists per (scope, game); deactivated rows
// are retained for history. Only the engine mutates Baseline, every other
// field is write-once at creation.
type Subscription struct {
	ID       int64
	Scope    string
	UserID   string
	GameID   string
	TeamName string
	Sport    string
	Baseline *Baseline
	Active   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message kinds. Non-text kinds carry a structured JSON payload so the
// rendering layer can special-case score-update cards.
const (
	KindText       = "text"
	KindGameUpdate = "game_update"
	KindNotice     = "notice"
)

// Message is one append-only chat message.
type Message struct {
	ID        string // uuid
	Scope     string
	UserID    string
	Username  string
	Kind      string
	Content   string
	CreatedAt time.Time
}

// Preference is a per-(scope,user) notification setting.
type Preference struct {
	Scope                string
	UserID               string
	NotificationsEnabled bool
	TelegramChatID       int64 // 0 when the user has no push channel linked
	UpdatedAt            time.Time
}

// Recipient is a push-notification target with notifications enabled.
type Recipient struct {
	UserID         string
	TelegramChatID int64
}
