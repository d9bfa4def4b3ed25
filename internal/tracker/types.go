package tracker

import (
	"context"

	"scorebot/internal/feed"
	"scorebot/internal/store"
)

// Outcome classifies one subscription against one snapshot. Each outcome
// drives exactly one side effect (Finished may additionally follow Changed in
// the same cycle when the feed jumps from live to final with a last score).
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeBaseline
	OutcomeChanged
	OutcomeFinished
	OutcomeVanished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBaseline:
		return "baseline-established"
	case OutcomeChanged:
		return "score-or-period-changed"
	case OutcomeFinished:
		return "game-finished"
	case OutcomeVanished:
		return "game-vanished"
	default:
		return "no-change"
	}
}

// Update is the payload handed to the notifier for score-update and
// final-score messages. Previous is the pre-cycle baseline, kept for delta
// display even when a score change already fired this cycle.
type Update struct {
	Snapshot feed.Snapshot
	Previous store.Baseline
	Final    bool
}

// Store is the slice of the subscription store the engine needs.
type Store interface {
	ListActive(ctx context.Context, scope string) ([]store.Subscription, error)
	UpdateBaseline(ctx context.Context, id int64, b store.Baseline) error
	Deactivate(ctx context.Context, id int64) error
}

// Feed fetches the current scoreboard for one sport.
type Feed interface {
	Scoreboard(ctx context.Context, sport feed.Sport) ([]feed.Snapshot, error)
}

// Notifier turns an outcome into a persisted chat message plus best-effort
// push fan-out. Errors returned here are counted and logged, never retried;
// they do not roll back the engine's state changes.
type Notifier interface {
	ScoreUpdate(ctx context.Context, sub store.Subscription, u Update) error
	TrackingEnded(ctx context.Context, sub store.Subscription) error
}

// GameTrace is the per-game debug record included in the cycle report.
type GameTrace struct {
	GameID        string `json:"gameId"`
	TeamName      string `json:"teamName"`
	Scope         string `json:"scope"`
	Outcome       string `json:"outcome"`
	CurrentHome   int    `json:"currentHome"`
	CurrentAway   int    `json:"currentAway"`
	PrevHome      *int   `json:"prevHome"`
	PrevAway      *int   `json:"prevAway"`
	CurrentPeriod int    `json:"currentPeriod"`
	PrevPeriod    *int   `json:"prevPeriod"`
	ScoreChanged  bool   `json:"scoreChanged"`
	PeriodChanged bool   `json:"periodChanged"`
}

// Report is the partial-success aggregate of one reconciliation cycle.
type Report struct {
	Checked     int               `json:"checked"`
	Updates     int               `json:"updates"`
	Debug       []GameTrace       `json:"debug"`
	SportErrors map[string]string `json:"sportErrors,omitempty"`
	SubErrors   int               `json:"subErrors,omitempty"`
}
