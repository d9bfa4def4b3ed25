package api

import (
	"context"
	"time"

	"scorebot/internal/feed"
	"scorebot/internal/store"
	"scorebot/internal/tracker"
)

// Engine is the reconciliation entry point exposed at /api/poll. Safe to call
// at arbitrary intervals, including overlapping calls.
type Engine interface {
	Run(ctx context.Context) (tracker.Report, error)
}

// Feed is the slice of the feed client the track handlers need.
type Feed interface {
	Scoreboard(ctx context.Context, sport feed.Sport) ([]feed.Snapshot, error)
	FindTeamGame(ctx context.Context, name string, sport feed.Sport) (feed.Snapshot, bool, error)
}

// Notices posts user-triggered system notices to the chat scope.
type Notices interface {
	PostNotice(ctx context.Context, scope, actorID, text string) error
}

type trackRequest struct {
	Scope    string `json:"scope"`
	UserID   string `json:"userId"`
	GameID   string `json:"gameId,omitempty"`
	TeamName string `json:"teamName"`
	Sport    string `json:"sport,omitempty"`
}

type untrackRequest struct {
	Scope    string `json:"scope"`
	GameID   string `json:"gameId,omitempty"`
	TeamName string `json:"teamName,omitempty"`
}

type baselineRequest struct {
	GameID    string `json:"gameId"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
	Period    int    `json:"period"`
}

type preferenceRequest struct {
	Scope                string `json:"scope"`
	UserID               string `json:"userId"`
	NotificationsEnabled *bool  `json:"notificationsEnabled"`
	TelegramChatID       int64  `json:"telegramChatId,omitempty"`
}

type subscriptionView struct {
	ID        int64     `json:"id"`
	Scope     string    `json:"scope"`
	UserID    string    `json:"userId"`
	GameID    string    `json:"gameId"`
	TeamName  string    `json:"teamName"`
	Sport     string    `json:"sport"`
	LastHome  *int      `json:"lastScoreHome"`
	LastAway  *int      `json:"lastScoreAway"`
	Period    *int      `json:"lastPeriod"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func viewOf(sub store.Subscription) subscriptionView {
	v := subscriptionView{
		ID:        sub.ID,
		Scope:     sub.Scope,
		UserID:    sub.UserID,
		GameID:    sub.GameID,
		TeamName:  sub.TeamName,
		Sport:     sub.Sport,
		Active:    sub.Active,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
	if b := sub.Baseline; b != nil {
		home, away, period := b.Home, b.Away, b.Period
		v.LastHome, v.LastAway, v.Period = &home, &away, &period
	}
	return v
}

type messageView struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func messageViewOf(m store.Message) messageView {
	return messageView{
		ID:        m.ID,
		Scope:     m.Scope,
		UserID:    m.UserID,
		Username:  m.Username,
		Kind:      m.Kind,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
