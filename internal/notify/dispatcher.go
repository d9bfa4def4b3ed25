package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"scorebot/internal/metrics"
	"scorebot/internal/store"
	"scorebot/internal/tracker"
	"scorebot/pkg/logx"
)

const pushTitle = "🏀 Score Update"

// Dispatcher persists outcome messages to the chat store and fans out
// best-effort pushes. The persisted message is the authoritative record: push
// failures are logged and swallowed, never propagated, so reconciliation
// state changes are never retried on delivery problems.
type Dispatcher struct {
	store   MessageStore
	pusher  Pusher // nil disables fan-out
	limiter *rate.Limiter
	log     logx.Logger
}

func NewDispatcher(cfg Config, st MessageStore, p Pusher, log logx.Logger) *Dispatcher {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		store:   st,
		pusher:  p,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}
}

var _ tracker.Notifier = (*Dispatcher)(nil)

// ScoreUpdate posts a structured game-update message and pushes it to every
// opted-in recipient in scope. Engine-driven updates have no triggering actor,
// so nobody is excluded.
func (d *Dispatcher) ScoreUpdate(ctx context.Context, sub store.Subscription, u tracker.Update) error {
	payload := buildPayload(u)
	content, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = d.store.AppendMessage(ctx, store.Message{
		Scope:    sub.Scope,
		UserID:   SystemUserID,
		Username: SystemUsername,
		Kind:     store.KindGameUpdate,
		Content:  string(content),
	})
	if err != nil {
		return err
	}
	d.fanOut(ctx, sub.Scope, "", pushTitle, pushBody(payload))
	return nil
}

// TrackingEnded posts the plain-text notice for a game that vanished from the
// feed. No push: the game is gone, there is no score to announce.
func (d *Dispatcher) TrackingEnded(ctx context.Context, sub store.Subscription) error {
	_, err := d.store.AppendMessage(ctx, store.Message{
		Scope:    sub.Scope,
		UserID:   SystemUserID,
		Username: SystemUsername,
		Kind:     store.KindNotice,
		Content:  fmt.Sprintf("Game tracking ended for %s", sub.TeamName),
	})
	return err
}

// PostNotice persists a system notice triggered by a user action (track,
// untrack) and pushes it to the rest of the scope, excluding the actor.
func (d *Dispatcher) PostNotice(ctx context.Context, scope, actorID, text string) error {
	_, err := d.store.AppendMessage(ctx, store.Message{
		Scope:    scope,
		UserID:   SystemUserID,
		Username: SystemUsername,
		Kind:     store.KindNotice,
		Content:  text,
	})
	if err != nil {
		return err
	}
	d.fanOut(ctx, scope, actorID, "Game Tracking", text)
	return nil
}

// fanOut delivers the push to every opted-in recipient except excludeUserID.
// All failures are swallowed.
func (d *Dispatcher) fanOut(ctx context.Context, scope, excludeUserID, title, body string) {
	if d.pusher == nil {
		return
	}
	recipients, err := d.store.ListNotifyRecipients(ctx, scope)
	if err != nil {
		d.log.Warn("recipient lookup failed", logx.String("scope", scope), logx.Err(err))
		return
	}
	sent := 0
	for _, r := range recipients {
		if r.UserID == excludeUserID {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		if err := d.pusher.Push(ctx, r, title, body); err != nil {
			metrics.PushFailures.Inc()
			d.log.Warn("push failed", logx.String("scope", scope), logx.String("user", r.UserID), logx.Err(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		d.log.Debug("push fan-out complete", logx.String("scope", scope), logx.Int("sent", sent))
	}
}

func buildPayload(u tracker.Update) GameUpdatePayload {
	snap := u.Snapshot
	status := StatusPayload{Period: snap.Period, Clock: snap.Clock, State: snap.State}
	if u.Final {
		// The feed may report the closing snapshot with a live clock; the
		// final message always carries the fixed marker.
		status.Clock = "Final"
		status.State = "post"
	}
	return GameUpdatePayload{
		HomeTeam: TeamPayload{
			Name:         snap.Home.Team.DisplayName,
			Abbreviation: snap.Home.Team.Abbreviation,
			Logo:         snap.Home.Team.Logo,
			Score:        snap.Home.Score,
		},
		AwayTeam: TeamPayload{
			Name:         snap.Away.Team.DisplayName,
			Abbreviation: snap.Away.Team.Abbreviation,
			Logo:         snap.Away.Team.Logo,
			Score:        snap.Away.Score,
		},
		Status:         status,
		Sport:          string(snap.Sport),
		PreviousScores: PreviousScores{Home: u.Previous.Home, Away: u.Previous.Away},
	}
}

// pushBody renders the short push line: "AWY 78 - 85 HOM (+5 HOM) - 2:31",
// prefixed with "Final: " for closing updates.
func pushBody(p GameUpdatePayload) string {
	body := fmt.Sprintf("%s %d - %d %s", p.AwayTeam.Name, p.AwayTeam.Score, p.HomeTeam.Score, p.HomeTeam.Name)

	homeDiff := p.HomeTeam.Score - p.PreviousScores.Home
	awayDiff := p.AwayTeam.Score - p.PreviousScores.Away
	if homeDiff > 0 {
		body += fmt.Sprintf(" (+%d %s)", homeDiff, p.HomeTeam.Abbreviation)
	} else if awayDiff > 0 {
		body += fmt.Sprintf(" (+%d %s)", awayDiff, p.AwayTeam.Abbreviation)
	}

	if p.Status.State == "post" {
		body = "Final: " + body
	} else if p.Status.Clock != "" {
		body += " - " + p.Status.Clock
	}
	return body
}
