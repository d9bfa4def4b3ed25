package store

import (
	"context"
	"path/filepath"
	"testing"

	"scorebot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateSubscriptionIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sub := Subscription{Scope: "room-a", UserID: "u1", GameID: "g1", TeamName: "Lakers", Sport: "basketball/nba"}
	first, created, err := s.CreateSubscription(ctx, sub)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created || first.ID == 0 || !first.Active {
		t.Fatalf("unexpected first create: created=%v sub=%+v", created, first)
	}

	second, created, err := s.CreateSubscription(ctx, sub)
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}
	if created {
		t.Fatalf("duplicate track must not create a second row")
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing row %d, got %d", first.ID, second.ID)
	}

	subs, err := s.ListActive(ctx, "room-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 active subscription, got %d", len(subs))
	}
}

func TestCreateAfterDeactivateStartsFresh(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sub := Subscription{Scope: "room-a", UserID: "u1", GameID: "g1", TeamName: "Lakers", Sport: "basketball/nba"}
	first, _, err := s.CreateSubscription(ctx, sub)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Deactivate(ctx, first.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	// Deactivate is idempotent.
	if err := s.Deactivate(ctx, first.ID); err != nil {
		t.Fatalf("repeat deactivate: %v", err)
	}

	again, created, err := s.CreateSubscription(ctx, sub)
	if err != nil {
		t.Fatalf("re-create after deactivate: %v", err)
	}
	if !created || again.ID == first.ID {
		t.Fatalf("expected a fresh row after deactivation, got created=%v id=%d", created, again.ID)
	}
}

func TestBaselineRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, _, err := s.CreateSubscription(ctx, Subscription{
		Scope: "room-a", UserID: "u1", GameID: "g1", TeamName: "Lakers", Sport: "basketball/nba",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	subs, err := s.ListActive(ctx, "room-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if subs[0].Baseline != nil {
		t.Fatalf("baseline must be nil before first observation, got %+v", subs[0].Baseline)
	}

	if err := s.UpdateBaseline(ctx, created.ID, Baseline{Home: 80, Away: 78, Period: 3}); err != nil {
		t.Fatalf("update baseline: %v", err)
	}
	subs, err = s.ListActive(ctx, "room-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	b := subs[0].Baseline
	if b == nil || b.Home != 80 || b.Away != 78 || b.Period != 3 {
		t.Fatalf("baseline did not round-trip: %+v", b)
	}
}

func TestUpdateBaselineByGame(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, scope := range []string{"room-a", "room-b"} {
		if _, _, err := s.CreateSubscription(ctx, Subscription{
			Scope: scope, UserID: "u1", GameID: "g1", TeamName: "Lakers", Sport: "basketball/nba",
		}); err != nil {
			t.Fatalf("create %s: %v", scope, err)
		}
	}

	updated, err := s.UpdateBaselineByGame(ctx, "g1", Baseline{Home: 5, Away: 3, Period: 1})
	if err != nil {
		t.Fatalf("update by game: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 rows updated, got %d", updated)
	}
}

func TestDeactivateMatchingIsCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows := []Subscription{
		{Scope: "room-a", UserID: "u1", GameID: "g1", TeamName: "Los Angeles Lakers", Sport: "basketball/nba"},
		{Scope: "room-a", UserID: "u1", GameID: "g2", TeamName: "Boston Celtics", Sport: "basketball/nba"},
		{Scope: "room-b", UserID: "u2", GameID: "g1", TeamName: "Los Angeles Lakers", Sport: "basketball/nba"},
	}
	for _, r := range rows {
		if _, _, err := s.CreateSubscription(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	removed, err := s.DeactivateMatching(ctx, "room-a", "lAkErS")
	if err != nil {
		t.Fatalf("deactivate matching: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed in room-a, got %d", removed)
	}

	// The other scope is untouched.
	subs, err := s.ListActive(ctx, "room-b")
	if err != nil {
		t.Fatalf("list room-b: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("room-b subscription should survive, got %d", len(subs))
	}
}

func TestDeactivateByGame(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.CreateSubscription(ctx, Subscription{
		Scope: "room-a", UserID: "u1", GameID: "g1", TeamName: "Lakers", Sport: "basketball/nba",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := s.DeactivateByGame(ctx, "room-a", "g1")
	if err != nil {
		t.Fatalf("deactivate by game: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	removed, err = s.DeactivateByGame(ctx, "room-a", "g1")
	if err != nil {
		t.Fatalf("repeat deactivate: %v", err)
	}
	if removed != 0 {
		t.Fatalf("repeat deactivate must be a no-op, got %d", removed)
	}
}

func TestMessagesAppendAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m, err := s.AppendMessage(ctx, Message{Scope: "room-a", UserID: "system", Username: "Game Bot", Kind: KindGameUpdate, Content: `{"sport":"basketball"}`})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatalf("append must assign id and timestamp: %+v", m)
	}
	if _, err := s.AppendMessage(ctx, Message{Scope: "room-b", UserID: "u1", Content: "hello"}); err != nil {
		t.Fatalf("append other scope: %v", err)
	}

	msgs, err := s.ListMessages(ctx, "room-a", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message in room-a, got %d", len(msgs))
	}
	if msgs[0].Kind != KindGameUpdate || msgs[0].Content != `{"sport":"basketball"}` {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
}

func TestPreferencesAndRecipients(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetPreference(ctx, "room-a", "u1"); err != nil || ok {
		t.Fatalf("unset preference must report ok=false, got ok=%v err=%v", ok, err)
	}

	if err := s.SetPreference(ctx, Preference{Scope: "room-a", UserID: "u1", NotificationsEnabled: true, TelegramChatID: 42}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetPreference(ctx, Preference{Scope: "room-a", UserID: "u2", NotificationsEnabled: false}); err != nil {
		t.Fatalf("set u2: %v", err)
	}

	p, ok, err := s.GetPreference(ctx, "room-a", "u1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !p.NotificationsEnabled || p.TelegramChatID != 42 {
		t.Fatalf("preference did not round-trip: %+v", p)
	}

	// Upsert flips the flag in place.
	if err := s.SetPreference(ctx, Preference{Scope: "room-a", UserID: "u1", NotificationsEnabled: false, TelegramChatID: 42}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p, _, err = s.GetPreference(ctx, "room-a", "u1")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if p.NotificationsEnabled {
		t.Fatalf("upsert did not apply")
	}

	if err := s.SetPreference(ctx, Preference{Scope: "room-a", UserID: "u3", NotificationsEnabled: true}); err != nil {
		t.Fatalf("set u3: %v", err)
	}
	recips, err := s.ListNotifyRecipients(ctx, "room-a")
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(recips) != 1 || recips[0].UserID != "u3" {
		t.Fatalf("expected only opted-in u3, got %+v", recips)
	}
}
