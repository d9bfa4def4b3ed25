package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"scorebot/internal/feed"
	"scorebot/internal/store"
	"scorebot/internal/tracker"
	"scorebot/pkg/logx"
)

type memStore struct {
	mu         sync.Mutex
	messages   []store.Message
	recipients []store.Recipient
	appendErr  error
}

func (m *memStore) AppendMessage(ctx context.Context, msg store.Message) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return store.Message{}, m.appendErr
	}
	msg.ID = "m1"
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) ListNotifyRecipients(ctx context.Context, scope string) ([]store.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipients, nil
}

type push struct {
	to    store.Recipient
	title string
	body  string
}

type memPusher struct {
	mu     sync.Mutex
	pushes []push
	err    error
}

func (p *memPusher) Push(ctx context.Context, to store.Recipient, title, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pushes = append(p.pushes, push{to: to, title: title, body: body})
	return nil
}

func testUpdate(final bool) tracker.Update {
	return tracker.Update{
		Snapshot: feed.Snapshot{
			GameID: "g1",
			Sport:  feed.SportNBA,
			State:  feed.StateLive,
			Period: 4,
			Clock:  "2:31",
			Home:   feed.Side{Team: feed.Team{DisplayName: "Lakers", Abbreviation: "LAL"}, Score: 85},
			Away:   feed.Side{Team: feed.Team{DisplayName: "Celtics", Abbreviation: "BOS"}, Score: 78},
		},
		Previous: store.Baseline{Home: 80, Away: 78, Period: 3},
		Final:    final,
	}
}

func testSub() store.Subscription {
	return store.Subscription{ID: 1, Scope: "room-a", UserID: "u1", GameID: "g1", TeamName: "Lakers"}
}

func TestScoreUpdatePersistsThenPushes(t *testing.T) {
	st := &memStore{recipients: []store.Recipient{{UserID: "u1", TelegramChatID: 1}, {UserID: "u2", TelegramChatID: 2}}}
	p := &memPusher{}
	d := NewDispatcher(Config{RatePerSec: 100}, st, p, logx.Nop())

	if err := d.ScoreUpdate(context.Background(), testSub(), testUpdate(false)); err != nil {
		t.Fatalf("score update: %v", err)
	}

	if len(st.messages) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(st.messages))
	}
	msg := st.messages[0]
	if msg.Kind != store.KindGameUpdate || msg.UserID != SystemUserID {
		t.Fatalf("unexpected message: %+v", msg)
	}
	var payload GameUpdatePayload
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if payload.HomeTeam.Score != 85 || payload.PreviousScores.Home != 80 || payload.PreviousScores.Away != 78 {
		t.Fatalf("payload scores wrong: %+v", payload)
	}

	// Engine updates exclude nobody.
	if len(p.pushes) != 2 {
		t.Fatalf("expected fan-out to both recipients, got %d", len(p.pushes))
	}
	body := p.pushes[0].body
	if !strings.Contains(body, "Celtics 78 - 85 Lakers") || !strings.Contains(body, "(+5 LAL)") || !strings.Contains(body, "2:31") {
		t.Fatalf("unexpected push body %q", body)
	}
}

func TestScoreUpdateFinalBody(t *testing.T) {
	st := &memStore{recipients: []store.Recipient{{UserID: "u1"}}}
	p := &memPusher{}
	d := NewDispatcher(Config{}, st, p, logx.Nop())

	if err := d.ScoreUpdate(context.Background(), testSub(), testUpdate(true)); err != nil {
		t.Fatalf("score update: %v", err)
	}

	var payload GameUpdatePayload
	if err := json.Unmarshal([]byte(st.messages[0].Content), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	// Final snapshots always carry the fixed clock marker.
	if payload.Status.Clock != "Final" || payload.Status.State != "post" {
		t.Fatalf("final status not normalized: %+v", payload.Status)
	}
	if !strings.HasPrefix(p.pushes[0].body, "Final: ") {
		t.Fatalf("final push body missing prefix: %q", p.pushes[0].body)
	}
}

func TestScoreUpdateSwallowsPushFailures(t *testing.T) {
	st := &memStore{recipients: []store.Recipient{{UserID: "u1"}}}
	p := &memPusher{err: errors.New("telegram down")}
	d := NewDispatcher(Config{}, st, p, logx.Nop())

	if err := d.ScoreUpdate(context.Background(), testSub(), testUpdate(false)); err != nil {
		t.Fatalf("push failure must not propagate, got %v", err)
	}
	if len(st.messages) != 1 {
		t.Fatalf("message must persist regardless of push outcome")
	}
}

func TestScoreUpdatePersistFailurePropagates(t *testing.T) {
	st := &memStore{appendErr: errors.New("disk full"), recipients: []store.Recipient{{UserID: "u1"}}}
	p := &memPusher{}
	d := NewDispatcher(Config{}, st, p, logx.Nop())

	if err := d.ScoreUpdate(context.Background(), testSub(), testUpdate(false)); err == nil {
		t.Fatalf("persist failure must propagate")
	}
	if len(p.pushes) != 0 {
		t.Fatalf("no push without a persisted message")
	}
}

func TestPostNoticeExcludesActor(t *testing.T) {
	st := &memStore{recipients: []store.Recipient{{UserID: "actor"}, {UserID: "other"}}}
	p := &memPusher{}
	d := NewDispatcher(Config{}, st, p, logx.Nop())

	if err := d.PostNotice(context.Background(), "room-a", "actor", "Now tracking: Lakers"); err != nil {
		t.Fatalf("post notice: %v", err)
	}
	if len(st.messages) != 1 || st.messages[0].Kind != store.KindNotice {
		t.Fatalf("notice not persisted: %+v", st.messages)
	}
	if len(p.pushes) != 1 || p.pushes[0].to.UserID != "other" {
		t.Fatalf("actor must be excluded from fan-out: %+v", p.pushes)
	}
}

func TestTrackingEndedPersistsWithoutPush(t *testing.T) {
	st := &memStore{recipients: []store.Recipient{{UserID: "u1"}}}
	p := &memPusher{}
	d := NewDispatcher(Config{}, st, p, logx.Nop())

	if err := d.TrackingEnded(context.Background(), testSub()); err != nil {
		t.Fatalf("tracking ended: %v", err)
	}
	if len(st.messages) != 1 || !strings.Contains(st.messages[0].Content, "Game tracking ended for Lakers") {
		t.Fatalf("unexpected notice: %+v", st.messages)
	}
	if len(p.pushes) != 0 {
		t.Fatalf("tracking-ended must not push")
	}
}

func TestNilPusherDisablesFanOut(t *testing.T) {
	st := &memStore{recipients: []store.Recipient{{UserID: "u1"}}}
	d := NewDispatcher(Config{}, st, nil, logx.Nop())

	if err := d.ScoreUpdate(context.Background(), testSub(), testUpdate(false)); err != nil {
		t.Fatalf("score update without pusher: %v", err)
	}
	if len(st.messages) != 1 {
		t.Fatalf("message must still persist with pushes disabled")
	}
}
