package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scorebot/pkg/logx"
)

const scoreboardBody = `{
  "events": [
    {
      "id": "401585601",
      "name": "Boston Celtics at Los Angeles Lakers",
      "shortName": "BOS @ LAL",
      "status": {"type": {"state": "in", "completed": false}, "period": 3, "displayClock": "7:42"},
      "competitions": [{"competitors": [
        {"homeAway": "home", "score": "80", "team": {"id": "13", "name": "Lakers", "displayName": "Los Angeles Lakers", "abbreviation": "LAL"}},
        {"homeAway": "away", "score": "9", "team": {"id": "2", "name": "Celtics", "displayName": "Boston Celtics", "abbreviation": "BOS"}}
      ]}]
    },
    {
      "id": "401585602",
      "name": "Final Game",
      "shortName": "DEN @ GSW",
      "status": {"type": {"state": "post", "completed": true}, "period": 4, "displayClock": "0.0"},
      "competitions": [{"competitors": [
        {"homeAway": "home", "score": "110", "team": {"id": "9", "name": "Warriors", "displayName": "Golden State Warriors", "abbreviation": "GSW"}},
        {"homeAway": "away", "score": "", "team": {"id": "7", "name": "Nuggets", "displayName": "Denver Nuggets", "abbreviation": "DEN"}}
      ]}]
    }
  ]
}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, RatePerSec: 100}, logx.Nop())
}

func TestScoreboardCoercesStringScores(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/basketball/nba/scoreboard" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(scoreboardBody))
	})

	snaps, err := c.Scoreboard(context.Background(), SportNBA)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snaps))
	}
	live := snaps[0]
	if live.Home.Score != 80 || live.Away.Score != 9 {
		t.Fatalf("scores not coerced to int: home=%d away=%d", live.Home.Score, live.Away.Score)
	}
	if !live.Live() || live.Period != 3 || live.Clock != "7:42" {
		t.Fatalf("unexpected live status: %+v", live)
	}
	final := snaps[1]
	if !final.Final() {
		t.Fatalf("completed game must be final: %+v", final)
	}
	// Empty upstream score decodes to 0, not an error.
	if final.Away.Score != 0 {
		t.Fatalf("empty score must coerce to 0, got %d", final.Away.Score)
	}
}

func TestScoreboardUpstreamErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if _, err := c.Scoreboard(context.Background(), SportNBA); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream on 503, got %v", err)
	}

	c = testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events": [`))
	})
	if _, err := c.Scoreboard(context.Background(), SportNBA); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream on malformed body, got %v", err)
	}
}

func TestScoreboardCachesWithinTTL(t *testing.T) {
	var hits atomic.Int64
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(scoreboardBody))
	})
	c.cfg.CacheTTL = time.Minute

	for i := 0; i < 3; i++ {
		if _, err := c.Scoreboard(context.Background(), SportNBA); err != nil {
			t.Fatalf("scoreboard %d: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 upstream hit within TTL, got %d", got)
	}
}

func TestFindTeamGame(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scoreboardBody))
	})

	snap, ok, err := c.FindTeamGame(context.Background(), "LAKERS", SportNBA)
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if snap.GameID != "401585601" {
		t.Fatalf("matched wrong game: %s", snap.GameID)
	}

	// Abbreviation matches too.
	if _, ok, _ := c.FindTeamGame(context.Background(), "gsw", SportNBA); !ok {
		t.Fatalf("abbreviation lookup failed")
	}

	if _, ok, _ := c.FindTeamGame(context.Background(), "knicks", SportNBA); ok {
		t.Fatalf("unexpected match for absent team")
	}
	if _, ok, _ := c.FindTeamGame(context.Background(), "   ", SportNBA); ok {
		t.Fatalf("blank name must not match")
	}
}

func TestParseSport(t *testing.T) {
	if s, err := ParseSport(""); err != nil || s != SportNBA {
		t.Fatalf("empty sport must default to nba, got %q err=%v", s, err)
	}
	if s, err := ParseSport("Hockey/NHL"); err != nil || s != SportNHL {
		t.Fatalf("case-insensitive parse failed: %q err=%v", s, err)
	}
	if _, err := ParseSport("cricket/ipl"); err == nil {
		t.Fatalf("unknown sport must error")
	}
}
