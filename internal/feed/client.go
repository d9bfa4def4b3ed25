package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"scorebot/pkg/logx"
)

// ErrUpstream marks a failed or malformed scoreboard fetch. Callers decide
// retry policy; the client never retries internally.
var ErrUpstream = errors.New("scoreboard upstream unavailable")

const defaultBaseURL = "http://site.api.espn.com/apis/site/v2/sports"

// Config controls the feed client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // per-request, default 8s
	CacheTTL   time.Duration // freshness window, default 30s
	RatePerSec int           // token bucket for real fetches, default 2
}

type cacheEntry struct {
	at    time.Time
	snaps []Snapshot
}

// Client fetches and normalizes the upstream scoreboard feed.
//
// A short per-sport freshness cache keeps overlapping poll invocations from
// hammering the upstream; staleness inside the window is acceptable because
// the polling cadence exceeds it.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger

	mu    sync.Mutex
	cache map[Sport]cacheEntry
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
		cache:   map[Sport]cacheEntry{},
	}
}

// Scoreboard returns the current snapshots for one sport.
func (c *Client) Scoreboard(ctx context.Context, sport Sport) ([]Snapshot, error) {
	c.mu.Lock()
	if e, ok := c.cache[sport]; ok && time.Since(e.at) < c.cfg.CacheTTL {
		snaps := e.snaps
		c.mu.Unlock()
		return snaps, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/scoreboard", c.cfg.BaseURL, sport)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var wire scoreboardWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	snaps := make([]Snapshot, 0, len(wire.Events))
	for _, ev := range wire.Events {
		snaps = append(snaps, normalizeEvent(ev, sport))
	}

	c.mu.Lock()
	c.cache[sport] = cacheEntry{at: time.Now(), snaps: snaps}
	c.mu.Unlock()

	c.log.Debug("scoreboard fetched", logx.String("sport", string(sport)), logx.Int("events", len(snaps)))
	return snaps, nil
}

// FindTeamGame looks up the first game whose teams match name
// (case-insensitive substring against short, display and abbreviated names).
//
// Ambiguous names are not disambiguated: first match wins. This is a known
// limitation of the upstream search, kept as-is.
func (c *Client) FindTeamGame(ctx context.Context, name string, sport Sport) (Snapshot, bool, error) {
	snaps, err := c.Scoreboard(ctx, sport)
	if err != nil {
		return Snapshot{}, false, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Snapshot{}, false, nil
	}
	for _, s := range snaps {
		for _, t := range []Team{s.Home.Team, s.Away.Team} {
			if strings.Contains(strings.ToLower(t.Name), needle) ||
				strings.Contains(strings.ToLower(t.DisplayName), needle) ||
				strings.Contains(strings.ToLower(t.Abbreviation), needle) {
				return s, true, nil
			}
		}
	}
	return Snapshot{}, false, nil
}

func normalizeEvent(ev eventWire, sport Sport) Snapshot {
	snap := Snapshot{
		GameID:    ev.ID,
		Name:      ev.Name,
		ShortName: ev.ShortName,
		Sport:     sport,
		State:     ev.Status.Type.State,
		Completed: ev.Status.Type.Completed,
		Period:    ev.Status.Period,
		Clock:     ev.Status.DisplayClock,
	}
	if len(ev.Competitions) == 0 {
		return snap
	}
	for _, comp := range ev.Competitions[0].Competitors {
		side := Side{
			Team: Team{
				ID:           comp.Team.ID,
				Name:         comp.Team.Name,
				DisplayName:  comp.Team.DisplayName,
				Abbreviation: comp.Team.Abbreviation,
				Logo:         comp.Team.Logo,
			},
			Score: parseScore(comp.Score),
		}
		switch comp.HomeAway {
		case "home":
			snap.Home = side
		case "away":
			snap.Away = side
		}
	}
	return snap
}

// parseScore coerces the upstream string score to an int. Scores arrive as
// strings and must never be compared in string form ("9" > "10").
func parseScore(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
