package feed

import (
	"fmt"
	"strings"
)

// Sport is an upstream scoreboard path key.
type Sport string

const (
	SportNBA Sport = "basketball/nba"
	SportNFL Sport = "football/nfl"
	SportMLB Sport = "baseball/mlb"
	SportNHL Sport = "hockey/nhl"
	SportMLS Sport = "soccer/usa.1"
)

// ParseSport validates a sport key. Empty input falls back to NBA, matching
// the historical default for track requests that omit the sport.
func ParseSport(s string) (Sport, error) {
	v := Sport(strings.TrimSpace(strings.ToLower(s)))
	switch v {
	case "":
		return SportNBA, nil
	case SportNBA, SportNFL, SportMLB, SportNHL, SportMLS:
		return v, nil
	default:
		return "", fmt.Errorf("unknown sport key %q", s)
	}
}

// Game states as reported by the upstream feed.
const (
	StatePre  = "pre"
	StateLive = "in"
	StatePost = "post"
)

// Team identifies one side of a game.
type Team struct {
	ID           string
	Name         string
	DisplayName  string
	Abbreviation string
	Logo         string
}

// Side pairs a team with its current score. Scores are coerced to int at the
// feed boundary; the engine never sees the upstream string form.
type Side struct {
	Team  Team
	Score int
}

// Snapshot is the ephemeral state of one game in one poll cycle. It is never
// persisted and is always superseded by the next fetch.
type Snapshot struct {
	GameID    string
	Name      string
	ShortName string
	Sport     Sport

	State     string // pre|in|post
	Completed bool
	Period    int
	Clock     string

	Home Side
	Away Side
}

func (s Snapshot) Live() bool  { return s.State == StateLive }
func (s Snapshot) Pre() bool   { return s.State == StatePre }
func (s Snapshot) Final() bool { return s.Completed }

// FormatStatus renders a one-line human-readable game status.
func (s Snapshot) FormatStatus() string {
	switch {
	case s.Pre():
		return fmt.Sprintf("Upcoming: %s @ %s", s.Away.Team.DisplayName, s.Home.Team.DisplayName)
	case s.Live():
		return fmt.Sprintf("LIVE Q%d %s: %s %d, %s %d",
			s.Period, s.Clock, s.Away.Team.DisplayName, s.Away.Score, s.Home.Team.DisplayName, s.Home.Score)
	case s.Final():
		return fmt.Sprintf("FINAL: %s %d, %s %d",
			s.Away.Team.DisplayName, s.Away.Score, s.Home.Team.DisplayName, s.Home.Score)
	default:
		return "Game status unknown"
	}
}

// Wire types mirror the upstream scoreboard JSON. The schema is documented but
// unversioned; decoding is best-effort field presence only.

type scoreboardWire struct {
	Events []eventWire `json:"events"`
}

type eventWire struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ShortName    string            `json:"shortName"`
	Date         string            `json:"date"`
	Status       statusWire        `json:"status"`
	Competitions []competitionWire `json:"competitions"`
}

type statusWire struct {
	Type struct {
		State     string `json:"state"`
		Completed bool   `json:"completed"`
	} `json:"type"`
	Period       int    `json:"period"`
	DisplayClock string `json:"displayClock"`
}

type competitionWire struct {
	ID          string           `json:"id"`
	Competitors []competitorWire `json:"competitors"`
}

type competitorWire struct {
	Team     teamWire `json:"team"`
	Score    string   `json:"score"`
	HomeAway string   `json:"homeAway"`
}

type teamWire struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
	Logo         string `json:"logo"`
}
