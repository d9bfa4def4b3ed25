package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"scorebot/pkg/logx"
)

// Config is the full scorebot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "30s", "1m").
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`
	Feed    FeedConfig    `json:"feed"`
	Poller  PollerConfig  `json:"poller"`
	Storage StorageConfig `json:"storage"`

	// Telegram enables best-effort push fan-out. If the whole section is
	// omitted, pushes are disabled and score updates only land in the
	// message store.
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	Notify NotifyConfig `json:"notify"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr"` // default ":8080"
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console bool   `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file"`
}

// FeedConfig controls the upstream scoreboard client.
type FeedConfig struct {
	BaseURL    string `json:"base_url,omitempty"`     // default: public scoreboard API
	Timeout    string `json:"timeout,omitempty"`      // per-request timeout, default "8s"
	CacheTTL   string `json:"cache_ttl,omitempty"`    // freshness window, default "30s"
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default 2
}

// PollerConfig controls the recurring poll trigger.
//
// Schedule accepts cron specs (5 or 6 fields), descriptors ("@hourly") and
// intervals ("@every 60s").
type PollerConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // default "@every 60s"
}

// StorageConfig controls the sqlite persistence layer.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // default "5s"
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

// NotifyConfig controls the push fan-out pipeline.
type NotifyConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"` // default 3
}

func (c *LoggingConfig) ToLogx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

func (f *FeedConfig) TimeoutOrDefault() time.Duration {
	d, _ := ParseDurationOrDefault("feed.timeout", f.Timeout, 8*time.Second)
	return d
}

func (f *FeedConfig) CacheTTLOrDefault() time.Duration {
	d, _ := ParseDurationOrDefault("feed.cache_ttl", f.CacheTTL, 30*time.Second)
	return d
}

func (p *PollerConfig) ScheduleOrDefault() string {
	if s := strings.TrimSpace(p.Schedule); s != "" {
		return s
	}
	return "@every 60s"
}

func (s *StorageConfig) BusyTimeoutOrDefault() time.Duration {
	d, _ := ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, 5*time.Second)
	return d
}

// pollerParser mirrors the parser the poller service uses, so validation and
// runtime agree on accepted schedule syntax.
var pollerParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks cross-field constraints and duration syntax.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := ParseDurationField("feed.timeout", c.Feed.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("feed.cache_ttl", c.Feed.CacheTTL); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if c.Poller.Enabled {
		if _, err := pollerParser.Parse(c.Poller.ScheduleOrDefault()); err != nil {
			return fmt.Errorf("poller.schedule: %w", err)
		}
	}
	if c.Telegram != nil && c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required when telegram is enabled")
	}
	return nil
}
