package poller

import (
	"context"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"scorebot/pkg/logx"
)

// RunFunc is one poll invocation. It must be idempotent: ticks are
// fire-and-forget and independent schedulers may trigger the same entry point
// concurrently.
type RunFunc func(ctx context.Context)

// Config controls the poll trigger.
type Config struct {
	// Schedule accepts cron specs (5 or 6 fields with optional seconds),
	// descriptors ("@hourly") and intervals ("@every 60s").
	Schedule string
}

// Service is a cooldown-guarded periodic invoker around robfig/cron.
//
// Start while running is a no-op; Stop only prevents future ticks, an
// in-flight tick runs to completion. There is no overlap lock across ticks:
// the engine's idempotence makes overlapping runs degrade to no-change cycles.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	run    RunFunc
	parser cron.Parser
	spec   string

	c      *cron.Cron
	runCtx context.Context
}

func New(cfg Config, run RunFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log: log,
		run: run,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		spec:   strings.TrimSpace(cfg.Schedule),
	}
}

// Start schedules ticks and fires one immediate poll. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		s.log.Debug("start requested while running; ignored")
		return nil
	}
	if _, err := s.parser.Parse(s.spec); err != nil {
		return err
	}

	s.runCtx = ctx
	s.c = cron.New(cron.WithParser(s.parser))
	if _, err := s.c.AddFunc(s.spec, func() { s.tick() }); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("poller started", logx.String("schedule", s.spec))

	// Poll immediately, then on schedule.
	go s.tick()
	return nil
}

// Stop clears the timer. Future ticks only; anything in flight completes.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	s.c.Stop()
	s.c = nil
	s.log.Info("poller stopped")
}

// Apply re-schedules a running poller when the configured spec changes.
// Invalid specs are rejected and the current schedule stays in place.
func (s *Service) Apply(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if _, err := s.parser.Parse(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if schedule == s.spec {
		return nil
	}
	s.spec = schedule
	if s.c == nil {
		return nil
	}

	s.c.Stop()
	ctx := s.runCtx
	s.c = cron.New(cron.WithParser(s.parser))
	if _, err := s.c.AddFunc(s.spec, func() { s.tick() }); err != nil {
		s.c = nil
		return err
	}
	s.runCtx = ctx
	s.c.Start()
	s.log.Info("poller rescheduled", logx.String("schedule", s.spec))
	return nil
}

// Running reports whether ticks are scheduled.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.run(ctx)
}
