package tracker

import (
	"context"
	"sync"
	"time"

	"scorebot/internal/feed"
	"scorebot/internal/metrics"
	"scorebot/internal/store"
	"scorebot/pkg/logx"
)

// Engine reconciles active subscriptions against the current feed state.
//
// Run is idempotent per (subscription, snapshot): re-running with an unchanged
// feed against an already-updated baseline resolves to no-change, so
// overlapping invocations (internal timer plus external scheduler) degrade to
// redundant but harmless cycles.
type Engine struct {
	store    Store
	feed     Feed
	notifier Notifier
	log      logx.Logger
}

func NewEngine(st Store, fd Feed, n Notifier, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{store: st, feed: fd, notifier: n, log: log}
}

type groupResult struct {
	sport   feed.Sport
	err     error
	traces  []GameTrace
	updates int
	subErrs int
}

// Run executes one reconciliation cycle over all active subscriptions.
//
// One fetch per distinct sport; sport groups run concurrently and a fetch
// failure skips only that group. The returned Report always reflects the
// groups that did run.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	metrics.PollCycles.Inc()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	subs, err := e.store.ListActive(ctx, "")
	if err != nil {
		return Report{}, err
	}
	report := Report{Checked: len(subs), Debug: []GameTrace{}}
	metrics.SubscriptionsChecked.Add(float64(len(subs)))
	if len(subs) == 0 {
		return report, nil
	}

	bySport := map[feed.Sport][]store.Subscription{}
	for _, sub := range subs {
		sport, perr := feed.ParseSport(sub.Sport)
		if perr != nil {
			// Persisted sports are validated at track time; tolerate old rows.
			sport = feed.SportNBA
		}
		bySport[sport] = append(bySport[sport], sub)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []groupResult
	)
	for sport, group := range bySport {
		wg.Add(1)
		go func(sport feed.Sport, group []store.Subscription) {
			defer wg.Done()
			res := e.runSportGroup(ctx, sport, group)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(sport, group)
	}
	wg.Wait()

	for _, res := range results {
		if res.err != nil {
			if report.SportErrors == nil {
				report.SportErrors = map[string]string{}
			}
			report.SportErrors[string(res.sport)] = res.err.Error()
			continue
		}
		report.Debug = append(report.Debug, res.traces...)
		report.Updates += res.updates
		report.SubErrors += res.subErrs
	}

	e.log.Info("cycle complete",
		logx.Int("checked", report.Checked),
		logx.Int("updates", report.Updates),
		logx.Int("sport_errors", len(report.SportErrors)),
		logx.Duration("took", time.Since(start)))
	return report, nil
}

func (e *Engine) runSportGroup(ctx context.Context, sport feed.Sport, group []store.Subscription) groupResult {
	res := groupResult{sport: sport}

	snaps, err := e.feed.Scoreboard(ctx, sport)
	if err != nil {
		metrics.UpstreamErrors.Inc()
		e.log.Warn("scoreboard fetch failed; skipping sport group",
			logx.String("sport", string(sport)), logx.Int("subs", len(group)), logx.Err(err))
		res.err = err
		return res
	}
	byGame := make(map[string]feed.Snapshot, len(snaps))
	for _, s := range snaps {
		byGame[s.GameID] = s
	}

	for _, sub := range group {
		snap, ok := byGame[sub.GameID]
		trace, updates, errs := e.reconcile(ctx, sub, snap, ok)
		res.traces = append(res.traces, trace)
		res.updates += updates
		res.subErrs += errs
	}
	return res
}

// reconcile classifies one subscription against its snapshot and applies the
// resulting side effects. Returns the debug trace, messages posted, and the
// count of swallowed per-subscription errors.
func (e *Engine) reconcile(ctx context.Context, sub store.Subscription, snap feed.Snapshot, found bool) (GameTrace, int, int) {
	trace := GameTrace{GameID: sub.GameID, TeamName: sub.TeamName, Scope: sub.Scope}
	log := e.log.With(logx.String("game", sub.GameID), logx.String("scope", sub.Scope))
	errs := 0

	// Game vanished from the feed: terminal, no baseline write.
	if !found {
		trace.Outcome = OutcomeVanished.String()
		if err := e.store.Deactivate(ctx, sub.ID); err != nil {
			log.Error("deactivate failed", logx.Err(err))
			return trace, 0, 1
		}
		if err := e.notifier.TrackingEnded(ctx, sub); err != nil {
			log.Warn("tracking-ended notice failed", logx.Err(err))
			errs++
		}
		return trace, 0, errs
	}

	trace.CurrentHome = snap.Home.Score
	trace.CurrentAway = snap.Away.Score
	trace.CurrentPeriod = snap.Period

	// First observation: establish the baseline silently. Comparing against an
	// undefined baseline would emit a spurious score-changed message.
	if sub.Baseline == nil {
		trace.Outcome = OutcomeBaseline.String()
		if err := e.store.UpdateBaseline(ctx, sub.ID, snapshotBaseline(snap)); err != nil {
			log.Error("baseline write failed", logx.Err(err))
			errs++
		}
		return trace, 0, errs
	}

	prev := *sub.Baseline
	trace.PrevHome = intPtr(prev.Home)
	trace.PrevAway = intPtr(prev.Away)
	trace.PrevPeriod = intPtr(prev.Period)
	trace.ScoreChanged = snap.Home.Score != prev.Home || snap.Away.Score != prev.Away
	trace.PeriodChanged = snap.Period != prev.Period

	posted := 0
	if trace.ScoreChanged || trace.PeriodChanged {
		trace.Outcome = OutcomeChanged.String()
		if err := e.notifier.ScoreUpdate(ctx, sub, Update{Snapshot: snap, Previous: prev}); err != nil {
			log.Warn("score-update post failed", logx.Err(err))
			errs++
		} else {
			posted++
			metrics.UpdatesPosted.Inc()
		}
		if err := e.store.UpdateBaseline(ctx, sub.ID, snapshotBaseline(snap)); err != nil {
			log.Error("baseline write failed", logx.Err(err))
			errs++
		}
	} else {
		trace.Outcome = OutcomeNone.String()
	}

	// A game's last poll may carry both a score change and completion; both
	// messages are emitted, score update first. The final payload keeps the
	// pre-cycle baseline as previous scores.
	if snap.Final() {
		trace.Outcome = OutcomeFinished.String()
		if err := e.store.Deactivate(ctx, sub.ID); err != nil {
			log.Error("deactivate failed", logx.Err(err))
			errs++
		}
		if err := e.notifier.ScoreUpdate(ctx, sub, Update{Snapshot: snap, Previous: prev, Final: true}); err != nil {
			log.Warn("final post failed", logx.Err(err))
			errs++
		} else {
			posted++
			metrics.UpdatesPosted.Inc()
		}
	}

	return trace, posted, errs
}

func snapshotBaseline(snap feed.Snapshot) store.Baseline {
	return store.Baseline{Home: snap.Home.Score, Away: snap.Away.Score, Period: snap.Period}
}

func intPtr(v int) *int { return &v }
