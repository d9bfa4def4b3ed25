// Package tracker is the reconciliation engine: it diffs each active
// subscription's persisted baseline against the current feed snapshot and
// emits at most the right number of downstream notifications.
//
// Classification order per subscription: vanished, baseline-establishing,
// score-or-period-changed, game-finished, no-change. The engine is idempotent
// per (subscription, snapshot) pair, which is what makes overlapping poll
// triggers safe without any cross-invocation locking.
package tracker
