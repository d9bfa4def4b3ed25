// Package store is the sqlite persistence layer.
//
// It owns three tables:
//   - subscriptions: tracked games with their last-known score baselines
//   - messages: the append-only chat message log (the authoritative record
//     for every emitted notification)
//   - preferences: per-(scope,user) push notification settings
//
// Baseline updates are single UPDATE statements through one writer connection
// (WAL, MaxOpenConns(1)), so a concurrent reader never observes a half-written
// score pair.
package store
