// Package feed is the client for the upstream sports scoreboard API.
//
// The upstream is read-only, unauthenticated, rate-limited and eventually
// consistent. The client normalizes its wire JSON into Snapshot values with
// numeric scores, caches responses inside a short freshness window, and wraps
// every failure in ErrUpstream so callers can classify it.
package feed
