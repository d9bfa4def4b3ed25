// Package notify turns reconciliation outcomes into persisted chat messages
// and best-effort push notifications.
//
// The chat message is the authoritative record. Push delivery runs behind a
// token bucket and every delivery failure is swallowed after logging; it never
// causes a reconciliation state change to be treated as failed.
package notify
