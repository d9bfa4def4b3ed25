// Package poller is the recurring poll trigger. It owns no reconciliation
// logic; it just invokes the injected RunFunc on a cron schedule, with an
// idempotent start/stop lifecycle and no process-wide state, so multiple
// instances (or an external scheduler hitting the HTTP poll endpoint) can run
// concurrently.
package poller
