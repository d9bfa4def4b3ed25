// Package logx is a small wrapper over zerolog used by all scorebot services.
//
// It exposes a value-type Logger whose zero value is a safe no-op, field
// helpers mirroring slog.Attr ergonomics, and a console + optional JSON file
// sink configured in one place.
package logx
