package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scorebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store wraps the sqlite database. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the database and applies migrations.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSubscription inserts a subscription, or returns the existing active one
// for the same (scope, game). The second return reports whether a new row was
// created.
func (s *Store) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, bool, error) {
	if existing, ok, err := s.activeByGame(ctx, sub.Scope, sub.GameID); err != nil {
		return Subscription{}, false, err
	} else if ok {
		return existing, false, nil
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(scope, user_id, game_id, team_name, sport, last_home, last_away, last_period, active, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,1,?,?)`,
		sub.Scope, sub.UserID, sub.GameID, sub.TeamName, sub.Sport,
		nullBaseline(sub.Baseline, func(b *Baseline) int { return b.Home }),
		nullBaseline(sub.Baseline, func(b *Baseline) int { return b.Away }),
		nullBaseline(sub.Baseline, func(b *Baseline) int { return b.Period }),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		// The partial unique index closes the check-then-insert race: if a
		// concurrent writer won, return its row.
		if strings.Contains(err.Error(), "UNIQUE") {
			if existing, ok, err2 := s.activeByGame(ctx, sub.Scope, sub.GameID); err2 == nil && ok {
				return existing, false, nil
			}
		}
		return Subscription{}, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Subscription{}, false, err
	}
	sub.ID = id
	sub.Active = true
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return sub, true, nil
}

func (s *Store) activeByGame(ctx context.Context, scope, gameID string) (Subscription, bool, error) {
	row := s.db.QueryRowContext(ctx,
		selectSubscription+` WHERE scope = ? AND game_id = ? AND active = 1`, scope, gameID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, err
	}
	return sub, true, nil
}

// ListActive returns active subscriptions, newest first. Empty scope means all
// scopes (used by the reconciliation engine).
func (s *Store) ListActive(ctx context.Context, scope string) ([]Subscription, error) {
	q := selectSubscription + ` WHERE active = 1`
	args := []any{}
	if scope != "" {
		q += ` AND scope = ?`
		args = append(args, scope)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpdateBaseline overwrites the baseline of one subscription. A single UPDATE,
// atomic per record.
func (s *Store) UpdateBaseline(ctx context.Context, id int64, b Baseline) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_home = ?, last_away = ?, last_period = ?, updated_at = ? WHERE id = ?`,
		b.Home, b.Away, b.Period, time.Now().Format(time.RFC3339Nano), id)
	return err
}

// UpdateBaselineByGame overwrites the baseline of every active subscription
// for a game. Serves the maintenance PATCH surface.
func (s *Store) UpdateBaselineByGame(ctx context.Context, gameID string, b Baseline) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_home = ?, last_away = ?, last_period = ?, updated_at = ? WHERE game_id = ? AND active = 1`,
		b.Home, b.Away, b.Period, time.Now().Format(time.RFC3339Nano), gameID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Deactivate soft-deletes one subscription. Idempotent.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), id)
	return err
}

// DeactivateByGame deactivates the active subscription for (scope, game).
func (s *Store) DeactivateByGame(ctx context.Context, scope, gameID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = 0, updated_at = ? WHERE scope = ? AND game_id = ? AND active = 1`,
		time.Now().Format(time.RFC3339Nano), scope, gameID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeactivateMatching deactivates every active subscription in scope whose team
// label contains pattern (case-insensitive).
func (s *Store) DeactivateMatching(ctx context.Context, scope, pattern string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = 0, updated_at = ?
		 WHERE scope = ? AND active = 1 AND lower(team_name) LIKE '%' || lower(?) || '%'`,
		time.Now().Format(time.RFC3339Nano), scope, pattern)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AppendMessage persists one chat message. ID and CreatedAt are assigned here.
func (s *Store) AppendMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(id, scope, user_id, username, kind, content, created_at) VALUES(?,?,?,?,?,?,?)`,
		m.ID, m.Scope, m.UserID, m.Username, m.Kind, m.Content, m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// ListMessages returns the most recent messages in scope, newest first.
func (s *Store) ListMessages(ctx context.Context, scope string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, user_id, username, kind, content, created_at
		 FROM messages WHERE scope = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		scope, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ID, &m.Scope, &m.UserID, &m.Username, &m.Kind, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetPreference upserts a notification preference.
func (s *Store) SetPreference(ctx context.Context, p Preference) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(scope, user_id, notifications_enabled, telegram_chat_id, updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(scope, user_id) DO UPDATE SET
		   notifications_enabled = excluded.notifications_enabled,
		   telegram_chat_id = excluded.telegram_chat_id,
		   updated_at = excluded.updated_at`,
		p.Scope, p.UserID, boolToInt(p.NotificationsEnabled), p.TelegramChatID,
		time.Now().Format(time.RFC3339Nano))
	return err
}

// GetPreference returns the stored preference, or ok=false when the user never
// set one (callers treat that as notifications enabled by default).
func (s *Store) GetPreference(ctx context.Context, scope, userID string) (Preference, bool, error) {
	var p Preference
	var enabled int
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT scope, user_id, notifications_enabled, telegram_chat_id, updated_at
		 FROM preferences WHERE scope = ? AND user_id = ?`, scope, userID).
		Scan(&p.Scope, &p.UserID, &enabled, &p.TelegramChatID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, false, nil
	}
	if err != nil {
		return Preference{}, false, err
	}
	p.NotificationsEnabled = enabled != 0
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return p, true, nil
}

// ListNotifyRecipients returns the opted-in push targets in scope.
func (s *Store) ListNotifyRecipients(ctx context.Context, scope string) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, telegram_chat_id FROM preferences
		 WHERE scope = ? AND notifications_enabled = 1`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UserID, &r.TelegramChatID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const selectSubscription = `SELECT id, scope, user_id, game_id, team_name, sport, last_home, last_away, last_period, active, created_at, updated_at FROM subscriptions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var sub Subscription
	var home, away, period sql.NullInt64
	var active int
	var created, updated string
	err := row.Scan(&sub.ID, &sub.Scope, &sub.UserID, &sub.GameID, &sub.TeamName, &sub.Sport,
		&home, &away, &period, &active, &created, &updated)
	if err != nil {
		return Subscription{}, err
	}
	// The baseline exists only once both scores have been observed.
	if home.Valid && away.Valid {
		sub.Baseline = &Baseline{Home: int(home.Int64), Away: int(away.Int64), Period: int(period.Int64)}
	}
	sub.Active = active != 0
	sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	sub.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return sub, nil
}

func nullBaseline(b *Baseline, get func(*Baseline) int) any {
	if b == nil {
		return nil
	}
	return get(b)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
