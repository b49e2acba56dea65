// Package history stores display attempts and their outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/history/migrations"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// DefaultLimit caps ListAttempts when no limit is given.
const DefaultLimit = 100

// ErrNotConfigured is returned when the store has no database handle.
var ErrNotConfigured = errors.New("history: storage is not configured")

// Filter narrows ListAttempts.
type Filter struct {
	CampaignID string // Empty matches every campaign
	Since      time.Time
	Limit      int // Newest first; <= 0 means DefaultLimit
}

// Store persists attempts in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the history database and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordAttempt inserts one attempt.
func (s *Store) RecordAttempt(ctx context.Context, a model.Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("attempt id is required")
	}
	if strings.TrimSpace(a.CampaignID) == "" {
		return errors.New("campaign id is required")
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, campaign_id, kind, reason, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.CampaignID, string(a.Kind), string(a.Reason), a.Detail, toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListAttempts returns attempts newest first.
func (s *Store) ListAttempts(ctx context.Context, f Filter) ([]model.Attempt, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, campaign_id, kind, reason, detail, created_at FROM attempts`
	var where []string
	var args []any
	if f.CampaignID != "" {
		where = append(where, "campaign_id = ?")
		args = append(args, f.CampaignID)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(f.Since))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var (
			a         model.Attempt
			kind      string
			reason    string
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.CampaignID, &kind, &reason, &a.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Kind = model.AttemptKind(kind)
		a.Reason = model.Reason(reason)
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// OutcomeCounts returns the number of attempts per reason. An empty
// campaignID counts every campaign.
func (s *Store) OutcomeCounts(ctx context.Context, campaignID string) (map[model.Reason]int, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}

	query := `SELECT reason, COUNT(*) FROM attempts`
	var args []any
	if campaignID != "" {
		query += ` WHERE campaign_id = ?`
		args = append(args, campaignID)
	}
	query += ` GROUP BY reason`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Reason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.Reason(reason)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// Prune deletes attempts older than cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotConfigured
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	return res.RowsAffected()
}
