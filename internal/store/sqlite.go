package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating when needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLite{db: db, path: path, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, ns Namespace, key string) (Record, error) {
	if err := validKey(ns, key); err != nil {
		return Record{}, err
	}
	var (
		value     []byte
		createdAt string
		expiresAt sql.NullString
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT value, created_at, expires_at FROM records WHERE namespace = ? AND key = ?`,
			string(ns), key,
		).Scan(&value, &createdAt, &expiresAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, notFound(ns, key)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s/%s: %w", ns, key, err)
	}
	rec := Record{
		Namespace: ns,
		Key:       key,
		Value:     value,
		CreatedAt: parseTimestamp(createdAt),
		ExpiresAt: parseTimestamp(expiresAt.String),
	}
	if rec.Expired(s.now()) {
		_, _ = s.Delete(ctx, ns, key)
		return Record{}, notFound(ns, key)
	}
	return rec, nil
}

func (s *SQLite) Put(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error {
	if err := validKey(ns, key); err != nil {
		return err
	}
	now := s.now().UTC()
	err := s.exec(ctx,
		`INSERT INTO records (namespace, key, value, created_at, expires_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(namespace, key) DO UPDATE SET
            value = excluded.value,
            created_at = excluded.created_at,
            expires_at = excluded.expires_at`,
		string(ns), key, value, formatTimestamp(now), nullableTimestamp(expiry(now, ttl)),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", ns, key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, ns Namespace, key string) (bool, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE namespace = ? AND key = ?`, string(ns), key)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", ns, key, err)
	}
	return affected > 0, nil
}

func (s *SQLite) List(ctx context.Context, ns Namespace) ([]Record, error) {
	if err := s.pruneExpired(ctx, ns); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, created_at, expires_at FROM records WHERE namespace = ? ORDER BY created_at, key`,
		string(ns),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ns, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       = Record{Namespace: ns}
			createdAt string
			expiresAt sql.NullString
		)
		if err := rows.Scan(&rec.Key, &rec.Value, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.CreatedAt = parseTimestamp(createdAt)
		rec.ExpiresAt = parseTimestamp(expiresAt.String)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *SQLite) Clear(ctx context.Context, ns Namespace) (int, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE namespace = ?`, string(ns))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", ns, err)
	}
	return int(affected), nil
}

func (s *SQLite) pruneExpired(ctx context.Context, ns Namespace) error {
	err := s.exec(ctx,
		`DELETE FROM records WHERE namespace = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(ns), formatTimestamp(s.now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("prune %s: %w", ns, err)
	}
	return nil
}

func (s *SQLite) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Timestamps use a fixed-width layout so lexical order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullableTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTimestamp(t)
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
