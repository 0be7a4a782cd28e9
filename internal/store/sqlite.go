package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/designpipe/dp/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const currentSessionKey = "current_session"

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's connection pool, preventing
	// "database is locked" errors when a watch loop and a command overlap.
	db.SetMaxOpenConns(1)

	// WAL failure is non-fatal: sqlite falls back to the rollback journal.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("failed to enable WAL mode", "error", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

// SaveSession inserts or refreshes a session record.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.LastSeenAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, client_name, status, mode, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			status = excluded.status,
			mode = excluded.mode,
			last_seen_at = excluded.last_seen_at`,
		rec.ID, rec.ClientName, string(rec.Status), rec.Mode, rec.CreatedAt, rec.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_name, status, mode, created_at, last_seen_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.ClientName, &status, &rec.Mode, &rec.CreatedAt, &rec.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	rec.Status = models.SessionStatus(status)
	return rec, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error) {
	query := `SELECT id, client_name, status, mode, created_at, last_seen_at
		FROM sessions ORDER BY last_seen_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		rec := &SessionRecord{}
		var status string
		if err := rows.Scan(&rec.ID, &rec.ClientName, &status, &rec.Mode, &rec.CreatedAt, &rec.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Status = models.SessionStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// --- Current session pointer ---

func (s *SQLiteStore) SetCurrentSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		currentSessionKey, id,
	)
	if err != nil {
		return fmt.Errorf("set current session: %w", err)
	}
	return nil
}

// CurrentSession returns the current session id, or "" when none is set.
func (s *SQLiteStore) CurrentSession(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", currentSessionKey,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get current session: %w", err)
	}
	return id, nil
}

// --- Status history ---

// RecordStatus appends a status observation unless it matches the most
// recent one, so polling the same status repeatedly stores one row.
func (s *SQLiteStore) RecordStatus(ctx context.Context, sessionID string, status models.SessionStatus) error {
	var last string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM status_history WHERE session_id = ?
		ORDER BY observed_at DESC, id DESC LIMIT 1`, sessionID,
	).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check last status: %w", err)
	}
	if last == string(status) {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO status_history (id, session_id, status, observed_at) VALUES (?, ?, ?, ?)`,
		newULID(), sessionID, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) StatusHistory(ctx context.Context, sessionID string) ([]*StatusChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, status, observed_at FROM status_history
		WHERE session_id = ? ORDER BY observed_at, id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("status history: %w", err)
	}
	defer rows.Close()

	var out []*StatusChange
	for rows.Next() {
		c := &StatusChange{}
		var status string
		if err := rows.Scan(&c.ID, &c.SessionID, &status, &c.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.Status = models.SessionStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}
