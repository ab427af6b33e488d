package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one release identity and when it was first seen.
type Entry struct {
	Key         string
	FirstSeenAt time.Time
}

// Ledger is the append-only record of every dedup key ever emitted. Keys are
// never updated or removed, so a key is reported as new at most once.
type Ledger struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	l := &Ledger{readDB: readDB, writeDB: writeDB}
	if err := l.init(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) init() error {
	_, err := l.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS releases (
			key           TEXT PRIMARY KEY,
			first_seen_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_releases_first_seen ON releases(first_seen_at DESC);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	var errs []error
	if l.readDB != nil {
		errs = append(errs, l.readDB.Close())
	}
	if l.writeDB != nil {
		errs = append(errs, l.writeDB.Close())
	}
	return errors.Join(errs...)
}

// RecordNew adds the keys not already in the ledger, stamped with now, and
// returns them in input order.
func (l *Ledger) RecordNew(keys []string, now time.Time) ([]string, error) {
	tx, err := l.writeDB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO releases (key, first_seen_at) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var added []string
	for _, k := range keys {
		res, err := stmt.Exec(k, now.UTC())
		if err != nil {
			return nil, fmt.Errorf("recording %s: %w", k, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added = append(added, k)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing history: %w", err)
	}
	return added, nil
}

func (l *Ledger) Seen(key string) (bool, error) {
	var n int
	err := l.readDB.QueryRow("SELECT COUNT(*) FROM releases WHERE key = ?", key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying history: %w", err)
	}
	return n > 0, nil
}

func (l *Ledger) Count() (int, error) {
	var n int
	if err := l.readDB.QueryRow("SELECT COUNT(*) FROM releases").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}

// Entries returns the most recently seen keys first. limit <= 0 means all.
func (l *Ledger) Entries(limit int) ([]Entry, error) {
	query := "SELECT key, first_seen_at FROM releases ORDER BY first_seen_at DESC, key"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := l.readDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.FirstSeenAt); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastRun is zero when no run has completed.
func (l *Ledger) LastRun() time.Time {
	var value string
	err := l.readDB.QueryRow("SELECT value FROM meta WHERE key = 'last_run'").Scan(&value)
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (l *Ledger) SetLastRun(t time.Time) error {
	_, err := l.writeDB.Exec(`
		INSERT INTO meta (key, value) VALUES ('last_run', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, t.UTC().Format(time.RFC3339))
	return err
}
