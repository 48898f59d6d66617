package artifact

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const artifactsDDL = `
CREATE TABLE IF NOT EXISTS artifacts (
  target      TEXT NOT NULL,
  role        TEXT NOT NULL,
  name        TEXT NOT NULL,
  path        TEXT NOT NULL,
  digest      TEXT NOT NULL,
  build_time  TIMESTAMP,
  PRIMARY KEY (target, role, name)
);
`

// SQLiteStore keeps the cache in a SQLite table, replaced in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(artifactsDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() ([]Entry, error) {
	rows, err := s.db.Query("SELECT target, role, name, path, digest, build_time FROM artifacts ORDER BY target, role, name")
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			r  record
			bt sql.NullTime
		)
		if err := rows.Scan(&r.Target, &r.Role, &r.Name, &r.Path, &r.Digest, &bt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		r.BuildTime = bt.Time
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Save(entries []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM artifacts"); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO artifacts (target, role, name, path, digest, build_time) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, e := range entries {
		r := toRecord(e)
		if _, err := stmt.Exec(r.Target, string(r.Role), r.Name, r.Path, r.Digest, r.BuildTime.UTC()); err != nil {
			return fmt.Errorf("insert artifact %s: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM artifacts"); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
