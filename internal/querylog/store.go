// Package querylog persists one row per search (when, who, what and which
// resources matched) and reports query statistics from the recent log.
package querylog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/database"
)

// Entry is one logged search.
type Entry struct {
	Time       time.Time     `json:"time"`
	RemoteAddr string        `json:"remote_addr"`
	Query      string        `json:"query"`
	Matched    []string      `json:"matched"`
	Duration   time.Duration `json:"duration"`
}

// Store reads and writes the query_log table.
type Store struct {
	db     *database.Client
	logger *slog.Logger
}

func NewStore(db *database.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "query-log"),
	}
}

type migration struct {
	version int
	stmts   []string
}

// The schema version lives in meta under dbschemaver. Append new migrations;
// never edit applied ones.
var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS query_log (
				query_time TIMESTAMP NOT NULL,
				remote_ip TEXT NOT NULL DEFAULT '',
				query TEXT NOT NULL,
				documents_matched TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`ALTER TABLE query_log ADD COLUMN execution_duration INTEGER`,
		},
	},
	{
		version: 3,
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS query_log_time_idx ON query_log (query_time)`,
		},
	},
}

// Migrate creates the tables on first use and applies pending migrations,
// each in its own transaction. It returns the resulting schema version.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.DB.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	); err != nil {
		return 0, fmt.Errorf("creating meta table: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.db.InTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return s.setSchemaVersion(ctx, tx, m.version)
		})
		if err != nil {
			return current, fmt.Errorf("applying query log migration %d: %w", m.version, err)
		}
		s.logger.Info("query log migrated", "from", current, "to", m.version)
		current = m.version
	}
	return current, nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var value string
	err := s.db.DB.QueryRowContext(ctx,
		s.db.Rebind(`SELECT value FROM meta WHERE key = ?`), "dbschemaver",
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("malformed schema version %q: %w", value, err)
	}
	return v, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, tx *sql.Tx, version int) error {
	res, err := tx.ExecContext(ctx,
		s.db.Rebind(`UPDATE meta SET value = ? WHERE key = ?`), strconv.Itoa(version), "dbschemaver")
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO meta (key, value) VALUES (?, ?)`), "dbschemaver", strconv.Itoa(version))
	return err
}

// Record inserts entries in a single transaction.
func (s *Store) Record(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(
			`INSERT INTO query_log (query_time, remote_ip, query, documents_matched, execution_duration)
			 VALUES (?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("preparing query log insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx,
				e.Time.UTC(),
				e.RemoteAddr,
				e.Query,
				strings.Join(e.Matched, " "),
				e.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("inserting query log entry: %w", err)
			}
		}
		return nil
	})
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(
		`SELECT query_time, remote_ip, query, documents_matched, execution_duration
		 FROM query_log ORDER BY query_time DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent queries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			matched  string
			duration sql.NullInt64
		)
		if err := rows.Scan(&e.Time, &e.RemoteAddr, &e.Query, &matched, &duration); err != nil {
			return nil, fmt.Errorf("scanning query log row: %w", err)
		}
		e.Matched = strings.Fields(matched)
		e.Duration = time.Duration(duration.Int64) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
