// Package storage provides a SQLite-backed cache of normalized observation series,
// keyed by feed name, so one import can serve many analysis runs.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/oracleconf/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// ImportRecord describes one stored series.
type ImportRecord struct {
	ID         string
	Feed       string
	Source     string
	Rows       int
	ImportedAt time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/oracleconf/series.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "oracleconf", "series.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	s := &Storage{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := s.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS imports (
			id          TEXT PRIMARY KEY,
			feed        TEXT NOT NULL UNIQUE,
			source      TEXT,
			row_count   INTEGER NOT NULL,
			imported_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS observations (
			feed         TEXT NOT NULL REFERENCES imports(feed) ON DELETE CASCADE,
			seq          INTEGER NOT NULL,
			publish_time INTEGER NOT NULL,
			price        REAL NOT NULL,
			confidence   REAL NOT NULL,
			PRIMARY KEY (feed, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_time ON observations(feed, publish_time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSeries replaces the stored series for feed and returns the new import ID.
func (s *Storage) SaveSeries(feed, source string, series models.Series) (string, error) {
	if feed == "" {
		return "", fmt.Errorf("feed must not be empty")
	}
	if err := series.Validate(); err != nil {
		return "", fmt.Errorf("invalid series: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM imports WHERE feed = ?`, feed); err != nil {
		return "", fmt.Errorf("failed to clear feed: %w", err)
	}

	id := uuid.New().String()
	if _, err := tx.Exec(`
		INSERT INTO imports (id, feed, source, row_count, imported_at)
		VALUES (?,?,?,?,?)`,
		id, feed, source, len(series), time.Now().UnixNano(),
	); err != nil {
		return "", fmt.Errorf("failed to insert import: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO observations (feed, seq, publish_time, price, confidence)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range series {
		if _, err := stmt.Exec(feed, i, o.Time, o.Price, o.Confidence); err != nil {
			return "", fmt.Errorf("failed to insert observation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	return id, nil
}

// LoadSeries returns the stored series for feed in its original order.
func (s *Storage) LoadSeries(feed string) (models.Series, error) {
	var rows int
	err := s.db.QueryRow(`SELECT row_count FROM imports WHERE feed = ?`, feed).Scan(&rows)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feed not found: %s", feed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	result, err := s.db.Query(`
		SELECT publish_time, price, confidence
		FROM observations WHERE feed = ? ORDER BY seq`, feed)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer result.Close()

	series := make(models.Series, 0, rows)
	for result.Next() {
		var o models.Observation
		if err := result.Scan(&o.Time, &o.Price, &o.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		series = append(series, o)
	}
	return series, result.Err()
}

// ListImports returns every stored feed, most recent first.
func (s *Storage) ListImports() ([]ImportRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, feed, source, row_count, imported_at
		FROM imports ORDER BY imported_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	records := []ImportRecord{}
	for rows.Next() {
		var r ImportRecord
		var source sql.NullString
		var importedAtNano int64
		if err := rows.Scan(&r.ID, &r.Feed, &source, &r.Rows, &importedAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		r.Source = source.String
		r.ImportedAt = time.Unix(0, importedAtNano)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteFeed removes a feed and, by cascade, its observations.
func (s *Storage) DeleteFeed(feed string) error {
	res, err := s.db.Exec(`DELETE FROM imports WHERE feed = ?`, feed)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("feed not found: %s", feed)
	}
	return nil
}
