package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/cbp-establishments/models"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS counties (
		county_id TEXT PRIMARY KEY,
		name      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS establishments (
		county_id      TEXT    NOT NULL,
		industry       TEXT    NOT NULL,
		year           INTEGER NOT NULL,
		establishments INTEGER NOT NULL,
		PRIMARY KEY (county_id, industry, year)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		written_at TEXT    NOT NULL,
		counties   INTEGER NOT NULL,
		points     INTEGER NOT NULL
	)`,
}

// SQLiteWriter mirrors the processed series into a SQLite database.
// Each Write replaces the previous series and records the run in runs.
type SQLiteWriter struct {
	db    *sql.DB
	runID string

	mu      sync.Mutex
	written int
}

func NewSQLiteWriter(path, runID string) (*SQLiteWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create sqlite schema: %w", err)
		}
	}

	return &SQLiteWriter{db: db, runID: runID}, nil
}

// Write replaces the stored series inside one transaction.
func (w *SQLiteWriter) Write(processed models.Processed) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM establishments`, `DELETE FROM counties`} {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear sqlite tables: %w", err)
		}
	}

	countyStmt, err := tx.Prepare(`INSERT INTO counties (county_id, name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare county insert: %w", err)
	}
	defer countyStmt.Close()

	pointStmt, err := tx.Prepare(`INSERT INTO establishments (county_id, industry, year, establishments) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare establishment insert: %w", err)
	}
	defer pointStmt.Close()

	points := 0
	for _, id := range processed.CountyIDs() {
		county := processed[id]
		if _, err = countyStmt.Exec(id, county.Name); err != nil {
			return fmt.Errorf("insert county %s: %w", id, err)
		}
		for code, years := range county.Series {
			for yearKey, count := range years {
				year, convErr := strconv.Atoi(yearKey)
				if convErr != nil {
					err = fmt.Errorf("county %s industry %s: invalid year %q: %w", id, code, yearKey, convErr)
					return err
				}
				if _, err = pointStmt.Exec(id, string(code), year, count); err != nil {
					return fmt.Errorf("insert establishments %s/%s/%d: %w", id, code, year, err)
				}
				points++
			}
		}
	}

	if _, err = tx.Exec(`INSERT OR REPLACE INTO runs (run_id, written_at, counties, points) VALUES (?, ?, ?, ?)`,
		w.runID, time.Now().UTC().Format(time.RFC3339), len(processed), points); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	w.written = points
	return nil
}

// Validate checks the stored point count matches the last write.
func (w *SQLiteWriter) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var count int
	if err := w.db.QueryRow(`SELECT COUNT(*) FROM establishments`).Scan(&count); err != nil {
		return fmt.Errorf("count establishments: %w", err)
	}
	if count != w.written {
		return fmt.Errorf("sqlite holds %d points, wrote %d", count, w.written)
	}
	return nil
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
