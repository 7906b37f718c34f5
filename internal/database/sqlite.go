package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/leca/imgdrop/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteLedger implements Ledger backed by SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

var _ Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger opens (or creates) an SQLite database at dsn and runs
// migrations. For in-memory use pass "file::memory:?cache=shared".
func NewSQLiteLedger(dsn string) (*SQLiteLedger, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	} else if !strings.Contains(dsn, "_journal_mode") {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

func (s *SQLiteLedger) RecordAsset(a *model.Asset) error {
	_, err := s.db.Exec(`
		INSERT INTO assets (name, ext, media_type, size_bytes, uploaded)
		VALUES (?, ?, ?, ?, ?)`,
		a.Filename(), a.Ext, a.MediaType, a.Size, a.Uploaded.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *SQLiteLedger) RemoveAsset(filename string) error {
	_, err := s.db.Exec(`DELETE FROM assets WHERE name = ?`, filename)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

func (s *SQLiteLedger) Stats() ([]model.TypeStat, error) {
	rows, err := s.db.Query(`
		SELECT media_type, ext, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM assets
		GROUP BY media_type, ext
		ORDER BY media_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []model.TypeStat
	for rows.Next() {
		var st model.TypeStat
		if err := rows.Scan(&st.MediaType, &st.Ext, &st.Count, &st.Bytes); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLiteLedger) Totals() (int, int64, error) {
	var count int
	var bytes int64
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM assets`).
		Scan(&count, &bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("query totals: %w", err)
	}
	return count, bytes, nil
}
