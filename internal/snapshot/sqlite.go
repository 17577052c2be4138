package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol    TEXT NOT NULL,
	strike    REAL NOT NULL,
	ce_ltp    REAL,
	ce_oi     REAL,
	ce_volume REAL,
	ce_iv     REAL,
	ce_delta  REAL,
	ce_gamma  REAL,
	ce_vega   REAL,
	pe_ltp    REAL,
	pe_oi     REAL,
	pe_volume REAL,
	pe_iv     REAL,
	pe_delta  REAL,
	pe_gamma  REAL,
	pe_vega   REAL,
	expiry    TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	max_pain  REAL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_ts ON snapshots(symbol, timestamp);
`

const insertRow = `
INSERT INTO snapshots (
	symbol, strike,
	ce_ltp, ce_oi, ce_volume, ce_iv, ce_delta, ce_gamma, ce_vega,
	pe_ltp, pe_oi, pe_volume, pe_iv, pe_delta, pe_gamma, pe_vega,
	expiry, timestamp, max_pain
) VALUES (
	:symbol, :strike,
	:ce_ltp, :ce_oi, :ce_volume, :ce_iv, :ce_delta, :ce_gamma, :ce_vega,
	:pe_ltp, :pe_oi, :pe_volume, :pe_iv, :pe_delta, :pe_gamma, :pe_vega,
	:expiry, :timestamp, :max_pain
)`

const selectRows = `
SELECT strike,
	ce_ltp, ce_oi, ce_volume, ce_iv, ce_delta, ce_gamma, ce_vega,
	pe_ltp, pe_oi, pe_volume, pe_iv, pe_delta, pe_gamma, pe_vega,
	expiry, timestamp, max_pain
FROM snapshots WHERE symbol = ? ORDER BY id`

type symbolRow struct {
	Symbol string `db:"symbol"`
	Row
}

// SQLiteStore keeps every underlying in one table.
type SQLiteStore struct {
	db *sqlx.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, symbol string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, insertRow)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	key := strings.ToUpper(symbol)
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, symbolRow{Symbol: key, Row: r}); err != nil {
			return fmt.Errorf("inserting strike %v: %w", r.Strike, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, symbol string) ([]Row, error) {
	var rows []Row
	if err := s.db.SelectContext(ctx, &rows, selectRows, strings.ToUpper(symbol)); err != nil {
		return nil, fmt.Errorf("loading %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoHistory)
	}
	return rows, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
