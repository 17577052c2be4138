// Package snapshot persists collected option-chain snapshots and reads them
// back for historical comparison.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoHistory      = errors.New("no history recorded for this underlying")
	ErrHeaderMismatch = errors.New("existing history file has a different header")
)

// Store appends snapshots and loads an underlying's full history.
type Store interface {
	Append(ctx context.Context, symbol string, rows []Row) error
	Load(ctx context.Context, symbol string) ([]Row, error)
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendCSV    Backend = "csv"
	BackendSQLite Backend = "sqlite"
)

type Config struct {
	Backend    Backend
	Directory  string
	SQLitePath string
}

// Open builds the configured store.
func Open(cfg Config) (Store, error) {
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case BackendCSV, "":
		return NewCSVStore(cfg.Directory)
	case BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
