package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
)

// CSVStore keeps one append-only file per underlying, named after the
// lower-cased symbol. Appends are serialised per store.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

// Path returns the history file for symbol.
func (s *CSVStore) Path(symbol string) string {
	return filepath.Join(s.dir, strings.ToLower(symbol)+".csv")
}

// Append writes rows to the end of the symbol's file. The header is written
// only when the file is new or empty.
func (s *CSVStore) Append(ctx context.Context, symbol string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(symbol)
	fresh, err := s.checkHeader(path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	if fresh {
		err = gocsv.Marshal(&rows, f)
	} else {
		err = gocsv.MarshalWithoutHeaders(&rows, f)
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// checkHeader reports whether path is new or empty, and rejects files whose
// header does not match Header.
func (s *CSVStore) checkHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	line, err := bufio.NewReader(f).ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		return true, nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading header of %s: %w", path, err)
	}

	got := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(got) != len(Header) {
		return false, fmt.Errorf("%s: %w", path, ErrHeaderMismatch)
	}
	for i := range Header {
		if strings.Trim(got[i], `" `) != Header[i] {
			return false, fmt.Errorf("%s column %d is %q: %w", path, i, got[i], ErrHeaderMismatch)
		}
	}
	return false, nil
}

func (s *CSVStore) Load(ctx context.Context, symbol string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(symbol)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoHistory)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return decodeCSV(f, path)
}

func decodeCSV(r io.Reader, name string) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, fmt.Errorf("%s: %w", name, ErrNoHistory)
		}
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return rows, nil
}

func (s *CSVStore) Close() error { return nil }
