package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Addr returns the dashboard listen address.
func (d DashboardConfig) Addr() string {
	if strings.Contains(d.Port, ":") {
		return d.Port
	}
	return ":" + d.Port
}

var archivePattern = regexp.MustCompile(`^([a-z0-9]+)-(\d{4}-\d{2}-\d{2})\.csv\.zst$`)

// LatestArchiveDate scans the archive directory for symbol-YYYY-MM-DD.csv.zst
// files and returns the most recent date for symbol.
func LatestArchiveDate(dir, symbol string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading archive directory: %w", err)
	}

	want := strings.ToLower(symbol)
	var dates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := archivePattern.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != want {
			continue
		}
		// Skip empty archives left behind by an interrupted run
		if info, err := entry.Info(); err == nil && info.Size() > 0 {
			dates = append(dates, m[2])
		}
	}

	if len(dates) == 0 {
		return "", fmt.Errorf("no archives for %s in %s", symbol, dir)
	}

	// YYYY-MM-DD sorts lexicographically
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	return dates[0], nil
}

// ArchivePath is the file an archive for symbol and date is written to.
func ArchivePath(dir, symbol, date string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.csv.zst", strings.ToLower(symbol), date))
}
