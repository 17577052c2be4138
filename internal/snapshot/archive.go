package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ArchiveExt is appended to archived history files.
const ArchiveExt = ".csv.zst"

// Archive compresses the history file at src into destDir as
// <name>-<label>.csv.zst. The archive is written to a temp file and renamed
// into place. When truncate is set the source is emptied afterwards so the
// next append starts a new file with a fresh header.
func Archive(src, destDir, label string, truncate bool) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	destPath := filepath.Join(destDir, base+"-"+label+ArchiveExt)
	if _, err := os.Stat(destPath); err == nil {
		return "", fmt.Errorf("archive %s already exists", destPath)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("creating encoder: %w", err)
	}

	_, err = io.Copy(enc, in)
	if closeErr := enc.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("compressing %s: %w", src, err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}

	if truncate {
		if err := os.Truncate(src, 0); err != nil {
			return destPath, fmt.Errorf("truncating %s: %w", src, err)
		}
	}

	return destPath, nil
}

// ReadArchive decodes the rows of a compressed history file.
func ReadArchive(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	return decodeCSV(dec, path)
}
