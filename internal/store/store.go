// Package store persists built series and scores: Parquet or gzipped CSV
// files on disk, and native ClickHouse inserts.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// FileName is the on-disk name of a record: <body>_<kind>_<YYYYMMDD><ext>.
func FileName(rec nlmetric.SeriesRecord, ext string) string {
	body := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(rec.Body))), " ", "-")
	return fmt.Sprintf("%s_%s_%s%s", body, rec.Kind, rec.Reference.UTC().Format("20060102"), ext)
}

// Multi fans a record out to every sink. All sinks are tried; their
// errors are joined.
type Multi []nlmetric.Sink

// Save implements nlmetric.Sink.
func (m Multi) Save(ctx context.Context, rec nlmetric.SeriesRecord) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeAtomic writes to a temp file in the target directory and renames
// it over path.
func writeAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
