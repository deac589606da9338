package store

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/parquet-go/parquet-go"

	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// SeriesRow is the Parquet schema of a saved series.
type SeriesRow struct {
	Body      string  `parquet:"body"`
	Kind      string  `parquet:"kind"`
	Reference int64   `parquet:"reference"` // Unix seconds
	Time      int64   `parquet:"time"`      // Unix milliseconds
	Value     float64 `parquet:"value"`
}

// Rows flattens a record into SeriesRows.
func Rows(rec nlmetric.SeriesRecord) []SeriesRow {
	rows := make([]SeriesRow, rec.Series.Len())
	for i, t := range rec.Series.Times {
		rows[i] = SeriesRow{
			Body:      string(rec.Body),
			Kind:      string(rec.Kind),
			Reference: rec.Reference.Unix(),
			Time:      t.UnixMilli(),
			Value:     rec.Series.Values[i],
		}
	}
	return rows
}

// ParquetSink writes one zstd-compressed Parquet file per record.
type ParquetSink struct {
	Dir string
}

// Path returns where rec is written.
func (s *ParquetSink) Path(rec nlmetric.SeriesRecord) string {
	return filepath.Join(s.Dir, FileName(rec, ".parquet"))
}

// Save implements nlmetric.Sink.
func (s *ParquetSink) Save(_ context.Context, rec nlmetric.SeriesRecord) error {
	rows := Rows(rec)
	return writeAtomic(s.Path(rec), func(f *os.File) error {
		w := parquet.NewGenericWriter[SeriesRow](f, parquet.Compression(&parquet.Zstd))
		if _, err := w.Write(rows); err != nil {
			return err
		}
		return w.Close()
	})
}

// CSVSink writes one gzipped "time,value" CSV per record, in the layout
// telemetry.FileSource reads back.
type CSVSink struct {
	Dir string
}

// Path returns where rec is written.
func (s *CSVSink) Path(rec nlmetric.SeriesRecord) string {
	return filepath.Join(s.Dir, FileName(rec, ".csv.gz"))
}

// Save implements nlmetric.Sink.
func (s *CSVSink) Save(_ context.Context, rec nlmetric.SeriesRecord) error {
	return writeAtomic(s.Path(rec), func(f *os.File) error {
		gz := gzip.NewWriter(f)
		w := bufio.NewWriter(gz)

		w.WriteString("time,value\n")
		buf := make([]byte, 0, 64)
		for i, t := range rec.Series.Times {
			buf = t.UTC().AppendFormat(buf[:0], time.RFC3339)
			buf = append(buf, ',')
			buf = strconv.AppendFloat(buf, rec.Series.Values[i], 'g', -1, 64)
			buf = append(buf, '\n')
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return gz.Close()
	})
}
