// Package telemetry provides raw in-situ samples to the NL metric
// pipeline from local files or ClickHouse.
package telemetry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ki7mt-nlmetric/internal/common"
	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// ErrNoData is returned when no file exists for a body and field.
var ErrNoData = errors.New("no telemetry file")

// SampleRow matches the Parquet schema of a telemetry file.
type SampleRow struct {
	Time  int64   `parquet:"time"` // Unix milliseconds
	Value float64 `parquet:"value"`
}

// FileSource reads <body>_<field>.parquet, .csv.gz or .csv from Dir.
//
// CSV rows are "time,value" with RFC3339 times; an empty, "nan" or
// unparseable value is kept as a missing sample. Lines whose time does
// not parse (headers, comments) are skipped.
type FileSource struct {
	Dir string
}

// FileBase returns the file name stem used for body and field.
func FileBase(body nlmetric.Body, field nlmetric.Field) string {
	b := strings.ToLower(strings.TrimSpace(string(body)))
	b = strings.ReplaceAll(b, " ", "-")
	return fmt.Sprintf("%s_%s", b, field)
}

// Fetch implements nlmetric.Telemetry.
func (s *FileSource) Fetch(ctx context.Context, iv nlmetric.Interval, body nlmetric.Body, field nlmetric.Field) ([]nlmetric.Sample, error) {
	base := filepath.Join(s.Dir, FileBase(body, field))

	var samples []nlmetric.Sample
	var err error
	switch {
	case exists(base + ".parquet"):
		samples, err = readParquet(base + ".parquet")
	case exists(base + ".csv.gz"):
		samples, err = readCSV(ctx, base+".csv.gz")
	case exists(base + ".csv"):
		samples, err = readCSV(ctx, base+".csv")
	default:
		return nil, fmt.Errorf("%w: %s.{parquet,csv.gz,csv}", ErrNoData, base)
	}
	if err != nil {
		return nil, err
	}
	return window(samples, iv), nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// window keeps the samples inside iv, sorted by time.
func window(samples []nlmetric.Sample, iv nlmetric.Interval) []nlmetric.Sample {
	out := make([]nlmetric.Sample, 0, len(samples))
	for _, s := range samples {
		if iv.Contains(s.Time) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func readParquet(path string) ([]nlmetric.Sample, error) {
	rows, err := common.ReadParquet[SampleRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]nlmetric.Sample, len(rows))
	for i, r := range rows {
		out[i] = nlmetric.Sample{Time: time.UnixMilli(r.Time).UTC(), Value: r.Value}
	}
	return out, nil
}

func readCSV(ctx context.Context, path string) ([]nlmetric.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		// Use parallel gzip decompression
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}
	return parseCSV(ctx, reader)
}

func parseCSV(ctx context.Context, r io.Reader) ([]nlmetric.Sample, error) {
	var out []nlmetric.Sample
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		if line%100_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.SplitN(text, ",", 2)
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}

		value := math.NaN()
		if len(fields) == 2 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err == nil {
				value = v
			}
		}
		out = append(out, nlmetric.Sample{Time: ts.UTC(), Value: value})
	}
	return out, scanner.Err()
}
