// nl-score - Neutral line metric: modelled vs in-situ field polarity
//
// For each reference date, resolves the Carrington rotation seen by the
// observer, builds the observed hourly polarity series and the polarity
// predicted by ballistically projecting the observer onto a neutral line
// map, and scores their agreement.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/nl-score ./cmd/nl-score

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/KI7MT/ki7mt-nlmetric/internal/common"
	"github.com/KI7MT/ki7mt-nlmetric/internal/ephemeris"
	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmap"
	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
	"github.com/KI7MT/ki7mt-nlmetric/internal/store"
	"github.com/KI7MT/ki7mt-nlmetric/internal/telemetry"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const appName = "nl-score"

type outcome struct {
	ref    time.Time
	result nlmetric.Result
	err    error
}

func main() {
	cfg := common.DefaultConfig()

	dates := flag.String("date", "", "Reference date(s), YYYY-MM-DD or RFC3339, comma-separated")
	body := flag.String("body", string(nlmetric.BodyEarth), "Observer: earth, L1, stereo-a, stereo-b or a table body")
	mapPath := flag.String("map", "", "Neutral line map CSV (.csv or .csv.gz)")
	telemetryDir := flag.String("telemetry-dir", cfg.TelemetryDir(), "Directory of <body>_<field> telemetry files")
	telemetryCH := flag.Bool("telemetry-ch", false, "Read telemetry from ClickHouse instead of -telemetry-dir")
	ephemerisPath := flag.String("ephemeris", "", "Parquet ephemeris table (default: analytic circular orbits)")
	constantVr := flag.Bool("constant-vr", false, "Project with the nominal speed instead of measured radial velocity")
	altitude := flag.Float64("altitude", cfg.InnerAltitude, "Inner boundary of the ballistic projection (solar radii)")
	saveDir := flag.String("save-dir", cfg.SaveDir, "Directory for built series (empty disables)")
	saveFormat := flag.String("save-format", "parquet", "Series file format: parquet or csv")
	chHost := flag.String("ch-host", "", "ClickHouse host:port for series and score inserts (empty disables)")
	workers := flag.Int("workers", runtime.NumCPU(), "Concurrent reference dates")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nl-score v%s - Neutral Line Metric\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] -map FILE -date DATE[,DATE...] [DATE...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Scores the polarity agreement between a neutral line map and in-situ\n")
		fmt.Fprintf(os.Stderr, "radial field over the Carrington rotation containing each date.\n\n")
		fmt.Fprintf(os.Stderr, "Environment:\n")
		fmt.Fprintf(os.Stderr, "  NLMETRIC_DATA_DIR, NLMETRIC_SAVE_DIR, CLICKHOUSE_HOST, CLICKHOUSE_DATABASE,\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL, APP_ENV, NLMETRIC_NOMINAL_VR, NLMETRIC_FALLBACK_VR\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	logger := common.NewLogger(cfg, Version, appName)
	slog.SetDefault(logger)

	refs, err := parseDates(*dates, flag.Args())
	if err != nil {
		logger.Error("invalid date", "error", err)
		os.Exit(2)
	}
	if len(refs) == 0 || *mapPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *saveFormat != "parquet" && *saveFormat != "csv" {
		logger.Error("invalid -save-format", "format", *saveFormat)
		os.Exit(2)
	}
	if *workers < 1 {
		*workers = 1
	}

	cfg.InnerAltitude = *altitude
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	logger.Info("=========================================================")
	logger.Info(fmt.Sprintf("NL Score v%s", Version))
	logger.Info("=========================================================")
	logger.Info("run", "body", *body, "dates", len(refs), "workers", *workers, "constant_vr", *constantVr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("shutdown requested")
		cancel()
	}()

	nlMap, err := loadMap(*mapPath, cfg.MapDir())
	if err != nil {
		logger.Error("cannot load map", "path", *mapPath, "error", err)
		os.Exit(1)
	}
	lats, lons := nlMap.Dims()
	logger.Info("map loaded", "path", *mapPath, "lats", lats, "lons", lons)

	var eph nlmetric.Ephemeris = ephemeris.NewCircular()
	if *ephemerisPath != "" {
		tab, err := ephemeris.LoadTable(*ephemerisPath)
		if err != nil {
			logger.Error("cannot load ephemeris", "path", *ephemerisPath, "error", err)
			os.Exit(1)
		}
		logger.Info("ephemeris table loaded", "path", *ephemerisPath, "bodies", tab.Bodies())
		eph = tab
	}

	var src nlmetric.Telemetry = &telemetry.FileSource{Dir: *telemetryDir}
	if *telemetryCH {
		logger.Info("connecting to ClickHouse", "addr", cfg.ClickHouseAddr())
		conn, err := telemetry.OpenClickHouse(ctx, cfg)
		if err != nil {
			logger.Error("ClickHouse connection failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		src = telemetry.NewClickHouseSource(conn, cfg.ClickHouseDatabase)
	} else {
		logger.Info("telemetry", "dir", *telemetryDir)
	}

	var sinks store.Multi
	if *saveDir != "" {
		if *saveFormat == "csv" {
			sinks = append(sinks, &store.CSVSink{Dir: *saveDir})
		} else {
			sinks = append(sinks, &store.ParquetSink{Dir: *saveDir})
		}
		logger.Info("saving series", "dir", *saveDir, "format", *saveFormat)
	}

	var chSink *store.ClickHouseSink
	if *chHost != "" {
		conn, err := store.DialClickHouse(ctx, *chHost, cfg.ClickHouseDatabase, cfg.ClickHouseUser, cfg.ClickHousePassword)
		if err != nil {
			logger.Error("ClickHouse connection failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		chSink = store.NewClickHouseSink(conn, cfg.ClickHouseDatabase)
		if err := chSink.EnsureTables(ctx); err != nil {
			logger.Error("cannot create tables", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, chSink)
		logger.Info("inserting into ClickHouse", "addr", *chHost, "database", cfg.ClickHouseDatabase, "run_id", chSink.RunID)
	}

	pipeline := &nlmetric.Pipeline{
		Ephemeris: eph,
		Telemetry: src,
		Logger:    logger,
	}
	if len(sinks) > 0 {
		pipeline.Sink = sinks
	}
	opts := cfg.PredictOptions(*constantVr)

	stats := common.NewStats(logger)
	stats.StartReporter(len(refs))

	outcomes := make([]outcome, len(refs))
	sem := make(chan struct{}, *workers)
	var wg sync.WaitGroup

	for i, ref := range refs {
		if ctx.Err() != nil {
			outcomes[i] = outcome{ref: ref, err: ctx.Err()}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := pipeline.Run(ctx, ref, nlmetric.Body(*body), nlMap, opts)
			outcomes[i] = outcome{ref: ref, result: res, err: err}
			if err != nil {
				stats.AddFailed()
				logger.Error("run failed", "reference", ref.Format(time.DateOnly), "error", err)
				return
			}
			stats.AddScored(res.Compared)

			if chSink != nil {
				if err := chSink.InsertScore(ctx, res); err != nil {
					logger.Warn("score insert failed", "reference", ref.Format(time.DateOnly), "error", err)
				}
			}
		}()
	}

	wg.Wait()
	stats.StopReporter()

	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Printf("%s\t%s\terror: %v\n", o.ref.Format(time.DateOnly), *body, o.err)
			continue
		}
		r := o.result
		fmt.Printf("%s\t%s\tscore=%.4f\tcompared=%d\tagreed=%d\trotation=%s\n",
			r.Reference.Format(time.DateOnly), r.Body, r.Score, r.Compared, r.Agreed, r.Interval)
	}

	logger.Info("=========================================================")
	logger.Info("Final Statistics")
	logger.Info("=========================================================")
	stats.Log("done", len(refs))
	logger.Info("=========================================================")

	if failed > 0 {
		os.Exit(1)
	}
}

// parseDates collects reference times from a comma-separated flag value
// and positional arguments, sorted and de-duplicated.
func parseDates(list string, args []string) ([]time.Time, error) {
	var raw []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			raw = append(raw, s)
		}
	}
	raw = append(raw, args...)

	seen := make(map[int64]bool)
	var out []time.Time
	for _, s := range raw {
		t, err := parseDate(s)
		if err != nil {
			return nil, err
		}
		if !seen[t.UnixNano()] {
			seen[t.UnixNano()] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as YYYY-MM-DD or RFC3339", s)
}

// loadMap reads path, falling back to mapDir for bare relative names.
func loadMap(path, mapDir string) (*nlmap.Grid, error) {
	if _, err := os.Stat(path); err != nil && !filepath.IsAbs(path) {
		alt := filepath.Join(mapDir, path)
		if _, err := os.Stat(alt); err == nil {
			path = alt
		}
	}
	return nlmap.LoadCSV(path)
}
