package common

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds atomic counters for a batch of scoring runs.
type Stats struct {
	RunsScored     atomic.Uint64
	RunsFailed     atomic.Uint64
	PointsCompared atomic.Uint64

	// Internal state for reporter
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
	interval time.Duration
	start    time.Time
}

// NewStats creates a new Stats instance reporting through logger.
func NewStats(logger *slog.Logger) *Stats {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stats{
		stopCh:   make(chan struct{}),
		logger:   logger,
		interval: 5 * time.Second,
		start:    time.Now(),
	}
}

// AddScored records a successful run and its compared point count.
func (s *Stats) AddScored(compared int) {
	s.RunsScored.Add(1)
	s.PointsCompared.Add(uint64(compared))
}

// AddFailed records a failed run.
func (s *Stats) AddFailed() {
	s.RunsFailed.Add(1)
}

// Total returns scored plus failed runs.
func (s *Stats) Total() uint64 {
	return s.RunsScored.Load() + s.RunsFailed.Load()
}

// Elapsed returns time since the stats were created.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

// StartReporter logs progress periodically until StopReporter.
func (s *Stats) StartReporter(total int) {
	if !s.running.CompareAndSwap(false, true) {
		return // Already running
	}
	go s.reporterLoop(total)
}

// StopReporter stops the background reporter goroutine.
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Stats) reporterLoop(total int) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Log("progress", total)
		}
	}
}

// Log writes the current counters as one record.
func (s *Stats) Log(msg string, total int) {
	s.logger.Info(msg,
		"done", s.Total(),
		"total", total,
		"scored", s.RunsScored.Load(),
		"failed", s.RunsFailed.Load(),
		"points", s.PointsCompared.Load(),
		"elapsed", s.Elapsed().Round(time.Millisecond),
	)
}
