// SPDX-License-Identifier: MIT

// Package scheduler runs the generation pipeline once at startup and then
// periodically. Runs are strictly serialized: the loop is a single
// goroutine, so a tick that fires while a run is in flight waits for it
// instead of interleaving.
package scheduler

import (
	"context"
	"sync"
	"time"

	xglog "github.com/4n4n4s/enigma2jellyfin/internal/log"
	"github.com/4n4n4s/enigma2jellyfin/internal/metrics"
	"github.com/google/uuid"
)

// RunFunc executes one generation run.
type RunFunc func(ctx context.Context) error

// Run describes one completed run for observability.
type Run struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Scheduler triggers a RunFunc on an initial run and then every interval.
type Scheduler struct {
	interval time.Duration
	run      RunFunc

	mu   sync.RWMutex
	last Run
}

// New creates a scheduler; it does nothing until Run is called.
func New(interval time.Duration, run RunFunc) *Scheduler {
	return &Scheduler{interval: interval, run: run}
}

// Run blocks until ctx is cancelled, executing the initial run immediately
// and one run per interval tick afterwards. Run errors are logged and
// recorded but never terminate the loop; the next tick retries.
func (s *Scheduler) Run(ctx context.Context) {
	s.execute(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

// Last returns a snapshot of the most recently completed run. The zero Run
// means no run has completed yet.
func (s *Scheduler) Last() Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Scheduler) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runID := uuid.NewString()
	rctx := xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithComponentFromContext(rctx, "scheduler")

	started := time.Now()
	logger.Info().Str("event", "run.start").Msg("generation run started")

	err := s.run(rctx)
	elapsed := time.Since(started)

	run := Run{ID: runID, Started: started, Duration: elapsed}
	if err != nil {
		run.Error = err.Error()
		metrics.RecordRefreshOutcome("failure", elapsed)
		logger.Error().
			Err(err).
			Str("event", "run.failed").
			Dur("duration", elapsed).
			Msg("generation run aborted, retrying on next tick")
	} else {
		metrics.RecordRefreshOutcome("success", elapsed)
		logger.Info().
			Str("event", "run.success").
			Dur("duration", elapsed).
			Msg("generation run completed")
	}

	s.mu.Lock()
	s.last = run
	s.mu.Unlock()
}
