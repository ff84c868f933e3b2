// Package sweeper reclaims jobs that never received a first progress update:
// anything still "queued" past the staleness threshold is bulk-failed. This
// is the system's only timeout mechanism.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/autoresttest/console/internal/store"
)

// StaleMessage is written to jobs the sweep fails.
const StaleMessage = "Cleaned up by system: Job was stuck in queued state for over an hour."

// Sweeper periodically fails stale queued jobs.
type Sweeper struct {
	store      store.Store
	staleAfter time.Duration
	cron       *cron.Cron
}

// New creates a Sweeper with the given staleness threshold.
func New(s store.Store, staleAfter time.Duration) *Sweeper {
	return &Sweeper{store: s, staleAfter: staleAfter, cron: cron.New()}
}

// Start registers the sweep on schedule (a cron expression, e.g. "@hourly")
// and starts the scheduler.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			slog.Error("stale job sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass and returns the IDs of the jobs it failed.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	cutoff := time.Now().UTC().Add(-s.staleAfter)
	ids, err := s.store.SweepStaleJobs(ctx, cutoff, StaleMessage)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		slog.Info("no stale jobs found")
		return nil, nil
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	slog.Info("cleaned up stale jobs", "count", len(out), "job_ids", out)
	return out, nil
}
