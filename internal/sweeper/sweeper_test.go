package sweeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoresttest/console/internal/store"
)

type sweepOnlyStore struct {
	store.Store

	sweepFn func(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error)
}

func (s *sweepOnlyStore) SweepStaleJobs(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	return s.sweepFn(ctx, cutoff, message)
}

func TestSweep_FailsStaleJobs(t *testing.T) {
	staleIDs := []uuid.UUID{uuid.New(), uuid.New()}
	var gotCutoff time.Time
	var gotMessage string
	st := &sweepOnlyStore{sweepFn: func(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
		gotCutoff = cutoff
		gotMessage = message
		return staleIDs, nil
	}}

	ids, err := New(st, time.Hour).Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{staleIDs[0].String(), staleIDs[1].String()}, ids)
	assert.Equal(t, StaleMessage, gotMessage)

	// The cutoff is "now minus the threshold", give or take scheduling slop.
	wantCutoff := time.Now().UTC().Add(-time.Hour)
	assert.WithinDuration(t, wantCutoff, gotCutoff, 5*time.Second)
}

func TestSweep_NothingStale(t *testing.T) {
	st := &sweepOnlyStore{sweepFn: func(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
		return nil, nil
	}}

	ids, err := New(st, time.Hour).Sweep(context.Background())

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSweep_StoreError(t *testing.T) {
	st := &sweepOnlyStore{sweepFn: func(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
		return nil, fmt.Errorf("db down")
	}}

	_, err := New(st, time.Hour).Sweep(context.Background())

	assert.Error(t, err)
}

func TestStart_InvalidSchedule(t *testing.T) {
	st := &sweepOnlyStore{sweepFn: func(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
		return nil, nil
	}}

	sw := New(st, time.Hour)
	err := sw.Start("not a cron expression")
	assert.Error(t, err)
}

func TestStart_ValidSchedule(t *testing.T) {
	st := &sweepOnlyStore{sweepFn: func(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
		return nil, nil
	}}

	sw := New(st, time.Hour)
	require.NoError(t, sw.Start("@hourly"))
	sw.Stop()
}
