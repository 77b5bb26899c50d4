package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

type fakeLister struct {
	sites []sitedata.Site
	err   error
}

func (f *fakeLister) List(context.Context) ([]sitedata.Site, error) {
	return f.sites, f.err
}

type recordingEnqueuer struct {
	reqs     []sitedata.RefreshRequest
	err      error
	capacity int
}

func (r *recordingEnqueuer) TryEnqueue(req sitedata.RefreshRequest) error {
	if r.err != nil {
		return r.err
	}
	if r.capacity > 0 && len(r.reqs) >= r.capacity {
		return fmt.Errorf("queue enqueue: %w", sitedata.ErrQueueFull)
	}
	r.reqs = append(r.reqs, req)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestScanEnqueuesStaleAndNeverFetchedSites(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	fresh := now.Add(-time.Minute)
	old := now.Add(-2 * time.Hour)
	lister := &fakeLister{sites: []sitedata.Site{
		{ID: "fresh", SpreadsheetID: "s1", LastFetched: &fresh},
		{ID: "old", SpreadsheetID: "s2", LastFetched: &old},
		{ID: "never", SpreadsheetID: "s3"},
	}}
	enq := &recordingEnqueuer{}
	s := New(lister, enq, fixedClock{now}, Config{StaleAfter: time.Hour}, zap.NewNop())

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, enq.reqs, 2)
	require.Equal(t, "old", enq.reqs[0].SiteID)
	require.Equal(t, "s2", enq.reqs[0].SpreadsheetID)
	require.Equal(t, now, enq.reqs[0].Submitted)
	require.Equal(t, "never", enq.reqs[1].SiteID)
}

func TestScanDisabledWhenStaleAfterZero(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{sites: []sitedata.Site{{ID: "never"}}}
	enq := &recordingEnqueuer{}
	s := New(lister, enq, fixedClock{time.Now()}, Config{}, zap.NewNop())

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, enq.reqs)
}

func TestScanPropagatesErrors(t *testing.T) {
	t.Parallel()

	s := New(&fakeLister{err: errors.New("db down")}, &recordingEnqueuer{}, fixedClock{time.Now()},
		Config{StaleAfter: time.Minute}, zap.NewNop())
	_, err := s.Scan(context.Background())
	require.ErrorContains(t, err, "list sites")

	s = New(&fakeLister{sites: []sitedata.Site{{ID: "a"}}}, &recordingEnqueuer{err: errors.New("full")},
		fixedClock{time.Now()}, Config{StaleAfter: time.Minute}, zap.NewNop())
	_, err = s.Scan(context.Background())
	require.ErrorContains(t, err, "enqueue site a")
}

func TestScanDefersSitesWhenQueueFull(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{sites: []sitedata.Site{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	enq := &recordingEnqueuer{capacity: 1}
	s := New(lister, enq, fixedClock{time.Now()}, Config{StaleAfter: time.Minute}, zap.NewNop())

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, enq.reqs, 1)
	require.Equal(t, "a", enq.reqs[0].SiteID)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	s := New(&fakeLister{}, &recordingEnqueuer{}, fixedClock{time.Now()}, Config{Schedule: "not cron"}, zap.NewNop())
	require.Error(t, s.Start())

	s = New(&fakeLister{}, &recordingEnqueuer{}, fixedClock{time.Now()}, Config{}, zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop()
}
