package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTabFetch(t *testing.T) {
	before := testutil.ToFloat64(tabFetchTotal.WithLabelValues("pages", "ok"))
	ObserveTabFetch("pages", "ok", 20*time.Millisecond)
	if got := testutil.ToFloat64(tabFetchTotal.WithLabelValues("pages", "ok")) - before; got != 1 {
		t.Errorf("expected tab fetch counter to grow by 1, got %f", got)
	}
	if n := testutil.CollectAndCount(tabFetchDurationSeconds); n == 0 {
		t.Error("expected tab fetch duration to be observed")
	}
}

func TestCacheCounters(t *testing.T) {
	testCases := []struct {
		name    string
		observe func()
		read    func() float64
	}{
		{"lookup hit", func() { ObserveCacheLookup("hit") }, func() float64 {
			return testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("hit"))
		}},
		{"write error", func() { ObserveCacheWrite("error") }, func() float64 {
			return testutil.ToFloat64(cacheWritesTotal.WithLabelValues("error"))
		}},
		{"memo miss", func() { ObserveMemo("miss") }, func() float64 {
			return testutil.ToFloat64(memoRequestsTotal.WithLabelValues("miss"))
		}},
		{"refresh failed", func() { ObserveRefresh("failed") }, func() float64 {
			return testutil.ToFloat64(refreshTotal.WithLabelValues("failed"))
		}},
		{"enqueued", IncRefreshEnqueued, func() float64 {
			return testutil.ToFloat64(refreshEnqueuedTotal)
		}},
		{"dropped", IncRefreshDropped, func() float64 {
			return testutil.ToFloat64(refreshDroppedTotal)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.read()
			tc.observe()
			if got := tc.read() - before; got != 1 {
				t.Errorf("expected counter to grow by 1, got %f", got)
			}
		})
	}
}

func TestObserveRateLimitDelay(t *testing.T) {
	ObserveRateLimitDelay("docs.google.com", time.Second)
	if n := testutil.CollectAndCount(rateLimitDelaySeconds); n == 0 {
		t.Error("expected rate limit delay to be observed")
	}
}
