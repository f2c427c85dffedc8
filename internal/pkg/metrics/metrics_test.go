package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSource("serp", "ok", time.Second)
	m.IncRetry("serp")
	m.CacheLookup("fast", "hit")
	m.RecordRun(map[string]int{"ok": 1}, time.Second, false)
	m.RecordClustering("centroid", 3, false)
	assert.NoError(t, m.Register(nil))
	assert.Nil(t, m.Registry())
}

func TestRecordRun(t *testing.T) {
	m := New()
	m.RecordRun(map[string]int{"ok": 2, "partial": 3}, 2*time.Second, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("true")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.KeywordStatusTotal.WithLabelValues("partial")))
}

func TestCollectorsAreScraped(t *testing.T) {
	m := New()
	require.NoError(t, m.Register(NewCacheCollector(func() CacheSnapshot {
		return CacheSnapshot{Entries: 7, SizeBytes: 1024, Degraded: true}
	})))
	require.NoError(t, m.Register(NewPoolCollector(func() PoolSnapshot {
		return PoolSnapshot{Running: 2, Queued: 5, Workers: 8}
	})))
	m.ObserveSource("keyword_metrics", "ok", 10*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, want := range []string{
		"seo_research_cache_fast_entries 7",
		"seo_research_cache_degraded 1",
		`seo_research_workerpool_tasks{state="queued"} 5`,
		`seo_research_source_requests_total{outcome="ok",source="keyword_metrics"} 1`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %q", want)
	}
}
