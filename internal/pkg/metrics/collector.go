package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheSnapshot is the point-in-time cache state read on each scrape.
type CacheSnapshot struct {
	Entries      int64
	SizeBytes    int64
	Evictions    int64
	RemoteErrors int64
	Degraded     bool
}

// PoolSnapshot is the point-in-time worker pool state read on each scrape.
type PoolSnapshot struct {
	Running int64
	Queued  int64
	Workers int64
}

var (
	cacheEntriesDesc = prometheus.NewDesc(
		namespace+"_cache_fast_entries",
		"Entries held in the in-process cache layer",
		nil, nil,
	)
	cacheSizeDesc = prometheus.NewDesc(
		namespace+"_cache_fast_size_bytes",
		"Encoded bytes held in the in-process cache layer",
		nil, nil,
	)
	cacheEvictionsDesc = prometheus.NewDesc(
		namespace+"_cache_evictions_total",
		"Entries evicted from the in-process cache layer",
		nil, nil,
	)
	cacheRemoteErrorsDesc = prometheus.NewDesc(
		namespace+"_cache_remote_errors_total",
		"Failed round trips to the distributed cache layer",
		nil, nil,
	)
	cacheDegradedDesc = prometheus.NewDesc(
		namespace+"_cache_degraded",
		"1 while the cache runs without its distributed layer",
		nil, nil,
	)
	poolDesc = prometheus.NewDesc(
		namespace+"_workerpool_tasks",
		"Worker pool occupancy",
		[]string{"state"}, nil,
	)
)

// CacheCollector reads cache statistics on each scrape.
type CacheCollector struct {
	snapshot func() CacheSnapshot
}

// NewCacheCollector creates a collector backed by the given snapshot func.
func NewCacheCollector(snapshot func() CacheSnapshot) *CacheCollector {
	return &CacheCollector{snapshot: snapshot}
}

// Describe sends the metric descriptors to the channel.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cacheEntriesDesc
	ch <- cacheSizeDesc
	ch <- cacheEvictionsDesc
	ch <- cacheRemoteErrorsDesc
	ch <- cacheDegradedDesc
}

// Collect emits the current cache state.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	degraded := 0.0
	if s.Degraded {
		degraded = 1
	}
	ch <- prometheus.MustNewConstMetric(cacheEntriesDesc, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(cacheSizeDesc, prometheus.GaugeValue, float64(s.SizeBytes))
	ch <- prometheus.MustNewConstMetric(cacheEvictionsDesc, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(cacheRemoteErrorsDesc, prometheus.CounterValue, float64(s.RemoteErrors))
	ch <- prometheus.MustNewConstMetric(cacheDegradedDesc, prometheus.GaugeValue, degraded)
}

// PoolCollector reads worker pool occupancy on each scrape.
type PoolCollector struct {
	snapshot func() PoolSnapshot
}

// NewPoolCollector creates a collector backed by the given snapshot func.
func NewPoolCollector(snapshot func() PoolSnapshot) *PoolCollector {
	return &PoolCollector{snapshot: snapshot}
}

// Describe sends the metric descriptor to the channel.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolDesc
}

// Collect emits the current pool state.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	ch <- prometheus.MustNewConstMetric(poolDesc, prometheus.GaugeValue, float64(s.Running), "running")
	ch <- prometheus.MustNewConstMetric(poolDesc, prometheus.GaugeValue, float64(s.Queued), "queued")
	ch <- prometheus.MustNewConstMetric(poolDesc, prometheus.GaugeValue, float64(s.Workers), "capacity")
}
