package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
)

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	MissRate         float64 `json:"miss_rate"`
	FastHits         int64   `json:"fast_hits"`
	RemoteHits       int64   `json:"remote_hits"`
	Expired          int64   `json:"expired"`
	Evictions        int64   `json:"evictions"`
	EntryCount       int     `json:"entry_count"`
	SizeBytes        int64   `json:"size_bytes"`
	MaxBytes         int64   `json:"max_bytes"`
	Writes           int64   `json:"writes"`
	CompressedWrites int64   `json:"compressed_writes"`
	RemoteEnabled    bool    `json:"remote_enabled"`
	RemoteErrors     int64   `json:"remote_errors"`
	Degraded         bool    `json:"degraded"`
	// StaleKeys are waiting to be rewritten or deleted in the distributed
	// layer after an outage.
	StaleKeys int64 `json:"stale_keys"`
}

// Stats returns current counters. Rates are zero before the first lookup.
func (m *Manager) Stats() Stats {
	entries, size, evictions := m.fast.stats()
	hits, misses := m.hits.Load(), m.misses.Load()

	s := Stats{
		Hits:             hits,
		Misses:           misses,
		FastHits:         m.fastHits.Load(),
		RemoteHits:       m.remoteHits.Load(),
		Expired:          m.expired.Load(),
		Evictions:        evictions,
		EntryCount:       entries,
		SizeBytes:        size,
		MaxBytes:         m.cfg.FastMaxBytes,
		Writes:           m.writes.Load(),
		CompressedWrites: m.compressedWrites.Load(),
		RemoteEnabled:    m.remote != nil,
		RemoteErrors:     m.remoteErrors.Load(),
		Degraded:         m.remote != nil && m.degraded(m.now()),
		StaleKeys:        m.stale.n.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
		s.MissRate = float64(misses) / float64(total)
	}
	return s
}

func (m *Manager) snapshot() metrics.CacheSnapshot {
	s := m.Stats()
	return metrics.CacheSnapshot{
		Entries:      int64(s.EntryCount),
		SizeBytes:    s.SizeBytes,
		Evictions:    s.Evictions,
		RemoteErrors: s.RemoteErrors,
		Degraded:     s.Degraded,
	}
}

// OptimizeReport describes what an Optimize pass did.
type OptimizeReport struct {
	ExpiredRemoved  int           `json:"expired_removed"`
	Evicted         int           `json:"evicted"`
	EntriesBefore   int           `json:"entries_before"`
	EntriesAfter    int           `json:"entries_after"`
	BytesBefore     int64         `json:"bytes_before"`
	BytesAfter      int64         `json:"bytes_after"`
	RemoteKeys      int64         `json:"remote_keys"`
	RemoteRecovered bool          `json:"remote_recovered"`
	// RemoteReconciled counts stale keys synced after recovery.
	RemoteReconciled int           `json:"remote_reconciled"`
	Duration         time.Duration `json:"duration"`
}

// Optimize drops expired fast entries, trims the fast layer to
// OptimizeTargetRatio of its byte budget, and probes a degraded distributed
// layer so it can be re-enabled before the cooldown ends. Keys written while
// the layer was down are then reconciled. RemoteKeys is -1
// when the distributed layer cannot report its size.
func (m *Manager) Optimize(ctx context.Context) OptimizeReport {
	start := m.now()
	var r OptimizeReport
	r.EntriesBefore, r.BytesBefore, _ = m.fast.stats()

	for _, key := range m.fast.keys() {
		if ctx.Err() != nil {
			break
		}
		mu := m.lock(key)
		mu.Lock()
		if s, ok := m.fast.peek(key); ok && s.expired(m.now()) && m.fast.removeIf(key, s) {
			r.ExpiredRemoved++
		}
		mu.Unlock()
	}
	m.expired.Add(int64(r.ExpiredRemoved))

	target := int64(float64(m.cfg.FastMaxBytes) * m.cfg.OptimizeTargetRatio)
	r.Evicted = m.fast.trim(target)

	r.RemoteKeys = -1
	if m.remote != nil {
		rctx, cancel := m.remoteCtx(ctx)
		if m.degraded(m.now()) {
			if err := m.remote.Ping(rctx); err == nil {
				m.degradedUntil.Store(0)
				r.RemoteRecovered = true
				m.logger.Info("distributed cache recovered")
			}
		}
		cancel()
		r.RemoteReconciled = m.reconcile(ctx)

		if counter, ok := m.remote.(KeyCounter); ok && !m.degraded(m.now()) {
			if n, err := counter.CountKeys(ctx, keyPattern); err == nil {
				r.RemoteKeys = n
			} else {
				m.logger.Warn("count remote keys failed", zap.Error(err))
			}
		}
	}

	r.EntriesAfter, r.BytesAfter, _ = m.fast.stats()
	r.Duration = m.now().Sub(start)
	m.logger.Info("cache optimized",
		zap.Int("expired_removed", r.ExpiredRemoved),
		zap.Int("evicted", r.Evicted),
		zap.Int64("bytes_after", r.BytesAfter),
	)
	return r
}
