package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// staleSet remembers keys whose distributed copy may be older than the fast
// layer because a write or delete could not reach the store.
type staleSet struct {
	mu       sync.Mutex
	keys     map[string]struct{}
	max      int
	n        atomic.Int64
	overflow atomic.Int64
}

func newStaleSet(max int) *staleSet {
	return &staleSet{keys: make(map[string]struct{}), max: max}
}

func (s *staleSet) add(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if _, ok := s.keys[k]; ok {
			continue
		}
		if len(s.keys) >= s.max {
			s.overflow.Add(1)
			continue
		}
		s.keys[k] = struct{}{}
	}
	s.n.Store(int64(len(s.keys)))
}

func (s *staleSet) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	clear(s.keys)
	s.n.Store(0)
	return out
}

// reconcile brings the distributed copies of stale keys in line with the fast
// layer once the store is reachable again: live fast entries are rewritten
// with their remaining TTL, everything else is deleted. It returns how many
// keys were handled.
func (m *Manager) reconcile(ctx context.Context) int {
	if m.remote == nil || m.stale.n.Load() == 0 || m.degraded(m.now()) {
		return 0
	}
	if !m.reconciling.CompareAndSwap(false, true) {
		return 0
	}
	defer m.reconciling.Store(false)

	keys := m.stale.drain()
	done := 0
	for i, key := range keys {
		if ctx.Err() != nil || m.degraded(m.now()) {
			m.stale.add(keys[i:]...)
			break
		}
		mu := m.lock(key)
		mu.Lock()
		now := m.now()
		if s, ok := m.fast.peek(key); ok && !s.expired(now) {
			m.remoteSet(ctx, key, s, s.expiresAt.Sub(now))
		} else {
			m.remoteDel(ctx, key)
		}
		mu.Unlock()
		done++
	}

	if lost := m.stale.overflow.Swap(0); lost > 0 {
		m.logger.Warn("some keys written during the outage were not tracked and may be stale until their TTL",
			zap.Int64("untracked", lost))
	}
	m.logger.Info("distributed cache reconciled", zap.Int("keys", done), zap.Int("total", len(keys)))
	return done
}
