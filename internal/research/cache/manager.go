// Package cache implements the two-tier research cache: an in-process LRU in
// front of a distributed store, with per-category TTLs and transparent
// compression of large payloads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

const keyPattern = "seo:*"

var (
	ErrEmptyKey   = errors.New("cache: empty fingerprint")
	ErrInvalidTTL = errors.New("cache: ttl must be positive")
)

// Entry is a decoded copy of a cached value. Callers own it.
type Entry struct {
	Key        string         `json:"key"`
	Category   types.Category `json:"category"`
	Payload    []byte         `json:"-"`
	SizeBytes  int64          `json:"size_bytes"`
	Compressed bool           `json:"compressed"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// Decode unmarshals the JSON payload into dst.
func (e *Entry) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRemote sets the distributed layer. Without it the manager runs on the
// fast layer only.
func WithRemote(r Remote) Option {
	return func(m *Manager) { m.remote = r }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is safe for concurrent use.
type Manager struct {
	cfg     Config
	fast    *fastLayer
	remote  Remote
	codec   *codec
	locks   []sync.RWMutex
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics

	stale       *staleSet
	reconciling atomic.Bool

	hits, misses, fastHits, remoteHits atomic.Int64
	expired, writes, compressedWrites  atomic.Int64
	remoteErrors                       atomic.Int64
	degradedUntil                      atomic.Int64
}

// New creates a cache manager.
func New(cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fast, err := newFastLayer(cfg.FastMaxEntries, cfg.FastMaxBytes)
	if err != nil {
		return nil, err
	}
	cd, err := newCodec(cfg.CompressionThreshold)
	if err != nil {
		return nil, err
	}

	stripes := cfg.LockStripes
	if stripes <= 0 {
		stripes = 64
	}
	m := &Manager{
		cfg:   *cfg,
		fast:  fast,
		codec: cd,
		locks: make([]sync.RWMutex, stripes),
		stale: newStaleSet(cfg.FastMaxEntries),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.OrGlobal(m.logger).Named("cache")

	if err := m.metrics.Register(metrics.NewCacheCollector(m.snapshot)); err != nil {
		m.logger.Warn("cache collector not registered", zap.Error(err))
	}
	return m, nil
}

// Close releases compression resources.
func (m *Manager) Close() {
	m.codec.close()
}

// TTLFor returns the configured TTL of a category.
func (m *Manager) TTLFor(c types.Category) time.Duration {
	return m.cfg.TTL.For(c)
}

func (m *Manager) lock(key string) *sync.RWMutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.locks[h.Sum32()%uint32(len(m.locks))]
}

// Get looks the fingerprint up in the fast layer, then the distributed layer.
// Distributed hits are promoted. Transport failures are reported as misses.
func (m *Manager) Get(ctx context.Context, key string) (*Entry, bool) {
	if key == "" {
		return nil, false
	}
	m.reconcile(ctx)

	mu := m.lock(key)
	mu.RLock()
	defer mu.RUnlock()

	now := m.now()
	if s, ok := m.fast.get(key); ok {
		if !s.expired(now) {
			if e, err := m.entry(key, s); err == nil {
				m.fastHits.Add(1)
				m.hits.Add(1)
				m.metrics.CacheLookup("fast", "hit")
				return e, true
			}
			m.logger.Warn("dropping undecodable fast entry", zap.String("key", key))
		} else {
			m.expired.Add(1)
			m.metrics.CacheLookup("fast", "expired")
		}
		m.fast.removeIf(key, s)
	} else {
		m.metrics.CacheLookup("fast", "miss")
	}

	s, ok := m.remoteGet(ctx, key, now)
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	e, err := m.entry(key, s)
	if err != nil {
		m.logger.Warn("dropping undecodable remote entry", zap.String("key", key), zap.Error(err))
		m.remoteDel(ctx, key)
		m.misses.Add(1)
		return nil, false
	}

	m.fast.add(key, s)
	m.remoteHits.Add(1)
	m.hits.Add(1)
	return e, true
}

// Load is Get followed by JSON decoding into dst. A payload that cannot be
// decoded is invalidated and reported as a miss.
func (m *Manager) Load(ctx context.Context, key string, dst any) bool {
	e, ok := m.Get(ctx, key)
	if !ok {
		return false
	}
	if err := e.Decode(dst); err != nil {
		m.logger.Warn("invalidating entry with corrupt payload",
			zap.String("key", key), zap.String("category", string(e.Category)), zap.Error(err))
		m.Invalidate(ctx, key)
		return false
	}
	return true
}

// Put stores value under key in both layers. A []byte value is stored as-is,
// anything else is JSON encoded. ttl <= 0 selects the category TTL.
func (m *Manager) Put(ctx context.Context, key string, category types.Category, value any, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = m.TTLFor(category)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: category %q", ErrInvalidTTL, category)
	}

	var body []byte
	switch v := value.(type) {
	case []byte:
		body = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("cache: encode %s payload: %w", category, err)
		}
		body = b
	}

	now := m.now()
	s := m.codec.encode(category, body, now, now.Add(ttl))
	m.reconcile(ctx)

	mu := m.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if !m.fast.add(key, s) {
		m.logger.Debug("entry exceeds fast layer budget", zap.String("key", key), zap.Int64("size", s.size()))
	}
	m.remoteSet(ctx, key, s, ttl)

	m.writes.Add(1)
	if s.compressed() {
		m.compressedWrites.Add(1)
	}
	return nil
}

// Invalidate removes key from both layers.
func (m *Manager) Invalidate(ctx context.Context, key string) {
	if key == "" {
		return
	}
	m.reconcile(ctx)

	mu := m.lock(key)
	mu.Lock()
	defer mu.Unlock()

	m.fast.remove(key)
	m.remoteDel(ctx, key)
}

// Purge empties the fast layer. The distributed layer is left to its TTLs.
func (m *Manager) Purge() {
	m.fast.purge()
}

func (m *Manager) entry(key string, s *stored) (*Entry, error) {
	body, err := m.codec.body(s)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Key:        key,
		Category:   s.category,
		Payload:    body,
		SizeBytes:  s.size(),
		Compressed: s.compressed(),
		CreatedAt:  s.createdAt,
		ExpiresAt:  s.expiresAt,
	}, nil
}

// degraded reports whether the distributed layer is being skipped.
func (m *Manager) degraded(now time.Time) bool {
	return now.UnixNano() < m.degradedUntil.Load()
}

// remoteFailed records a distributed layer error. A rejected command leaves
// the layer enabled; any other error starts the cooldown.
func (m *Manager) remoteFailed(op, key string, err error) {
	m.remoteErrors.Add(1)
	m.metrics.CacheLookup("remote", "error")
	if errors.Is(err, ErrRemoteRejected) {
		m.logger.Warn("distributed cache rejected command",
			zap.String("op", op), zap.String("key", key), zap.Error(err))
		return
	}
	until := m.now().Add(m.cfg.RemoteCooldown)
	m.degradedUntil.Store(until.UnixNano())
	m.logger.Warn("distributed cache unavailable, degrading to fast layer",
		zap.String("op", op),
		zap.String("key", key),
		zap.Time("until", until),
		zap.Error(fmt.Errorf("%w: %v", types.ErrCacheUnavailable, err)),
	)
}

func (m *Manager) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.RemoteTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.RemoteTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) remoteGet(ctx context.Context, key string, now time.Time) (*stored, bool) {
	if m.remote == nil || m.degraded(now) {
		return nil, false
	}
	rctx, cancel := m.remoteCtx(ctx)
	defer cancel()

	raw, err := m.remote.Get(rctx, key)
	if errors.Is(err, ErrRemoteMiss) {
		m.metrics.CacheLookup("remote", "miss")
		return nil, false
	}
	if err != nil {
		if ctx.Err() == nil {
			m.remoteFailed("get", key, err)
		}
		return nil, false
	}

	s, err := parse(raw)
	if err != nil {
		m.logger.Warn("dropping corrupt remote entry", zap.String("key", key), zap.Error(err))
		m.remoteDel(ctx, key)
		return nil, false
	}
	if s.expired(now) {
		m.expired.Add(1)
		m.metrics.CacheLookup("remote", "expired")
		return nil, false
	}
	m.metrics.CacheLookup("remote", "hit")
	return s, true
}

// remoteSet marks the key stale when the write cannot reach the store, so
// an older distributed copy is replaced once the store is back.
func (m *Manager) remoteSet(ctx context.Context, key string, s *stored, ttl time.Duration) {
	if m.remote == nil {
		return
	}
	if m.degraded(m.now()) {
		m.stale.add(key)
		return
	}
	rctx, cancel := m.remoteCtx(ctx)
	defer cancel()

	err := m.remote.Set(rctx, key, s.raw, ttl)
	switch {
	case err == nil:
	case errors.Is(err, ErrRemoteRejected):
		m.remoteFailed("set", key, err)
		m.remoteDel(ctx, key)
	default:
		if ctx.Err() == nil {
			m.remoteFailed("set", key, err)
		}
		m.stale.add(key)
	}
}

// remoteDel is attempted even while degraded so invalidation is not lost
// when the store comes back early. A failed delete is retried on recovery.
func (m *Manager) remoteDel(ctx context.Context, key string) {
	if m.remote == nil {
		return
	}
	rctx, cancel := m.remoteCtx(ctx)
	defer cancel()

	err := m.remote.Del(rctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrRemoteRejected):
		m.remoteFailed("del", key, err)
	default:
		if ctx.Err() == nil {
			m.remoteFailed("del", key, err)
		}
		m.stale.add(key)
	}
}
