// Package orchestrator fans research requests out to the source adapters,
// serving repeats from the cache and merging the results into pipeline runs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/seo-research-backend/internal/research/fingerprint"
	"github.com/lk2023060901/seo-research-backend/internal/research/source"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// Cache is the subset of the cache manager the orchestrator needs.
type Cache interface {
	Load(ctx context.Context, key string, dst any) bool
	Put(ctx context.Context, key string, category types.Category, value any, ttl time.Duration) error
}

// Pool runs fetch tasks.
type Pool interface {
	SubmitWithPriority(priority workerpool.Priority, task func()) error
}

// RunStore persists finalized runs.
type RunStore interface {
	Save(ctx context.Context, run *types.PipelineRun) error
}

// ErrTooManyKeywords is wrapped together with types.ErrInvalidInput when a
// request exceeds Config.MaxKeywords.
var ErrTooManyKeywords = errors.New("too many keywords")

// Orchestrator coordinates cache lookups and adapter fetches.
type Orchestrator struct {
	cfg        Config
	normalizer *fingerprint.Normalizer
	registry   *source.Registry
	cache      Cache
	pool       Pool
	runs       RunStore
	sems       map[types.Category]*semaphore.Weighted
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunStore persists every finalized run.
func WithRunStore(s RunStore) Option {
	return func(o *Orchestrator) { o.runs = s }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. One semaphore per registered category bounds
// the number of concurrent fetches against that source.
func New(cfg *Config, normalizer *fingerprint.Normalizer, registry *source.Registry, cache Cache, pool Pool, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if normalizer == nil || registry == nil || cache == nil || pool == nil {
		return nil, fmt.Errorf("orchestrator: normalizer, registry, cache and pool are required")
	}

	o := &Orchestrator{
		cfg:        *cfg,
		normalizer: normalizer,
		registry:   registry,
		cache:      cache,
		pool:       pool,
		sems:       make(map[types.Category]*semaphore.Weighted),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logger.OrGlobal(o.logger).Named("orchestrator")

	for _, c := range registry.Categories() {
		o.sems[c] = semaphore.NewWeighted(int64(registry.MaxInFlight(c)))
	}
	return o, nil
}

// execute resolves every pair and waits until all are resolved or ctx is
// done. Pairs still open at that point are recorded as timed out.
//
// Cache lookups never run on the worker pool. Misses are handed to one
// dispatcher per category, which takes a fetch slot before it submits, so a
// worker is only occupied by a fetch that can start immediately.
func (o *Orchestrator) execute(ctx context.Context, pairs []pair, priority workerpool.Priority) ([]outcome, bool) {
	t := newTracker(len(pairs))
	dctx, stop := context.WithCancel(ctx)
	defer stop()

	byCategory := make(map[types.Category][]int)
	var order []types.Category
	for i, p := range pairs {
		if _, ok := byCategory[p.category]; !ok {
			order = append(order, p.category)
		}
		byCategory[p.category] = append(byCategory[p.category], i)
	}
	for _, c := range order {
		go o.dispatch(dctx, c, pairs, byCategory[c], priority, t)
	}

	select {
	case <-t.done:
	case <-ctx.Done():
	}
	outs, unresolved := t.finalize(fmt.Errorf("%w: unresolved when the run finished", types.ErrDeadlineExceeded))
	return outs, unresolved > 0
}

// dispatch serves the cached pairs of one category, then submits the misses
// to the pool one fetch slot at a time. It stops when ctx is done and leaves
// the remaining pairs to finalize.
func (o *Orchestrator) dispatch(ctx context.Context, c types.Category, pairs []pair, idxs []int, priority workerpool.Priority, t *tracker) {
	misses := make([]int, 0, len(idxs))
	for _, i := range idxs {
		if ctx.Err() != nil {
			return
		}
		if out, ok := o.lookup(ctx, pairs[i]); ok {
			t.resolve(i, out)
			continue
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return
	}

	adapter, err := o.registry.Get(c)
	if err != nil {
		for _, i := range misses {
			t.resolve(i, outcome{err: err})
		}
		return
	}
	sem := o.sems[c]

	for _, i := range misses {
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		p := pairs[i]
		task := func() {
			defer sem.Release(1)
			t.resolve(i, o.fetch(ctx, adapter, p))
		}
		if err := o.pool.SubmitWithPriority(priority, task); err != nil {
			sem.Release(1)
			t.resolve(i, outcome{err: types.NewSourceError(types.KindTransient, "orchestrator", "worker pool rejected task", err)})
		}
	}
}

// lookup serves a pair from the cache. Entries of the wrong category or that
// fail validation count as misses.
func (o *Orchestrator) lookup(ctx context.Context, p pair) (outcome, bool) {
	var cached types.Payload
	if !o.cache.Load(ctx, fingerprint.Fingerprint(p.key, p.category), &cached) {
		return outcome{}, false
	}
	if cached.Category != p.category || cached.Validate() != nil {
		return outcome{}, false
	}
	return outcome{payload: &cached, cacheHit: true}, true
}

// fetch calls the adapter of a cache miss. The call runs on a context
// detached from the run deadline and bounded by FetchTimeout, and its result
// is cached even if the run has finished.
func (o *Orchestrator) fetch(runCtx context.Context, adapter source.Adapter, p pair) outcome {
	if runCtx.Err() != nil {
		return outcome{err: runCtx.Err()}
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), o.cfg.FetchTimeout)
	defer cancel()

	payload, err := adapter.Fetch(fetchCtx, p.key.WithCategory(p.category))
	if err != nil {
		return outcome{err: err}
	}
	if err := payload.Validate(); err != nil {
		return outcome{err: err}
	}
	if payload.Category != p.category {
		return outcome{err: types.NewSourceError(types.KindPermanent, adapter.Name(),
			fmt.Sprintf("returned %s payload for %s", payload.Category, p.category), nil)}
	}

	fp := fingerprint.Fingerprint(p.key, p.category)
	if err := o.cache.Put(fetchCtx, fp, p.category, payload, 0); err != nil {
		o.logger.Warn("cache write failed",
			zap.String("category", p.category.String()),
			zap.String("keyword", p.key.Keyword),
			zap.Error(err))
	}
	return outcome{payload: payload}
}

func categoryError(c types.Category, err error) types.CategoryError {
	return types.CategoryError{Category: c, Kind: types.KindOf(err), Message: err.Error()}
}
