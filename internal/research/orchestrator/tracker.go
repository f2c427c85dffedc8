package orchestrator

import (
	"sync"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// pair is one (keyword, category) unit of work.
type pair struct {
	key      types.ResearchKey
	category types.Category
}

type outcome struct {
	payload  *types.Payload
	cacheHit bool
	err      error
}

// tracker records the outcome of every pair exactly once. After finalize
// nothing can change, so late results only reach the cache.
type tracker struct {
	mu        sync.Mutex
	outcomes  []outcome
	resolved  []bool
	remaining int
	finalized bool
	done      chan struct{}
}

func newTracker(n int) *tracker {
	t := &tracker{
		outcomes:  make([]outcome, n),
		resolved:  make([]bool, n),
		remaining: n,
		done:      make(chan struct{}),
	}
	if n == 0 {
		close(t.done)
	}
	return t
}

// resolve stores the outcome of pair i. It reports false when the pair was
// already resolved or the tracker is finalized.
func (t *tracker) resolve(i int, o outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized || t.resolved[i] {
		return false
	}
	t.outcomes[i] = o
	t.resolved[i] = true
	t.remaining--
	if t.remaining == 0 {
		close(t.done)
	}
	return true
}

// finalize freezes the tracker. Unresolved pairs get unresolvedErr. It
// returns a snapshot of the outcomes and how many pairs were unresolved.
func (t *tracker) finalize(unresolvedErr error) ([]outcome, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalized = true
	unresolved := 0
	out := make([]outcome, len(t.outcomes))
	for i := range t.outcomes {
		if !t.resolved[i] {
			unresolved++
			out[i] = outcome{err: unresolvedErr}
			continue
		}
		out[i] = t.outcomes[i]
	}
	return out, unresolved
}
