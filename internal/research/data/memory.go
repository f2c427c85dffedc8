package data

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// MemoryRunRepo keeps the most recent runs in memory. It is used when no
// database is configured.
type MemoryRunRepo struct {
	runs *lru.Cache[string, *types.PipelineRun]
}

// NewMemoryRunRepo keeps up to capacity runs.
func NewMemoryRunRepo(capacity int) (*MemoryRunRepo, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	runs, err := lru.New[string, *types.PipelineRun](capacity)
	if err != nil {
		return nil, fmt.Errorf("create run history: %w", err)
	}
	return &MemoryRunRepo{runs: runs}, nil
}

func (r *MemoryRunRepo) Save(_ context.Context, run *types.PipelineRun) error {
	r.runs.Add(run.RunID, run)
	return nil
}

func (r *MemoryRunRepo) Get(_ context.Context, runID string) (*types.PipelineRun, error) {
	run, ok := r.runs.Peek(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// List returns runs most recently saved first.
func (r *MemoryRunRepo) List(_ context.Context, limit int) ([]RunSummary, error) {
	keys := r.runs.Keys()
	slices.Reverse(keys)

	limit = listLimit(limit)
	out := make([]RunSummary, 0, min(limit, len(keys)))
	for _, k := range keys {
		if len(out) == limit {
			break
		}
		if run, ok := r.runs.Peek(k); ok {
			out = append(out, summarize(run))
		}
	}
	return out, nil
}
