// Package data stores the history of finalized pipeline runs.
package data

import (
	"context"
	"errors"
	"time"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("pipeline run not found")

const defaultListLimit = 20

// RunRepo persists finalized runs. It satisfies orchestrator.RunStore.
type RunRepo interface {
	Save(ctx context.Context, run *types.PipelineRun) error
	Get(ctx context.Context, runID string) (*types.PipelineRun, error)
	List(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Country      string    `json:"country"`
	Language     string    `json:"language"`
	KeywordCount int       `json:"keyword_count"`
	OKCount      int       `json:"ok_count"`
	PartialCount int       `json:"partial_count"`
	FailedCount  int       `json:"failed_count"`
	TimedOut     bool      `json:"timed_out"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
}

func summarize(run *types.PipelineRun) RunSummary {
	counts := run.StatusCounts()
	return RunSummary{
		RunID:        run.RunID,
		Country:      run.Country,
		Language:     run.Language,
		KeywordCount: len(run.Results),
		OKCount:      counts[types.StatusOK],
		PartialCount: counts[types.StatusPartial],
		FailedCount:  counts[types.StatusFailed],
		TimedOut:     run.TimedOut,
		StartedAt:    run.StartedAt,
		DurationMs:   run.Duration().Milliseconds(),
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, 500)
}
