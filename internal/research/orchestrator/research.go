package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// ResearchRequest asks for the given categories of every keyword. An empty
// Categories means all research categories.
type ResearchRequest struct {
	Keywords   []string         `json:"keywords"`
	Country    string           `json:"country"`
	Language   string           `json:"language"`
	Categories []types.Category `json:"categories"`
}

// WarmReport summarizes a cache warming pass.
type WarmReport struct {
	Keywords  int           `json:"keywords"`
	Pairs     int           `json:"pairs"`
	Fetched   int           `json:"fetched"`
	CacheHits int           `json:"cache_hits"`
	Failed    int           `json:"failed"`
	TimedOut  bool          `json:"timed_out"`
	Duration  time.Duration `json:"duration"`
}

// keywordPlan is one requested keyword after normalization.
type keywordPlan struct {
	display string
	key     types.ResearchKey
	err     error
	first   int // index of the first pair, -1 when invalid
}

// Research resolves every (keyword, category) pair and returns the finalized
// run. The error is reserved for request level problems: no keywords, too
// many keywords, or a category that is unknown or has no adapter. Failures of
// single pairs are recorded on the keyword they affect.
func (o *Orchestrator) Research(ctx context.Context, req ResearchRequest) (*types.PipelineRun, error) {
	run, _, err := o.research(ctx, req, workerpool.PriorityNormal, true)
	return run, err
}

// Warm resolves the request at low priority without recording run history.
// It is how scheduled jobs populate the cache.
func (o *Orchestrator) Warm(ctx context.Context, req ResearchRequest) (*WarmReport, error) {
	run, outs, err := o.research(ctx, req, workerpool.PriorityLow, false)
	if err != nil {
		return nil, err
	}
	report := &WarmReport{
		Keywords: len(run.RequestedKeywords),
		Pairs:    len(outs),
		TimedOut: run.TimedOut,
		Duration: run.Duration(),
	}
	for _, out := range outs {
		switch {
		case out.err != nil:
			report.Failed++
		case out.cacheHit:
			report.CacheHits++
		default:
			report.Fetched++
		}
	}
	for _, r := range run.Results {
		for _, e := range r.Errors {
			if e.Kind == types.KindInvalidInput {
				report.Failed++
			}
		}
	}
	return report, nil
}

func (o *Orchestrator) research(ctx context.Context, req ResearchRequest, priority workerpool.Priority, persist bool) (*types.PipelineRun, []outcome, error) {
	categories, err := o.validate(req)
	if err != nil {
		return nil, nil, err
	}

	run := &types.PipelineRun{
		RunID:      uuid.NewString(),
		Country:    strings.ToLower(strings.TrimSpace(req.Country)),
		Language:   strings.ToLower(strings.TrimSpace(req.Language)),
		Categories: categories,
		StartedAt:  o.now().UTC(),
	}
	ctx = logger.WithRunID(ctx, run.RunID)
	log := o.logger.WithContext(ctx)

	plans, pairs := o.plan(req, categories)
	for _, p := range plans {
		run.RequestedKeywords = append(run.RequestedKeywords, p.display)
		if p.err == nil && run.Country == "" {
			run.Country, run.Language = p.key.Country, p.key.Language
		}
	}

	log.Info("research run started",
		zap.Int("keywords", len(plans)),
		zap.Int("pairs", len(pairs)),
		zap.Stringers("categories", categories))

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()
	outs, timedOut := o.execute(runCtx, pairs, priority)

	run.Results = merge(plans, categories, outs)
	run.TimedOut = timedOut
	run.CompletedAt = o.now().UTC()

	counts := run.StatusCounts()
	byName := make(map[string]int, len(counts))
	for s, n := range counts {
		byName[string(s)] = n
	}
	o.metrics.RecordRun(byName, run.Duration(), timedOut)

	log.Info("research run finished",
		zap.Int("ok", counts[types.StatusOK]),
		zap.Int("partial", counts[types.StatusPartial]),
		zap.Int("failed", counts[types.StatusFailed]),
		zap.Bool("timed_out", timedOut),
		zap.Duration("duration", run.Duration()))

	if persist {
		o.persist(ctx, run)
	}
	return run, outs, nil
}

func (o *Orchestrator) validate(req ResearchRequest) ([]types.Category, error) {
	if len(req.Keywords) == 0 {
		return nil, fmt.Errorf("%w: no keywords", types.ErrInvalidInput)
	}
	if len(req.Keywords) > o.cfg.MaxKeywords {
		return nil, fmt.Errorf("%w: %w: %d > %d", types.ErrInvalidInput, ErrTooManyKeywords, len(req.Keywords), o.cfg.MaxKeywords)
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = types.ResearchCategories
	}
	seen := make(map[types.Category]bool, len(categories))
	out := make([]types.Category, 0, len(categories))
	for _, c := range categories {
		if !c.IsResearch() {
			return nil, fmt.Errorf("%w: category %q cannot be researched per keyword", types.ErrInvalidInput, c)
		}
		if _, err := o.registry.Get(c); err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// plan normalizes the keywords. Keywords that normalize to the same key are
// researched once and reported once, at their first position.
func (o *Orchestrator) plan(req ResearchRequest, categories []types.Category) ([]keywordPlan, []pair) {
	plans := make([]keywordPlan, 0, len(req.Keywords))
	var pairs []pair
	seen := make(map[string]bool, len(req.Keywords))

	for _, raw := range req.Keywords {
		key, err := o.normalizer.Normalize(raw, req.Country, req.Language)
		if err != nil {
			plans = append(plans, keywordPlan{display: strings.TrimSpace(raw), err: err, first: -1})
			continue
		}
		if seen[key.Keyword] {
			continue
		}
		seen[key.Keyword] = true
		plans = append(plans, keywordPlan{display: key.Keyword, key: key, first: len(pairs)})
		for _, c := range categories {
			pairs = append(pairs, pair{key: key, category: c})
		}
	}
	return plans, pairs
}

func merge(plans []keywordPlan, categories []types.Category, outs []outcome) []types.KeywordResult {
	results := make([]types.KeywordResult, 0, len(plans))
	for _, p := range plans {
		res := types.KeywordResult{Keyword: p.display}
		if p.err != nil {
			for _, c := range categories {
				res.Errors = append(res.Errors, categoryError(c, p.err))
			}
			res.Status = types.StatusFailed
			results = append(results, res)
			continue
		}

		resolved := 0
		for j, c := range categories {
			out := outs[p.first+j]
			if out.err != nil {
				res.Errors = append(res.Errors, categoryError(c, out.err))
				continue
			}
			resolved++
			if out.cacheHit {
				res.CacheHits = append(res.CacheHits, c)
			}
			switch c {
			case types.CategoryKeywordMetrics:
				res.Metrics = out.payload.Keyword
			case types.CategorySerp:
				res.Serp = out.payload.Serp
			case types.CategoryEmbedding:
				res.Embedding = out.payload.Embedding
			}
		}

		switch resolved {
		case len(categories):
			res.Status = types.StatusOK
		case 0:
			res.Status = types.StatusFailed
		default:
			res.Status = types.StatusPartial
		}
		results = append(results, res)
	}
	return results
}

func (o *Orchestrator) persist(ctx context.Context, run *types.PipelineRun) {
	if o.runs == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PersistTimeout)
	defer cancel()
	if err := o.runs.Save(saveCtx, run); err != nil {
		o.logger.Warn("failed to persist run", zap.String("run_id", run.RunID), zap.Error(err))
	}
}
