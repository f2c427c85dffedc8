package orchestrator

import (
	"context"
	"fmt"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/seo-research-backend/internal/research/fingerprint"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// VectorSet holds the embeddings resolved for a keyword list.
type VectorSet struct {
	// Keywords are the normalized, de-duplicated keywords with a vector, in
	// input order.
	Keywords []string
	Vectors  map[string][]float32
	// Excluded lists keywords that could not be embedded, in input order.
	Excluded []types.ExcludedKeyword
	// Country and Language are the normalized locale the vectors belong to.
	Country  string
	Language string
}

// Vectors resolves one embedding per keyword, cache first. Keywords that are
// invalid or fail to embed are excluded, not fatal.
func (o *Orchestrator) Vectors(ctx context.Context, keywords []string, country, language string) (*VectorSet, error) {
	if _, err := o.registry.Get(types.CategoryEmbedding); err != nil {
		return nil, err
	}
	if len(keywords) > o.cfg.MaxKeywords {
		return nil, fmt.Errorf("%w: %w: %d > %d", types.ErrInvalidInput, ErrTooManyKeywords, len(keywords), o.cfg.MaxKeywords)
	}

	set := &VectorSet{Vectors: make(map[string][]float32)}
	seen := make(map[string]bool, len(keywords))
	var pairs []pair
	type slot struct {
		keyword  string
		pairIdx  int
		excluded *types.ExcludedKeyword
	}
	var slots []slot

	for _, raw := range keywords {
		key, err := o.normalizer.Normalize(raw, country, language)
		if err != nil {
			slots = append(slots, slot{excluded: &types.ExcludedKeyword{
				Keyword: raw, Kind: types.KindOf(err), Reason: err.Error(),
			}})
			continue
		}
		set.Country, set.Language = key.Country, key.Language
		if seen[key.Keyword] {
			continue
		}
		seen[key.Keyword] = true
		slots = append(slots, slot{keyword: key.Keyword, pairIdx: len(pairs)})
		pairs = append(pairs, pair{key: key, category: types.CategoryEmbedding})
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()
	outs, _ := o.execute(runCtx, pairs, workerpool.PriorityHigh)

	for _, s := range slots {
		if s.excluded != nil {
			set.Excluded = append(set.Excluded, *s.excluded)
			continue
		}
		out := outs[s.pairIdx]
		if out.err != nil {
			set.Excluded = append(set.Excluded, types.ExcludedKeyword{
				Keyword: s.keyword, Kind: types.KindOf(out.err), Reason: out.err.Error(),
			})
			continue
		}
		set.Keywords = append(set.Keywords, s.keyword)
		set.Vectors[s.keyword] = out.payload.Embedding.Vector
	}
	return set, nil
}

// Page resolves the on-page signals of a URL, cache first. The returned bool
// reports a cache hit.
func (o *Orchestrator) Page(ctx context.Context, rawURL string) (*types.PageSignals, bool, error) {
	key, err := fingerprint.PageKey(rawURL)
	if err != nil {
		return nil, false, err
	}
	if _, err := o.registry.Get(types.CategoryPageScore); err != nil {
		return nil, false, err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()
	outs, _ := o.execute(runCtx, []pair{{key: key, category: types.CategoryPageScore}}, workerpool.PriorityHigh)
	if outs[0].err != nil {
		return nil, false, outs[0].err
	}
	return outs[0].payload.Page, outs[0].cacheHit, nil
}
