// Package clustering groups keywords by the similarity of their embeddings
// and labels each group with its dominant search intent.
package clustering

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/research/fingerprint"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// ErrNotEnoughData is returned when no keyword could be embedded.
var ErrNotEnoughData = errors.New("not enough keywords with embeddings")

// VectorSource resolves keyword embeddings.
type VectorSource interface {
	Vectors(ctx context.Context, keywords []string, country, language string) (*orchestrator.VectorSet, error)
}

// Cache stores clustering results.
type Cache interface {
	Load(ctx context.Context, key string, dst any) bool
	Put(ctx context.Context, key string, category types.Category, value any, ttl time.Duration) error
}

// Request describes one clustering call. An empty Algorithm, a zero
// TargetClusters and a nil SimilarityThreshold fall back to the engine
// configuration.
type Request struct {
	Keywords            []string        `json:"keywords"`
	Algorithm           types.Algorithm `json:"algorithm"`
	TargetClusters      int             `json:"target_clusters"`
	SimilarityThreshold *float64        `json:"similarity_threshold,omitempty"`
	Country             string          `json:"country"`
	Language            string          `json:"language"`
}

// cachedPartition is what is stored under the clustering category.
type cachedPartition struct {
	Algorithm  types.Algorithm `json:"algorithm"`
	Clusters   []types.Cluster `json:"clusters"`
	Iterations int             `json:"iterations"`
}

// Engine clusters keywords.
type Engine struct {
	cfg     Config
	vectors VectorSource
	cache   Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine creates a clustering engine. cache may be nil.
func NewEngine(cfg *Config, vectors VectorSource, cache Cache, log *logger.Logger, m *metrics.Metrics) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vectors == nil {
		return nil, fmt.Errorf("clustering: vector source is required")
	}
	return &Engine{
		cfg:     *cfg,
		vectors: vectors,
		cache:   cache,
		logger:  logger.OrGlobal(log).Named("clustering"),
		metrics: m,
		now:     time.Now,
	}, nil
}

// Cluster partitions the request's keywords. Every call returns a new
// generation; identical inputs reuse the cached partition.
func (e *Engine) Cluster(ctx context.Context, req Request) (*types.ClusterResult, error) {
	p, err := e.params(req)
	if err != nil {
		return nil, err
	}

	set, err := e.vectors.Vectors(ctx, req.Keywords, req.Country, req.Language)
	if err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(set.Keywords))
	vecs := make([][]float64, 0, len(set.Keywords))
	excluded := append([]types.ExcludedKeyword(nil), set.Excluded...)
	for _, kw := range set.Keywords {
		v := normalize(set.Vectors[kw])
		if v == nil || (len(vecs) > 0 && len(v) != len(vecs[0])) {
			excluded = append(excluded, types.ExcludedKeyword{
				Keyword: kw, Kind: types.KindPermanent, Reason: "embedding is empty or has a mismatched dimension",
			})
			continue
		}
		keywords = append(keywords, kw)
		vecs = append(vecs, v)
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: %d requested, %d excluded", ErrNotEnoughData, len(req.Keywords), len(excluded))
	}

	result := &types.ClusterResult{
		GenerationID: uuid.NewString(),
		Algorithm:    p.algorithm,
		Excluded:     excluded,
		CreatedAt:    e.now().UTC(),
	}

	fp := fingerprint.Fingerprint(
		fingerprint.ClusterKey(keywords, set.Country, set.Language, p.algorithm, p.target, p.threshold, e.cfg.Seed),
		types.CategoryClustering)

	var cached cachedPartition
	if e.cache != nil && e.cache.Load(ctx, fp, &cached) && len(cached.Clusters) > 0 {
		result.Clusters = cached.Clusters
		result.Iterations = cached.Iterations
		e.metrics.RecordClustering(string(p.algorithm), cached.Iterations, true)
		return result, nil
	}

	var assign []int
	switch p.algorithm {
	case types.AlgorithmHierarchical:
		assign, result.Iterations = agglomerate(vecs, p.target, p.threshold)
	default:
		k := p.target
		if k == 0 {
			k = int(math.Round(math.Sqrt(float64(len(vecs)) / 2)))
		}
		k = max(1, min(k, len(vecs)))
		assign, result.Iterations = kmeans(vecs, k, e.cfg.Seed, e.cfg.MaxIterations)
	}
	if len(vecs) > 1 {
		assign = foldSingletons(vecs, assign)
	}
	result.Clusters = buildClusters(keywords, vecs, assign)

	e.metrics.RecordClustering(string(p.algorithm), result.Iterations, false)
	e.logger.Info("keywords clustered",
		zap.String("generation_id", result.GenerationID),
		zap.String("algorithm", string(p.algorithm)),
		zap.Int("keywords", len(keywords)),
		zap.Int("excluded", len(excluded)),
		zap.Int("clusters", len(result.Clusters)),
		zap.Int("iterations", result.Iterations))

	if e.cache != nil {
		if err := e.cache.Put(ctx, fp, types.CategoryClustering, cachedPartition{
			Algorithm: result.Algorithm, Clusters: result.Clusters, Iterations: result.Iterations,
		}, 0); err != nil {
			e.logger.Warn("failed to cache clustering result", zap.Error(err))
		}
	}
	return result, nil
}

type clusterParams struct {
	algorithm types.Algorithm
	target    int
	threshold float64
}

func (e *Engine) params(req Request) (clusterParams, error) {
	p := clusterParams{
		algorithm: req.Algorithm,
		target:    req.TargetClusters,
		threshold: e.cfg.SimilarityThreshold,
	}
	if req.SimilarityThreshold != nil {
		p.threshold = *req.SimilarityThreshold
	}
	if len(req.Keywords) == 0 {
		return p, fmt.Errorf("%w: no keywords", types.ErrInvalidInput)
	}
	if len(req.Keywords) > e.cfg.MaxKeywords {
		return p, fmt.Errorf("%w: %d keywords exceeds the limit of %d", types.ErrInvalidInput, len(req.Keywords), e.cfg.MaxKeywords)
	}
	if p.algorithm == "" {
		p.algorithm = e.cfg.DefaultAlgorithm
	}
	switch p.algorithm {
	case types.AlgorithmCentroid, types.AlgorithmHierarchical:
	default:
		return p, fmt.Errorf("%w: unknown algorithm %q", types.ErrInvalidInput, p.algorithm)
	}
	if p.target < 0 {
		return p, fmt.Errorf("%w: target_clusters must be >= 0", types.ErrInvalidInput)
	}
	if p.target == 0 {
		p.target = e.cfg.TargetClusters
	}
	if p.threshold < -1 || p.threshold > 1 {
		return p, fmt.Errorf("%w: similarity_threshold must be within [-1, 1]", types.ErrInvalidInput)
	}
	return p, nil
}

// foldSingletons moves every single-member cluster into the cluster whose
// centroid is most similar, as long as more than one cluster remains.
func foldSingletons(vecs [][]float64, assign []int) []int {
	out := append([]int(nil), assign...)
	for {
		members := make(map[int][]int)
		for i, c := range out {
			members[c] = append(members[c], i)
		}
		if len(members) < 2 {
			return compact(out)
		}

		ids := make([]int, 0, len(members))
		for c := range members {
			ids = append(ids, c)
		}
		sort.Ints(ids)

		single := -1
		for _, c := range ids {
			if len(members[c]) == 1 {
				single = c
				break
			}
		}
		if single < 0 {
			return compact(out)
		}

		row := members[single][0]
		best, bestSim := -1, math.Inf(-1)
		for _, c := range ids {
			if c == single {
				continue
			}
			if sim := cosine(vecs[row], mean(vecs, members[c])); sim > bestSim {
				best, bestSim = c, sim
			}
		}
		out[row] = best
	}
}

func compact(assign []int) []int {
	ids := make(map[int]int)
	out := make([]int, len(assign))
	for i, c := range assign {
		id, ok := ids[c]
		if !ok {
			id = len(ids)
			ids[c] = id
		}
		out[i] = id
	}
	return out
}

// buildClusters turns assignments into labelled clusters, largest first.
func buildClusters(keywords []string, vecs [][]float64, assign []int) []types.Cluster {
	members := make(map[int][]int)
	for i, c := range assign {
		members[c] = append(members[c], i)
	}

	clusters := make([]types.Cluster, 0, len(members))
	for _, rows := range members {
		centroid := mean(vecs, rows)

		var cohesion float64
		label, labelSim := "", math.Inf(-1)
		kws := make([]string, 0, len(rows))
		for _, r := range rows {
			sim := cosine(vecs[r], centroid)
			cohesion += sim
			if sim > labelSim {
				label, labelSim = keywords[r], sim
			}
			kws = append(kws, keywords[r])
		}
		cohesion = clamp01(cohesion / float64(len(rows)))
		intent, share := majorityIntent(kws)

		clusters = append(clusters, types.Cluster{
			ID:              clusterID(kws),
			Label:           label,
			Keywords:        kws,
			Centroid:        toFloat32(centroid),
			Intent:          intent,
			ConfidenceScore: round4(cohesion * share),
			Cohesion:        round4(cohesion),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].Keywords) != len(clusters[j].Keywords) {
			return len(clusters[i].Keywords) > len(clusters[j].Keywords)
		}
		return clusters[i].Keywords[0] < clusters[j].Keywords[0]
	})
	return clusters
}

// clusterID is stable for a given member set.
func clusterID(keywords []string) string {
	sorted := append([]string(nil), keywords...)
	sort.Strings(sorted)
	h := fnv.New64a()
	h.Write([]byte(strings.Join(sorted, "\x1f")))
	return "cl_" + hex.EncodeToString(h.Sum(nil))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
