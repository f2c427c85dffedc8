package clustering

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/cache"
	"github.com/lk2023060901/seo-research-backend/internal/research/fingerprint"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// fakeVectors normalizes and de-duplicates like the orchestrator and serves
// fixed vectors.
type fakeVectors struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeVectors) Vectors(_ context.Context, keywords []string, country, language string) (*orchestrator.VectorSet, error) {
	f.calls++
	n := fingerprint.NewNormalizer(nil)
	set := &orchestrator.VectorSet{Vectors: map[string][]float32{}}
	for _, raw := range keywords {
		key, err := n.Normalize(raw, country, language)
		if err != nil {
			set.Excluded = append(set.Excluded, types.ExcludedKeyword{Keyword: raw, Kind: types.KindOf(err), Reason: err.Error()})
			continue
		}
		set.Country, set.Language = key.Country, key.Language
		if _, dup := set.Vectors[key.Keyword]; dup {
			continue
		}
		v, ok := f.vectors[key.Keyword]
		if !ok {
			set.Excluded = append(set.Excluded, types.ExcludedKeyword{Keyword: key.Keyword, Kind: types.KindPermanent, Reason: "no vector"})
			continue
		}
		set.Keywords = append(set.Keywords, key.Keyword)
		set.Vectors[key.Keyword] = v
	}
	return set, nil
}

var shoes = []string{"buy running shoes", "cheap running shoes", "running shoes price"}
var marathon = []string{"how to train for a marathon", "marathon training tips", "what is a marathon"}

func twoGroups() map[string][]float32 {
	return map[string][]float32{
		"buy running shoes":           {1, 0.1, 0},
		"cheap running shoes":         {0.95, 0.15, 0.05},
		"running shoes price":         {0.9, 0.05, 0.1},
		"how to train for a marathon": {0.05, 1, 0.1},
		"marathon training tips":      {0.1, 0.95, 0},
		"what is a marathon":          {0, 0.9, 0.2},
		"weather tomorrow":            {0, 0, 1},
	}
}

func newTestEngine(t *testing.T, vs VectorSource, c Cache) *Engine {
	t.Helper()
	e, err := NewEngine(nil, vs, c, logger.NewNop(), nil)
	require.NoError(t, err)
	return e
}

func memberSets(res *types.ClusterResult) [][]string {
	var out [][]string
	for _, c := range res.Clusters {
		kws := append([]string(nil), c.Keywords...)
		sort.Strings(kws)
		out = append(out, kws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestCluster_TwoGroups(t *testing.T) {
	for _, alg := range []types.Algorithm{types.AlgorithmCentroid, types.AlgorithmHierarchical} {
		t.Run(string(alg), func(t *testing.T) {
			e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil)

			res, err := e.Cluster(context.Background(), Request{
				Keywords:       append(append([]string{}, marathon...), shoes...),
				Algorithm:      alg,
				TargetClusters: 2,
			})
			require.NoError(t, err)
			require.Len(t, res.Clusters, 2)
			assert.Equal(t, alg, res.Algorithm)
			assert.NotEmpty(t, res.GenerationID)

			want := [][]string{sorted(shoes), sorted(marathon)}
			sort.Slice(want, func(i, j int) bool { return want[i][0] < want[j][0] })
			assert.Equal(t, want, memberSets(res))

			for _, c := range res.Clusters {
				assert.NotEmpty(t, c.ID)
				assert.Len(t, c.Centroid, 3)
				assert.Contains(t, c.Keywords, c.Label)
				assert.GreaterOrEqual(t, c.ConfidenceScore, 0.0)
				assert.LessOrEqual(t, c.ConfidenceScore, 1.0)
				assert.Greater(t, c.Cohesion, 0.9)
				if assert.ObjectsAreEqual(sorted(c.Keywords), sorted(shoes)) {
					assert.Equal(t, types.IntentTransactional, c.Intent)
				} else {
					assert.Equal(t, types.IntentInformational, c.Intent)
				}
			}
		})
	}
}

func TestCluster_DeterministicUnderSeed(t *testing.T) {
	req := Request{Keywords: append(append([]string{}, shoes...), marathon...), TargetClusters: 2}

	first, err := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil).Cluster(context.Background(), req)
	require.NoError(t, err)
	second, err := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil).Cluster(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.GenerationID, second.GenerationID)
	assert.Equal(t, first.Clusters, second.Clusters)
	assert.Equal(t, first.Iterations, second.Iterations)
}

func TestCluster_SingletonsAreFolded(t *testing.T) {
	e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil)

	res, err := e.Cluster(context.Background(), Request{
		Keywords:       []string{"buy running shoes", "cheap running shoes", "marathon training tips", "what is a marathon", "weather tomorrow"},
		TargetClusters: 3,
	})
	require.NoError(t, err)

	total := 0
	for _, c := range res.Clusters {
		assert.GreaterOrEqual(t, len(c.Keywords), 2, "cluster %v is a singleton", c.Keywords)
		total += len(c.Keywords)
	}
	assert.Equal(t, 5, total)
}

func TestCluster_HierarchicalThresholdStops(t *testing.T) {
	e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil)

	res, err := e.Cluster(context.Background(), Request{
		Keywords:            append(append([]string{}, shoes...), marathon...),
		Algorithm:           types.AlgorithmHierarchical,
		SimilarityThreshold: ptr(0.8),
	})
	require.NoError(t, err)
	assert.Len(t, res.Clusters, 2)
}

func TestCluster_ExplicitZeroThresholdIsHonoured(t *testing.T) {
	e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil)
	keywords := append(append([]string{}, shoes...), marathon...)

	res, err := e.Cluster(context.Background(), Request{Keywords: keywords, Algorithm: types.AlgorithmHierarchical})
	require.NoError(t, err)
	assert.Len(t, res.Clusters, 2, "configured threshold keeps the groups apart")

	res, err = e.Cluster(context.Background(), Request{
		Keywords:            keywords,
		Algorithm:           types.AlgorithmHierarchical,
		SimilarityThreshold: ptr(0),
	})
	require.NoError(t, err)
	assert.Len(t, res.Clusters, 1, "every pair has a positive similarity")

	_, err = e.Cluster(context.Background(), Request{Keywords: keywords, SimilarityThreshold: ptr(1.5)})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func ptr(v float64) *float64 { return &v }

func TestCluster_SingleKeyword(t *testing.T) {
	e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil)
	res, err := e.Cluster(context.Background(), Request{Keywords: []string{"buy running shoes"}})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, []string{"buy running shoes"}, res.Clusters[0].Keywords)
	assert.Equal(t, "buy running shoes", res.Clusters[0].Label)
}

func TestCluster_DuplicatesAreRemoved(t *testing.T) {
	e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil)
	res, err := e.Cluster(context.Background(), Request{
		Keywords:       []string{"Buy Running Shoes", "buy  running shoes", "cheap running shoes", " BUY RUNNING SHOES ", "marathon training tips", "what is a marathon"},
		TargetClusters: 2,
	})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, c := range res.Clusters {
		for _, k := range c.Keywords {
			seen[k]++
		}
	}
	assert.Len(t, seen, 4)
	for k, n := range seen {
		assert.Equal(t, 1, n, k)
	}
}

func TestCluster_ExclusionsAndErrors(t *testing.T) {
	e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, nil)

	res, err := e.Cluster(context.Background(), Request{Keywords: []string{"buy running shoes", "cheap running shoes", "unknown keyword", ""}})
	require.NoError(t, err)
	require.Len(t, res.Excluded, 2)
	assert.Equal(t, "unknown keyword", res.Excluded[0].Keyword)
	assert.Equal(t, types.KindInvalidInput, res.Excluded[1].Kind)

	_, err = e.Cluster(context.Background(), Request{Keywords: []string{"nothing here"}})
	assert.ErrorIs(t, err, ErrNotEnoughData)

	_, err = e.Cluster(context.Background(), Request{})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = e.Cluster(context.Background(), Request{Keywords: []string{"a"}, Algorithm: "dbscan"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = e.Cluster(context.Background(), Request{Keywords: []string{"a"}, TargetClusters: -1})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestCluster_CachedPartitionGetsNewGeneration(t *testing.T) {
	cm, err := cache.New(cache.DefaultConfig(), cache.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer cm.Close()

	e := newTestEngine(t, &fakeVectors{vectors: twoGroups()}, cm)
	req := Request{Keywords: append(append([]string{}, shoes...), marathon...), TargetClusters: 2}

	first, err := e.Cluster(context.Background(), req)
	require.NoError(t, err)

	// Order and casing do not change the cache key.
	req.Keywords = []string{"What is a Marathon", "marathon training tips", "how to train for a marathon", "running shoes price", "cheap running shoes", "buy running shoes"}
	second, err := e.Cluster(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.GenerationID, second.GenerationID)
	assert.Equal(t, first.Clusters, second.Clusters)
	assert.Equal(t, int64(1), cm.Stats().Hits)
}

func TestKmeans_StopsAtMaxIterations(t *testing.T) {
	vecs := [][]float64{}
	for _, v := range twoGroups() {
		vecs = append(vecs, normalize(v))
	}
	_, iters := kmeans(vecs, 3, 7, 1)
	assert.Equal(t, 1, iters)

	assign, iters := kmeans(vecs, 3, 7, 100)
	assert.Less(t, iters, 100)
	assert.Len(t, assign, len(vecs))
	for _, c := range assign {
		assert.True(t, c >= 0 && c < 3)
	}
}

func TestKmeans_EveryClusterNonEmpty(t *testing.T) {
	// Identical vectors force the empty-cluster reseed path.
	vecs := [][]float64{{1, 0}, {1, 0}, {1, 0}, {1, 0}}
	assign, _ := kmeans(vecs, 3, 1, 10)
	counts := map[int]int{}
	for _, c := range assign {
		counts[c]++
	}
	assert.Len(t, counts, 3)
}

func TestFoldSingletons(t *testing.T) {
	vecs := [][]float64{normalize([]float32{1, 0}), normalize([]float32{0.9, 0.1}), normalize([]float32{0, 1}), normalize([]float32{0.1, 0.9}), normalize([]float32{0.8, 0.3})}
	assign := foldSingletons(vecs, []int{0, 0, 1, 1, 2})
	assert.Equal(t, []int{0, 0, 1, 1, 0}, assign)
}
