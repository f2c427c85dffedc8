package clustering

import (
	"math"
	"math/rand/v2"
)

// kmeans runs spherical k-means on unit vectors. Seeding is k-means++ driven
// by seed, so equal inputs give equal assignments. It returns the cluster
// index of every vector and the number of refinement iterations.
func kmeans(vecs [][]float64, k int, seed int64, maxIter int) ([]int, int) {
	n := len(vecs)
	if k >= n {
		assign := make([]int, n)
		for i := range assign {
			assign[i] = i
		}
		return assign, 0
	}
	if k <= 1 {
		return make([]int, n), 0
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	centroids := seedPlusPlus(vecs, k, rng)

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	iter := 0
	for iter < maxIter {
		iter++
		changed := false
		for i, v := range vecs {
			best := nearest(v, centroids)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		members := group(assign, k)
		for c := range centroids {
			if len(members[c]) == 0 {
				worst := worstFit(vecs, assign, centroids, members)
				members[assign[worst]] = remove(members[assign[worst]], worst)
				assign[worst] = c
				members[c] = []int{worst}
				changed = true
			}
		}
		for c := range centroids {
			centroids[c] = mean(vecs, members[c])
		}

		if !changed {
			break
		}
	}
	return assign, iter
}

// seedPlusPlus picks the first centroid uniformly and every further one
// with probability proportional to its squared cosine distance from the
// closest centroid already chosen.
func seedPlusPlus(vecs [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(vecs)
	chosen := make([]bool, n)
	first := rng.IntN(n)
	chosen[first] = true
	centroids := [][]float64{append([]float64(nil), vecs[first]...)}

	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, v := range vecs {
			d := 1 - cosine(v, centroids[nearest(v, centroids)])
			if chosen[i] || d < 0 {
				d = 0
			}
			dist[i] = d * d
			total += dist[i]
		}

		next := -1
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				if d == 0 {
					continue
				}
				target -= d
				next = i
				if target <= 0 {
					break
				}
			}
		}
		if next < 0 {
			for i := range chosen {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		centroids = append(centroids, append([]float64(nil), vecs[next]...))
	}
	return centroids
}

func nearest(v []float64, centroids [][]float64) int {
	best, bestSim := 0, math.Inf(-1)
	for c, centroid := range centroids {
		if sim := cosine(v, centroid); sim > bestSim {
			best, bestSim = c, sim
		}
	}
	return best
}

func group(assign []int, k int) [][]int {
	members := make([][]int, k)
	for i, c := range assign {
		members[c] = append(members[c], i)
	}
	return members
}

// worstFit returns the vector least similar to its own centroid among
// clusters that can spare a member.
func worstFit(vecs [][]float64, assign []int, centroids [][]float64, members [][]int) int {
	worst, worstSim := -1, math.Inf(1)
	for i, v := range vecs {
		if len(members[assign[i]]) < 2 {
			continue
		}
		if sim := cosine(v, centroids[assign[i]]); sim < worstSim {
			worst, worstSim = i, sim
		}
	}
	return worst
}

func remove(rows []int, row int) []int {
	out := rows[:0:0]
	for _, r := range rows {
		if r != row {
			out = append(out, r)
		}
	}
	return out
}
