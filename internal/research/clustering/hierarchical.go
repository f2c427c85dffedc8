package clustering

// agglomerate merges clusters by average linkage until target clusters
// remain or the best linkage drops below threshold. target <= 0 means only
// the threshold stops merging. It returns the cluster index of every vector
// and the number of merges.
func agglomerate(vecs [][]float64, target int, threshold float64) ([]int, int) {
	n := len(vecs)
	if target <= 0 {
		target = 1
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
		for j := range i {
			s := cosine(vecs[i], vecs[j])
			sim[i][j], sim[j][i] = s, s
		}
	}
	size := make([]int, n)
	parent := make([]int, n)
	active := make([]bool, n)
	for i := range n {
		size[i], parent[i], active[i] = 1, i, true
	}

	merges := 0
	for remaining := n; remaining > target; remaining-- {
		bi, bj, best := -1, -1, 0.0
		for i := range n {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && (bi < 0 || sim[i][j] > best) {
					bi, bj, best = i, j, sim[i][j]
				}
			}
		}
		if bi < 0 || best < threshold {
			break
		}

		// Lance-Williams update for average linkage.
		for k := range n {
			if !active[k] || k == bi || k == bj {
				continue
			}
			s := (float64(size[bi])*sim[bi][k] + float64(size[bj])*sim[bj][k]) / float64(size[bi]+size[bj])
			sim[bi][k], sim[k][bi] = s, s
		}
		size[bi] += size[bj]
		active[bj] = false
		for k := range parent {
			if parent[k] == bj {
				parent[k] = bi
			}
		}
		merges++
	}

	// Compact cluster ids in order of first appearance.
	ids := make(map[int]int)
	assign := make([]int, n)
	for i, p := range parent {
		id, ok := ids[p]
		if !ok {
			id = len(ids)
			ids[p] = id
		}
		assign[i] = id
	}
	return assign, merges
}
