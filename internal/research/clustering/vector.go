package clustering

import "math"

// normalize returns v scaled to unit length as float64, or nil for a zero
// vector.
func normalize(v []float32) []float64 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x) / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// cosine is the similarity of two unit vectors.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	return dot(a, b)
}

// mean returns the unit-length mean direction of the given rows of vecs.
func mean(vecs [][]float64, rows []int) []float64 {
	if len(rows) == 0 {
		return nil
	}
	sum := make([]float64, len(vecs[rows[0]]))
	for _, r := range rows {
		for i, x := range vecs[r] {
			sum[i] += x
		}
	}
	var norm float64
	for _, x := range sum {
		norm += x * x
	}
	if norm == 0 {
		return sum
	}
	norm = math.Sqrt(norm)
	for i := range sum {
		sum[i] /= norm
	}
	return sum
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
