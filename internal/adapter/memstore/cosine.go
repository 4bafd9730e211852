package memstore

import "math"

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. It returns 0 when either vector has zero magnitude, when the
// dimensions differ, or when the inputs are not finite.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(sim) || math.IsInf(sim, 0):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}
