package facematch

import "math"

// Match finds the gallery entry nearest to the probe and accepts it only if its
// distance is within tolerance. Only the nearest entry is threshold-tested; a
// farther entry that also passes the tolerance never wins. Equal distances keep
// the earliest entry, so results follow gallery insertion order.
//
// Match has no side effects and is safe to call concurrently on the same entries.
func Match(probe Embedding, entries []Entry, tolerance float64) MatchResult {
	best := -1
	bestDist := math.Inf(1)

	for i := range entries {
		d := EuclideanDistance(probe, entries[i].Embedding)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}

	if best < 0 || bestDist > tolerance {
		return MatchResult{Distance: bestDist}
	}
	return MatchResult{Name: entries[best].Name, Distance: bestDist}
}

// Distances returns the distance from the probe to every entry, in entry order.
func Distances(probe Embedding, entries []Entry) []float64 {
	out := make([]float64, len(entries))
	for i := range entries {
		out[i] = EuclideanDistance(probe, entries[i].Embedding)
	}
	return out
}
