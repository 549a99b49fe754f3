package rfm

import (
	"math"
	"sort"
)

// Score places target into one of five rank buckets over the population,
// higher raw value means higher score. Thresholds are the 20/40/60/80th
// percentile values (nearest rank); a target at or above a threshold lands
// in the bucket above it, so identical inputs always produce identical
// scores and the population maximum always scores 5.
func Score(values []float64, target float64) int {
	n := len(values)
	if n == 0 {
		return 1
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	score := 1
	for k := 1; k <= 4; k++ {
		idx := int(math.Ceil(float64(n)*float64(k)*0.2)) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		if target >= sorted[idx] {
			score = k + 1
		}
	}

	return score
}

// invertScore flips a 1..5 score so that smaller raw values rank best.
// Used for recency, where fewer days since the last purchase is better.
func invertScore(score int) int {
	return 6 - score
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}
