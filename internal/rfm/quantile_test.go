package rfm

import "testing"

func TestScoreEmptyPopulation(t *testing.T) {
	if got := Score(nil, 10); got != 1 {
		t.Fatalf("expected score 1 for empty population, got %d", got)
	}
}

func TestScoreSingleValue(t *testing.T) {
	if got := Score([]float64{42}, 42); got != 5 {
		t.Fatalf("expected the only value to score 5, got %d", got)
	}
}

func TestScoreUniformPopulation(t *testing.T) {
	values := []float64{7, 7, 7, 7, 7, 7}
	for i, v := range values {
		if got := Score(values, v); got != 5 {
			t.Fatalf("value %d: expected uniform population to score 5, got %d", i, got)
		}
	}
}

func TestScoreMaximumAlwaysFive(t *testing.T) {
	populations := [][]float64{
		{1, 2},
		{1, 2, 3},
		{5, 5, 9},
		{0, 0, 0, 0, 100},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}
	for i, values := range populations {
		max := values[0]
		for _, v := range values {
			if v > max {
				max = v
			}
		}
		if got := Score(values, max); got != 5 {
			t.Fatalf("population %d: expected max %v to score 5, got %d", i, max, got)
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	prev := 0
	for _, v := range values {
		got := Score(values, v)
		if got < prev {
			t.Fatalf("score decreased from %d to %d at value %v", prev, got, v)
		}
		if got < 1 || got > 5 {
			t.Fatalf("score %d out of range for value %v", got, v)
		}
		prev = got
	}

	if got := Score(values, 10); got != 1 {
		t.Fatalf("expected minimum of a large spread population to score 1, got %d", got)
	}
}

func TestScoreTiesGetSameScore(t *testing.T) {
	values := []float64{5, 5, 10, 10, 20, 20, 40, 40}
	for _, pair := range [][2]float64{{5, 5}, {10, 10}, {20, 20}, {40, 40}} {
		a, b := Score(values, pair[0]), Score(values, pair[1])
		if a != b {
			t.Fatalf("tied values %v scored differently: %d vs %d", pair, a, b)
		}
	}
}

func TestInvertScore(t *testing.T) {
	for raw, want := range map[int]int{1: 5, 2: 4, 3: 3, 4: 2, 5: 1} {
		if got := invertScore(raw); got != want {
			t.Fatalf("invertScore(%d) = %d, want %d", raw, got, want)
		}
	}
}
