package pronet

import (
	"math"
	"math/rand"
	"testing"
)

func TestAliasMethodFrequencies(t *testing.T) {
	testCases := []struct {
		name         string
		distribution []float64
		power        float64
		want         []float64
	}{
		{"proportional", []float64{1, 2, 3, 4}, 1.0, []float64{0.1, 0.2, 0.3, 0.4}},
		{"zero mass entries never drawn", []float64{0, 5, 0, 5}, 1.0, []float64{0, 0.5, 0, 0.5}},
		{"all zero is uniform", []float64{0, 0, 0, 0}, 1.0, []float64{0.25, 0.25, 0.25, 0.25}},
		{"power smooths", []float64{1, 16}, 0.5, []float64{0.2, 0.8}},
	}

	const draws = 200000
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			table := BuildAliasMethod(tc.distribution, tc.power)
			counts := make([]float64, len(tc.distribution))
			for i := 0; i < draws; i++ {
				counts[table.Sample(rng)]++
			}
			for i, want := range tc.want {
				got := counts[i] / draws
				if math.Abs(got-want) > 0.01 {
					t.Errorf("p[%d] = %.4f, want %.4f", i, got, want)
				}
			}
		})
	}
}

func TestAliasMethodEmpty(t *testing.T) {
	table := BuildAliasMethod(nil, 1.0)
	if got := table.Sample(rand.New(rand.NewSource(1))); got != -1 {
		t.Errorf("Sample on empty table = %d, want -1", got)
	}
}
