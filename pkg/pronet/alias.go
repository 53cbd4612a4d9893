package pronet

import (
	"math"
	"math/rand"
)

// AliasTable is one bucket of a Walker alias table
type AliasTable struct {
	Alias int64
	Prob  float64
}

// AliasMethod draws indices in O(1) from a fixed discrete distribution
type AliasMethod []AliasTable

// BuildAliasMethod builds the alias table for distribution^power using
// Vose's construction. An all-zero distribution becomes uniform.
func BuildAliasMethod(distribution []float64, power float64) AliasMethod {
	n := len(distribution)
	if n == 0 {
		return nil
	}

	table := make(AliasMethod, n)

	sum := 0.0
	norm := make([]float64, n)
	for i, d := range distribution {
		if d > 0 {
			norm[i] = math.Pow(d, power)
		}
		sum += norm[i]
	}

	if sum == 0 {
		for i := range table {
			table[i] = AliasTable{Alias: int64(i), Prob: 1.0}
		}
		return table
	}

	for i := range norm {
		norm[i] = norm[i] * float64(n) / sum
	}

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, p := range norm {
		if p < 1.0 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		g := large[len(large)-1]
		large = large[:len(large)-1]

		table[l] = AliasTable{Alias: int64(g), Prob: norm[l]}

		norm[g] = norm[g] + norm[l] - 1.0
		if norm[g] < 1.0 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}

	// leftovers are 1.0 up to rounding
	for _, g := range large {
		table[g] = AliasTable{Alias: int64(g), Prob: 1.0}
	}
	for _, l := range small {
		table[l] = AliasTable{Alias: int64(l), Prob: 1.0}
	}

	return table
}

// Sample draws one index, or -1 from an empty table
func (am AliasMethod) Sample(rng *rand.Rand) int64 {
	if len(am) == 0 {
		return -1
	}
	i := rng.Intn(len(am))
	if rng.Float64() < am[i].Prob {
		return int64(i)
	}
	return am[i].Alias
}
