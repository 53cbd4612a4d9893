package pronet

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/tidwall/btree"
)

var (
	// ErrNegativeRatio is returned for a ratio below zero.
	ErrNegativeRatio = errors.New("pronet: negative sampling ratio must be >= 0")
	// ErrNegativeExhausted is returned when too many draws hit positive
	// edges or self loops, as happens on (near) complete graphs.
	ErrNegativeExhausted = errors.New("pronet: could not draw enough negative links")
)

// NegativeSampler draws node pairs presumed to be non-edges.
type NegativeSampler interface {
	// SampleNegativeLinks returns round(ratio * len(edges)) pairs.
	// weights is aligned with edges.
	SampleNegativeLinks(edges []Edge, weights []float64, ratio float64, rng *rand.Rand) ([]Edge, error)
}

// NegativeCount is the number of negative links drawn for m positive edges.
func NegativeCount(m int, ratio float64) int {
	return int(math.Round(ratio * float64(m)))
}

// DegreeSampler draws the source of a negative pair proportional to its
// weighted out-degree and the target from the weighted degree^0.75 noise
// distribution.
// Self loops and pairs present in the edge list are rejected.
type DegreeSampler struct {
	// MaxRejects bounds the rejected draws per call; zero picks a bound
	// proportional to the requested count.
	MaxRejects int
}

// SampleNegativeLinks implements NegativeSampler
func (s DegreeSampler) SampleNegativeLinks(edges []Edge, weights []float64, ratio float64, rng *rand.Rand) ([]Edge, error) {
	if len(edges) != len(weights) {
		return nil, fmt.Errorf("%w: %d edges, %d weights", ErrShapeMismatch, len(edges), len(weights))
	}
	if ratio < 0 || math.IsNaN(ratio) {
		return nil, fmt.Errorf("%w: got %g", ErrNegativeRatio, ratio)
	}
	count := NegativeCount(len(edges), ratio)
	if count == 0 {
		return nil, nil
	}

	n := int64(0)
	for _, e := range edges {
		n = max(n, e.Source+1, e.Target+1)
	}
	vertices := VertexDegrees(n, edges, weights)
	outDegree := make([]float64, n)
	degree := make([]float64, n)
	for vid, v := range vertices {
		outDegree[vid] = v.OutDegree
		degree[vid] = v.OutDegree + v.InDegree
	}
	sources := BuildAliasMethod(outDegree, 1.0)
	noise := BuildAliasMethod(degree, PowerSample)

	positives := btree.NewBTreeG[Edge](edgeLess)
	for _, e := range edges {
		positives.Set(e)
	}

	maxRejects := s.MaxRejects
	if maxRejects <= 0 {
		maxRejects = 100*count + 1000
	}

	negatives := make([]Edge, 0, count)
	rejects := 0
	for len(negatives) < count {
		cand := Edge{Source: sources.Sample(rng), Target: noise.Sample(rng)}
		if _, found := positives.Get(cand); found || cand.Source == cand.Target {
			rejects++
			if rejects > maxRejects {
				return nil, fmt.Errorf("%w: %d of %d after %d rejects", ErrNegativeExhausted, len(negatives), count, rejects)
			}
			continue
		}
		negatives = append(negatives, cand)
	}
	return negatives, nil
}

func edgeLess(a, b Edge) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Target < b.Target
}
