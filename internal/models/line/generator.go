package line

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/line/pkg/pronet"
)

// ErrBatchSize is returned for a non-positive batch size.
var ErrBatchSize = errors.New("line: batch size must be positive")

// Batch is one minibatch of (left, right, label) columns of equal length.
// Labels are edge weights for positive pairs and zero for negative ones.
type Batch struct {
	Left   []int64
	Right  []int64
	Labels []float64
}

// Len is the number of pairs in the batch
func (b Batch) Len() int { return len(b.Labels) }

// Columns returns the batch as three (n x 1) column matrices
func (b Batch) Columns() (left, right, labels *mat.Dense) {
	n := b.Len()
	left = mat.NewDense(n, 1, nil)
	right = mat.NewDense(n, 1, nil)
	labels = mat.NewDense(n, 1, append([]float64(nil), b.Labels...))
	for i := 0; i < n; i++ {
		left.Set(i, 0, float64(b.Left[i]))
		right.Set(i, 0, float64(b.Right[i]))
	}
	return left, right, labels
}

// Generator yields an endless cyclic stream of minibatches over one
// shuffled pool of positive and negative edges. The pool is shuffled once
// at construction; wrapping around replays the same order.
type Generator struct {
	edges     []pronet.Edge
	weights   []float64
	batchSize int
	negatives int
	cursor    int
}

// NewGenerator draws negative links with sampler, appends them to the
// positive edges with zero weight and permutes the combined pool.
func NewGenerator(
	edges []pronet.Edge,
	weights []float64,
	negRatio float64,
	batchSize int,
	sampler pronet.NegativeSampler,
	rng *rand.Rand,
) (*Generator, error) {
	if len(edges) != len(weights) {
		return nil, fmt.Errorf("%w: %d edges, %d weights", ErrShapeMismatch, len(edges), len(weights))
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBatchSize, batchSize)
	}

	negative, err := sampler.SampleNegativeLinks(edges, weights, negRatio, rng)
	if err != nil {
		return nil, fmt.Errorf("sample negative links: %w", err)
	}

	m := len(edges) + len(negative)
	if m == 0 {
		return nil, fmt.Errorf("line: no edges to train on")
	}

	pool := make([]pronet.Edge, 0, m)
	pool = append(pool, edges...)
	pool = append(pool, negative...)
	labels := make([]float64, m)
	copy(labels, weights)

	perm := rng.Perm(m)
	g := &Generator{
		edges:     make([]pronet.Edge, m),
		weights:   make([]float64, m),
		batchSize: batchSize,
		negatives: len(negative),
	}
	for i, j := range perm {
		g.edges[i] = pool[j]
		g.weights[i] = labels[j]
	}
	return g, nil
}

// Len is the size of the shuffled pool
func (g *Generator) Len() int { return len(g.edges) }

// Negatives is the number of sampled negative links in the pool
func (g *Generator) Negatives() int { return g.negatives }

// BatchesPerCycle is ceil(Len / batch size)
func (g *Generator) BatchesPerCycle() int {
	return (len(g.edges) + g.batchSize - 1) / g.batchSize
}

// Pool returns the shuffled edges and labels. Callers must not modify them.
func (g *Generator) Pool() ([]pronet.Edge, []float64) { return g.edges, g.weights }

// Next returns the batch under the cursor and advances, wrapping to the
// first batch after the last one. The last batch of a cycle may be short.
func (g *Generator) Next() Batch {
	start := g.cursor * g.batchSize
	end := min(start+g.batchSize, len(g.edges))

	b := Batch{
		Left:   make([]int64, end-start),
		Right:  make([]int64, end-start),
		Labels: make([]float64, end-start),
	}
	for i, e := range g.edges[start:end] {
		b.Left[i] = e.Source
		b.Right[i] = e.Target
	}
	copy(b.Labels, g.weights[start:end])

	g.cursor++
	if g.cursor == g.BatchesPerCycle() {
		g.cursor = 0
	}
	return b
}

// Reset moves the cursor back to the first batch of the same pool
func (g *Generator) Reset() { g.cursor = 0 }
