package line

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Order specifies LINE order (1st or 2nd)
type Order int

const (
	First  Order = 1
	Second Order = 2
)

// ErrShapeMismatch is returned when parallel columns differ in length.
var ErrShapeMismatch = errors.New("line: column lengths differ")

// Model is the two-tower scorer: a vertex (left) table and a context
// (right) table of shape (nodes+1, dim), combined by a dot product.
// Row 0 is an ordinary trainable row.
type Model struct {
	dim     int
	order   Order
	vertex  *mat.Dense
	context *mat.Dense
}

// NewModel builds the embedding tables for nodes vertices. With First
// order both towers share the vertex table.
func NewModel(nodes, dim int, order Order, rng *rand.Rand) (*Model, error) {
	if nodes < 0 || dim <= 0 {
		return nil, fmt.Errorf("line: cannot build model with %d nodes and dim %d", nodes, dim)
	}
	if order != First && order != Second {
		return nil, fmt.Errorf("line: order must be 1 or 2, got %d", order)
	}

	m := &Model{
		dim:    dim,
		order:  order,
		vertex: initTable(nodes+1, dim, rng),
	}
	if order == First {
		m.context = m.vertex
	} else {
		m.context = initTable(nodes+1, dim, rng)
	}
	return m, nil
}

func initTable(rows, dim int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*dim)
	for i := range data {
		data[i] = (rng.Float64() - 0.5) / float64(dim)
	}
	return mat.NewDense(rows, dim, data)
}

// Dims returns the shape of each table: (nodes+1, dim)
func (m *Model) Dims() (rows, dim int) { return m.vertex.Dims() }

// Order returns the proximity order the model was built with
func (m *Model) Order() Order { return m.order }

// Vertex returns the left tower table
func (m *Model) Vertex() *mat.Dense { return m.vertex }

// Context returns the right tower table. It is the vertex table for First order.
func (m *Model) Context() *mat.Dense { return m.context }

// Score is the dot product of the left embedding of l and the right embedding of r
func (m *Model) Score(l, r int64) float64 {
	return floats.Dot(m.vertex.RawRowView(int(l)), m.context.RawRowView(int(r)))
}

// Forward scores a batch of (left, right) pairs
func (m *Model) Forward(left, right []int64) ([]float64, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("%w: %d left, %d right", ErrShapeMismatch, len(left), len(right))
	}
	if err := m.checkRange(left, right); err != nil {
		return nil, err
	}
	scores := make([]float64, len(left))
	for i := range left {
		scores[i] = m.Score(left[i], right[i])
	}
	return scores, nil
}

// Encode returns the raw left and right embeddings of a batch, one row per pair
func (m *Model) Encode(left, right []int64) (lv, rv *mat.Dense, err error) {
	if len(left) != len(right) {
		return nil, nil, fmt.Errorf("%w: %d left, %d right", ErrShapeMismatch, len(left), len(right))
	}
	if len(left) == 0 {
		return nil, nil, fmt.Errorf("line: empty batch")
	}
	if err := m.checkRange(left, right); err != nil {
		return nil, nil, err
	}
	lv = mat.NewDense(len(left), m.dim, nil)
	rv = mat.NewDense(len(right), m.dim, nil)
	for i := range left {
		lv.SetRow(i, m.vertex.RawRowView(int(left[i])))
		rv.SetRow(i, m.context.RawRowView(int(right[i])))
	}
	return lv, rv, nil
}

func (m *Model) checkRange(left, right []int64) error {
	rows, _ := m.vertex.Dims()
	for i := range left {
		if left[i] < 0 || left[i] >= int64(rows) || right[i] < 0 || right[i] >= int64(rows) {
			return fmt.Errorf("line: pair %d (%d, %d) outside table of %d rows", i, left[i], right[i], rows)
		}
	}
	return nil
}
