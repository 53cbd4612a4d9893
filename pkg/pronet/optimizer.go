package pronet

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RowGrads accumulates gradients for the rows of one embedding table that
// a batch touched. Repeated rows are summed.
type RowGrads map[int][]float64

// Add accumulates scale*vec into the gradient of row
func (rg RowGrads) Add(row int, scale float64, vec []float64) {
	g, ok := rg[row]
	if !ok {
		g = make([]float64, len(vec))
		rg[row] = g
	}
	floats.AddScaled(g, scale, vec)
}

// RMSProp applies sparse RMSProp steps to embedding tables:
//
//	ms  = rho*ms + (1-rho)*g^2
//	w  -= lr * g / sqrt(ms + epsilon)
//
// Only rows present in the gradient are updated, and the mean-square
// accumulator starts at one.
type RMSProp struct {
	LearnRate float64
	Rho       float64
	Epsilon   float64

	ms map[*mat.Dense]*mat.Dense
}

// NewRMSProp creates an optimizer with the given hyperparameters
func NewRMSProp(learnRate, rho, epsilon float64) *RMSProp {
	return &RMSProp{
		LearnRate: learnRate,
		Rho:       rho,
		Epsilon:   epsilon,
		ms:        make(map[*mat.Dense]*mat.Dense),
	}
}

// Step updates table in place with the accumulated row gradients
func (o *RMSProp) Step(table *mat.Dense, grads RowGrads) {
	ms := o.slot(table)
	for row, g := range grads {
		w := table.RawRowView(row)
		acc := ms.RawRowView(row)
		for d, gd := range g {
			acc[d] = o.Rho*acc[d] + (1-o.Rho)*gd*gd
			w[d] -= o.LearnRate * gd / math.Sqrt(acc[d]+o.Epsilon)
		}
	}
}

func (o *RMSProp) slot(table *mat.Dense) *mat.Dense {
	if ms, ok := o.ms[table]; ok {
		return ms
	}
	r, c := table.Dims()
	ones := make([]float64, r*c)
	for i := range ones {
		ones[i] = 1
	}
	ms := mat.NewDense(r, c, ones)
	o.ms[table] = ms
	return ms
}
