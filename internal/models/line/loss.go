package line

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Loss evaluates the LINE proximity objective
//
//	objective = mean(log(sigmoid((2*label - 1) * score)))
//
// and the gradient of its negation with respect to the scores, so that a
// minimising optimizer raises the objective.
type Loss struct {
	// one compiled graph per batch length; a cycle has at most two
	graphs map[int]*lossGraph
}

type lossGraph struct {
	g      *gorgonia.ExprGraph
	scores *gorgonia.Node
	labels *gorgonia.Node
	vm     gorgonia.VM

	objective gorgonia.Value
	grad      gorgonia.Value
}

// NewLoss creates a loss with an empty graph cache
func NewLoss() *Loss {
	return &Loss{graphs: make(map[int]*lossGraph)}
}

// Eval returns the objective and d(-objective)/d(score) for one batch
func (l *Loss) Eval(labels, scores []float64) (float64, []float64, error) {
	if len(labels) != len(scores) {
		return 0, nil, fmt.Errorf("%w: %d labels, %d scores", ErrShapeMismatch, len(labels), len(scores))
	}
	n := len(scores)
	if n == 0 {
		return 0, nil, fmt.Errorf("line: empty batch")
	}

	lg, ok := l.graphs[n]
	if !ok {
		var err error
		if lg, err = newLossGraph(n); err != nil {
			return 0, nil, err
		}
		l.graphs[n] = lg
	}
	defer lg.vm.Reset()

	scoreT := tensor.New(tensor.WithShape(n), tensor.WithBacking(append([]float64(nil), scores...)))
	labelT := tensor.New(tensor.WithShape(n), tensor.WithBacking(append([]float64(nil), labels...)))
	if err := gorgonia.Let(lg.scores, scoreT); err != nil {
		return 0, nil, fmt.Errorf("bind scores: %w", err)
	}
	if err := gorgonia.Let(lg.labels, labelT); err != nil {
		return 0, nil, fmt.Errorf("bind labels: %w", err)
	}
	if err := lg.vm.RunAll(); err != nil {
		return 0, nil, fmt.Errorf("evaluate loss: %w", err)
	}

	if lg.objective == nil || lg.grad == nil {
		return 0, nil, fmt.Errorf("line: loss graph produced no value")
	}
	objective, ok := lg.objective.Data().(float64)
	if !ok {
		return 0, nil, fmt.Errorf("line: unexpected objective type %T", lg.objective.Data())
	}
	switch grad := lg.grad.Data().(type) {
	case []float64:
		return objective, append([]float64(nil), grad...), nil
	case float64:
		// single-pair batches may collapse to a scalar
		return objective, []float64{grad}, nil
	default:
		return 0, nil, fmt.Errorf("line: unexpected gradient type %T", grad)
	}
}

func newLossGraph(n int) (*lossGraph, error) {
	g := gorgonia.NewGraph()
	scores := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(n), gorgonia.WithName("scores"))
	labels := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(n), gorgonia.WithName("labels"))

	var (
		twice, coeff, margin, sig, logs, objective, cost *gorgonia.Node
		err                                              error
	)
	if twice, err = gorgonia.Mul(labels, gorgonia.NewConstant(2.0)); err != nil {
		return nil, err
	}
	if coeff, err = gorgonia.Sub(twice, gorgonia.NewConstant(1.0)); err != nil {
		return nil, err
	}
	if margin, err = gorgonia.HadamardProd(coeff, scores); err != nil {
		return nil, err
	}
	if sig, err = gorgonia.Sigmoid(margin); err != nil {
		return nil, err
	}
	if logs, err = gorgonia.Log(sig); err != nil {
		return nil, err
	}
	if objective, err = gorgonia.Mean(logs); err != nil {
		return nil, err
	}
	if cost, err = gorgonia.Neg(objective); err != nil {
		return nil, err
	}

	grads, err := gorgonia.Grad(cost, scores)
	if err != nil {
		return nil, fmt.Errorf("differentiate loss: %w", err)
	}

	lg := &lossGraph{
		g:      g,
		scores: scores,
		labels: labels,
	}
	gorgonia.Read(objective, &lg.objective)
	gorgonia.Read(grads[0], &lg.grad)
	lg.vm = gorgonia.NewTapeMachine(g)
	return lg, nil
}
