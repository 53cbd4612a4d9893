package line

import (
	"errors"
	"math"
	"testing"
)

func floatsAreEqual(a, b float64) bool {
	const tolerance = 1e-9
	return math.Abs(a-b) < tolerance
}

func logSigmoid(x float64) float64 {
	return math.Log(1 / (1 + math.Exp(-x)))
}

func TestLossSingleScore(t *testing.T) {
	loss := NewLoss()

	for _, s := range []float64{-3, -0.5, 0, 0.25, 2} {
		positive, _, err := loss.Eval([]float64{1}, []float64{s})
		if err != nil {
			t.Fatalf("Eval: %v", err)
		}
		if want := logSigmoid(s); !floatsAreEqual(positive, want) {
			t.Errorf("label 1, score %g: got %g, want log(sigmoid(s)) = %g", s, positive, want)
		}

		negative, _, err := loss.Eval([]float64{0}, []float64{s})
		if err != nil {
			t.Fatalf("Eval: %v", err)
		}
		if want := logSigmoid(-s); !floatsAreEqual(negative, want) {
			t.Errorf("label 0, score %g: got %g, want log(sigmoid(-s)) = %g", s, negative, want)
		}
	}
}

func TestLossMonotonicity(t *testing.T) {
	loss := NewLoss()
	scores := []float64{-2, -1, 0, 1, 2}

	prevPos, prevNeg := math.Inf(-1), math.Inf(1)
	for _, s := range scores {
		pos, _, err := loss.Eval([]float64{1}, []float64{s})
		if err != nil {
			t.Fatal(err)
		}
		neg, _, err := loss.Eval([]float64{0}, []float64{s})
		if err != nil {
			t.Fatal(err)
		}
		if pos <= prevPos {
			t.Errorf("positive objective not increasing at %g", s)
		}
		if neg >= prevNeg {
			t.Errorf("negative objective not decreasing at %g", s)
		}
		prevPos, prevNeg = pos, neg
	}
}

func TestLossBatchMeanAndGradient(t *testing.T) {
	labels := []float64{1, 0, 2, 0}
	scores := []float64{0.5, -1, 0.2, 1.5}

	objective, grad, err := NewLoss().Eval(labels, scores)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	n := float64(len(scores))
	wantObjective := 0.0
	for i := range scores {
		coeff := 2*labels[i] - 1
		wantObjective += logSigmoid(coeff*scores[i]) / n

		// d(-mean(log sigmoid(c*s)))/ds = -c * (1 - sigmoid(c*s)) / n
		sig := 1 / (1 + math.Exp(-coeff*scores[i]))
		wantGrad := -coeff * (1 - sig) / n
		if !floatsAreEqual(grad[i], wantGrad) {
			t.Errorf("grad[%d] = %g, want %g", i, grad[i], wantGrad)
		}
	}
	if !floatsAreEqual(objective, wantObjective) {
		t.Errorf("objective = %g, want %g", objective, wantObjective)
	}
}

func TestLossReusesGraphs(t *testing.T) {
	loss := NewLoss()
	for i := 0; i < 3; i++ {
		for _, n := range []int{4, 3} {
			labels := make([]float64, n)
			scores := make([]float64, n)
			obj, _, err := loss.Eval(labels, scores)
			if err != nil {
				t.Fatalf("Eval(%d): %v", n, err)
			}
			if !floatsAreEqual(obj, math.Log(0.5)) {
				t.Errorf("zero scores: objective = %g, want log(0.5)", obj)
			}
		}
	}
	if len(loss.graphs) != 2 {
		t.Errorf("cached %d graphs, want 2", len(loss.graphs))
	}
}

func TestLossErrors(t *testing.T) {
	loss := NewLoss()
	if _, _, err := loss.Eval([]float64{1, 0}, []float64{1}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("err = %v, want ErrShapeMismatch", err)
	}
	if _, _, err := loss.Eval(nil, nil); err == nil {
		t.Error("empty batch: expected an error")
	}
}
