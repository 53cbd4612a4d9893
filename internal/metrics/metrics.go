package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training groups the collectors updated by a LINE training run.
type Training struct {
	Batches        prometheus.Counter
	Edges          prometheus.Counter
	Epoch          prometheus.Gauge
	EpochObjective prometheus.Gauge
	BatchObjective prometheus.Histogram
}

// NewTraining registers the training collectors with reg.
// A nil reg creates unregistered collectors.
func NewTraining(reg prometheus.Registerer) *Training {
	factory := promauto.With(reg)
	return &Training{
		Batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "line_batches_total",
			Help: "Total number of minibatches applied to the embedding tables",
		}),
		Edges: factory.NewCounter(prometheus.CounterOpts{
			Name: "line_edges_total",
			Help: "Total number of positive and negative edges trained on",
		}),
		Epoch: factory.NewGauge(prometheus.GaugeOpts{
			Name: "line_epoch",
			Help: "Epoch currently being trained (1-based)",
		}),
		EpochObjective: factory.NewGauge(prometheus.GaugeOpts{
			Name: "line_epoch_objective",
			Help: "Mean log-sigmoid objective of the last completed epoch",
		}),
		BatchObjective: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "line_batch_objective",
			Help: "Log-sigmoid objective per minibatch",
			// the objective is <= 0; early batches sit near log(0.5)
			Buckets: []float64{-5, -2, -1, -0.693, -0.5, -0.25, -0.1, -0.05, -0.01, 0},
		}),
	}
}
