package line

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/line/internal/config"
	"github.com/cnclabs/line/internal/metrics"
	"github.com/cnclabs/line/pkg/pronet"
)

var (
	// ErrNoGraph is returned by Build before a network is loaded.
	ErrNoGraph = errors.New("line: no network loaded")
	// ErrNotBuilt is returned when training or saving before Build.
	ErrNotBuilt = errors.New("line: model not built")
)

// History holds the mean objective of every completed epoch
type History struct {
	Objective []float64
}

// LINE implements the LINE (Large-scale Information Network Embedding)
// model trained with minibatches of positive and negative edges.
type LINE struct {
	cfg   config.Config
	pnet  *pronet.ProNet
	model *Model
	loss  *Loss
	opt   *pronet.RMSProp

	sampler pronet.NegativeSampler
	rng     *rand.Rand
	logger  *zap.Logger
	metrics *metrics.Training
	out     io.Writer
	runID   string
}

// Option configures a LINE instance
type Option func(*LINE)

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *LINE) { l.logger = logger }
}

// WithMetrics sets the collectors updated during training
func WithMetrics(m *metrics.Training) Option {
	return func(l *LINE) { l.metrics = m }
}

// WithRand sets the random source for initialisation, sampling and shuffling
func WithRand(rng *rand.Rand) Option {
	return func(l *LINE) { l.rng = rng }
}

// WithSampler replaces the negative link sampler
func WithSampler(s pronet.NegativeSampler) Option {
	return func(l *LINE) { l.sampler = s }
}

// WithProgress sets where the console progress report goes
func WithProgress(w io.Writer) Option {
	return func(l *LINE) { l.out = w }
}

// New creates a new LINE instance
func New(cfg config.Config, opts ...Option) *LINE {
	l := &LINE{
		cfg:     cfg,
		sampler: pronet.DegreeSampler{},
		logger:  zap.NewNop(),
		out:     os.Stdout,
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		l.rng = rand.New(rand.NewSource(seed))
	}
	if l.metrics == nil {
		l.metrics = metrics.NewTraining(nil)
	}
	l.logger = l.logger.With(zap.String("run_id", l.runID))
	return l
}

// RunID identifies this instance in logs
func (l *LINE) RunID() string { return l.runID }

// LoadEdgeList loads the network from an edge list file
func (l *LINE) LoadEdgeList(filename string, undirected bool) error {
	pn := pronet.NewProNet()
	pn.SetOutput(l.out)
	if err := pn.LoadEdgeList(filename, undirected); err != nil {
		return err
	}
	l.pnet = pn
	l.logger.Info("network loaded",
		zap.String("file", filename),
		zap.Int64("vertices", pn.NumVertices()),
		zap.Int("edges", pn.NumEdges()),
	)
	return nil
}

// SetGraph uses an already built network
func (l *LINE) SetGraph(pn *pronet.ProNet) { l.pnet = pn }

// Graph returns the loaded network, or nil
func (l *LINE) Graph() *pronet.ProNet { return l.pnet }

// Build creates the embedding tables, the loss and the optimizer
func (l *LINE) Build() error {
	if err := l.cfg.Validate(); err != nil {
		return err
	}
	if l.pnet == nil {
		return ErrNoGraph
	}

	nodes, _ := l.pnet.Adjacency().Dims()
	model, err := NewModel(nodes, l.cfg.Dim, Order(l.cfg.Order), l.rng)
	if err != nil {
		return err
	}
	l.model = model
	l.loss = NewLoss()
	l.opt = pronet.NewRMSProp(l.cfg.LearningRate, l.cfg.Rho, l.cfg.Epsilon)

	fmt.Fprintln(l.out, "Model Setting:")
	fmt.Fprintf(l.out, "\tdimension:\t\t%d\n", l.cfg.Dim)
	fmt.Fprintf(l.out, "\torder:\t\t\t%d\n", l.cfg.Order)
	rows, dim := model.Dims()
	l.logger.Info("model built", zap.Int("rows", rows), zap.Int("dim", dim), zap.Int("order", l.cfg.Order))
	return nil
}

// LearnEmbeddings trains the model for the configured number of epochs.
// One epoch is one cycle of the batch stream.
func (l *LINE) LearnEmbeddings() (History, error) {
	if l.model == nil {
		return History{}, ErrNotBuilt
	}

	gen, err := NewGenerator(l.pnet.Edges(), l.pnet.Weights(), l.cfg.NegRatio, l.cfg.BatchSize, l.sampler, l.rng)
	if err != nil {
		return History{}, err
	}
	perEpoch := gen.BatchesPerCycle()
	total := perEpoch * l.cfg.Epochs

	fmt.Fprintln(l.out, "Model:")
	fmt.Fprintln(l.out, "\t[LINE]")
	fmt.Fprintln(l.out, "Learning Parameters:")
	fmt.Fprintf(l.out, "\tepochs:\t\t\t%d\n", l.cfg.Epochs)
	fmt.Fprintf(l.out, "\tbatch_size:\t\t%d\n", l.cfg.BatchSize)
	fmt.Fprintf(l.out, "\tneg_ratio:\t\t%.2f\n", l.cfg.NegRatio)
	fmt.Fprintf(l.out, "\tlearning_rate:\t\t%.6f\n", l.cfg.LearningRate)
	fmt.Fprintln(l.out, "Start Training:")

	l.logger.Info("training started",
		zap.Int("pool", gen.Len()),
		zap.Int("negatives", gen.Negatives()),
		zap.Int("batches_per_epoch", perEpoch),
		zap.Int("epochs", l.cfg.Epochs),
	)

	history := History{Objective: make([]float64, 0, l.cfg.Epochs)}
	step := 0
	for epoch := 1; epoch <= l.cfg.Epochs; epoch++ {
		l.metrics.Epoch.Set(float64(epoch))
		sum, seen := 0.0, 0
		for b := 0; b < perEpoch; b++ {
			batch := gen.Next()
			objective, err := l.step(batch)
			if err != nil {
				return history, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}
			sum += objective * float64(batch.Len())
			seen += batch.Len()

			l.metrics.Batches.Inc()
			l.metrics.Edges.Add(float64(batch.Len()))
			l.metrics.BatchObjective.Observe(objective)

			step++
			if step%pronet.Monitor == 0 || b == perEpoch-1 {
				fmt.Fprintf(l.out, "\tEpoch: %d/%d\tObjective: %.6f\tProgress: %.3f %%\r",
					epoch, l.cfg.Epochs, sum/float64(seen), float64(step)/float64(total)*100)
			}
		}

		mean := sum / float64(seen)
		history.Objective = append(history.Objective, mean)
		l.metrics.EpochObjective.Set(mean)
		l.logger.Info("epoch finished", zap.Int("epoch", epoch), zap.Float64("objective", mean))
	}
	fmt.Fprintln(l.out)

	return history, nil
}

// step applies one gradient update and returns the batch objective
func (l *LINE) step(batch Batch) (float64, error) {
	scores, err := l.model.Forward(batch.Left, batch.Right)
	if err != nil {
		return 0, err
	}
	objective, grad, err := l.loss.Eval(batch.Labels, scores)
	if err != nil {
		return 0, err
	}

	// both towers read pre-update rows; shared tables share one accumulator
	vertexGrads := pronet.RowGrads{}
	contextGrads := vertexGrads
	if l.model.Order() == Second {
		contextGrads = pronet.RowGrads{}
	}
	for i := range scores {
		left, right := int(batch.Left[i]), int(batch.Right[i])
		vertexGrads.Add(left, grad[i], l.model.Context().RawRowView(right))
		contextGrads.Add(right, grad[i], l.model.Vertex().RawRowView(left))
	}

	l.opt.Step(l.model.Vertex(), vertexGrads)
	if l.model.Order() == Second {
		l.opt.Step(l.model.Context(), contextGrads)
	}
	return objective, nil
}

// Encoder returns the built two-tower model for embedding extraction
func (l *LINE) Encoder() *Model { return l.model }

// Embeddings returns the vertex table, one row per vertex id plus the
// trailing spare row
func (l *LINE) Embeddings() (*mat.Dense, error) {
	if l.model == nil {
		return nil, ErrNotBuilt
	}
	return l.model.Vertex(), nil
}

// SaveWeights saves the learned vertex embeddings to a file
func (l *LINE) SaveWeights(filename string, format pronet.Format) error {
	if l.model == nil {
		return ErrNotBuilt
	}
	fmt.Fprintln(l.out, "Save Model:")

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := pronet.WriteEmbeddings(file, format, l.pnet.VertexKeys, l.model.Vertex()); err != nil {
		file.Close()
		return fmt.Errorf("failed to write embeddings: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	fmt.Fprintf(l.out, "\tSave to <%s>\n", filename)
	l.logger.Info("embeddings saved", zap.String("file", filename), zap.String("format", string(format)))
	return nil
}
