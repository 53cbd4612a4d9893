package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cnclabs/line/internal/config"
	"github.com/cnclabs/line/internal/metrics"
	"github.com/cnclabs/line/internal/models/line"
	"github.com/cnclabs/line/pkg/pronet"
)

func main() {
	fs := newFlagSet(config.Default())
	fs.Usage = func() {
		fmt.Println("[SMORe-Go]")
		fmt.Println("\tGolang implementation of LINE with minibatch negative sampling")
		fmt.Println()
		fmt.Println("Options Description:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("./line -train net.txt -save rep.txt -undirected -dimensions 64 -order 2 -batch_size 1024 -epochs 10 -neg_ratio 5 -alpha 0.01")
	}
	fs.Parse(os.Args[1:])

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(fs.Lookup("config").Value.String())
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}
	if err := applyFlags(fs, &cfg); err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	if cfg.Train == "" || cfg.Save == "" {
		fs.Usage()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("training failed", zap.Error(err))
		os.Exit(1)
	}
}

func newFlagSet(defaults config.Config) *flag.FlagSet {
	fs := flag.NewFlagSet("line", flag.ExitOnError)
	fs.String("config", "", "YAML configuration file")
	fs.String("train", defaults.Train, "Train the Network data")
	fs.String("save", defaults.Save, "Save the representation data")
	fs.Int("dimensions", defaults.Dim, "Dimension of vertex representation")
	fs.Bool("undirected", defaults.Undirected, "Whether the edge is undirected")
	fs.Int("order", defaults.Order, "Order of proximity (1 or 2)")
	fs.Int("batch_size", defaults.BatchSize, "Number of edges per minibatch")
	fs.Int("epochs", defaults.Epochs, "Number of passes over the edge pool")
	fs.Float64("neg_ratio", defaults.NegRatio, "Negative links drawn per positive edge")
	fs.Float64("alpha", defaults.LearningRate, "RMSProp learning rate")
	fs.Int64("seed", defaults.Seed, "Random seed (0 for time based)")
	fs.String("format", defaults.Format, "Output format: text or binary16")
	fs.String("metrics_addr", defaults.MetricsAddr, "Serve Prometheus metrics on this address")
	return fs
}

// assign stores v in dst when it holds a T
func assign[T any](dst *T, v any) bool {
	x, ok := v.(T)
	if ok {
		*dst = x
	}
	return ok
}

// applyFlags copies the flags set on the command line over the file configuration
func applyFlags(fs *flag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			err = fmt.Errorf("flag %q has no typed value", f.Name)
			return
		}
		v := getter.Get()
		switch f.Name {
		case "train":
			ok = assign(&cfg.Train, v)
		case "save":
			ok = assign(&cfg.Save, v)
		case "dimensions":
			ok = assign(&cfg.Dim, v)
		case "undirected":
			ok = assign(&cfg.Undirected, v)
		case "order":
			ok = assign(&cfg.Order, v)
		case "batch_size":
			ok = assign(&cfg.BatchSize, v)
		case "epochs":
			ok = assign(&cfg.Epochs, v)
		case "neg_ratio":
			ok = assign(&cfg.NegRatio, v)
		case "alpha":
			ok = assign(&cfg.LearningRate, v)
		case "seed":
			ok = assign(&cfg.Seed, v)
		case "format":
			ok = assign(&cfg.Format, v)
		case "metrics_addr":
			ok = assign(&cfg.MetricsAddr, v)
		case "config":
		default:
			err = fmt.Errorf("unhandled flag %q", f.Name)
			return
		}
		if !ok {
			err = fmt.Errorf("flag %q: unexpected value type %T", f.Name, v)
		}
	})
	return err
}

func run(cfg config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	trainingMetrics := metrics.NewTraining(registry)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	l := line.New(cfg,
		line.WithLogger(logger),
		line.WithMetrics(trainingMetrics),
		line.WithRand(rand.New(rand.NewSource(seed))),
	)
	logger.Info("starting run", zap.String("run_id", l.RunID()), zap.Int64("seed", seed))

	var server *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	eg, ctx := errgroup.WithContext(context.Background())
	if server != nil {
		eg.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	eg.Go(func() error {
		if server != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				server.Shutdown(shutdownCtx)
			}()
		}
		return train(l, cfg)
	})
	return eg.Wait()
}

func train(l *line.LINE, cfg config.Config) error {
	if err := l.LoadEdgeList(cfg.Train, cfg.Undirected); err != nil {
		return fmt.Errorf("loading edge list: %w", err)
	}
	if err := l.Build(); err != nil {
		return fmt.Errorf("building model: %w", err)
	}
	if _, err := l.LearnEmbeddings(); err != nil {
		return fmt.Errorf("learning embeddings: %w", err)
	}
	if err := l.SaveWeights(cfg.Save, pronet.Format(cfg.Format)); err != nil {
		return fmt.Errorf("saving weights: %w", err)
	}
	return nil
}
