// Package config holds the hyperparameters of a LINE training run.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full set of options for a training run.
type Config struct {
	// Dim is the embedding width.
	Dim int `yaml:"dim"`
	// BatchSize is the number of edges per minibatch.
	BatchSize int `yaml:"batch_size"`
	// Epochs is the number of full passes over the batch cycle.
	Epochs int `yaml:"epochs"`
	// NegRatio is the negative-to-positive edge multiplier.
	NegRatio float64 `yaml:"neg_ratio"`
	// Order is the proximity order: 1 shares one table across both
	// towers, 2 keeps a separate context table.
	Order int `yaml:"order"`

	// RMSProp hyperparameters
	LearningRate float64 `yaml:"learning_rate"`
	Rho          float64 `yaml:"rho"`
	Epsilon      float64 `yaml:"epsilon"`

	// Seed feeds every random draw of the run. Zero picks a time based seed.
	Seed int64 `yaml:"seed"`

	Train      string `yaml:"train"`
	Undirected bool   `yaml:"undirected"`
	Save       string `yaml:"save"`
	// Format is "text" or "binary16".
	Format string `yaml:"format"`

	// MetricsAddr, when set, serves Prometheus metrics during training.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the settings used when neither file nor flags override them.
func Default() Config {
	return Config{
		Dim:          64,
		BatchSize:    1024,
		Epochs:       10,
		NegRatio:     5,
		Order:        2,
		LearningRate: 0.01,
		Rho:          0.9,
		Epsilon:      1e-10,
		Undirected:   true,
		Format:       "text",
	}
}

// Load reads the YAML configuration file using strict parsing.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the ranges of every option.
func (c Config) Validate() error {
	switch {
	case c.Dim <= 0:
		return fmt.Errorf("%w: dim must be positive, got %d", ErrInvalid, c.Dim)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalid, c.BatchSize)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalid, c.Epochs)
	case c.NegRatio < 0:
		return fmt.Errorf("%w: neg_ratio must be >= 0, got %g", ErrInvalid, c.NegRatio)
	case c.Order != 1 && c.Order != 2:
		return fmt.Errorf("%w: order must be 1 or 2, got %d", ErrInvalid, c.Order)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive, got %g", ErrInvalid, c.LearningRate)
	case c.Rho < 0 || c.Rho >= 1:
		return fmt.Errorf("%w: rho must be in [0, 1), got %g", ErrInvalid, c.Rho)
	case c.Epsilon < 0:
		return fmt.Errorf("%w: epsilon must be >= 0, got %g", ErrInvalid, c.Epsilon)
	case c.Format != "text" && c.Format != "binary16":
		return fmt.Errorf("%w: format must be text or binary16, got %q", ErrInvalid, c.Format)
	}
	return nil
}
