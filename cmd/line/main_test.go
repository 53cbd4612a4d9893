package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/cnclabs/line/internal/config"
)

func TestApplyFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.yaml")
	if err := os.WriteFile(path, []byte("dim: 16\nepochs: 4\nformat: binary16\ntrain: file.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg config.Config)
	}{
		{
			name: "no flags keeps the file",
			args: []string{"-config", path},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Dim != 16 || cfg.Epochs != 4 || cfg.Format != "binary16" || cfg.Train != "file.txt" {
					t.Errorf("file values lost: %+v", cfg)
				}
			},
		},
		{
			name: "flags override the file",
			args: []string{"-config", path, "-dimensions", "32", "-train", "net.txt", "-format", "text"},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Dim != 32 || cfg.Train != "net.txt" || cfg.Format != "text" {
					t.Errorf("overrides not applied: %+v", cfg)
				}
				if cfg.Epochs != 4 {
					t.Errorf("epochs = %d, want 4 from the file", cfg.Epochs)
				}
			},
		},
		{
			name: "every typed flag",
			args: []string{
				"-config", path, "-save", "rep.bin", "-undirected=false", "-order", "1",
				"-batch_size", "8", "-epochs", "2", "-neg_ratio", "2.5", "-alpha", "0.1",
				"-seed", "99", "-metrics_addr", ":9090",
			},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Save != "rep.bin" || cfg.Undirected || cfg.Order != 1 || cfg.BatchSize != 8 {
					t.Errorf("unexpected values: %+v", cfg)
				}
				if cfg.Epochs != 2 || cfg.NegRatio != 2.5 || cfg.LearningRate != 0.1 {
					t.Errorf("unexpected values: %+v", cfg)
				}
				if cfg.Seed != 99 || cfg.MetricsAddr != ":9090" {
					t.Errorf("unexpected values: %+v", cfg)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFlagSet(config.Default())
			if err := fs.Parse(tc.args); err != nil {
				t.Fatalf("Parse: %v", err)
			}
			cfg, err := config.Load(fs.Lookup("config").Value.String())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if err := applyFlags(fs, &cfg); err != nil {
				t.Fatalf("applyFlags: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

// plainValue implements flag.Value without flag.Getter
type plainValue string

func (v *plainValue) String() string     { return string(*v) }
func (v *plainValue) Set(s string) error { *v = plainValue(s); return nil }

func TestApplyFlagsRejectsUntypedFlags(t *testing.T) {
	fs := newFlagSet(config.Default())
	var extra plainValue
	fs.Var(&extra, "extra", "a value without a getter")
	if err := fs.Parse([]string{"-extra", "x"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	if err := applyFlags(fs, &cfg); err == nil {
		t.Error("expected an error for a flag without a typed value")
	}
}

func TestApplyFlagsRejectsMistypedFlags(t *testing.T) {
	// dimensions registered as a string instead of an int
	fs := flag.NewFlagSet("line", flag.ContinueOnError)
	fs.String("dimensions", "", "")
	if err := fs.Parse([]string{"-dimensions", "12"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	if err := applyFlags(fs, &cfg); err == nil {
		t.Error("expected an error for a mistyped flag")
	}
	if cfg.Dim != config.Default().Dim {
		t.Errorf("Dim = %d, want the default", cfg.Dim)
	}
}
