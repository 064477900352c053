// Package config defines process configuration and its loading.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and TRIGML_* env vars on top of the defaults.
// - Validation errors wrap ErrInvalidConfig; load errors wrap ErrLoadConfig.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Workers bounds the number of input files decoded concurrently.
	Workers int `koanf:"workers"`

	// BatchSize is the number of rows per inference call.
	BatchSize int `koanf:"batch_size"`

	// Threshold and Mode turn scores into trigger decisions.
	Threshold float64 `koanf:"threshold"`
	Mode      string  `koanf:"mode"`

	// FoldPolicy reduces per-fold standardized matrices: first, mean, index:<n>
	// or ensemble (score every fold with its own model and average).
	FoldPolicy string `koanf:"fold_policy"`

	// Dedupe drops repeated run/lumi/event ids across input files.
	Dedupe bool `koanf:"dedupe"`

	// DedupeSize bounds the id cache; 0 keeps every id.
	DedupeSize int `koanf:"dedupe_size"`

	// MetricsFile receives the prometheus text exposition at the end of a run.
	MetricsFile string `koanf:"metrics_file"`

	// UnprescaledBits maps L1 seed names to their index in the final
	// algorithm decision vector.
	UnprescaledBits map[string]int `koanf:"unprescaled_bits"`

	// Ntuple* override the L1Ntuple layout; empty keeps the reader default.
	// NtupleEventTree "none" disables event ids. NtupleBranches maps keys
	// such as jet_et or decisions to branch names.
	NtupleUpgradeTree string            `koanf:"ntuple_upgrade_tree"`
	NtupleUGTTree     string            `koanf:"ntuple_ugt_tree"`
	NtupleEventTree   string            `koanf:"ntuple_event_tree"`
	NtupleBranches    map[string]string `koanf:"ntuple_branches"`

	// TF* bind TensorFlow exports: SavedModel tags and the "op[:index]" names
	// of the feature input and score output. Empty keeps the Keras defaults.
	TFTags   []string `koanf:"tf_tags"`
	TFInput  string   `koanf:"tf_input"`
	TFOutput string   `koanf:"tf_output"`
}

// New creates a Config with defaults. The context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Workers:         runtime.NumCPU(),
		BatchSize:       4096,
		Threshold:       0.5,
		Mode:            "min",
		FoldPolicy:      "first",
		Dedupe:          false,
		DedupeSize:      0,
		MetricsFile:     "",
		UnprescaledBits: map[string]int{},
		NtupleBranches:  map[string]string{},
	}
}
