// Package model describes a trained-model directory: its configuration,
// the model kind that selects a shaping strategy, and the file layout of the
// per-fold scalers and networks stored next to it.
package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/trigml/internal/domain/types"
)

// File names inside a model directory.
const (
	ConfigFile   = "config.yaml"
	scalerPrefix = "scaler_"
	modelPrefix  = "model_"
	fileExt      = ".yaml"
	graphExt     = ".pb"

	// SavedModelFile marks a TensorFlow SavedModel export directory.
	SavedModelFile = "saved_model.pb"
)

// Kind is the closed set of known model kinds.
type Kind int

// Known model kinds.
const (
	KindTopo Kind = iota + 1
	KindAnomaly
)

// String returns the configuration tag of the kind.
func (k Kind) String() string {
	switch k {
	case KindTopo:
		return "topo"
	case KindAnomaly:
		return "anomaly"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind maps a configuration type tag to a Kind.
func ParseKind(tag string) (Kind, error) {
	switch tag {
	case "topo":
		return KindTopo, nil
	case "anomaly":
		return KindAnomaly, nil
	default:
		return 0, fmt.Errorf("%w: model type %q", types.ErrUnsupportedFormat, tag)
	}
}

// Config holds the fixed capacities of a model. It is read-only after Load.
type Config struct {
	Kind     Kind
	Folds    int
	NJets    int
	NMuons   int
	NEgammas int
}

// fileConfig mirrors the on-disk keys of config.yaml.
type fileConfig struct {
	Type     string `koanf:"type"`
	Folds    int    `koanf:"folds"`
	NJets    int    `koanf:"nJets"`
	NMuons   int    `koanf:"nMuons"`
	NEgammas int    `koanf:"nEgammas"`
}

var requiredKeys = []string{"type", "folds", "nJets", "nMuons", "nEgammas"} //nolint:gochecknoglobals // fixed key list

// Load reads dir/config.yaml.
func Load(_ context.Context, dir string) (Config, error) {
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", types.ErrConfiguration, path, err)
	}
	for _, key := range requiredKeys {
		if !k.Exists(key) {
			return Config{}, fmt.Errorf("%w: %s: missing key %q", types.ErrConfiguration, path, key)
		}
	}

	var fc fileConfig
	if err := k.UnmarshalWithConf("", &fc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: decode %s: %v", types.ErrConfiguration, path, err)
	}

	kind, err := ParseKind(fc.Type)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Kind:     kind,
		Folds:    fc.Folds,
		NJets:    fc.NJets,
		NMuons:   fc.NMuons,
		NEgammas: fc.NEgammas,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks capacities and fold count.
func (c Config) Validate() error {
	if c.Folds < 1 {
		return fmt.Errorf("%w: folds must be positive, got %d", types.ErrConfiguration, c.Folds)
	}
	if c.NJets < 0 || c.NMuons < 0 || c.NEgammas < 0 {
		return fmt.Errorf("%w: negative object capacity (jets=%d muons=%d egammas=%d)",
			types.ErrConfiguration, c.NJets, c.NMuons, c.NEgammas)
	}
	return nil
}

// ScalerPath returns the path of the scaler fitted for fold.
func ScalerPath(dir string, fold int) string {
	return filepath.Join(dir, scalerPrefix+strconv.Itoa(fold)+fileExt)
}

// NetworkPath returns the path of the dense YAML network trained for fold.
func NetworkPath(dir string, fold int) string {
	return filepath.Join(dir, modelPrefix+strconv.Itoa(fold)+fileExt)
}

// SavedModelPath returns the SavedModel export directory of fold, as written
// by Keras model.save.
func SavedModelPath(dir string, fold int) string {
	return filepath.Join(dir, modelPrefix+strconv.Itoa(fold))
}

// FrozenGraphPath returns the path of the frozen GraphDef of fold.
func FrozenGraphPath(dir string, fold int) string {
	return filepath.Join(dir, modelPrefix+strconv.Itoa(fold)+graphExt)
}
