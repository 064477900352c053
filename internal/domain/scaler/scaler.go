// Package scaler implements the per-feature standardization applied to shaped
// feature matrices: x' = (x - mean) / scale, fitted independently per fold.
package scaler

import (
	"context"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/montanaflynn/stats"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/types"
)

const filePermission = 0o600

// Standard is a fitted standardization transform.
type Standard struct {
	NFeatures int       `koanf:"n_features" yaml:"n_features"`
	Mean      []float64 `koanf:"mean" yaml:"mean"`
	Scale     []float64 `koanf:"scale" yaml:"scale"`
}

// Validate checks internal consistency.
func (s *Standard) Validate() error {
	if s.NFeatures <= 0 || len(s.Mean) != s.NFeatures || len(s.Scale) != s.NFeatures {
		return fmt.Errorf("%w: scaler declares %d features with %d means and %d scales",
			types.ErrConfiguration, s.NFeatures, len(s.Mean), len(s.Scale))
	}
	return nil
}

// Transform returns a standardized copy of m. A zero scale is treated as 1 so
// constant training columns are only centred.
func (s *Standard) Transform(m matrix.Matrix) (matrix.Matrix, error) {
	if m.Cols != s.NFeatures {
		return matrix.Matrix{}, fmt.Errorf("%w: scaler expects %d features, matrix has %d",
			types.ErrScalerMismatch, s.NFeatures, m.Cols)
	}
	out := matrix.NewMatrix(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		src, dst := m.Row(i), out.Row(i)
		for j, v := range src {
			scale := s.Scale[j]
			if scale == 0 {
				scale = 1
			}
			dst[j] = (v - s.Mean[j]) / scale
		}
	}
	return out, nil
}

// Load reads the scaler of fold from the model directory.
func Load(_ context.Context, dir string, fold int) (*Standard, error) {
	path := model.ScalerPath(dir, fold)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: scaler for fold %d: %v", types.ErrConfiguration, fold, err)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", types.ErrConfiguration, path, err)
	}
	var s Standard
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrConfiguration, path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// LoadAll reads the scalers of every fold of cfg.
func LoadAll(ctx context.Context, dir string, cfg model.Config) ([]*Standard, error) {
	out := make([]*Standard, cfg.Folds)
	for f := range out {
		s, err := Load(ctx, dir, f)
		if err != nil {
			return nil, err
		}
		out[f] = s
	}
	return out, nil
}

// Save writes s as the scaler of fold.
func (s *Standard) Save(dir string, fold int) error {
	data, err := yamlv3.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode scaler: %w", err)
	}
	if err := os.WriteFile(model.ScalerPath(dir, fold), data, filePermission); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	return nil
}

// Fit computes column means and population standard deviations of m.
func Fit(m matrix.Matrix) (*Standard, error) {
	if m.Rows == 0 {
		return nil, fmt.Errorf("%w: cannot fit a scaler on an empty matrix", types.ErrConfiguration)
	}
	s := &Standard{NFeatures: m.Cols, Mean: make([]float64, m.Cols), Scale: make([]float64, m.Cols)}
	for j := 0; j < m.Cols; j++ {
		col := m.Column(j)
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("fit column %d mean: %w", j, err)
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, fmt.Errorf("fit column %d stddev: %w", j, err)
		}
		s.Mean[j] = mean
		s.Scale[j] = sd
	}
	return s, nil
}

// FitFolds fits one scaler per fold. Row i belongs to fold i%k and scaler f
// is fitted on the rows outside fold f; with k == 1 it sees every row.
func FitFolds(m matrix.Matrix, k int) ([]*Standard, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: fold count must be positive, got %d", types.ErrConfiguration, k)
	}
	if k == 1 {
		s, err := Fit(m)
		if err != nil {
			return nil, err
		}
		return []*Standard{s}, nil
	}

	out := make([]*Standard, k)
	for f := 0; f < k; f++ {
		train := matrix.Matrix{Cols: m.Cols}
		for i := 0; i < m.Rows; i++ {
			if i%k == f {
				continue
			}
			train.Data = append(train.Data, m.Row(i)...)
			train.Rows++
		}
		s, err := Fit(train)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		out[f] = s
	}
	return out, nil
}
