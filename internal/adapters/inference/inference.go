// Package inference opens the per-fold models of a model directory in
// whichever format they were exported.
package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/trigml/internal/adapters/inference/tensorflow"
	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/scoring"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
)

// Format is a model export format.
type Format string

// Known formats, in detection order.
const (
	// FormatSavedModel is a Keras/TensorFlow SavedModel directory model_<fold>/.
	FormatSavedModel Format = "savedmodel"
	// FormatFrozenGraph is a frozen GraphDef model_<fold>.pb.
	FormatFrozenGraph Format = "frozen-graph"
	// FormatDense is a dense YAML network model_<fold>.yaml.
	FormatDense Format = "dense"
)

// Loader opens fold models.
type Loader struct {
	tf     []tensorflow.Option
	logger logger.Logger
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("inference")
	}
	return l
}

// Detect reports the format of the model of fold and the path it lives at.
func Detect(dir string, fold int) (Format, string, error) {
	candidates := []struct {
		format Format
		path   string
		marker  string
	}{
		{FormatSavedModel, model.SavedModelPath(dir, fold), filepath.Join(model.SavedModelPath(dir, fold), model.SavedModelFile)},
		{FormatFrozenGraph, model.FrozenGraphPath(dir, fold), model.FrozenGraphPath(dir, fold)},
		{FormatDense, model.NetworkPath(dir, fold), model.NetworkPath(dir, fold)},
	}
	for _, c := range candidates {
		info, err := os.Stat(c.marker)
		if err == nil && !info.IsDir() {
			return c.format, c.path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("%w: model for fold %d: %w", types.ErrConfiguration, fold, err)
		}
	}
	return "", "", fmt.Errorf("%w: no model for fold %d in %s (want %s/%s, %s or %s)",
		types.ErrConfiguration, fold, dir,
		filepath.Base(model.SavedModelPath(dir, fold)), model.SavedModelFile,
		filepath.Base(model.FrozenGraphPath(dir, fold)), filepath.Base(model.NetworkPath(dir, fold)))
}

// Load opens the model of fold.
func (l *Loader) Load(ctx context.Context, dir string, fold int) (scoring.Model, error) {
	format, path, err := Detect(dir, fold)
	if err != nil {
		return nil, err
	}
	l.logger.Debug(ctx, "loading model", logger.Int("fold", fold), logger.String("format", string(format)), logger.String("path", path))

	var (
		m      scoring.Model
		loaded error
	)
	switch format {
	case FormatSavedModel:
		var tm *tensorflow.Model
		if tm, loaded = tensorflow.LoadSavedModel(path, l.tf...); loaded == nil {
			m = tm
		}
	case FormatFrozenGraph:
		var tm *tensorflow.Model
		if tm, loaded = tensorflow.LoadFrozenGraph(path, l.tf...); loaded == nil {
			m = tm
		}
	default:
		var n *scoring.Network
		if n, loaded = scoring.LoadNetwork(ctx, dir, fold); loaded == nil {
			m = n
		}
	}
	if loaded != nil {
		return nil, fmt.Errorf("fold %d: %w", fold, loaded)
	}
	return m, nil
}

// LoadAll opens one model per fold. On error the models already opened are
// closed.
func (l *Loader) LoadAll(ctx context.Context, dir string, folds int) ([]scoring.Model, error) {
	out := make([]scoring.Model, 0, folds)
	for f := 0; f < folds; f++ {
		m, err := l.Load(ctx, dir, f)
		if err != nil {
			_ = Close(out...)
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Close releases the models that hold native resources.
func Close(models ...scoring.Model) error {
	var errs []error
	for _, m := range models {
		if c, ok := m.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
