// Package dataset assembles labeled event batches into model-ready arrays:
// a feature matrix, an aligned label vector and one standardized copy of the
// matrix per trained fold.
package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/scaler"
	"github.com/okian/trigml/internal/domain/shaper"
	"github.com/okian/trigml/internal/domain/types"
)

// Dataset is the assembler output. X holds the raw shaped rows; Folds[f] is X
// standardized with the scaler of fold f. len(Y) == X.Rows.
type Dataset struct {
	Config model.Config
	X      matrix.Matrix
	Y      []float64
	Folds  []matrix.Matrix
	// Blocks records how many rows each present label contributed, in order.
	Blocks []Block
}

// Block is the row range contributed by one source.
type Block struct {
	Label types.Label
	Rows  int
}

// Sources maps a label to its event batch.
type Sources map[types.Label]*event.Batch

// Assemble loads the model configuration and scalers from dir and builds the
// dataset from sources in signal-then-background order.
func Assemble(ctx context.Context, dir string, sources Sources) (*Dataset, error) {
	if err := checkSources(sources); err != nil {
		return nil, err
	}
	cfg, err := model.Load(ctx, dir)
	if err != nil {
		return nil, err
	}
	scalers, err := scaler.LoadAll(ctx, dir, cfg)
	if err != nil {
		return nil, err
	}
	return Build(cfg, scalers, sources)
}

// Build assembles the dataset from an already loaded configuration and scalers.
func Build(cfg model.Config, scalers []*scaler.Standard, sources Sources) (*Dataset, error) {
	if err := checkSources(sources); err != nil {
		return nil, err
	}
	x, y, blocks, err := Shape(cfg, sources)
	if err != nil {
		return nil, err
	}

	folds := make([]matrix.Matrix, len(scalers))
	for f, s := range scalers {
		t, err := s.Transform(x)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		folds[f] = t
	}

	return &Dataset{Config: cfg, X: x, Y: y, Folds: folds, Blocks: blocks}, nil
}

// Shape runs the feature shaper over every present source and concatenates
// the rows and labels in signal-then-background order.
func Shape(cfg model.Config, sources Sources) (matrix.Matrix, []float64, []Block, error) {
	if err := checkSources(sources); err != nil {
		return matrix.Matrix{}, nil, nil, err
	}
	var (
		parts  []matrix.Matrix
		labels []float64
		blocks []Block
	)
	for _, label := range types.Labels {
		b, ok := sources[label]
		if !ok {
			continue
		}
		m, err := shaper.Shape(b, cfg)
		if err != nil {
			return matrix.Matrix{}, nil, nil, fmt.Errorf("%s: %w", label, err)
		}
		parts = append(parts, m)
		for i := 0; i < m.Rows; i++ {
			labels = append(labels, label.Value())
		}
		blocks = append(blocks, Block{Label: label, Rows: m.Rows})
	}

	x, err := matrix.VStack(parts...)
	if err != nil {
		return matrix.Matrix{}, nil, nil, err
	}
	return x, labels, blocks, nil
}

func checkSources(sources Sources) error {
	if len(sources) == 0 {
		return fmt.Errorf("%w: at least one of %q or %q is required",
			types.ErrConfiguration, types.LabelSignal, types.LabelBackground)
	}
	for label, b := range sources {
		if _, err := types.ParseLabel(string(label)); err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("%w: source %q has no batch", types.ErrConfiguration, label)
		}
	}
	return nil
}

// FoldPolicy chooses how per-fold standardized matrices are reduced to one.
type FoldPolicy struct {
	mean  bool
	index int
}

// Fold policies.
var (
	// FirstFold keeps fold 0.
	FirstFold = FoldPolicy{} //nolint:gochecknoglobals // policy constant
	// MeanFolds averages all folds element-wise.
	MeanFolds = FoldPolicy{mean: true} //nolint:gochecknoglobals // policy constant
)

// FoldIndex selects one fold explicitly.
func FoldIndex(i int) FoldPolicy {
	return FoldPolicy{index: i}
}

// ParseFoldPolicy accepts "first", "mean" or "index:<n>".
func ParseFoldPolicy(s string) (FoldPolicy, error) {
	switch s {
	case "", "first":
		return FirstFold, nil
	case "mean":
		return MeanFolds, nil
	}
	if rest, ok := strings.CutPrefix(s, "index:"); ok {
		i, err := strconv.Atoi(rest)
		if err == nil && i >= 0 {
			return FoldIndex(i), nil
		}
	}
	return FoldPolicy{}, fmt.Errorf("%w: fold policy %q", types.ErrConfiguration, s)
}

// String renders the policy in ParseFoldPolicy syntax.
func (p FoldPolicy) String() string {
	switch {
	case p.mean:
		return "mean"
	case p.index == 0:
		return "first"
	default:
		return "index:" + strconv.Itoa(p.index)
	}
}

// Fold returns the fold whose model scores the selected matrix. Averaged
// matrices are scored with the model of fold 0.
func (p FoldPolicy) Fold() int {
	if p.mean {
		return 0
	}
	return p.index
}

// Select reduces the per-fold matrices with policy p.
func (d *Dataset) Select(p FoldPolicy) (matrix.Matrix, error) {
	if len(d.Folds) == 0 {
		return matrix.Matrix{}, fmt.Errorf("%w: dataset has no standardized folds", types.ErrConfiguration)
	}
	if !p.mean {
		if p.index >= len(d.Folds) {
			return matrix.Matrix{}, fmt.Errorf("%w: fold %d out of %d", types.ErrConfiguration, p.index, len(d.Folds))
		}
		return d.Folds[p.index], nil
	}
	out := matrix.NewMatrix(d.X.Rows, d.X.Cols)
	for _, f := range d.Folds {
		for k, v := range f.Data {
			out.Data[k] += v
		}
	}
	n := float64(len(d.Folds))
	for k := range out.Data {
		out.Data[k] /= n
	}
	return out, nil
}
