package scoring

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/types"
)

// Output kinds of a network file.
const (
	OutputScore          = "score"
	OutputReconstruction = "reconstruction"
)

// Model maps a feature matrix to one score per row.
type Model interface {
	Predict(ctx context.Context, x matrix.Matrix) ([]float64, error)
	InputWidth() int
}

// Layer is one fully connected layer; Weights is out x in.
type Layer struct {
	Activation string      `koanf:"activation"`
	Weights    [][]float64 `koanf:"weights"`
	Bias       []float64   `koanf:"bias"`
}

// Network is a feed-forward stack of dense layers stored as model_<fold>.yaml.
// It serves small hand-exported networks and tests; trained Keras models are
// read by the TensorFlow backend. A score network ends in a single unit; a
// reconstruction network (autoencoder) ends in as many units as it has inputs
// and scores the per-row mean squared reconstruction error.
type Network struct {
	Output string  `koanf:"output"`
	Layers []Layer `koanf:"layers"`
}

// LoadNetwork reads the network trained for fold from the model directory.
func LoadNetwork(_ context.Context, dir string, fold int) (*Network, error) {
	path := model.NetworkPath(dir, fold)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: model for fold %d: %v", types.ErrConfiguration, fold, err)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", types.ErrConfiguration, path, err)
	}
	var n Network
	if err := k.UnmarshalWithConf("", &n, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrConfiguration, path, err)
	}
	if n.Output == "" {
		n.Output = OutputScore
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &n, nil
}

// Validate checks that consecutive layer shapes chain and the output kind
// matches the last layer.
func (n *Network) Validate() error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("%w: network has no layers", types.ErrConfiguration)
	}
	in := n.InputWidth()
	width := in
	for i, l := range n.Layers {
		if len(l.Weights) == 0 || len(l.Bias) != len(l.Weights) {
			return fmt.Errorf("%w: layer %d has %d weight rows and %d biases", types.ErrConfiguration, i, len(l.Weights), len(l.Bias))
		}
		for r, row := range l.Weights {
			if len(row) != width {
				return fmt.Errorf("%w: layer %d row %d has %d inputs, expected %d", types.ErrConfiguration, i, r, len(row), width)
			}
		}
		if _, err := activation(l.Activation); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		width = len(l.Weights)
	}
	switch n.Output {
	case OutputScore:
		if width != 1 {
			return fmt.Errorf("%w: score network ends with %d units", types.ErrConfiguration, width)
		}
	case OutputReconstruction:
		if width != in {
			return fmt.Errorf("%w: reconstruction network maps %d inputs to %d outputs", types.ErrConfiguration, in, width)
		}
	default:
		return fmt.Errorf("%w: network output %q", types.ErrConfiguration, n.Output)
	}
	return nil
}

// InputWidth returns the number of features the network consumes.
func (n *Network) InputWidth() int {
	if len(n.Layers) == 0 || len(n.Layers[0].Weights) == 0 {
		return 0
	}
	return len(n.Layers[0].Weights[0])
}

// Predict runs the forward pass for every row of x.
func (n *Network) Predict(ctx context.Context, x matrix.Matrix) ([]float64, error) {
	if x.Cols != n.InputWidth() {
		return nil, fmt.Errorf("%w: network expects %d features, got %d", types.ErrConfiguration, n.InputWidth(), x.Cols)
	}
	acts := make([]func(float64) float64, len(n.Layers))
	for i, l := range n.Layers {
		acts[i], _ = activation(l.Activation)
	}

	out := make([]float64, x.Rows)
	for i := 0; i < x.Rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in := x.Row(i)
		cur := in
		for li, l := range n.Layers {
			next := make([]float64, len(l.Weights))
			for r, w := range l.Weights {
				sum := l.Bias[r]
				for c, v := range cur {
					sum += w[c] * v
				}
				next[r] = acts[li](sum)
			}
			cur = next
		}
		if n.Output == OutputReconstruction {
			out[i] = MeanSquaredError(in, cur)
		} else {
			out[i] = cur[0]
		}
	}
	return out, nil
}

// MeanSquaredError is the autoencoder anomaly score of input a and its
// reconstruction b.
func MeanSquaredError(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s / float64(len(a))
}

func activation(name string) (func(float64) float64, error) {
	switch name {
	case "", "linear":
		return func(v float64) float64 { return v }, nil
	case "relu":
		return func(v float64) float64 { return math.Max(0, v) }, nil
	case "sigmoid":
		return func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }, nil
	case "tanh":
		return math.Tanh, nil
	default:
		return nil, fmt.Errorf("%w: activation %q", types.ErrConfiguration, name)
	}
}
