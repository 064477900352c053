// Package tensorflow scores feature matrices with trained TensorFlow graphs,
// either Keras SavedModel exports or frozen GraphDef files.
package tensorflow

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	tf "github.com/kiteco/tensorflow/tensorflow/go"

	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/scoring"
	"github.com/okian/trigml/internal/domain/types"
)

// Defaults matching a Keras functional model exported with model.save.
const (
	DefaultTag    = "serve"
	DefaultInput  = "serving_default_input_1"
	DefaultOutput = "StatefulPartitionedCall"
)

// Model wraps a TensorFlow session with one float input and one output.
type Model struct {
	mu      sync.Mutex
	session *tf.Session
	input   tf.Output
	output  tf.Output
	width   int
}

var _ scoring.Model = (*Model)(nil)

// LoadSavedModel opens a SavedModel export directory.
func LoadSavedModel(dir string, opts ...Option) (*Model, error) {
	o := newOptions(opts)
	sm, err := tf.LoadSavedModel(dir, o.tags, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load saved model %s: %v", types.ErrConfiguration, dir, err)
	}
	m, err := bind(sm.Graph, sm.Session, o)
	if err != nil {
		_ = sm.Session.Close()
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return m, nil
}

// LoadFrozenGraph opens a GraphDef whose variables were frozen to constants.
func LoadFrozenGraph(path string, opts ...Option) (*Model, error) {
	o := newOptions(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read graph %s: %v", types.ErrConfiguration, path, err)
	}
	graph := tf.NewGraph()
	if err := graph.Import(data, ""); err != nil {
		return nil, fmt.Errorf("%w: import graph %s: %v", types.ErrConfiguration, path, err)
	}
	sess, err := tf.NewSession(graph, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: session for %s: %v", types.ErrConfiguration, path, err)
	}
	m, err := bind(graph, sess, o)
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func bind(graph *tf.Graph, sess *tf.Session, o options) (*Model, error) {
	in, err := lookup(graph, o.input)
	if err != nil {
		return nil, err
	}
	out, err := lookup(graph, o.output)
	if err != nil {
		return nil, err
	}
	m := &Model{session: sess, input: in, output: out}
	if shape := in.Shape(); shape.NumDimensions() == 2 && shape.Size(1) > 0 {
		m.width = int(shape.Size(1))
	}
	return m, nil
}

// lookup resolves "op" or "op:index" to a graph output.
func lookup(graph *tf.Graph, name string) (tf.Output, error) {
	op, idx, err := splitOutput(name)
	if err != nil {
		return tf.Output{}, err
	}
	operation := graph.Operation(op)
	if operation == nil {
		return tf.Output{}, fmt.Errorf("%w: graph has no operation %q", types.ErrConfiguration, op)
	}
	if idx >= operation.NumOutputs() {
		return tf.Output{}, fmt.Errorf("%w: operation %q has %d outputs, want index %d",
			types.ErrConfiguration, op, operation.NumOutputs(), idx)
	}
	return operation.Output(idx), nil
}

func splitOutput(name string) (string, int, error) {
	op, rest, found := strings.Cut(name, ":")
	if op == "" {
		return "", 0, fmt.Errorf("%w: empty operation name", types.ErrConfiguration)
	}
	if !found {
		return op, 0, nil
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return "", 0, fmt.Errorf("%w: output %q", types.ErrConfiguration, name)
	}
	return op, idx, nil
}

// InputWidth returns the feature count declared by the input placeholder, or
// 0 when the graph leaves it open.
func (m *Model) InputWidth() int {
	return m.width
}

// Predict feeds x as one float32 batch. A single output column is the score;
// an output as wide as the input is a reconstruction and is scored by its
// mean squared error.
func (m *Model) Predict(ctx context.Context, x matrix.Matrix) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.width > 0 && x.Cols != m.width {
		return nil, fmt.Errorf("%w: graph expects %d features, got %d", types.ErrConfiguration, m.width, x.Cols)
	}
	if x.Rows == 0 {
		return []float64{}, nil
	}

	feed := make([][]float32, x.Rows)
	for i := range feed {
		row := x.Row(i)
		feed[i] = make([]float32, len(row))
		for j, v := range row {
			feed[i][j] = float32(v)
		}
	}
	t, err := tf.NewTensor(feed)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer t.Delete()

	m.mu.Lock()
	res, err := m.session.Run(map[tf.Output]*tf.Tensor{m.input: t}, []tf.Output{m.output}, nil)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("run graph: %w", err)
	}
	defer func() {
		for _, r := range res {
			r.Delete()
		}
	}()
	return scores(x, res[0].Value())
}

// Close releases the session.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	return err
}

func scores(x matrix.Matrix, v any) ([]float64, error) {
	switch out := v.(type) {
	case []float32:
		if len(out) != x.Rows {
			return nil, fmt.Errorf("graph returned %d scores for %d rows", len(out), x.Rows)
		}
		s := make([]float64, len(out))
		for i, f := range out {
			s[i] = float64(f)
		}
		return s, nil
	case [][]float32:
		if len(out) != x.Rows {
			return nil, fmt.Errorf("graph returned %d rows for %d", len(out), x.Rows)
		}
		s := make([]float64, len(out))
		for i, row := range out {
			switch len(row) {
			case 1:
				s[i] = float64(row[0])
			case x.Cols:
				rec := make([]float64, len(row))
				for j, f := range row {
					rec[j] = float64(f)
				}
				s[i] = scoring.MeanSquaredError(x.Row(i), rec)
			default:
				return nil, fmt.Errorf("%w: graph output has %d columns, want 1 or %d",
					types.ErrConfiguration, len(row), x.Cols)
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: graph output of type %T", types.ErrConfiguration, v)
	}
}
