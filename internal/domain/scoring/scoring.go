// Package scoring runs trained networks over prepared feature matrices and
// turns scores into trigger decisions.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
	"github.com/okian/trigml/pkg/metrics"
)

// Default scoring configuration constants.
const (
	defaultBatchSize = 4096
)

// Mode is a threshold comparison direction.
type Mode string

// Comparison modes.
const (
	// ModeMin fires when score > threshold.
	ModeMin Mode = "min"
	// ModeMax fires when score < threshold.
	ModeMax Mode = "max"
)

// ParseMode validates a comparison mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMin, ModeMax:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", types.ErrInvalidMode, s, ModeMin, ModeMax)
	}
}

// Decide returns one decision per score.
func Decide(scores []float64, threshold float64, mode string) ([]bool, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(scores))
	for i, s := range scores {
		if m == ModeMin {
			out[i] = s > threshold
		} else {
			out[i] = s < threshold
		}
	}
	return out, nil
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithBatchSize sets the number of rows per forward pass.
func WithBatchSize(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets a custom logger for the scorer.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scorer runs batched inference.
type Scorer struct {
	batchSize int
	logger    logger.Logger
}

// NewScorer creates a scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		batchSize: defaultBatchSize,
		logger:    logger.Get().Named("scoring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns one score per row of x.
func (s *Scorer) Score(ctx context.Context, m Model, x matrix.Matrix) ([]float64, error) {
	start := time.Now()
	s.logger.Debug(ctx, "starting inference", logger.Int("rows", x.Rows), logger.Int("batch_size", s.batchSize))

	out := make([]float64, 0, x.Rows)
	for lo := 0; lo < x.Rows; lo += s.batchSize {
		hi := lo + s.batchSize
		if hi > x.Rows {
			hi = x.Rows
		}
		batchStart := time.Now()
		scores, err := m.Predict(ctx, x.Slice(lo, hi))
		if err != nil {
			metrics.RecordErrorByComponent("scoring", "predict")
			return nil, fmt.Errorf("rows %d-%d: %w", lo, hi, err)
		}
		if len(scores) != hi-lo {
			return nil, fmt.Errorf("rows %d-%d: model returned %d scores", lo, hi, len(scores))
		}
		metrics.RecordInferenceBatchLatency(float64(time.Since(batchStart).Milliseconds()))
		out = append(out, scores...)
	}

	metrics.RecordRowsScored(len(out))
	s.logger.Debug(ctx, "inference done", logger.Int("rows", len(out)), logger.Duration("elapsed", time.Since(start)))
	return out, nil
}

// ScoreFolds scores fold f of folds with models[f] and averages the scores per row.
func (s *Scorer) ScoreFolds(ctx context.Context, models []Model, folds []matrix.Matrix) ([]float64, error) {
	if len(models) == 0 || len(models) != len(folds) {
		return nil, fmt.Errorf("%w: %d models for %d folds", types.ErrConfiguration, len(models), len(folds))
	}
	var sum []float64
	for f, m := range models {
		scores, err := s.Score(ctx, m, folds[f])
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		if sum == nil {
			sum = make([]float64, len(scores))
		}
		for i, v := range scores {
			sum[i] += v
		}
	}
	n := float64(len(models))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}
