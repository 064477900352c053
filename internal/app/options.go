package app

import (
	"github.com/okian/trigml/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the number of files decoded concurrently per input.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBatchSize sets the number of rows per inference call.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithThreshold sets the decision threshold.
func WithThreshold(t float64) Option {
	return func(p *Pipeline) {
		p.threshold = t
	}
}

// WithMode sets the decision comparison, "min" or "max".
func WithMode(mode string) Option {
	return func(p *Pipeline) {
		p.mode = mode
	}
}

// WithFoldPolicy sets how folds are used when scoring: first, mean,
// index:<n> or ensemble.
func WithFoldPolicy(policy string) Option {
	return func(p *Pipeline) {
		if policy != "" {
			p.foldPolicy = policy
		}
	}
}

// WithDedupe enables removal of repeated event ids; size bounds the id cache
// and 0 keeps every id.
func WithDedupe(enabled bool, size int) Option {
	return func(p *Pipeline) {
		p.dedupe = enabled
		p.dedupeSize = size
	}
}

// WithUnprescaledBits sets the L1 bits exposed by the ntuple reader.
func WithUnprescaledBits(bits map[string]int) Option {
	return func(p *Pipeline) {
		p.bits = bits
	}
}

// WithNtupleLayout overrides the tree and branch names of ntuple inputs.
func WithNtupleLayout(l NtupleLayout) Option {
	return func(p *Pipeline) {
		p.ntuple = l
	}
}

// WithTensorFlow sets how TensorFlow exports are bound.
func WithTensorFlow(b TensorFlowBinding) Option {
	return func(p *Pipeline) {
		p.tf = b
	}
}

// WithModelLoader replaces the per-fold model loader.
func WithModelLoader(l ModelLoader) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.models = l
		}
	}
}

// WithReaderFactory replaces the reader constructor.
func WithReaderFactory(f ReaderFactory) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.readers = f
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		if id != "" {
			p.runID = id
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
