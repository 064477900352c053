package source

import (
	"github.com/okian/trigml/internal/adapters/source/ntuple"
	"github.com/okian/trigml/internal/domain/dedupe"
	"github.com/okian/trigml/pkg/logger"
)

type options struct {
	dataset string
	bits    map[string]int
	ntuple  []ntuple.Option
	logger  logger.Logger
}

// Option applies a configuration option to New.
type Option func(*options)

// WithDataset sets the HDF5 dataset name. It is required for signal files.
func WithDataset(name string) Option {
	return func(o *options) {
		o.dataset = name
	}
}

// WithBits sets the un-prescaled L1 bits exposed by the ntuple reader.
func WithBits(bits map[string]int) Option {
	return func(o *options) {
		o.bits = bits
	}
}

// WithNtupleOptions passes tree and branch overrides to the ntuple reader.
func WithNtupleOptions(opts ...ntuple.Option) Option {
	return func(o *options) {
		o.ntuple = append(o.ntuple, opts...)
	}
}

// WithLogger sets a custom logger for the readers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of files decoded concurrently.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDeduper drops events whose id was already loaded.
func WithDeduper(d dedupe.Deduper) PoolOption {
	return func(p *Pool) {
		p.deduper = d
	}
}

// WithPoolLogger sets a custom logger for the pool.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
