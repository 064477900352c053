package ntuple

import (
	"github.com/okian/trigml/pkg/logger"
)

// Option applies a configuration option to the Reader.
type Option func(*Reader)

// WithUpgradeTree sets the path of the tree holding L1 objects and sums.
func WithUpgradeTree(name string) Option {
	return func(r *Reader) {
		if name != "" {
			r.upgradeTree = name
		}
	}
}

// WithUGTTree sets the path of the tree holding algorithm decisions.
func WithUGTTree(name string) Option {
	return func(r *Reader) {
		if name != "" {
			r.ugtTree = name
		}
	}
}

// WithEventTree sets the path of the tree holding run, lumi and event
// numbers. An empty name disables event ids.
func WithEventTree(name string) Option {
	return func(r *Reader) {
		r.eventTree = name
	}
}

// WithBranches overrides the branch names.
func WithBranches(b Branches) Option {
	return func(r *Reader) {
		r.branches = b
	}
}

// WithBits sets the un-prescaled bits to expose, keyed by name with their
// position in the final decision vector.
func WithBits(bits map[string]int) Option {
	return func(r *Reader) {
		if bits != nil {
			r.bits = bits
		}
	}
}

// WithLogger sets a custom logger for the reader.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}
