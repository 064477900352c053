package inference

import (
	"github.com/okian/trigml/internal/adapters/inference/tensorflow"
	"github.com/okian/trigml/pkg/logger"
)

// Option configures a Loader.
type Option func(*Loader)

// WithTensorFlow passes tag and tensor-name options to the TensorFlow backend.
func WithTensorFlow(opts ...tensorflow.Option) Option {
	return func(l *Loader) {
		l.tf = append(l.tf, opts...)
	}
}

// WithLogger sets a custom logger for the loader.
func WithLogger(l logger.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}
