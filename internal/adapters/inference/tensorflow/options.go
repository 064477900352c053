package tensorflow

type options struct {
	tags   []string
	input  string
	output string
}

func newOptions(opts []Option) options {
	o := options{tags: []string{DefaultTag}, input: DefaultInput, output: DefaultOutput}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures how a graph is opened and bound.
type Option func(*options)

// WithTags selects the SavedModel meta graph.
func WithTags(tags ...string) Option {
	return func(o *options) {
		if len(tags) > 0 {
			o.tags = tags
		}
	}
}

// WithInput names the feature placeholder, as "op" or "op:index".
func WithInput(name string) Option {
	return func(o *options) {
		if name != "" {
			o.input = name
		}
	}
}

// WithOutput names the score tensor, as "op" or "op:index".
func WithOutput(name string) Option {
	return func(o *options) {
		if name != "" {
			o.output = name
		}
	}
}
