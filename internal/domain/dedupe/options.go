package dedupe

// Option configures the deduper returned by NewInMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds how many event ids are remembered. Past the bound the
// oldest id is forgotten, so a repeat further apart than maxSize events slips
// through. Zero or negative keeps every id.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		if maxSize < 0 {
			maxSize = 0
		}
		d.maxSize = maxSize
	}
}
