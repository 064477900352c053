// Package dedupe drops repeated detector readouts from loaded batches.
package dedupe

import (
	"sync"
	"sync/atomic"

	"github.com/okian/trigml/internal/domain/event"
)

// Deduper records seen event IDs so each readout is used at most once.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(id event.ID) bool

	Size() int64
}

// inMemoryDeduper keeps seen IDs in a map. In bounded mode (maxSize > 0) the
// oldest entry is evicted first, tracked in a ring of keys.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[event.ID]struct{}
	ring    []event.ID
	next    int
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
// The default is unbounded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[event.ID]struct{})
	if d.maxSize > 0 {
		d.ring = make([]event.ID, 0, d.maxSize)
	}

	return d
}

func (d *inMemoryDeduper) SeenAndRecord(id event.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	if d.maxSize > 0 {
		if len(d.ring) < d.maxSize {
			d.ring = append(d.ring, id)
		} else {
			delete(d.seen, d.ring[d.next])
			d.size.Add(-1)
			d.ring[d.next] = id
			d.next = (d.next + 1) % d.maxSize
		}
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Filter removes events whose ID was already recorded by d, including repeats
// within b itself. Batches without IDs are returned unchanged. The second
// return value is the number of dropped events.
func Filter(d Deduper, b *event.Batch) (*event.Batch, int) {
	if len(b.IDs) == 0 {
		return b, 0
	}
	keep := make([]bool, b.Len())
	dropped := 0
	for i, id := range b.IDs {
		keep[i] = !d.SeenAndRecord(id)
		if !keep[i] {
			dropped++
		}
	}
	if dropped == 0 {
		return b, 0
	}
	return b.Filter(keep), dropped
}
