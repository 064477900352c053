// Package event holds the per-batch detector records produced by the source
// readers. Variable-length object lists are stored as flat value arrays plus
// per-event offsets so that shaping never allocates per event.
package event

import (
	"fmt"
)

// SumTypeMET is the reserved energy-summary type of missing transverse energy.
const SumTypeMET = 2

// Object is a single reconstructed physics object.
type Object struct {
	Pt  float64
	Eta float64
	Phi float64
}

// Collection is a ragged list of objects of one category for many events.
// Objects of event i live at indices Offsets[i]..Offsets[i+1].
type Collection struct {
	Pt      []float64
	Eta     []float64
	Phi     []float64
	Offsets []int
}

// NewCollection returns an empty collection ready for Append.
func NewCollection() Collection {
	return Collection{Offsets: []int{0}}
}

// Append adds one event holding the given objects.
func (c *Collection) Append(objs ...Object) {
	if len(c.Offsets) == 0 {
		c.Offsets = []int{0}
	}
	for _, o := range objs {
		c.Pt = append(c.Pt, o.Pt)
		c.Eta = append(c.Eta, o.Eta)
		c.Phi = append(c.Phi, o.Phi)
	}
	c.Offsets = append(c.Offsets, len(c.Pt))
}

// Events returns the number of events in the collection.
func (c Collection) Events() int {
	if len(c.Offsets) == 0 {
		return 0
	}
	return len(c.Offsets) - 1
}

// Count returns the number of objects of event i.
func (c Collection) Count(i int) int {
	return c.Offsets[i+1] - c.Offsets[i]
}

// At returns object j of event i.
func (c Collection) At(i, j int) Object {
	k := c.Offsets[i] + j
	return Object{Pt: c.Pt[k], Eta: c.Eta[k], Phi: c.Phi[k]}
}

func (c Collection) validate(name string) error {
	if len(c.Pt) != len(c.Eta) || len(c.Pt) != len(c.Phi) {
		return fmt.Errorf("%s: value arrays differ in length (pt=%d eta=%d phi=%d)", name, len(c.Pt), len(c.Eta), len(c.Phi))
	}
	if len(c.Offsets) > 0 && c.Offsets[len(c.Offsets)-1] != len(c.Pt) {
		return fmt.Errorf("%s: last offset %d does not cover %d values", name, c.Offsets[len(c.Offsets)-1], len(c.Pt))
	}
	for i := 1; i < len(c.Offsets); i++ {
		if c.Offsets[i] < c.Offsets[i-1] {
			return fmt.Errorf("%s: offsets decrease at event %d", name, i-1)
		}
	}
	return nil
}

// appendCollection appends all events of o to c.
func (c *Collection) appendCollection(o Collection) {
	if len(c.Offsets) == 0 {
		c.Offsets = []int{0}
	}
	base := len(c.Pt)
	c.Pt = append(c.Pt, o.Pt...)
	c.Eta = append(c.Eta, o.Eta...)
	c.Phi = append(c.Phi, o.Phi...)
	for i := 1; i < len(o.Offsets); i++ {
		c.Offsets = append(c.Offsets, base+o.Offsets[i])
	}
}

// Sum is one typed energy-summary entry.
type Sum struct {
	Type int
	Pt   float64
	Phi  float64
}

// Sums is the ragged list of energy-summary entries per event.
type Sums struct {
	Type    []int
	Pt      []float64
	Phi     []float64
	Offsets []int
}

// NewSums returns an empty summary list ready for Append.
func NewSums() Sums {
	return Sums{Offsets: []int{0}}
}

// Append adds one event holding the given summary entries.
func (s *Sums) Append(entries ...Sum) {
	if len(s.Offsets) == 0 {
		s.Offsets = []int{0}
	}
	for _, e := range entries {
		s.Type = append(s.Type, e.Type)
		s.Pt = append(s.Pt, e.Pt)
		s.Phi = append(s.Phi, e.Phi)
	}
	s.Offsets = append(s.Offsets, len(s.Pt))
}

// Events returns the number of events.
func (s Sums) Events() int {
	if len(s.Offsets) == 0 {
		return 0
	}
	return len(s.Offsets) - 1
}

// Entries returns the summary entries of event i.
func (s Sums) Entries(i int) []Sum {
	lo, hi := s.Offsets[i], s.Offsets[i+1]
	out := make([]Sum, 0, hi-lo)
	for k := lo; k < hi; k++ {
		out = append(out, Sum{Type: s.Type[k], Pt: s.Pt[k], Phi: s.Phi[k]})
	}
	return out
}

func (s *Sums) appendSums(o Sums) {
	if len(s.Offsets) == 0 {
		s.Offsets = []int{0}
	}
	base := len(s.Pt)
	s.Type = append(s.Type, o.Type...)
	s.Pt = append(s.Pt, o.Pt...)
	s.Phi = append(s.Phi, o.Phi...)
	for i := 1; i < len(o.Offsets); i++ {
		s.Offsets = append(s.Offsets, base+o.Offsets[i])
	}
}
