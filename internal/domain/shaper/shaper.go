// Package shaper turns ragged per-event physics objects into fixed-width
// feature rows. Each model kind owns one Strategy; all strategies pad missing
// slots with zeros and truncate beyond capacity without re-sorting.
package shaper

import (
	"fmt"

	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/types"
)

// fieldsPerObject is the (pt, eta, phi) triplet width of one slot.
const fieldsPerObject = 3

// MET is the missing transverse energy of one event.
type MET struct {
	Pt  float64
	Phi float64
}

// Strategy shapes a batch for one model kind.
type Strategy interface {
	// Width returns the feature count of one row.
	Width(cfg model.Config) int
	// Shape returns one row per event.
	Shape(b *event.Batch, cfg model.Config) (matrix.Matrix, error)
}

// For returns the shaping strategy owned by kind.
func For(kind model.Kind) (Strategy, error) {
	switch kind {
	case model.KindTopo:
		return topo{}, nil
	case model.KindAnomaly:
		return anomaly{}, nil
	default:
		return nil, fmt.Errorf("%w: no shaping strategy for model kind %s", types.ErrUnsupportedFormat, kind)
	}
}

// Shape shapes b with the strategy of cfg.Kind.
func Shape(b *event.Batch, cfg model.Config) (matrix.Matrix, error) {
	s, err := For(cfg.Kind)
	if err != nil {
		return matrix.Matrix{}, err
	}
	return s.Shape(b, cfg)
}

// ExtractMET selects the single MET entry of every event.
func ExtractMET(sums event.Sums) ([]MET, error) {
	out := make([]MET, sums.Events())
	for i := range out {
		found := 0
		for k := sums.Offsets[i]; k < sums.Offsets[i+1]; k++ {
			if sums.Type[k] != event.SumTypeMET {
				continue
			}
			found++
			out[i] = MET{Pt: sums.Pt[k], Phi: sums.Phi[k]}
		}
		if found != 1 {
			return nil, fmt.Errorf("%w: event %d has %d MET entries, expected exactly 1", types.ErrMissingField, i, found)
		}
	}
	return out, nil
}

// fill writes up to capacity objects of event i into dst as (pt, eta, phi)
// triplets. Slots without an object are left at zero.
func fill(dst []float64, c event.Collection, i, capacity int) {
	n := c.Count(i)
	if n > capacity {
		n = capacity
	}
	base := c.Offsets[i]
	for j := 0; j < n; j++ {
		dst[j*fieldsPerObject] = c.Pt[base+j]
		dst[j*fieldsPerObject+1] = c.Eta[base+j]
		dst[j*fieldsPerObject+2] = c.Phi[base+j]
	}
}

func checkCounts(b *event.Batch) error {
	n := b.Len()
	if b.Jets.Events() != n || b.Muons.Events() != n || b.EGammas.Events() != n {
		return fmt.Errorf("%w: object collections cover %d/%d/%d events, summaries %d",
			types.ErrMissingField, b.Jets.Events(), b.Muons.Events(), b.EGammas.Events(), n)
	}
	return nil
}
