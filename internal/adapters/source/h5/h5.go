// Package h5 reads preprocessed particle arrays stored in HDF5 files.
//
// Each file holds a float dataset of shape (N, slots, 4) where the last axis
// is (pt, eta, phi, class). Class 1 is missing transverse energy, 2 e/gamma,
// 3 muon and 4 jet; class 0 marks an empty slot.
package h5

import (
	"context"
	"fmt"

	"gonum.org/v1/hdf5"

	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
)

// DefaultDataset is the dataset name of background files.
const DefaultDataset = "Particles"

// Particle classes of the last axis.
const (
	ClassEmpty  = 0
	ClassMET    = 1
	ClassEGamma = 2
	ClassMuon   = 3
	ClassJet    = 4
)

const fieldsPerSlot = 4

// Reader decodes one HDF5 particle file into an event batch.
type Reader struct {
	dataset string
	logger  logger.Logger
}

// New creates a reader for the given dataset. An empty name selects
// DefaultDataset.
func New(dataset string, opts ...Option) *Reader {
	if dataset == "" {
		dataset = DefaultDataset
	}
	r := &Reader{
		dataset: dataset,
		logger:  logger.Get().Named("h5"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read decodes the dataset of the file at path. Preprocessed arrays carry
// no trigger bits, so the decision table is empty.
func (r *Reader) Read(ctx context.Context, path string) (*event.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := f.OpenDataset(r.dataset)
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %s in %s: %w", types.ErrMissingField, r.dataset, path, err)
	}
	defer ds.Close()

	space := ds.Space()
	dims, _, err := space.SimpleExtentDims()
	space.Close()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", r.dataset, err)
	}
	if len(dims) != 3 || dims[2] != fieldsPerSlot {
		return nil, fmt.Errorf("%w: dataset %s has shape %v, expected (N, slots, %d)",
			types.ErrMissingField, r.dataset, dims, fieldsPerSlot)
	}

	buf := make([]float32, dims[0]*dims[1]*dims[2])
	if len(buf) != 0 {
		if err := ds.Read(&buf); err != nil {
			return nil, fmt.Errorf("read %s: %w", r.dataset, err)
		}
	}

	b, err := decode(buf, int(dims[0]), int(dims[1]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.Info.Sample = r.dataset
	b.Info.Files = []string{path}

	r.logger.Debug(ctx, "h5 read",
		logger.String("path", path),
		logger.String("dataset", r.dataset),
		logger.Int("events", b.Len()),
	)
	return b, nil
}

// decode turns a row-major (n, slots, 4) buffer into a batch. Slot order is
// preserved inside each category.
func decode(buf []float32, n, slots int) (*event.Batch, error) {
	b := event.NewBatch("")
	var mu, eg, jet []event.Object
	var sums []event.Sum
	for i := 0; i < n; i++ {
		mu, eg, jet, sums = mu[:0], eg[:0], jet[:0], sums[:0]
		for s := 0; s < slots; s++ {
			base := (i*slots + s) * fieldsPerSlot
			pt, eta, phi := float64(buf[base]), float64(buf[base+1]), float64(buf[base+2])
			switch class := int(buf[base+3]); class {
			case ClassEmpty:
			case ClassMET:
				sums = append(sums, event.Sum{Type: event.SumTypeMET, Pt: pt, Phi: phi})
			case ClassEGamma:
				eg = append(eg, event.Object{Pt: pt, Eta: eta, Phi: phi})
			case ClassMuon:
				mu = append(mu, event.Object{Pt: pt, Eta: eta, Phi: phi})
			case ClassJet:
				jet = append(jet, event.Object{Pt: pt, Eta: eta, Phi: phi})
			default:
				return nil, fmt.Errorf("%w: event %d slot %d has unknown class %d", types.ErrMissingField, i, s, class)
			}
		}
		b.Muons.Append(mu...)
		b.EGammas.Append(eg...)
		b.Jets.Append(jet...)
		b.Sums.Append(sums...)
	}
	return b, nil
}
