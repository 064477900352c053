// Package ntuple reads L1 trigger ntuples written by the L1Ntuple producer.
package ntuple

import (
	"context"
	"fmt"
	"sort"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
)

// Default tree locations inside an L1Ntuple file.
const (
	DefaultUpgradeTree = "l1UpgradeEmuTree/L1UpgradeTree"
	DefaultUGTTree     = "l1uGTEmuTree/L1uGTTree"
	DefaultEventTree   = "l1EventTree/L1EventTree"
)

// Branches names the branches read from each tree.
type Branches struct {
	MuonEt, MuonEta, MuonPhi string
	EgEt, EgEta, EgPhi       string
	JetEt, JetEta, JetPhi    string
	SumType, SumEt, SumPhi   string
	Decisions                string
	Run, Lumi, Event         string
}

// DefaultBranches returns the branch names of the L1Upgrade, uGT and event
// data formats.
func DefaultBranches() Branches {
	return Branches{
		MuonEt: "muonEt", MuonEta: "muonEta", MuonPhi: "muonPhi",
		EgEt: "egEt", EgEta: "egEta", EgPhi: "egPhi",
		JetEt: "jetEt", JetEta: "jetEta", JetPhi: "jetPhi",
		SumType: "sumType", SumEt: "sumEt", SumPhi: "sumPhi",
		Decisions: "m_algoDecisionFinal",
		Run:       "run", Lumi: "lumi", Event: "event",
	}
}

// Override returns b with the branches named in names replaced. Keys are the
// snake_case field names, e.g. "jet_et" or "decisions".
func (b Branches) Override(names map[string]string) (Branches, error) {
	fields := map[string]*string{
		"muon_et": &b.MuonEt, "muon_eta": &b.MuonEta, "muon_phi": &b.MuonPhi,
		"eg_et": &b.EgEt, "eg_eta": &b.EgEta, "eg_phi": &b.EgPhi,
		"jet_et": &b.JetEt, "jet_eta": &b.JetEta, "jet_phi": &b.JetPhi,
		"sum_type": &b.SumType, "sum_et": &b.SumEt, "sum_phi": &b.SumPhi,
		"decisions": &b.Decisions,
		"run":       &b.Run, "lumi": &b.Lumi, "event": &b.Event,
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dst, ok := fields[k]
		if !ok {
			return Branches{}, fmt.Errorf("%w: unknown ntuple branch key %q", types.ErrConfiguration, k)
		}
		if names[k] == "" {
			return Branches{}, fmt.Errorf("%w: ntuple branch %q has an empty name", types.ErrConfiguration, k)
		}
		*dst = names[k]
	}
	return b, nil
}

// Reader decodes one L1Ntuple ROOT file into an event batch.
type Reader struct {
	upgradeTree string
	ugtTree     string
	eventTree   string
	branches    Branches
	bits        map[string]int
	logger      logger.Logger
}

// New creates an L1Ntuple reader.
func New(opts ...Option) *Reader {
	r := &Reader{
		upgradeTree: DefaultUpgradeTree,
		ugtTree:     DefaultUGTTree,
		eventTree:   DefaultEventTree,
		branches:    DefaultBranches(),
		bits:        map[string]int{},
		logger:      logger.Get().Named("ntuple"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read decodes the file at path. The decision table holds the configured
// un-prescaled bits in name order followed by event.TotalBit, the OR of all
// final algorithm decisions.
func (r *Reader) Read(ctx context.Context, path string) (*event.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := groot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	b := event.NewBatch("")
	b.Info.Files = []string{path}

	n, err := r.readObjects(ctx, f, b)
	if err != nil {
		return nil, err
	}
	if err := r.readDecisions(ctx, f, b, n); err != nil {
		return nil, err
	}
	if r.eventTree != "" {
		if err := r.readIDs(ctx, f, b, n); err != nil {
			return nil, err
		}
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug(ctx, "ntuple read",
		logger.String("path", path),
		logger.Int("events", b.Len()),
		logger.Int("bits", len(b.Decisions.Names)),
	)
	return b, nil
}

func (r *Reader) readObjects(ctx context.Context, f *riofs.File, b *event.Batch) (int64, error) {
	t, err := lookup(f, r.upgradeTree)
	if err != nil {
		return 0, err
	}

	var (
		muEt, muEta, muPhi    []float32
		egEt, egEta, egPhi    []float32
		jetEt, jetEta, jetPhi []float32
		sumType               []int16
		sumEt, sumPhi         []float32
	)
	br := r.branches
	vars := []rtree.ReadVar{
		{Name: br.MuonEt, Value: &muEt},
		{Name: br.MuonEta, Value: &muEta},
		{Name: br.MuonPhi, Value: &muPhi},
		{Name: br.EgEt, Value: &egEt},
		{Name: br.EgEta, Value: &egEta},
		{Name: br.EgPhi, Value: &egPhi},
		{Name: br.JetEt, Value: &jetEt},
		{Name: br.JetEta, Value: &jetEta},
		{Name: br.JetPhi, Value: &jetPhi},
		{Name: br.SumType, Value: &sumType},
		{Name: br.SumEt, Value: &sumEt},
		{Name: br.SumPhi, Value: &sumPhi},
	}

	err = scan(ctx, t, r.upgradeTree, vars, func() error {
		for _, c := range []struct {
			name         string
			dst          *event.Collection
			pt, eta, phi []float32
		}{
			{"muon", &b.Muons, muEt, muEta, muPhi},
			{"egamma", &b.EGammas, egEt, egEta, egPhi},
			{"jet", &b.Jets, jetEt, jetEta, jetPhi},
		} {
			if len(c.eta) != len(c.pt) || len(c.phi) != len(c.pt) {
				return fmt.Errorf("%w: %s branches have unequal lengths", types.ErrMissingField, c.name)
			}
			objs := make([]event.Object, len(c.pt))
			for j := range c.pt {
				objs[j] = event.Object{Pt: float64(c.pt[j]), Eta: float64(c.eta[j]), Phi: float64(c.phi[j])}
			}
			c.dst.Append(objs...)
		}

		if len(sumEt) != len(sumType) || len(sumPhi) != len(sumType) {
			return fmt.Errorf("%w: sum branches have unequal lengths", types.ErrMissingField)
		}
		sums := make([]event.Sum, len(sumType))
		for j := range sumType {
			sums[j] = event.Sum{Type: int(sumType[j]), Pt: float64(sumEt[j]), Phi: float64(sumPhi[j])}
		}
		b.Sums.Append(sums...)
		return nil
	})
	return t.Entries(), err
}

func (r *Reader) readDecisions(ctx context.Context, f *riofs.File, b *event.Batch, n int64) error {
	t, err := lookup(f, r.ugtTree)
	if err != nil {
		return err
	}
	if t.Entries() != n {
		return fmt.Errorf("%w: %s has %d entries, expected %d", types.ErrMissingField, r.ugtTree, t.Entries(), n)
	}

	names := make([]string, 0, len(r.bits))
	for name := range r.bits {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([][]bool, len(names)+1)
	var final []bool
	vars := []rtree.ReadVar{{Name: r.branches.Decisions, Value: &final}}

	err = scan(ctx, t, r.ugtTree, vars, func() error {
		for i, name := range names {
			idx := r.bits[name]
			cols[i] = append(cols[i], idx >= 0 && idx < len(final) && final[idx])
		}
		total := false
		for _, d := range final {
			if d {
				total = true
				break
			}
		}
		cols[len(names)] = append(cols[len(names)], total)
		return nil
	})
	if err != nil {
		return err
	}

	b.Decisions.Names = append(names, event.TotalBit)
	b.Decisions.Values = cols
	return nil
}

func (r *Reader) readIDs(ctx context.Context, f *riofs.File, b *event.Batch, n int64) error {
	t, err := lookup(f, r.eventTree)
	if err != nil {
		return err
	}
	if t.Entries() != n {
		return fmt.Errorf("%w: %s has %d entries, expected %d", types.ErrMissingField, r.eventTree, t.Entries(), n)
	}

	var (
		run, lumi uint32
		evt       uint64
	)
	vars := []rtree.ReadVar{
		{Name: r.branches.Run, Value: &run},
		{Name: r.branches.Lumi, Value: &lumi},
		{Name: r.branches.Event, Value: &evt},
	}
	return scan(ctx, t, r.eventTree, vars, func() error {
		b.IDs = append(b.IDs, event.ID{Run: run, Lumi: lumi, Event: evt})
		return nil
	})
}

func lookup(f *riofs.File, name string) (rtree.Tree, error) {
	obj, err := riofs.Dir(f).Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: tree %s: %w", types.ErrMissingField, name, err)
	}
	t, ok := obj.(rtree.Tree)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not a tree", types.ErrMissingField, name, obj.Class())
	}
	return t, nil
}

// scan runs fn once per entry of t after vars were filled. The context is
// checked between entries.
func scan(ctx context.Context, t rtree.Tree, name string, vars []rtree.ReadVar, fn func() error) error {
	rd, err := rtree.NewReader(t, vars)
	if err != nil {
		return fmt.Errorf("%w: tree %s: %w", types.ErrMissingField, name, err)
	}
	defer rd.Close()

	err = rd.Read(func(rtree.RCtx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}
