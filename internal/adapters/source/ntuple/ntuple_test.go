package ntuple_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/okian/trigml/internal/adapters/source/ntuple"
	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/okian/trigml/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type upgradeRow struct {
	muons   [][3]float32
	jets    [][3]float32
	sumType []int16
	sumEt   []float32
	sumPhi  []float32
}

// writeNtuple writes a flat three-tree file using top-level tree names.
func writeNtuple(t *testing.T, path string, rows []upgradeRow, decisions [][]bool, events []uint64) {
	t.Helper()
	f, err := groot.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	var (
		nMu, nEg, nJet, nSum  int32
		muEt, muEta, muPhi    []float32
		egEt, egEta, egPhi    []float32
		jetEt, jetEta, jetPhi []float32
		sumType               []int16
		sumEt, sumPhi         []float32
	)
	up, err := rtree.NewWriter(f, "upgrade", []rtree.WriteVar{
		{Name: "nMu", Value: &nMu},
		{Name: "muonEt", Value: &muEt, Count: "nMu"},
		{Name: "muonEta", Value: &muEta, Count: "nMu"},
		{Name: "muonPhi", Value: &muPhi, Count: "nMu"},
		{Name: "nEg", Value: &nEg},
		{Name: "egEt", Value: &egEt, Count: "nEg"},
		{Name: "egEta", Value: &egEta, Count: "nEg"},
		{Name: "egPhi", Value: &egPhi, Count: "nEg"},
		{Name: "nJet", Value: &nJet},
		{Name: "jetEt", Value: &jetEt, Count: "nJet"},
		{Name: "jetEta", Value: &jetEta, Count: "nJet"},
		{Name: "jetPhi", Value: &jetPhi, Count: "nJet"},
		{Name: "nSum", Value: &nSum},
		{Name: "sumType", Value: &sumType, Count: "nSum"},
		{Name: "sumEt", Value: &sumEt, Count: "nSum"},
		{Name: "sumPhi", Value: &sumPhi, Count: "nSum"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		muEt, muEta, muPhi = nil, nil, nil
		for _, m := range row.muons {
			muEt, muEta, muPhi = append(muEt, m[0]), append(muEta, m[1]), append(muPhi, m[2])
		}
		jetEt, jetEta, jetPhi = nil, nil, nil
		for _, j := range row.jets {
			jetEt, jetEta, jetPhi = append(jetEt, j[0]), append(jetEta, j[1]), append(jetPhi, j[2])
		}
		egEt, egEta, egPhi = nil, nil, nil
		nMu, nEg, nJet = int32(len(muEt)), 0, int32(len(jetEt))
		sumType, sumEt, sumPhi = row.sumType, row.sumEt, row.sumPhi
		nSum = int32(len(sumType))
		if _, err := up.Write(); err != nil {
			t.Fatal(err)
		}
	}
	if err := up.Close(); err != nil {
		t.Fatal(err)
	}

	var (
		nBits int32
		final []bool
	)
	ugt, err := rtree.NewWriter(f, "ugt", []rtree.WriteVar{
		{Name: "nBits", Value: &nBits},
		{Name: "m_algoDecisionFinal", Value: &final, Count: "nBits"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range decisions {
		final = d
		nBits = int32(len(d))
		if _, err := ugt.Write(); err != nil {
			t.Fatal(err)
		}
	}
	if err := ugt.Close(); err != nil {
		t.Fatal(err)
	}

	var (
		run, lumi uint32
		evt       uint64
	)
	ev, err := rtree.NewWriter(f, "evt", []rtree.WriteVar{
		{Name: "run", Value: &run},
		{Name: "lumi", Value: &lumi},
		{Name: "event", Value: &evt},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		run, lumi, evt = 355100, 7, e
		if _, err := ev.Write(); err != nil {
			t.Fatal(err)
		}
	}
	if err := ev.Close(); err != nil {
		t.Fatal(err)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func newReader(opts ...ntuple.Option) *ntuple.Reader {
	base := []ntuple.Option{
		ntuple.WithUpgradeTree("upgrade"),
		ntuple.WithUGTTree("ugt"),
		ntuple.WithEventTree("evt"),
	}
	return ntuple.New(append(base, opts...)...)
}

func TestReader(t *testing.T) {
	Convey("Given an L1Ntuple file with two events", t, func() {
		path := filepath.Join(t.TempDir(), "L1Ntuple_1.root")
		writeNtuple(t, path,
			[]upgradeRow{
				{
					muons:   [][3]float32{{10, 0.5, 1}},
					jets:    [][3]float32{{40, 1, 2}, {35, -1, -2}},
					sumType: []int16{0, event.SumTypeMET},
					sumEt:   []float32{200, 30},
					sumPhi:  []float32{0, 1.5},
				},
				{
					sumType: []int16{event.SumTypeMET},
					sumEt:   []float32{12},
					sumPhi:  []float32{-0.5},
				},
			},
			[][]bool{{false, true, false}, {false, false, false}},
			[]uint64{101, 102},
		)

		Convey("When it is read with one un-prescaled bit", func() {
			r := newReader(ntuple.WithBits(map[string]int{"L1_SingleMu22": 1}))
			b, err := r.Read(context.Background(), path)

			Convey("Then objects, sums, decisions and ids are decoded", func() {
				So(err, ShouldBeNil)
				So(b.Len(), ShouldEqual, 2)
				So(b.Info.Files, ShouldResemble, []string{path})

				So(b.Muons.Count(0), ShouldEqual, 1)
				So(b.Muons.Count(1), ShouldEqual, 0)
				So(b.Muons.At(0, 0), ShouldResemble, event.Object{Pt: 10, Eta: 0.5, Phi: 1})
				So(b.Jets.Count(0), ShouldEqual, 2)
				So(b.Jets.At(0, 1).Pt, ShouldEqual, 35)
				So(b.EGammas.Count(0), ShouldEqual, 0)

				So(b.Sums.Entries(0), ShouldHaveLength, 2)
				So(b.Sums.Entries(1)[0], ShouldResemble, event.Sum{Type: event.SumTypeMET, Pt: 12, Phi: -0.5})

				So(b.Decisions.Names, ShouldResemble, []string{"L1_SingleMu22", event.TotalBit})
				bit, ok := b.Decisions.Column("L1_SingleMu22")
				So(ok, ShouldBeTrue)
				So(bit, ShouldResemble, []bool{true, false})
				total, _ := b.Decisions.Column(event.TotalBit)
				So(total, ShouldResemble, []bool{true, false})

				So(b.IDs, ShouldResemble, []event.ID{
					{Run: 355100, Lumi: 7, Event: 101},
					{Run: 355100, Lumi: 7, Event: 102},
				})
			})
		})

		Convey("When a bit index is beyond the decision vector", func() {
			r := newReader(ntuple.WithBits(map[string]int{"L1_Far": 400}))
			b, err := r.Read(context.Background(), path)

			Convey("Then the bit never fires", func() {
				So(err, ShouldBeNil)
				bit, _ := b.Decisions.Column("L1_Far")
				So(bit, ShouldResemble, []bool{false, false})
			})
		})

		Convey("When event ids are disabled", func() {
			r := newReader(ntuple.WithEventTree(""))
			b, err := r.Read(context.Background(), path)

			Convey("Then the batch carries no ids", func() {
				So(err, ShouldBeNil)
				So(b.IDs, ShouldBeEmpty)
			})
		})

		Convey("When the upgrade tree does not exist", func() {
			r := newReader(ntuple.WithUpgradeTree("missing"))
			_, err := r.Read(context.Background(), path)

			Convey("Then a missing field error is returned", func() {
				So(errors.Is(err, types.ErrMissingField), ShouldBeTrue)
			})
		})

		Convey("When the context is already canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := newReader().Read(ctx, path)

			Convey("Then the read is aborted", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})

	Convey("Given a path that is not a ROOT file", t, func() {
		_, err := newReader().Read(context.Background(), filepath.Join(t.TempDir(), "nope.root"))

		Convey("Then opening fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestBranchesOverride(t *testing.T) {
	Convey("Given the default branch names", t, func() {
		def := ntuple.DefaultBranches()

		Convey("When jet pt and the decision vector are renamed", func() {
			b, err := def.Override(map[string]string{"jet_et": "jetPt", "decisions": "m_algoDecisionInitial"})

			Convey("Then only those branches change", func() {
				So(err, ShouldBeNil)
				So(b.JetEt, ShouldEqual, "jetPt")
				So(b.Decisions, ShouldEqual, "m_algoDecisionInitial")
				So(b.JetEta, ShouldEqual, def.JetEta)
				So(b.MuonEt, ShouldEqual, def.MuonEt)
			})
		})

		Convey("When a key is unknown or a name is empty", func() {
			_, err := def.Override(map[string]string{"jetPt": "x"})
			So(errors.Is(err, types.ErrConfiguration), ShouldBeTrue)

			_, err = def.Override(map[string]string{"run": ""})
			So(errors.Is(err, types.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When nothing is overridden", func() {
			b, err := def.Override(nil)
			So(err, ShouldBeNil)
			So(b, ShouldResemble, def)
		})
	})
}
