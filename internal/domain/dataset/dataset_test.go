package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/okian/trigml/internal/domain/dataset"
	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/scaler"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

// capacities {jets:1, muons:0, egammas:0} give rows [MET_pt, MET_phi, jet_pt, jet_eta, jet_phi].
const width = 5

func writeModelDir(dir string, folds int, scalers ...*scaler.Standard) {
	cfg := "type: topo\nnJets: 1\nnMuons: 0\nnEgammas: 0\nfolds: " + strconv.Itoa(folds) + "\n"
	if err := os.WriteFile(filepath.Join(dir, model.ConfigFile), []byte(cfg), 0o600); err != nil {
		panic(err)
	}
	for f, s := range scalers {
		if err := s.Save(dir, f); err != nil {
			panic(err)
		}
	}
}

func identity(n int) *scaler.Standard {
	s := &scaler.Standard{NFeatures: n, Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

func shifted(n int, by float64) *scaler.Standard {
	s := identity(n)
	for i := range s.Mean {
		s.Mean[i] = by
	}
	return s
}

func batch(sample string, jetPts ...float64) *event.Batch {
	b := event.NewBatch(sample)
	for _, pt := range jetPts {
		b.Jets.Append(event.Object{Pt: pt, Eta: 0.5, Phi: 1})
		b.Muons.Append()
		b.EGammas.Append()
		b.Sums.Append(event.Sum{Type: event.SumTypeMET, Pt: 20, Phi: 0.1})
	}
	return b
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a single-fold model directory", t, func() {
		dir := t.TempDir()
		writeModelDir(dir, 1, identity(width))

		convey.Convey("When assembling one signal and one background event", func() {
			ds, err := dataset.Assemble(ctx, dir, dataset.Sources{
				types.LabelBackground: batch("bkg", 60),
				types.LabelSignal:     batch("sig", 50),
			})

			convey.Convey("Then signal rows come first with label 1", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ds.X.Rows, convey.ShouldEqual, 2)
				convey.So(ds.Y, convey.ShouldResemble, []float64{1.0, 0.0})
				convey.So(ds.X.Row(0)[2], convey.ShouldEqual, 50)
				convey.So(ds.X.Row(1)[2], convey.ShouldEqual, 60)
				convey.So(ds.Blocks, convey.ShouldResemble, []dataset.Block{
					{Label: types.LabelSignal, Rows: 1},
					{Label: types.LabelBackground, Rows: 1},
				})
			})

			convey.Convey("Then one standardized matrix per fold is exposed", func() {
				convey.So(len(ds.Folds), convey.ShouldEqual, 1)
				convey.So(ds.Folds[0].Data, convey.ShouldResemble, ds.X.Data)
			})
		})

		convey.Convey("When assembling only background", func() {
			ds, err := dataset.Assemble(ctx, dir, dataset.Sources{
				types.LabelBackground: batch("bkg", 1, 2, 3),
			})

			convey.Convey("Then every label is 0", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ds.Y, convey.ShouldResemble, []float64{0, 0, 0})
				convey.So(len(ds.Y), convey.ShouldEqual, ds.X.Rows)
			})
		})

		convey.Convey("When no source is given", func() {
			_, err := dataset.Assemble(ctx, dir, dataset.Sources{})

			convey.Convey("Then it should be a configuration error", func() {
				convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an unknown label is given", func() {
			_, err := dataset.Assemble(ctx, dir, dataset.Sources{"data": batch("d", 1)})

			convey.Convey("Then it should be a configuration error", func() {
				convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a scaler fitted for a different width", t, func() {
		dir := t.TempDir()
		writeModelDir(dir, 1, identity(width+3))

		_, err := dataset.Assemble(ctx, dir, dataset.Sources{types.LabelSignal: batch("sig", 1)})

		convey.Convey("Then it should be a scaler mismatch", func() {
			convey.So(errors.Is(err, types.ErrScalerMismatch), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a model directory without config", t, func() {
		_, err := dataset.Assemble(ctx, t.TempDir(), dataset.Sources{types.LabelSignal: batch("sig", 1)})

		convey.Convey("Then it should be a configuration error", func() {
			convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given an event with two MET entries", t, func() {
		dir := t.TempDir()
		writeModelDir(dir, 1, identity(width))
		b := batch("sig", 10)
		b.Sums = event.NewSums()
		b.Sums.Append(event.Sum{Type: event.SumTypeMET}, event.Sum{Type: event.SumTypeMET})

		_, err := dataset.Assemble(ctx, dir, dataset.Sources{types.LabelSignal: b})

		convey.Convey("Then the shaper error propagates unchanged", func() {
			convey.So(errors.Is(err, types.ErrMissingField), convey.ShouldBeTrue)
		})
	})
}

func TestSelect(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a two-fold dataset", t, func() {
		dir := t.TempDir()
		writeModelDir(dir, 2, shifted(width, 0), shifted(width, 2))
		ds, err := dataset.Assemble(ctx, dir, dataset.Sources{types.LabelSignal: batch("sig", 10)})
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(ds.Folds), convey.ShouldEqual, 2)

		convey.Convey("Then the first-fold policy returns fold 0", func() {
			m, err := ds.Select(dataset.FirstFold)
			convey.So(err, convey.ShouldBeNil)
			convey.So(m.Row(0)[2], convey.ShouldEqual, 10)
		})

		convey.Convey("Then an explicit index returns that fold", func() {
			m, err := ds.Select(dataset.FoldIndex(1))
			convey.So(err, convey.ShouldBeNil)
			convey.So(m.Row(0)[2], convey.ShouldEqual, 8)
		})

		convey.Convey("Then the mean policy averages the folds", func() {
			m, err := ds.Select(dataset.MeanFolds)
			convey.So(err, convey.ShouldBeNil)
			convey.So(m.Row(0)[2], convey.ShouldEqual, 9)
		})

		convey.Convey("Then an out-of-range index fails", func() {
			_, err := ds.Select(dataset.FoldIndex(2))
			convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given policy strings", t, func() {
		for in, want := range map[string]string{"": "first", "first": "first", "mean": "mean", "index:3": "index:3"} {
			p, err := dataset.ParseFoldPolicy(in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.String(), convey.ShouldEqual, want)
		}
		_, err := dataset.ParseFoldPolicy("median")
		convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)

		convey.So(dataset.FirstFold.Fold(), convey.ShouldEqual, 0)
		convey.So(dataset.MeanFolds.Fold(), convey.ShouldEqual, 0)
		convey.So(dataset.FoldIndex(3).Fold(), convey.ShouldEqual, 3)
	})
}
