package model_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/trigml/internal/domain/model"
	"github.com/okian/trigml/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func writeConfig(dir, content string) {
	if err := os.WriteFile(filepath.Join(dir, model.ConfigFile), []byte(content), 0o600); err != nil {
		panic(err)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a model directory", t, func() {
		dir := t.TempDir()

		convey.Convey("When config.yaml is complete", func() {
			writeConfig(dir, `
type: topo
folds: 5
nJets: 6
nMuons: 2
nEgammas: 4
`)
			cfg, err := model.Load(ctx, dir)

			convey.Convey("Then it should load all capacities", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, model.Config{
					Kind: model.KindTopo, Folds: 5, NJets: 6, NMuons: 2, NEgammas: 4,
				})
			})
		})

		convey.Convey("When a required key is missing", func() {
			writeConfig(dir, `
type: topo
folds: 1
nJets: 6
nMuons: 2
`)
			_, err := model.Load(ctx, dir)

			convey.Convey("Then it should be a configuration error", func() {
				convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "nEgammas")
			})
		})

		convey.Convey("When config.yaml does not exist", func() {
			_, err := model.Load(ctx, dir)

			convey.Convey("Then it should be a configuration error", func() {
				convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When config.yaml is not valid YAML", func() {
			writeConfig(dir, `type: [topo`)
			_, err := model.Load(ctx, dir)

			convey.Convey("Then it should be a configuration error", func() {
				convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the model type is unknown", func() {
			writeConfig(dir, `
type: graphnet
folds: 1
nJets: 1
nMuons: 1
nEgammas: 1
`)
			_, err := model.Load(ctx, dir)

			convey.Convey("Then it should be an unsupported format error", func() {
				convey.So(errors.Is(err, types.ErrUnsupportedFormat), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When folds is zero", func() {
			writeConfig(dir, `
type: anomaly
folds: 0
nJets: 1
nMuons: 1
nEgammas: 1
`)
			_, err := model.Load(ctx, dir)

			convey.Convey("Then it should be a configuration error", func() {
				convey.So(errors.Is(err, types.ErrConfiguration), convey.ShouldBeTrue)
			})
		})
	})
}

func TestKind(t *testing.T) {
	convey.Convey("Given kind tags", t, func() {
		convey.So(model.KindTopo.String(), convey.ShouldEqual, "topo")
		k, err := model.ParseKind("anomaly")
		convey.So(err, convey.ShouldBeNil)
		convey.So(k, convey.ShouldEqual, model.KindAnomaly)
	})

	convey.Convey("Given a directory", t, func() {
		convey.So(model.ScalerPath("/m", 2), convey.ShouldEqual, filepath.Join("/m", "scaler_2.yaml"))
		convey.So(model.NetworkPath("/m", 0), convey.ShouldEqual, filepath.Join("/m", "model_0.yaml"))
	})
}
