package inference_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/trigml/internal/adapters/inference"
	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/model"
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

const sumNetwork = `layers:
  - weights: [[1, 1]]
    bias: [0]
`

func touch(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDetect(t *testing.T) {
	Convey("Given a model directory", t, func() {
		dir := t.TempDir()

		Convey("When fold 0 has every export", func() {
			touch(t, model.NetworkPath(dir, 0), sumNetwork)
			touch(t, model.FrozenGraphPath(dir, 0), "")
			touch(t, filepath.Join(model.SavedModelPath(dir, 0), model.SavedModelFile), "")

			Convey("Then the SavedModel wins", func() {
				format, path, err := inference.Detect(dir, 0)
				So(err, ShouldBeNil)
				So(format, ShouldEqual, inference.FormatSavedModel)
				So(path, ShouldEqual, model.SavedModelPath(dir, 0))
			})
		})

		Convey("When fold 0 has a frozen graph and a dense network", func() {
			touch(t, model.NetworkPath(dir, 0), sumNetwork)
			touch(t, model.FrozenGraphPath(dir, 0), "")

			Convey("Then the frozen graph wins", func() {
				format, path, err := inference.Detect(dir, 0)
				So(err, ShouldBeNil)
				So(format, ShouldEqual, inference.FormatFrozenGraph)
				So(path, ShouldEqual, model.FrozenGraphPath(dir, 0))
			})
		})

		Convey("When model_0 is a directory without saved_model.pb", func() {
			So(os.MkdirAll(model.SavedModelPath(dir, 0), 0o755), ShouldBeNil)
			touch(t, model.NetworkPath(dir, 0), sumNetwork)

			Convey("Then the dense network is used", func() {
				format, _, err := inference.Detect(dir, 0)
				So(err, ShouldBeNil)
				So(format, ShouldEqual, inference.FormatDense)
			})
		})

		Convey("When the fold has no model", func() {
			_, _, err := inference.Detect(dir, 3)

			Convey("Then the error names the expected files", func() {
				So(errors.Is(err, types.ErrConfiguration), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "model_3/saved_model.pb")
				So(err.Error(), ShouldContainSubstring, "model_3.pb")
			})
		})
	})
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	Convey("Given dense networks for two folds", t, func() {
		dir := t.TempDir()
		touch(t, model.NetworkPath(dir, 0), sumNetwork)
		touch(t, model.NetworkPath(dir, 1), sumNetwork)
		l := inference.New()

		Convey("When every fold is loaded", func() {
			models, err := l.LoadAll(ctx, dir, 2)

			Convey("Then each model scores rows", func() {
				So(err, ShouldBeNil)
				So(models, ShouldHaveLength, 2)
				got, err := models[1].Predict(ctx, matrix.Matrix{Rows: 1, Cols: 2, Data: []float64{2, 3}})
				So(err, ShouldBeNil)
				So(got, ShouldResemble, []float64{5})
				So(inference.Close(models...), ShouldBeNil)
			})
		})

		Convey("When a fold is missing", func() {
			_, err := l.LoadAll(ctx, dir, 3)
			So(errors.Is(err, types.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When a frozen graph is corrupt", func() {
			touch(t, model.FrozenGraphPath(dir, 0), "garbage")
			m, err := l.Load(ctx, dir, 0)

			Convey("Then no model is returned", func() {
				So(errors.Is(err, types.ErrConfiguration), ShouldBeTrue)
				So(m, ShouldBeNil)
			})
		})
	})
}
