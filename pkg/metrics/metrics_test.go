package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it uses the default namespace and subsystem", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "trigml")
				So(manager.subsystem, ShouldEqual, "pipeline")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"campaign": "Run3Summer23"}),
				WithRegistry(registry),
			)
			manager.rowsScored.Add(3)

			Convey("Then the metrics carry the configured names and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, mf := range families {
					if mf.GetName() != "test_unit_rows_scored_total" {
						continue
					}
					found = true
					So(mf.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 3)
					So(mf.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "campaign")
					So(mf.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "Run3Summer23")
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When a const label shares its name with a variable label", func() {
			registry := prometheus.NewRegistry()
			var manager *Manager
			So(func() {
				manager = NewManager(
					WithConstLabels(map[string]string{"sample": "ttbar", "host": "lxplus"}),
					WithRegistry(registry),
				)
			}, ShouldNotPanic)
			manager.eventsRead.WithLabelValues("signal").Add(2)

			Convey("Then it is renamed and both labels are exported", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				labels := map[string]string{}
				for _, mf := range families {
					if mf.GetName() != "trigml_pipeline_events_read_total" {
						continue
					}
					for _, lp := range mf.GetMetric()[0].GetLabel() {
						labels[lp.GetName()] = lp.GetValue()
					}
				}
				So(labels, ShouldResemble, map[string]string{
					"const_sample": "ttbar",
					"host":         "lxplus",
					"sample":       "signal",
				})
			})
		})

		Convey("When empty options are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithLatencyBuckets(nil),
				WithRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "trigml")
				So(manager.subsystem, ShouldEqual, "pipeline")
				So(manager.latencyBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording reader metrics", func() {
			before := testutil.ToFloat64(globalManager.eventsRead.WithLabelValues("signal"))
			RecordEventsRead("signal", 5)
			RecordFileRead("l1ntuple")
			RecordFileReadLatency(12)

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(globalManager.eventsRead.WithLabelValues("signal")), ShouldEqual, before+5)
				So(testutil.ToFloat64(globalManager.filesRead.WithLabelValues("l1ntuple")), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When recording scoring metrics", func() {
			before := testutil.ToFloat64(globalManager.rowsScored)
			RecordRowsScored(7)
			RecordInferenceBatchLatency(0.5)
			RecordDecisionsFired("background", 2)

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(globalManager.rowsScored), ShouldEqual, before+7)
				So(testutil.ToFloat64(globalManager.decisionsFired.WithLabelValues("background")), ShouldBeGreaterThanOrEqualTo, 2)
			})
		})

		Convey("When toggling worker gauges", func() {
			UpdateWorkerCount(4)
			IncWorkerActive()
			IncWorkerActive()
			DecWorkerActive()
			active := testutil.ToFloat64(globalManager.workerActiveCount)
			DecWorkerActive()

			Convey("Then the gauges track the changes", func() {
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, active-1)
			})
		})

		Convey("When recording errors and system metrics", func() {
			So(func() {
				RecordErrorByComponent("scoring", "mismatch")
				RecordDuplicatesDropped(1)
				RecordRowsShaped("signal", 10)
				RecordShapingLatency(1.5)
				UpdateSystemMetrics()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldBeGreaterThan, 0)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.eventsDuplicate)

		var wg sync.WaitGroup
		for n := 0; n < 10; n++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 100; n++ {
					RecordDuplicatesDropped(1)
				}
			}()
		}
		wg.Wait()

		So(testutil.ToFloat64(globalManager.eventsDuplicate), ShouldEqual, before+1000)
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a metrics textfile path", t, func() {
		path := filepath.Join(t.TempDir(), "trigml.prom")
		RecordRowsScored(1)

		Convey("When the registry is written", func() {
			err := WriteTextfile(path)

			Convey("Then the file holds the exposition text", func() {
				So(err, ShouldBeNil)
				raw, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, "trigml_pipeline_rows_scored_total")
			})
		})

		Convey("When the shared registry is gathered", func() {
			series, err := testutil.GatherAndCount(GetRegistry(), "trigml_pipeline_rows_scored_total")

			Convey("Then it serves the package-level counters", func() {
				So(err, ShouldBeNil)
				So(series, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.rowsScored), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When the path is empty", func() {
			So(WriteTextfile(""), ShouldBeNil)
		})

		Convey("When the directory does not exist", func() {
			err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
			So(errors.Is(err, ErrWriteFailed), ShouldBeTrue)
		})
	})
}
