package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("solver"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the configured names", func() {
				So(manager, ShouldNotBeNil)
				manager.cyclesCanceled.Add(3)

				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_solver_cycles_canceled_total")
				So(testutil.ToFloat64(manager.cyclesCanceled), ShouldEqual, 3)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { _ = NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording run lifecycle metrics", func() {
			before := testutil.ToFloat64(globalManager.runsSubmitted.WithLabelValues("matching"))
			RecordRunSubmitted("matching")
			RecordRunCompleted("matching", "succeeded")
			RecordRunDuplicate()
			RecordSolveLatency("matching", "cycle-canceling", 12.5)

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.runsSubmitted.WithLabelValues("matching")), ShouldEqual, before+1)
			})
		})

		Convey("When recording solver output", func() {
			before := testutil.ToFloat64(globalManager.augmentations)
			RecordEdgesBuilt(120)
			RecordMatches("courses", 7)
			RecordMatchingCost(3.25)
			RecordCyclesCanceled(2)
			RecordAugmentations(5)
			RecordIntegrityViolation()

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.augmentations), ShouldEqual, before+5)
			})
		})

		Convey("When updating operational gauges", func() {
			UpdateQueueSize(10)
			UpdateQueueCapacity(100)
			UpdateQueueUtilization(0.1)
			RecordQueueEnqueueError()
			UpdateWorkerCount(4)
			UpdateWorkerActiveCount(2)
			RecordWorkerError()
			UpdateStoredRuns(9)

			Convey("Then gauges hold the latest value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.storedRuns), ShouldEqual, 9)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("/matchings", "POST", "202")
				RecordHTTPRequestDuration("/matchings", "POST", "202", 4.2)
				RecordErrorByComponent("engine", "integrity")
			}, ShouldNotPanic)
		})

		Convey("When asking for the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func TestRegisterRuntimeCollectors(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		Convey("When runtime collectors are registered twice", func() {
			So(func() {
				RegisterRuntimeCollectors()
				RegisterRuntimeCollectors()
			}, ShouldNotPanic)

			Convey("Then Go runtime metrics are gathered", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "go_goroutines" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
