package qsim

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetrics(t *testing.T) {
	Convey("Given metrics registered on a fresh registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewMetrics(reg)

		Convey("Gate and measurement events should be counted per backend", func() {
			m.recordGate("host", time.Microsecond)
			m.recordGate("host", time.Microsecond)
			m.recordGate("emulated", time.Microsecond)
			m.recordMeasurement("host")

			So(testutil.ToFloat64(m.gates.WithLabelValues("host")), ShouldEqual, 2.0)
			So(testutil.ToFloat64(m.gates.WithLabelValues("emulated")), ShouldEqual, 1.0)
			So(testutil.ToFloat64(m.measurements.WithLabelValues("host")), ShouldEqual, 1.0)
			So(testutil.CollectAndCount(m.stepDuration), ShouldEqual, 2)

			snapshot := m.ExportMetrics()
			So(snapshot["gates_applied"], ShouldEqual, int64(3))
			So(snapshot["measurements"], ShouldEqual, int64(1))
		})

		Convey("Fallbacks should be counted", func() {
			m.recordFallback()
			So(testutil.ToFloat64(m.fallbacks), ShouldEqual, 1.0)
		})

		Convey("Job latencies should feed the percentiles", func() {
			start := time.Now().Add(-time.Millisecond)

			for i := 0; i < 600; i++ {
				m.recordJobExecution(start, i%10 != 0)
			}

			snapshot := m.ExportMetrics()
			So(snapshot["jobs"], ShouldEqual, int64(600))
			So(snapshot["job_failures"], ShouldEqual, int64(60))
			So(len(m.latencies), ShouldEqual, 512)
			So(m.P99JobLatency, ShouldBeGreaterThanOrEqualTo, m.P95JobLatency)
			So(testutil.ToFloat64(m.jobs.WithLabelValues("failure")), ShouldEqual, 60.0)
		})

		Convey("Registering twice on the same registry should panic", func() {
			So(func() { NewMetrics(reg) }, ShouldPanic)
		})
	})
}
