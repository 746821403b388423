package qsim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qsim/device"
)

// faultyDriver opens emulated devices, every fourth of which fails to launch.
type faultyDriver struct {
	opened atomic.Int64
}

type faultyDevice struct {
	device.Device
}

func (d faultyDevice) Launch(device.Kernel) error {
	return &device.Error{Driver: "faulty", Op: "launch", Code: device.CodeLaunchFailed, Msg: "kernel fault"}
}

func (d *faultyDriver) Name() string          { return "faulty" }
func (d *faultyDriver) Devices() (int, error) { return 1, nil }

func (d *faultyDriver) Open(ordinal int) (device.Device, error) {
	dev, err := device.Open(device.EmulatedDriver, ordinal)
	if err != nil {
		return nil, err
	}

	if d.opened.Add(1)%4 == 0 {
		return faultyDevice{dev}, nil
	}

	return dev, nil
}

func init() {
	device.Register(&faultyDriver{})
}

// within runs fn and reports whether it returned before the deadline.
func within(d time.Duration, fn func()) bool {
	done := make(chan struct{})

	go func() {
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func bellCircuit() *Circuit {
	return NewCircuit(2).H(0).CNOT(0, 1).Measure(0, 1)
}

func TestRun(t *testing.T) {
	Convey("Given a Bell circuit", t, func() {
		ctx := context.Background()

		Convey("Run should return correlated outcomes and the collapsed state", func() {
			res, err := Run(ctx, bellCircuit(), hostConfig(), 17)
			So(err, ShouldBeNil)
			So(res.Backend, ShouldEqual, BackendHost)
			So(res.Outcomes, ShouldHaveLength, 1)

			bits := res.Outcomes[0].Bits
			So(bits[0], ShouldEqual, bits[1])
			So(res.State.Probabilities()[res.Outcomes[0].Value()], ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("A fixed seed should reproduce the run", func() {
			c := NewCircuit(4).H(0).H(1).H(2).H(3).Measure().H(0).Measure(0)

			a, err := Run(ctx, c, hostConfig(), 1234)
			So(err, ShouldBeNil)

			b, err := Run(ctx, c, hostConfig(), 1234)
			So(err, ShouldBeNil)

			So(a.Key(), ShouldEqual, b.Key())
			So(a.State.ApproxEqual(b.State, 0), ShouldBeTrue)
		})

		Convey("A circuit with build errors should not run", func() {
			_, err := Run(ctx, NewCircuit(2).H(5), hostConfig(), 1)
			So(errors.Is(err, ErrInvalidQubitIndex), ShouldBeTrue)
		})

		Convey("A cancelled context should stop between instructions", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := Run(cctx, bellCircuit(), hostConfig(), 1)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestTrace(t *testing.T) {
	Convey("Given a measurement-free circuit", t, func() {
		c := NewCircuit(2).H(0).CNOT(0, 1).H(0)

		Convey("Trace should return the state after every step", func() {
			states, err := Trace(context.Background(), c, hostConfig())
			So(err, ShouldBeNil)
			So(states, ShouldHaveLength, 4)
			So(states[0].Amplitude(0), ShouldEqual, complex(1, 0))

			h := 1 / math.Sqrt2
			So(real(states[2].Amplitude(0)), ShouldAlmostEqual, h, 1e-12)
			So(real(states[2].Amplitude(3)), ShouldAlmostEqual, h, 1e-12)
		})

		Convey("Trace should refuse circuits that measure", func() {
			_, err := Trace(context.Background(), bellCircuit(), hostConfig())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRunShots(t *testing.T) {
	Convey("Given many shots of a Bell circuit", t, func() {
		ctx := context.Background()

		Convey("Only correlated outcomes should appear, in roughly equal numbers", func() {
			counts, err := RunShots(ctx, bellCircuit(), hostConfig(), 2000, 8)
			So(err, ShouldBeNil)
			So(counts.Total(), ShouldEqual, 2000)
			So(len(counts), ShouldEqual, 2)
			So(counts["00"], ShouldBeBetween, 850, 1150)
			So(counts["11"], ShouldBeBetween, 850, 1150)
		})

		Convey("Counts should depend only on the seed", func() {
			a, err := RunShots(ctx, bellCircuit(), hostConfig(), 200, 5)
			So(err, ShouldBeNil)

			b, err := RunShots(ctx, bellCircuit(), hostConfig(), 200, 5)
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
		})

		Convey("A circuit without measurements should be measured at the end", func() {
			counts, err := RunShots(ctx, NewCircuit(2).X(1), hostConfig(), 10, 1)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, Counts{"01": 10})
		})

		Convey("Shots should run on the emulated device too", func() {
			counts, err := RunShots(ctx, bellCircuit(), configFor(BackendDevice, "emulated"), 50, 3)
			So(err, ShouldBeNil)
			So(counts["00"]+counts["11"], ShouldEqual, 50)
		})

		Convey("A non-positive shot count should be rejected", func() {
			_, err := RunShots(ctx, bellCircuit(), hostConfig(), 0, 1)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestShotSeed(t *testing.T) {
	Convey("Given a run seed", t, func() {
		So(ShotSeed(1, 0), ShouldEqual, ShotSeed(1, 0))
		So(ShotSeed(1, 0), ShouldNotEqual, ShotSeed(1, 1))
		So(ShotSeed(1, 0), ShouldNotEqual, ShotSeed(2, 0))
	})
}

func TestCancellationWithPool(t *testing.T) {
	Convey("Given a register large enough for the worker pool", t, func() {
		cfg := hostConfig()
		cfg.ChunkSize = 64

		cctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		qc, err := NewContext(cctx, 12, cfg, WithSeed(3))
		So(err, ShouldBeNil)

		Reset(func() {
			qc.Close()
		})

		Convey("A step applied after cancellation should still complete", func() {
			cancel()

			var applyErr error

			So(within(5*time.Second, func() {
				applyErr = qc.Apply(Hadamard(), []int{0})
			}), ShouldBeTrue)
			So(applyErr, ShouldBeNil)

			probs, err := qc.Probabilities(0)
			So(err, ShouldBeNil)
			So(probs[1], ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("Steps running while the context is cancelled should all complete", func() {
			var applyErr error

			time.AfterFunc(time.Millisecond, cancel)

			So(within(10*time.Second, func() {
				for i := 0; i < 200 && applyErr == nil; i++ {
					applyErr = qc.Apply(Hadamard(), []int{i % 12})
				}
			}), ShouldBeTrue)
			So(applyErr, ShouldBeNil)

			state, err := qc.State()
			So(err, ShouldBeNil)
			So(math.Abs(state.Norm()-1), ShouldBeLessThan, 1e-9)
		})

		Convey("Run should stop between instructions without hanging", func() {
			c := NewCircuit(12)
			for q := 0; q < 12; q++ {
				c.H(q)
			}

			cancel()

			var runErr error

			So(within(5*time.Second, func() {
				_, runErr = Run(cctx, c.Measure(), cfg, 1)
			}), ShouldBeTrue)
			So(errors.Is(runErr, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestRunShotsFailure(t *testing.T) {
	Convey("Given a device that fails some of its launches", t, func() {
		cfg := NewConfig()
		cfg.Backend = BackendDevice
		cfg.DeviceDriver = "faulty"

		Convey("RunShots should return the failure instead of counts", func() {
			var (
				counts Counts
				err    error
			)

			So(within(10*time.Second, func() {
				counts, err = RunShots(context.Background(), bellCircuit(), cfg, 32, 11)
			}), ShouldBeTrue)
			So(errors.Is(err, ErrBackend), ShouldBeTrue)
			So(counts, ShouldBeNil)
		})
	})

	Convey("Given pooled host shots and a context cancelled mid-run", t, func() {
		cfg := hostConfig()
		cfg.ChunkSize = 64

		c := NewCircuit(12)
		for q := 0; q < 12; q++ {
			c.H(q)
		}

		cctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		time.AfterFunc(2*time.Millisecond, cancel)

		Convey("RunShots should return rather than wait on abandoned steps", func() {
			var err error

			So(within(20*time.Second, func() {
				_, err = RunShots(cctx, c.Measure(), cfg, 256, 5)
			}), ShouldBeTrue)

			if err != nil {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			}
		})
	})
}
