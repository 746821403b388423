package device

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/theapemachine/qsim/internal/bitmath"
)

// EmulatedDriver is the name of the always-compiled host emulation driver.
const EmulatedDriver = "emulated"

func init() {
	Register(emulatedDriver{})
}

/*
emulatedDriver exposes one device whose queue is served by a dedicated
goroutine. Buffers are complex64, as on real accelerators; kernels accumulate
in float64.
*/
type emulatedDriver struct{}

func (emulatedDriver) Name() string { return EmulatedDriver }

func (emulatedDriver) Devices() (int, error) { return 1, nil }

func (emulatedDriver) Open(ordinal int) (Device, error) {
	var total uint64

	if vm, err := mem.VirtualMemory(); err == nil {
		total = vm.Total
	}

	d := &emulatedDevice{
		info: Info{
			Driver:  EmulatedDriver,
			Ordinal: ordinal,
			Name:    fmt.Sprintf("host emulation (%d compute units)", runtime.GOMAXPROCS(0)),
			Memory:  total / 2,
			Compute: "complex64/float64",
		},
		units: runtime.GOMAXPROCS(0),
		queue: make(chan func() error, 64),
		done:  make(chan struct{}),
	}

	go d.serve()

	return d, nil
}

type emulatedBuffer struct {
	data []complex64
}

func (b *emulatedBuffer) Len() int { return len(b.data) }

type emulatedDevice struct {
	info    Info
	units   int
	queue   chan func() error
	done    chan struct{}
	pending sync.WaitGroup

	qmu    sync.Mutex
	closed bool

	mu        sync.Mutex
	err       error
	allocated uint64
}

func (d *emulatedDevice) Info() Info { return d.info }

func (d *emulatedDevice) serve() {
	defer close(d.done)

	for cmd := range d.queue {
		if err := cmd(); err != nil {
			d.mu.Lock()
			if d.err == nil {
				d.err = err
			}
			d.mu.Unlock()
		}

		d.pending.Done()
	}
}

func (d *emulatedDevice) fail(op string, code int, format string, args ...any) *Error {
	return &Error{Driver: EmulatedDriver, Op: op, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func (d *emulatedDevice) enqueue(op string, cmd func() error) error {
	d.qmu.Lock()
	defer d.qmu.Unlock()

	if d.closed {
		return d.fail(op, CodeClosed, "device closed")
	}

	d.pending.Add(1)
	d.queue <- cmd

	return nil
}

func (d *emulatedDevice) buffer(op string, b Buffer) (*emulatedBuffer, error) {
	eb, ok := b.(*emulatedBuffer)
	if !ok || eb == nil {
		return nil, d.fail(op, CodeInvalidValue, "foreign or nil buffer")
	}

	return eb, nil
}

func (d *emulatedDevice) Alloc(n int) (Buffer, error) {
	size := uint64(n) * 8

	d.qmu.Lock()
	closed := d.closed
	d.qmu.Unlock()

	if closed {
		return nil, d.fail("alloc", CodeClosed, "device closed")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info.Memory > 0 && d.allocated+size > d.info.Memory {
		return nil, d.fail("alloc", CodeOutOfMemory, "%d bytes requested, %d available", size, d.info.Memory-d.allocated)
	}

	d.allocated += size

	return &emulatedBuffer{data: make([]complex64, n)}, nil
}

func (d *emulatedDevice) Upload(b Buffer, src []complex128) error {
	eb, err := d.buffer("upload", b)
	if err != nil {
		return err
	}

	if len(src) != len(eb.data) {
		return d.fail("upload", CodeInvalidValue, "length %d into buffer of %d", len(src), len(eb.data))
	}

	staged := make([]complex64, len(src))
	for i, a := range src {
		staged[i] = complex64(a)
	}

	return d.enqueue("upload", func() error {
		copy(eb.data, staged)
		return nil
	})
}

func (d *emulatedDevice) Launch(k Kernel) error {
	eb, err := d.buffer("launch", k.Buffer)
	if err != nil {
		return err
	}

	switch k.Op {
	case OpApply:
		if len(k.Matrix) != len(k.Offsets)*len(k.Offsets) {
			return d.fail("launch", CodeInvalidValue, "matrix of %d entries for %d offsets", len(k.Matrix), len(k.Offsets))
		}

		return d.enqueue("launch", func() error {
			d.parallel(k.Groups, func(lo, hi int) { applyGroups(eb.data, &k, lo, hi) })
			return nil
		})
	case OpCollapse:
		return d.enqueue("launch", func() error {
			d.parallel(len(eb.data), func(lo, hi int) { collapseRange(eb.data, &k, lo, hi) })
			return nil
		})
	default:
		return d.fail("launch", CodeLaunchFailed, "unknown kernel op %d", k.Op)
	}
}

// parallel splits [0, n) across the compute units and waits for all of them.
func (d *emulatedDevice) parallel(n int, fn func(lo, hi int)) {
	units := min(d.units, max(n/256, 1))
	step := (n + units - 1) / units

	var wg sync.WaitGroup

	for lo := 0; lo < n; lo += step {
		hi := min(lo+step, n)
		wg.Add(1)

		go func() {
			defer wg.Done()
			fn(lo, hi)
		}()
	}

	wg.Wait()
}

func applyGroups(data []complex64, k *Kernel, lo, hi int) {
	dim := len(k.Offsets)
	in := make([]complex128, dim)

	for g := lo; g < hi; g++ {
		base := bitmath.InsertZeroBits(uint64(g), k.Holes) | k.ControlMask

		for l, off := range k.Offsets {
			in[l] = complex128(data[base|off])
		}

		for r, off := range k.Offsets {
			var acc complex128

			for c, v := range in {
				acc += k.Matrix[r*dim+c] * v
			}

			data[base|off] = complex64(acc)
		}
	}
}

func collapseRange(data []complex64, k *Kernel, lo, hi int) {
	for i := lo; i < hi; i++ {
		if uint64(i)&k.Mask != k.Want {
			data[i] = 0
			continue
		}

		a := complex128(data[i])
		data[i] = complex64(a * complex(k.Scale, 0))
	}
}

/*
Reduce synchronizes and returns the marginal probability of every outcome
pattern over qubits, accumulating in index order.
*/
func (d *emulatedDevice) Reduce(b Buffer, qubits []int) ([]float64, error) {
	eb, err := d.buffer("reduce", b)
	if err != nil {
		return nil, err
	}

	if err := d.Finish(); err != nil {
		return nil, err
	}

	out := make([]float64, 1<<uint(len(qubits)))

	for i, a := range eb.data {
		re, im := float64(real(a)), float64(imag(a))
		out[bitmath.Extract(uint64(i), qubits)] += re*re + im*im
	}

	return out, nil
}

// Finish blocks until the queue drains and returns the first deferred error.
func (d *emulatedDevice) Finish() error {
	d.pending.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.err
	d.err = nil

	return err
}

func (d *emulatedDevice) Download(b Buffer, dst []complex128) error {
	eb, err := d.buffer("download", b)
	if err != nil {
		return err
	}

	if len(dst) != len(eb.data) {
		return d.fail("download", CodeInvalidValue, "length %d from buffer of %d", len(dst), len(eb.data))
	}

	if err := d.Finish(); err != nil {
		return err
	}

	for i, a := range eb.data {
		dst[i] = complex128(a)
	}

	return nil
}

func (d *emulatedDevice) Free(b Buffer) error {
	eb, err := d.buffer("free", b)
	if err != nil {
		return err
	}

	return d.enqueue("free", func() error {
		d.mu.Lock()
		d.allocated -= uint64(len(eb.data)) * 8
		d.mu.Unlock()

		eb.data = nil
		return nil
	})
}

// Close drains the queue and stops the serving goroutine. It is idempotent.
func (d *emulatedDevice) Close() error {
	d.qmu.Lock()
	if d.closed {
		d.qmu.Unlock()
		return nil
	}
	d.closed = true
	d.qmu.Unlock()

	d.pending.Wait()
	close(d.queue)
	<-d.done

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.err
}
