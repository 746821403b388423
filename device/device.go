/*
Package device abstracts the accelerators that can hold a state vector and run
the gate, reduction and collapse kernels on it.

A Device owns one ordered command queue. Upload, Launch and Free are enqueued
and return immediately; commands execute in submission order. Reduce, Finish
and Download block until every previously enqueued command completed, and they
report the first error raised by an asynchronous command since the last
synchronization.

Drivers register themselves by name. The cuda driver is only compiled with the
cuda build tag; the emulated driver is always present and runs the same queue
semantics on the host with single-precision buffers.
*/
package device

import (
	"fmt"
	"sort"
	"sync"
)

// Error codes shared by every driver.
const (
	CodeNotCompiled  = 1
	CodeNoDevice     = 2
	CodeOutOfMemory  = 3
	CodeLaunchFailed = 4
	CodeInvalidValue = 5
	CodeClosed       = 6
)

/*
Error is a driver failure. Code is one of the Code constants; Native carries
the underlying runtime's own status code when there is one.
*/
type Error struct {
	Driver string
	Op     string
	Code   int
	Native int
	Msg    string
}

func (e *Error) Error() string {
	if e.Native != 0 {
		return fmt.Sprintf("%s: %s: %s (code %d, native %d)", e.Driver, e.Op, e.Msg, e.Code, e.Native)
	}

	return fmt.Sprintf("%s: %s: %s (code %d)", e.Driver, e.Op, e.Msg, e.Code)
}

// Unavailable reports whether the error means no usable device exists.
func (e *Error) Unavailable() bool {
	return e.Code == CodeNotCompiled || e.Code == CodeNoDevice
}

// Info describes one device.
type Info struct {
	Driver  string
	Ordinal int
	Name    string
	Memory  uint64
	Compute string
}

// Buffer is an opaque device allocation of complex amplitudes.
type Buffer interface {
	Len() int
}

// Op selects the kernel a Launch runs.
type Op int

const (
	// OpApply multiplies every active index group by Matrix.
	OpApply Op = iota
	// OpCollapse zeroes amplitudes with i&Mask != Want and scales the rest.
	OpCollapse
)

/*
Kernel is the full argument set of one launch. For OpApply, group g's base
index is InsertZeroBits(g, Holes) | ControlMask and its members are
base|Offsets[l]; Matrix is row-major len(Offsets) square.
*/
type Kernel struct {
	Op     Op
	Buffer Buffer

	Groups      int
	Offsets     []uint64
	Holes       []uint
	ControlMask uint64
	Matrix      []complex128

	Mask  uint64
	Want  uint64
	Scale float64
}

// Device is an open accelerator with one command queue.
type Device interface {
	Info() Info
	Alloc(n int) (Buffer, error)
	Upload(b Buffer, src []complex128) error
	Launch(k Kernel) error
	Reduce(b Buffer, qubits []int) ([]float64, error)
	Finish() error
	Download(b Buffer, dst []complex128) error
	Free(b Buffer) error
	Close() error
}

// Driver enumerates and opens devices of one kind.
type Driver interface {
	Name() string
	Devices() (int, error)
	Open(ordinal int) (Device, error)
}

var (
	mu      sync.RWMutex
	drivers = map[string]Driver{}
)

// Register makes a driver available by name. Registering twice panics.
func Register(d Driver) {
	mu.Lock()
	defer mu.Unlock()

	if _, dup := drivers[d.Name()]; dup {
		panic("device: driver registered twice: " + d.Name())
	}

	drivers[d.Name()] = d
}

// Compiled reports whether a driver of that name is part of this build.
func Compiled(name string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := drivers[name]
	return ok
}

// Drivers lists the registered driver names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

/*
Open returns device ordinal of the named driver. A driver that is not
compiled in or has no such device yields an *Error whose Unavailable method
reports true.
*/
func Open(name string, ordinal int) (Device, error) {
	mu.RLock()
	d, ok := drivers[name]
	mu.RUnlock()

	if !ok {
		return nil, notCompiled(name)
	}

	count, err := d.Devices()
	if err != nil {
		return nil, err
	}

	if ordinal < 0 || ordinal >= count {
		return nil, &Error{
			Driver: name,
			Op:     "open",
			Code:   CodeNoDevice,
			Msg:    fmt.Sprintf("device %d not present (%d found)", ordinal, count),
		}
	}

	return d.Open(ordinal)
}

func notCompiled(name string) *Error {
	return &Error{
		Driver: name,
		Op:     "open",
		Code:   CodeNotCompiled,
		Msg:    fmt.Sprintf("%s support not compiled in", name),
	}
}
