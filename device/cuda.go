//go:build cuda
// +build cuda

package device

/*
#cgo linux CFLAGS: -I${SRCDIR}/cuda
#cgo linux LDFLAGS: -L${SRCDIR}/cuda -lqsim_cuda -lcudart
#cgo windows CFLAGS: -I${SRCDIR}/cuda
#cgo windows LDFLAGS: -L${SRCDIR}/cuda -lqsim_cuda -lcudart

#include <stdlib.h>
#include "qsim_cuda.h"
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"
)

// CUDADriver is the registered name of the CUDA driver.
const CUDADriver = "cuda"

func init() {
	Register(cudaDriver{})
}

type cudaDriver struct{}

func (cudaDriver) Name() string { return CUDADriver }

func (cudaDriver) Devices() (int, error) {
	var count C.int

	if rc := C.qsim_cuda_device_count(&count); rc != 0 {
		// The runtime reports a missing driver or no device as an error; both
		// mean the same thing to the caller.
		return 0, cudaError("device_count", CodeNoDevice, rc)
	}

	return int(count), nil
}

func (cudaDriver) Open(ordinal int) (Device, error) {
	var (
		name         [256]C.char
		memory       C.size_t
		major, minor C.int
		stream       unsafe.Pointer
	)

	if rc := C.qsim_cuda_device_info(C.int(ordinal), &name[0], C.int(len(name)), &memory, &major, &minor); rc != 0 {
		return nil, cudaError("device_info", CodeNoDevice, rc)
	}

	if rc := C.qsim_cuda_open(C.int(ordinal), &stream); rc != 0 {
		return nil, cudaError("open", CodeNoDevice, rc)
	}

	return &cudaDevice{
		info: Info{
			Driver:  CUDADriver,
			Ordinal: ordinal,
			Name:    C.GoString(&name[0]),
			Memory:  uint64(memory),
			Compute: "sm_" + itoa(int(major)) + itoa(int(minor)),
		},
		stream: stream,
	}, nil
}

func cudaError(op string, code int, rc C.int) *Error {
	return &Error{
		Driver: CUDADriver,
		Op:     op,
		Code:   code,
		Native: int(rc),
		Msg:    C.GoString(C.qsim_cuda_error_string(rc)),
	}
}

func itoa(v int) string {
	if v < 10 {
		return string(rune('0' + v))
	}

	return itoa(v/10) + string(rune('0'+v%10))
}

type cudaBuffer struct {
	ptr unsafe.Pointer
	n   int
}

func (b *cudaBuffer) Len() int { return b.n }

/*
cudaDevice drives one CUDA stream. Launches are stream-ordered; synchronous
calls go through cudaStreamSynchronize before touching host memory.
*/
type cudaDevice struct {
	info   Info
	mu     sync.Mutex
	stream unsafe.Pointer
	closed bool
}

func (d *cudaDevice) Info() Info { return d.info }

func (d *cudaDevice) buffer(op string, b Buffer) (*cudaBuffer, error) {
	cb, ok := b.(*cudaBuffer)
	if !ok || cb == nil || cb.ptr == nil {
		return nil, &Error{Driver: CUDADriver, Op: op, Code: CodeInvalidValue, Msg: "foreign or freed buffer"}
	}

	return cb, nil
}

func (d *cudaDevice) Alloc(n int) (Buffer, error) {
	var ptr unsafe.Pointer

	if rc := C.qsim_cuda_alloc(C.size_t(n), &ptr); rc != 0 {
		return nil, cudaError("alloc", CodeOutOfMemory, rc)
	}

	return &cudaBuffer{ptr: ptr, n: n}, nil
}

// interleave converts amplitudes to the re,im double layout the C side expects.
func interleave(src []complex128) []C.double {
	out := make([]C.double, 2*len(src))

	for i, a := range src {
		out[2*i] = C.double(real(a))
		out[2*i+1] = C.double(imag(a))
	}

	return out
}

func (d *cudaDevice) Upload(b Buffer, src []complex128) error {
	cb, err := d.buffer("upload", b)
	if err != nil {
		return err
	}

	host := interleave(src)

	if rc := C.qsim_cuda_upload(d.stream, cb.ptr, &host[0], C.size_t(len(src))); rc != 0 {
		return cudaError("upload", CodeLaunchFailed, rc)
	}

	runtime.KeepAlive(host)

	return nil
}

func (d *cudaDevice) Launch(k Kernel) error {
	cb, err := d.buffer("launch", k.Buffer)
	if err != nil {
		return err
	}

	var rc C.int

	switch k.Op {
	case OpApply:
		offsets := make([]C.ulonglong, len(k.Offsets))
		for i, o := range k.Offsets {
			offsets[i] = C.ulonglong(o)
		}

		holes := make([]C.uint, len(k.Holes)+1)
		for i, h := range k.Holes {
			holes[i] = C.uint(h)
		}

		matrix := interleave(k.Matrix)

		rc = C.qsim_cuda_apply(
			d.stream, cb.ptr,
			C.ulonglong(k.Groups),
			&offsets[0], C.int(len(offsets)),
			&holes[0], C.int(len(k.Holes)),
			C.ulonglong(k.ControlMask),
			&matrix[0],
		)

		runtime.KeepAlive(offsets)
		runtime.KeepAlive(holes)
		runtime.KeepAlive(matrix)
	case OpCollapse:
		rc = C.qsim_cuda_collapse(
			d.stream, cb.ptr, C.size_t(cb.n),
			C.ulonglong(k.Mask), C.ulonglong(k.Want), C.double(k.Scale),
		)
	default:
		return &Error{Driver: CUDADriver, Op: "launch", Code: CodeLaunchFailed, Msg: "unknown kernel op"}
	}

	if rc != 0 {
		return cudaError("launch", CodeLaunchFailed, rc)
	}

	return nil
}

func (d *cudaDevice) Reduce(b Buffer, qubits []int) ([]float64, error) {
	cb, err := d.buffer("reduce", b)
	if err != nil {
		return nil, err
	}

	cq := make([]C.int, len(qubits)+1)
	for i, q := range qubits {
		cq[i] = C.int(q)
	}

	out := make([]C.double, 1<<uint(len(qubits)))

	if rc := C.qsim_cuda_reduce(d.stream, cb.ptr, C.size_t(cb.n), &cq[0], C.int(len(qubits)), &out[0]); rc != 0 {
		return nil, cudaError("reduce", CodeLaunchFailed, rc)
	}

	probs := make([]float64, len(out))
	for i, p := range out {
		probs[i] = float64(p)
	}

	return probs, nil
}

func (d *cudaDevice) Finish() error {
	if rc := C.qsim_cuda_synchronize(d.stream); rc != 0 {
		return cudaError("synchronize", CodeLaunchFailed, rc)
	}

	return nil
}

func (d *cudaDevice) Download(b Buffer, dst []complex128) error {
	cb, err := d.buffer("download", b)
	if err != nil {
		return err
	}

	host := make([]C.double, 2*len(dst))

	if rc := C.qsim_cuda_download(d.stream, cb.ptr, &host[0], C.size_t(len(dst))); rc != 0 {
		return cudaError("download", CodeLaunchFailed, rc)
	}

	for i := range dst {
		dst[i] = complex(float64(host[2*i]), float64(host[2*i+1]))
	}

	return nil
}

func (d *cudaDevice) Free(b Buffer) error {
	cb, err := d.buffer("free", b)
	if err != nil {
		return err
	}

	if rc := C.qsim_cuda_free(d.stream, cb.ptr); rc != 0 {
		return cudaError("free", CodeInvalidValue, rc)
	}

	cb.ptr = nil

	return nil
}

func (d *cudaDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true

	if rc := C.qsim_cuda_close(d.stream); rc != 0 {
		return cudaError("close", CodeLaunchFailed, rc)
	}

	return nil
}
