package qsim

import (
	"errors"
	"fmt"

	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qsim/device"
	"github.com/theapemachine/qsim/internal/bitmath"
)

/*
DeviceBackend keeps the state vector resident on an accelerator. Bind uploads
the store once; gate steps and collapses are enqueued without waiting, and the
store is only refreshed by Sync.
*/
type DeviceBackend struct {
	dev    device.Device
	buf    device.Buffer
	store  *Store
	closed bool
}

// OpenDeviceBackend opens device ordinal of the named driver.
func OpenDeviceBackend(driver string, ordinal int) (*DeviceBackend, error) {
	dev, err := device.Open(driver, ordinal)
	if err != nil {
		return nil, wrapDeviceError(err)
	}

	info := dev.Info()
	logger.Debug("device opened", "driver", info.Driver, "ordinal", info.Ordinal, "name", info.Name, "memory", info.Memory)
	errnie.Info("OpenDeviceBackend - %s #%d %s", info.Driver, info.Ordinal, info.Name)

	return &DeviceBackend{dev: dev}, nil
}

func (d *DeviceBackend) Name() string { return d.dev.Info().Driver }

// Info describes the underlying device.
func (d *DeviceBackend) Info() device.Info { return d.dev.Info() }

func (d *DeviceBackend) Bind(s *Store) error {
	if d.closed {
		return ErrContextClosed
	}

	if d.buf != nil {
		if err := d.dev.Free(d.buf); err != nil {
			return wrapDeviceError(err)
		}
		d.buf = nil
	}

	buf, err := d.dev.Alloc(s.Dim())
	if err != nil {
		return wrapDeviceError(err)
	}

	if err := d.dev.Upload(buf, s.amplitudes); err != nil {
		return errors.Join(wrapDeviceError(err), wrapDeviceError(d.dev.Free(buf)))
	}

	d.buf = buf
	d.store = s

	return nil
}

func (d *DeviceBackend) bound() error {
	if d.closed {
		return ErrContextClosed
	}

	if d.buf == nil {
		return fmt.Errorf("%w: device backend not bound", ErrBackend)
	}

	return nil
}

func (d *DeviceBackend) Apply(p *Plan) error {
	if err := d.bound(); err != nil {
		return err
	}

	return wrapDeviceError(d.dev.Launch(device.Kernel{
		Op:          device.OpApply,
		Buffer:      d.buf,
		Groups:      p.Groups(),
		Offsets:     p.Offsets(),
		Holes:       p.Holes(),
		ControlMask: p.ControlMask,
		Matrix:      p.Matrix,
	}))
}

func (d *DeviceBackend) Marginals(qubits []int) ([]float64, error) {
	if err := d.bound(); err != nil {
		return nil, err
	}

	probs, err := d.dev.Reduce(d.buf, qubits)
	if err != nil {
		return nil, wrapDeviceError(err)
	}

	return probs, nil
}

func (d *DeviceBackend) Collapse(qubits []int, outcome uint64, scale float64) error {
	if err := d.bound(); err != nil {
		return err
	}

	return wrapDeviceError(d.dev.Launch(device.Kernel{
		Op:     device.OpCollapse,
		Buffer: d.buf,
		Mask:   bitmath.Mask(qubits),
		Want:   bitmath.Deposit(outcome, qubits),
		Scale:  scale,
	}))
}

// Sync waits for the queue and copies the device vector into the store.
func (d *DeviceBackend) Sync() error {
	if err := d.bound(); err != nil {
		return err
	}

	return wrapDeviceError(d.dev.Download(d.buf, d.store.amplitudes))
}

/*
Close drains the queue, frees the buffer and closes the device. Every step
runs even when an earlier one failed; the errors are joined.
*/
func (d *DeviceBackend) Close() error {
	if d.closed {
		return nil
	}

	d.closed = true

	var errs []error

	if err := d.dev.Finish(); err != nil {
		errs = append(errs, wrapDeviceError(err))
	}

	if d.buf != nil {
		if err := d.dev.Free(d.buf); err != nil {
			errs = append(errs, wrapDeviceError(err))
		}
		d.buf = nil
	}

	if err := d.dev.Close(); err != nil {
		errs = append(errs, wrapDeviceError(err))
	}

	return errors.Join(errs...)
}
