package qsim

import (
	"context"
	"errors"
	"fmt"

	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qsim/device"
)

/*
Backend executes plans against one bound store. The engine never branches on
the concrete backend; it hands every gate step, reduction and collapse to
whichever implementation the context selected.

Apply and Collapse may return before the work is visible in the store.
Marginals, Sync and Close return only after all earlier work completed. Sync
makes the store's amplitudes current.
*/
type Backend interface {
	Name() string
	Bind(s *Store) error
	Apply(p *Plan) error
	Marginals(qubits []int) ([]float64, error)
	Collapse(qubits []int, outcome uint64, scale float64) error
	Sync() error
	Close() error
}

/*
selectBackend resolves cfg.Backend into a ready, unbound backend.

device fails when the driver is missing or has no usable device. auto probes
the configured driver unless its breaker is open or ctx is already done, and
falls back to the host.
*/
func selectBackend(ctx context.Context, cfg *Config, metrics *Metrics) (Backend, error) {
	switch cfg.Backend {
	case BackendHost:
		return NewHostBackend(cfg, metrics), nil
	case BackendDevice:
		b, err := OpenDeviceBackend(cfg.DeviceDriver, cfg.DeviceOrdinal)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	if !device.Compiled(cfg.DeviceDriver) {
		logger.Debug("device driver not compiled in, using host", "driver", cfg.DeviceDriver)
		return NewHostBackend(cfg, metrics), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cb := probeBreaker(cfg)

	if !cb.Allow() {
		logger.Debug("device probe skipped", "driver", cfg.DeviceDriver, "breaker", cb.State())
		metrics.recordFallback()
		return NewHostBackend(cfg, metrics), nil
	}

	b, err := OpenDeviceBackend(cfg.DeviceDriver, cfg.DeviceOrdinal)
	if err != nil {
		cb.RecordFailure()
		metrics.recordFallback()
		logger.Warn("device unavailable, falling back to host", "driver", cfg.DeviceDriver, "err", err)
		errnie.Info("selectBackend - falling back to host: %v", err)

		return NewHostBackend(cfg, metrics), nil
	}

	cb.RecordSuccess()

	return b, nil
}

/*
wrapDeviceError classifies a driver error. A missing or absent device becomes
ErrDeviceUnavailable, anything else ErrBackend. The *device.Error stays
reachable through errors.As.
*/
func wrapDeviceError(err error) error {
	if err == nil {
		return nil
	}

	var de *device.Error

	if errors.As(err, &de) && de.Unavailable() {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	return fmt.Errorf("%w: %w", ErrBackend, err)
}
