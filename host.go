package qsim

import (
	"fmt"

	"github.com/theapemachine/qsim/internal/bitmath"
)

/*
HostBackend runs plans on the CPU directly against the store's amplitudes.
Registers of at least ParallelThreshold qubits are split into chunks of
ChunkSize units and fanned out over a Pool; smaller ones run inline on the
calling goroutine. Every call is a barrier.
*/
type HostBackend struct {
	store     *Store
	pool      *Pool
	metrics   *Metrics
	workers   int
	chunk     int
	threshold int
}

/*
NewHostBackend returns an unbound host backend sized from cfg. The worker
pool is started by Bind and stopped by Close.
*/
func NewHostBackend(cfg *Config, metrics *Metrics) *HostBackend {
	if cfg == nil {
		cfg = NewConfig()
	}

	return &HostBackend{
		metrics:   metrics,
		workers:   cfg.Workers,
		chunk:     cfg.ChunkSize,
		threshold: cfg.ParallelThreshold,
	}
}

// newInlineHost binds a pool-less host backend for the package-level helpers.
func newInlineHost(s *Store) *HostBackend {
	h := &HostBackend{
		chunk:     NewConfig().ChunkSize,
		threshold: MaxQubits + 1,
	}
	h.store = s

	return h
}

func (h *HostBackend) Name() string { return BackendHost }

func (h *HostBackend) Bind(s *Store) error {
	h.store = s

	if s.qubits >= h.threshold && h.pool == nil {
		h.pool = NewPool(h.workers, h.metrics)
	}

	return nil
}

// run executes fn over every chunk of [0, total), inline or on the pool.
func (h *HostBackend) run(total int, fn func(i, lo, hi int) error) error {
	chunks := Chunks(total, h.chunk)

	if h.pool == nil || len(chunks) == 1 {
		for i, c := range chunks {
			if err := fn(i, c[0], c[1]); err != nil {
				return err
			}
		}

		return nil
	}

	fns := make([]func() error, len(chunks))

	for i, c := range chunks {
		fns[i] = func() error { return fn(i, c[0], c[1]) }
	}

	return h.pool.Run(fns)
}

func (h *HostBackend) Apply(p *Plan) error {
	if h.store == nil {
		return fmt.Errorf("%w: host backend not bound", ErrBackend)
	}

	amps := h.store.amplitudes

	return h.run(p.Groups(), func(_, lo, hi int) error {
		p.Transform(amps, lo, hi)
		return nil
	})
}

/*
Marginals sums |a|² per outcome pattern. Small outcome spaces are reduced
index-major: each chunk fills its own partial vector and the partials are
added in chunk order. Large ones, such as the whole register, are reduced
pattern-major: each chunk owns a range of patterns and walks the indices
consistent with each of them. Either way the summation order is fixed, and
the scratch space never exceeds the register.
*/
func (h *HostBackend) Marginals(qubits []int) ([]float64, error) {
	if h.store == nil {
		return nil, fmt.Errorf("%w: host backend not bound", ErrBackend)
	}

	amps := h.store.amplitudes
	size := 1 << uint(len(qubits))
	chunks := Chunks(len(amps), h.chunk)

	if size*len(chunks) > len(amps) {
		return h.marginalsByPattern(qubits)
	}

	partials := make([][]float64, len(chunks))

	err := h.run(len(amps), func(i, lo, hi int) error {
		part := make([]float64, size)

		for idx := lo; idx < hi; idx++ {
			a := amps[idx]
			part[bitmath.Extract(uint64(idx), qubits)] += real(a)*real(a) + imag(a)*imag(a)
		}

		partials[i] = part
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]float64, size)

	for _, part := range partials {
		for j, v := range part {
			out[j] += v
		}
	}

	return out, nil
}

func (h *HostBackend) marginalsByPattern(qubits []int) ([]float64, error) {
	amps := h.store.amplitudes
	holes := bitmath.Holes(qubits)
	free := len(amps) >> uint(len(qubits))
	out := make([]float64, 1<<uint(len(qubits)))

	err := h.run(len(out), func(_, lo, hi int) error {
		for pattern := lo; pattern < hi; pattern++ {
			base := bitmath.Deposit(uint64(pattern), qubits)

			var acc float64

			for f := 0; f < free; f++ {
				a := amps[bitmath.InsertZeroBits(uint64(f), holes)|base]
				acc += real(a)*real(a) + imag(a)*imag(a)
			}

			out[pattern] = acc
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (h *HostBackend) Collapse(qubits []int, outcome uint64, scale float64) error {
	if h.store == nil {
		return fmt.Errorf("%w: host backend not bound", ErrBackend)
	}

	amps := h.store.amplitudes
	mask := bitmath.Mask(qubits)
	want := bitmath.Deposit(outcome, qubits)
	s := complex(scale, 0)

	return h.run(len(amps), func(_, lo, hi int) error {
		for idx := lo; idx < hi; idx++ {
			if uint64(idx)&mask != want {
				amps[idx] = 0
				continue
			}

			amps[idx] *= s
		}

		return nil
	})
}

// Sync is a no-op: the host works on the store in place.
func (h *HostBackend) Sync() error { return nil }

func (h *HostBackend) Close() error {
	h.pool.Close()
	h.pool = nil

	return nil
}
