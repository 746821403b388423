package qsim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is the classical and quantum output of one Run.
type Result struct {
	Outcomes []Outcome
	State    *Store
	Backend  string
}

// Key joins the outcomes in order, e.g. "01 1".
func (r *Result) Key() string {
	parts := make([]string, len(r.Outcomes))

	for i, o := range r.Outcomes {
		parts[i] = o.String()
	}

	return strings.Join(parts, " ")
}

/*
Run executes c once in a fresh context seeded with seed. Cancellation of ctx
is observed between instructions; a running gate step always completes. The
context is closed on every path.
*/
func Run(ctx context.Context, c *Circuit, cfg *Config, seed uint64, opts ...Option) (res *Result, err error) {
	if err := c.Err(); err != nil {
		return nil, err
	}

	qc, err := NewContext(ctx, c.qubits, cfg, append(opts[:len(opts):len(opts)], WithSeed(seed))...)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = errors.Join(err, qc.Close())
		if err != nil {
			res = nil
		}
	}()

	res = &Result{Backend: qc.Backend()}

	for i, in := range c.instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := in.Execute(qc)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, in, err)
		}

		if out != nil {
			res.Outcomes = append(res.Outcomes, *out)
		}
	}

	if res.State, err = qc.State(); err != nil {
		return nil, err
	}

	return res, nil
}

/*
Trace executes a measurement-free circuit and returns the register after every
instruction. States[0] is the initial state.
*/
func Trace(ctx context.Context, c *Circuit, cfg *Config, opts ...Option) (states []*Store, err error) {
	if err := c.Err(); err != nil {
		return nil, err
	}

	if c.Measurements() {
		return nil, errors.New("qsim: trace needs a circuit without measurements")
	}

	qc, err := NewContext(ctx, c.qubits, cfg, opts...)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = errors.Join(err, qc.Close())
	}()

	initial, err := qc.State()
	if err != nil {
		return nil, err
	}

	states = append(states, initial)

	for i, in := range c.instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := in.Execute(qc); err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, in, err)
		}

		s, err := qc.State()
		if err != nil {
			return nil, err
		}

		states = append(states, s)
	}

	return states, nil
}

// Counts tallies shot results by Result.Key.
type Counts map[string]int

// Total returns the number of shots counted.
func (c Counts) Total() int {
	var n int

	for _, v := range c {
		n += v
	}

	return n
}

// ShotSeed derives the seed of shot i from the run seed.
func ShotSeed(seed uint64, i int) uint64 {
	return splitmix(seed ^ splitmix(uint64(i)))
}

/*
RunShots runs c shots times, each in its own context seeded with
ShotSeed(seed, i), and tallies the outcomes. A circuit without measurements
is measured on every qubit at the end. At most as many shots run at once as
there are logical CPUs. The counts depend only on seed.
*/
func RunShots(ctx context.Context, c *Circuit, cfg *Config, shots int, seed uint64, opts ...Option) (Counts, error) {
	if shots < 1 {
		return nil, fmt.Errorf("%w: shots must be positive, got %d", ErrDimensionMismatch, shots)
	}

	if err := c.Err(); err != nil {
		return nil, err
	}

	if !c.Measurements() {
		c = NewCircuit(c.qubits).Append(c).Measure()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(HardwareThreads())

	var (
		mu     sync.Mutex
		counts = Counts{}
	)

	for i := 0; i < shots; i++ {
		g.Go(func() error {
			res, err := Run(gctx, c, cfg, ShotSeed(seed, i), opts...)
			if err != nil {
				return fmt.Errorf("shot %d: %w", i, err)
			}

			mu.Lock()
			counts[res.Key()]++
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return counts, nil
}
