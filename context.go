package qsim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
)

/*
Context is one execution: a register, the backend it lives on, and the random
source used for every measurement. It is not safe for concurrent use; run
independent executions in independent contexts.
*/
type Context struct {
	id      uuid.UUID
	cfg     *Config
	store   *Store
	backend Backend
	rng     *rand.Rand
	seed    uint64
	metrics *Metrics

	mu     sync.Mutex
	closed bool
}

type options struct {
	seed    *uint64
	metrics *Metrics
	backend Backend
	initial []complex128
}

// Option customizes NewContext.
type Option func(*options)

// WithSeed fixes the measurement random source.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = &seed }
}

// WithMetrics records into m instead of a private, unregistered Metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBackend uses b instead of selecting one from the config. The context
// takes ownership and closes b.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithInitialState starts from amps instead of |0...0⟩.
func WithInitialState(amps []complex128) Option {
	return func(o *options) { o.initial = amps }
}

/*
NewContext allocates an n-qubit register, selects and binds a backend. Every
resource acquired here is released again when construction fails.
*/
func NewContext(ctx context.Context, n int, cfg *Config, opts ...Option) (*Context, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configureLogger(cfg)

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	var (
		store *Store
		err   error
	)

	if o.initial != nil {
		store, err = NewStoreFrom(o.initial)
		if err == nil && store.qubits != n {
			err = fmt.Errorf("%w: initial state has %d qubits, want %d", ErrDimensionMismatch, store.qubits, n)
		}
	} else {
		store, err = NewStore(n)
	}

	if err != nil {
		if o.backend != nil {
			o.backend.Close()
		}
		return nil, err
	}

	backend := o.backend
	if backend == nil {
		if backend, err = selectBackend(ctx, cfg, o.metrics); err != nil {
			return nil, err
		}
	}

	if err := backend.Bind(store); err != nil {
		backend.Close()
		return nil, err
	}

	seed := rand.Uint64()
	if o.seed != nil {
		seed = *o.seed
	}

	c := &Context{
		id:      uuid.New(),
		cfg:     cfg,
		store:   store,
		backend: backend,
		rng:     NewRand(seed),
		seed:    seed,
		metrics: o.metrics,
	}

	logger.Debug("context opened", "id", c.id, "qubits", n, "backend", backend.Name(), "seed", seed)
	errnie.Info("NewContext - id %s, qubits %d, backend %s", c.id, n, backend.Name())

	return c, nil
}

// Accessors for the execution's identity and setup.
func (c *Context) ID() uuid.UUID     { return c.id }
func (c *Context) Qubits() int       { return c.store.qubits }
func (c *Context) Backend() string   { return c.backend.Name() }
func (c *Context) Seed() uint64      { return c.seed }
func (c *Context) Metrics() *Metrics { return c.metrics }

func (c *Context) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrContextClosed
	}

	return nil
}

/*
Apply runs g on targets, conditioned on controls. It returns once the step is
complete on the host, or enqueued on a device.
*/
func (c *Context) Apply(g Gate, targets []int, controls ...int) error {
	if err := c.check(); err != nil {
		return err
	}

	p, err := NewPlan(c.store.qubits, g, targets, controls)
	if err != nil {
		return err
	}

	start := time.Now()

	if err := c.backend.Apply(p); err != nil {
		return err
	}

	c.metrics.recordGate(c.backend.Name(), time.Since(start))

	return nil
}

// Measure samples and collapses qubits; none means the whole register.
func (c *Context) Measure(qubits ...int) (Outcome, error) {
	if err := c.check(); err != nil {
		return Outcome{}, err
	}

	if len(qubits) == 0 {
		qubits = allQubits(c.store.qubits)
	}

	if err := validateIndices(c.store.qubits, qubits, "measured qubit"); err != nil {
		return Outcome{}, err
	}

	out, err := measure(c.backend, qubits, c.rng, c.cfg.NormTolerance)
	if err != nil {
		return Outcome{}, err
	}

	c.metrics.recordMeasurement(c.backend.Name())

	return out, nil
}

/*
MeasureIn measures qubits in basis b. Each qubit is rotated onto the
computational basis, measured, and rotated back, so the register is left in
the observed basis state. A failed measurement is rotated back as well.
*/
func (c *Context) MeasureIn(b Basis, qubits ...int) (Outcome, error) {
	if b.rotate == nil {
		return c.Measure(qubits...)
	}

	if err := c.check(); err != nil {
		return Outcome{}, err
	}

	if len(qubits) == 0 {
		qubits = allQubits(c.store.qubits)
	}

	if err := validateIndices(c.store.qubits, qubits, "measured qubit"); err != nil {
		return Outcome{}, err
	}

	back := Dagger(b.rotate)

	for _, q := range qubits {
		if err := c.Apply(b.rotate, []int{q}); err != nil {
			return Outcome{}, err
		}
	}

	out, err := c.Measure(qubits...)

	for _, q := range qubits {
		if rerr := c.Apply(back, []int{q}); rerr != nil {
			return Outcome{}, errors.Join(err, rerr)
		}
	}

	if err != nil {
		return Outcome{}, err
	}

	return out, nil
}

// Probabilities returns the marginal distribution over qubits without collapse.
func (c *Context) Probabilities(qubits ...int) ([]float64, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	if len(qubits) == 0 {
		qubits = allQubits(c.store.qubits)
	}

	if err := validateIndices(c.store.qubits, qubits, "qubit"); err != nil {
		return nil, err
	}

	return c.backend.Marginals(qubits)
}

/*
Expectation returns ⟨ψ|P|ψ⟩ for a Pauli string such as "ZZI". Character j
acts on qubit j; the string must cover the whole register.
*/
func (c *Context) Expectation(pauli string) (float64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}

	if len(pauli) != c.store.qubits {
		return 0, fmt.Errorf(
			"%w: pauli string %q for %d qubits", ErrDimensionMismatch, pauli, c.store.qubits,
		)
	}

	if err := c.backend.Sync(); err != nil {
		return 0, err
	}

	psi := c.store.Clone()

	for q, op := range strings.ToUpper(pauli) {
		var g Gate

		switch op {
		case 'I':
			continue
		case 'X':
			g = pauliXGate
		case 'Y':
			g = pauliYGate
		case 'Z':
			g = pauliZGate
		default:
			return 0, fmt.Errorf("%w: %q is not a Pauli operator", ErrDimensionMismatch, op)
		}

		if err := Apply(psi, g, []int{q}, nil); err != nil {
			return 0, err
		}
	}

	var acc complex128

	for i, a := range c.store.amplitudes {
		acc += complex(real(a), -imag(a)) * psi.amplitudes[i]
	}

	return real(acc), nil
}

// State synchronizes the backend and returns a copy of the register.
func (c *Context) State() (*Store, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	if err := c.backend.Sync(); err != nil {
		return nil, err
	}

	return c.store.Clone(), nil
}

// Close releases the backend. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.backend.Close()

	logger.Debug("context closed", "id", c.id, "err", err)

	return err
}
