package qsim

import (
	"errors"
	"fmt"
	"slices"
)

// InstructionKind distinguishes gate steps from measurements.
type InstructionKind int

const (
	GateStep InstructionKind = iota
	MeasureStep
)

/*
Instruction is one step of a Circuit. Gate steps carry a gate with its
targets and extra controls; measure steps carry the measured qubits and basis.
*/
type Instruction struct {
	Kind     InstructionKind
	Gate     Gate
	Targets  []int
	Controls []int
	Qubits   []int
	Basis    Basis
}

func (in Instruction) String() string {
	if in.Kind == MeasureStep {
		return fmt.Sprintf("measure[%s] %v", in.Basis, in.Qubits)
	}

	if len(in.Controls) > 0 {
		return fmt.Sprintf("%s %v ctrl %v", in.Gate.Name(), in.Targets, in.Controls)
	}

	return fmt.Sprintf("%s %v", in.Gate.Name(), in.Targets)
}

/*
Circuit is an ordered list of instructions over a fixed register size. Each
builder call validates its instruction against the register immediately;
invalid instructions are dropped and their errors reported by Err.
*/
type Circuit struct {
	qubits       int
	instructions []Instruction
	errs         []error
}

/*
NewCircuit starts an empty circuit over n qubits. A size outside
[1, MaxQubits] is reported by Err.
*/
func NewCircuit(n int) *Circuit {
	c := &Circuit{qubits: n}

	if n < 1 || n > MaxQubits {
		c.errs = append(c.errs, fmt.Errorf("%w: register size %d outside [1, %d]", ErrDimensionMismatch, n, MaxQubits))
	}

	return c
}

// Qubits returns the register size.
func (c *Circuit) Qubits() int { return c.qubits }

// Len returns the number of accepted instructions.
func (c *Circuit) Len() int { return len(c.instructions) }

// Instructions returns a copy of the instruction list.
func (c *Circuit) Instructions() []Instruction { return slices.Clone(c.instructions) }

// Err returns every error collected while building, joined.
func (c *Circuit) Err() error { return errors.Join(c.errs...) }

// Measurements reports whether any instruction measures.
func (c *Circuit) Measurements() bool {
	return slices.ContainsFunc(c.instructions, func(in Instruction) bool {
		return in.Kind == MeasureStep
	})
}

func (c *Circuit) fail(err error) *Circuit {
	c.errs = append(c.errs, fmt.Errorf("instruction %d: %w", len(c.instructions)+len(c.errs), err))
	return c
}

// Gate adds g on targets.
func (c *Circuit) Gate(g Gate, targets ...int) *Circuit {
	return c.Controlled(g, nil, targets...)
}

// Controlled adds g on targets, applied only where every control is 1.
func (c *Circuit) Controlled(g Gate, controls []int, targets ...int) *Circuit {
	if err := validateGate(g); err != nil {
		return c.fail(err)
	}

	if err := validateLines(c.qubits, g.Arity(), targets, controls); err != nil {
		return c.fail(err)
	}

	c.instructions = append(c.instructions, Instruction{
		Kind:     GateStep,
		Gate:     g,
		Targets:  slices.Clone(targets),
		Controls: slices.Clone(controls),
	})

	return c
}

/*
The shorthands below add the standard gate of the same name. Two-qubit
gates take the control first.
*/
func (c *Circuit) H(q int) *Circuit                 { return c.Gate(hadamardGate, q) }
func (c *Circuit) X(q int) *Circuit                 { return c.Gate(pauliXGate, q) }
func (c *Circuit) Y(q int) *Circuit                 { return c.Gate(pauliYGate, q) }
func (c *Circuit) Z(q int) *Circuit                 { return c.Gate(pauliZGate, q) }
func (c *Circuit) S(q int) *Circuit                 { return c.Gate(sGate, q) }
func (c *Circuit) Sdg(q int) *Circuit               { return c.Gate(sdgGate, q) }
func (c *Circuit) T(q int) *Circuit                 { return c.Gate(tGate, q) }
func (c *Circuit) Tdg(q int) *Circuit               { return c.Gate(tdgGate, q) }
func (c *Circuit) P(theta float64, q int) *Circuit  { return c.Gate(Phase(theta), q) }
func (c *Circuit) RX(theta float64, q int) *Circuit { return c.Gate(RX(theta), q) }
func (c *Circuit) RY(theta float64, q int) *Circuit { return c.Gate(RY(theta), q) }
func (c *Circuit) RZ(theta float64, q int) *Circuit { return c.Gate(RZ(theta), q) }
func (c *Circuit) CNOT(ctrl, target int) *Circuit   { return c.Gate(cnotGate, ctrl, target) }
func (c *Circuit) CZ(ctrl, target int) *Circuit     { return c.Gate(czGate, ctrl, target) }
func (c *Circuit) SWAP(a, b int) *Circuit           { return c.Gate(swapGate, a, b) }

// Toffoli adds a doubly controlled X.
func (c *Circuit) Toffoli(c1, c2, target int) *Circuit {
	return c.Gate(toffoliGate, c1, c2, target)
}

// Fredkin adds a controlled swap of a and b.
func (c *Circuit) Fredkin(ctrl, a, b int) *Circuit {
	return c.Gate(fredkinGate, ctrl, a, b)
}

// Measure adds a computational-basis measurement; no qubits means all.
func (c *Circuit) Measure(qubits ...int) *Circuit {
	return c.MeasureIn(BasisComputational, qubits...)
}

// MeasureIn adds a measurement in basis b; no qubits means all.
func (c *Circuit) MeasureIn(b Basis, qubits ...int) *Circuit {
	if len(qubits) == 0 {
		qubits = allQubits(c.qubits)
	}

	if err := validateIndices(c.qubits, qubits, "measured qubit"); err != nil {
		return c.fail(err)
	}

	c.instructions = append(c.instructions, Instruction{
		Kind:   MeasureStep,
		Qubits: slices.Clone(qubits),
		Basis:  b,
	})

	return c
}

/*
Append copies every instruction and error of sub onto c. sub may not address
more qubits than c.
*/
func (c *Circuit) Append(sub *Circuit) *Circuit {
	if sub.qubits > c.qubits {
		return c.fail(fmt.Errorf(
			"%w: appending a %d-qubit circuit to %d qubits", ErrDimensionMismatch, sub.qubits, c.qubits,
		))
	}

	c.errs = append(c.errs, sub.errs...)

	for _, in := range sub.instructions {
		in.Targets = slices.Clone(in.Targets)
		in.Controls = slices.Clone(in.Controls)
		in.Qubits = slices.Clone(in.Qubits)
		c.instructions = append(c.instructions, in)
	}

	return c
}

// Execute replays one instruction on qc, returning the outcome of a measurement.
func (in Instruction) Execute(qc *Context) (*Outcome, error) {
	if in.Kind == MeasureStep {
		out, err := qc.MeasureIn(in.Basis, in.Qubits...)
		if err != nil {
			return nil, err
		}

		return &out, nil
	}

	return nil, qc.Apply(in.Gate, in.Targets, in.Controls...)
}
