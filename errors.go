package qsim

import (
	"errors"
	"fmt"
)

// Errors returned by the engine. Detail is attached with %w so callers can
// match with errors.Is.
var (
	ErrDimensionMismatch    = errors.New("qsim: dimension mismatch")
	ErrInvalidQubitIndex    = errors.New("qsim: invalid qubit index")
	ErrNonUnitaryOperator   = errors.New("qsim: operator is not unitary")
	ErrDeviceUnavailable    = errors.New("qsim: device unavailable")
	ErrNumericalInstability = errors.New("qsim: numerical instability")
	ErrBackend              = errors.New("qsim: backend failure")
	ErrContextClosed        = errors.New("qsim: execution context closed")
)

/*
validateLines checks a target/control pair against a register of n qubits.
Nothing is mutated before this returns nil.
*/
func validateLines(n, arity int, targets, controls []int) error {
	if len(targets) != arity {
		return fmt.Errorf(
			"%w: gate acts on %d qubits, got %d targets",
			ErrDimensionMismatch, arity, len(targets),
		)
	}

	if err := validateIndices(n, targets, "target"); err != nil {
		return err
	}

	if err := validateIndices(n, controls, "control"); err != nil {
		return err
	}

	var seen uint64

	for _, q := range targets {
		seen |= 1 << uint(q)
	}

	for _, q := range controls {
		if seen&(1<<uint(q)) != 0 {
			return fmt.Errorf("%w: qubit %d is used more than once", ErrInvalidQubitIndex, q)
		}

		seen |= 1 << uint(q)
	}

	return nil
}

// validateIndices checks range and uniqueness within one index list.
func validateIndices(n int, qubits []int, role string) error {
	var seen uint64

	for _, q := range qubits {
		if q < 0 || q >= n {
			return fmt.Errorf(
				"%w: %s %d out of range for %d qubits",
				ErrInvalidQubitIndex, role, q, n,
			)
		}

		if seen&(1<<uint(q)) != 0 {
			return fmt.Errorf("%w: qubit %d is used more than once", ErrInvalidQubitIndex, q)
		}

		seen |= 1 << uint(q)
	}

	return nil
}
