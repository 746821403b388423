package qsim

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"strconv"
	"strings"
)

// MaxQubits bounds the register size so a store always fits in memory and
// every basis index fits the uint64 masks used by the engine.
const MaxQubits = 30

/*
Store holds the amplitude vector of an n-qubit register. Index i is the basis
state whose bit j is the state of qubit j. The dimension is fixed for the
lifetime of the store and the vector is mutated in place by the engine.
*/
type Store struct {
	qubits     int
	amplitudes []complex128
}

/*
NewStore creates a store for n qubits initialized to |0...0⟩.
*/
func NewStore(n int) (*Store, error) {
	if n < 1 || n > MaxQubits {
		return nil, fmt.Errorf("%w: register size %d outside [1, %d]", ErrDimensionMismatch, n, MaxQubits)
	}

	s := &Store{
		qubits:     n,
		amplitudes: make([]complex128, 1<<uint(n)),
	}
	s.amplitudes[0] = 1

	return s, nil
}

/*
NewStoreFrom creates a store from an explicit amplitude vector. The length must
be a power of two and the vector must be normalized within NormTolerance.
The slice is copied.
*/
func NewStoreFrom(amplitudes []complex128) (*Store, error) {
	dim := len(amplitudes)

	if dim < 2 || dim&(dim-1) != 0 {
		return nil, fmt.Errorf("%w: length %d is not a power of two", ErrDimensionMismatch, dim)
	}

	n := bits.TrailingZeros(uint(dim))
	if n > MaxQubits {
		return nil, fmt.Errorf("%w: register size %d exceeds %d", ErrDimensionMismatch, n, MaxQubits)
	}

	s := &Store{
		qubits:     n,
		amplitudes: make([]complex128, dim),
	}
	copy(s.amplitudes, amplitudes)

	if err := s.CheckNorm(NormTolerance); err != nil {
		return nil, err
	}

	return s, nil
}

// Qubits returns the register size.
func (s *Store) Qubits() int { return s.qubits }

// Dim returns 2^n.
func (s *Store) Dim() int { return len(s.amplitudes) }

// Amplitude returns the amplitude of basis state i.
func (s *Store) Amplitude(i int) complex128 { return s.amplitudes[i] }

// Amplitudes returns a copy of the amplitude vector.
func (s *Store) Amplitudes() []complex128 {
	out := make([]complex128, len(s.amplitudes))
	copy(out, s.amplitudes)
	return out
}

// Probabilities returns |amplitude|² for every basis state.
func (s *Store) Probabilities() []float64 {
	out := make([]float64, len(s.amplitudes))

	for i, a := range s.amplitudes {
		out[i] = real(a)*real(a) + imag(a)*imag(a)
	}

	return out
}

// Norm returns the sum of squared magnitudes.
func (s *Store) Norm() float64 {
	var sum float64

	for _, a := range s.amplitudes {
		sum += real(a)*real(a) + imag(a)*imag(a)
	}

	return sum
}

/*
CheckNorm reports ErrNumericalInstability when the norm has drifted further
than tol from 1.
*/
func (s *Store) CheckNorm(tol float64) error {
	norm := s.Norm()

	if math.IsNaN(norm) || math.Abs(norm-1) > tol {
		return fmt.Errorf("%w: norm %.12f outside tolerance %g", ErrNumericalInstability, norm, tol)
	}

	return nil
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	return &Store{
		qubits:     s.qubits,
		amplitudes: s.Amplitudes(),
	}
}

// Reset returns the register to |0...0⟩.
func (s *Store) Reset() {
	clear(s.amplitudes)
	s.amplitudes[0] = 1
}

// ApproxEqual compares two stores amplitude by amplitude.
func (s *Store) ApproxEqual(other *Store, tol float64) bool {
	if other == nil || other.qubits != s.qubits {
		return false
	}

	for i, a := range s.amplitudes {
		if cmplx.Abs(a-other.amplitudes[i]) > tol {
			return false
		}
	}

	return true
}

// load overwrites the amplitudes from a same-sized vector.
func (s *Store) load(amplitudes []complex128) {
	copy(s.amplitudes, amplitudes)
}

/*
String lists the non-zero amplitudes as kets, most significant qubit first.
*/
func (s *Store) String() string {
	var b strings.Builder

	for i, a := range s.amplitudes {
		if cmplx.Abs(a) < 1e-12 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString(" + ")
		}

		fmt.Fprintf(&b, "(%.4f%+.4fi)|%s⟩", real(a), imag(a), basisLabel(uint64(i), s.qubits))
	}

	return b.String()
}

// basisLabel renders index i as an n-bit string, qubit n-1 first.
func basisLabel(i uint64, n int) string {
	label := strconv.FormatUint(i, 2)

	if len(label) < n {
		label = strings.Repeat("0", n-len(label)) + label
	}

	return label
}
