package qsim

import (
	"fmt"
	"math/cmplx"
)

/*
Gate is a unitary transform over a fixed number of qubit lines. Matrix
returns the 2^k x 2^k matrix in row-major order, where bit j of a row or
column index is the state of the j-th target passed to Apply.

The engine only ever asks a gate for its matrix, so built-in and custom gates
are handled identically. Implementations must be immutable; the returned
slice is treated as read-only. Gates not built by this package are checked
for shape and unitarity every time they are planned.
*/
type Gate interface {
	Name() string
	Arity() int
	Matrix() []complex128
}

/*
matrixGate is the single concrete representation used by every built-in and
custom operator. checked marks matrices already known to be unitary.
*/
type matrixGate struct {
	name    string
	arity   int
	matrix  []complex128
	checked bool
}

func (g *matrixGate) Name() string         { return g.name }
func (g *matrixGate) Arity() int           { return g.arity }
func (g *matrixGate) Matrix() []complex128 { return g.matrix }

func (g *matrixGate) String() string {
	return fmt.Sprintf("%s/%d", g.name, g.arity)
}

// newGate wraps a trusted matrix without validation.
func newGate(name string, arity int, matrix ...complex128) Gate {
	return &matrixGate{name: name, arity: arity, matrix: matrix, checked: true}
}

/*
NewUnitary builds a custom gate from a user-supplied row-major matrix. The
matrix must be 2^arity square and unitary within UnitaryTolerance.
*/
func NewUnitary(name string, arity int, matrix []complex128) (Gate, error) {
	if arity < 1 || arity > MaxQubits {
		return nil, fmt.Errorf("%w: arity %d", ErrDimensionMismatch, arity)
	}

	dim := 1 << uint(arity)

	if len(matrix) != dim*dim {
		return nil, fmt.Errorf(
			"%w: %s needs %d entries for arity %d, got %d",
			ErrDimensionMismatch, name, dim*dim, arity, len(matrix),
		)
	}

	if err := checkUnitary(matrix, dim, UnitaryTolerance); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	m := make([]complex128, len(matrix))
	copy(m, matrix)

	return &matrixGate{name: name, arity: arity, matrix: m, checked: true}, nil
}

func isChecked(g Gate) bool {
	mg, ok := g.(*matrixGate)
	return ok && mg.checked
}

// wellShaped reports whether g's matrix is 2^arity square.
func wellShaped(g Gate) bool {
	k := g.Arity()
	if k < 1 || k > MaxQubits {
		return false
	}

	dim := 1 << uint(k)

	return len(g.Matrix()) == dim*dim
}

/*
validateGate accepts package-built gates as they are and holds any other
implementation to the rules NewUnitary enforces.
*/
func validateGate(g Gate) error {
	if isChecked(g) {
		return nil
	}

	if !wellShaped(g) {
		return fmt.Errorf(
			"%w: %s has %d matrix entries for arity %d",
			ErrDimensionMismatch, g.Name(), len(g.Matrix()), g.Arity(),
		)
	}

	if err := checkUnitary(g.Matrix(), 1<<uint(g.Arity()), UnitaryTolerance); err != nil {
		return fmt.Errorf("%s: %w", g.Name(), err)
	}

	return nil
}

// checkUnitary verifies U·U† = I entry by entry.
func checkUnitary(m []complex128, dim int, tol float64) error {
	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			var acc complex128

			for k := 0; k < dim; k++ {
				acc += m[r*dim+k] * cmplx.Conj(m[c*dim+k])
			}

			want := complex(0, 0)
			if r == c {
				want = 1
			}

			if cmplx.Abs(acc-want) > tol {
				return fmt.Errorf(
					"%w: (U·U†)[%d][%d] = %v",
					ErrNonUnitaryOperator, r, c, acc,
				)
			}
		}
	}

	return nil
}

/*
Controlled returns g extended with c control lines. The resulting gate has
arity c+k; its first c targets are the controls and the remaining k are the
targets of g. The matrix is the identity except on the block where every
control bit is set.
*/
func Controlled(g Gate, c int) Gate {
	if c <= 0 {
		return g
	}

	name := g.Name()
	for i := 0; i < c; i++ {
		name = "C" + name
	}

	k := g.Arity()

	if !wellShaped(g) {
		return &matrixGate{name: name, arity: k + c, matrix: g.Matrix()}
	}

	inner := g.Matrix()
	innerDim := 1 << uint(k)
	dim := 1 << uint(k+c)
	mask := (1 << uint(c)) - 1
	m := make([]complex128, dim*dim)

	for i := 0; i < dim; i++ {
		if i&mask != mask {
			m[i*dim+i] = 1
		}
	}

	for u := 0; u < innerDim; u++ {
		for v := 0; v < innerDim; v++ {
			m[((u<<uint(c))|mask)*dim+((v<<uint(c))|mask)] = inner[u*innerDim+v]
		}
	}

	return &matrixGate{name: name, arity: k + c, matrix: m, checked: isChecked(g)}
}

// Dagger returns the conjugate transpose of g.
func Dagger(g Gate) Gate {
	if !wellShaped(g) {
		return &matrixGate{name: g.Name() + "†", arity: g.Arity(), matrix: g.Matrix()}
	}

	dim := 1 << uint(g.Arity())
	src := g.Matrix()
	m := make([]complex128, dim*dim)

	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			m[c*dim+r] = cmplx.Conj(src[r*dim+c])
		}
	}

	return &matrixGate{name: g.Name() + "†", arity: g.Arity(), matrix: m, checked: isChecked(g)}
}
