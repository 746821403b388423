package qsim

import "fmt"

/*
Basis is a single-qubit measurement basis. rotate maps the basis onto the
computational one; a nil rotate is the computational basis itself.
*/
type Basis struct {
	name   string
	rotate Gate
}

var (
	BasisComputational = Basis{name: "Z"}
	BasisX             = Basis{name: "X", rotate: hadamardGate}
	BasisY             = Basis{name: "Y", rotate: product("H·S†", hadamardGate, sdgGate)}
)

/*
CustomBasis measures in the eigenbasis of the single-qubit unitary u, whose
columns are the basis states. Measuring applies u† first and u afterwards.
*/
func CustomBasis(u Gate) (Basis, error) {
	if u.Arity() != 1 {
		return Basis{}, fmt.Errorf("%w: basis operator must act on 1 qubit, got %d", ErrDimensionMismatch, u.Arity())
	}

	if err := validateGate(u); err != nil {
		return Basis{}, err
	}

	return Basis{name: u.Name(), rotate: Dagger(u)}, nil
}

func (b Basis) String() string { return b.name }

// product returns the gate a·b, i.e. b applied first.
func product(name string, a, b Gate) Gate {
	dim := 1 << uint(a.Arity())
	ma, mb := a.Matrix(), b.Matrix()
	m := make([]complex128, dim*dim)

	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			var acc complex128

			for k := 0; k < dim; k++ {
				acc += ma[r*dim+k] * mb[k*dim+c]
			}

			m[r*dim+c] = acc
		}
	}

	return &matrixGate{name: name, arity: a.Arity(), matrix: m, checked: isChecked(a) && isChecked(b)}
}
