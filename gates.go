package qsim

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

var invSqrt2 = complex(1/math.Sqrt2, 0)

// Fixed single-qubit gates. The matrices are exact, so they are built once.
var (
	identityGate = newGate("I", 1, 1, 0, 0, 1)
	hadamardGate = newGate("H", 1, invSqrt2, invSqrt2, invSqrt2, -invSqrt2)
	pauliXGate   = newGate("X", 1, 0, 1, 1, 0)
	pauliYGate   = newGate("Y", 1, 0, -1i, 1i, 0)
	pauliZGate   = newGate("Z", 1, 1, 0, 0, -1)
	sGate        = newGate("S", 1, 1, 0, 0, 1i)
	sdgGate      = newGate("Sdg", 1, 1, 0, 0, -1i)
	tGate        = newGate("T", 1, 1, 0, 0, cmplx.Exp(complex(0, math.Pi/4)))
	tdgGate      = newGate("Tdg", 1, 1, 0, 0, cmplx.Exp(complex(0, -math.Pi/4)))
	swapGate     = newGate("SWAP", 2,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	)
	cnotGate    = Controlled(pauliXGate, 1)
	czGate      = Controlled(pauliZGate, 1)
	toffoliGate = Controlled(pauliXGate, 2)
	fredkinGate = Controlled(swapGate, 1)
)

// Identity is the single-qubit identity.
func Identity() Gate { return identityGate }

// Hadamard maps |0⟩ to |+⟩ and |1⟩ to |-⟩.
func Hadamard() Gate { return hadamardGate }

// PauliX is the bit flip.
func PauliX() Gate { return pauliXGate }

// PauliY is the combined bit and phase flip.
func PauliY() Gate { return pauliYGate }

// PauliZ is the phase flip.
func PauliZ() Gate { return pauliZGate }

// S is the quarter turn about Z.
func S() Gate { return sGate }

// Sdg is the inverse of S.
func Sdg() Gate { return sdgGate }

// T is the eighth turn about Z.
func T() Gate { return tGate }

// Tdg is the inverse of T.
func Tdg() Gate { return tdgGate }

// SWAP exchanges two qubits.
func SWAP() Gate { return swapGate }

// CNOT acts on [control, target].
func CNOT() Gate { return cnotGate }

// CZ acts on [control, target].
func CZ() Gate { return czGate }

// Toffoli acts on [control, control, target].
func Toffoli() Gate { return toffoliGate }

// Fredkin is the controlled swap on [control, a, b].
func Fredkin() Gate { return fredkinGate }

// Phase applies e^{iθ} to |1⟩.
func Phase(theta float64) Gate {
	return newGate("P", 1, 1, 0, 0, cmplx.Exp(complex(0, theta)))
}

// RX rotates about the X axis by theta.
func RX(theta float64) Gate {
	c, s := math.Cos(theta/2), math.Sin(theta/2)
	return newGate("RX", 1,
		complex(c, 0), complex(0, -s),
		complex(0, -s), complex(c, 0),
	)
}

// RY rotates about the Y axis by theta.
func RY(theta float64) Gate {
	c, s := math.Cos(theta/2), math.Sin(theta/2)
	return newGate("RY", 1,
		complex(c, 0), complex(-s, 0),
		complex(s, 0), complex(c, 0),
	)
}

// RZ rotates about the Z axis by theta.
func RZ(theta float64) Gate {
	return newGate("RZ", 1,
		cmplx.Exp(complex(0, -theta/2)), 0,
		0, cmplx.Exp(complex(0, theta/2)),
	)
}

/*
GateByName resolves a standard gate from its name and parameters, so
instruction lists can be replayed from plain data. Names are matched
case-insensitively; rotation and phase gates take exactly one parameter.
*/
func GateByName(name string, params ...float64) (Gate, error) {
	key := strings.ToUpper(name)

	fixed := map[string]Gate{
		"I": identityGate, "ID": identityGate,
		"H": hadamardGate,
		"X": pauliXGate, "Y": pauliYGate, "Z": pauliZGate,
		"S": sGate, "SDG": sdgGate, "T": tGate, "TDG": tdgGate,
		"SWAP": swapGate,
		"CNOT": cnotGate, "CX": cnotGate, "CZ": czGate,
		"TOFFOLI": toffoliGate, "CCX": toffoliGate,
		"FREDKIN": fredkinGate, "CSWAP": fredkinGate,
	}

	if g, ok := fixed[key]; ok {
		if len(params) != 0 {
			return nil, fmt.Errorf("%w: %s takes no parameters", ErrDimensionMismatch, name)
		}

		return g, nil
	}

	rotations := map[string]func(float64) Gate{
		"P": Phase, "PHASE": Phase,
		"RX": RX, "RY": RY, "RZ": RZ,
	}

	if build, ok := rotations[key]; ok {
		if len(params) != 1 {
			return nil, fmt.Errorf("%w: %s takes one parameter, got %d", ErrDimensionMismatch, name, len(params))
		}

		return build(params[0]), nil
	}

	return nil, fmt.Errorf("unknown gate %q", name)
}
