// Package bitmath holds the basis-index arithmetic shared by the host engine
// and the device drivers.
package bitmath

import "slices"

/*
InsertZeroBits spreads x apart so that a zero bit sits at each position in
holes. holes must be sorted ascending.
*/
func InsertZeroBits(x uint64, holes []uint) uint64 {
	for _, h := range holes {
		low := x & ((1 << h) - 1)
		x = (x>>h)<<(h+1) | low
	}

	return x
}

// Extract gathers the bits of i at positions qubits into a dense pattern;
// bit j of the result is bit qubits[j] of i.
func Extract(i uint64, qubits []int) uint64 {
	var out uint64

	for j, q := range qubits {
		out |= ((i >> uint(q)) & 1) << uint(j)
	}

	return out
}

// Deposit is the inverse of Extract: bit j of pattern lands at qubits[j].
func Deposit(pattern uint64, qubits []int) uint64 {
	var out uint64

	for j, q := range qubits {
		out |= ((pattern >> uint(j)) & 1) << uint(q)
	}

	return out
}

// Mask sets the bit of every listed qubit.
func Mask(qubits []int) uint64 {
	var out uint64

	for _, q := range qubits {
		out |= 1 << uint(q)
	}

	return out
}

// Holes returns the positions of every listed qubit, sorted ascending, in the
// form InsertZeroBits expects.
func Holes(sets ...[]int) []uint {
	var holes []uint

	for _, qubits := range sets {
		for _, q := range qubits {
			holes = append(holes, uint(q))
		}
	}

	slices.Sort(holes)

	return holes
}
