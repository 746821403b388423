package qsim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

/*
Outcome is the classical result of measuring a set of qubits. Bits[j] is the
value observed on Qubits[j].
*/
type Outcome struct {
	Qubits []int
	Bits   []int
}

// Bit returns the value observed on qubit q and whether q was measured.
func (o Outcome) Bit(q int) (int, bool) {
	for j, m := range o.Qubits {
		if m == q {
			return o.Bits[j], true
		}
	}

	return 0, false
}

// Value packs the bits into an integer, Bits[j] at bit j.
func (o Outcome) Value() uint64 {
	var v uint64

	for j, b := range o.Bits {
		v |= uint64(b) << uint(j)
	}

	return v
}

// Map returns qubit -> bit.
func (o Outcome) Map() map[int]int {
	m := make(map[int]int, len(o.Qubits))

	for j, q := range o.Qubits {
		m[q] = o.Bits[j]
	}

	return m
}

// String renders the bits in measurement order, e.g. "01".
func (o Outcome) String() string {
	var b strings.Builder

	for _, bit := range o.Bits {
		b.WriteString(strconv.Itoa(bit))
	}

	return b.String()
}

func outcomeOf(qubits []int, pattern uint64) Outcome {
	o := Outcome{
		Qubits: append([]int(nil), qubits...),
		Bits:   make([]int, len(qubits)),
	}

	for j := range qubits {
		o.Bits[j] = int(pattern>>uint(j)) & 1
	}

	return o
}

// allQubits returns 0..n-1.
func allQubits(n int) []int {
	qs := make([]int, n)
	for i := range qs {
		qs[i] = i
	}

	return qs
}

/*
measure samples and collapses qubits through b. The total marginal probability
must be within tol of 1. A draw r in [0, 1) selects the first pattern whose
cumulative probability exceeds r·total, which can never be a zero-probability
pattern. Qubits must already be validated.
*/
func measure(b Backend, qubits []int, rng *rand.Rand, tol float64) (Outcome, error) {
	probs, err := b.Marginals(qubits)
	if err != nil {
		return Outcome{}, err
	}

	var total float64
	for _, p := range probs {
		total += p
	}

	if math.IsNaN(total) || math.Abs(total-1) > tol {
		return Outcome{}, fmt.Errorf("%w: marginal total %.12f", ErrNumericalInstability, total)
	}

	threshold := rng.Float64() * total
	selected := -1

	var cumulative float64

	for i, p := range probs {
		if p <= 0 {
			continue
		}

		cumulative += p
		selected = i

		if cumulative > threshold {
			break
		}
	}

	if selected < 0 || probs[selected] <= 0 {
		return Outcome{}, fmt.Errorf("%w: selected outcome has zero probability", ErrNumericalInstability)
	}

	if err := b.Collapse(qubits, uint64(selected), 1/math.Sqrt(probs[selected])); err != nil {
		return Outcome{}, err
	}

	return outcomeOf(qubits, uint64(selected)), nil
}

/*
Measure samples qubits of s under the Born rule using rng and collapses s
onto the result. An empty qubit list measures the whole register.
*/
func Measure(s *Store, qubits []int, rng *rand.Rand) (Outcome, error) {
	if len(qubits) == 0 {
		qubits = allQubits(s.qubits)
	}

	if err := validateIndices(s.qubits, qubits, "measured qubit"); err != nil {
		return Outcome{}, err
	}

	return measure(newInlineHost(s), qubits, rng, NormTolerance)
}

// NewRand returns the PCG source used by execution contexts for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, splitmix(seed)))
}

// splitmix is one step of the SplitMix64 generator.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb

	return x ^ (x >> 31)
}
