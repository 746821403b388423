package qsim

import (
	"slices"

	"github.com/theapemachine/qsim/internal/bitmath"
)

/*
Plan is a validated gate application expressed as index algebra over one
store. The 2^n basis indices split into groups of 2^k indices that differ only
in the target bits. Group g's base index is obtained by inserting a zero bit
at every target and control position of g and then setting the control bits,
so only groups whose controls are all 1 are ever enumerated.

Groups are disjoint, which lets any range of group ordinals be transformed
independently of any other range.
*/
type Plan struct {
	Gate        string
	Qubits      int
	Targets     []int
	Controls    []int
	ControlMask uint64
	Matrix      []complex128

	offsets []uint64
	holes   []uint
	groups  int
}

/*
NewPlan validates g, then targets and controls against an n-qubit register,
and precomputes the intra-group offsets. It is the only place the engine checks
indices; a Plan that exists is always safe to execute.
*/
func NewPlan(n int, g Gate, targets, controls []int) (*Plan, error) {
	if err := validateGate(g); err != nil {
		return nil, err
	}

	if err := validateLines(n, g.Arity(), targets, controls); err != nil {
		return nil, err
	}

	k := len(targets)
	p := &Plan{
		Gate:     g.Name(),
		Qubits:   n,
		Targets:  slices.Clone(targets),
		Controls: slices.Clone(controls),
		Matrix:   g.Matrix(),
		offsets:  make([]uint64, 1<<uint(k)),
		groups:   1 << uint(n-k-len(controls)),
	}

	for l := range p.offsets {
		var off uint64

		for j, t := range targets {
			if l&(1<<uint(j)) != 0 {
				off |= 1 << uint(t)
			}
		}

		p.offsets[l] = off
	}

	p.ControlMask = bitmath.Mask(controls)

	p.holes = bitmath.Holes(targets, controls)

	return p, nil
}

// Groups returns the number of active groups.
func (p *Plan) Groups() int { return p.groups }

// Arity returns the number of target lines.
func (p *Plan) Arity() int { return len(p.Targets) }

// Offsets returns the intra-group offsets, indexed by local basis state.
func (p *Plan) Offsets() []uint64 { return p.offsets }

// Base returns the basis index of the first amplitude in group g.
func (p *Plan) Base(g int) uint64 {
	return bitmath.InsertZeroBits(uint64(g), p.holes) | p.ControlMask
}

// Holes returns the sorted target and control positions.
func (p *Plan) Holes() []uint { return p.holes }

/*
Transform applies the plan to groups [lo, hi) of amps. Accumulation is always
complex128.
*/
func (p *Plan) Transform(amps []complex128, lo, hi int) {
	if len(p.Targets) == 1 {
		p.transform1(amps, lo, hi)
		return
	}

	dim := len(p.offsets)
	in := make([]complex128, dim)
	m := p.Matrix

	for g := lo; g < hi; g++ {
		base := p.Base(g)

		for l, off := range p.offsets {
			in[l] = amps[base|off]
		}

		for r, off := range p.offsets {
			var acc complex128
			row := m[r*dim : (r+1)*dim]

			for c, v := range in {
				acc += row[c] * v
			}

			amps[base|off] = acc
		}
	}
}

// transform1 is the 2x2 fast path.
func (p *Plan) transform1(amps []complex128, lo, hi int) {
	m00, m01, m10, m11 := p.Matrix[0], p.Matrix[1], p.Matrix[2], p.Matrix[3]
	step := p.offsets[1]

	for g := lo; g < hi; g++ {
		i := p.Base(g)
		j := i | step
		a, b := amps[i], amps[j]
		amps[i] = m00*a + m01*b
		amps[j] = m10*a + m11*b
	}
}

/*
Chunks splits [0, total) into consecutive ranges of at most size elements.
Chunk boundaries depend only on total and size, never on worker count, so
reductions over chunks are reproducible.
*/
func Chunks(total, size int) [][2]int {
	if size <= 0 {
		size = total
	}

	out := make([][2]int, 0, (total+size-1)/max(size, 1))

	for lo := 0; lo < total; lo += size {
		out = append(out, [2]int{lo, min(lo+size, total)})
	}

	return out
}
