package qsim

import (
	"errors"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	. "github.com/smartystreets/goconvey/convey"
)

func basisState(n int, index int) *Store {
	amps := make([]complex128, 1<<uint(n))
	amps[index] = 1

	s, err := NewStoreFrom(amps)
	if err != nil {
		panic(err)
	}

	return s
}

// onlyIndex returns the single basis index holding all the weight, or -1.
func onlyIndex(s *Store) int {
	for i, p := range s.Probabilities() {
		if math.Abs(p-1) < 1e-9 {
			return i
		}
	}

	return -1
}

func TestNewPlan(t *testing.T) {
	Convey("Given a gate on a 4-qubit register", t, func() {
		Convey("It should derive offsets from target positions", func() {
			p, err := NewPlan(4, SWAP(), []int{3, 1}, nil)
			So(err, ShouldBeNil)
			So(p.Offsets(), ShouldResemble, []uint64{0, 8, 2, 10})
			So(p.Groups(), ShouldEqual, 4)
			So(p.Holes(), ShouldResemble, []uint{1, 3})
		})

		Convey("It should only enumerate groups whose controls are set", func() {
			p, err := NewPlan(4, PauliX(), []int{0}, []int{2})
			So(err, ShouldBeNil)
			So(p.Groups(), ShouldEqual, 4)

			for g := 0; g < p.Groups(); g++ {
				So(p.Base(g)&0b0100, ShouldEqual, uint64(0b0100))
				So(p.Base(g)&0b0001, ShouldEqual, uint64(0))
			}
		})

		Convey("It should reject invalid lines in order", func() {
			_, err := NewPlan(3, CNOT(), []int{0}, nil)
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)

			_, err = NewPlan(3, Hadamard(), []int{3}, nil)
			So(errors.Is(err, ErrInvalidQubitIndex), ShouldBeTrue)

			_, err = NewPlan(3, Hadamard(), []int{-1}, nil)
			So(errors.Is(err, ErrInvalidQubitIndex), ShouldBeTrue)

			_, err = NewPlan(3, CNOT(), []int{1, 1}, nil)
			So(errors.Is(err, ErrInvalidQubitIndex), ShouldBeTrue)

			_, err = NewPlan(3, Hadamard(), []int{1}, []int{1})
			So(errors.Is(err, ErrInvalidQubitIndex), ShouldBeTrue)

			_, err = NewPlan(3, Hadamard(), []int{1}, []int{5})
			So(errors.Is(err, ErrInvalidQubitIndex), ShouldBeTrue)
		})
	})
}

func TestChunks(t *testing.T) {
	Convey("Given a range and a chunk size", t, func() {
		So(Chunks(10, 4), ShouldResemble, [][2]int{{0, 4}, {4, 8}, {8, 10}})
		So(Chunks(4, 4), ShouldResemble, [][2]int{{0, 4}})
		So(Chunks(3, 0), ShouldResemble, [][2]int{{0, 3}})
		So(Chunks(0, 4), ShouldBeEmpty)
	})
}

func TestApply(t *testing.T) {
	Convey("Given a fresh register", t, func() {
		s, err := NewStore(2)
		So(err, ShouldBeNil)

		Convey("H then CNOT should prepare a Bell state", func() {
			So(Apply(s, Hadamard(), []int{0}, nil), ShouldBeNil)
			So(Apply(s, CNOT(), []int{0, 1}, nil), ShouldBeNil)

			h := 1 / math.Sqrt2
			want, _ := NewStoreFrom([]complex128{complex(h, 0), 0, 0, complex(h, 0)})
			So(s.ApproxEqual(want, 1e-12), ShouldBeTrue)
		})

		Convey("H applied twice should be the identity", func() {
			start, _ := NewStoreFrom([]complex128{0.6, 0, complex(0, 0.8), 0})
			s = start.Clone()

			So(Apply(s, Hadamard(), []int{1}, nil), ShouldBeNil)
			So(Apply(s, Hadamard(), []int{1}, nil), ShouldBeNil)
			So(s.ApproxEqual(start, 1e-12), ShouldBeTrue)
		})

		Convey("An invalid application should leave the store untouched", func() {
			So(Apply(s, Hadamard(), []int{0}, nil), ShouldBeNil)
			before := s.Clone()

			So(Apply(s, CNOT(), []int{0, 0}, nil), ShouldNotBeNil)
			So(Apply(s, Hadamard(), []int{2}, nil), ShouldNotBeNil)
			So(Apply(s, SWAP(), []int{0}, nil), ShouldNotBeNil)
			So(s.ApproxEqual(before, 0), ShouldBeTrue)
		})
	})

	Convey("Given every basis state of 3 qubits", t, func() {
		Convey("Toffoli should flip the target only when both controls are set", func() {
			for in := 0; in < 8; in++ {
				s := basisState(3, in)
				So(Apply(s, Toffoli(), []int{0, 1, 2}, nil), ShouldBeNil)

				want := in
				if in&0b011 == 0b011 {
					want ^= 0b100
				}

				So(onlyIndex(s), ShouldEqual, want)
			}
		})

		Convey("Fredkin should swap the targets only when the control is set", func() {
			for in := 0; in < 8; in++ {
				s := basisState(3, in)
				So(Apply(s, Fredkin(), []int{0, 1, 2}, nil), ShouldBeNil)

				want := in
				if in&1 == 1 {
					b1, b2 := (in>>1)&1, (in>>2)&1
					want = 1 | b2<<1 | b1<<2
				}

				So(onlyIndex(s), ShouldEqual, want)
			}
		})

		Convey("Extra controls should gate a single-qubit operator", func() {
			for in := 0; in < 8; in++ {
				s := basisState(3, in)
				So(Apply(s, PauliX(), []int{1}, []int{0, 2}), ShouldBeNil)

				want := in
				if in&0b101 == 0b101 {
					want ^= 0b010
				}

				So(onlyIndex(s), ShouldEqual, want)
			}
		})
	})

	Convey("Given a random-looking circuit on 6 qubits", t, func() {
		s, _ := NewStore(6)
		steps := []struct {
			g        Gate
			targets  []int
			controls []int
		}{
			{Hadamard(), []int{0}, nil},
			{RY(0.7), []int{3}, nil},
			{CNOT(), []int{0, 5}, nil},
			{Toffoli(), []int{5, 3, 1}, nil},
			{RX(1.3), []int{2}, []int{1}},
			{SWAP(), []int{4, 2}, nil},
			{T(), []int{4}, nil},
			{Fredkin(), []int{1, 0, 4}, nil},
		}

		Convey("The norm should stay 1 after every step", func() {
			for _, st := range steps {
				So(Apply(s, st.g, st.targets, st.controls), ShouldBeNil)
				So(s.CheckNorm(1e-12), ShouldBeNil)
			}

			if t.Failed() {
				t.Log(spew.Sdump(s.Amplitudes()))
			}
		})
	})
}

// userGate is a Gate implemented outside the package.
type userGate struct {
	arity  int
	matrix []complex128
}

func (g userGate) Name() string         { return "user" }
func (g userGate) Arity() int           { return g.arity }
func (g userGate) Matrix() []complex128 { return g.matrix }

func TestApplyUserGate(t *testing.T) {
	Convey("Given a register in a known state", t, func() {
		s := basisState(2, 0b01)
		before := s.Clone()

		Convey("A correct user gate should behave like the built-in one", func() {
			flip := userGate{arity: 1, matrix: []complex128{0, 1, 1, 0}}

			So(Apply(s, flip, []int{1}, nil), ShouldBeNil)
			So(onlyIndex(s), ShouldEqual, 0b11)
		})

		Convey("A matrix of the wrong size should be rejected without mutation", func() {
			bad := userGate{arity: 2, matrix: []complex128{0, 1, 1, 0}}

			err := Apply(s, bad, []int{0, 1}, nil)
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
			So(s.ApproxEqual(before, 0), ShouldBeTrue)
		})

		Convey("A non-unitary matrix should be rejected without mutation", func() {
			bad := userGate{arity: 1, matrix: []complex128{1, 1, 0, 1}}

			err := Apply(s, bad, []int{0}, nil)
			So(errors.Is(err, ErrNonUnitaryOperator), ShouldBeTrue)
			So(s.ApproxEqual(before, 0), ShouldBeTrue)
		})

		Convey("Wrapping a bad gate should not hide it", func() {
			bad := userGate{arity: 2, matrix: []complex128{0, 1, 1, 0}}

			err := Apply(s, Controlled(bad, 1), []int{0, 1}, nil)
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)

			err = Apply(s, Dagger(userGate{arity: 1, matrix: []complex128{2, 0, 0, 2}}), []int{0}, nil)
			So(errors.Is(err, ErrNonUnitaryOperator), ShouldBeTrue)
			So(s.ApproxEqual(before, 0), ShouldBeTrue)
		})

		Convey("A circuit should refuse a bad gate when it is added", func() {
			c := NewCircuit(2).Gate(userGate{arity: 1, matrix: []complex128{1}}, 0)
			So(errors.Is(c.Err(), ErrDimensionMismatch), ShouldBeTrue)
			So(c.Len(), ShouldEqual, 0)
		})
	})
}
