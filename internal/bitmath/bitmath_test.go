package bitmath

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInsertZeroBits(t *testing.T) {
	Convey("Given a group ordinal", t, func() {
		Convey("It should leave it alone without holes", func() {
			So(InsertZeroBits(0b1011, nil), ShouldEqual, uint64(0b1011))
		})

		Convey("It should open a zero at every hole", func() {
			So(InsertZeroBits(0b11, []uint{0}), ShouldEqual, uint64(0b110))
			So(InsertZeroBits(0b11, []uint{1}), ShouldEqual, uint64(0b101))
			So(InsertZeroBits(0b111, []uint{0, 2}), ShouldEqual, uint64(0b11010))
		})

		Convey("It should enumerate every index with zeros at the holes exactly once", func() {
			holes := []uint{1, 3}
			seen := map[uint64]bool{}

			for g := uint64(0); g < 8; g++ {
				idx := InsertZeroBits(g, holes)
				So(idx&0b1010, ShouldEqual, uint64(0))
				seen[idx] = true
			}

			So(len(seen), ShouldEqual, 8)
		})
	})
}

func TestExtractDeposit(t *testing.T) {
	Convey("Given a qubit order", t, func() {
		qubits := []int{3, 0, 5}

		Convey("Extract should gather in list order", func() {
			So(Extract(0b001000, qubits), ShouldEqual, uint64(0b001))
			So(Extract(0b000001, qubits), ShouldEqual, uint64(0b010))
			So(Extract(0b100000, qubits), ShouldEqual, uint64(0b100))
		})

		Convey("Deposit should invert Extract on the masked bits", func() {
			for p := uint64(0); p < 8; p++ {
				So(Extract(Deposit(p, qubits), qubits), ShouldEqual, p)
				So(Deposit(p, qubits)&^Mask(qubits), ShouldEqual, uint64(0))
			}
		})

		Convey("Mask should set every listed bit", func() {
			So(Mask(qubits), ShouldEqual, uint64(0b101001))
			So(Mask(nil), ShouldEqual, uint64(0))
		})
	})
}

func TestHoles(t *testing.T) {
	Convey("Given targets and controls", t, func() {
		holes := Holes([]int{4, 1}, []int{3})

		Convey("Holes should merge and sort them", func() {
			So(holes, ShouldResemble, []uint{1, 3, 4})
		})

		Convey("Filling the free bits should enumerate every index with zeros at the holes", func() {
			seen := map[uint64]bool{}

			for f := uint64(0); f < 4; f++ {
				i := InsertZeroBits(f, holes)
				So(i&Mask([]int{1, 3, 4}), ShouldEqual, uint64(0))
				seen[i] = true
			}

			So(seen, ShouldHaveLength, 4)
		})
	})
}
