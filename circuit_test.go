package qsim

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCircuitBuilder(t *testing.T) {
	Convey("Given a 3-qubit circuit", t, func() {
		c := NewCircuit(3)

		Convey("Valid instructions should be recorded in order", func() {
			c.H(0).CNOT(0, 1).Toffoli(0, 1, 2).RZ(0.5, 2).Measure(2)

			So(c.Err(), ShouldBeNil)
			So(c.Len(), ShouldEqual, 5)
			So(c.Measurements(), ShouldBeTrue)

			ins := c.Instructions()
			So(ins[1].Gate.Name(), ShouldEqual, "CX")
			So(ins[1].Targets, ShouldResemble, []int{0, 1})
			So(ins[4].Kind, ShouldEqual, MeasureStep)
			So(ins[4].Qubits, ShouldResemble, []int{2})
		})

		Convey("Measure without qubits should cover the register", func() {
			c.Measure()
			So(c.Instructions()[0].Qubits, ShouldResemble, []int{0, 1, 2})
		})

		Convey("Invalid instructions should be dropped and reported", func() {
			c.H(3).CNOT(1, 1).X(0).Gate(SWAP(), 0).Measure(0, 0)

			So(c.Len(), ShouldEqual, 1)
			So(errors.Is(c.Err(), ErrInvalidQubitIndex), ShouldBeTrue)
			So(errors.Is(c.Err(), ErrDimensionMismatch), ShouldBeTrue)
		})

		Convey("Controlled should carry extra controls", func() {
			c.Controlled(Hadamard(), []int{0, 1}, 2)

			in := c.Instructions()[0]
			So(in.Controls, ShouldResemble, []int{0, 1})
			So(in.String(), ShouldEqual, "H [2] ctrl [0 1]")
		})

		Convey("Append should copy a smaller circuit", func() {
			sub := NewCircuit(2).H(0).CNOT(0, 1)
			c.Append(sub).Append(sub)

			So(c.Len(), ShouldEqual, 4)
			So(c.Err(), ShouldBeNil)

			c.Instructions()[0].Targets[0] = 2
			So(sub.Instructions()[0].Targets[0], ShouldEqual, 0)
		})

		Convey("Append should refuse a larger circuit", func() {
			c.Append(NewCircuit(4).H(3))
			So(errors.Is(c.Err(), ErrDimensionMismatch), ShouldBeTrue)
			So(c.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given an invalid register size", t, func() {
		So(errors.Is(NewCircuit(0).Err(), ErrDimensionMismatch), ShouldBeTrue)
	})
}
