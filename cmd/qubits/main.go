// Command qubits walks through the basic operations: superposition,
// controlled gates, custom operators and measurement in several bases.
package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/theapemachine/qsim"
	"github.com/theapemachine/qsim/internal/cli"
)

func main() {
	fs := cli.NewFlagSet("qubits")
	cfg, seed, err := cli.Load(fs, os.Args[1:])
	if err != nil {
		cli.Fatal("configuration", err)
	}

	metrics, reg := cli.Metrics()

	qc, err := qsim.NewContext(context.Background(), 3, cfg, qsim.WithSeed(seed), qsim.WithMetrics(metrics))
	if err != nil {
		cli.Fatal("opening context", err)
	}
	defer qc.Close()

	fmt.Printf("backend: %s\n", qc.Backend())

	must(qc.Apply(qsim.Hadamard(), []int{0}))
	show(qc, "H on q0")

	must(qc.Apply(qsim.CNOT(), []int{0, 1}))
	show(qc, "CNOT q0 -> q1")

	sqrtX, err := qsim.NewUnitary("√X", 1, []complex128{
		complex(0.5, 0.5), complex(0.5, -0.5),
		complex(0.5, -0.5), complex(0.5, 0.5),
	})
	if err != nil {
		cli.Fatal("custom gate", err)
	}

	must(qc.Apply(sqrtX, []int{2}))
	must(qc.Apply(sqrtX, []int{2}))
	show(qc, "√X twice on q2")

	must(qc.Apply(qsim.Phase(math.Pi/3), []int{2}, 0))
	show(qc, "P(π/3) on q2 controlled by q0")

	probs, err := qc.Probabilities(0, 1)
	if err != nil {
		cli.Fatal("marginals", err)
	}
	fmt.Printf("P(q0,q1): %.3f\n", probs)

	zz, _ := qc.Expectation("ZZI")
	fmt.Printf("<Z0 Z1> = %.3f\n", zz)

	out, err := qc.MeasureIn(qsim.BasisX, 2)
	if err != nil {
		cli.Fatal("measuring", err)
	}
	fmt.Printf("q2 in the X basis: %s\n", out)

	out, err = qc.Measure()
	if err != nil {
		cli.Fatal("measuring", err)
	}
	fmt.Printf("all qubits: %s (value %d)\n", out, out.Value())
	show(qc, "after measurement")

	qsim.Logger().Info("done", "metrics", metrics.ExportMetrics())

	if err := cli.ReportMetrics(fs, reg); err != nil {
		cli.Fatal("metrics", err)
	}
}

func show(qc *qsim.Context, label string) {
	state, err := qc.State()
	if err != nil {
		cli.Fatal("reading state", err)
	}

	fmt.Printf("%-32s %s\n", label+":", state)
}

func must(err error) {
	if err != nil {
		cli.Fatal("applying gate", err)
	}
}
