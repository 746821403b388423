/*
Command heisenberg evaluates the energy of the open Heisenberg chain

	H = Σ (X_i X_{i+1} + Y_i Y_{i+1} + Z_i Z_{i+1})

on a Néel state, a product of singlets, and a sweep of a one-parameter
ansatz interpolating between them.
*/
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/theapemachine/qsim"
	"github.com/theapemachine/qsim/internal/cli"
)

func main() {
	fs := cli.NewFlagSet("heisenberg")
	n := fs.Int("qubits", 4, "chain length (even)")
	points := fs.Int("points", 9, "ansatz sweep points")

	cfg, seed, err := cli.Load(fs, os.Args[1:])
	if err != nil {
		cli.Fatal("configuration", err)
	}

	if *n < 2 || *n%2 != 0 {
		cli.Fatal("configuration", fmt.Errorf("chain length must be even, got %d", *n))
	}

	metrics, reg := cli.Metrics()
	ctx := context.Background()

	energy := func(c *qsim.Circuit) float64 {
		qc, err := qsim.NewContext(ctx, *n, cfg, qsim.WithSeed(seed), qsim.WithMetrics(metrics))
		if err != nil {
			cli.Fatal("opening context", err)
		}
		defer qc.Close()

		for _, in := range c.Instructions() {
			if _, err := in.Execute(qc); err != nil {
				cli.Fatal("preparing state", err)
			}
		}

		var e float64

		for i := 0; i+1 < *n; i++ {
			for _, p := range []byte{'X', 'Y', 'Z'} {
				b := []byte(strings.Repeat("I", *n))
				b[i], b[i+1] = p, p

				v, err := qc.Expectation(string(b))
				if err != nil {
					cli.Fatal("expectation", err)
				}
				e += v
			}
		}

		return e
	}

	fmt.Printf("Néel state      E = %8.4f\n", energy(neel(*n)))
	fmt.Printf("singlet product E = %8.4f\n", energy(dimers(*n, math.Pi/2)))

	for k := 0; k < *points; k++ {
		theta := math.Pi / 2 * float64(k) / float64(max(*points-1, 1))
		fmt.Printf("θ = %5.3f       E = %8.4f\n", theta, energy(dimers(*n, theta)))
	}

	qsim.Logger().Info("done", "metrics", metrics.ExportMetrics())

	if err := cli.ReportMetrics(fs, reg); err != nil {
		cli.Fatal("metrics", err)
	}
}

// neel prepares |0101...⟩.
func neel(n int) *qsim.Circuit {
	c := qsim.NewCircuit(n)
	for i := 1; i < n; i += 2 {
		c.X(i)
	}

	return c
}

/*
dimers prepares cos(θ/2)|01⟩ - sin(θ/2)|10⟩ on every pair (2k, 2k+1). θ = 0 is
the Néel state and θ = π/2 the singlet product.
*/
func dimers(n int, theta float64) *qsim.Circuit {
	c := qsim.NewCircuit(n)

	for a := 0; a+1 < n; a += 2 {
		b := a + 1
		c.RY(theta, a).X(b).CNOT(a, b).Z(a)
	}

	return c
}
