// Command bell composes Bell and GHZ circuits and samples them.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/theapemachine/qsim"
	"github.com/theapemachine/qsim/internal/cli"
)

func main() {
	fs := cli.NewFlagSet("bell")
	shots := fs.Int("shots", 1000, "number of shots")
	qubits := fs.Int("qubits", 3, "GHZ register size")

	cfg, seed, err := cli.Load(fs, os.Args[1:])
	if err != nil {
		cli.Fatal("configuration", err)
	}

	metrics, reg := cli.Metrics()
	ctx := context.Background()

	pair := qsim.NewCircuit(2).H(0).CNOT(0, 1)

	counts, err := qsim.RunShots(ctx, qsim.NewCircuit(2).Append(pair).Measure(), cfg, *shots, seed, qsim.WithMetrics(metrics))
	if err != nil {
		cli.Fatal("bell shots", err)
	}
	report("Bell |Φ+⟩", counts)

	// Correlations survive a change of basis: both qubits agree in X too.
	counts, err = qsim.RunShots(ctx, qsim.NewCircuit(2).Append(pair).MeasureIn(qsim.BasisX), cfg, *shots, seed, qsim.WithMetrics(metrics))
	if err != nil {
		cli.Fatal("bell shots in X", err)
	}
	report("Bell |Φ+⟩ in X", counts)

	ghz := qsim.NewCircuit(*qubits).H(0)
	for q := 1; q < *qubits; q++ {
		ghz.CNOT(q-1, q)
	}

	if err := ghz.Err(); err != nil {
		cli.Fatal("building GHZ", err)
	}

	states, err := qsim.Trace(ctx, ghz, cfg, qsim.WithMetrics(metrics))
	if err != nil {
		cli.Fatal("tracing GHZ", err)
	}

	for i, s := range states {
		step := "initial"
		if i > 0 {
			step = ghz.Instructions()[i-1].String()
		}
		fmt.Printf("%-14s %s\n", step, s)
	}

	counts, err = qsim.RunShots(ctx, ghz, cfg, *shots, seed, qsim.WithMetrics(metrics))
	if err != nil {
		cli.Fatal("GHZ shots", err)
	}
	report(fmt.Sprintf("GHZ(%d)", *qubits), counts)

	qsim.Logger().Info("done", "metrics", metrics.ExportMetrics())

	if err := cli.ReportMetrics(fs, reg); err != nil {
		cli.Fatal("metrics", err)
	}
}

func report(label string, counts qsim.Counts) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(label)

	for _, k := range keys {
		fmt.Printf("  %s  %5d  %.3f\n", k, counts[k], float64(counts[k])/float64(counts.Total()))
	}
}
