// Package cli wires command-line flags of the example programs into the
// engine configuration.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
	"github.com/theapemachine/qsim"
)

// NewFlagSet declares the flags shared by every example program.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)

	fs.String("config", "", "optional config file (yaml, toml or json)")
	fs.String("backend", qsim.BackendAuto, "execution backend: auto, host or device")
	fs.String("device.driver", "cuda", "device driver used by the device and auto backends")
	fs.Int("device.ordinal", 0, "device ordinal")
	fs.Int("workers", 0, "host worker count, 0 for one per logical CPU")
	fs.String("log.level", "info", "log level: debug, info, warn or error")
	fs.Uint64("seed", 1, "measurement seed")
	fs.String("metrics", "", "write prometheus metrics to this file on exit, - for stdout")

	return fs
}

/*
Load parses args into fs and resolves the configuration. Flags that were set
explicitly win over the environment, which wins over the config file.
*/
func Load(fs *pflag.FlagSet, args []string) (*qsim.Config, uint64, error) {
	if err := fs.Parse(args); err != nil {
		return nil, 0, err
	}

	v := qsim.NewViper()

	if err := v.BindPFlags(fs); err != nil {
		return nil, 0, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, 0, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg, err := qsim.ConfigFromViper(v)
	if err != nil {
		return nil, 0, err
	}

	return cfg, v.GetUint64("seed"), nil
}

// Metrics returns engine metrics registered on a private registry.
func Metrics() (*qsim.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return qsim.NewMetrics(reg), reg
}

// WriteMetrics writes everything g gathers in the prometheus text format.
func WriteMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}

	return nil
}

/*
ReportMetrics honours the --metrics flag: nothing when it is empty, stdout
for "-", otherwise the named file.
*/
func ReportMetrics(fs *pflag.FlagSet, g prometheus.Gatherer) error {
	path, err := fs.GetString("metrics")
	if err != nil || path == "" {
		return err
	}

	if path == "-" {
		return WriteMetrics(os.Stdout, g)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteMetrics(f, g); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Fatal logs err and exits.
func Fatal(msg string, err error) {
	qsim.Logger().Fatal(msg, "err", err)
}
