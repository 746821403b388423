package qsim

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tolerances used when a Config does not override them.
const (
	// NormTolerance bounds |Σ|a|² - 1| after any operation.
	NormTolerance = 1e-6
	// UnitaryTolerance bounds every entry of U·U† - I for custom matrices.
	UnitaryTolerance = 1e-10
)

// Backend selection modes.
const (
	BackendAuto   = "auto"
	BackendHost   = "host"
	BackendDevice = "device"
)

/*
Config carries every tunable of the engine. Build it with NewConfig or
LoadConfig; the zero value is not valid.
*/
type Config struct {
	// Backend is auto, host or device.
	Backend string
	// Workers bounds the host pool; 0 means one per logical CPU.
	Workers int
	// ChunkSize is the number of index groups per unit of host work.
	ChunkSize int
	// ParallelThreshold is the register size from which the host backend
	// fans out to the pool instead of running inline.
	ParallelThreshold int
	// DeviceDriver names a registered device driver.
	DeviceDriver string
	// DeviceOrdinal selects a device of that driver.
	DeviceOrdinal int
	// NormTolerance is the numerical-instability threshold.
	NormTolerance float64
	// ProbeMaxFailures and ProbeResetTimeout configure how long auto
	// selection stops probing a device after repeated failures.
	ProbeMaxFailures  int
	ProbeResetTimeout time.Duration
	LogLevel          string
	LogFormat         string
}

// NewConfig returns the defaults: auto backend on the cuda driver, and a pooled
// host from 10 qubits up.
func NewConfig() *Config {
	return &Config{
		Backend:           BackendAuto,
		Workers:           0,
		ChunkSize:         1024,
		ParallelThreshold: 10,
		DeviceDriver:      "cuda",
		DeviceOrdinal:     0,
		NormTolerance:     NormTolerance,
		ProbeMaxFailures:  3,
		ProbeResetTimeout: time.Minute,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

/*
NewViper returns a viper instance with every key defaulted and environment
overrides enabled (QSIM_BACKEND, QSIM_DEVICE_DRIVER, ...).
*/
func NewViper() *viper.Viper {
	v := viper.New()
	d := NewConfig()

	v.SetDefault("backend", d.Backend)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("parallel_threshold", d.ParallelThreshold)
	v.SetDefault("device.driver", d.DeviceDriver)
	v.SetDefault("device.ordinal", d.DeviceOrdinal)
	v.SetDefault("norm_tolerance", d.NormTolerance)
	v.SetDefault("probe.max_failures", d.ProbeMaxFailures)
	v.SetDefault("probe.reset_timeout", d.ProbeResetTimeout)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)

	v.SetEnvPrefix("qsim")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

/*
LoadConfig reads an optional config file (any format viper understands) on
top of the defaults and environment. An empty path skips the file.
*/
func LoadConfig(path string) (*Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	return ConfigFromViper(v)
}

// ConfigFromViper decodes and validates a Config.
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Backend:           strings.ToLower(v.GetString("backend")),
		Workers:           v.GetInt("workers"),
		ChunkSize:         v.GetInt("chunk_size"),
		ParallelThreshold: v.GetInt("parallel_threshold"),
		DeviceDriver:      v.GetString("device.driver"),
		DeviceOrdinal:     v.GetInt("device.ordinal"),
		NormTolerance:     v.GetFloat64("norm_tolerance"),
		ProbeMaxFailures:  v.GetInt("probe.max_failures"),
		ProbeResetTimeout: v.GetDuration("probe.reset_timeout"),
		LogLevel:          v.GetString("log.level"),
		LogFormat:         v.GetString("log.format"),
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendHost, BackendDevice:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be > 0, got %d", c.ChunkSize)
	}

	if c.NormTolerance <= 0 || c.NormTolerance >= 1 {
		return fmt.Errorf("config: norm_tolerance must be in (0, 1), got %g", c.NormTolerance)
	}

	return nil
}
