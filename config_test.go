package qsim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewConfig(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := NewConfig()

		So(cfg.Backend, ShouldEqual, BackendAuto)
		So(cfg.ChunkSize, ShouldEqual, 1024)
		So(cfg.ParallelThreshold, ShouldEqual, 10)
		So(cfg.NormTolerance, ShouldEqual, NormTolerance)
		So(cfg.Validate(), ShouldBeNil)
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("Given a config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "qsim.yaml")

		So(os.WriteFile(path, []byte(`
backend: host
workers: 3
chunk_size: 64
device:
  driver: emulated
probe:
  reset_timeout: 5s
log:
  level: debug
`), 0o600), ShouldBeNil)

		Convey("It should override the defaults", func() {
			cfg, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(cfg.Backend, ShouldEqual, BackendHost)
			So(cfg.Workers, ShouldEqual, 3)
			So(cfg.ChunkSize, ShouldEqual, 64)
			So(cfg.DeviceDriver, ShouldEqual, "emulated")
			So(cfg.ProbeResetTimeout, ShouldEqual, 5*time.Second)
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.ParallelThreshold, ShouldEqual, 10)
		})

		Convey("The environment should override the file", func() {
			t.Setenv("QSIM_BACKEND", "device")
			t.Setenv("QSIM_DEVICE_ORDINAL", "2")

			cfg, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(cfg.Backend, ShouldEqual, BackendDevice)
			So(cfg.DeviceOrdinal, ShouldEqual, 2)
		})

		Convey("A missing file should be an error", func() {
			_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given invalid settings", t, func() {
		cfg := NewConfig()

		Convey("An unknown backend should be rejected", func() {
			cfg.Backend = "quantum"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("A non-positive chunk size should be rejected", func() {
			cfg.ChunkSize = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("A negative worker count should be rejected", func() {
			cfg.Workers = -1
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("A tolerance outside (0, 1) should be rejected", func() {
			cfg.NormTolerance = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}
