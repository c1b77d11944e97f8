package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/matchflow/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"MATCHFLOW_CONFIG",
	"MATCHFLOW_ADDR",
	"MATCHFLOW_QUEUE_SIZE",
	"MATCHFLOW_WORKER_COUNT",
	"MATCHFLOW_DEDUPE_SIZE",
	"MATCHFLOW_JOB_TIMEOUT_MS",
	"MATCHFLOW_ALGORITHM",
	"MATCHFLOW_STORE_DSN",
	"MATCHFLOW_LOG_LEVEL",
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should match New()", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("MATCHFLOW_ADDR", ":8080")
			t.Setenv("MATCHFLOW_QUEUE_SIZE", "64")
			t.Setenv("MATCHFLOW_WORKER_COUNT", "3")
			t.Setenv("MATCHFLOW_JOB_TIMEOUT_MS", "1500")
			t.Setenv("MATCHFLOW_ALGORITHM", "cycle-canceling")
			t.Setenv("MATCHFLOW_STORE_DSN", "postgres://localhost/matchflow")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.JobTimeoutMS, convey.ShouldEqual, 1500)
				convey.So(cfg.Algorithm, convey.ShouldEqual, "cycle-canceling")
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "postgres://localhost/matchflow")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
# matchflow test config
addr: ":7070"
worker_count: 2
log_format: json
balancing_targets:
  waiting_time_bonus: 0.5
  subject_overlap: 0.5
`)
			t.Setenv("MATCHFLOW_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and the rest keep defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1_024)
			})

			convey.Convey("Then the balancing map replaces the defaults whole", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BalancingTargets, convey.ShouldResemble, map[string]float64{
					"waiting_time_bonus": 0.5,
					"subject_overlap":    0.5,
				})
			})

			convey.Convey("Then environment variables override file values", func() {
				t.Setenv("MATCHFLOW_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			t.Setenv("MATCHFLOW_CONFIG", writeConfigFile(t, "addr: [unterminated"))
			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file does not exist", func() {
			t.Setenv("MATCHFLOW_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a numeric env var does not parse", func() {
			t.Setenv("MATCHFLOW_QUEUE_SIZE", "lots")
			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the addr is emptied by the file", func() {
			t.Setenv("MATCHFLOW_CONFIG", writeConfigFile(t, `addr: ""`))
			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file names an unknown balancing component", func() {
			t.Setenv("MATCHFLOW_CONFIG", writeConfigFile(t, "balancing_targets:\n  charisma: 1\n"))
			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the algorithm is unknown", func() {
			t.Setenv("MATCHFLOW_ALGORITHM", "simplex")
			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// clearConfigEnvVars unsets inherited variables for the duration of t.
func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, name := range configEnvVars {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
