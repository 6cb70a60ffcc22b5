package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/oppsuggest/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.MinScoreThreshold, convey.ShouldEqual, 0.25)
			convey.So(cfg.ScoreDifferenceThreshold, convey.ShouldEqual, 0.1)
			convey.So(cfg.PrefilterEnabled, convey.ShouldBeFalse)
			convey.So(cfg.PrefilterMinScore, convey.ShouldEqual, 0.5)
			convey.So(cfg.Strategy, convey.ShouldEqual, "deterministic")
			convey.So(cfg.DefaultPlatform, convey.ShouldEqual, "salesforce")
			convey.So(cfg.Lookup.Backend, convey.ShouldEqual, "csv")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestPlatformConfig_Names(t *testing.T) {
	convey.Convey("Given platform entries", t, func() {
		convey.Convey("The connector type and stage table default to the key", func() {
			p := config.PlatformConfig{}
			convey.So(p.ConnectorType("pivotal"), convey.ShouldEqual, "pivotal")
			convey.So(p.StageTableName("pivotal"), convey.ShouldEqual, "pivotal")
		})

		convey.Convey("An explicit type feeds the stage table name", func() {
			p := config.PlatformConfig{Type: "salesforce"}
			convey.So(p.ConnectorType("sf-eu"), convey.ShouldEqual, "salesforce")
			convey.So(p.StageTableName("sf-eu"), convey.ShouldEqual, "salesforce")
		})

		convey.Convey("An explicit stage table wins", func() {
			p := config.PlatformConfig{Type: "salesforce", StageTable: "general"}
			convey.So(p.StageTableName("sf-eu"), convey.ShouldEqual, "general")
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("OPPSUGGEST_ADDR", ":8080")
			_ = os.Setenv("OPPSUGGEST_QUEUE_SIZE", "512")
			_ = os.Setenv("OPPSUGGEST_WORKER_COUNT", "4")
			_ = os.Setenv("OPPSUGGEST_MIN_SCORE_THRESHOLD", "0.4")
			_ = os.Setenv("OPPSUGGEST_PREFILTER_ENABLED", "true")
			_ = os.Setenv("OPPSUGGEST_LOOKUP__DATA_DIR", "/srv/data")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 512)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.MinScoreThreshold, convey.ShouldEqual, 0.4)
				convey.So(cfg.PrefilterEnabled, convey.ShouldBeTrue)
				convey.So(cfg.Lookup.DataDir, convey.ShouldEqual, "/srv/data")
				convey.So(cfg.Lookup.Backend, convey.ShouldEqual, "csv")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
strategy: llm
default_platform: pivotal
platforms:
  pivotal:
    base_url: "https://crm.example.com"
    access_token: "tok"
    form_name: "Account"
    environment: "prod"
  sf-eu:
    type: salesforce
    base_url: "https://eu.example.com"
stage_tables:
  salesforce:
    default: 0.3
    weights:
      pending: 0.6
llm:
  speed: slow
  api_key: "k"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OPPSUGGEST_CONFIG", tmpFile)
			_ = os.Setenv("OPPSUGGEST_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values are merged and env overrides the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Strategy, convey.ShouldEqual, "llm")
				convey.So(cfg.DefaultPlatform, convey.ShouldEqual, "pivotal")
				convey.So(cfg.Platforms, convey.ShouldHaveLength, 2)
				convey.So(cfg.Platforms["pivotal"].FormName, convey.ShouldEqual, "Account")
				convey.So(cfg.Platforms["sf-eu"].ConnectorType("sf-eu"), convey.ShouldEqual, "salesforce")
				convey.So(*cfg.StageTables["salesforce"].Default, convey.ShouldEqual, 0.3)
				convey.So(cfg.StageTables["salesforce"].Weights["pending"], convey.ShouldEqual, 0.6)
				convey.So(cfg.LLM.Speed, convey.ShouldEqual, "slow")
				convey.So(cfg.LLM.APIKey, convey.ShouldEqual, "k")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OPPSUGGEST_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("OPPSUGGEST_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("OPPSUGGEST_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("An empty addr is rejected", func() {
			cfg.Addr = ""
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
		})

		convey.Convey("A zero queue size is rejected", func() {
			cfg.QueueSize = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A threshold outside [0,1] is rejected", func() {
			cfg.ScoreDifferenceThreshold = 1.5
			err := cfg.Validate()
			convey.So(err.Error(), convey.ShouldContainSubstring, "score_difference_threshold")
		})

		convey.Convey("An unknown strategy is rejected", func() {
			cfg.Strategy = "magic"
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("The sqlite backend needs a path", func() {
			cfg.Lookup.Backend = "sqlite"
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			cfg.Lookup.SQLitePath = "/tmp/lookup.db"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("A platform without a base url is rejected", func() {
			cfg.Platforms["acrm"] = config.PlatformConfig{}
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "platforms.acrm.base_url")
		})

		convey.Convey("A stage weight outside [0,1] is rejected", func() {
			cfg.StageTables["general"] = config.StageTableConfig{Weights: map[string]float64{"won": 2}}
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("Metrics need a positive refresh interval and increasing buckets", func() {
			convey.So(cfg.Metrics.Enabled, convey.ShouldBeTrue)
			cfg.Metrics.RefreshIntervalSeconds = 0
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "metrics.refresh_interval_seconds")
			cfg.Metrics.RefreshIntervalSeconds = 5
			cfg.Metrics.HistogramBuckets = []float64{10, 5}
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "metrics.histogram_buckets")
			cfg.Metrics.HistogramBuckets = []float64{5, 10}
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"OPPSUGGEST_CONFIG",
		"OPPSUGGEST_ADDR",
		"OPPSUGGEST_QUEUE_SIZE",
		"OPPSUGGEST_WORKER_COUNT",
		"OPPSUGGEST_MIN_SCORE_THRESHOLD",
		"OPPSUGGEST_PREFILTER_ENABLED",
		"OPPSUGGEST_LOOKUP__DATA_DIR",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "oppsuggest-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
