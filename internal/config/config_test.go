package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/staffmatch/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.ShardCount, convey.ShouldEqual, 32)
			convey.So(cfg.CacheBackend, convey.ShouldEqual, config.CacheMemory)
			convey.So(cfg.SourceKind, convey.ShouldEqual, config.SourceHTTP)
			convey.So(cfg.SourceTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":            func(c *config.Config) { c.Addr = " " },
			"zero workers":          func(c *config.Config) { c.WorkerCount = 0 },
			"zero shards":           func(c *config.Config) { c.ShardCount = 0 },
			"zero timeout":          func(c *config.Config) { c.SourceTimeoutMS = 0 },
			"negative retries":      func(c *config.Config) { c.SourceRetries = -1 },
			"unknown log format":    func(c *config.Config) { c.LogFormat = "xml" },
			"unknown cache":         func(c *config.Config) { c.CacheBackend = "redis" },
			"postgres without dsn":  func(c *config.Config) { c.CacheBackend = config.CachePostgres },
			"unknown source":        func(c *config.Config) { c.SourceKind = "grpc" },
			"relative base url":     func(c *config.Config) { c.SourceBaseURL = "scheduling.local" },
			"file without fixtures": func(c *config.Config) { c.SourceKind = config.SourceFile },
		}

		for name, mutate := range cases {
			convey.Convey("Then "+name+" is rejected", func() {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
