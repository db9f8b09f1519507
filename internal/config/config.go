package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/telinsights/telrun/internal/logger"
	"github.com/telinsights/telrun/internal/service"
)

// SupervisorConfig tunes process lifecycle handling.
type SupervisorConfig struct {
	Stagger     time.Duration `mapstructure:"stagger"`      // delay between successive launches
	StopTimeout time.Duration `mapstructure:"stop_timeout"` // graceful wait before SIGKILL
	KillGrace   time.Duration `mapstructure:"kill_grace"`   // reap window after SIGKILL
}

// HealthConfig tunes the readiness polling loop.
type HealthConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	Threshold    int           `mapstructure:"threshold"` // consecutive failures before Unhealthy
}

// ServerConfig configures the loopback control API.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// JournalConfig configures the per-run event journal.
type JournalConfig struct {
	DSN string `mapstructure:"dsn"` // sqlite path; ":memory:" keeps the run ephemeral
}

// RuntimeConfig describes the worker runtime used by preflight checks.
type RuntimeConfig struct {
	Interpreter string `mapstructure:"interpreter"`
	MinVersion  string `mapstructure:"min_version"`
}

// Config is the top-level telrun.toml structure.
type Config struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Health     HealthConfig     `mapstructure:"health"`
	Server     ServerConfig     `mapstructure:"server"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Log        logger.Config    `mapstructure:"log"`
	Capture    logger.Capture   `mapstructure:"capture"`
	Services   []service.Config `mapstructure:"services"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Supervisor: SupervisorConfig{
			Stagger:     2 * time.Second,
			StopTimeout: 10 * time.Second,
			KillGrace:   500 * time.Millisecond,
		},
		Health: HealthConfig{
			Interval:     time.Second,
			ProbeTimeout: 2 * time.Second,
			Threshold:    3,
		},
		Server: ServerConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8090",
		},
		Journal: JournalConfig{DSN: ":memory:"},
		Runtime: RuntimeConfig{Interpreter: "python3", MinVersion: "3.9"},
		Log:     logger.Config{Level: "info", Color: true},
	}
}

// Load reads telrun.toml from path. An empty path falls back to
// <root>/telrun.toml; a missing file yields the defaults.
func Load(path string, r *Resolver) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = filepath.Join(r.Root(), "telrun.toml")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &nf) || os.IsNotExist(err)) {
			cfg.Capture.Dir = r.LogDir()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Capture.Dir == "" {
		cfg.Capture.Dir = r.LogDir()
	}
	for i := range cfg.Services {
		if cfg.Services[i].Name == "" {
			return cfg, fmt.Errorf("config %s: services[%d] missing name", path, i)
		}
	}
	return cfg, nil
}
