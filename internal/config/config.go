// Package config loads the simulator settings from flags, environment
// variables prefixed with HIGHWAY_ and an optional config file.
//
// Precedence is flag, then environment, then file, then default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/service/vehicle"
	"github.com/iliamunaev/highway-simulator/internal/simulation"
)

// Config is the complete runtime configuration.
type Config struct {
	Workers         int
	MaxFuel         float64
	StepDistance    int64
	ConsumptionRate float64
	TickInterval    time.Duration
	UnsyncDelay     time.Duration
	StopTimeout     time.Duration
	Mode            counter.Mode

	HTTPAddress    string
	RequestTimeout time.Duration

	LogLevel string
	LogJSON  bool

	CompareDuration time.Duration
}

// Simulation returns the orchestrator configuration.
func (c Config) Simulation() simulation.Config {
	return simulation.Config{
		Workers: c.Workers,
		Vehicle: vehicle.Config{
			MaxFuel:         c.MaxFuel,
			StepDistance:    c.StepDistance,
			ConsumptionRate: c.ConsumptionRate,
			TickInterval:    c.TickInterval,
		},
		StopTimeout: c.StopTimeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers", 3)
	v.SetDefault("max_fuel", 20.0)
	v.SetDefault("step_distance", 1)
	v.SetDefault("consumption_rate", 0.5)
	v.SetDefault("tick_interval", time.Second)
	v.SetDefault("unsync_delay", time.Millisecond)
	v.SetDefault("stop_timeout", time.Second)
	v.SetDefault("mode", counter.Unsynchronized.String())
	v.SetDefault("http_address", ":8080")
	v.SetDefault("request_timeout", 2*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("compare_duration", 10*time.Second)
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a config file (yaml, toml or json)")
	fs.IntP("workers", "w", 3, "number of vehicle workers")
	fs.Float64("max-fuel", 20, "fuel capacity of every vehicle")
	fs.Int64("step-distance", 1, "distance added per tick")
	fs.Float64("consumption-rate", 0.5, "fuel burned per tick")
	fs.Duration("tick-interval", time.Second, "pause between vehicle steps")
	fs.Duration("unsync-delay", time.Millisecond, "pause between read and write of the unsynchronized counter")
	fs.Duration("stop-timeout", time.Second, "how long to wait for each worker to exit")
	fs.StringP("mode", "m", counter.Unsynchronized.String(), "counter mode: unsynchronized or synchronized")
	fs.String("http-address", ":8080", "address of the control API")
	fs.Duration("request-timeout", 2*time.Second, "upper bound for blocking API requests")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-json", false, "log in JSON")
	fs.Duration("compare-duration", 10*time.Second, "how long each mode runs in a comparison")
	return fs
}

// Load parses args and merges them with the environment and the optional
// config file. A help request returns pflag.ErrHelp.
func Load(name string, args []string) (Config, error) {
	fs := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %w", apperr.ErrInvalidConfig, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("highway")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// Flags are registered with dashes, keys use underscores.
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %w", apperr.ErrInvalidConfig, path, err)
		}
	}

	mode, err := counter.ParseMode(v.GetString("mode"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", apperr.ErrInvalidConfig, err)
	}

	cfg := Config{
		Workers:         v.GetInt("workers"),
		MaxFuel:         v.GetFloat64("max_fuel"),
		StepDistance:    v.GetInt64("step_distance"),
		ConsumptionRate: v.GetFloat64("consumption_rate"),
		TickInterval:    v.GetDuration("tick_interval"),
		UnsyncDelay:     v.GetDuration("unsync_delay"),
		StopTimeout:     v.GetDuration("stop_timeout"),
		Mode:            mode,
		HTTPAddress:     v.GetString("http_address"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		LogLevel:        v.GetString("log_level"),
		LogJSON:         v.GetBool("log_json"),
		CompareDuration: v.GetDuration("compare_duration"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that the simulation packages do not.
func (c Config) Validate() error {
	if err := c.Simulation().Validate(); err != nil {
		return err
	}
	switch {
	case c.UnsyncDelay < 0:
		return fmt.Errorf("unsync delay %v must not be negative: %w", c.UnsyncDelay, apperr.ErrInvalidConfig)
	case c.StopTimeout <= 0:
		return fmt.Errorf("stop timeout %v must be positive: %w", c.StopTimeout, apperr.ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request timeout %v must be positive: %w", c.RequestTimeout, apperr.ErrInvalidConfig)
	case c.CompareDuration <= 0:
		return fmt.Errorf("compare duration %v must be positive: %w", c.CompareDuration, apperr.ErrInvalidConfig)
	}
	return nil
}
