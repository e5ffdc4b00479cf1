// Package config loads scheduler, worker and run settings from defaults, an
// optional YAML file and SHED_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	shederrors "github.com/maxkimambo/shed/internal/errors"
	"github.com/maxkimambo/shed/internal/shed"
)

// EnvPrefix prefixes every environment override, e.g. SHED_SCHEDULER_MAX_TASKS.
const EnvPrefix = "SHED"

// Config is the complete runtime configuration.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Run       RunConfig       `mapstructure:"run"`
}

// SchedulerConfig sizes the scheduler memory block.
type SchedulerConfig struct {
	MaxTasks        uint32 `mapstructure:"max_tasks"`
	MaxDependencies uint32 `mapstructure:"max_dependencies"`
	Channels        int    `mapstructure:"channels"`
}

// WorkersConfig controls the worker pool draining the ready queues.
type WorkersConfig struct {
	// PerChannel lists the worker count of each channel. Channels past the
	// end of the list get one worker.
	PerChannel []int `mapstructure:"per_channel"`
	// IdleBackoffInitial and IdleBackoffMax bound how long an idle worker
	// sleeps between polls when no wake-up arrives.
	IdleBackoffInitial time.Duration `mapstructure:"idle_backoff_initial"`
	IdleBackoffMax     time.Duration `mapstructure:"idle_backoff_max"`
}

// RunConfig controls plan execution.
type RunConfig struct {
	Frames int `mapstructure:"frames"`
	// MaxInFlight is how many frames may be submitted before the oldest
	// one finishes.
	MaxInFlight      int           `mapstructure:"max_in_flight"`
	FrameTimeout     time.Duration `mapstructure:"frame_timeout"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxTasks:        1024,
			MaxDependencies: 4096,
			Channels:        1,
		},
		Workers: WorkersConfig{
			PerChannel:         []int{4},
			IdleBackoffInitial: 50 * time.Microsecond,
			IdleBackoffMax:     5 * time.Millisecond,
		},
		Run: RunConfig{
			Frames:           1,
			MaxInFlight:      2,
			FrameTimeout:     30 * time.Second,
			ProgressInterval: time.Second,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("scheduler.max_tasks", d.Scheduler.MaxTasks)
	v.SetDefault("scheduler.max_dependencies", d.Scheduler.MaxDependencies)
	v.SetDefault("scheduler.channels", d.Scheduler.Channels)
	v.SetDefault("workers.per_channel", d.Workers.PerChannel)
	v.SetDefault("workers.idle_backoff_initial", d.Workers.IdleBackoffInitial)
	v.SetDefault("workers.idle_backoff_max", d.Workers.IdleBackoffMax)
	v.SetDefault("run.frames", d.Run.Frames)
	v.SetDefault("run.max_in_flight", d.Run.MaxInFlight)
	v.SetDefault("run.frame_timeout", d.Run.FrameTimeout)
	v.SetDefault("run.progress_interval", d.Run.ProgressInterval)
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind command flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if not empty) into v and returns the validated result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, shederrors.NewConfigLoadError(path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, shederrors.NewConfigLoadError(path, err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []error

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, shederrors.DisplayErrorSummary(err)))
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	return e
}

// Validate checks every field and returns all problems found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Scheduler.MaxTasks == 0 || c.Scheduler.MaxTasks > shed.MaxCapacity {
		errs = append(errs, shederrors.NewCapacityConfigError("scheduler.max_tasks", uint64(c.Scheduler.MaxTasks), uint64(shed.MaxCapacity)))
	}
	if c.Scheduler.MaxDependencies > shed.MaxCapacity {
		errs = append(errs, shederrors.NewCapacityConfigError("scheduler.max_dependencies", uint64(c.Scheduler.MaxDependencies), uint64(shed.MaxCapacity)))
	}
	if c.Scheduler.Channels < 1 || c.Scheduler.Channels > 255 {
		errs = append(errs, shederrors.NewChannelConfigError(c.Scheduler.Channels))
	}
	if len(c.Workers.PerChannel) > c.Scheduler.Channels && c.Scheduler.Channels >= 1 {
		errs = append(errs, shederrors.NewWorkerConfigError(
			fmt.Sprintf("workers.per_channel lists %d channels but scheduler.channels is %d", len(c.Workers.PerChannel), c.Scheduler.Channels)))
	}
	for ch, n := range c.Workers.PerChannel {
		if n < 1 {
			errs = append(errs, shederrors.NewWorkerConfigError(fmt.Sprintf("channel %d has %d workers", ch, n)))
		}
	}
	if c.Workers.IdleBackoffInitial <= 0 || c.Workers.IdleBackoffMax < c.Workers.IdleBackoffInitial {
		errs = append(errs, shederrors.NewWorkerConfigError("workers.idle_backoff_initial must be positive and not above workers.idle_backoff_max"))
	}
	if c.Run.Frames < 1 {
		errs = append(errs, shederrors.NewValidationError(shederrors.CodeValidationInput,
			fmt.Sprintf("run.frames must be at least 1, got %d", c.Run.Frames), "Configuration validation"))
	}
	if c.Run.MaxInFlight < 1 {
		errs = append(errs, shederrors.NewValidationError(shederrors.CodeValidationInput,
			fmt.Sprintf("run.max_in_flight must be at least 1, got %d", c.Run.MaxInFlight), "Configuration validation"))
	}
	if c.Run.FrameTimeout <= 0 {
		errs = append(errs, shederrors.NewValidationError(shederrors.CodeValidationInput,
			"run.frame_timeout must be positive", "Configuration validation"))
	}
	return errs
}

// ChannelCount returns the channel count as the scheduler expects it.
// Only meaningful after Validate succeeded.
func (c *Config) ChannelCount() uint8 {
	return uint8(c.Scheduler.Channels)
}

// WorkerCounts returns one worker count per scheduler channel.
func (c *Config) WorkerCounts() []int {
	counts := make([]int, c.Scheduler.Channels)
	for ch := range counts {
		counts[ch] = 1
		if ch < len(c.Workers.PerChannel) {
			counts[ch] = c.Workers.PerChannel[ch]
		}
	}
	return counts
}

// RequiredBytes returns the scheduler memory block size this config needs.
func (c *Config) RequiredBytes() int {
	return shed.RequiredSize(c.Scheduler.MaxTasks, c.Scheduler.MaxDependencies, c.ChannelCount())
}
