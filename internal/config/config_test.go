package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shederrors "github.com/maxkimambo/shed/internal/errors"
	"github.com/maxkimambo/shed/internal/shed"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  max_tasks: 256
  max_dependencies: 512
  channels: 3
workers:
  per_channel: [4, 2]
  idle_backoff_max: 10ms
run:
  frames: 60
  frame_timeout: 2s
`)
	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, uint32(256), cfg.Scheduler.MaxTasks)
	assert.Equal(t, uint32(512), cfg.Scheduler.MaxDependencies)
	assert.Equal(t, uint8(3), cfg.ChannelCount())
	assert.Equal(t, []int{4, 2, 1}, cfg.WorkerCounts())
	assert.Equal(t, 10*time.Millisecond, cfg.Workers.IdleBackoffMax)
	assert.Equal(t, 50*time.Microsecond, cfg.Workers.IdleBackoffInitial, "unset keys keep defaults")
	assert.Equal(t, 60, cfg.Run.Frames)
	assert.Equal(t, 2*time.Second, cfg.Run.FrameTimeout)
	assert.Equal(t, shed.RequiredSize(256, 512, 3), cfg.RequiredBytes())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  max_tasks: 256\n")
	t.Setenv("SHED_SCHEDULER_MAX_TASKS", "64")
	t.Setenv("SHED_RUN_FRAMES", "5")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), cfg.Scheduler.MaxTasks)
	assert.Equal(t, 5, cfg.Run.Frames)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, "CONFIGURATION-001", shederrors.GetErrorCode(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"zero tasks", func(c *Config) { c.Scheduler.MaxTasks = 0 }, "CONFIGURATION-002"},
		{"too many tasks", func(c *Config) { c.Scheduler.MaxTasks = shed.MaxCapacity + 1 }, "CONFIGURATION-002"},
		{"too many dependencies", func(c *Config) { c.Scheduler.MaxDependencies = shed.MaxCapacity + 1 }, "CONFIGURATION-002"},
		{"zero channels", func(c *Config) { c.Scheduler.Channels = 0 }, "CONFIGURATION-004"},
		{"too many channels", func(c *Config) { c.Scheduler.Channels = 256 }, "CONFIGURATION-004"},
		{"workers for missing channel", func(c *Config) { c.Workers.PerChannel = []int{1, 1} }, "CONFIGURATION-003"},
		{"channel without workers", func(c *Config) { c.Workers.PerChannel = []int{0} }, "CONFIGURATION-003"},
		{"inverted backoff", func(c *Config) { c.Workers.IdleBackoffMax = time.Microsecond }, "CONFIGURATION-003"},
		{"zero frames", func(c *Config) { c.Run.Frames = 0 }, "VALIDATION-001"},
		{"zero in flight", func(c *Config) { c.Run.MaxInFlight = 0 }, "VALIDATION-001"},
		{"zero timeout", func(c *Config) { c.Run.FrameTimeout = 0 }, "VALIDATION-001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantCode, shederrors.GetErrorCode(errs[0]))
		})
	}

	assert.Empty(t, Default().Validate())
}

func TestValidationErrorsCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxTasks = 0
	cfg.Run.Frames = 0

	errs := cfg.Validate()
	require.Len(t, errs, 2)
	assert.Contains(t, errs.Error(), "2 validation errors:")

	var shedErr *shederrors.ShedError
	assert.True(t, errors.As(error(errs), &shedErr))
}
