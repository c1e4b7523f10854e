// Package config binds command engine policies from files, environment
// variables, and .env overrides onto the exported policy structs, the
// concrete implementation behind the "contract only" configuration
// boundary the engine itself does not depend on.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	command "github.com/JohnPlummer/jp-go-command"
)

// CommandConfig is the dotted-key shape one command's policies are
// loaded from, e.g. "commands.pricing-service.retry.maxAttempts".
type CommandConfig struct {
	Execution ExecutionConfig `mapstructure:"execution"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// ExecutionConfig mirrors command.ExecutionPolicy's file-configurable
// fields.
type ExecutionConfig struct {
	PerAttemptTimeoutMS int  `mapstructure:"perAttemptTimeoutMs"`
	ThreadPool          bool `mapstructure:"threadPool"`
	FallbackEnabled     bool `mapstructure:"fallbackEnabled"`
}

// BreakerConfig mirrors command.BreakerPolicy's file-configurable fields.
type BreakerConfig struct {
	Enabled               bool    `mapstructure:"enabled"`
	ErrorThresholdPercent float64 `mapstructure:"errorThresholdPercent"`
	RollingWindowMS       int     `mapstructure:"rollingWindowMs"`
	BucketCount           int     `mapstructure:"bucketCount"`
	MinRequestVolume      int     `mapstructure:"minRequestVolume"`
	SleepWindowMS         int     `mapstructure:"sleepWindowMs"`
	ForcedOpen            bool    `mapstructure:"forcedOpen"`
	ForcedClosed          bool    `mapstructure:"forcedClosed"`
}

// PoolConfig mirrors command.PoolPolicy's file-configurable fields.
type PoolConfig struct {
	MaxConcurrency          int     `mapstructure:"maxConcurrency"`
	MaxQueuedRequests       int     `mapstructure:"maxQueuedRequests"`
	QueueRejectionThreshold int     `mapstructure:"queueRejectionThreshold"`
	SmoothingRatePerSecond  float64 `mapstructure:"smoothingRatePerSecond"`
}

// RetryConfig mirrors command.RetryPolicy's file-configurable fields.
type RetryConfig struct {
	MaxAttempts    int     `mapstructure:"maxAttempts"`
	Strategy       string  `mapstructure:"strategy"`
	InitialDelayMS int     `mapstructure:"initialDelayMs"`
	MaxDelayMS     int     `mapstructure:"maxDelayMs"`
	Multiplier     float64 `mapstructure:"multiplier"`
}

// Loader loads per-command configuration via viper, with .env overrides
// applied ahead of it, matching the layering environment-driven Go
// services in this stack use: .env for local/dev overrides, a base file
// for defaults, and environment variables taking final precedence.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader. configPath, if non-empty, is passed to
// viper.SetConfigFile; envFile, if non-empty, is loaded via godotenv
// before viper reads the environment, so .env values are visible to
// viper's AutomaticEnv binding.
func NewLoader(configPath, envFile string) (*Loader, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: loading env file %q: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetEnvPrefix("COMMAND")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading config file %q: %w", configPath, err)
		}
	}

	return &Loader{v: v}, nil
}

// CommandPolicies binds the four policy structs for one command name from
// the "commands.<name>" section, falling back to the passed-in defaults
// for any field left unset in the source.
func (l *Loader) CommandPolicies(name string, defaults struct {
	Execution command.ExecutionPolicy
	Breaker   command.BreakerPolicy
	Pool      command.PoolPolicy
	Retry     command.RetryPolicy
}) (command.ExecutionPolicy, command.BreakerPolicy, command.PoolPolicy, command.RetryPolicy, error) {
	var cfg CommandConfig
	key := "commands." + name
	if l.v.IsSet(key) {
		if err := l.v.UnmarshalKey(key, &cfg); err != nil {
			return command.ExecutionPolicy{}, command.BreakerPolicy{}, command.PoolPolicy{}, command.RetryPolicy{}, fmt.Errorf("config: unmarshalling %q: %w", key, err)
		}
	}

	execution := defaults.Execution
	if cfg.Execution.PerAttemptTimeoutMS > 0 {
		execution.PerAttemptTimeout = time.Duration(cfg.Execution.PerAttemptTimeoutMS) * time.Millisecond
	}
	if cfg.Execution.ThreadPool {
		execution.Isolation = command.IsolationThreadPool
	}
	execution.FallbackEnabled = cfg.Execution.FallbackEnabled || defaults.Execution.FallbackEnabled

	breaker := defaults.Breaker
	if cfg.Breaker.ErrorThresholdPercent > 0 {
		breaker.ErrorThresholdPercent = cfg.Breaker.ErrorThresholdPercent
	}
	if cfg.Breaker.RollingWindowMS > 0 {
		breaker.RollingWindow = time.Duration(cfg.Breaker.RollingWindowMS) * time.Millisecond
	}
	if cfg.Breaker.BucketCount > 0 {
		breaker.BucketCount = cfg.Breaker.BucketCount
	}
	if cfg.Breaker.MinRequestVolume > 0 {
		breaker.MinRequestVolume = uint32(cfg.Breaker.MinRequestVolume)
	}
	if cfg.Breaker.SleepWindowMS > 0 {
		breaker.SleepWindow = time.Duration(cfg.Breaker.SleepWindowMS) * time.Millisecond
	}
	if l.v.IsSet(key + ".breaker.enabled") {
		breaker.Enabled = cfg.Breaker.Enabled
	}
	if l.v.IsSet(key + ".breaker.forcedOpen") {
		breaker.ForcedOpen = cfg.Breaker.ForcedOpen
	}
	if l.v.IsSet(key + ".breaker.forcedClosed") {
		breaker.ForcedClosed = cfg.Breaker.ForcedClosed
	}

	pool := defaults.Pool
	if cfg.Pool.MaxConcurrency > 0 {
		pool.MaxConcurrency = cfg.Pool.MaxConcurrency
	}
	if cfg.Pool.MaxQueuedRequests > 0 {
		pool.MaxQueuedRequests = cfg.Pool.MaxQueuedRequests
	}
	if cfg.Pool.QueueRejectionThreshold > 0 {
		pool.QueueRejectionThreshold = cfg.Pool.QueueRejectionThreshold
	}
	if cfg.Pool.SmoothingRatePerSecond > 0 {
		pool.SmoothingRatePerSecond = cfg.Pool.SmoothingRatePerSecond
	}

	retry := defaults.Retry
	if cfg.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.Strategy != "" {
		retry.Strategy = command.BackoffStrategy(cfg.Retry.Strategy)
	}
	if cfg.Retry.InitialDelayMS > 0 {
		retry.InitialDelay = time.Duration(cfg.Retry.InitialDelayMS) * time.Millisecond
	}
	if cfg.Retry.MaxDelayMS > 0 {
		retry.MaxDelay = time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond
	}
	if cfg.Retry.Multiplier > 0 {
		retry.Multiplier = cfg.Retry.Multiplier
	}

	return execution, breaker, pool, retry, nil
}

// WatchConfig re-reads the underlying file on change and invokes onChange
// afterward. Uses viper's fsnotify-backed watcher.
func (l *Loader) WatchConfig(onChange func()) {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		if onChange != nil {
			onChange()
		}
	})
	l.v.WatchConfig()
}
