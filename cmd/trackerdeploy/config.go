package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/topology"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	StateDir     string        `mapstructure:"state_dir"`
	BuildDir     string        `mapstructure:"build_dir"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	Log          LogConfig     `mapstructure:"log"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("state_dir", "./data/state")
	v.SetDefault("build_dir", "./data/build")
	v.SetDefault("ready_timeout", "5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// An explicitly named file must exist; defaults only apply when no
	// file was requested.
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("TRACKERDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Environment Inputs Loading
// =============================================================================

// LoadInputs reads the user inputs for a new environment from a YAML file.
// Missing fields fall back to the standard development setup: SSH port 22,
// the OpenTofu/LXD provider, and the full service set.
func LoadInputs(path string) (environment.UserInputs, error) {
	v := viper.New()

	v.SetDefault("ssh.port", 22)
	v.SetDefault("provider.kind", string(environment.ProviderTofuLXD))
	v.SetDefault("provider.profile_name", "tracker")

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return environment.UserInputs{}, fmt.Errorf("read inputs file: %w", err)
	}

	var inputs environment.UserInputs
	if err := v.Unmarshal(&inputs); err != nil {
		return environment.UserInputs{}, fmt.Errorf("parse inputs file: %w", err)
	}

	if len(inputs.Services) == 0 {
		inputs.Services = defaultServices()
	}

	return inputs, nil
}

// defaultServices declares the full tracker stack with the standard network
// layout.
func defaultServices() []topology.ServiceDeclaration {
	return []topology.ServiceDeclaration{
		{Kind: topology.ServiceTracker, Networks: []topology.Network{
			topology.NetworkDatabase, topology.NetworkMetrics, topology.NetworkProxy,
		}},
		{Kind: topology.ServiceMySQL, Networks: []topology.Network{
			topology.NetworkDatabase,
		}},
		{Kind: topology.ServicePrometheus, Networks: []topology.Network{
			topology.NetworkMetrics, topology.NetworkVisualization,
		}},
		{Kind: topology.ServiceGrafana, Networks: []topology.Network{
			topology.NetworkVisualization,
		}},
		{Kind: topology.ServiceCaddy, Networks: []topology.Network{
			topology.NetworkProxy,
		}},
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
