package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	API      APIConfig      `mapstructure:"api"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

type AnalyzerConfig struct {
	// LargeModuleLines overrides the large-module threshold; 0 keeps the default.
	LargeModuleLines int `mapstructure:"large_module_lines"`
	// HighCouplingDegree overrides the coupling threshold; 0 keeps the default.
	HighCouplingDegree int `mapstructure:"high_coupling_degree"`
	// SnapshotDir is where analysis snapshots are stored. Empty disables snapshots.
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
	// MaxRuns bounds the in-memory run history of the API server.
	MaxRuns int `mapstructure:"max_runs"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Analyzer.LargeModuleLines < 0 {
		warnings = append(warnings, fmt.Sprintf("analyzer large_module_lines %d is negative", c.Analyzer.LargeModuleLines))
	}
	if c.Analyzer.HighCouplingDegree < 0 {
		warnings = append(warnings, fmt.Sprintf("analyzer high_coupling_degree %d is negative", c.Analyzer.HighCouplingDegree))
	}
	if c.Graph.URI != "" && c.Graph.Username == "" {
		warnings = append(warnings, "graph uri is configured but username is empty")
	}
	if c.Vector.Host != "" && c.Vector.Collection == "" {
		warnings = append(warnings, "vector host is configured but collection is empty")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FERROLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Temporal: TemporalConfig{
			Host:      "localhost:7233",
			Namespace: "default",
			TaskQueue: "ferrolens-analysis",
		},
		API: APIConfig{
			Addr:    ":8700",
			MaxRuns: 100,
		},
		Tracing: TracingConfig{
			Environment: "development",
			SampleRate:  1.0,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}
