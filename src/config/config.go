package config

import (
	"fmt"
	"os"

	"lod-engine/src/analysis"
	"lod-engine/src/helpers"
	"lod-engine/src/models"

	"gopkg.in/yaml.v3"
)

// Engine defaults
const (
	DefaultPrefetchRatio         = 0.2
	DefaultLodHysteresisRatio    = 0.15
	DefaultLodCacheEntries       = 256
	DefaultRenderWindowTolerance = 0.02
	DefaultGuardMarginRatio      = 0.5
	DefaultFrameBudgetMs         = 16
	DefaultFrameSamples          = 240
	DefaultEventBuffer           = 64
	DefaultWidthPx               = 800
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyEnv()
	config.ApplyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, &helpers.ConfigurationError{EngineError: helpers.EngineError{Message: "config validation failed", Cause: err}}
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Default returns a config usable without a file (tests, seed command).
func Default() *Config {
	c := &Config{MConfig: &models.MConfig{
		Name:     "lod-engine",
		Host:     "127.0.0.1",
		Port:     8000,
		LogLevel: "INFO",
		Storage:  models.MStorageConfig{DBType: "sqlite", DBPath: "lod-engine.db"},
	}}
	c.ApplyDefaults()
	return c
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	if v := os.Getenv("LOD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOD_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("LOD_DB_CONNECTION_STRING"); v != "" {
		c.Storage.DBConnectionString = v
	}
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills zero values and clamps the hysteresis ratio
func (c *Config) ApplyDefaults() {
	e := &c.Engine
	if e.PrefetchRatio <= 0 {
		e.PrefetchRatio = DefaultPrefetchRatio
	}
	if e.LodHysteresisRatio == 0 {
		e.LodHysteresisRatio = DefaultLodHysteresisRatio
	}
	e.LodHysteresisRatio = analysis.ClampHysteresis(e.LodHysteresisRatio)
	if e.LodCacheEntries <= 0 {
		e.LodCacheEntries = DefaultLodCacheEntries
	}
	if e.RenderWindowTolerance <= 0 {
		e.RenderWindowTolerance = DefaultRenderWindowTolerance
	}
	if e.GuardMarginRatio <= 0 {
		e.GuardMarginRatio = DefaultGuardMarginRatio
	}
	if e.FrameBudgetMs <= 0 {
		e.FrameBudgetMs = DefaultFrameBudgetMs
	}
	if e.FrameSamples <= 0 {
		e.FrameSamples = DefaultFrameSamples
	}
	if e.EventBuffer <= 0 {
		e.EventBuffer = DefaultEventBuffer
	}

	if c.Loader.MaxRetries <= 0 {
		c.Loader.MaxRetries = 3
	}
	if c.Loader.RetryDelayMs <= 0 {
		c.Loader.RetryDelayMs = 200
	}
	if c.Loader.Workers <= 0 {
		c.Loader.Workers = 1
	}

	if c.Scheduler.TailCron == "" {
		c.Scheduler.TailCron = "@every 5s"
	}
	if c.Scheduler.StatsCron == "" {
		c.Scheduler.StatsCron = "@every 1m"
	}

	for i := range c.Series {
		if c.Series[i].Kind == "" {
			c.Series[i].Kind = models.SeriesLine
		}
		if c.Series[i].Pane == "" {
			c.Series[i].Pane = "main"
		}
		if c.Series[i].WidthPx <= 0 {
			c.Series[i].WidthPx = DefaultWidthPx
		}
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: '%s'", c.Storage.DBType)
	}

	if c.Engine.PrefetchRatio > 5 {
		return fmt.Errorf("prefetch ratio %.2f is unreasonably large", c.Engine.PrefetchRatio)
	}
	if c.Engine.RenderWindowTolerance >= 1 {
		return fmt.Errorf("render window tolerance must be below 1")
	}

	seen := make(map[string]bool)
	for i, s := range c.Series {
		if s.ID == "" {
			return fmt.Errorf("series %d must have an id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("series '%s' is defined twice", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case models.SeriesLine, models.SeriesArea, models.SeriesBaseline, models.SeriesHistogram, models.SeriesCandles:
		default:
			return fmt.Errorf("series '%s' has unknown kind '%s'", s.ID, s.Kind)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
