package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	GrpcHost  string           `yaml:"grpc_host"`
	GrpcPort  int              `yaml:"grpc_port"`
	Storage   MStorageConfig   `yaml:"storage"`
	Engine    MEngineConfig    `yaml:"engine"`
	Loader    MLoaderConfig    `yaml:"loader"`
	Scheduler MSchedulerConfig `yaml:"scheduler"`
	Series    []MSeriesConfig  `yaml:"series"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MEngineConfig struct {
	PrefetchRatio         float64 `yaml:"prefetch_ratio"`
	LodHysteresisRatio    float64 `yaml:"lod_hysteresis_ratio"`
	LodCacheEntries       int     `yaml:"lod_cache_entries"`
	RenderWindowTolerance float64 `yaml:"render_window_tolerance"`
	GuardMarginRatio      float64 `yaml:"guard_margin_ratio"`
	FrameBudgetMs         float64 `yaml:"frame_budget_ms"`
	FrameSamples          int     `yaml:"frame_samples"`
	EventBuffer           int     `yaml:"event_buffer"`
}

type MLoaderConfig struct {
	MaxRetries   int `yaml:"max_retries"`
	RetryDelayMs int `yaml:"retry_delay_ms"`
	Workers      int `yaml:"workers"`
}

type MSchedulerConfig struct {
	TailCron  string `yaml:"tail_cron"`
	StatsCron string `yaml:"stats_cron"`
}

type MSeriesConfig struct {
	ID      string      `yaml:"id"`
	Kind    MSeriesKind `yaml:"kind"`
	Symbol  string      `yaml:"symbol"` // Optional, drives the trading calendar
	Pane    string      `yaml:"pane"`
	WidthPx int         `yaml:"width_px"`
}

// -----------------------------------------------------------------------------

// GetLogLevel lets the logger pick its threshold from the config
func (c *MConfig) GetLogLevel() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}
