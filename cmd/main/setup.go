package main

import (
	"fmt"

	"lod-engine/src/config"
	"lod-engine/src/engine"
	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/metrics"
	"lod-engine/src/storage"
)

// -----------------------------------------------------------------------------

// loadConfig reads the YAML file and builds the application logger
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, logger.NewLogger(cfg, cfg.Name), nil
}

// -----------------------------------------------------------------------------

// setupDatabase opens the configured backend and creates its tables
func setupDatabase(cfg *config.Config) (interfaces.IDatabase, error) {
	dbLogger := logger.NewLogger(cfg, "Storage")
	db, err := storage.NewDatabase(cfg.MConfig, dbLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	return db, nil
}

// -----------------------------------------------------------------------------

// setupEngine defines every configured series, attaches it to its pane and
// registers it in the catalog.
func setupEngine(cfg *config.Config, db interfaces.IDatabase, sink interfaces.IEventSink, m *metrics.Metrics) (*engine.Engine, error) {
	eng, err := engine.New(cfg.Engine, sink, m, logger.NewLogger(cfg, "Engine"))
	if err != nil {
		return nil, err
	}
	for _, sc := range cfg.Series {
		if err := eng.DefineSeries(sc.ID, sc.Kind); err != nil {
			return nil, err
		}
		if err := eng.AttachSeries(sc.Pane, sc.ID, sc.WidthPx); err != nil {
			return nil, err
		}
		if db != nil {
			if err := db.RegisterSeries(sc.ID, sc.Kind); err != nil {
				return nil, err
			}
		}
	}
	return eng, nil
}

// -----------------------------------------------------------------------------

// loadStored fills the engine with what the database already holds
func loadStored(cfg *config.Config, eng *engine.Engine, db interfaces.IDatabase, log *logger.Logger) {
	for _, sc := range cfg.Series {
		bounds, err := db.Bounds(sc.ID)
		if err != nil {
			log.Warning("Bounds of %s: %v", sc.ID, err)
			continue
		}
		if bounds == nil {
			log.Info("Series %s has no stored data yet", sc.ID)
			continue
		}
		bars, err := db.LoadRange(sc.ID, *bounds)
		if err != nil {
			log.Warning("Initial load of %s failed: %v", sc.ID, err)
			continue
		}
		if _, err := eng.SetData(sc.ID, bars); err != nil {
			log.Warning("Initial data of %s rejected: %v", sc.ID, err)
			continue
		}
		log.Info("Loaded %d bars for %s", len(bars), sc.ID)
	}
}
