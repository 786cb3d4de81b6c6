package storage

import (
	"fmt"

	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/models"
)

// NewDatabase picks the backend named by storage.db_type
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.Storage.DBType {
	case "sqlite", "":
		return NewSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.DBType)
	}
}
