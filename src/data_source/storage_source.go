package datasource

import (
	"context"

	"lod-engine/src/interfaces"
	"lod-engine/src/models"
)

// StorageSource serves bars already persisted in the database
type StorageSource struct {
	DB interfaces.IDatabase
}

func NewStorageSource(db interfaces.IDatabase) *StorageSource {
	return &StorageSource{DB: db}
}

func (s *StorageSource) Name() string {
	return "storage"
}

// -----------------------------------------------------------------------------

func (s *StorageSource) FetchRange(ctx context.Context, seriesID string, r models.MTimeRange) ([]models.MBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.DB.LoadRange(seriesID, r)
}

// -----------------------------------------------------------------------------

func (s *StorageSource) FetchAfter(ctx context.Context, seriesID string, after int64, limit int) ([]models.MBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.DB.LoadLatest(seriesID, after, limit)
}
