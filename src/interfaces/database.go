package interfaces

import "lod-engine/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for bar storage.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// RegisterSeries records a series id and its kind in the catalog.
	RegisterSeries(seriesID string, kind models.MSeriesKind) error

	// -----------------------------------------------------------------------------
	// ListSeries returns the catalog, keyed by series id
	ListSeries() (map[string]models.MSeriesKind, error)

	// -----------------------------------------------------------------------------

	// SaveBarsBulk upserts a batch of bars for one series.
	SaveBarsBulk(seriesID string, bars []models.MBar) error

	// -----------------------------------------------------------------------------

	// LoadRange returns the bars with r.Start <= time <= r.End, sorted by time.
	LoadRange(seriesID string, r models.MTimeRange) ([]models.MBar, error)

	// -----------------------------------------------------------------------------
	// Bounds returns the first and last stored time, nil when empty
	Bounds(seriesID string) (*models.MTimeRange, error)

	// -----------------------------------------------------------------------------

	// LoadLatest returns at most limit bars strictly newer than after.
	LoadLatest(seriesID string, after int64, limit int) ([]models.MBar, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
