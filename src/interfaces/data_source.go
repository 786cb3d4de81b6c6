package interfaces

import (
	"context"

	"lod-engine/src/models"
)

// -----------------------------------------------------------------------------
// IBarSource supplies raw bars to the engine on demand.
// -----------------------------------------------------------------------------

type IBarSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchRange returns the bars of a series inside r (both ends inclusive).
	// A source that cannot serve historical ranges returns nil, nil.
	FetchRange(ctx context.Context, seriesID string, r models.MTimeRange) ([]models.MBar, error)

	// -----------------------------------------------------------------------------

	// FetchAfter returns up to limit bars strictly newer than after.
	FetchAfter(ctx context.Context, seriesID string, after int64, limit int) ([]models.MBar, error)
}
