package datasource

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/models"
	"lod-engine/src/utils"
)

// -----------------------------------------------------------------------------
// SyntheticSource produces live minute bars for the configured series,
// following each symbol's trading calendar. Generated bars are written
// through to the database when one is set so that later range loads see them.
// -----------------------------------------------------------------------------

type SyntheticSource struct {
	DB         interfaces.IDatabase
	Logger     *logger.Logger
	generators map[string]*utils.SeedGenerator
	now        func() time.Time
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

// NewSyntheticSource creates one generator per series; db may be nil.
func NewSyntheticSource(series []models.MSeriesConfig, db interfaces.IDatabase, log *logger.Logger) *SyntheticSource {
	if log == nil {
		log = logger.NewLogger(nil, "SyntheticSource")
	}
	s := &SyntheticSource{
		DB:         db,
		Logger:     log,
		generators: make(map[string]*utils.SeedGenerator),
		now:        time.Now,
	}
	for _, sc := range series {
		s.generators[sc.ID] = utils.NewSeedGenerator(sc.Symbol, seedFor(sc.ID))
	}
	return s
}

// seedFor keeps each series' walk stable across restarts
func seedFor(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64() >> 1)
}

// -----------------------------------------------------------------------------

func (s *SyntheticSource) Name() string {
	return "synthetic"
}

// -----------------------------------------------------------------------------

// FetchRange returns nil: a random walk cannot reproduce history.
func (s *SyntheticSource) FetchRange(ctx context.Context, seriesID string, r models.MTimeRange) ([]models.MBar, error) {
	return nil, nil
}

// -----------------------------------------------------------------------------

// FetchAfter generates the open minutes between after and now.
func (s *SyntheticSource) FetchAfter(ctx context.Context, seriesID string, after int64, limit int) ([]models.MBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, ok := s.generators[seriesID]
	if !ok {
		return nil, nil
	}

	from := time.UnixMilli(after).Add(time.Minute).Truncate(time.Minute)
	to := s.now()
	if limit > 0 && to.Sub(from) > time.Duration(limit)*time.Minute {
		to = from.Add(time.Duration(limit) * time.Minute)
	}
	if !from.Before(to) {
		return nil, nil
	}

	bars := gen.Generate(from, to)
	if len(bars) == 0 {
		return nil, nil
	}
	if s.DB != nil {
		if err := s.DB.SaveBarsBulk(seriesID, bars); err != nil {
			return nil, err
		}
	}
	s.Logger.Debug("Generated %d bars for %s", len(bars), seriesID)
	return bars, nil
}
