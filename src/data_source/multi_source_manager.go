package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/models"
)

// MultiSourceManager chains several IBarSource instances in priority order.
// It implements IBarSource itself.
type MultiSourceManager struct {
	Sources []interfaces.IBarSource
	Logger  *logger.Logger
	mu      sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.IBarSource, log *logger.Logger) *MultiSourceManager {
	if log == nil {
		log = logger.NewLogger(nil, "MultiSourceManager")
	}
	return &MultiSourceManager{
		Sources: append([]interfaces.IBarSource(nil), sources...),
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// AddSource appends a source with the lowest priority
func (m *MultiSourceManager) AddSource(source interfaces.IBarSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	for _, s := range m.Sources {
		if s.Name() == name {
			return fmt.Errorf("source %s already exists", name)
		}
	}
	m.Sources = append(m.Sources, source)
	m.Logger.Info("Added source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource drops a source by name
func (m *MultiSourceManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.Sources {
		if s.Name() == name {
			m.Sources = append(m.Sources[:i], m.Sources[i+1:]...)
			m.Logger.Info("Removed source: %s", name)
			return nil
		}
	}
	return fmt.Errorf("source %s not found", name)
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *MultiSourceManager) GetSource(name string) (interfaces.IBarSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.Sources {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("source %s not found", name)
}

// -----------------------------------------------------------------------------

// GetAllSources returns the sources in priority order
func (m *MultiSourceManager) GetAllSources() []interfaces.IBarSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]interfaces.IBarSource(nil), m.Sources...)
}

// -----------------------------------------------------------------------------

// Name returns "MultiSourceManager"
func (m *MultiSourceManager) Name() string {
	return "MultiSourceManager"
}

// -----------------------------------------------------------------------------

// FetchRange asks each source in priority order and returns the first
// non-empty answer. A failing source is skipped; the call only fails when
// every source failed.
func (m *MultiSourceManager) FetchRange(ctx context.Context, seriesID string, r models.MTimeRange) ([]models.MBar, error) {
	sources := m.GetAllSources()

	var lastErr error
	failed := 0
	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := s.FetchRange(ctx, seriesID, r)
		if err != nil {
			m.Logger.Warning("Source %s failed range fetch for %s: %v", s.Name(), seriesID, err)
			lastErr = err
			failed++
			continue
		}
		if len(bars) > 0 {
			return bars, nil
		}
	}
	if failed > 0 && failed == len(sources) {
		return nil, fmt.Errorf("all sources failed for %s: %w", seriesID, lastErr)
	}
	return nil, nil
}

// -----------------------------------------------------------------------------

// FetchAfter fans out to all sources and merges their results by time.
// When two sources return the same timestamp the higher priority one wins.
func (m *MultiSourceManager) FetchAfter(ctx context.Context, seriesID string, after int64, limit int) ([]models.MBar, error) {
	sources := m.GetAllSources()
	results := make([][]models.MBar, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, s interfaces.IBarSource) {
			defer wg.Done()
			bars, err := s.FetchAfter(ctx, seriesID, after, limit)
			if err != nil {
				m.Logger.Error("Source %s failed tail fetch for %s: %v", s.Name(), seriesID, err)
				errs[i] = err
				return
			}
			results[i] = bars
		}(i, src)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	var merged []models.MBar
	failed := 0
	for i := range sources {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, b := range results[i] {
			if seen[b.Time] {
				continue
			}
			seen[b.Time] = true
			merged = append(merged, b)
		}
	}
	if len(sources) > 0 && failed == len(sources) {
		return nil, fmt.Errorf("all sources failed tail fetch for %s: %w", seriesID, errs[0])
	}

	sort.Slice(merged, func(a, b int) bool { return merged[a].Time < merged[b].Time })
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}
