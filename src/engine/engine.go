package engine

import (
	"fmt"
	"sync"
	"time"

	"lod-engine/src/analysis"
	"lod-engine/src/cache"
	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/metrics"
	"lod-engine/src/models"
	"lod-engine/src/series"
	"lod-engine/src/utils"
	"lod-engine/src/window"
)

// DefaultFrameBudgetMs is one frame at 60 fps
const DefaultFrameBudgetMs = 16.0

type lodKey struct {
	pane   string
	series string
}

// -----------------------------------------------------------------------------
// Engine turns series snapshots into bounded, per-pane render output.
// Exported methods lock the engine: the loader, the scheduler and the servers
// call in from their own goroutines.
// -----------------------------------------------------------------------------

type Engine struct {
	mu      sync.Mutex
	cfg     models.MEngineConfig
	store   *series.Store
	tracker *window.Tracker
	cache   *cache.RenderCache
	lod     map[lodKey]*models.MLodState
	cutoff  *int64
	sink    interfaces.IEventSink
	metrics *metrics.Metrics
	frames  *utils.RingBuffer
	Logger  *logger.Logger
	now     func() time.Time

	frameCount  uint64
	overBudget  uint64
	diagnostics uint64
}

// -----------------------------------------------------------------------------

// New builds an engine. sink and m may be nil.
func New(cfg models.MEngineConfig, sink interfaces.IEventSink, m *metrics.Metrics, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewLogger(nil, "Engine")
	}
	cfg.LodHysteresisRatio = analysis.ClampHysteresis(cfg.LodHysteresisRatio)
	if cfg.FrameBudgetMs <= 0 {
		cfg.FrameBudgetMs = DefaultFrameBudgetMs
	}

	e := &Engine{
		cfg:     cfg,
		store:   series.NewStore(logger.NewLogger(nil, "SeriesStore")),
		lod:     make(map[lodKey]*models.MLodState),
		sink:    sink,
		metrics: m,
		frames:  utils.NewRingBuffer(cfg.FrameSamples),
		Logger:  log,
		now:     time.Now,
	}

	global, err := cache.NewGlobalLRU(cfg.LodCacheEntries, func(key string) {
		m.CacheEvicted()
		log.Debug("Evicted %s", key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}
	e.cache = cache.NewRenderCache(global)

	e.tracker = window.NewTracker(window.Options{
		PrefetchRatio: cfg.PrefetchRatio,
		Tolerance:     cfg.RenderWindowTolerance,
		GuardRatio:    cfg.GuardMarginRatio,
	}, countingSink{e}, logger.NewLogger(nil, "WindowTracker"))

	return e, nil
}

// -----------------------------------------------------------------------------
// countingSink records metrics before forwarding to the configured sink.
// Called with e.mu held.
// -----------------------------------------------------------------------------

type countingSink struct {
	e *Engine
}

func (c countingSink) EmitDataWindowRequest(req models.MDataWindowRequest) {
	c.e.metrics.DataWindowRequested()
	if c.e.sink != nil {
		c.e.sink.EmitDataWindowRequest(req)
	}
}

func (c countingSink) EmitDiagnostic(diag models.MDiagnostic) {
	c.e.diagnostics++
	c.e.metrics.Diagnostic(diag.Code)
	if c.e.sink != nil {
		c.e.sink.EmitDiagnostic(diag)
	}
}

// -----------------------------------------------------------------------------
// Series
// -----------------------------------------------------------------------------

// DefineSeries registers an empty series of the given kind.
func (e *Engine) DefineSeries(id string, kind models.MSeriesKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id == "" {
		return fmt.Errorf("series id is required")
	}
	if _, err := e.store.Define(id, kind); err != nil {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSeries drops a series and detaches it from every pane.
// Returns false when the series is unknown.
func (e *Engine) RemoveSeries(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.store.Get(id); !ok {
		return false
	}
	panes := e.tracker.PanesShowing(id)
	e.store.Delete(id)
	e.tracker.Detach(id)
	e.cache.Forget(id)
	for k := range e.lod {
		if k.series == id {
			delete(e.lod, k)
		}
	}
	e.metrics.SetSeriesPoints(id, 0)
	for _, p := range panes {
		e.refreshCoverage(p)
	}
	e.Logger.Info("Removed series %s", id)
	return true
}

// -----------------------------------------------------------------------------

// Reset drops every series and all cached output. Panes stay defined with no
// series attached; the replay cutoff is cleared.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.store.IDs() {
		e.tracker.Detach(id)
		e.metrics.SetSeriesPoints(id, 0)
	}
	e.store.Cleanup()
	e.cache.Reset()
	e.lod = make(map[lodKey]*models.MLodState)
	e.frames.Clear()
	e.cutoff = nil
	for _, p := range e.tracker.PaneIDs() {
		e.refreshCoverage(p)
	}
	e.Logger.Info("Engine reset")
}

// -----------------------------------------------------------------------------

// Snapshot returns the current immutable snapshot of a series
func (e *Engine) Snapshot(id string) (*models.MSeriesSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(id)
}

// -----------------------------------------------------------------------------

// SeriesIDs lists the defined series
func (e *Engine) SeriesIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.IDs()
}

// -----------------------------------------------------------------------------

// SetData replaces the content of a series
func (e *Engine) SetData(id string, bars []models.MBar) (*models.MSeriesSnapshot, error) {
	return e.mutate(id, func(s *models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool) {
		return series.Replace(s, bars), true
	})
}

// -----------------------------------------------------------------------------

// AppendData adds bars newer than the last sample
func (e *Engine) AppendData(id string, bars []models.MBar) (*models.MSeriesSnapshot, error) {
	return e.mutate(id, func(s *models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool) {
		if len(bars) == 0 {
			return s, false
		}
		return series.Append(s, bars), true
	})
}

// -----------------------------------------------------------------------------

// PrependData adds bars older than the first sample
func (e *Engine) PrependData(id string, bars []models.MBar) (*models.MSeriesSnapshot, error) {
	return e.mutate(id, func(s *models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool) {
		if len(bars) == 0 {
			return s, false
		}
		return series.Prepend(s, bars), true
	})
}

// -----------------------------------------------------------------------------

// PatchData overwrites bars whose time already exists
func (e *Engine) PatchData(id string, bars []models.MBar) (*models.MSeriesSnapshot, error) {
	return e.mutate(id, func(s *models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool) {
		if len(bars) == 0 {
			return s, false
		}
		return series.Patch(s, bars), true
	})
}

// -----------------------------------------------------------------------------

// MergeBars folds arbitrary bars into a series: overlapping times are
// patched, older ones prepended, newer ones appended. Returns whether the
// snapshot changed.
func (e *Engine) MergeBars(id string, bars []models.MBar) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, changed, err := e.store.Mutate(id, func(s *models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool) {
		return series.Merge(s, bars)
	})
	if err != nil {
		return false, err
	}
	if changed {
		e.afterMutation(id)
	}
	return changed, nil
}

// MergeBarsBatch merges bars into several series and refreshes pane coverage
// once at the end, so a pane showing more than one of them is judged on the
// complete delivery. Returns how many series changed.
func (e *Engine) MergeBarsBatch(batch map[string][]models.MBar) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := 0
	panes := make(map[string]bool)
	var firstErr error
	for id, bars := range batch {
		_, ok, err := e.store.Mutate(id, func(s *models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool) {
			return series.Merge(s, bars)
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		changed++
		if snap, found := e.store.Get(id); found {
			e.metrics.SetSeriesPoints(id, snap.Len())
		}
		for _, p := range e.tracker.PanesShowing(id) {
			panes[p] = true
		}
	}
	for p := range panes {
		e.refreshCoverage(p)
	}
	return changed, firstErr
}

func (e *Engine) mutate(id string, fn func(*models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool)) (*models.MSeriesSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, changed, err := e.store.Mutate(id, fn)
	if err != nil {
		return nil, err
	}
	if changed {
		e.afterMutation(id)
	}
	return snap, nil
}

// afterMutation refreshes the coverage of every pane showing the series.
func (e *Engine) afterMutation(id string) {
	if snap, ok := e.store.Get(id); ok {
		e.metrics.SetSeriesPoints(id, snap.Len())
		e.Logger.Debug("Series %s now at version %d with %d points", id, snap.Version, snap.Len())
	}
	for _, pane := range e.tracker.PanesShowing(id) {
		e.refreshCoverage(pane)
	}
}

func (e *Engine) refreshCoverage(paneID string) {
	p, ok := e.tracker.Lookup(paneID)
	if !ok {
		return
	}
	extents := make([]*models.MTimeRange, 0, len(p.Series))
	for _, id := range p.Series {
		snap, _ := e.store.Get(id)
		extents = append(extents, series.Extent(snap))
	}
	e.tracker.UpdateDataWindowCoverage(paneID, extents)
}

// -----------------------------------------------------------------------------
// Panes
// -----------------------------------------------------------------------------

// AttachSeries shows a series in a pane. widthPx <= 0 keeps the current width.
func (e *Engine) AttachSeries(paneID, seriesID string, widthPx int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.store.Get(seriesID); !ok {
		return fmt.Errorf("series %s not found", seriesID)
	}
	e.tracker.Attach(paneID, seriesID, widthPx)
	e.refreshCoverage(paneID)
	return nil
}

// -----------------------------------------------------------------------------

func (e *Engine) SetPaneWidth(paneID string, widthPx int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if widthPx > 0 {
		e.tracker.Pane(paneID).WidthPx = widthPx
	}
}

// -----------------------------------------------------------------------------

// PaneSeries returns the series attached to a pane
func (e *Engine) PaneSeries(paneID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.tracker.Lookup(paneID)
	if !ok {
		return nil
	}
	return append([]string(nil), p.Series...)
}

// -----------------------------------------------------------------------------

// PaneIDs returns every known pane
func (e *Engine) PaneIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.PaneIDs()
}

// -----------------------------------------------------------------------------

// PanesShowing returns the panes a series is attached to
func (e *Engine) PanesShowing(seriesID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.PanesShowing(seriesID)
}

// -----------------------------------------------------------------------------

// PaneState returns a copy of the window state of a pane
func (e *Engine) PaneState(paneID string) (models.MPaneWindowState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.tracker.Lookup(paneID)
	if !ok {
		return models.MPaneWindowState{}, false
	}
	out := *p
	out.Series = append([]string(nil), p.Series...)
	return out, true
}

// -----------------------------------------------------------------------------

// SetVisibleRange records what a pane shows, recomputes its render window if
// needed and asks for data the pane does not cover yet.
// Returns true when the render window moved.
func (e *Engine) SetVisibleRange(paneID string, r models.MTimeRange) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	moved := e.tracker.UpdateRenderWindow(paneID, r)
	e.tracker.MaybeRequestDataWindow(paneID)
	return moved
}

// -----------------------------------------------------------------------------

// RefreshCoverage re-evaluates a pane's coverage against its pending request.
// The loader calls it after each delivery, including empty ones.
func (e *Engine) RefreshCoverage(paneID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshCoverage(paneID)
}

// -----------------------------------------------------------------------------

// SetReplayCutoff hides every sample after cutoff; nil disables replay.
func (e *Engine) SetReplayCutoff(cutoff *int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cutoff == nil {
		e.cutoff = nil
		e.Logger.Info("Replay disabled")
		return
	}
	c := *cutoff
	e.cutoff = &c
	e.Logger.Info("Replay cutoff set to %d", c)
}

// -----------------------------------------------------------------------------

func (e *Engine) ReplayCutoff() *int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cutoff == nil {
		return nil
	}
	c := *e.cutoff
	return &c
}

// -----------------------------------------------------------------------------

// NearestPoint snaps t to the closest sample not after the replay cutoff.
func (e *Engine) NearestPoint(seriesID string, t int64) (models.MBar, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, ok := e.store.Get(seriesID)
	if !ok {
		return models.MBar{}, false
	}
	idx, ok := analysis.NearestIndex(snap.Times, t, e.cutoff)
	if !ok {
		return models.MBar{}, false
	}
	return series.BarAt(snap, idx), true
}

// -----------------------------------------------------------------------------

// LodState returns the level last selected for a series in a pane
func (e *Engine) LodState(paneID, seriesID string) (models.MLodState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.lod[lodKey{pane: paneID, series: seriesID}]
	if !ok {
		return models.MLodState{}, false
	}
	return *st, true
}
