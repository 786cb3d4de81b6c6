package engine

import (
	"time"

	"lod-engine/src/analysis"
	"lod-engine/src/analysis/core"
	"lod-engine/src/cache"
	"lod-engine/src/models"
	"lod-engine/src/series"
)

// -----------------------------------------------------------------------------

// GetOrBuildRenderSeries returns the decimated output of a series for a pane.
// It is false only when the series has no data inside the effective window.
func (e *Engine) GetOrBuildRenderSeries(seriesID, paneID string) (*models.MDecimatedSeries, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderSeries(seriesID, paneID)
}

func (e *Engine) renderSeries(seriesID, paneID string) (*models.MDecimatedSeries, bool) {
	snap, ok := e.store.Get(seriesID)
	if !ok || snap.Len() == 0 {
		return nil, false
	}

	// 1. effective ranges, clipped to the replay cutoff
	renderRange, visibleRange, ok := e.effectiveRanges(snap, paneID)
	if !ok {
		return nil, false
	}

	// 2. counts; the raw slice is only built on a miss
	span, ok := analysis.FindIndexRange(snap.Times, renderRange)
	if !ok {
		return nil, false
	}
	visibleCount := analysis.CountInRange(snap.Times, visibleRange)

	// 3. detail level and point budget
	width := e.paneWidth(paneID)
	sel := e.selectLevel(seriesID, paneID, snap.Kind, visibleCount, width)
	maxPoints := analysis.ScaleMaxPoints(sel.MaxPoints, renderRange.Span(), visibleRange.Span())

	// 4-5. memo, then global LRU
	key := cache.NewKey(seriesID, snap.Version, renderRange, maxPoints, e.cutoff)
	if out, tier := e.cache.Lookup(key); tier != cache.TierMiss {
		e.metrics.CacheHit(tier.String())
		return out, true
	}

	// 6. miss
	e.metrics.CacheMiss()
	raw := analysis.SliceIndices(snap, span)
	dec := analysis.Decimate(snap.Kind, raw, maxPoints)
	out := &models.MDecimatedSeries{
		SeriesID:    seriesID,
		Kind:        snap.Kind,
		Version:     snap.Version,
		Range:       renderRange,
		Level:       sel.Level,
		MaxPoints:   maxPoints,
		SourceCount: len(raw.Times),
		Times:       dec.Times,
		Fields:      dec.Fields,
	}
	e.cache.Store(key, out)
	e.Logger.Debug("Built %s for pane %s: %d -> %d points (%s)", seriesID, paneID, len(raw.Times), out.Len(), sel.Level)
	return out, true
}

// effectiveRanges falls back to the whole series when the pane has no window yet.
func (e *Engine) effectiveRanges(snap *models.MSeriesSnapshot, paneID string) (models.MTimeRange, models.MTimeRange, bool) {
	var render, visible models.MTimeRange
	p, ok := e.tracker.Lookup(paneID)
	if ok && p.RenderWindow != nil && p.VisibleRange != nil {
		render, visible = *p.RenderWindow, *p.VisibleRange
	} else {
		ext := series.Extent(snap)
		render, visible = *ext, *ext
	}

	render, ok = render.ClipTo(e.cutoff)
	if !ok {
		return models.MTimeRange{}, models.MTimeRange{}, false
	}
	visible, ok = visible.ClipTo(e.cutoff)
	if !ok {
		// visible part lies entirely after the cutoff: nothing counts as visible
		visible = models.MTimeRange{Start: render.End, End: render.End}
	}
	return render, visible, true
}

func (e *Engine) paneWidth(paneID string) int {
	if p, ok := e.tracker.Lookup(paneID); ok && p.WidthPx > 0 {
		return p.WidthPx
	}
	return 1
}

// selectLevel runs the hysteresis selector and reports level changes.
func (e *Engine) selectLevel(seriesID, paneID string, kind models.MSeriesKind, visibleCount, width int) models.MLodSelection {
	k := lodKey{pane: paneID, series: seriesID}
	policy := analysis.PolicyFor(kind, e.cfg.LodHysteresisRatio)

	prev, had := e.lod[k]
	var prevLevel *models.MLodLevel
	if had {
		lvl := prev.Level
		prevLevel = &lvl
	}
	sel := analysis.SelectLevel(visibleCount, width, policy, prevLevel)

	switch {
	case !had:
		e.lod[k] = &models.MLodState{
			Level:          sel.Level,
			Density:        sel.Density,
			PointsPerPixel: sel.PointsPerPixel,
			UpdatedAt:      e.now(),
		}
		e.Logger.Debug("Initial level for %s in pane %s: %s (density %.3f)", seriesID, paneID, sel.Level, sel.Density)
	case prev.Level != sel.Level:
		from := prev.Level
		prev.Level = sel.Level
		prev.Density = sel.Density
		prev.PointsPerPixel = sel.PointsPerPixel
		prev.UpdatedAt = e.now()
		e.Logger.Info("Level of %s in pane %s changed %s -> %s (density %.3f, threshold %.3f)",
			seriesID, paneID, from, sel.Level, sel.Density, sel.Threshold)
		countingSink{e}.EmitDiagnostic(models.MDiagnostic{
			Code:     models.DiagLodLevelChanged,
			Message:  "level changed from " + string(from) + " to " + string(sel.Level),
			Severity: models.SeverityInfo,
			Context: map[string]interface{}{
				"seriesId":  seriesID,
				"paneId":    paneID,
				"from":      string(from),
				"to":        string(sel.Level),
				"density":   sel.Density,
				"threshold": sel.Threshold,
			},
			Timestamp: e.now(),
		})
	}
	return sel
}

// -----------------------------------------------------------------------------

// RenderPane renders every series attached to a pane and records the frame time.
func (e *Engine) RenderPane(paneID string) []*models.MDecimatedSeries {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.tracker.Lookup(paneID)
	if !ok {
		return nil
	}

	start := time.Now()
	out := make([]*models.MDecimatedSeries, 0, len(p.Series))
	for _, id := range p.Series {
		if dec, ok := e.renderSeries(id, paneID); ok {
			out = append(out, dec)
		}
	}
	elapsed := time.Since(start)

	ms := float64(elapsed) / float64(time.Millisecond)
	e.frames.Append(ms)
	e.frameCount++
	if ms > e.cfg.FrameBudgetMs {
		e.overBudget++
		e.Logger.Debug("Pane %s frame took %.2fms (budget %.0fms)", paneID, ms, e.cfg.FrameBudgetMs)
	}
	e.metrics.ObserveFrame(elapsed)
	return out
}

// -----------------------------------------------------------------------------

// Stats returns a copy of the engine counters
func (e *Engine) Stats() models.MRenderStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	cs := e.cache.Stats()
	samples := e.frames.GetAll()
	mean, std := core.CalculateMeanStd(samples)

	st := models.MRenderStats{
		Tier1Hits:          cs.Tier1Hits,
		Tier2Hits:          cs.Tier2Hits,
		Misses:             cs.Misses,
		Evictions:          cs.Evictions,
		GlobalEntries:      cs.GlobalEntries,
		DataWindowRequests: e.tracker.Requests(),
		Diagnostics:        e.diagnostics,
		Frames:             e.frameCount,
		FramesOverBudget:   e.overBudget,
		RecentOverBudget:   core.CountAbove(samples, e.cfg.FrameBudgetMs),
		FrameMeanMs:        mean,
		FrameStdMs:         std,
		FrameMaxMs:         core.CalculateMax(samples),
		SeriesCount:        e.store.Count(),
		TotalPoints:        e.store.TotalPoints(),
	}
	if d, ok := e.sink.(interface{ Dropped() uint64 }); ok {
		st.DroppedEvents = d.Dropped()
	}
	return st
}
