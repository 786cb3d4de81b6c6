package window

import (
	"fmt"
	"math"
	"sort"
	"time"

	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/models"

	"github.com/google/uuid"
)

const (
	DefaultPrefetchRatio = 0.2
	DefaultTolerance     = 0.02
	DefaultGuardRatio    = 0.5
)

// Options tune when a render window is recomputed
type Options struct {
	PrefetchRatio float64
	Tolerance     float64
	GuardRatio    float64
}

// -----------------------------------------------------------------------------
// Tracker keeps the render window and data coverage of every pane and decides
// when the data-loading side must be asked for more bars. It never blocks and
// never retries: its only outputs are events on the sink.
// -----------------------------------------------------------------------------

type Tracker struct {
	panes    map[string]*models.MPaneWindowState
	opts     Options
	sink     interfaces.IEventSink
	Logger   *logger.Logger
	now      func() time.Time
	requests uint64
}

// -----------------------------------------------------------------------------

func NewTracker(opts Options, sink interfaces.IEventSink, log *logger.Logger) *Tracker {
	if opts.PrefetchRatio < 0 || math.IsNaN(opts.PrefetchRatio) {
		opts.PrefetchRatio = DefaultPrefetchRatio
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.GuardRatio <= 0 {
		opts.GuardRatio = DefaultGuardRatio
	}
	if log == nil {
		log = logger.NewLogger(nil, "WindowTracker")
	}
	return &Tracker{
		panes:  make(map[string]*models.MPaneWindowState),
		opts:   opts,
		sink:   sink,
		Logger: log,
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

func (t *Tracker) Options() Options {
	return t.opts
}

// -----------------------------------------------------------------------------

// Pane returns the state of a pane, creating it on first use.
func (t *Tracker) Pane(paneID string) *models.MPaneWindowState {
	p, ok := t.panes[paneID]
	if !ok {
		p = &models.MPaneWindowState{PaneID: paneID}
		t.panes[paneID] = p
	}
	return p
}

// -----------------------------------------------------------------------------

func (t *Tracker) Lookup(paneID string) (*models.MPaneWindowState, bool) {
	p, ok := t.panes[paneID]
	return p, ok
}

// -----------------------------------------------------------------------------

// PaneIDs returns the known panes, sorted
func (t *Tracker) PaneIDs() []string {
	ids := make([]string, 0, len(t.panes))
	for id := range t.panes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// -----------------------------------------------------------------------------

// Attach adds a series to a pane. Width is only updated when positive.
func (t *Tracker) Attach(paneID, seriesID string, widthPx int) {
	p := t.Pane(paneID)
	if widthPx > 0 {
		p.WidthPx = widthPx
	}
	for _, id := range p.Series {
		if id == seriesID {
			return
		}
	}
	p.Series = append(p.Series, seriesID)
}

// -----------------------------------------------------------------------------

// Detach removes a series from every pane showing it
func (t *Tracker) Detach(seriesID string) {
	for _, p := range t.panes {
		kept := p.Series[:0]
		for _, id := range p.Series {
			if id != seriesID {
				kept = append(kept, id)
			}
		}
		p.Series = kept
	}
}

// -----------------------------------------------------------------------------

// PanesShowing returns the panes a series is attached to, sorted
func (t *Tracker) PanesShowing(seriesID string) []string {
	var out []string
	for id, p := range t.panes {
		for _, s := range p.Series {
			if s == seriesID {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// UpdateRenderWindow stores the visible range and recomputes the render
// window when there is none yet, on zoom beyond the tolerance, or when the
// visible range leaves the window or enters its guard margin.
// Returns true when the window was recomputed.
func (t *Tracker) UpdateRenderWindow(paneID string, visible models.MTimeRange) bool {
	if visible.End < visible.Start {
		return false
	}
	p := t.Pane(paneID)
	v := visible
	p.VisibleRange = &v

	if !t.needsRecompute(p, visible) {
		return false
	}

	w := visible.Expand(t.opts.PrefetchRatio)
	p.RenderWindow = &w
	p.BaseSpan = visible.Span()
	t.Logger.Debug("Pane %s render window [%d, %d]", paneID, w.Start, w.End)
	return true
}

func (t *Tracker) needsRecompute(p *models.MPaneWindowState, visible models.MTimeRange) bool {
	if p.RenderWindow == nil {
		return true
	}

	span := visible.Span()
	base := p.BaseSpan
	if math.Abs(float64(span-base)) > t.opts.Tolerance*float64(base) {
		return true
	}

	w := *p.RenderWindow
	if !w.Contains(visible) {
		return true
	}
	guard := int64(float64(span) * t.opts.PrefetchRatio * t.opts.GuardRatio)
	return visible.Start-w.Start < guard || w.End-visible.End < guard
}

// -----------------------------------------------------------------------------

// MaybeRequestDataWindow emits one data-window request for the pane's render
// window unless it is already covered or already pending.
// Returns true when a request was emitted.
func (t *Tracker) MaybeRequestDataWindow(paneID string) bool {
	p, ok := t.panes[paneID]
	if !ok || p.RenderWindow == nil {
		return false
	}
	target := *p.RenderWindow

	if p.DataWindowCoverage != nil && p.DataWindowCoverage.Contains(target) {
		p.PendingDataWindow = nil
		return false
	}

	if p.PendingDataWindow != nil {
		if p.PendingDataWindow.Contains(target) {
			return false
		}
		if p.LastRequestedDataWindow != nil && p.LastRequestedDataWindow.Equal(target) {
			return false
		}
	}

	req := models.MDataWindowRequest{
		ID:            uuid.NewString(),
		PaneID:        paneID,
		Range:         target,
		PrefetchRatio: t.opts.PrefetchRatio,
		RequestedAt:   t.now(),
	}
	pending := target
	last := target
	p.PendingDataWindow = &pending
	p.LastRequestedDataWindow = &last
	t.requests++

	t.Logger.Debug("Pane %s requests data window [%d, %d] (%s)", paneID, target.Start, target.End, req.ID)
	if t.sink != nil {
		t.sink.EmitDataWindowRequest(req)
	}
	return true
}

// -----------------------------------------------------------------------------

// UpdateDataWindowCoverage sets the pane coverage to the intersection of the
// given series extents. A nil extent means that series has no data, and the
// pane then has no coverage. A pending request that the new coverage does
// not satisfy raises a single warning per target.
func (t *Tracker) UpdateDataWindowCoverage(paneID string, extents []*models.MTimeRange) {
	p, ok := t.panes[paneID]
	if !ok {
		return
	}
	p.DataWindowCoverage = intersectAll(extents)

	if p.PendingDataWindow == nil {
		return
	}
	target := *p.PendingDataWindow
	if p.DataWindowCoverage != nil && p.DataWindowCoverage.Contains(target) {
		p.PendingDataWindow = nil
		p.LastIncompleteWarning = nil
		return
	}
	if p.LastIncompleteWarning != nil && p.LastIncompleteWarning.Equal(target) {
		return
	}

	warned := target
	p.LastIncompleteWarning = &warned

	ctx := map[string]interface{}{
		"paneId":      paneID,
		"targetStart": target.Start,
		"targetEnd":   target.End,
	}
	msg := fmt.Sprintf("pane %s: no data delivered for [%d, %d]", paneID, target.Start, target.End)
	if c := p.DataWindowCoverage; c != nil {
		ctx["coverageStart"] = c.Start
		ctx["coverageEnd"] = c.End
		msg = fmt.Sprintf("pane %s: coverage [%d, %d] does not contain requested [%d, %d]",
			paneID, c.Start, c.End, target.Start, target.End)
	}
	t.Logger.Warning("%s", msg)
	if t.sink != nil {
		t.sink.EmitDiagnostic(models.MDiagnostic{
			Code:      models.DiagDataWindowIncomplete,
			Message:   msg,
			Severity:  models.SeverityWarn,
			Context:   ctx,
			Timestamp: t.now(),
		})
	}
}

func intersectAll(extents []*models.MTimeRange) *models.MTimeRange {
	if len(extents) == 0 {
		return nil
	}
	var acc models.MTimeRange
	for i, e := range extents {
		if e == nil {
			return nil
		}
		if i == 0 {
			acc = *e
			continue
		}
		next, ok := acc.Intersect(*e)
		if !ok {
			return nil
		}
		acc = next
	}
	return &acc
}

// -----------------------------------------------------------------------------

// Requests returns how many data-window requests were emitted
func (t *Tracker) Requests() uint64 {
	return t.requests
}
