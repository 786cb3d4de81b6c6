package window

import (
	"io"
	"testing"

	"lod-engine/src/logger"
	"lod-engine/src/models"
)

type recordingSink struct {
	requests    []models.MDataWindowRequest
	diagnostics []models.MDiagnostic
}

func (s *recordingSink) EmitDataWindowRequest(req models.MDataWindowRequest) {
	s.requests = append(s.requests, req)
}

func (s *recordingSink) EmitDiagnostic(diag models.MDiagnostic) {
	s.diagnostics = append(s.diagnostics, diag)
}

func newTracker(sink *recordingSink) *Tracker {
	logger.SetOutput(io.Discard)
	return NewTracker(Options{PrefetchRatio: 0.2}, sink, logger.NewLogger(nil, "test"))
}

func TestUpdateRenderWindow_FirstCallExpands(t *testing.T) {
	tr := newTracker(&recordingSink{})
	if !tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000}) {
		t.Fatal("expected first call to compute a window")
	}
	w := tr.Pane("p").RenderWindow
	if w == nil || w.Start != 800 || w.End != 2200 {
		t.Fatalf("unexpected window %+v", w)
	}
}

func TestUpdateRenderWindow_SmallPanIsDebounced(t *testing.T) {
	tr := newTracker(&recordingSink{})
	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000})

	// 50ms pan: inside the window, outside the 100ms guard margin
	if tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1050, End: 2050}) {
		t.Fatal("small pan should not recompute")
	}
	if w := tr.Pane("p").RenderWindow; w.Start != 800 {
		t.Fatalf("window moved: %+v", w)
	}
	if v := tr.Pane("p").VisibleRange; v.Start != 1050 {
		t.Fatalf("visible range not stored: %+v", v)
	}
}

func TestUpdateRenderWindow_GuardMargin(t *testing.T) {
	tr := newTracker(&recordingSink{})
	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000})

	// 150ms pan leaves 50ms to the right edge, below the 100ms guard
	if !tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1150, End: 2150}) {
		t.Fatal("pan into guard margin should recompute")
	}
	if w := tr.Pane("p").RenderWindow; w.Start != 950 || w.End != 2350 {
		t.Fatalf("unexpected window %+v", w)
	}
}

func TestUpdateRenderWindow_Zoom(t *testing.T) {
	tr := newTracker(&recordingSink{})
	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000})

	if tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2010}) {
		t.Fatal("1% zoom is within tolerance")
	}
	if !tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1200, End: 1800}) {
		t.Fatal("zoom in should recompute")
	}
	if tr.Pane("p").BaseSpan != 600 {
		t.Fatalf("expected base span 600, got %d", tr.Pane("p").BaseSpan)
	}
}

func TestMaybeRequestDataWindow_Dedup(t *testing.T) {
	sink := &recordingSink{}
	tr := newTracker(sink)
	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000})

	if !tr.MaybeRequestDataWindow("p") {
		t.Fatal("expected a request")
	}
	if tr.MaybeRequestDataWindow("p") {
		t.Fatal("second call with the same target must not emit")
	}
	if len(sink.requests) != 1 {
		t.Fatalf("expected 1 request event, got %d", len(sink.requests))
	}
	req := sink.requests[0]
	if req.PaneID != "p" || req.Range.Start != 800 || req.Range.End != 2200 || req.PrefetchRatio != 0.2 {
		t.Errorf("unexpected request %+v", req)
	}
	if req.ID == "" {
		t.Error("expected request id")
	}
}

func TestMaybeRequestDataWindow_CoveredClearsPending(t *testing.T) {
	sink := &recordingSink{}
	tr := newTracker(sink)
	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000})
	tr.MaybeRequestDataWindow("p")

	tr.UpdateDataWindowCoverage("p", []*models.MTimeRange{{Start: 0, End: 5000}})
	if tr.Pane("p").PendingDataWindow != nil {
		t.Fatal("coverage should clear the pending request")
	}
	if tr.MaybeRequestDataWindow("p") {
		t.Fatal("covered target must not emit")
	}
	if len(sink.requests) != 1 || len(sink.diagnostics) != 0 {
		t.Fatalf("unexpected events: %d requests, %d diagnostics", len(sink.requests), len(sink.diagnostics))
	}
}

func TestMaybeRequestDataWindow_SupersededTargetEmits(t *testing.T) {
	sink := &recordingSink{}
	tr := newTracker(sink)
	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000})
	tr.MaybeRequestDataWindow("p")

	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 5000, End: 6000})
	if !tr.MaybeRequestDataWindow("p") {
		t.Fatal("new target should emit")
	}
	if len(sink.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(sink.requests))
	}
}

func TestUpdateDataWindowCoverage_IncompleteWarnsOnce(t *testing.T) {
	sink := &recordingSink{}
	tr := newTracker(sink)
	tr.UpdateRenderWindow("p", models.MTimeRange{Start: 1000, End: 2000})
	tr.MaybeRequestDataWindow("p")

	short := []*models.MTimeRange{{Start: 900, End: 1500}}
	tr.UpdateDataWindowCoverage("p", short)
	tr.UpdateDataWindowCoverage("p", short)

	if len(sink.diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(sink.diagnostics))
	}
	d := sink.diagnostics[0]
	if d.Code != models.DiagDataWindowIncomplete || d.Severity != models.SeverityWarn {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if tr.Pane("p").PendingDataWindow == nil {
		t.Error("pending request should survive an incomplete delivery")
	}
}

func TestUpdateDataWindowCoverage_Intersection(t *testing.T) {
	tr := newTracker(&recordingSink{})
	tr.Attach("p", "a", 800)
	tr.UpdateDataWindowCoverage("p", []*models.MTimeRange{{Start: 0, End: 100}, {Start: 50, End: 200}})
	c := tr.Pane("p").DataWindowCoverage
	if c == nil || c.Start != 50 || c.End != 100 {
		t.Fatalf("unexpected coverage %+v", c)
	}

	tr.UpdateDataWindowCoverage("p", []*models.MTimeRange{{Start: 0, End: 100}, nil})
	if tr.Pane("p").DataWindowCoverage != nil {
		t.Fatal("an empty series should clear coverage")
	}
}

func TestAttach_PanesShowing(t *testing.T) {
	tr := newTracker(&recordingSink{})
	tr.Attach("b", "s1", 400)
	tr.Attach("a", "s1", 0)
	tr.Attach("a", "s1", 0)

	got := tr.PanesShowing("s1")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected panes %v", got)
	}
	if len(tr.Pane("a").Series) != 1 {
		t.Errorf("attach should be idempotent")
	}
	tr.Detach("s1")
	if len(tr.PanesShowing("s1")) != 0 {
		t.Error("detach should remove the series everywhere")
	}
}
