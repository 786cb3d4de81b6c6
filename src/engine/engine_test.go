package engine

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

func (s *recordingSink) count(code string) int {
	n := 0
	for _, d := range s.diagnostics {
		if d.Code == code {
			n++
		}
	}
	return n
}

func newEngine(t *testing.T, sink *recordingSink) *Engine {
	t.Helper()
	logger.SetOutput(io.Discard)
	e, err := New(models.MEngineConfig{
		PrefetchRatio:      0.2,
		LodHysteresisRatio: 0.15,
		LodCacheEntries:    16,
	}, sink, nil, logger.NewLogger(nil, "test"))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func lineBars(n int, step int64) []models.MBar {
	bars := make([]models.MBar, n)
	for i := range bars {
		bars[i] = models.MBar{Time: int64(i) * step, Value: float64(i % 17)}
	}
	return bars
}

func TestGetOrBuildRenderSeries_Idempotent(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", lineBars(10000, 1))
	e.AttachSeries("p", "s", 100)
	e.SetVisibleRange("p", models.MTimeRange{Start: 0, End: 9999})

	first, ok := e.GetOrBuildRenderSeries("s", "p")
	if !ok {
		t.Fatal("expected output")
	}
	second, _ := e.GetOrBuildRenderSeries("s", "p")
	if first != second {
		t.Fatal("expected the memoized output")
	}

	st := e.Stats()
	if st.Misses != 1 || st.Tier1Hits != 1 || st.Tier2Hits != 0 {
		t.Fatalf("unexpected counters %+v", st)
	}
	if first.Len() > first.MaxPoints || first.Len()%2 != 0 {
		t.Errorf("output of %d points exceeds budget %d or is odd", first.Len(), first.MaxPoints)
	}
	if first.SourceCount != 10000 {
		t.Errorf("expected every raw point in the render window, got %d", first.SourceCount)
	}
}

func TestGetOrBuildRenderSeries_VersionBumpMisses(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", lineBars(1000, 1))
	e.AttachSeries("p", "s", 100)
	e.SetVisibleRange("p", models.MTimeRange{Start: 0, End: 999})

	before, _ := e.GetOrBuildRenderSeries("s", "p")
	e.PatchData("s", []models.MBar{{Time: 10, Value: 500}})
	after, _ := e.GetOrBuildRenderSeries("s", "p")

	if before == after || after.Version != before.Version+1 {
		t.Fatalf("expected a rebuilt output at the next version")
	}
	if e.Stats().Misses != 2 {
		t.Errorf("expected 2 misses, got %d", e.Stats().Misses)
	}
}

func TestGetOrBuildRenderSeries_GlobalTierRecoversLevelToggle(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", lineBars(10000, 1))
	e.AttachSeries("p", "s", 100)
	e.SetVisibleRange("p", models.MTimeRange{Start: 0, End: 9999})

	narrow, _ := e.GetOrBuildRenderSeries("s", "p")
	e.SetPaneWidth("p", 200)
	wide, _ := e.GetOrBuildRenderSeries("s", "p")
	e.SetPaneWidth("p", 100)
	again, _ := e.GetOrBuildRenderSeries("s", "p")

	if narrow == wide {
		t.Fatal("different widths must not share output")
	}
	if again != narrow {
		t.Fatal("expected the narrow output back from the global tier")
	}
	st := e.Stats()
	if st.Misses != 2 || st.Tier2Hits != 1 {
		t.Fatalf("unexpected counters %+v", st)
	}
}

func TestGetOrBuildRenderSeries_NoData(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("s", models.SeriesLine)
	e.AttachSeries("p", "s", 100)

	if _, ok := e.GetOrBuildRenderSeries("s", "p"); ok {
		t.Fatal("empty series should have no output")
	}

	e.SetData("s", lineBars(10, 1))
	e.SetVisibleRange("p", models.MTimeRange{Start: 1000, End: 2000})
	if _, ok := e.GetOrBuildRenderSeries("s", "p"); ok {
		t.Fatal("window without samples should have no output")
	}
	if _, ok := e.GetOrBuildRenderSeries("missing", "p"); ok {
		t.Fatal("unknown series should have no output")
	}
}

func TestLodLevelChange_EmitsDiagnostic(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", lineBars(100, 10))
	e.AttachSeries("p", "s", 100)
	e.SetVisibleRange("p", models.MTimeRange{Start: 0, End: 990})

	out, _ := e.GetOrBuildRenderSeries("s", "p")
	if out.Level != models.LodFine {
		t.Fatalf("expected fine level, got %s", out.Level)
	}
	if sink.count(models.DiagLodLevelChanged) != 0 {
		t.Fatal("first selection must be silent")
	}

	e.SetData("s", lineBars(1000, 1))
	out, _ = e.GetOrBuildRenderSeries("s", "p")
	if out.Level != models.LodCoarse {
		t.Fatalf("expected coarse level, got %s", out.Level)
	}
	e.GetOrBuildRenderSeries("s", "p")

	if n := sink.count(models.DiagLodLevelChanged); n != 1 {
		t.Fatalf("expected 1 level change diagnostic, got %d", n)
	}
	if st, ok := e.LodState("p", "s"); !ok || st.Level != models.LodCoarse {
		t.Errorf("unexpected lod state %+v", st)
	}
}

func TestReplayCutoff_ClipsOutputAndNearest(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", lineBars(100, 10))
	e.AttachSeries("p", "s", 800)
	e.SetVisibleRange("p", models.MTimeRange{Start: 0, End: 990})

	cutoff := int64(500)
	e.SetReplayCutoff(&cutoff)
	out, ok := e.GetOrBuildRenderSeries("s", "p")
	if !ok {
		t.Fatal("expected output")
	}
	if last := out.Times[len(out.Times)-1]; last != 500 {
		t.Fatalf("expected output to stop at the cutoff, got %d", last)
	}

	bar, ok := e.NearestPoint("s", 900)
	if !ok || bar.Time != 500 {
		t.Fatalf("expected snap to 500, got %+v", bar)
	}

	e.SetReplayCutoff(nil)
	bar, _ = e.NearestPoint("s", 903)
	if bar.Time != 900 {
		t.Fatalf("expected snap to 900 without replay, got %d", bar.Time)
	}
}

func TestSetVisibleRange_RequestsUncoveredWindowOnce(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", lineBars(100, 10))
	e.AttachSeries("p", "s", 100)

	e.SetVisibleRange("p", models.MTimeRange{Start: 0, End: 990})
	e.SetVisibleRange("p", models.MTimeRange{Start: 5, End: 995})
	if len(sink.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(sink.requests))
	}

	req := sink.requests[0]
	changed, err := e.MergeBars("s", []models.MBar{{Time: req.Range.Start}, {Time: req.Range.End}})
	if err != nil || !changed {
		t.Fatalf("merge failed: %v", err)
	}
	st, _ := e.PaneState("p")
	if st.PendingDataWindow != nil {
		t.Fatal("delivery covering the target should clear the pending request")
	}
	if sink.count(models.DiagDataWindowIncomplete) != 0 {
		t.Fatal("complete delivery must not warn")
	}
}

func TestRenderPane_RecordsFrames(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("a", models.SeriesLine)
	e.DefineSeries("c", models.SeriesCandles)
	e.SetData("a", lineBars(500, 1))
	e.SetData("c", []models.MBar{{Time: 0, Open: 1, High: 2, Low: 0, Close: 1, Volume: 10}})
	e.AttachSeries("p", "a", 100)
	e.AttachSeries("p", "c", 100)

	out := e.RenderPane("p")
	if len(out) != 2 {
		t.Fatalf("expected 2 series, got %d", len(out))
	}
	st := e.Stats()
	if st.Frames != 1 || st.SeriesCount != 2 || st.TotalPoints != 501 {
		t.Errorf("unexpected stats %+v", st)
	}
	if e.RenderPane("unknown") != nil {
		t.Error("unknown pane should render nothing")
	}
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	logger.SetOutput(io.Discard)
	s := NewChannelSink(1, nil, logger.NewLogger(nil, "test"))
	s.EmitDiagnostic(models.MDiagnostic{Code: "a"})
	s.EmitDiagnostic(models.MDiagnostic{Code: "b"})

	if s.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", s.Dropped())
	}
	if d := <-s.Diagnostics; d.Code != "a" {
		t.Errorf("expected first event kept, got %s", d.Code)
	}
}

func constBars(n int, v float64) []models.MBar {
	bars := make([]models.MBar, n)
	for i := range bars {
		bars[i] = models.MBar{Time: int64(i), Value: v}
	}
	return bars
}

func TestRemoveSeries_RedefinedSeriesNeverServesOldOutput(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", constBars(1000, 1))
	e.AttachSeries("p", "s", 100)
	e.SetVisibleRange("p", models.MTimeRange{Start: 0, End: 999})
	old, _ := e.GetOrBuildRenderSeries("s", "p")

	if !e.RemoveSeries("s") {
		t.Fatal("expected the series to be removed")
	}
	if e.RemoveSeries("s") {
		t.Fatal("second removal should report an unknown series")
	}
	if panes := e.PanesShowing("s"); len(panes) != 0 {
		t.Fatalf("series still attached to %v", panes)
	}

	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", constBars(1000, 42))
	e.AttachSeries("p", "s", 100)
	fresh, ok := e.GetOrBuildRenderSeries("s", "p")
	if !ok {
		t.Fatal("expected output")
	}

	if fresh == old || fresh.Version <= old.Version {
		t.Fatalf("redefined series reused version %d (old %d)", fresh.Version, old.Version)
	}
	if v := fresh.Fields[models.FieldValue][0]; v != 42 {
		t.Fatalf("stale output served: value %v", v)
	}
	if st := e.Stats(); st.Tier2Hits != 0 || st.Misses != 2 {
		t.Fatalf("unexpected counters %+v", st)
	}
}

func TestReset_DropsSeriesAndCaches(t *testing.T) {
	e := newEngine(t, &recordingSink{})
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", constBars(1000, 1))
	e.AttachSeries("p", "s", 100)
	e.RenderPane("p")
	cutoff := int64(500)
	e.SetReplayCutoff(&cutoff)

	e.Reset()

	st := e.Stats()
	if st.SeriesCount != 0 || st.GlobalEntries != 0 || st.FrameMaxMs != 0 {
		t.Fatalf("reset left state behind: %+v", st)
	}
	if e.ReplayCutoff() != nil || len(e.PaneSeries("p")) != 0 {
		t.Fatal("reset should clear the cutoff and detach series")
	}

	e.DefineSeries("s", models.SeriesLine)
	snap, _ := e.Snapshot("s")
	if snap.Version <= 2 {
		t.Fatalf("version restarted at %d after reset", snap.Version)
	}
}
