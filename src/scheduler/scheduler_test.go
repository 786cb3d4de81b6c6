package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"lod-engine/src/engine"
	"lod-engine/src/logger"
	"lod-engine/src/models"
)

type tailSource struct {
	bars  []models.MBar
	calls int
}

func (s *tailSource) Name() string { return "tail" }

func (s *tailSource) FetchRange(ctx context.Context, seriesID string, r models.MTimeRange) ([]models.MBar, error) {
	return nil, nil
}

func (s *tailSource) FetchAfter(ctx context.Context, seriesID string, after int64, limit int) ([]models.MBar, error) {
	s.calls++
	var out []models.MBar
	for _, b := range s.bars {
		if b.Time > after {
			out = append(out, b)
		}
	}
	return out, nil
}

type recordingExchanger struct {
	frames []models.MRenderFrame
}

func (r *recordingExchanger) Broadcast(payload interface{}) {
	if f, ok := payload.(models.MRenderFrame); ok {
		r.frames = append(r.frames, f)
	}
}
func (r *recordingExchanger) Start() error { return nil }
func (r *recordingExchanger) Stop() error  { return nil }

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	logger.SetOutput(io.Discard)
	e, err := engine.New(models.MEngineConfig{}, nil, nil, logger.NewLogger(nil, "test"))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRunTailNow_AppendsAndBroadcasts(t *testing.T) {
	e := newEngine(t)
	e.DefineSeries("s", models.SeriesLine)
	e.SetData("s", []models.MBar{{Time: 1000, Value: 1}})
	e.AttachSeries("main", "s", 100)

	src := &tailSource{bars: []models.MBar{{Time: 1000, Value: 1}, {Time: 2000, Value: 2}, {Time: 3000, Value: 3}}}
	ex := &recordingExchanger{}
	s := NewScheduler(context.Background(), e, src, ex, []models.MSeriesConfig{{ID: "s"}}, logger.NewLogger(nil, "test"))

	if n := s.RunTailNow(); n != 2 {
		t.Fatalf("expected 2 bars merged, got %d", n)
	}
	snap, _ := e.Snapshot("s")
	if snap.Len() != 3 {
		t.Fatalf("expected 3 points, got %d", snap.Len())
	}
	if len(ex.frames) != 1 || ex.frames[0].PaneID != "main" || len(ex.frames[0].Series) != 1 {
		t.Fatalf("unexpected frames %+v", ex.frames)
	}

	if n := s.RunTailNow(); n != 0 {
		t.Fatalf("second poll should find nothing, got %d", n)
	}
}

func TestRunTailNow_SkipsClosedMarket(t *testing.T) {
	e := newEngine(t)
	e.DefineSeries("aapl", models.SeriesLine)

	src := &tailSource{bars: []models.MBar{{Time: 1}}}
	s := NewScheduler(context.Background(), e, src, nil, []models.MSeriesConfig{{ID: "aapl", Symbol: "AAPL"}}, logger.NewLogger(nil, "test"))
	s.now = func() time.Time { return time.Date(2025, 3, 8, 15, 0, 0, 0, time.UTC) } // Saturday

	if n := s.RunTailNow(); n != 0 {
		t.Fatalf("closed market should not poll, got %d", n)
	}
}

func TestRunTailNow_SkipsRemovedSeries(t *testing.T) {
	e := newEngine(t)
	e.DefineSeries("s", models.SeriesLine)
	e.AttachSeries("main", "s", 100)
	e.RemoveSeries("s")

	src := &tailSource{bars: []models.MBar{{Time: 1000, Value: 1}}}
	s := NewScheduler(context.Background(), e, src, nil, []models.MSeriesConfig{{ID: "s"}}, logger.NewLogger(nil, "test"))

	if n := s.RunTailNow(); n != 0 || src.calls != 0 {
		t.Fatalf("removed series should not be polled: merged %d, fetches %d", n, src.calls)
	}
}

func TestRegisterAll_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), newEngine(t), &tailSource{}, nil, nil, nil)
	if err := s.RegisterAll("not a cron", ""); err == nil {
		t.Fatal("expected an error")
	}
	if err := s.RegisterAll("@every 5s", "@every 1m"); err != nil {
		t.Fatal(err)
	}
	if len(s.Cron.Entries()) != 2 {
		t.Errorf("expected 2 entries, got %d", len(s.Cron.Entries()))
	}
}
