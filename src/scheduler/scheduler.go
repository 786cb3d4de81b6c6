package scheduler

import (
	"context"
	"fmt"
	"time"

	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/models"
	"lod-engine/src/utils"

	"github.com/robfig/cron/v3"
)

const (
	// bars fetched per series and tick
	tailLimit = 1000
	// how far back an empty series starts its tail
	emptyTailLookback = time.Hour
)

// Engine is what the scheduled jobs drive
type Engine interface {
	Snapshot(seriesID string) (*models.MSeriesSnapshot, bool)
	MergeBars(seriesID string, bars []models.MBar) (bool, error)
	PanesShowing(seriesID string) []string
	RenderPane(paneID string) []*models.MDecimatedSeries
	Stats() models.MRenderStats
}

// -----------------------------------------------------------------------------
// Scheduler runs the periodic jobs: polling new bars at the tail of each
// series while its market is open, and logging engine statistics.
// -----------------------------------------------------------------------------

type Scheduler struct {
	Cron      *cron.Cron
	Engine    Engine
	Source    interfaces.IBarSource
	Exchanger interfaces.IDataExchanger
	Series    []models.MSeriesConfig
	Logger    *logger.Logger
	Ctx       context.Context
	calendars map[string]*utils.TradingCalendar
	now       func() time.Time
}

// -----------------------------------------------------------------------------

// NewScheduler creates a Scheduler. exchanger may be nil.
func NewScheduler(ctx context.Context, eng Engine, source interfaces.IBarSource, exchanger interfaces.IDataExchanger, series []models.MSeriesConfig, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewLogger(nil, "Scheduler")
	}
	cals := make(map[string]*utils.TradingCalendar, len(series))
	for _, sc := range series {
		cals[sc.ID] = utils.GetCalendar(sc.Symbol)
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Engine:    eng,
		Source:    source,
		Exchanger: exchanger,
		Series:    series,
		Logger:    log,
		Ctx:       ctx,
		calendars: cals,
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

// RegisterAll registers the tail and stats jobs. An empty cron expression disables a job.
func (s *Scheduler) RegisterAll(tailCron, statsCron string) error {
	if tailCron != "" {
		if _, err := s.Cron.AddFunc(tailCron, func() { s.RunTailNow() }); err != nil {
			return fmt.Errorf("register tail task: %w", err)
		}
	}
	if statsCron != "" {
		if _, err := s.Cron.AddFunc(statsCron, s.statsTask); err != nil {
			return fmt.Errorf("register stats task: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("Scheduler started")
}

// -----------------------------------------------------------------------------

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("Scheduler stopped")
}

// -----------------------------------------------------------------------------

// RunTailNow polls every open series once, re-renders the panes that
// changed and pushes their frames. Returns the number of merged bars.
func (s *Scheduler) RunTailNow() int {
	now := s.now()
	dirty := make(map[string]bool)
	total := 0

	for _, sc := range s.Series {
		if cal := s.calendars[sc.ID]; !cal.IsOpenOnMinute(now) {
			s.Logger.Debug("Market closed for %s, skipping tail", sc.ID)
			continue
		}

		snap, ok := s.Engine.Snapshot(sc.ID)
		if !ok {
			s.Logger.Debug("Series %s is not defined, skipping tail", sc.ID)
			continue
		}
		after := now.Add(-emptyTailLookback).UnixMilli()
		if snap.Len() > 0 {
			after = snap.Times[snap.Len()-1]
		}

		bars, err := s.Source.FetchAfter(s.Ctx, sc.ID, after, tailLimit)
		if err != nil {
			s.Logger.Error("Tail fetch for %s failed: %v", sc.ID, err)
			continue
		}
		if len(bars) == 0 {
			continue
		}
		changed, err := s.Engine.MergeBars(sc.ID, bars)
		if err != nil {
			s.Logger.Error("Merging tail of %s failed: %v", sc.ID, err)
			continue
		}
		if changed {
			total += len(bars)
			for _, p := range s.Engine.PanesShowing(sc.ID) {
				dirty[p] = true
			}
		}
	}

	for paneID := range dirty {
		out := s.Engine.RenderPane(paneID)
		if s.Exchanger != nil {
			s.Exchanger.Broadcast(models.MRenderFrame{
				Type:      "FRAME",
				PaneID:    paneID,
				Series:    out,
				Timestamp: now.UnixMilli(),
			})
		}
	}
	if total > 0 {
		s.Logger.Info("Tail merged %d bars, %d pane(s) re-rendered", total, len(dirty))
	}
	return total
}

// -----------------------------------------------------------------------------

func (s *Scheduler) statsTask() {
	st := s.Engine.Stats()
	s.Logger.Info("series=%d points=%d hits=%d/%d misses=%d evictions=%d requests=%d frames=%d (mean %.2fms, max %.2fms, %d over budget recently)",
		st.SeriesCount, st.TotalPoints, st.Tier1Hits, st.Tier2Hits, st.Misses, st.Evictions,
		st.DataWindowRequests, st.Frames, st.FrameMeanMs, st.FrameMaxMs, st.RecentOverBudget)
}
