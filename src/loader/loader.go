package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lod-engine/src/helpers"
	"lod-engine/src/interfaces"
	"lod-engine/src/logger"
	"lod-engine/src/metrics"
	"lod-engine/src/models"
	"lod-engine/src/series"
)

const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 200
)

// Target is the part of the engine the loader feeds
type Target interface {
	PaneSeries(paneID string) []string
	Snapshot(seriesID string) (*models.MSeriesSnapshot, bool)
	MergeBarsBatch(batch map[string][]models.MBar) (int, error)
	RefreshCoverage(paneID string)
}

// -----------------------------------------------------------------------------
// WindowLoader answers data-window requests: it fetches the part of the
// requested range each series is missing and merges it into the engine.
// Retries live here; the engine never retries.
// -----------------------------------------------------------------------------

type WindowLoader struct {
	Source     interfaces.IBarSource
	Target     Target
	Logger     *logger.Logger
	metrics    *metrics.Metrics
	maxRetries int
	retryDelay time.Duration
	workers    int
}

// -----------------------------------------------------------------------------

func NewWindowLoader(cfg models.MLoaderConfig, source interfaces.IBarSource, target Target, m *metrics.Metrics, log *logger.Logger) *WindowLoader {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = DefaultRetryDelayMs
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.NewLogger(nil, "WindowLoader")
	}
	return &WindowLoader{
		Source:     source,
		Target:     target,
		Logger:     log,
		metrics:    m,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		workers:    cfg.Workers,
	}
}

// -----------------------------------------------------------------------------

// Start launches the workers. They stop when ctx is cancelled or requests is closed.
// wg: WaitGroup signalled once every worker has returned
func (l *WindowLoader) Start(ctx context.Context, requests <-chan models.MDataWindowRequest, wg *sync.WaitGroup) error {
	if l.Source == nil || l.Target == nil {
		return fmt.Errorf("window loader needs a source and a target")
	}
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go l.run(ctx, i, requests, wg)
	}
	l.Logger.Info("Started %d loader worker(s) on %s", l.workers, l.Source.Name())
	return nil
}

func (l *WindowLoader) run(ctx context.Context, id int, requests <-chan models.MDataWindowRequest, wg *sync.WaitGroup) {
	defer wg.Done()
	errs := helpers.NewErrorHandler(fmt.Sprintf("WindowLoader-%d", id))

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			err := l.Handle(ctx, req)
			if errs.Handle(err, "request "+req.ID) {
				l.Logger.Error("Worker %d reached %d consecutive failures", id, errs.ErrorCount)
				errs.ResetErrorCount()
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Handle serves one request synchronously. Every series of the pane is
// merged in one batch, then coverage is re-evaluated even when nothing was
// delivered so that an under-delivery is reported.
func (l *WindowLoader) Handle(ctx context.Context, req models.MDataWindowRequest) error {
	defer l.Target.RefreshCoverage(req.PaneID)

	batch := make(map[string][]models.MBar)
	var firstErr error
	for _, seriesID := range l.Target.PaneSeries(req.PaneID) {
		bars, err := l.loadSeries(ctx, seriesID, req.Range)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if len(bars) > 0 {
			batch[seriesID] = bars
		}
	}
	if len(batch) == 0 {
		return firstErr
	}

	changed, err := l.Target.MergeBarsBatch(batch)
	if err != nil && firstErr == nil {
		firstErr = err
	}
	l.Logger.Debug("Request %s for pane %s updated %d series", req.ID, req.PaneID, changed)
	return firstErr
}

// loadSeries fetches every gap between the loaded extent and r
func (l *WindowLoader) loadSeries(ctx context.Context, seriesID string, r models.MTimeRange) ([]models.MBar, error) {
	snap, ok := l.Target.Snapshot(seriesID)
	if !ok {
		return nil, nil
	}

	var out []models.MBar
	for _, gap := range MissingRanges(series.Extent(snap), r) {
		op := fmt.Sprintf("fetch %s [%d, %d]", seriesID, gap.Start, gap.End)
		bars, err := helpers.RetryWithBackoff(ctx, l.Logger, op, l.maxRetries, l.retryDelay, func() ([]models.MBar, error) {
			return l.Source.FetchRange(ctx, seriesID, gap)
		})
		if err != nil {
			l.metrics.LoaderFetch("error")
			return out, err
		}
		if len(bars) == 0 {
			l.metrics.LoaderFetch("empty")
			continue
		}
		l.metrics.LoaderFetch("ok")
		out = append(out, bars...)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// MissingRanges returns the parts of want outside have. A nil have means
// nothing is loaded.
func MissingRanges(have *models.MTimeRange, want models.MTimeRange) []models.MTimeRange {
	if have == nil {
		return []models.MTimeRange{want}
	}
	if _, overlap := have.Intersect(want); !overlap {
		return []models.MTimeRange{want}
	}
	var out []models.MTimeRange
	if want.Start < have.Start {
		out = append(out, models.MTimeRange{Start: want.Start, End: have.Start - 1})
	}
	if want.End > have.End {
		out = append(out, models.MTimeRange{Start: have.End + 1, End: want.End})
	}
	return out
}
