package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"lod-engine/src/models"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Default image size
const (
	DefaultWidth  = 1024
	DefaultHeight = 400
)

var palette = map[string]drawing.Color{
	models.FieldValue: {R: 33, G: 150, B: 243, A: 255},
	models.FieldClose: {R: 33, G: 150, B: 243, A: 255},
	models.FieldHigh:  {R: 76, G: 175, B: 80, A: 255},
	models.FieldLow:   {R: 244, G: 67, B: 54, A: 255},
}

// -----------------------------------------------------------------------------

// WritePNG draws a decimated series as a line chart. Candles plot high, low and close.
func WritePNG(w io.Writer, s *models.MDecimatedSeries, width, height int) error {
	if s.Len() == 0 {
		return fmt.Errorf("series %s has no points to draw", s.SeriesID)
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	fields := []string{models.FieldValue}
	if s.Kind == models.SeriesCandles {
		fields = []string{models.FieldHigh, models.FieldLow, models.FieldClose}
	}

	times := make([]time.Time, len(s.Times))
	for i, t := range s.Times {
		times[i] = time.UnixMilli(t).UTC()
	}

	var series []chart.Series
	for _, name := range fields {
		ys := s.Fields[name]
		if len(ys) != len(times) {
			continue
		}
		xs := times
		// go-chart needs two points to compute a range
		if len(xs) == 1 {
			xs = []time.Time{times[0], times[0].Add(time.Second)}
			ys = []float64{ys[0], ys[0]}
		}
		series = append(series, chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: palette[name], StrokeWidth: 1.5},
		})
	}
	if len(series) == 0 {
		return fmt.Errorf("series %s has no drawable fields", s.SeriesID)
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s (%s, %d/%d points)", s.SeriesID, s.Level, s.Len(), s.SourceCount),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 24}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04")},
		YAxis:      chart.YAxis{Name: s.SeriesID},
		Series:     series,
	}
	if lo, hi := valueBounds(s, fields); lo == hi {
		// flat data: go-chart rejects a zero y range
		ch.YAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", s.SeriesID, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func valueBounds(s *models.MDecimatedSeries, fields []string) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, name := range fields {
		for _, v := range s.Fields[name] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}
