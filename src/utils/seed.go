package utils

import (
	"math"
	"math/rand"
	"time"

	"lod-engine/src/models"
)

// -----------------------------------------------------------------------------

// SeedGenerator produces random-walk minute bars, skipping minutes in which
// the series' market is closed.
type SeedGenerator struct {
	Calendar *TradingCalendar
	rng      *rand.Rand
	last     float64
}

// -----------------------------------------------------------------------------

func NewSeedGenerator(symbol string, seed int64) *SeedGenerator {
	return &SeedGenerator{
		Calendar: GetCalendar(symbol),
		rng:      rand.New(rand.NewSource(seed)),
		last:     100,
	}
}

// -----------------------------------------------------------------------------

// Generate returns bars for every open minute in [from, to).
func (g *SeedGenerator) Generate(from, to time.Time) []models.MBar {
	start := from.Truncate(time.Minute)
	var bars []models.MBar
	for t := start; t.Before(to); t = t.Add(time.Minute) {
		if !g.Calendar.IsOpenOnMinute(t) {
			continue
		}
		bars = append(bars, g.Next(t.UnixMilli()))
	}
	return bars
}

// -----------------------------------------------------------------------------

// Next builds one bar continuing the walk at time ts
func (g *SeedGenerator) Next(ts int64) models.MBar {
	open := g.last
	closePrice := math.Max(0.01, open*(1+g.rng.NormFloat64()*0.001))
	spread := math.Abs(g.rng.NormFloat64()) * open * 0.0005
	g.last = closePrice

	return models.MBar{
		Time:   ts,
		Open:   open,
		High:   math.Max(open, closePrice) + spread,
		Low:    math.Min(open, closePrice) - spread,
		Close:  closePrice,
		Volume: math.Round(1000 + g.rng.ExpFloat64()*500),
		Value:  closePrice,
	}
}
