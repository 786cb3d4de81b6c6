package analysis

import (
	"math"

	"lod-engine/src/models"
)

// Hysteresis bounds
const (
	MinHysteresisRatio     = 0.05
	MaxHysteresisRatio     = 0.5
	DefaultHysteresisRatio = 0.15
)

// -----------------------------------------------------------------------------

// ClampHysteresis keeps the ratio inside [0.05, 0.5]
func ClampHysteresis(ratio float64) float64 {
	if math.IsNaN(ratio) {
		return DefaultHysteresisRatio
	}
	if ratio < MinHysteresisRatio {
		return MinHysteresisRatio
	}
	if ratio > MaxHysteresisRatio {
		return MaxHysteresisRatio
	}
	return ratio
}

// -----------------------------------------------------------------------------

// PolicyFor returns the points-per-pixel budgets of a series kind.
// Bars (candles, histogram) need more horizontal room per sample than lines.
func PolicyFor(kind models.MSeriesKind, hysteresis float64) models.MLodPolicy {
	policy := models.MLodPolicy{
		CoarsePointsPerPixel: 1.0,
		FinePointsPerPixel:   2.0,
		HysteresisRatio:      ClampHysteresis(hysteresis),
	}
	if kind == models.SeriesCandles || kind == models.SeriesHistogram {
		policy.CoarsePointsPerPixel = 0.5
		policy.FinePointsPerPixel = 1.0
	}
	return policy
}

// -----------------------------------------------------------------------------

// SelectLevel picks the detail level for the visible density.
//
// Without a previous level the threshold splits coarse from fine directly.
// With one, the decision behaves like a Schmitt trigger: coarse is only left
// below threshold*(1-h) and fine is only left at or above threshold*(1+h).
func SelectLevel(visibleCount int, paneWidthPx int, policy models.MLodPolicy, previous *models.MLodLevel) models.MLodSelection {
	width := paneWidthPx
	if width < 1 {
		width = 1
	}
	density := float64(visibleCount) / float64(width)
	threshold := (policy.CoarsePointsPerPixel + policy.FinePointsPerPixel) / 2
	h := ClampHysteresis(policy.HysteresisRatio)

	var level models.MLodLevel
	switch {
	case previous == nil:
		level = models.LodFine
		if density >= threshold {
			level = models.LodCoarse
		}
	case *previous == models.LodCoarse:
		level = models.LodCoarse
		if density < threshold*(1-h) {
			level = models.LodFine
		}
	default:
		level = models.LodFine
		if density >= threshold*(1+h) {
			level = models.LodCoarse
		}
	}

	ppx := policy.FinePointsPerPixel
	if level == models.LodCoarse {
		ppx = policy.CoarsePointsPerPixel
	}

	maxPoints := int(math.Floor(float64(width) * ppx))
	if maxPoints < 2 {
		maxPoints = 2
	}

	return models.MLodSelection{
		Level:          level,
		PointsPerPixel: ppx,
		MaxPoints:      maxPoints,
		Density:        density,
		Threshold:      threshold,
	}
}

// -----------------------------------------------------------------------------

// ScaleMaxPoints grows the budget by renderSpan/visibleSpan so the prefetch
// margin carries as many points per unit of time as the visible part.
func ScaleMaxPoints(maxPoints int, renderSpan, visibleSpan int64) int {
	if visibleSpan <= 0 || renderSpan <= visibleSpan {
		return maxPoints
	}
	ratio := float64(renderSpan) / float64(visibleSpan)
	return int(math.Ceil(float64(maxPoints) * ratio))
}
