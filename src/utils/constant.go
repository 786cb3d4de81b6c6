package utils

import "math"

// -----------------------------------------------------------------------------

// A regular session of 6.5 hours holds 390 one-minute bars, rounded up to 400.
// Markets without a calendar (symbol left empty) trade around the clock.
const (
	DefaultSeedDays        = 7
	SessionPointsPerDay    = 400
	ContinuousPointsPerDay = 1440
	MinuteMs               = int64(60_000)
)

// -----------------------------------------------------------------------------

// CalculateMaxDataPoints estimates the bars a seed run produces for days.
func CalculateMaxDataPoints(days int, continuous bool) int {
	perDay := SessionPointsPerDay
	if continuous {
		perDay = ContinuousPointsPerDay
	}
	return int(math.Ceil(float64(days) * float64(perDay)))
}
