package models

import "time"

// MLodLevel is the detail level selected for a series.
type MLodLevel string

const (
	LodCoarse MLodLevel = "coarse"
	LodFine   MLodLevel = "fine"
)

// MLodPolicy holds the per-kind points-per-pixel budgets.
type MLodPolicy struct {
	CoarsePointsPerPixel float64 `json:"coarse_points_per_pixel"`
	FinePointsPerPixel   float64 `json:"fine_points_per_pixel"`
	HysteresisRatio      float64 `json:"hysteresis_ratio"`
}

// MLodSelection is the result of one level selection.
type MLodSelection struct {
	Level          MLodLevel `json:"level"`
	PointsPerPixel float64   `json:"points_per_pixel"`
	MaxPoints      int       `json:"max_points"`
	Density        float64   `json:"density"`
	Threshold      float64   `json:"threshold"`
}

// MLodState is kept per series and only rewritten when the level changes.
type MLodState struct {
	Level          MLodLevel `json:"level"`
	Density        float64   `json:"density"`
	PointsPerPixel float64   `json:"points_per_pixel"`
	UpdatedAt      time.Time `json:"updated_at"`
}
