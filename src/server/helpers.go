package server

import (
	"fmt"
	"strconv"

	"lod-engine/src/helpers"
	"lod-engine/src/models"

	"github.com/gin-gonic/gin"
)

const (
	frameType      = "FRAME"
	diagnosticType = "DIAGNOSTIC"
	defaultPane    = "main"
)

type visibleRequest struct {
	Start   *int64 `json:"start"`
	End     *int64 `json:"end"`
	WidthPx int    `json:"width_px"`
}

type replayRequest struct {
	Cutoff *int64 `json:"cutoff"` // null disables replay
}

// -----------------------------------------------------------------------------

func (v visibleRequest) timeRange() (models.MTimeRange, error) {
	if v.Start == nil || v.End == nil {
		return models.MTimeRange{}, helpers.NewValidationError("start and end are required")
	}
	return checkedRange(*v.Start, *v.End)
}

// -----------------------------------------------------------------------------

func checkedRange(start, end int64) (models.MTimeRange, error) {
	if end < start {
		return models.MTimeRange{}, helpers.NewValidationError("end %d is before start %d", end, start)
	}
	return models.MTimeRange{Start: start, End: end}, nil
}

// -----------------------------------------------------------------------------

func queryInt64(c *gin.Context, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, helpers.NewValidationError("missing query parameter %s", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, helpers.NewValidationError("invalid %s: %v", key, err)
	}
	return v, nil
}

// -----------------------------------------------------------------------------

func describe(payload interface{}) string {
	return fmt.Sprintf("%T", payload)
}
