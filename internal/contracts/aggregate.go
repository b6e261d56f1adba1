package contracts

import (
	"fmt"
	"time"
)

// AggregationScope selects either one zone or one building (all zones
// of that building). Exactly one field is set.
type AggregationScope struct {
	ZoneID     string `json:"zone_id,omitempty"`
	BuildingID string `json:"building_id,omitempty"`
}

func ZoneScope(zoneID string) AggregationScope         { return AggregationScope{ZoneID: zoneID} }
func BuildingScope(buildingID string) AggregationScope { return AggregationScope{BuildingID: buildingID} }

func (s AggregationScope) Valid() bool {
	return (s.ZoneID == "") != (s.BuildingID == "")
}

// Window is one of the fixed (period, bucket-width) pairs served to
// dashboards. Not persisted; evaluated against the reading store on
// demand.
type Window string

const (
	WindowDay   Window = "24h"
	WindowWeek  Window = "7d"
	WindowMonth Window = "30d"
)

var windowShape = map[Window]struct{ period, bucket time.Duration }{
	WindowDay:   {24 * time.Hour, time.Hour},
	WindowWeek:  {7 * 24 * time.Hour, 6 * time.Hour},
	WindowMonth: {30 * 24 * time.Hour, 24 * time.Hour},
}

func ParseWindow(raw string) (Window, error) {
	w := Window(raw)
	if _, ok := windowShape[w]; !ok {
		return "", fmt.Errorf("unknown aggregation window %q", raw)
	}
	return w, nil
}

func (w Window) Period() time.Duration { return windowShape[w].period }
func (w Window) Bucket() time.Duration { return windowShape[w].bucket }

// SeriesPoint is one non-empty bucket of a historical series. Buckets
// without readings are absent, not zero-filled.
type SeriesPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Mean        float64   `json:"mean_value"`
	Samples     int64     `json:"samples"`
}

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// Trend compares the current period's mean against the immediately
// preceding period of equal length.
type Trend struct {
	CurrentMean  float64        `json:"current_mean"`
	PreviousMean float64        `json:"previous_mean"`
	PctChange    float64        `json:"pct_change"`
	Direction    TrendDirection `json:"direction"`
}
