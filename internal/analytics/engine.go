// Package analytics serves the windowed rollups used by dashboards:
// bucketed historical series and current-vs-previous period trends.
// Read-only against the reading store.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// stableBandPct is the |pct_change| below which a trend reads "stable".
const stableBandPct = 2.0

// Store is the slice of the reading store the engine needs. Satisfied
// by *storage.Repository.
type Store interface {
	BucketMeans(ctx context.Context, scope contracts.AggregationScope, kind contracts.SensorKind, from, to time.Time, bucket time.Duration) ([]contracts.SeriesPoint, error)
	MeanValue(ctx context.Context, scope contracts.AggregationScope, kind contracts.SensorKind, from, to time.Time) (float64, int64, error)
}

type Engine struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// HistoricalSeries returns the bucketed means for one kind over the
// window's rolling period, oldest bucket first. Empty buckets are
// absent from the result.
func (e *Engine) HistoricalSeries(ctx context.Context, scope contracts.AggregationScope, kind contracts.SensorKind, window contracts.Window) ([]contracts.SeriesPoint, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("series scope must name exactly one zone or building")
	}
	to := e.now().UTC()
	from := to.Add(-window.Period())
	return e.store.BucketMeans(ctx, scope, kind, from, to, window.Bucket())
}

// Trend compares the window's current period against the immediately
// preceding period of equal length. An empty or zero-mean previous
// period yields pct_change 0 and direction stable; no errors for
// missing data.
func (e *Engine) Trend(ctx context.Context, scope contracts.AggregationScope, kind contracts.SensorKind, window contracts.Window) (contracts.Trend, error) {
	if !scope.Valid() {
		return contracts.Trend{}, fmt.Errorf("trend scope must name exactly one zone or building")
	}

	now := e.now().UTC()
	period := window.Period()
	currentFrom := now.Add(-period)
	previousFrom := now.Add(-2 * period)

	currentMean, _, err := e.store.MeanValue(ctx, scope, kind, currentFrom, now)
	if err != nil {
		return contracts.Trend{}, fmt.Errorf("current period mean: %w", err)
	}
	previousMean, previousSamples, err := e.store.MeanValue(ctx, scope, kind, previousFrom, currentFrom)
	if err != nil {
		return contracts.Trend{}, fmt.Errorf("previous period mean: %w", err)
	}

	trend := contracts.Trend{
		CurrentMean:  round2(currentMean),
		PreviousMean: round2(previousMean),
		Direction:    contracts.TrendStable,
	}
	if previousSamples == 0 || previousMean == 0 {
		return trend, nil
	}

	pct := (currentMean - previousMean) / previousMean * 100
	trend.PctChange = round2(pct)
	switch {
	case math.Abs(pct) < stableBandPct:
		trend.Direction = contracts.TrendStable
	case pct > 0:
		trend.Direction = contracts.TrendUp
	default:
		trend.Direction = contracts.TrendDown
	}
	return trend, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
