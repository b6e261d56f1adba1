package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// Windowed read queries backing the aggregation engine. Building scope
// spans every zone of the building; zone scope a single zone. Both are
// read-only.

// BucketMeans groups readings of one kind into fixed-width buckets and
// returns the mean per bucket. Buckets with no readings produce no row.
func (r *Repository) BucketMeans(ctx context.Context, scope contracts.AggregationScope, kind contracts.SensorKind, from, to time.Time, bucket time.Duration) ([]contracts.SeriesPoint, error) {
	width := fmt.Sprintf("%d seconds", int64(bucket.Seconds()))

	rows, err := r.pool.Query(ctx, `
        SELECT date_bin($1::interval, captured_at, TIMESTAMPTZ '2000-01-01') AS bucket_start,
               AVG(value) AS mean_value,
               COUNT(*) AS samples
        FROM readings
        WHERE kind = $2
          AND captured_at >= $3
          AND captured_at < $4
          AND ($5 = '' OR zone_id = $5)
          AND ($6 = '' OR zone_id IN (SELECT id FROM zones WHERE building_id = $6))
        GROUP BY bucket_start
        ORDER BY bucket_start ASC
    `, width, kind, from, to, scope.ZoneID, scope.BuildingID)
	if err != nil {
		return nil, fmt.Errorf("query bucket means: %w", err)
	}
	defer rows.Close()

	points := make([]contracts.SeriesPoint, 0, 48)
	for rows.Next() {
		var point contracts.SeriesPoint
		if err := rows.Scan(&point.BucketStart, &point.Mean, &point.Samples); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

// MeanValue returns the mean and sample count of one kind over a time
// range. Zero samples yields mean 0; the trend layer decides what an
// undefined mean means.
func (r *Repository) MeanValue(ctx context.Context, scope contracts.AggregationScope, kind contracts.SensorKind, from, to time.Time) (float64, int64, error) {
	var mean float64
	var samples int64
	err := r.pool.QueryRow(ctx, `
        SELECT COALESCE(AVG(value), 0), COUNT(*)
        FROM readings
        WHERE kind = $1
          AND captured_at >= $2
          AND captured_at < $3
          AND ($4 = '' OR zone_id = $4)
          AND ($5 = '' OR zone_id IN (SELECT id FROM zones WHERE building_id = $5))
    `, kind, from, to, scope.ZoneID, scope.BuildingID).Scan(&mean, &samples)
	if err != nil {
		return 0, 0, fmt.Errorf("query mean value: %w", err)
	}
	return mean, samples, nil
}
