package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// Repository is the transactional store behind the core: append-only
// classified readings plus alert rows and the zone/building reference
// tables. All methods are context-bound; a caller deadline aborts the
// underlying query.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertReading appends one classified reading and stamps StoredAt from
// the database clock. The reading is immutable afterward.
func (r *Repository) InsertReading(ctx context.Context, reading *contracts.Reading) error {
	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}

	err := r.pool.QueryRow(ctx, `
        INSERT INTO readings
            (id, sensor_id, zone_id, kind, value, severity, quality_score, captured_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING stored_at
    `, reading.ID, reading.SensorID, reading.ZoneID, reading.Kind, reading.Value,
		reading.Severity, reading.QualityScore, reading.CapturedAt,
	).Scan(&reading.StoredAt)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// LatestReadings returns the most recent reading per (sensor, kind) in
// a zone, the "current status" view.
func (r *Repository) LatestReadings(ctx context.Context, zoneID string) ([]contracts.Reading, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT DISTINCT ON (sensor_id, kind)
            id, sensor_id, zone_id, kind, value, severity, quality_score, captured_at, stored_at
        FROM readings
        WHERE zone_id = $1
        ORDER BY sensor_id, kind, captured_at DESC
    `, zoneID)
	if err != nil {
		return nil, fmt.Errorf("query latest readings: %w", err)
	}
	defer rows.Close()

	readings := make([]contracts.Reading, 0, 16)
	for rows.Next() {
		var reading contracts.Reading
		if err := rows.Scan(
			&reading.ID,
			&reading.SensorID,
			&reading.ZoneID,
			&reading.Kind,
			&reading.Value,
			&reading.Severity,
			&reading.QualityScore,
			&reading.CapturedAt,
			&reading.StoredAt,
		); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ZoneBuilding resolves the building owning a zone.
func (r *Repository) ZoneBuilding(ctx context.Context, zoneID string) (string, error) {
	var buildingID string
	err := r.pool.QueryRow(ctx, `
        SELECT building_id FROM zones WHERE id = $1
    `, zoneID).Scan(&buildingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("zone %s: %w", zoneID, contracts.ErrZoneNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query zone building: %w", err)
	}
	return buildingID, nil
}

// UpdateOccupancy records the current occupant count for a zone.
func (r *Repository) UpdateOccupancy(ctx context.Context, zoneID string, occupants int) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE zones SET occupants = $2 WHERE id = $1
    `, zoneID, occupants)
	if err != nil {
		return fmt.Errorf("update occupancy: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("zone %s: %w", zoneID, contracts.ErrZoneNotFound)
	}
	return nil
}
