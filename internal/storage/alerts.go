package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// Alert persistence. Every state transition is a single statement, so a
// failed write leaves the prior state authoritative.

func (r *Repository) InsertAlert(ctx context.Context, alert *contracts.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	err := r.pool.QueryRow(ctx, `
        INSERT INTO alerts
            (id, zone_id, sensor_id, kind, value, severity)
        VALUES
            ($1, $2, $3, $4, $5, $6)
        RETURNING opened_at
    `, alert.ID, alert.ZoneID, alert.SensorID, alert.Kind, alert.Value, alert.Severity,
	).Scan(&alert.OpenedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *Repository) GetAlert(ctx context.Context, alertID string) (contracts.Alert, error) {
	var alert contracts.Alert
	err := r.pool.QueryRow(ctx, `
        SELECT id, zone_id, sensor_id, kind, value, severity,
               opened_at, acknowledged_at, resolved_at, resolved_by
        FROM alerts
        WHERE id = $1
    `, alertID).Scan(
		&alert.ID,
		&alert.ZoneID,
		&alert.SensorID,
		&alert.Kind,
		&alert.Value,
		&alert.Severity,
		&alert.OpenedAt,
		&alert.AcknowledgedAt,
		&alert.ResolvedAt,
		&alert.ResolvedBy,
	)
	if isNoRows(err) {
		return contracts.Alert{}, fmt.Errorf("alert %s: %w", alertID, contracts.ErrAlertNotFound)
	}
	if err != nil {
		return contracts.Alert{}, fmt.Errorf("query alert: %w", err)
	}
	return alert, nil
}

// ListActiveAlerts returns the unresolved alerts for every zone of a
// building, newest first.
func (r *Repository) ListActiveAlerts(ctx context.Context, buildingID string) ([]contracts.Alert, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT a.id, a.zone_id, a.sensor_id, a.kind, a.value, a.severity,
               a.opened_at, a.acknowledged_at, a.resolved_at, a.resolved_by
        FROM alerts a
        JOIN zones z ON z.id = a.zone_id
        WHERE z.building_id = $1
          AND a.resolved_at IS NULL
        ORDER BY a.opened_at DESC
    `, buildingID)
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]contracts.Alert, 0, 16)
	for rows.Next() {
		var alert contracts.Alert
		if err := rows.Scan(
			&alert.ID,
			&alert.ZoneID,
			&alert.SensorID,
			&alert.Kind,
			&alert.Value,
			&alert.Severity,
			&alert.OpenedAt,
			&alert.AcknowledgedAt,
			&alert.ResolvedAt,
			&alert.ResolvedBy,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert sets acknowledged_at if unset. Acknowledging an
// already-acknowledged or resolved alert is a no-op; an unknown id is
// ErrAlertNotFound.
func (r *Repository) AcknowledgeAlert(ctx context.Context, alertID string) (contracts.Alert, error) {
	var alert contracts.Alert
	err := r.pool.QueryRow(ctx, `
        UPDATE alerts
        SET acknowledged_at = CASE
            WHEN acknowledged_at IS NULL AND resolved_at IS NULL THEN NOW()
            ELSE acknowledged_at
        END
        WHERE id = $1
        RETURNING id, zone_id, sensor_id, kind, value, severity,
                  opened_at, acknowledged_at, resolved_at, resolved_by
    `, alertID).Scan(
		&alert.ID,
		&alert.ZoneID,
		&alert.SensorID,
		&alert.Kind,
		&alert.Value,
		&alert.Severity,
		&alert.OpenedAt,
		&alert.AcknowledgedAt,
		&alert.ResolvedAt,
		&alert.ResolvedBy,
	)
	if isNoRows(err) {
		return contracts.Alert{}, fmt.Errorf("alert %s: %w", alertID, contracts.ErrAlertNotFound)
	}
	if err != nil {
		return contracts.Alert{}, fmt.Errorf("acknowledge alert: %w", err)
	}
	return alert, nil
}

// ResolveAlert sets resolved_at/resolved_by in one statement guarded by
// resolved_at IS NULL, so a repeat resolve leaves the original terminal
// state untouched. The bool reports whether this call performed the
// transition; false with a nil error means the alert was already
// resolved (a harmless no-op).
func (r *Repository) ResolveAlert(ctx context.Context, alertID, resolvedBy string) (contracts.Alert, bool, error) {
	var alert contracts.Alert
	err := r.pool.QueryRow(ctx, `
        UPDATE alerts
        SET resolved_at = NOW(),
            resolved_by = $2
        WHERE id = $1
          AND resolved_at IS NULL
        RETURNING id, zone_id, sensor_id, kind, value, severity,
                  opened_at, acknowledged_at, resolved_at, resolved_by
    `, alertID, resolvedBy).Scan(
		&alert.ID,
		&alert.ZoneID,
		&alert.SensorID,
		&alert.Kind,
		&alert.Value,
		&alert.Severity,
		&alert.OpenedAt,
		&alert.AcknowledgedAt,
		&alert.ResolvedAt,
		&alert.ResolvedBy,
	)
	if isNoRows(err) {
		existing, getErr := r.GetAlert(ctx, alertID)
		if getErr != nil {
			return contracts.Alert{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return contracts.Alert{}, false, fmt.Errorf("resolve alert: %w", err)
	}
	return alert, true, nil
}

// ResolveAllForBuilding resolves every currently-unresolved alert whose
// zone belongs to the building in one atomic statement. The WHERE
// snapshot and the write are the same statement, so an alert opened
// concurrently is either fully included or untouched, never reverted.
func (r *Repository) ResolveAllForBuilding(ctx context.Context, buildingID, resolvedBy string) ([]contracts.Alert, error) {
	rows, err := r.pool.Query(ctx, `
        UPDATE alerts a
        SET resolved_at = NOW(),
            resolved_by = $2
        FROM zones z
        WHERE z.id = a.zone_id
          AND z.building_id = $1
          AND a.resolved_at IS NULL
        RETURNING a.id, a.zone_id, a.sensor_id, a.kind, a.value, a.severity,
                  a.opened_at, a.acknowledged_at, a.resolved_at, a.resolved_by
    `, buildingID, resolvedBy)
	if err != nil {
		return nil, fmt.Errorf("resolve building alerts: %w", err)
	}
	defer rows.Close()

	resolved := make([]contracts.Alert, 0, 16)
	for rows.Next() {
		var alert contracts.Alert
		if err := rows.Scan(
			&alert.ID,
			&alert.ZoneID,
			&alert.SensorID,
			&alert.Kind,
			&alert.Value,
			&alert.Severity,
			&alert.OpenedAt,
			&alert.AcknowledgedAt,
			&alert.ResolvedAt,
			&alert.ResolvedBy,
		); err != nil {
			return nil, fmt.Errorf("scan resolved alert: %w", err)
		}
		resolved = append(resolved, alert)
	}
	return resolved, rows.Err()
}
