// Package alerts holds the alert state machine: readings open alerts,
// operators acknowledge and resolve them. Transitions are fail-closed;
// a persistence error leaves the prior state authoritative and is
// surfaced to the caller, never retried here.
package alerts

import (
	"context"
	"fmt"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// Store is the alert persistence surface; satisfied by *storage.Repository.
type Store interface {
	InsertAlert(ctx context.Context, alert *contracts.Alert) error
	AcknowledgeAlert(ctx context.Context, alertID string) (contracts.Alert, error)
	ResolveAlert(ctx context.Context, alertID, resolvedBy string) (contracts.Alert, bool, error)
	ResolveAllForBuilding(ctx context.Context, buildingID, resolvedBy string) ([]contracts.Alert, error)
}

type Engine struct {
	store Store
}

func New(store Store) *Engine {
	return &Engine{store: store}
}

// OnReading opens a new alert when the reading classified poor or
// critical; good and moderate readings never touch alert state. Every
// qualifying reading opens its own alert record; repeated degradations
// are deliberately not deduplicated against an already-open alert.
func (e *Engine) OnReading(ctx context.Context, reading contracts.Reading, buildingID string) ([]contracts.Event, error) {
	if !reading.Severity.AtLeast(contracts.SeverityPoor) {
		return nil, nil
	}

	alert := contracts.Alert{
		ZoneID:   reading.ZoneID,
		SensorID: reading.SensorID,
		Kind:     reading.Kind,
		Value:    reading.Value,
		Severity: reading.Severity,
	}
	if err := e.store.InsertAlert(ctx, &alert); err != nil {
		return nil, fmt.Errorf("open alert for sensor %s: %w", reading.SensorID, err)
	}

	return []contracts.Event{
		contracts.AlertOpenedEvent{BuildingID: buildingID, Alert: alert},
	}, nil
}

// Acknowledge marks the alert acknowledged if it is not already;
// acknowledging twice, or acknowledging a resolved alert, is a no-op.
func (e *Engine) Acknowledge(ctx context.Context, alertID string) (contracts.Alert, error) {
	return e.store.AcknowledgeAlert(ctx, alertID)
}

// Resolve closes the alert. Idempotent: a second resolve returns the
// same terminal state with no error; the bool reports whether this call
// performed the transition, so callers emit the resolved event once.
func (e *Engine) Resolve(ctx context.Context, alertID, resolvedBy string) (contracts.Alert, bool, error) {
	return e.store.ResolveAlert(ctx, alertID, resolvedBy)
}

// ResolveAll closes every alert unresolved at call time for the
// building's zones and returns how many it closed. The snapshot of
// "currently unresolved" is taken atomically with the write, so an
// alert opened concurrently is either left open or fully resolved,
// never half-applied.
func (e *Engine) ResolveAll(ctx context.Context, buildingID, resolvedBy string) (int, []contracts.Event, error) {
	resolved, err := e.store.ResolveAllForBuilding(ctx, buildingID, resolvedBy)
	if err != nil {
		return 0, nil, fmt.Errorf("resolve all for building %s: %w", buildingID, err)
	}

	events := make([]contracts.Event, 0, len(resolved))
	for _, alert := range resolved {
		events = append(events, contracts.AlertResolvedEvent{BuildingID: buildingID, Alert: alert})
	}
	return len(resolved), events, nil
}
