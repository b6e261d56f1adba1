// Package engine wires the classifier, reading store, alert engine and
// event publishers into the operations the outer layers call: ingest,
// status queries, operator alert mutations and occupancy updates.
// Persistence and delivery stay decoupled: each operation first commits
// its writes, then hands the produced events to a separate dispatch
// step, and a failed delivery never fails the operation.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/RainDancerX/air-harmony-insight-server/internal/alerts"
	"github.com/RainDancerX/air-harmony-insight-server/internal/classify"
	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// Store is the persistence surface the orchestrator needs; satisfied by
// *storage.Repository.
type Store interface {
	InsertReading(ctx context.Context, reading *contracts.Reading) error
	LatestReadings(ctx context.Context, zoneID string) ([]contracts.Reading, error)
	ZoneBuilding(ctx context.Context, zoneID string) (string, error)
	UpdateOccupancy(ctx context.Context, zoneID string, occupants int) error
	ListActiveAlerts(ctx context.Context, buildingID string) ([]contracts.Alert, error)
}

// Publisher receives dispatched domain events; satisfied by
// *fanout.Broadcaster and the Kafka firehose writer.
type Publisher interface {
	Publish(event contracts.Event) error
}

type Service struct {
	catalog    *classify.Catalog
	store      Store
	alerts     *alerts.Engine
	publishers []Publisher
}

func NewService(catalog *classify.Catalog, store Store, alertEngine *alerts.Engine, publishers ...Publisher) *Service {
	return &Service{
		catalog:    catalog,
		store:      store,
		alerts:     alertEngine,
		publishers: publishers,
	}
}

type IngestInput struct {
	SensorID     string
	ZoneID       string
	Kind         contracts.SensorKind
	Value        float64
	QualityScore float64
	CapturedAt   time.Time
}

type IngestResult struct {
	ReadingID string             `json:"reading_id"`
	Severity  contracts.Severity `json:"severity"`
	StoredAt  time.Time          `json:"stored_at"`
}

// IngestReading classifies, persists and fans out one sensor report.
// The severity is always derived here; callers cannot supply one. A
// store failure surfaces to the caller, who owns the retry decision.
func (s *Service) IngestReading(ctx context.Context, in IngestInput) (IngestResult, error) {
	severity, err := s.catalog.Classify(in.Kind, in.Value)
	if err != nil {
		return IngestResult{}, err
	}

	buildingID, err := s.store.ZoneBuilding(ctx, in.ZoneID)
	if err != nil {
		return IngestResult{}, err
	}

	capturedAt := in.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	quality := in.QualityScore
	if quality == 0 {
		quality = 1
	}

	reading := contracts.Reading{
		SensorID:     in.SensorID,
		ZoneID:       in.ZoneID,
		Kind:         in.Kind,
		Value:        in.Value,
		Severity:     severity,
		QualityScore: quality,
		CapturedAt:   capturedAt,
	}
	if err := s.store.InsertReading(ctx, &reading); err != nil {
		return IngestResult{}, err
	}

	events := []contracts.Event{
		contracts.ReadingEvent{BuildingID: buildingID, Reading: reading},
	}
	alertEvents, err := s.alerts.OnReading(ctx, reading, buildingID)
	if err != nil {
		// The reading is stored even though the alert transition is not, so
		// subscribers still get it. Fail closed on the alert side and let
		// the caller decide; they must not re-ingest blindly.
		s.dispatch(events)
		return IngestResult{}, err
	}
	s.dispatch(append(events, alertEvents...))

	return IngestResult{ReadingID: reading.ID, Severity: severity, StoredAt: reading.StoredAt}, nil
}

// CurrentStatus returns the most recent reading per sensor and kind in
// the zone.
func (s *Service) CurrentStatus(ctx context.Context, zoneID string) ([]contracts.Reading, error) {
	return s.store.LatestReadings(ctx, zoneID)
}

// ActiveAlerts lists the unresolved alerts across a building's zones.
func (s *Service) ActiveAlerts(ctx context.Context, buildingID string) ([]contracts.Alert, error) {
	return s.store.ListActiveAlerts(ctx, buildingID)
}

func (s *Service) Acknowledge(ctx context.Context, alertID string) (contracts.Alert, error) {
	return s.alerts.Acknowledge(ctx, alertID)
}

// Resolve closes one alert and, when this call performed the
// transition, fans out the resolved event to the zone and its building.
func (s *Service) Resolve(ctx context.Context, alertID, resolvedBy string) (contracts.Alert, error) {
	alert, transitioned, err := s.alerts.Resolve(ctx, alertID, resolvedBy)
	if err != nil {
		return contracts.Alert{}, err
	}
	if transitioned {
		buildingID, err := s.store.ZoneBuilding(ctx, alert.ZoneID)
		if err != nil {
			log.Printf("engine: resolve %s: building lookup failed, event dropped: %v", alertID, err)
			return alert, nil
		}
		s.dispatch([]contracts.Event{contracts.AlertResolvedEvent{BuildingID: buildingID, Alert: alert}})
	}
	return alert, nil
}

// ResolveAll bulk-closes a building's open alerts, fans out one
// resolved event per alert plus a refreshed status summary, and returns
// the resolved count.
func (s *Service) ResolveAll(ctx context.Context, buildingID, resolvedBy string) (int, error) {
	count, events, err := s.alerts.ResolveAll(ctx, buildingID, resolvedBy)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	summary, err := s.statusSummary(ctx, buildingID)
	if err != nil {
		log.Printf("engine: resolve-all %s: summary skipped: %v", buildingID, err)
	} else {
		events = append(events, contracts.StatusEvent{Summary: summary})
	}
	s.dispatch(events)
	return count, nil
}

// UpdateOccupancy records a zone's occupant count and notifies the
// zone's subscribers.
func (s *Service) UpdateOccupancy(ctx context.Context, zoneID string, occupants int) error {
	buildingID, err := s.store.ZoneBuilding(ctx, zoneID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateOccupancy(ctx, zoneID, occupants); err != nil {
		return err
	}
	s.dispatch([]contracts.Event{contracts.OccupancyEvent{
		BuildingID: buildingID,
		ZoneID:     zoneID,
		Occupants:  occupants,
		ChangedAt:  time.Now().UTC(),
	}})
	return nil
}

func (s *Service) statusSummary(ctx context.Context, buildingID string) (contracts.StatusSummary, error) {
	active, err := s.store.ListActiveAlerts(ctx, buildingID)
	if err != nil {
		return contracts.StatusSummary{}, fmt.Errorf("status summary for %s: %w", buildingID, err)
	}
	worst := contracts.SeverityGood
	for _, alert := range active {
		if alert.Severity.AtLeast(worst) {
			worst = alert.Severity
		}
	}
	return contracts.StatusSummary{
		BuildingID:    buildingID,
		ActiveAlerts:  len(active),
		WorstSeverity: worst,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// dispatch hands events to every publisher. Best-effort: a publisher
// error is logged and does not reach the mutating caller.
func (s *Service) dispatch(events []contracts.Event) {
	for _, event := range events {
		for _, pub := range s.publishers {
			if err := pub.Publish(event); err != nil {
				log.Printf("engine: dispatch %s: %v", event.Type(), err)
			}
		}
	}
}
