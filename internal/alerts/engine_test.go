package alerts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

type memStore struct {
	seq    int
	alerts map[string]*contracts.Alert
	zones  map[string]string // zone -> building

	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		alerts: make(map[string]*contracts.Alert),
		zones:  map[string]string{"z1": "b1", "z2": "b1", "z9": "b2"},
	}
}

func (m *memStore) InsertAlert(_ context.Context, alert *contracts.Alert) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.seq++
	alert.ID = fmt.Sprintf("a%d", m.seq)
	alert.OpenedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	stored := *alert
	m.alerts[alert.ID] = &stored
	return nil
}

func (m *memStore) AcknowledgeAlert(_ context.Context, alertID string) (contracts.Alert, error) {
	alert, ok := m.alerts[alertID]
	if !ok {
		return contracts.Alert{}, fmt.Errorf("alert %s: %w", alertID, contracts.ErrAlertNotFound)
	}
	if alert.AcknowledgedAt == nil && alert.ResolvedAt == nil {
		now := time.Now().UTC()
		alert.AcknowledgedAt = &now
	}
	return *alert, nil
}

func (m *memStore) ResolveAlert(_ context.Context, alertID, resolvedBy string) (contracts.Alert, bool, error) {
	alert, ok := m.alerts[alertID]
	if !ok {
		return contracts.Alert{}, false, fmt.Errorf("alert %s: %w", alertID, contracts.ErrAlertNotFound)
	}
	if alert.ResolvedAt != nil {
		return *alert, false, nil
	}
	now := time.Now().UTC()
	alert.ResolvedAt = &now
	alert.ResolvedBy = &resolvedBy
	return *alert, true, nil
}

func (m *memStore) ResolveAllForBuilding(_ context.Context, buildingID, resolvedBy string) ([]contracts.Alert, error) {
	now := time.Now().UTC()
	var resolved []contracts.Alert
	for _, alert := range m.alerts {
		if m.zones[alert.ZoneID] != buildingID || alert.ResolvedAt != nil {
			continue
		}
		alert.ResolvedAt = &now
		alert.ResolvedBy = &resolvedBy
		resolved = append(resolved, *alert)
	}
	return resolved, nil
}

func reading(zone string, severity contracts.Severity) contracts.Reading {
	return contracts.Reading{
		ID:       "r1",
		SensorID: "s1",
		ZoneID:   zone,
		Kind:     contracts.KindPM25,
		Value:    160,
		Severity: severity,
	}
}

func TestOnReadingOpensAlertForPoorAndCritical(t *testing.T) {
	for _, severity := range []contracts.Severity{contracts.SeverityPoor, contracts.SeverityCritical} {
		store := newMemStore()
		e := New(store)

		events, err := e.OnReading(context.Background(), reading("z1", severity), "b1")
		if err != nil {
			t.Fatalf("on reading (%s): %v", severity, err)
		}
		if len(events) != 1 {
			t.Fatalf("%s: expected 1 event, got %d", severity, len(events))
		}
		opened, ok := events[0].(contracts.AlertOpenedEvent)
		if !ok {
			t.Fatalf("%s: expected AlertOpenedEvent, got %T", severity, events[0])
		}
		if opened.BuildingID != "b1" || opened.Alert.ZoneID != "z1" || opened.Alert.Severity != severity {
			t.Fatalf("%s: event carries wrong fields: %+v", severity, opened)
		}
		if len(store.alerts) != 1 {
			t.Fatalf("%s: expected 1 persisted alert, got %d", severity, len(store.alerts))
		}
	}
}

func TestOnReadingIgnoresGoodAndModerate(t *testing.T) {
	store := newMemStore()
	e := New(store)

	for _, severity := range []contracts.Severity{contracts.SeverityGood, contracts.SeverityModerate} {
		events, err := e.OnReading(context.Background(), reading("z1", severity), "b1")
		if err != nil {
			t.Fatalf("on reading (%s): %v", severity, err)
		}
		if len(events) != 0 {
			t.Fatalf("%s: expected no events, got %d", severity, len(events))
		}
	}
	if len(store.alerts) != 0 {
		t.Fatalf("expected alert table untouched, got %d rows", len(store.alerts))
	}
}

func TestOnReadingDoesNotDeduplicateOpens(t *testing.T) {
	store := newMemStore()
	e := New(store)

	for i := 0; i < 3; i++ {
		if _, err := e.OnReading(context.Background(), reading("z1", contracts.SeverityCritical), "b1"); err != nil {
			t.Fatalf("on reading %d: %v", i, err)
		}
	}
	if len(store.alerts) != 3 {
		t.Fatalf("expected 3 alert records for 3 critical readings, got %d", len(store.alerts))
	}
}

func TestOnReadingPropagatesStoreFailure(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("connection reset")
	e := New(store)

	events, err := e.OnReading(context.Background(), reading("z1", contracts.SeverityCritical), "b1")
	if err == nil {
		t.Fatal("expected store error to surface")
	}
	if len(events) != 0 {
		t.Fatalf("expected no events on failed persist, got %d", len(events))
	}
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	store := newMemStore()
	e := New(store)
	_, _ = e.OnReading(context.Background(), reading("z1", contracts.SeverityPoor), "b1")

	first, err := e.Acknowledge(context.Background(), "a1")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if first.AcknowledgedAt == nil {
		t.Fatal("expected acknowledged_at set")
	}
	second, err := e.Acknowledge(context.Background(), "a1")
	if err != nil {
		t.Fatalf("second acknowledge: %v", err)
	}
	if !second.AcknowledgedAt.Equal(*first.AcknowledgedAt) {
		t.Fatal("second acknowledge must not move the timestamp")
	}
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	e := New(newMemStore())
	if _, err := e.Acknowledge(context.Background(), "missing"); !errors.Is(err, contracts.ErrAlertNotFound) {
		t.Fatalf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	store := newMemStore()
	e := New(store)
	_, _ = e.OnReading(context.Background(), reading("z1", contracts.SeverityPoor), "b1")

	first, transitioned, err := e.Resolve(context.Background(), "a1", "operator-7")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !transitioned {
		t.Fatal("first resolve must report the transition")
	}
	if first.ResolvedAt == nil || first.ResolvedBy == nil || *first.ResolvedBy != "operator-7" {
		t.Fatalf("resolve did not record terminal state: %+v", first)
	}

	second, transitioned, err := e.Resolve(context.Background(), "a1", "operator-8")
	if err != nil {
		t.Fatalf("second resolve must not error: %v", err)
	}
	if transitioned {
		t.Fatal("second resolve must not report a transition")
	}
	if *second.ResolvedBy != "operator-7" {
		t.Fatalf("second resolve overwrote resolver: %s", *second.ResolvedBy)
	}
}

func TestResolveAllCountsExactlyTheOpenSet(t *testing.T) {
	store := newMemStore()
	e := New(store)

	// Three open in b1 (two zones), one already resolved, one in b2.
	_, _ = e.OnReading(context.Background(), reading("z1", contracts.SeverityPoor), "b1")
	_, _ = e.OnReading(context.Background(), reading("z1", contracts.SeverityCritical), "b1")
	_, _ = e.OnReading(context.Background(), reading("z2", contracts.SeverityPoor), "b1")
	_, _ = e.OnReading(context.Background(), reading("z9", contracts.SeverityPoor), "b2")
	if _, _, err := e.Resolve(context.Background(), "a1", "op"); err != nil {
		t.Fatalf("pre-resolve: %v", err)
	}

	count, events, err := e.ResolveAll(context.Background(), "b1", "supervisor")
	if err != nil {
		t.Fatalf("resolve all: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 resolved, got %d", count)
	}
	if len(events) != count {
		t.Fatalf("expected %d events, got %d", count, len(events))
	}
	for _, ev := range events {
		resolved, ok := ev.(contracts.AlertResolvedEvent)
		if !ok {
			t.Fatalf("expected AlertResolvedEvent, got %T", ev)
		}
		if resolved.BuildingID != "b1" {
			t.Fatalf("event for wrong building: %s", resolved.BuildingID)
		}
	}

	// The other building's alert stays open.
	for _, alert := range store.alerts {
		if alert.ZoneID == "z9" && alert.ResolvedAt != nil {
			t.Fatal("resolveAll leaked into another building")
		}
	}

	// A second pass finds nothing left.
	count, _, err = e.ResolveAll(context.Background(), "b1", "supervisor")
	if err != nil {
		t.Fatalf("second resolve all: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 on second pass, got %d", count)
	}
}
