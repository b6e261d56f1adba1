package fanout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
	"github.com/RainDancerX/air-harmony-insight-server/internal/registry"
)

func drain(t *testing.T, sink *QueueSink) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		select {
		case f := <-sink.Frames():
			out = append(out, f)
		default:
			return out
		}
	}
}

func newReadingEvent(zone string, value float64) contracts.ReadingEvent {
	return contracts.ReadingEvent{Reading: contracts.Reading{
		ID:         "r1",
		SensorID:   "s1",
		ZoneID:     zone,
		Kind:       contracts.KindPM25,
		Value:      value,
		Severity:   contracts.SeverityGood,
		CapturedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func newAlertEvent(zone, building string) contracts.AlertOpenedEvent {
	return contracts.AlertOpenedEvent{
		BuildingID: building,
		Alert: contracts.Alert{
			ID:       "a1",
			ZoneID:   zone,
			SensorID: "s1",
			Kind:     contracts.KindPM25,
			Value:    160,
			Severity: contracts.SeverityCritical,
			OpenedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestPublishReachesZoneSubscribersOnly(t *testing.T) {
	reg := registry.New()
	b := New(reg)

	sub := NewQueueSink("c1", 8)
	other := NewQueueSink("c2", 8)
	b.Attach(sub)
	b.Attach(other)
	reg.Register("c1")
	reg.Register("c2")
	_ = reg.SubscribeZone("c1", "z1")
	_ = reg.SubscribeZone("c2", "z9")

	if err := b.Publish(newReadingEvent("z1", 5)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := drain(t, sub); len(got) != 1 {
		t.Fatalf("subscriber expected 1 frame, got %d", len(got))
	}
	if got := drain(t, other); len(got) != 0 {
		t.Fatalf("unsubscribed connection received %d frames", len(got))
	}
}

func TestAlertFansOutToZoneAndBuildingWithoutDuplicates(t *testing.T) {
	reg := registry.New()
	b := New(reg)

	zoneSub := NewQueueSink("zone-conn", 8)
	bldgSub := NewQueueSink("bldg-conn", 8)
	bothSub := NewQueueSink("both-conn", 8)
	idle := NewQueueSink("idle-conn", 8)
	for _, s := range []*QueueSink{zoneSub, bldgSub, bothSub, idle} {
		b.Attach(s)
		reg.Register(s.ID())
	}
	_ = reg.SubscribeZone("zone-conn", "z1")
	_ = reg.SubscribeBuilding("bldg-conn", "b1")
	_ = reg.SubscribeZone("both-conn", "z1")
	_ = reg.SubscribeBuilding("both-conn", "b1")

	if err := b.Publish(newAlertEvent("z1", "b1")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, sink := range map[string]*QueueSink{"zone": zoneSub, "building": bldgSub, "both": bothSub} {
		if got := drain(t, sink); len(got) != 1 {
			t.Fatalf("%s subscriber expected exactly 1 frame, got %d", name, len(got))
		}
	}
	if got := drain(t, idle); len(got) != 0 {
		t.Fatalf("idle connection received %d frames", len(got))
	}
}

func TestPerConnectionFIFO(t *testing.T) {
	reg := registry.New()
	b := New(reg)

	sink := NewQueueSink("c1", 16)
	b.Attach(sink)
	reg.Register("c1")
	_ = reg.SubscribeZone("c1", "z1")

	values := []float64{1, 2, 3, 4, 5}
	for _, v := range values {
		if err := b.Publish(newReadingEvent("z1", v)); err != nil {
			t.Fatalf("publish %v: %v", v, err)
		}
	}

	frames := drain(t, sink)
	if len(frames) != len(values) {
		t.Fatalf("expected %d frames, got %d", len(values), len(frames))
	}
	for i, raw := range frames {
		var f struct {
			Payload contracts.ReadingEvent `json:"payload"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if f.Payload.Reading.Value != values[i] {
			t.Fatalf("frame %d out of order: expected %.0f, got %.0f", i, values[i], f.Payload.Reading.Value)
		}
	}
}

func TestFullQueueDropsWithoutBlockingOthers(t *testing.T) {
	reg := registry.New()
	b := New(reg)

	full := NewQueueSink("full", 1)
	healthy := NewQueueSink("healthy", 8)
	b.Attach(full)
	b.Attach(healthy)
	reg.Register("full")
	reg.Register("healthy")
	_ = reg.SubscribeZone("full", "z1")
	_ = reg.SubscribeZone("healthy", "z1")

	for i := 0; i < 4; i++ {
		if err := b.Publish(newReadingEvent("z1", float64(i))); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	if got := drain(t, healthy); len(got) != 4 {
		t.Fatalf("healthy connection expected 4 frames, got %d", len(got))
	}
	if got := drain(t, full); len(got) != 1 {
		t.Fatalf("saturated connection expected its 1 buffered frame, got %d", len(got))
	}
}

func TestPublishAfterDetachSkipsConnection(t *testing.T) {
	reg := registry.New()
	b := New(reg)

	sink := NewQueueSink("c1", 8)
	b.Attach(sink)
	reg.Register("c1")
	_ = reg.SubscribeZone("c1", "z1")

	b.Detach("c1")
	if err := b.Publish(newReadingEvent("z1", 1)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := drain(t, sink); len(got) != 0 {
		t.Fatalf("detached connection received %d frames", len(got))
	}
}
