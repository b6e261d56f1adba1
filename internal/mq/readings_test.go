package mq

import (
	"testing"
	"time"
)

func TestReadingMessageKeyPartitionsBySensor(t *testing.T) {
	m := ReadingMessage{SensorID: "s-42", ZoneID: "z1"}
	if m.Key() != "s-42" {
		t.Fatalf("expected sensor id as key, got %q", m.Key())
	}
}

func TestDecodeMQTTMatchesHTTPShape(t *testing.T) {
	raw := []byte(`{"sensor_id":"s1","zone_id":"z1","kind":"co2","value":850,"captured_at":"2026-03-01T10:00:00Z"}`)
	var m ReadingMessage
	if err := DecodeMQTT(raw, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.SensorID != "s1" || m.Kind != "co2" || m.Value != 850 {
		t.Fatalf("unexpected decode result: %+v", m)
	}
	if !m.CapturedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("captured_at wrong: %s", m.CapturedAt)
	}
}
