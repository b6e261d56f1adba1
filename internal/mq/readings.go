package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// ReadingMessage is the wire shape between the ingestion front door and
// the monitor engine. Severity is deliberately absent: only the
// classifier assigns one.
type ReadingMessage struct {
	SensorID     string    `json:"sensor_id"`
	ZoneID       string    `json:"zone_id"`
	Kind         string    `json:"kind"`
	Value        float64   `json:"value"`
	QualityScore float64   `json:"quality_score,omitempty"`
	CapturedAt   time.Time `json:"captured_at,omitempty"`
}

// Key partitions by sensor so one sensor's reports stay in order.
func (m ReadingMessage) Key() string {
	return m.SensorID
}

// DecodeMQTT parses a raw MQTT payload; same JSON shape as the HTTP
// ingestion body.
func DecodeMQTT(raw []byte, dst any) error {
	return json.Unmarshal(raw, dst)
}

// EventPublisher forwards dispatched domain events to the firehose
// topic for downstream consumers (dashboards, archival). Implements the
// engine's Publisher.
type EventPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewEventPublisher(writer *kafka.Writer) *EventPublisher {
	return &EventPublisher{writer: writer, timeout: 5 * time.Second}
}

type eventFrame struct {
	Type    contracts.EventType `json:"type"`
	Payload contracts.Event     `json:"payload"`
}

func (p *EventPublisher) Publish(event contracts.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	key := event.Zone()
	if key == "" {
		key = event.Building()
	}
	return PublishJSON(ctx, p.writer, key, eventFrame{Type: event.Type(), Payload: event})
}
