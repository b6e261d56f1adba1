// Package fanout delivers domain events to the live connections the
// registry says are interested. Delivery is best-effort per connection:
// a full or vanished connection never blocks the publisher or the
// remaining recipients.
package fanout

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// ErrQueueFull signals a backpressure drop. Logged by the broadcaster,
// never escalated to the ingestion path.
var ErrQueueFull = errors.New("outbound queue full")

// Sink is one attached connection's outbound side. TrySend must not
// block: it either enqueues the frame or reports a drop.
type Sink interface {
	ID() string
	TrySend(frame []byte) error
}

// Directory answers "who is interested"; satisfied by *registry.Registry.
type Directory interface {
	ConnectionsForZone(zoneID string) []string
	ConnectionsForBuilding(buildingID string) []string
}

type Broadcaster struct {
	dir Directory

	mu    sync.RWMutex
	sinks map[string]Sink
}

func New(dir Directory) *Broadcaster {
	return &Broadcaster{
		dir:   dir,
		sinks: make(map[string]Sink),
	}
}

func (b *Broadcaster) Attach(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[sink.ID()] = sink
}

func (b *Broadcaster) Detach(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, connID)
}

type frame struct {
	Type    contracts.EventType `json:"type"`
	Payload contracts.Event     `json:"payload"`
}

// Publish resolves the interested connections for the event's scopes
// and delivers the encoded frame exactly once per connection. A
// connection subscribed to both the zone and the owning building
// still receives a single copy. Frames sent to one connection from
// successive Publish calls keep their call order.
func (b *Broadcaster) Publish(event contracts.Event) error {
	encoded, err := json.Marshal(frame{Type: event.Type(), Payload: event})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type(), err)
	}

	seen := make(map[string]struct{})
	targets := make([]string, 0, 8)
	if zone := event.Zone(); zone != "" {
		for _, connID := range b.dir.ConnectionsForZone(zone) {
			if _, dup := seen[connID]; !dup {
				seen[connID] = struct{}{}
				targets = append(targets, connID)
			}
		}
	}
	if building := event.Building(); building != "" {
		for _, connID := range b.dir.ConnectionsForBuilding(building) {
			if _, dup := seen[connID]; !dup {
				seen[connID] = struct{}{}
				targets = append(targets, connID)
			}
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, connID := range targets {
		sink, ok := b.sinks[connID]
		if !ok {
			// Subscribed but already detached; registry cleanup lags.
			continue
		}
		if err := sink.TrySend(encoded); err != nil {
			log.Printf("fanout drop conn=%s event=%s: %v", connID, event.Type(), err)
		}
	}
	return nil
}

// QueueSink is the stock Sink: a bounded FIFO queue drained by the
// connection's writer. Used by the WebSocket layer and by tests.
type QueueSink struct {
	id     string
	frames chan []byte
}

func NewQueueSink(id string, capacity int) *QueueSink {
	if capacity <= 0 {
		capacity = 32
	}
	return &QueueSink{id: id, frames: make(chan []byte, capacity)}
}

func (s *QueueSink) ID() string { return s.id }

func (s *QueueSink) TrySend(frame []byte) error {
	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Frames exposes the drain side for the connection's write loop.
func (s *QueueSink) Frames() <-chan []byte { return s.frames }

// Close releases the drain side; the owner must have detached first.
func (s *QueueSink) Close() { close(s.frames) }
