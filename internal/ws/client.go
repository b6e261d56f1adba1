// Package ws binds one WebSocket connection to the subscription
// registry and the broadcaster: inbound control frames manage the
// connection's subscriptions, outbound frames drain its bounded queue.
package ws

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
	"github.com/RainDancerX/air-harmony-insight-server/internal/fanout"
	"github.com/RainDancerX/air-harmony-insight-server/internal/registry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// controlMessage is what a live client sends to manage its scope.
type controlMessage struct {
	Action     string `json:"action"`
	BuildingID string `json:"building_id,omitempty"`
	ZoneID     string `json:"zone_id,omitempty"`
}

type Client struct {
	id          string
	conn        *websocket.Conn
	sink        *fanout.QueueSink
	registry    *registry.Registry
	broadcaster *fanout.Broadcaster
}

// NewClient registers a fresh connection id and attaches its send queue
// to the broadcaster. The caller runs ReadPump and WritePump, each on
// its own goroutine.
func NewClient(conn *websocket.Conn, reg *registry.Registry, b *fanout.Broadcaster, sendBuffer int) *Client {
	id := uuid.NewString()
	c := &Client{
		id:          id,
		conn:        conn,
		sink:        fanout.NewQueueSink(id, sendBuffer),
		registry:    reg,
		broadcaster: b,
	}
	reg.Register(id)
	b.Attach(c.sink)
	return c
}

func (c *Client) ID() string { return c.id }

// ReadPump applies inbound control frames to the registry until the
// connection drops, then tears the connection down everywhere.
// Disconnect runs before detach, so subscription state never outlives
// the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Disconnect(c.id)
		c.broadcaster.Detach(c.id)
		c.sink.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read conn=%s: %v", c.id, err)
			}
			return
		}

		var ctrl controlMessage
		if err := json.Unmarshal(message, &ctrl); err != nil {
			log.Printf("ws bad control frame conn=%s: %v", c.id, err)
			continue
		}
		if err := c.apply(ctrl); err != nil {
			if errors.Is(err, contracts.ErrConnectionClosed) {
				return
			}
			log.Printf("ws control conn=%s action=%s: %v", c.id, ctrl.Action, err)
		}
	}
}

func (c *Client) apply(ctrl controlMessage) error {
	switch ctrl.Action {
	case "subscribe_building":
		return c.registry.SubscribeBuilding(c.id, ctrl.BuildingID)
	case "subscribe_zone":
		return c.registry.SubscribeZone(c.id, ctrl.ZoneID)
	case "unsubscribe_zone":
		return c.registry.UnsubscribeZone(c.id, ctrl.ZoneID)
	default:
		log.Printf("ws unknown action %q conn=%s", ctrl.Action, c.id)
		return nil
	}
}

// WritePump drains the connection's queue in FIFO order and keeps the
// peer alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.sink.Frames():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("ws write conn=%s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
