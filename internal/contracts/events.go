package contracts

import "time"

type EventType string

const (
	EventReading       EventType = "reading"
	EventOccupancy     EventType = "occupancy"
	EventAlertOpened   EventType = "alert_new"
	EventAlertResolved EventType = "alert_resolved"
	EventStatus        EventType = "status"
)

// Event is the closed set of domain events the broadcaster fans out.
// Zone is empty for building-only events (status summaries); alert
// events carry both scopes and are delivered to the union of the two
// subscriber sets.
type Event interface {
	Type() EventType
	Zone() string
	Building() string
}

type ReadingEvent struct {
	BuildingID string  `json:"building_id"`
	Reading    Reading `json:"reading"`
}

func (e ReadingEvent) Type() EventType  { return EventReading }
func (e ReadingEvent) Zone() string     { return e.Reading.ZoneID }
func (e ReadingEvent) Building() string { return "" }

type OccupancyEvent struct {
	BuildingID string    `json:"building_id"`
	ZoneID     string    `json:"zone_id"`
	Occupants  int       `json:"occupants"`
	ChangedAt  time.Time `json:"changed_at"`
}

func (e OccupancyEvent) Type() EventType  { return EventOccupancy }
func (e OccupancyEvent) Zone() string     { return e.ZoneID }
func (e OccupancyEvent) Building() string { return "" }

type AlertOpenedEvent struct {
	BuildingID string `json:"building_id"`
	Alert      Alert  `json:"alert"`
}

func (e AlertOpenedEvent) Type() EventType  { return EventAlertOpened }
func (e AlertOpenedEvent) Zone() string     { return e.Alert.ZoneID }
func (e AlertOpenedEvent) Building() string { return e.BuildingID }

type AlertResolvedEvent struct {
	BuildingID string `json:"building_id"`
	Alert      Alert  `json:"alert"`
}

func (e AlertResolvedEvent) Type() EventType  { return EventAlertResolved }
func (e AlertResolvedEvent) Zone() string     { return e.Alert.ZoneID }
func (e AlertResolvedEvent) Building() string { return e.BuildingID }

type StatusEvent struct {
	Summary StatusSummary `json:"summary"`
}

func (e StatusEvent) Type() EventType  { return EventStatus }
func (e StatusEvent) Zone() string     { return "" }
func (e StatusEvent) Building() string { return e.Summary.BuildingID }
