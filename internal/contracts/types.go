package contracts

import (
	"fmt"
	"time"
)

// Severity classifies a single reading against the threshold catalog.
// The four levels are totally ordered: good < moderate < poor < critical.
type Severity string

const (
	SeverityGood     Severity = "good"
	SeverityModerate Severity = "moderate"
	SeverityPoor     Severity = "poor"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityGood:     0,
	SeverityModerate: 1,
	SeverityPoor:     2,
	SeverityCritical: 3,
}

func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is the same or a worse level than other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if _, ok := severityRank[s]; !ok {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

// SensorKind identifies the measured quantity of a sensor.
type SensorKind string

const (
	KindPM25        SensorKind = "pm25"
	KindPM10        SensorKind = "pm10"
	KindCO2         SensorKind = "co2"
	KindTVOC        SensorKind = "tvoc"
	KindTemperature SensorKind = "temperature"
	KindHumidity    SensorKind = "humidity"
	KindPressure    SensorKind = "pressure"
)

var knownKinds = map[SensorKind]struct{}{
	KindPM25:        {},
	KindPM10:        {},
	KindCO2:         {},
	KindTVOC:        {},
	KindTemperature: {},
	KindHumidity:    {},
	KindPressure:    {},
}

func ParseKind(raw string) (SensorKind, error) {
	k := SensorKind(raw)
	if _, ok := knownKinds[k]; !ok {
		return "", fmt.Errorf("unknown sensor kind %q", raw)
	}
	return k, nil
}

// Reading is one classified sensor report. Immutable once stored;
// Severity is always derived from Value and Kind, never caller-supplied.
type Reading struct {
	ID           string     `json:"id"`
	SensorID     string     `json:"sensor_id"`
	ZoneID       string     `json:"zone_id"`
	Kind         SensorKind `json:"kind"`
	Value        float64    `json:"value"`
	Severity     Severity   `json:"severity"`
	QualityScore float64    `json:"quality_score"`
	CapturedAt   time.Time  `json:"captured_at"`
	StoredAt     time.Time  `json:"stored_at"`
}

// Alert is one degradation incident opened by a poor or critical reading.
// Lifecycle: open -> acknowledged -> resolved, or open -> resolved.
// Resolved is terminal.
type Alert struct {
	ID             string     `json:"id"`
	ZoneID         string     `json:"zone_id"`
	SensorID       string     `json:"sensor_id"`
	Kind           SensorKind `json:"kind"`
	Value          float64    `json:"value"`
	Severity       Severity   `json:"severity"`
	OpenedAt       time.Time  `json:"opened_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     *string    `json:"resolved_by,omitempty"`
}

func (a Alert) Resolved() bool {
	return a.ResolvedAt != nil
}

// StatusSummary is a building-level rollup pushed to building subscribers.
type StatusSummary struct {
	BuildingID    string    `json:"building_id"`
	ActiveAlerts  int       `json:"active_alerts"`
	WorstSeverity Severity  `json:"worst_severity"`
	GeneratedAt   time.Time `json:"generated_at"`
}
