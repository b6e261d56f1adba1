package classify

import (
	"fmt"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

// Entry holds the ordered threshold bands for one sensor kind.
// For a normal kind a value at or above a band's threshold is at least
// that severity. Inverted kinds (humidity) read the other way: a value
// at or below a band's threshold is at least that severity. Inversion
// lives here, on the catalog entry, not in call sites.
type Entry struct {
	Kind     contracts.SensorKind
	Unit     string
	Inverted bool
	Good     float64
	Moderate float64
	Poor     float64
	Critical float64
}

// Catalog is the immutable per-kind threshold table. Pure lookup; a
// missing entry is a configuration fault surfaced to the caller.
type Catalog struct {
	entries map[contracts.SensorKind]Entry
}

func NewCatalog(entries ...Entry) *Catalog {
	m := make(map[contracts.SensorKind]Entry, len(entries))
	for _, e := range entries {
		m[e.Kind] = e
	}
	return &Catalog{entries: m}
}

// Default returns the catalog with the stock facility thresholds.
func Default() *Catalog {
	return NewCatalog(
		Entry{Kind: contracts.KindPM25, Unit: "ug/m3", Good: 12, Moderate: 35.4, Poor: 55.4, Critical: 150.4},
		Entry{Kind: contracts.KindPM10, Unit: "ug/m3", Good: 54, Moderate: 154, Poor: 254, Critical: 354},
		Entry{Kind: contracts.KindCO2, Unit: "ppm", Good: 600, Moderate: 1000, Poor: 2000, Critical: 5000},
		Entry{Kind: contracts.KindTVOC, Unit: "ppb", Good: 220, Moderate: 660, Poor: 2200, Critical: 5500},
		Entry{Kind: contracts.KindTemperature, Unit: "C", Good: 26, Moderate: 30, Poor: 35, Critical: 40},
		Entry{Kind: contracts.KindHumidity, Unit: "%", Inverted: true, Good: 40, Moderate: 30, Poor: 20, Critical: 10},
		Entry{Kind: contracts.KindPressure, Unit: "hPa", Good: 1015, Moderate: 1025, Poor: 1035, Critical: 1045},
	)
}

func (c *Catalog) Entry(kind contracts.SensorKind) (Entry, error) {
	e, ok := c.entries[kind]
	if !ok {
		return Entry{}, fmt.Errorf("catalog entry for %s: %w", kind, contracts.ErrKindNotConfigured)
	}
	return e, nil
}

// Classify maps a raw value to a severity. Total over values: any value
// with a configured kind classifies, defaulting to good below (above,
// for inverted kinds) the moderate boundary. Boundaries are inclusive
// toward the worse severity on both orientations.
func (c *Catalog) Classify(kind contracts.SensorKind, value float64) (contracts.Severity, error) {
	e, err := c.Entry(kind)
	if err != nil {
		return "", err
	}
	if e.Inverted {
		switch {
		case value <= e.Critical:
			return contracts.SeverityCritical, nil
		case value <= e.Poor:
			return contracts.SeverityPoor, nil
		case value <= e.Moderate:
			return contracts.SeverityModerate, nil
		default:
			return contracts.SeverityGood, nil
		}
	}
	switch {
	case value >= e.Critical:
		return contracts.SeverityCritical, nil
	case value >= e.Poor:
		return contracts.SeverityPoor, nil
	case value >= e.Moderate:
		return contracts.SeverityModerate, nil
	default:
		return contracts.SeverityGood, nil
	}
}
