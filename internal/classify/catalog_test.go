package classify

import (
	"errors"
	"testing"

	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
)

func TestClassifyPM25Bands(t *testing.T) {
	cat := Default()
	cases := []struct {
		value float64
		want  contracts.Severity
	}{
		{0, contracts.SeverityGood},
		{11.9, contracts.SeverityGood},
		{35.3, contracts.SeverityGood},
		{35.4, contracts.SeverityModerate},
		{40, contracts.SeverityModerate},
		{55.4, contracts.SeverityPoor},
		{60, contracts.SeverityPoor},
		{150.4, contracts.SeverityCritical},
		{200, contracts.SeverityCritical},
	}
	for _, tc := range cases {
		got, err := cat.Classify(contracts.KindPM25, tc.value)
		if err != nil {
			t.Fatalf("classify pm25 %.1f: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("pm25 %.1f: expected %s, got %s", tc.value, tc.want, got)
		}
	}
}

func TestClassifyHumidityInverted(t *testing.T) {
	cat := Default()
	cases := []struct {
		value float64
		want  contracts.Severity
	}{
		{55, contracts.SeverityGood},
		{31, contracts.SeverityGood},
		{30, contracts.SeverityModerate},
		{25, contracts.SeverityModerate},
		{20, contracts.SeverityPoor},
		{15, contracts.SeverityPoor},
		{10, contracts.SeverityCritical},
		{2, contracts.SeverityCritical},
	}
	for _, tc := range cases {
		got, err := cat.Classify(contracts.KindHumidity, tc.value)
		if err != nil {
			t.Fatalf("classify humidity %.1f: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("humidity %.1f: expected %s, got %s", tc.value, tc.want, got)
		}
	}
}

func TestClassifyMonotonicity(t *testing.T) {
	cat := Default()
	for kind := range map[contracts.SensorKind]struct{}{
		contracts.KindPM25:        {},
		contracts.KindCO2:         {},
		contracts.KindTemperature: {},
	} {
		prev := -1
		for v := 0.0; v < 6000; v += 7.3 {
			sev, err := cat.Classify(kind, v)
			if err != nil {
				t.Fatalf("classify %s %.1f: %v", kind, v, err)
			}
			if sev.Rank() < prev {
				t.Fatalf("%s severity decreased at value %.1f", kind, v)
			}
			prev = sev.Rank()
		}
	}

	// Inverted kind must be non-increasing in value.
	prev := 99
	for v := 0.0; v <= 100; v += 0.5 {
		sev, err := cat.Classify(contracts.KindHumidity, v)
		if err != nil {
			t.Fatalf("classify humidity %.1f: %v", v, err)
		}
		if sev.Rank() > prev {
			t.Fatalf("humidity severity increased at value %.1f", v)
		}
		prev = sev.Rank()
	}
}

func TestClassifyBoundariesInclusiveTowardWorse(t *testing.T) {
	cat := Default()
	e, err := cat.Entry(contracts.KindCO2)
	if err != nil {
		t.Fatalf("entry co2: %v", err)
	}
	for threshold, want := range map[float64]contracts.Severity{
		e.Moderate: contracts.SeverityModerate,
		e.Poor:     contracts.SeverityPoor,
		e.Critical: contracts.SeverityCritical,
	} {
		got, err := cat.Classify(contracts.KindCO2, threshold)
		if err != nil {
			t.Fatalf("classify co2 boundary %.1f: %v", threshold, err)
		}
		if got != want {
			t.Fatalf("co2 boundary %.1f: expected %s, got %s", threshold, want, got)
		}
	}
}

func TestClassifyUnknownKindIsConfigurationError(t *testing.T) {
	cat := NewCatalog()
	_, err := cat.Classify(contracts.KindPM25, 10)
	if !errors.Is(err, contracts.ErrKindNotConfigured) {
		t.Fatalf("expected ErrKindNotConfigured, got %v", err)
	}
}
