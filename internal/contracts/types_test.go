package contracts

import "testing"

func TestSeverityOrdering(t *testing.T) {
	order := []Severity{SeverityGood, SeverityModerate, SeverityPoor, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if !order[i].AtLeast(order[i-1]) {
			t.Fatalf("%s must be at least %s", order[i], order[i-1])
		}
		if order[i-1].AtLeast(order[i]) {
			t.Fatalf("%s must not be at least %s", order[i-1], order[i])
		}
	}
	if !SeverityPoor.AtLeast(SeverityPoor) {
		t.Fatal("a severity is at least itself")
	}
}

func TestParseSeverity(t *testing.T) {
	if _, err := ParseSeverity("poor"); err != nil {
		t.Fatalf("parse poor: %v", err)
	}
	if _, err := ParseSeverity("catastrophic"); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}

func TestParseKind(t *testing.T) {
	if _, err := ParseKind("pm25"); err != nil {
		t.Fatalf("parse pm25: %v", err)
	}
	if _, err := ParseKind("noise"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestWindowShapes(t *testing.T) {
	cases := map[Window]struct {
		periodHours, bucketHours int
	}{
		WindowDay:   {24, 1},
		WindowWeek:  {7 * 24, 6},
		WindowMonth: {30 * 24, 24},
	}
	for window, want := range cases {
		if got := int(window.Period().Hours()); got != want.periodHours {
			t.Fatalf("%s period: expected %dh, got %dh", window, want.periodHours, got)
		}
		if got := int(window.Bucket().Hours()); got != want.bucketHours {
			t.Fatalf("%s bucket: expected %dh, got %dh", window, want.bucketHours, got)
		}
	}
	if _, err := ParseWindow("90d"); err == nil {
		t.Fatal("expected error for unknown window")
	}
}

func TestAggregationScopeValid(t *testing.T) {
	if !ZoneScope("z1").Valid() || !BuildingScope("b1").Valid() {
		t.Fatal("single-sided scopes must be valid")
	}
	if (AggregationScope{}).Valid() {
		t.Fatal("empty scope must be invalid")
	}
	if (AggregationScope{ZoneID: "z1", BuildingID: "b1"}).Valid() {
		t.Fatal("double scope must be invalid")
	}
}

func TestAlertEventScopes(t *testing.T) {
	ev := AlertOpenedEvent{BuildingID: "b1", Alert: Alert{ZoneID: "z1"}}
	if ev.Zone() != "z1" || ev.Building() != "b1" {
		t.Fatalf("alert event must carry both scopes, got %q/%q", ev.Zone(), ev.Building())
	}

	re := ReadingEvent{BuildingID: "b1", Reading: Reading{ZoneID: "z1"}}
	if re.Building() != "" {
		t.Fatal("reading events are zone-scoped only")
	}

	se := StatusEvent{Summary: StatusSummary{BuildingID: "b1"}}
	if se.Zone() != "" || se.Building() != "b1" {
		t.Fatal("status events are building-scoped only")
	}
}
