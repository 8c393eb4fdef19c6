package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesUniqueAndSuffixed(t *testing.T) {
	seen := make(map[string]bool, len(CounterDefs))
	ids := make(map[uint16]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "goaccess_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q must be goaccess_*_total", def.Name)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate counter name %q", def.Name)
		}
		if ids[uint16(def.ID)] {
			t.Fatalf("duplicate counter id %d", def.ID)
		}
		seen[def.Name] = true
		ids[uint16(def.ID)] = true
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(HistogramBounds) != len(got)-1 {
		t.Fatalf("expected one bound per finite bucket, got %d", len(HistogramBounds))
	}
}
