package arbitrate

import (
	"testing"

	"tribunal/internal/evidence"
)

func TestDetectContradiction(t *testing.T) {
	doc := func(goal string, found bool, conf float64) evidence.Record {
		return evidence.Record{Category: evidence.Document, Goal: goal, Found: found, Confidence: conf, Location: "README.md"}
	}
	repo := func(goal string, found bool, conf float64) evidence.Record {
		return evidence.Record{Category: evidence.Repository, Goal: goal, Found: found, Confidence: conf, Location: "src"}
	}
	tests := []struct {
		name    string
		records []evidence.Record
		want    bool
	}{
		{"claim contradicted", []evidence.Record{doc("state reducers", true, 0.9), repo("state reducers", false, 0.9)}, true},
		{"claim supported", []evidence.Record{doc("state reducers", true, 0.9), repo("state reducers", true, 0.9)}, false},
		{"claim at threshold", []evidence.Record{doc("state reducers", true, 0.6), repo("state reducers", false, 0.9)}, false},
		{"weak repository miss", []evidence.Record{doc("state reducers", true, 0.9), repo("state reducers", false, 0.5)}, false},
		{"no repository record for criterion", []evidence.Record{doc("state reducers", true, 0.9), repo("git log", true, 0.9)}, true},
		{"no repository evidence at all", []evidence.Record{doc("state reducers", true, 0.9)}, false},
		{"documentation denies", []evidence.Record{doc("state reducers", false, 0.9), repo("state reducers", false, 0.9)}, false},
		{"degraded repository ignored", []evidence.Record{
			doc("state reducers", true, 0.9),
			evidence.DegradedRecord(evidence.Repository, "repo", "state reducers", "", nil),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectContradiction("state_management_rigor", tt.records, 0.6)
			if (got != "") != tt.want {
				t.Errorf("DetectContradiction = %q, want contradiction=%v", got, tt.want)
			}
		})
	}
}

func TestRoundHalfUp(t *testing.T) {
	for in, want := range map[float64]int{2.5: 3, 3.49: 3, 3.5: 4, 1.0: 1, 4.67: 5} {
		if got := roundHalfUp(in); got != want {
			t.Errorf("roundHalfUp(%v) = %d, want %d", in, got, want)
		}
	}
}
