package store

import (
	"tribunal/internal/evidence"
)

// EvidenceSpec partitions evidence records by category.
var EvidenceSpec = Spec[evidence.Record]{
	Name:      "evidence",
	Validate:  evidence.ValidateRecord,
	Partition: func(r evidence.Record) string { return string(r.Category) },
	Compare:   evidence.CompareRecords,
	Prepare:   func(r evidence.Record) evidence.Record { return r.WithID() },
}

// OpinionSpec partitions judge opinions by criterion.
var OpinionSpec = Spec[evidence.Opinion]{
	Name:      "opinions",
	Validate:  evidence.ValidateOpinion,
	Partition: func(o evidence.Opinion) string { return o.CriterionID },
	Compare:   evidence.CompareOpinions,
}

// EvidenceStore and OpinionStore are the two stores of an audit run.
type (
	EvidenceStore    = Store[evidence.Record]
	OpinionStore     = Store[evidence.Opinion]
	EvidenceSnapshot = Snapshot[evidence.Record]
	OpinionSnapshot  = Snapshot[evidence.Opinion]
)

// NewEvidenceStore returns an empty evidence store.
func NewEvidenceStore() *EvidenceStore { return New(EvidenceSpec) }

// NewOpinionStore returns an empty opinion store.
func NewOpinionStore() *OpinionStore { return New(OpinionSpec) }

// FreezeEvidence builds a frozen evidence snapshot directly from records,
// for callers that already hold a complete evidence set. Invalid records
// fail the whole call.
func FreezeEvidence(records ...evidence.Record) (*EvidenceSnapshot, error) {
	st := NewEvidenceStore()
	for _, r := range records {
		if err := st.Submit(r); err != nil {
			return nil, err
		}
	}
	return st.Freeze(), nil
}

// CategoryCounts returns the number of records per category, with every
// category present.
func CategoryCounts(snap *EvidenceSnapshot) map[evidence.Category]int {
	counts := snap.Counts()
	out := make(map[evidence.Category]int, len(evidence.Categories))
	for _, c := range evidence.Categories {
		out[c] = counts[string(c)]
	}
	return out
}

// StageConfidence is the mean confidence of the non-degraded records in the
// snapshot, or 0 when there are none.
func StageConfidence(snap *EvidenceSnapshot) float64 {
	var sum float64
	var n int
	for _, r := range snap.All() {
		if r.Degraded {
			continue
		}
		sum += r.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
