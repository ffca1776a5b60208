// Package evidence holds the immutable values exchanged between producers
// and the arbitration core: evidence records from detectives and opinions
// from judges.
package evidence

import (
	"cmp"
	"fmt"

	"github.com/google/uuid"
)

// Category partitions evidence by the kind of inspection that produced it.
type Category string

const (
	Repository Category = "REPOSITORY"
	Document   Category = "DOCUMENT"
	Visual     Category = "VISUAL"
)

// Categories lists every category in canonical order.
var Categories = []Category{Repository, Document, Visual}

func (c Category) rank() int {
	for i, k := range Categories {
		if k == c {
			return i
		}
	}
	return len(Categories)
}

// Record is one piece of forensic evidence. Producers create it once; the
// store owns it after ingestion and nothing mutates it afterwards.
type Record struct {
	ID         string   `json:"id" yaml:"id"`
	Category   Category `json:"category" yaml:"category" validate:"required,oneof=REPOSITORY DOCUMENT VISUAL"`
	Goal       string   `json:"goal" yaml:"goal" validate:"nonblank"`
	Found      bool     `json:"found" yaml:"found"`
	Content    string   `json:"content,omitempty" yaml:"content,omitempty"`
	Location   string   `json:"location" yaml:"location"`
	Rationale  string   `json:"rationale" yaml:"rationale"`
	Confidence float64  `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	Source     string   `json:"source,omitempty" yaml:"source,omitempty"`
	Degraded   bool     `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// NewID returns a short record identifier.
func NewID() string {
	return "ev_" + uuid.NewString()[:8]
}

// WithID returns r with an identifier assigned when it has none.
func (r Record) WithID() Record {
	if r.ID == "" {
		r.ID = NewID()
	}
	return r
}

// DegradedRecord is the placeholder a failing producer contributes so that
// downstream stages still see one entry for it.
func DegradedRecord(cat Category, source, goal, location string, cause error) Record {
	reason := "producer failed"
	if cause != nil {
		reason = cause.Error()
	}
	return Record{
		ID:         NewID(),
		Category:   cat,
		Goal:       goal,
		Found:      false,
		Content:    reason,
		Location:   location,
		Rationale:  fmt.Sprintf("%s could not complete: %s", source, reason),
		Confidence: 0,
		Source:     source,
		Degraded:   true,
	}
}

// CompareRecords is a total order over records used to canonicalise
// snapshots, so that contents never depend on submission order.
func CompareRecords(a, b Record) int {
	if c := cmp.Compare(a.Category.rank(), b.Category.rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Goal, b.Goal); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Location, b.Location); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	if c := compareBool(a.Found, b.Found); c != 0 {
		return c
	}
	if c := compareBool(a.Degraded, b.Degraded); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Confidence, b.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Content, b.Content); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Rationale, b.Rationale); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
