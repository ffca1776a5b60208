package store

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"tribunal/internal/evidence"
)

// DefaultArchivePath is the default relative path for the SQLite run archive.
const DefaultArchivePath = ".tribunal/runs.db"

// CriterionScore is the archived outcome of one criterion in a run.
type CriterionScore struct {
	CriterionID   string `json:"criterion_id"`
	FinalScore    int    `json:"final_score"`
	Contradiction bool   `json:"contradiction,omitempty"`
}

// Run is one completed audit as kept for multi-run consolidation.
type Run struct {
	ID             string             `json:"id"`
	Target         string             `json:"target"`
	CreatedAt      time.Time          `json:"created_at"`
	OverallScore   float64            `json:"overall_score"`
	Criteria       []CriterionScore   `json:"criteria"`
	Opinions       []evidence.Opinion `json:"opinions"`
	Evidence       []evidence.Record  `json:"evidence"`
	Contradictions []string           `json:"contradictions,omitempty"`
}

// Archive persists completed runs.
type Archive interface {
	SaveRun(run *Run) error
	ListRuns(target string) ([]*Run, error)
	Close() error
}

// MemArchive is an in-memory Archive.
type MemArchive struct {
	mu   sync.Mutex
	runs []*Run
}

// NewMemArchive returns an empty in-memory archive.
func NewMemArchive() *MemArchive { return &MemArchive{} }

func (a *MemArchive) SaveRun(run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.runs {
		if r.ID == run.ID {
			return errors.New("run " + run.ID + " already archived")
		}
	}
	cp := *run
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	a.runs = append(a.runs, &cp)
	return nil
}

// ListRuns returns the runs for target (all runs when target is empty),
// oldest first.
func (a *MemArchive) ListRuns(target string) ([]*Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Run
	for _, r := range a.runs {
		if target == "" || r.Target == target {
			cp := *r
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(x, y *Run) int { return x.CreatedAt.Compare(y.CreatedAt) })
	return out, nil
}

func (a *MemArchive) Close() error { return nil }
