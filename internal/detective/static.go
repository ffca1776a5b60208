package detective

import (
	"context"
	"time"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/rubric"
)

// Static replays recorded evidence of one category. Scenarios use it in
// place of live inspectors; Fail and Delay simulate a broken or slow
// collaborator.
type Static struct {
	Source  string
	Kind    evidence.Category
	Records []evidence.Record
	Fail    error
	Delay   time.Duration
}

func (s *Static) Name() string {
	if s.Source != "" {
		return s.Source
	}
	return "static_" + string(s.Kind)
}

func (s *Static) Category() evidence.Category { return s.Kind }

func (s *Static) Inspect(ctx context.Context, _ []rubric.CriterionGoal, emit fanout.Emit[evidence.Record]) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.Fail != nil {
		return s.Fail
	}
	for _, r := range s.Records {
		r.Category = s.Kind
		if r.Source == "" {
			r.Source = s.Name()
		}
		if err := emit(r); err != nil {
			return err
		}
	}
	return nil
}
