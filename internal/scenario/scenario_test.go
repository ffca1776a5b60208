package scenario_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tribunal/internal/audit"
	"tribunal/internal/evidence"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
	"tribunal/internal/scenario"
)

func TestMain(m *testing.M) {
	logging.Init(slog.LevelError+1, "text", io.Discard)
	os.Exit(m.Run())
}

func TestList(t *testing.T) {
	want := []string{"contradiction", "degraded-panel", "end-to-end", "security-override"}
	if diff := cmp.Diff(want, scenario.List()); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := scenario.Load("nonexistent")
	if !errors.Is(err, scenario.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// Every embedded scenario replays to the outcome it declares.
func TestScenarios_Replay(t *testing.T) {
	for _, name := range scenario.List() {
		t.Run(name, func(t *testing.T) {
			s, err := scenario.Load(name)
			if err != nil {
				t.Fatalf("Load(%q): %v", name, err)
			}
			if s.Name != name {
				t.Errorf("Name = %q, want %q", s.Name, name)
			}
			if s.Expect == nil {
				t.Fatal("embedded scenarios must declare an expected outcome")
			}
			r, err := s.Rubric(rubric.Default())
			if err != nil {
				t.Fatal(err)
			}
			a := audit.New(audit.Config{
				Rubric:            r,
				Judges:            s.Panel(),
				Inspectors:        s.Inspectors(),
				DetectiveDeadline: 5 * time.Second,
				JudgeDeadline:     5 * time.Second,
			})
			rep, err := a.Run(context.Background(), s.Target)
			if err != nil {
				t.Fatal(err)
			}
			if rep.OverallScore != s.Expect.OverallScore {
				t.Errorf("OverallScore = %v, want %v", rep.OverallScore, s.Expect.OverallScore)
			}
			got := make(map[string]int, len(rep.Criteria))
			for _, c := range rep.Criteria {
				got[c.CriterionID] = c.FinalScore
			}
			if diff := cmp.Diff(s.Expect.Scores, got); diff != "" {
				t.Errorf("scores (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_ContradictionFlagged(t *testing.T) {
	s, err := scenario.Load("contradiction")
	if err != nil {
		t.Fatal(err)
	}
	r, _ := s.Rubric(rubric.Default())
	rep, err := audit.New(audit.Config{Rubric: r, Judges: s.Panel(), Inspectors: s.Inspectors()}).Run(context.Background(), s.Target)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.DetectedContradictions) != 1 || !rep.Criteria[0].ContradictionFlag {
		t.Errorf("contradictions = %v", rep.DetectedContradictions)
	}
}

func TestPanel_FailingSeat(t *testing.T) {
	s, err := scenario.Load("degraded-panel")
	if err != nil {
		t.Fatal(err)
	}
	panel := s.Panel()
	if len(panel) != 3 || panel[2].Role() != evidence.TechLead {
		t.Fatalf("panel = %v", panel)
	}
	c, _ := rubric.Default().Criterion("judicial_nuance")
	if _, err := panel[2].Evaluate(context.Background(), c, nil); err == nil {
		t.Error("failing seat should return an error")
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "name: x\ntarget: t\nbogus: 1\n",
		"bad role":       "name: x\njudges:\n  - role: CLERK\n",
		"score range":    "name: x\njudges:\n  - role: DEFENSE\n    scores: {a: 9}\n",
		"duplicate seat": "name: x\njudges:\n  - role: DEFENSE\n  - role: DEFENSE\n",
		"bad category":   "name: x\nevidence:\n  - category: AUDIO\n",
		"blank name":     "target: t\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := scenario.Parse([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResolve_Path(t *testing.T) {
	doc := `name: custom
target: local
criteria: [judicial_nuance]
evidence:
  - category: VISUAL
    delay: 10ms
judges:
  - role: DEFENSE
    scores: {judicial_nuance: 4}
`
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := scenario.Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Evidence[0].Delay != 10*time.Millisecond {
		t.Errorf("Delay = %v", s.Evidence[0].Delay)
	}
	if len(s.Panel()) != 1 || len(s.Inspectors()) != 1 {
		t.Errorf("panel=%d inspectors=%d", len(s.Panel()), len(s.Inspectors()))
	}
}
