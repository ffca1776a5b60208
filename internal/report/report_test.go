package report_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tribunal/internal/arbitrate"
	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/format"
	"tribunal/internal/logging"
	"tribunal/internal/report"
	"tribunal/internal/store"
)

var testTime = time.Date(2026, 2, 18, 14, 30, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	logging.Init(slog.LevelError+1, "text", io.Discard)
	os.Exit(m.Run())
}

func panel(id string, p, d, t int) []evidence.Opinion {
	return []evidence.Opinion{
		{Role: evidence.Prosecutor, CriterionID: id, Score: p, Rationale: "p"},
		{Role: evidence.Defense, CriterionID: id, Score: d, Rationale: "d"},
		{Role: evidence.TechLead, CriterionID: id, Score: t, Rationale: "t"},
	}
}

func endToEnd(t *testing.T) ([]arbitrate.CriterionResult, *store.EvidenceSnapshot) {
	t.Helper()
	cfg := arbitrate.DefaultConfig()
	cfg.Policies = map[string]arbitrate.Policy{
		"graph_orchestration":   {TechLeadMultiplier: 2},
		"safe_tool_engineering": {SafetyCritical: true},
	}
	snap, err := store.FreezeEvidence(
		evidence.Record{Category: evidence.Repository, Goal: "graph orchestration artifacts", Found: true, Confidence: 0.9, Location: "graph.py"},
		evidence.Record{Category: evidence.Repository, Goal: "safe tool engineering: shell injection", Found: true, Confidence: 0.9, Location: "tools.py"},
		evidence.Record{Category: evidence.Visual, Goal: "graph orchestration diagram", Found: false, Confidence: 0.5},
	)
	if err != nil {
		t.Fatal(err)
	}
	eng := arbitrate.NewEngine(cfg)
	var results []arbitrate.CriterionResult
	for _, c := range []struct{ id, name string }{
		{"graph_orchestration", "Graph Orchestration"},
		{"safe_tool_engineering", "Safe Tool Engineering"},
	} {
		results = append(results, eng.Arbitrate(arbitrate.Case{
			CriterionID:     c.id,
			Name:            c.name,
			Opinions:        panel(c.id, 1, 3, 3),
			Evidence:        snap.All(),
			StageConfidence: store.StageConfidence(snap),
		}))
	}
	return results, snap
}

func TestCompile_EndToEnd(t *testing.T) {
	results, snap := endToEnd(t)
	rep := report.Compile(results, snap, report.Meta{RunID: "run-1", Target: "demo", GeneratedAt: testTime})

	if rep.OverallScore != 3.0 {
		t.Errorf("OverallScore = %v, want 3.0", rep.OverallScore)
	}
	wantSummary := map[evidence.Category]int{evidence.Repository: 2, evidence.Document: 0, evidence.Visual: 1}
	if diff := cmp.Diff(wantSummary, rep.EvidenceSummary); diff != "" {
		t.Errorf("EvidenceSummary (-want +got):\n%s", diff)
	}
	if len(rep.Remediation) != 2 {
		t.Fatalf("remediation entries = %d, want 2", len(rep.Remediation))
	}
	if got := rep.Remediation[1].Remediation; !strings.HasPrefix(got, arbitrate.RemediationImmediateFix) {
		t.Errorf("safe tool remediation = %q", got)
	}
	if rep.Criteria[0].CriterionID != "graph_orchestration" {
		t.Errorf("criteria order not kept: %s first", rep.Criteria[0].CriterionID)
	}
}

func TestOverallScore(t *testing.T) {
	tests := []struct {
		scores []int
		want   float64
	}{
		{nil, 0},
		{[]int{3}, 3},
		{[]int{1, 2}, 1.5},
		{[]int{1, 2, 2}, 1.7},
		{[]int{5, 4, 4}, 4.3},
	}
	for _, tc := range tests {
		var results []arbitrate.CriterionResult
		for _, s := range tc.scores {
			results = append(results, arbitrate.CriterionResult{FinalScore: s})
		}
		if got := report.OverallScore(results); got != tc.want {
			t.Errorf("OverallScore(%v) = %v, want %v", tc.scores, got, tc.want)
		}
	}
}

func TestCompile_NilSnapshotAndContradictions(t *testing.T) {
	results := []arbitrate.CriterionResult{
		{CriterionID: "a", Name: "A", FinalScore: 1, ContradictionFlag: true, Contradiction: "docs claim x, repo lacks x", Remediation: "Resolve contradiction: docs claim x, repo lacks x"},
		{CriterionID: "b", Name: "B", FinalScore: 4, Remediation: arbitrate.RemediationContinue},
	}
	rep := report.Compile(results, nil, report.Meta{RunID: "r"})

	if rep.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not defaulted")
	}
	for _, c := range evidence.Categories {
		if n, ok := rep.EvidenceSummary[c]; !ok || n != 0 {
			t.Errorf("summary[%s] = %d, %v", c, n, ok)
		}
	}
	want := []string{"a: docs claim x, repo lacks x"}
	if diff := cmp.Diff(want, rep.DetectedContradictions); diff != "" {
		t.Errorf("contradictions (-want +got):\n%s", diff)
	}
	if rep.OverallScore != 2.5 {
		t.Errorf("OverallScore = %v", rep.OverallScore)
	}
}

func TestRun_Archived(t *testing.T) {
	results, snap := endToEnd(t)
	rep := report.Compile(results, snap, report.Meta{RunID: "run-1", Target: "demo", GeneratedAt: testTime})
	run := rep.Run()

	if run.ID != "run-1" || run.Target != "demo" || !run.CreatedAt.Equal(testTime) {
		t.Errorf("run header = %+v", run)
	}
	if len(run.Criteria) != 2 || len(run.Opinions) != 6 || len(run.Evidence) != 3 {
		t.Errorf("criteria=%d opinions=%d evidence=%d", len(run.Criteria), len(run.Opinions), len(run.Evidence))
	}
}

func TestMarkdown(t *testing.T) {
	results, snap := endToEnd(t)
	rep := report.Compile(results, snap, report.Meta{
		RunID: "run-1", Target: "demo", GeneratedAt: testTime,
		Stages: []fanout.TaskReport{
			{Stage: "detectives", Task: "repo_investigator", Status: fanout.StatusOK, Emitted: 2},
			{Stage: "judges", Task: "techlead", Status: fanout.StatusTimedOut, Degraded: 2, Duration: 1500 * time.Millisecond},
		},
	})
	got := report.Markdown(rep)

	for _, want := range []string{
		"# Audit Report: demo",
		"2026-02-18 14:30 UTC",
		"3.0 / 5",
		"Graph Orchestration (graph_orchestration)",
		"Prosecutor 1, Defense 3, Tech Lead 3",
		"Security Override Triggered",
		"Repository **2**",
		"Immediate fix required",
		"Judicial Panel",
		"Timed Out",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q:\n%s", want, got)
		}
	}
	if len(rep.Failed()) != 1 {
		t.Errorf("Failed() = %v", rep.Failed())
	}
}

func TestMarkdown_Empty(t *testing.T) {
	if got := report.Markdown(nil); !strings.Contains(got, "No criteria arbitrated") {
		t.Errorf("got %q", got)
	}
}

func TestTable_CSV(t *testing.T) {
	results, snap := endToEnd(t)
	rep := report.Compile(results, snap, report.Meta{RunID: "run-1"})
	got := report.Table(rep, format.CSV)
	if !strings.Contains(got, "Safe Tool Engineering (safe_tool_engineering)") || !strings.Contains(got, "3.0") {
		t.Errorf("csv table:\n%s", got)
	}
}

func TestJSON(t *testing.T) {
	results, snap := endToEnd(t)
	rep := report.Compile(results, snap, report.Meta{RunID: "run-1", GeneratedAt: testTime})
	data, err := report.JSON(rep)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["overall_score"] != 3.0 {
		t.Errorf("overall_score = %v", decoded["overall_score"])
	}
	if _, ok := decoded["evidence"]; ok {
		t.Error("evidence should not be rendered")
	}
	summary := decoded["evidence_summary"].(map[string]any)
	if summary["REPOSITORY"] != 2.0 {
		t.Errorf("evidence_summary = %v", summary)
	}
}
