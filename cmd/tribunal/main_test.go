package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level=error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_ScenarioThenMeta(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--scenario", "end-to-end", "--db", db, "--format", "json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var rep struct {
		RunID        string  `json:"run_id"`
		Target       string  `json:"target"`
		OverallScore float64 `json:"overall_score"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if rep.OverallScore != 3.0 {
		t.Errorf("overall_score = %v, want 3.0", rep.OverallScore)
	}
	if rep.Target != "github.com/example/agentic-auditor" {
		t.Errorf("target = %q", rep.Target)
	}

	out, err = execute(t, "meta", "--db", db, "--target", rep.Target)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if !strings.Contains(out, "Consolidated **1** runs") {
		t.Errorf("meta output missing run count:\n%s", out)
	}
}

func TestRun_LiveHeuristicPanel(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "graph.py"), []byte("builder = StateGraph(AgentState)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	doc := filepath.Join(dir, "report.md")
	if err := os.WriteFile(doc, []byte("# Report\n\nWe use typed state with reducers.\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "run", "--repo", dir, "--doc", doc, "--db", "", "--format", "table",
		"--criteria", "graph_orchestration,state_management_rigor")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(strings.ToLower(out), "overall") {
		t.Errorf("table output missing footer:\n%s", out)
	}
}

func TestRun_Rejects(t *testing.T) {
	tests := map[string][]string{
		"nothing to audit":   {"run", "--db", ""},
		"scenario and repo":  {"run", "--scenario", "end-to-end", "--repo", ".", "--db", ""},
		"unknown scenario":   {"run", "--scenario", "no-such-scenario", "--db", ""},
		"unknown criterion":  {"run", "--scenario", "end-to-end", "--criteria", "nope", "--db", ""},
		"scenario panel":     {"run", "--doc", "report.md", "--judges", "scenario", "--db", ""},
		"unknown panel":      {"run", "--doc", "report.md", "--judges", "oracle", "--db", ""},
		"unknown log format": {"run", "--scenario", "end-to-end", "--log-format", "xml", "--db", ""},
		"unknown format":     {"run", "--scenario", "end-to-end", "--format", "pdf", "--db", ""},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestArbitrate_SecurityOverride(t *testing.T) {
	out, err := execute(t, "arbitrate", "--criterion", "safe_tool_engineering",
		"--prosecutor", "1", "--defense", "5", "--techlead", "5", "--format", "json")
	if err != nil {
		t.Fatalf("arbitrate: %v", err)
	}
	var res struct {
		FinalScore int `json:"final_score"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.FinalScore != 3 {
		t.Errorf("final_score = %d, want 3", res.FinalScore)
	}
}

func TestArbitrate_EvidenceFileMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	data := `- category: REPOSITORY
  goal: State management with typed models and reducers
  found: false
  location: src/state.py
  confidence: 0.9
- category: DOCUMENT
  goal: State management rigor explained in the report
  found: true
  location: report.md
  confidence: 0.9
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "arbitrate", "--criterion", "state_management_rigor",
		"--prosecutor", "2", "--defense", "4", "--techlead", "3", "--evidence", path)
	if err != nil {
		t.Fatalf("arbitrate: %v", err)
	}
	if !strings.Contains(out, "# Audit Report") {
		t.Errorf("expected a Markdown report:\n%s", out)
	}
	if !strings.Contains(out, "Repository **1**") {
		t.Errorf("expected the evidence summary to count the file records:\n%s", out)
	}
}

func TestArbitrate_RequiresCriterion(t *testing.T) {
	if _, err := execute(t, "arbitrate", "--prosecutor", "3"); err == nil {
		t.Error("expected error without --criterion")
	}
}

func TestRubric_CSV(t *testing.T) {
	out, err := execute(t, "rubric", "--format", "csv")
	if err != nil {
		t.Fatalf("rubric: %v", err)
	}
	for _, id := range []string{"git_forensic_analysis", "safe_tool_engineering", "structured_output"} {
		if !strings.Contains(out, id) {
			t.Errorf("rubric output missing %s:\n%s", id, out)
		}
	}
}
