package detective_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"tribunal/internal/detective"
	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
	"tribunal/internal/store"

	"github.com/google/go-cmp/cmp"
)

func TestMain(m *testing.M) {
	logging.Init(slog.LevelError+1, "text", io.Discard)
	os.Exit(m.Run())
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func collect(t *testing.T, in detective.Inspector, goals []rubric.CriterionGoal) []evidence.Record {
	t.Helper()
	var out []evidence.Record
	err := in.Inspect(context.Background(), goals, func(r evidence.Record) error {
		if err := evidence.ValidateRecord(r); err != nil {
			t.Errorf("inspector emitted invalid record: %v", err)
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	return out
}

func byGoal(recs []evidence.Record) map[string]evidence.Record {
	m := make(map[string]evidence.Record)
	for _, r := range recs {
		m[r.Goal] = r
	}
	return m
}

func TestRepo_Inspect(t *testing.T) {
	root := writeTree(t, map[string]string{
		".git/HEAD":       "ref: refs/heads/main\n",
		"src/graph.py":    "builder = StateGraph(AgentState)\nbuilder.add_edge('a', 'b')\n",
		"src/state.py":    "class AgentState(TypedDict):\n    pass\n",
		"vendor/lib/x.py": "add_conditional_edges StateGraph TypedDict BaseModel",
		"docs/notes.txt":  "StateGraph add_edge",
	})
	goals := []rubric.CriterionGoal{
		{CriterionID: "git_forensic_analysis", Goal: rubric.Goal{Description: "git forensic history", Category: evidence.Repository, Paths: []string{".git"}}},
		{CriterionID: "graph_orchestration", Goal: rubric.Goal{Description: "graph orchestration wiring", Category: evidence.Repository, Paths: []string{"*.py"}, Keywords: []string{"StateGraph", "add_edge", "errgroup"}, MinHits: 2}},
		{CriterionID: "state_management_rigor", Goal: rubric.Goal{Description: "state management models", Category: evidence.Repository, Paths: []string{"*.py"}, Keywords: []string{"TypedDict", "BaseModel"}, MinHits: 2}},
	}
	got := byGoal(collect(t, &detective.Repo{Root: root}, goals))

	if r := got["git forensic history"]; !r.Found || r.Confidence != 0.9 {
		t.Errorf("git goal = %+v, want found", r)
	}
	graph := got["graph orchestration wiring"]
	if !graph.Found || graph.Location != "src/graph.py" || graph.Content != "StateGraph, add_edge" {
		t.Errorf("graph goal = %+v", graph)
	}
	state := got["state management models"]
	if state.Found {
		t.Errorf("state goal found with one keyword (vendor must be skipped): %+v", state)
	}
	if state.Confidence <= 0.6 {
		t.Errorf("absence over a scanned tree should be confident, got %v", state.Confidence)
	}
}

func TestRepo_MissingRootDegradesEachGoal(t *testing.T) {
	goals := []rubric.CriterionGoal{
		{CriterionID: "a_goal", Goal: rubric.Goal{Description: "goal one", Keywords: []string{"x"}}},
		{CriterionID: "b_goal", Goal: rubric.Goal{Description: "goal two", Paths: []string{"y"}}},
	}
	got := collect(t, &detective.Repo{Root: filepath.Join(t.TempDir(), "missing")}, goals)
	if len(got) != 2 {
		t.Fatalf("got %d records, want one per goal", len(got))
	}
	for _, r := range got {
		if !r.Degraded || r.Found || r.Category != evidence.Repository {
			t.Errorf("record %+v, want degraded repository record", r)
		}
	}
}

func gitRepo(t *testing.T, commits int) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", root,
			"-c", "user.name=tribunal", "-c", "user.email=tribunal@example.com", "-c", "commit.gpgsign=false"}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	git("init", "-q")
	for i := range commits {
		git("commit", "-q", "--allow-empty", "-m", fmt.Sprintf("step %d", i+1))
	}
	return root
}

func TestRepo_CommitHistory(t *testing.T) {
	goal := rubric.CriterionGoal{CriterionID: "git_forensic_analysis", Goal: rubric.Goal{
		Description: "commit history", Category: evidence.Repository, MinCommits: 1,
	}}
	tests := []struct {
		name      string
		commits   int
		wantFound bool
		wantConf  float64
		rationale string
	}{
		{"empty repository", 0, false, 0.5, "no readable commit history"},
		{"short history", 2, true, 0.5, "Found 2 commits"},
		{"iterative history", 4, true, 0.9, "Found 4 commits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := gitRepo(t, tt.commits)
			recs := collect(t, &detective.Repo{Root: root}, []rubric.CriterionGoal{goal})
			if len(recs) != 1 {
				t.Fatalf("got %d records, want 1", len(recs))
			}
			r := recs[0]
			if r.Found != tt.wantFound || r.Confidence != tt.wantConf || r.Degraded {
				t.Errorf("found=%v conf=%v degraded=%v, want found=%v conf=%v", r.Found, r.Confidence, r.Degraded, tt.wantFound, tt.wantConf)
			}
			if !strings.Contains(r.Rationale, tt.rationale) {
				t.Errorf("rationale = %q, want it to mention %q", r.Rationale, tt.rationale)
			}
		})
	}
}

func TestRepo_CommitHistoryNeedsCommitsNotGitDir(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := writeTree(t, map[string]string{".git/HEAD": "ref: refs/heads/main\n"})
	goal := rubric.CriterionGoal{CriterionID: "git_forensic_analysis", Goal: rubric.Goal{
		Description: "commit history", Category: evidence.Repository, MinCommits: 1,
	}}
	recs := collect(t, &detective.Repo{Root: root}, []rubric.CriterionGoal{goal})
	if len(recs) != 1 || recs[0].Found {
		t.Errorf("records = %+v, want one not-found record for a .git without commits", recs)
	}
}

func TestDocument_Inspect(t *testing.T) {
	root := writeTree(t, map[string]string{
		"report.md":   "# Report\n\nWe use Fan-Out and Fan-In.\nDialectical Synthesis resolves judges.\n",
		"report.html": "<html><body><p>Fan-<b>Out</b> sandbox</p></body></html>",
	})
	goals := []rubric.CriterionGoal{
		{CriterionID: "theoretical_depth", Goal: rubric.Goal{Description: "theoretical depth", Keywords: []string{"Dialectical Synthesis", "Fan-In", "Fan-Out", "Metacognition"}, MinHits: 2}},
		{CriterionID: "safe_tool_engineering", Goal: rubric.Goal{Description: "safe tool sandboxing", Keywords: []string{"sandbox"}}},
	}
	md := byGoal(collect(t, &detective.Document{Path: filepath.Join(root, "report.md")}, goals))
	depth := md["theoretical depth"]
	if !depth.Found || depth.Confidence <= 0.6 {
		t.Errorf("depth = %+v, want confident found", depth)
	}
	if !strings.HasSuffix(depth.Location, "report.md:3") {
		t.Errorf("Location = %q, want first hit on line 3", depth.Location)
	}
	if md["safe tool sandboxing"].Found {
		t.Error("sandbox keyword absent from markdown but reported found")
	}

	html := byGoal(collect(t, &detective.Document{Path: filepath.Join(root, "report.html")}, goals))
	if !html["safe tool sandboxing"].Found {
		t.Error("html keyword not found after tag stripping")
	}
}

func TestDocument_UnreadableIsDegraded(t *testing.T) {
	goals := []rubric.CriterionGoal{{CriterionID: "theoretical_depth", Goal: rubric.Goal{Description: "theoretical depth", Keywords: []string{"x"}}}}
	for _, path := range []string{"", "report.pdf", filepath.Join(t.TempDir(), "none.md")} {
		got := collect(t, &detective.Document{Path: path}, goals)
		if len(got) != 1 || !got[0].Degraded {
			t.Errorf("path %q: got %+v, want one degraded record", path, got)
		}
	}
}

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) CountDiagrams(context.Context, string) (int, error) { return f.n, f.err }

func TestVisual_Inspect(t *testing.T) {
	goals := []rubric.CriterionGoal{{CriterionID: "graph_orchestration", Goal: rubric.Goal{Description: "graph orchestration diagram", Category: evidence.Visual}}}
	tests := []struct {
		name         string
		in           *detective.Visual
		wantFound    bool
		wantDegraded bool
	}{
		{"no material is a valid miss", &detective.Visual{}, false, false},
		{"diagrams present", &detective.Visual{URL: "file:///r.html", Counter: fakeCounter{n: 2}}, true, false},
		{"no diagrams", &detective.Visual{URL: "file:///r.html", Counter: fakeCounter{}}, false, false},
		{"renderer failure", &detective.Visual{URL: "file:///r.html", Counter: fakeCounter{err: errors.New("chrome missing")}}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, tt.in, goals)
			if len(got) != 1 {
				t.Fatalf("got %d records, want 1", len(got))
			}
			if got[0].Found != tt.wantFound || got[0].Degraded != tt.wantDegraded {
				t.Errorf("record = %+v, want found=%v degraded=%v", got[0], tt.wantFound, tt.wantDegraded)
			}
		})
	}
}

func TestStage_FailingInspectorDegradesPerGoal(t *testing.T) {
	r := rubric.Default()
	doc := &detective.Static{Kind: evidence.Document, Fail: errors.New("pdf parser crashed")}
	repo := &detective.Static{Kind: evidence.Repository, Records: []evidence.Record{
		{Goal: "graph orchestration wiring", Found: true, Confidence: 0.9, Location: "graph.py"},
	}}
	stage := detective.Stage(r, 0, 0, repo, doc, &detective.Visual{})
	if len(stage.Tasks) != 3 {
		t.Fatalf("stage has %d tasks, want 3", len(stage.Tasks))
	}

	snap, reports := fanout.Run(context.Background(), stage, store.NewEvidenceStore())
	if reports[1].Status != fanout.StatusFailed {
		t.Errorf("doc status = %s, want failed", reports[1].Status)
	}

	var degradedGoals []string
	for _, rec := range snap.Partition(string(evidence.Document)) {
		if !rec.Degraded {
			t.Errorf("non-degraded document record from a failed inspector: %+v", rec)
		}
		degradedGoals = append(degradedGoals, rec.Goal)
	}
	var want []string
	for _, g := range r.GoalsFor(evidence.Document) {
		want = append(want, g.Description)
	}
	if diff := cmp.Diff(len(want), len(degradedGoals)); diff != "" {
		t.Errorf("one degraded record per document goal (-want +got):\n%s", diff)
	}
	if n := len(snap.Partition(string(evidence.Visual))); n != 1 {
		t.Errorf("visual records = %d, want 1 not-found record", n)
	}
}

func TestStage_SkipsInspectorsWithoutGoals(t *testing.T) {
	r, err := rubric.Default().Select("theoretical_depth")
	if err != nil {
		t.Fatal(err)
	}
	stage := detective.Stage(r, 0, 0, &detective.Repo{Root: "."}, &detective.Document{Path: "r.md"}, &detective.Visual{})
	if len(stage.Tasks) != 1 || stage.Tasks[0].Name != "doc_analyst" {
		t.Errorf("tasks = %+v, want only the document inspector", stage.Tasks)
	}
}
