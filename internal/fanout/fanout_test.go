package fanout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/logging"
	"tribunal/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestMain(m *testing.M) {
	logging.Init(slog.LevelError+1, "text", io.Discard)
	os.Exit(m.Run())
}

func recordTask(name string, cat evidence.Category, goals ...string) fanout.Task[evidence.Record] {
	return fanout.Task[evidence.Record]{
		Name: name,
		Run: func(ctx context.Context, emit fanout.Emit[evidence.Record]) error {
			for _, g := range goals {
				if err := emit(evidence.Record{Category: cat, Goal: g, Found: true, Location: name, Confidence: 0.9, Source: name}); err != nil {
					return err
				}
			}
			return nil
		},
		Degrade: degradeRecord(name, cat),
	}
}

func degradeRecord(name string, cat evidence.Category) func(error, []evidence.Record) []evidence.Record {
	return func(err error, emitted []evidence.Record) []evidence.Record {
		return []evidence.Record{evidence.DegradedRecord(cat, name, "inspection", name, err)}
	}
}

func statuses(reports []fanout.TaskReport) map[string]fanout.Status {
	out := make(map[string]fanout.Status)
	for _, r := range reports {
		out[r.Task] = r.Status
	}
	return out
}

func TestRun_AllTasksSucceed(t *testing.T) {
	stage := fanout.Stage[evidence.Record]{
		Name: "detectives",
		Tasks: []fanout.Task[evidence.Record]{
			recordTask("repo", evidence.Repository, "graph orchestration", "state management"),
			recordTask("doc", evidence.Document, "theoretical depth"),
			recordTask("vision", evidence.Visual, "diagram"),
		},
	}
	snap, reports := fanout.Run(context.Background(), stage, store.NewEvidenceStore())

	if snap.Len() != 4 {
		t.Errorf("snapshot has %d records, want 4", snap.Len())
	}
	want := map[string]fanout.Status{"repo": fanout.StatusOK, "doc": fanout.StatusOK, "vision": fanout.StatusOK}
	if diff := cmp.Diff(want, statuses(reports)); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
	if reports[0].Task != "repo" || reports[0].Emitted != 2 {
		t.Errorf("reports[0] = %+v, want repo with 2 emitted", reports[0])
	}
}

func TestRun_FailedTaskIsDegraded(t *testing.T) {
	boom := errors.New("clone failed")
	stage := fanout.Stage[evidence.Record]{
		Name: "detectives",
		Tasks: []fanout.Task[evidence.Record]{
			recordTask("doc", evidence.Document, "theoretical depth"),
			{
				Name:    "repo",
				Run:     func(context.Context, fanout.Emit[evidence.Record]) error { return boom },
				Degrade: degradeRecord("repo", evidence.Repository),
			},
		},
	}
	snap, reports := fanout.Run(context.Background(), stage, store.NewEvidenceStore())

	repo := snap.Partition(string(evidence.Repository))
	if len(repo) != 1 || !repo[0].Degraded || repo[0].Found {
		t.Fatalf("repository partition = %+v, want one degraded not-found record", repo)
	}
	if reports[1].Status != fanout.StatusFailed || reports[1].Degraded != 1 {
		t.Errorf("repo report = %+v, want failed with 1 degraded", reports[1])
	}
	if reports[1].Error != boom.Error() {
		t.Errorf("repo report error = %q, want %q", reports[1].Error, boom.Error())
	}
}

func TestRun_DeadlineCutsOffStraggler(t *testing.T) {
	release := make(chan struct{})
	lateErr := make(chan error, 1)
	t.Cleanup(func() { close(release) })

	slow := fanout.Task[evidence.Record]{
		Name: "vision",
		Run: func(ctx context.Context, emit fanout.Emit[evidence.Record]) error {
			if err := emit(evidence.Record{Category: evidence.Visual, Goal: "early", Confidence: 1}); err != nil {
				return err
			}
			<-release // ignores ctx on purpose
			lateErr <- emit(evidence.Record{Category: evidence.Visual, Goal: "late", Confidence: 1})
			return nil
		},
		Degrade: degradeRecord("vision", evidence.Visual),
	}
	stage := fanout.Stage[evidence.Record]{
		Name:     "detectives",
		Deadline: 50 * time.Millisecond,
		Tasks:    []fanout.Task[evidence.Record]{slow, recordTask("doc", evidence.Document, "claims")},
	}

	start := time.Now()
	snap, reports := fanout.Run(context.Background(), stage, store.NewEvidenceStore())
	if time.Since(start) > 5*time.Second {
		t.Fatal("stage did not honour its deadline")
	}

	if reports[0].Status != fanout.StatusTimedOut {
		t.Fatalf("vision status = %s, want timed_out", reports[0].Status)
	}
	if reports[0].Emitted != 1 {
		t.Errorf("vision emitted = %d, want 1 (kept)", reports[0].Emitted)
	}
	var goals []string
	for _, r := range snap.Partition(string(evidence.Visual)) {
		goals = append(goals, r.Goal)
	}
	if diff := cmp.Diff([]string{"early", "inspection"}, goals, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("visual goals mismatch (-want +got):\n%s", diff)
	}

	release <- struct{}{}
	if err := <-lateErr; !errors.Is(err, fanout.ErrTaskClosed) {
		t.Errorf("late emit = %v, want ErrTaskClosed", err)
	}
}

func TestRun_ValidationErrorAbortsTask(t *testing.T) {
	var afterReject error
	judge := fanout.Task[evidence.Opinion]{
		Name: "techlead",
		Run: func(ctx context.Context, emit fanout.Emit[evidence.Opinion]) error {
			_ = emit(evidence.Opinion{Role: evidence.TechLead, CriterionID: "c1", Score: 9})
			afterReject = emit(evidence.Opinion{Role: evidence.TechLead, CriterionID: "c2", Score: 4})
			return nil // error swallowed; the executor still notices
		},
		Degrade: func(err error, emitted []evidence.Opinion) []evidence.Opinion {
			return []evidence.Opinion{evidence.DegradedOpinion(evidence.TechLead, "c1", err)}
		},
	}
	snap, reports := fanout.Run(context.Background(), fanout.Stage[evidence.Opinion]{Name: "judges", Tasks: []fanout.Task[evidence.Opinion]{judge}}, store.NewOpinionStore())

	if !errors.Is(afterReject, fanout.ErrTaskClosed) {
		t.Errorf("emit after rejection = %v, want ErrTaskClosed", afterReject)
	}
	if reports[0].Status != fanout.StatusFailed {
		t.Fatalf("status = %s, want failed", reports[0].Status)
	}
	all := snap.All()
	if len(all) != 1 || all[0].Score != evidence.NeutralScore || !all[0].EvaluationFailed {
		t.Errorf("snapshot = %+v, want one neutral degraded opinion", all)
	}
}

func TestRun_ValidationErrorOutranksCancellation(t *testing.T) {
	judge := fanout.Task[evidence.Opinion]{
		Name: "prosecutor",
		Run: func(ctx context.Context, emit fanout.Emit[evidence.Opinion]) error {
			_ = emit(evidence.Opinion{Role: evidence.Prosecutor, CriterionID: "c1", Score: 9})
			<-ctx.Done()
			return ctx.Err()
		},
	}
	_, reports := fanout.Run(context.Background(), fanout.Stage[evidence.Opinion]{Name: "judges", Tasks: []fanout.Task[evidence.Opinion]{judge}}, store.NewOpinionStore())

	if reports[0].Status != fanout.StatusFailed {
		t.Errorf("status = %s, want failed", reports[0].Status)
	}
	if strings.Contains(reports[0].Error, "context canceled") || !strings.Contains(reports[0].Error, "Score") {
		t.Errorf("error = %q, want the rejected opinion's validation error", reports[0].Error)
	}
}

func TestRun_PanicIsFailure(t *testing.T) {
	task := fanout.Task[evidence.Record]{
		Name:    "repo",
		Run:     func(context.Context, fanout.Emit[evidence.Record]) error { panic("nil tree") },
		Degrade: degradeRecord("repo", evidence.Repository),
	}
	snap, reports := fanout.Run(context.Background(), fanout.Stage[evidence.Record]{Name: "detectives", Tasks: []fanout.Task[evidence.Record]{task}}, store.NewEvidenceStore())
	if reports[0].Status != fanout.StatusFailed {
		t.Errorf("status = %s, want failed", reports[0].Status)
	}
	if snap.Len() != 1 {
		t.Errorf("snapshot len = %d, want 1 degraded record", snap.Len())
	}
}

func TestRun_CompletionOrderDoesNotMatter(t *testing.T) {
	delayed := func(name string, d time.Duration) fanout.Task[evidence.Record] {
		inner := recordTask(name, evidence.Repository, name+"-goal")
		return fanout.Task[evidence.Record]{
			Name: name,
			Run: func(ctx context.Context, emit fanout.Emit[evidence.Record]) error {
				time.Sleep(d)
				return inner.Run(ctx, emit)
			},
		}
	}
	run := func(da, db, dc time.Duration, parallel int) []evidence.Record {
		stage := fanout.Stage[evidence.Record]{
			Name:     "detectives",
			Parallel: parallel,
			Tasks:    []fanout.Task[evidence.Record]{delayed("a", da), delayed("b", db), delayed("c", dc)},
		}
		snap, _ := fanout.Run(context.Background(), stage, store.NewEvidenceStore())
		return snap.All()
	}
	ignoreID := cmpopts.IgnoreFields(evidence.Record{}, "ID")
	first := run(0, 5*time.Millisecond, 10*time.Millisecond, 0)
	second := run(10*time.Millisecond, 5*time.Millisecond, 0, 0)
	serial := run(0, 0, 0, 1)
	if diff := cmp.Diff(first, second, ignoreID); diff != "" {
		t.Errorf("completion order changed the snapshot (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, serial, ignoreID); diff != "" {
		t.Errorf("parallelism changed the snapshot (-parallel +serial):\n%s", diff)
	}
}
