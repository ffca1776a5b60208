// Package fanout runs a fixed set of independent producer tasks
// concurrently, feeds their output into a merge store and joins them at a
// single barrier. The same executor serves the detective stage and the
// judge panel stage.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tribunal/internal/logging"
	"tribunal/internal/metrics"
	"tribunal/internal/store"

	"golang.org/x/sync/errgroup"
)

// ErrTaskClosed is returned by Emit once the task has been cut off by the
// stage deadline, by its own failure, or by the join barrier.
var ErrTaskClosed = errors.New("task output closed")

// Status is the final state of one producer task.
type Status string

const (
	StatusOK       Status = metrics.StatusOK
	StatusFailed   Status = metrics.StatusFailed
	StatusTimedOut Status = metrics.StatusTimedOut
)

// Emit submits one value from a running task to the stage store.
type Emit[V any] func(V) error

// Task is one independent producer.
type Task[V any] struct {
	Name string
	// Run produces values through emit. Returning an error marks the task
	// failed; values already emitted are kept.
	Run func(ctx context.Context, emit Emit[V]) error
	// Degrade returns the placeholder values contributed by a failed or
	// timed out task, given what it managed to emit before it stopped.
	Degrade func(err error, emitted []V) []V
}

// Stage is a statically known task set sharing one deadline.
type Stage[V any] struct {
	Name  string
	Tasks []Task[V]
	// Deadline bounds the whole stage. Zero means no deadline beyond ctx.
	Deadline time.Duration
	// Parallel caps concurrently running tasks. Zero means all at once.
	Parallel int
}

// TaskReport describes how one task ended.
type TaskReport struct {
	Stage    string        `json:"stage"`
	Task     string        `json:"task"`
	Status   Status        `json:"status"`
	Emitted  int           `json:"emitted"`
	Degraded int           `json:"degraded"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Run executes every task of the stage, waits for all of them to finish or
// for the deadline to pass, then freezes st and returns its snapshot.
// Task failures never fail the stage; each failing task is replaced by its
// degraded output. Reports are returned in task order.
func Run[V any](ctx context.Context, stage Stage[V], st *store.Store[V]) (*store.Snapshot[V], []TaskReport) {
	logger := logging.New("fanout").With("stage", stage.Name)
	start := time.Now()

	stageCtx := ctx
	if stage.Deadline > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, stage.Deadline)
		defer cancel()
	}

	logger.Info("stage started", "tasks", len(stage.Tasks), "deadline", stage.Deadline, "parallel", stage.Parallel)

	reports := make([]TaskReport, len(stage.Tasks))
	g, gctx := errgroup.WithContext(stageCtx)
	if stage.Parallel > 0 {
		g.SetLimit(stage.Parallel)
	}
	for i, task := range stage.Tasks {
		g.Go(func() error {
			reports[i] = runTask(gctx, stage.Name, task, st)
			return nil
		})
	}
	_ = g.Wait() // failures are captured in the reports

	snap := st.Freeze()
	elapsed := time.Since(start)
	metrics.ObserveStage(stage.Name, elapsed)

	var failed int
	for _, r := range reports {
		metrics.CountTask(stage.Name, string(r.Status))
		if r.Status != StatusOK {
			failed++
		}
	}
	logger.Info("stage joined", "values", snap.Len(), "degraded_tasks", failed, "duration", elapsed)
	return snap, reports
}

func runTask[V any](ctx context.Context, stageName string, task Task[V], st *store.Store[V]) TaskReport {
	logger := logging.New("fanout").With("stage", stageName, "task", task.Name)
	start := time.Now()
	rep := TaskReport{Stage: stageName, Task: task.Name, Status: StatusOK}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	out := &output[V]{st: st, cancel: cancel}

	var err error
	if ctx.Err() != nil {
		// Waited for a slot past the deadline.
		err = ctx.Err()
	} else {
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("task panicked: %v", r)
				}
			}()
			done <- task.Run(taskCtx, out.emit)
		}()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	emitted, rejected := out.close()
	// A rejection cancels taskCtx, so err is often just its echo.
	if rejected != nil {
		err = rejected
	}
	if err != nil {
		rep.Status = StatusFailed
		if ctx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			rep.Status = StatusTimedOut
		}
		rep.Error = err.Error()
	}
	rep.Emitted = len(emitted)

	if rep.Status != StatusOK && task.Degrade != nil {
		for _, v := range task.Degrade(err, emitted) {
			if serr := st.Submit(v); serr != nil {
				logger.Error("degraded value rejected", "error", serr)
				continue
			}
			rep.Degraded++
		}
	}
	rep.Duration = time.Since(start)

	if rep.Status == StatusOK {
		logger.Debug("task finished", "emitted", rep.Emitted, "duration", rep.Duration)
	} else {
		logger.Warn("task degraded", "status", rep.Status, "error", err, "emitted", rep.Emitted, "substituted", rep.Degraded)
	}
	return rep
}

// output guards a task's access to the store. Once closed, further emits
// are refused so a straggler cannot contribute after its cut-off.
type output[V any] struct {
	st     *store.Store[V]
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	emitted  []V
	rejected error
}

func (o *output[V]) emit(v V) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrTaskClosed
	}
	if err := o.st.Submit(v); err != nil {
		// A structurally invalid value aborts the producing task.
		o.rejected = err
		o.closed = true
		o.cancel()
		return err
	}
	o.emitted = append(o.emitted, v)
	return nil
}

func (o *output[V]) close() ([]V, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return o.emitted, o.rejected
}
