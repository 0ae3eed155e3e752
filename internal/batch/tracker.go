package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when a column already has an active run.
var ErrRunInProgress = errors.New("a run is already in progress for this column")

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunState is the lifecycle state of a tracked run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed"
)

// RunStatus is a point-in-time view of a tracked run.
type RunStatus struct {
	RunID      string     `json:"runId"`
	MatrixID   string     `json:"matrixId"`
	ColumnID   string     `json:"columnId"`
	Mode       Mode       `json:"mode"`
	State      RunState   `json:"state"`
	Progress   Progress   `json:"progress"`
	Summary    *Summary   `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// ActiveRun is a run started through a Tracker.
type ActiveRun struct {
	flag *CancelFlag
	done chan struct{}

	mu     sync.Mutex
	status RunStatus
}

// Status returns a snapshot of the run.
func (a *ActiveRun) Status() RunStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.status
	if st.Summary != nil {
		s := *st.Summary
		st.Summary = &s
	}
	return st
}

// Done is closed when the run has finished.
func (a *ActiveRun) Done() <-chan struct{} { return a.done }

// Cancel asks the run to stop before its next row.
func (a *ActiveRun) Cancel() { a.flag.Cancel() }

// Wait blocks until the run finishes or ctx ends.
func (a *ActiveRun) Wait(ctx context.Context) (RunStatus, error) {
	select {
	case <-a.done:
		return a.Status(), nil
	case <-ctx.Done():
		return a.Status(), ctx.Err()
	}
}

// RunFunc performs one column run; Tracker supplies the run options.
type RunFunc func(ctx context.Context, opts RunOptions) (Summary, error)

// Tracker runs column runs in the background, at most one per column.
type Tracker struct {
	mu        sync.Mutex
	runs      map[string]*ActiveRun
	byColumn  map[string]string
	retention time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewTracker keeps finished runs visible for retention.
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Tracker{
		runs:      make(map[string]*ActiveRun),
		byColumn:  make(map[string]string),
		retention: retention,
		now:       time.Now,
	}
}

func columnKey(matrixID, columnID string) string { return matrixID + "\x00" + columnID }

// Start launches fn in its own goroutine. ctx bounds the run; cancelling
// it behaves like Cancel.
func (t *Tracker) Start(ctx context.Context, matrixID, columnID string, mode Mode, fn RunFunc) (*ActiveRun, error) {
	t.mu.Lock()
	t.pruneLocked()
	key := columnKey(matrixID, columnID)
	if id, ok := t.byColumn[key]; ok {
		t.mu.Unlock()
		return t.runs[id], ErrRunInProgress
	}
	run := &ActiveRun{
		flag: NewCancelFlag(),
		done: make(chan struct{}),
		status: RunStatus{
			RunID:     uuid.NewString(),
			MatrixID:  matrixID,
			ColumnID:  columnID,
			Mode:      mode,
			State:     RunRunning,
			StartedAt: t.now(),
		},
	}
	run.status.Progress = Progress{RunID: run.status.RunID, ColumnID: columnID}
	t.runs[run.status.RunID] = run
	t.byColumn[key] = run.status.RunID
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer close(run.done)
		sum, err := fn(ctx, RunOptions{
			Confirmed: true,
			RunID:     run.status.RunID,
			Cancel:    run.flag,
			OnProgress: func(p Progress) {
				run.mu.Lock()
				run.status.Progress = p
				run.mu.Unlock()
			},
		})

		t.mu.Lock()
		delete(t.byColumn, key)
		t.mu.Unlock()

		finished := t.now()
		run.mu.Lock()
		defer run.mu.Unlock()
		run.status.FinishedAt = &finished
		switch {
		case err != nil:
			run.status.State = RunFailed
			run.status.Error = err.Error()
		case sum.Cancelled:
			run.status.State = RunCancelled
			run.status.Summary = &sum
		default:
			run.status.State = RunCompleted
			run.status.Summary = &sum
		}
	}()
	return run, nil
}

// Get returns the run with id.
func (t *Tracker) Get(runID string) (*ActiveRun, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ActiveFor returns the running run for a column, if any.
func (t *Tracker) ActiveFor(matrixID, columnID string) (*ActiveRun, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byColumn[columnKey(matrixID, columnID)]
	if !ok {
		return nil, false
	}
	return t.runs[id], true
}

// Cancel raises the cancel flag of a run. It reports whether the run was
// still going.
func (t *Tracker) Cancel(runID string) (bool, error) {
	run, err := t.Get(runID)
	if err != nil {
		return false, err
	}
	if run.Status().State != RunRunning {
		return false, nil
	}
	run.Cancel()
	return true, nil
}

// Wait blocks until every started run has returned.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) pruneLocked() {
	cutoff := t.now().Add(-t.retention)
	for id, run := range t.runs {
		st := run.Status()
		if st.FinishedAt != nil && st.FinishedAt.Before(cutoff) {
			delete(t.runs, id)
		}
	}
}
