// Package workspace ties the open matrices to their pipelines, batch runners
// and persistence. It is the single entry point the CLI, HTTP API and job
// queue drive.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skillgrid/internal/batch"
	"github.com/skillgrid/internal/files"
	"github.com/skillgrid/internal/grid"
	"github.com/skillgrid/internal/inference"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/pipeline"
	"github.com/skillgrid/internal/skills"
)

var (
	ErrRunNotFound   = batch.ErrRunNotFound
	ErrRunInProgress = batch.ErrRunInProgress
	ErrInvalidMatrix = errors.New("invalid matrix")
)

// Options configure a Workspace. Only Store is required.
type Options struct {
	Store          matrix.Store
	Registry       *skills.Registry
	Runner         inference.Runner
	Files          *files.Cache
	Resolver       files.Resolver
	FileLimits     files.Limits
	ProjectContext string
	Batch          batch.Config
	RunRetention   time.Duration
	Logger         *zerolog.Logger
}

type session struct {
	holder   *matrix.Holder
	pipeline *pipeline.Pipeline
	runner   *batch.Runner
}

// Workspace keeps one holder per open matrix. Every published snapshot is
// saved back to the store.
type Workspace struct {
	ctx     context.Context
	opts    Options
	logger  zerolog.Logger
	tracker *batch.Tracker

	mu   sync.Mutex
	open map[string]*session
}

// New returns a workspace whose background runs live as long as ctx.
func New(ctx context.Context, opts Options) *Workspace {
	if opts.Registry == nil {
		opts.Registry = skills.Builtin()
	}
	if opts.Files == nil {
		opts.Files = files.NewCache()
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Workspace{
		ctx:     ctx,
		opts:    opts,
		logger:  logger,
		tracker: batch.NewTracker(opts.RunRetention),
		open:    make(map[string]*session),
	}
}

// Registry is the template catalog in use.
func (w *Workspace) Registry() *skills.Registry { return w.opts.Registry }

func (w *Workspace) session(ctx context.Context, id string) (*session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.open[id]; ok {
		return s, nil
	}
	m, err := w.opts.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load matrix %s: %w", id, err)
	}
	return w.openLocked(m.Normalize()), nil
}

func (w *Workspace) openLocked(m *matrix.Matrix) *session {
	h := matrix.NewHolder(m)
	h.Subscribe(matrix.StoreSink(w.ctx, w.opts.Store, w.logger))
	p := pipeline.New(pipeline.Deps{
		Holder:         h,
		Registry:       w.opts.Registry,
		Runner:         w.opts.Runner,
		Files:          w.opts.Files,
		Resolver:       w.opts.Resolver,
		FileLimits:     w.opts.FileLimits,
		ProjectContext: w.opts.ProjectContext,
		Logger:         &w.logger,
	})
	s := &session{
		holder:   h,
		pipeline: p,
		runner:   batch.NewRunner(p, w.opts.Batch).WithLogger(w.logger),
	}
	w.open[m.ID] = s
	return s
}

// List returns the stored matrices.
func (w *Workspace) List(ctx context.Context) ([]matrix.Summary, error) {
	return w.opts.Store.List(ctx)
}

// Matrix returns the current snapshot of a matrix.
func (w *Workspace) Matrix(ctx context.Context, id string) (*matrix.Matrix, error) {
	s, err := w.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.holder.Current(), nil
}

// Put stores m, replacing an open snapshot if there is one.
func (w *Workspace) Put(ctx context.Context, m *matrix.Matrix) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMatrix)
	}
	m = m.Normalize()
	w.mu.Lock()
	s, ok := w.open[m.ID]
	if !ok {
		s = w.openLocked(m)
	}
	w.mu.Unlock()
	if ok {
		s.holder.Replace(m)
		return nil
	}
	return w.opts.Store.Save(ctx, m)
}

// EditCell sets a cell's value by hand. Any run in flight for the cell is
// superseded.
func (w *Workspace) EditCell(ctx context.Context, matrixID, rowID, columnID, value string) (matrix.Cell, error) {
	s, err := w.session(ctx, matrixID)
	if err != nil {
		return matrix.Cell{}, err
	}
	m, err := s.holder.Apply(func(m *matrix.Matrix) (*matrix.Matrix, error) {
		return m.EditCell(rowID, columnID, value)
	})
	if err != nil {
		return matrix.Cell{}, err
	}
	return m.Cell(rowID, columnID), nil
}

// RunCell runs one cell and waits for it.
func (w *Workspace) RunCell(ctx context.Context, matrixID, rowID, columnID string) (pipeline.Outcome, error) {
	s, err := w.session(ctx, matrixID)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return s.pipeline.Run(ctx, rowID, columnID)
}

// CancelCell discards the in-flight run of a cell, if any.
func (w *Workspace) CancelCell(ctx context.Context, matrixID, rowID, columnID string) (bool, error) {
	s, err := w.session(ctx, matrixID)
	if err != nil {
		return false, err
	}
	return s.pipeline.Cancel(rowID, columnID), nil
}

// RunColumn runs a column to completion on the caller's goroutine.
func (w *Workspace) RunColumn(ctx context.Context, matrixID, columnID string, mode batch.Mode, opts batch.RunOptions) (batch.Summary, error) {
	s, err := w.session(ctx, matrixID)
	if err != nil {
		return batch.Summary{}, err
	}
	return s.runner.RunColumn(ctx, columnID, mode, opts)
}

// StartColumnRun starts a tracked background run. Requests that would be
// rejected by the runner fail here instead of inside the background run.
func (w *Workspace) StartColumnRun(ctx context.Context, matrixID, columnID string, mode batch.Mode, confirmed bool) (batch.RunStatus, error) {
	s, err := w.session(ctx, matrixID)
	if err != nil {
		return batch.RunStatus{}, err
	}
	if mode.Destructive() && !confirmed {
		return batch.RunStatus{}, batch.ErrConfirmationRequired
	}
	col, ok := s.holder.Current().Column(columnID)
	if !ok {
		return batch.RunStatus{}, fmt.Errorf("%w: %s", matrix.ErrColumnNotFound, columnID)
	}
	if col.Skill == nil {
		return batch.RunStatus{}, fmt.Errorf("%w: %s", pipeline.ErrNotSkillColumn, columnID)
	}
	run, err := w.tracker.Start(w.ctx, matrixID, columnID, mode, func(ctx context.Context, opts batch.RunOptions) (batch.Summary, error) {
		return s.runner.RunColumn(ctx, columnID, mode, opts)
	})
	if err != nil {
		if run != nil {
			return run.Status(), err
		}
		return batch.RunStatus{}, err
	}
	return run.Status(), nil
}

// CancelColumnRun stops a tracked run before its next row.
func (w *Workspace) CancelColumnRun(runID string) (bool, error) {
	return w.tracker.Cancel(runID)
}

// Progress returns the latest state of a tracked run.
func (w *Workspace) Progress(runID string) (batch.RunStatus, error) {
	run, err := w.tracker.Get(runID)
	if err != nil {
		return batch.RunStatus{}, err
	}
	return run.Status(), nil
}

// WaitRun blocks until a tracked run finishes.
func (w *Workspace) WaitRun(ctx context.Context, runID string) (batch.RunStatus, error) {
	run, err := w.tracker.Get(runID)
	if err != nil {
		return batch.RunStatus{}, err
	}
	return run.Wait(ctx)
}

// Viewport renders the window of a matrix visible in vp.
func (w *Workspace) Viewport(ctx context.Context, matrixID string, vp grid.Viewport) (grid.Frame, error) {
	s, err := w.session(ctx, matrixID)
	if err != nil {
		return grid.Frame{}, err
	}
	return grid.Render(s.holder.Current(), vp), nil
}

// Close waits for background runs. Cancel the workspace context first to
// stop them early.
func (w *Workspace) Close() {
	w.tracker.Wait()
}
