// Package pipeline runs one skill cell: loading, file resolution, prompt
// compilation, inference, validation and the conditional write-back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skillgrid/internal/files"
	"github.com/skillgrid/internal/inference"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/skills"
	"github.com/skillgrid/internal/validator"
)

var (
	ErrNotSkillColumn = errors.New("column has no skill configuration")
	ErrNoRunner       = errors.New("no inference runner configured")
)

// Deps are the collaborators a Pipeline works with.
type Deps struct {
	Holder         *matrix.Holder
	Registry       *skills.Registry
	Runner         inference.Runner
	Files          *files.Cache
	Resolver       files.Resolver
	FileLimits     files.Limits
	ProjectContext string
	Now            func() time.Time
	NewRunID       func() string
	Logger         *zerolog.Logger
}

type Pipeline struct {
	holder         *matrix.Holder
	registry       *skills.Registry
	runner         inference.Runner
	files          *files.Cache
	resolver       files.Resolver
	fileLimits     files.Limits
	projectContext string
	now            func() time.Time
	newRunID       func() string
	logger         zerolog.Logger
}

func New(d Deps) *Pipeline {
	p := &Pipeline{
		holder:         d.Holder,
		registry:       d.Registry,
		runner:         d.Runner,
		files:          d.Files,
		resolver:       d.Resolver,
		fileLimits:     d.FileLimits,
		projectContext: d.ProjectContext,
		now:            d.Now,
		newRunID:       d.NewRunID,
		logger:         log.Logger,
	}
	if p.registry == nil {
		p.registry = skills.Builtin()
	}
	if p.files == nil {
		p.files = files.NewCache()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newRunID == nil {
		p.newRunID = func() string { return uuid.NewString() }
	}
	if d.Logger != nil {
		p.logger = *d.Logger
	}
	return p
}

// Holder returns the matrix accessor the pipeline reads and writes.
func (p *Pipeline) Holder() *matrix.Holder { return p.holder }

// Registry returns the template catalog in use.
func (p *Pipeline) Registry() *skills.Registry { return p.registry }

// Runner returns the inference runner in use.
func (p *Pipeline) Runner() inference.Runner { return p.runner }

// WithRunner returns a copy of p that sends inference to r.
func (p *Pipeline) WithRunner(r inference.Runner) *Pipeline {
	cp := *p
	cp.runner = r
	return &cp
}

// Outcome describes how one run ended.
type Outcome struct {
	RunID     string        `json:"runId"`
	RowID     string        `json:"rowId"`
	ColumnID  string        `json:"columnId"`
	Status    matrix.Status `json:"status"`
	Discarded bool          `json:"discarded"`
	Err       string        `json:"error,omitempty"`
}

// Run executes one cell, publishing every transition straight to the holder.
func (p *Pipeline) Run(ctx context.Context, rowID, columnID string) (Outcome, error) {
	return p.Execute(ctx, rowID, columnID, DirectWriter(p.holder))
}

// Execute runs one cell through w. The returned error covers only requests
// that could not start (unknown row, non-skill column); run failures are
// recorded on the cell and reported in the Outcome.
func (p *Pipeline) Execute(ctx context.Context, rowID, columnID string, w Writer) (Outcome, error) {
	m := p.holder.Current()
	col, ok := m.Column(columnID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", matrix.ErrColumnNotFound, columnID)
	}
	if col.Skill == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotSkillColumn, columnID)
	}
	if _, ok := m.Row(rowID); !ok {
		return Outcome{}, fmt.Errorf("%w: %s", matrix.ErrRowNotFound, rowID)
	}
	if p.runner == nil {
		return Outcome{}, ErrNoRunner
	}

	runID := p.newRunID()
	prev := m.Cell(rowID, columnID)
	if err := w.Begin(rowID, columnID, runID); err != nil {
		return Outcome{}, err
	}
	start := time.Now()
	out := Outcome{RunID: runID, RowID: rowID, ColumnID: columnID}
	logger := p.logger.With().Str("row", rowID).Str("column", columnID).Str("run", runID).Logger()

	cell, kind := p.produce(ctx, rowID, columnID, runID, logger)

	if ctx.Err() != nil {
		// Superseded by cancellation: put back what was there before.
		w.Commit(rowID, columnID, runID, prev)
		out.Status = prev.Status
		out.Discarded = true
		recordRun(string(kind), "discarded", time.Since(start).Seconds())
		logger.Debug().Msg("Cell run cancelled, previous state restored")
		return out, nil
	}

	out.Status = cell.Status
	if cell.Status == matrix.StatusError {
		out.Err = cell.Reasoning
	}
	if !w.Commit(rowID, columnID, runID, cell) {
		out.Discarded = true
		recordRun(string(kind), "discarded", time.Since(start).Seconds())
		logger.Debug().Msg("Cell no longer loading for this run, result discarded")
		return out, nil
	}
	recordRun(string(kind), string(cell.Status), time.Since(start).Seconds())
	logger.Debug().Str("status", string(cell.Status)).Dur("took", time.Since(start)).Msg("Cell run finished")
	return out, nil
}

// produce computes the resolved cell for one run against the current
// snapshot, so edits made after Begin are seen.
func (p *Pipeline) produce(ctx context.Context, rowID, columnID, runID string, logger zerolog.Logger) (matrix.Cell, validator.Kind) {
	m := p.holder.Current()
	col, okCol := m.Column(columnID)
	row, okRow := m.Row(rowID)
	if !okCol || !okRow || col.Skill == nil {
		return errorCell(columnID, runID, "row or column was removed during the run", nil), ""
	}
	cfg := *col.Skill

	resolved := files.ResolveAll(ctx, cfg.FileIDs, p.files, p.resolver, p.fileLimits, logger)

	compiled, err := skills.CompileBinding(skills.Resolve(p.registry, cfg), skills.CompileSource{
		Matrix:         m,
		Row:            row,
		ColumnID:       columnID,
		FileNames:      files.Names(resolved),
		ProjectContext: p.projectContext,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Prompt compilation failed")
		return errorCell(columnID, runID, err.Error(), nil), cfg.OutputKind
	}

	prov := &matrix.Provenance{
		TemplateID: compiled.TemplateID,
		FileIDs:    files.IDs(resolved),
		PromptHash: inference.PromptHash(compiled.Text),
	}
	c := compiled.Constraints
	resp, err := p.runner.RunSkillCell(ctx, inference.Request{
		Prompt:            compiled.Text,
		OutputKind:        compiled.OutputKind,
		Validate:          compiled.Validate,
		ContextFiles:      resolved,
		EvidenceRequired:  compiled.Evidence.Required,
		NoGuessing:        compiled.Evidence.NoGuessing,
		AllowedEnums:      c.AllowedEnums,
		AllowedUnits:      c.AllowedUnits,
		AllowedPeriods:    c.AllowedPeriods,
		AllowedCurrencies: c.AllowedCurrencies,
		DefaultUnit:       c.DefaultUnit,
		DefaultPeriod:     c.DefaultPeriod,
		RowID:             rowID,
	})
	prov.Timestamp = p.now()
	kind := compiled.OutputKind
	if err != nil {
		logger.Warn().Err(err).Msg("Inference boundary failure")
		return errorCell(columnID, runID, err.Error(), prov), kind
	}
	prov.Model = resp.Model
	if resp.PromptHash != "" {
		prov.PromptHash = resp.PromptHash
	}
	if resp.OutputKind != "" {
		kind = resp.OutputKind
	}
	if !resp.OK {
		cell := errorCell(columnID, runID, resp.Error, prov)
		cell.Value = resp.RawText
		cell.OutputKind = kind
		return cell, kind
	}
	return matrix.Cell{
		ColumnID:     columnID,
		Value:        resp.DisplayValue,
		Status:       matrix.StatusSuccess,
		DisplayValue: resp.DisplayValue,
		Reasoning:    resp.Reasoning,
		Normalized:   resp.Normalized,
		OutputKind:   kind,
		Provenance:   prov,
		Citations:    resp.Citations,
		RunID:        runID,
	}, kind
}

func errorCell(columnID, runID, reason string, prov *matrix.Provenance) matrix.Cell {
	return matrix.Cell{
		ColumnID:   columnID,
		Status:     matrix.StatusError,
		Reasoning:  reason,
		Provenance: prov,
		RunID:      runID,
	}
}

// Cancel returns a loading cell to idle so that its in-flight result is
// discarded on arrival. It reports whether anything was in flight.
func (p *Pipeline) Cancel(rowID, columnID string) bool {
	cancelled := false
	_, _ = p.holder.Apply(func(m *matrix.Matrix) (*matrix.Matrix, error) {
		cur := m.Cell(rowID, columnID)
		if cur.Status != matrix.StatusLoading {
			return m, nil
		}
		cur.Status = matrix.StatusIdle
		cur.RunID = ""
		next, err := m.WithCell(rowID, columnID, cur)
		if err == nil {
			cancelled = true
		}
		return next, err
	})
	return cancelled
}
