// Package batch runs one skill column across a selection of rows, strictly
// one row at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skillgrid/internal/inference"
	"github.com/skillgrid/internal/logging"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/pipeline"
)

// ErrConfirmationRequired is returned for an unconfirmed ModeAll run.
var ErrConfirmationRequired = errors.New("mode all overwrites existing values and must be confirmed")

// Progress is reported after every row.
type Progress struct {
	RunID     string `json:"runId"`
	ColumnID  string `json:"columnId"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Summary describes a finished run.
type Summary struct {
	RunID     string        `json:"runId"`
	ColumnID  string        `json:"columnId"`
	Mode      Mode          `json:"mode"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Discarded int           `json:"discarded"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
	LogPath   string        `json:"logPath,omitempty"`
}

// RunOptions are per-run knobs.
type RunOptions struct {
	Confirmed  bool
	RunID      string
	Cancel     *CancelFlag
	OnProgress func(Progress)
}

// Runner drives a pipeline over many rows.
type Runner struct {
	pipeline *pipeline.Pipeline
	cfg      Config
	now      func() time.Time
	logger   zerolog.Logger
}

func NewRunner(p *pipeline.Pipeline, cfg Config) *Runner {
	return &Runner{pipeline: p, cfg: cfg, now: time.Now, logger: log.Logger}
}

// WithLogger replaces the runner's logger.
func (r *Runner) WithLogger(l zerolog.Logger) *Runner {
	r.logger = l
	return r
}

// runLoggable is implemented by runners that can mirror traffic into a run log.
type runLoggable interface {
	WithRunLogger(*logging.RunLogger) inference.Runner
}

// RunColumn processes the rows mode selects, one after another. Individual
// row failures are recorded on their cells and never stop the run; cancelling
// stops before the next row and keeps completed rows. Queued writes are
// flushed on every exit path.
func (r *Runner) RunColumn(ctx context.Context, columnID string, mode Mode, opts RunOptions) (Summary, error) {
	if mode.Destructive() && !opts.Confirmed {
		batchRuns.WithLabelValues(string(mode), "rejected").Inc()
		return Summary{}, ErrConfirmationRequired
	}
	holder := r.pipeline.Holder()
	m := holder.Current()
	col, ok := m.Column(columnID)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", matrix.ErrColumnNotFound, columnID)
	}
	if col.Skill == nil {
		return Summary{}, fmt.Errorf("%w: %s", pipeline.ErrNotSkillColumn, columnID)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	targets := SelectRows(m, columnID, mode)
	sum := Summary{RunID: runID, ColumnID: columnID, Mode: mode, Total: len(targets)}
	start := r.now()
	logger := r.logger.With().Str("run", runID).Str("column", columnID).Str("mode", string(mode)).Logger()

	p := r.pipeline
	var runLog *logging.RunLogger
	if r.cfg.RunLogDir != "" && len(targets) > 0 {
		rl, err := logging.StartRunLogging(r.cfg.RunLogDir, runID)
		if err != nil {
			logger.Warn().Err(err).Msg("Run log unavailable")
		} else {
			runLog = rl
			defer rl.Close()
			sum.LogPath = rl.Path()
			if lr, ok := p.Runner().(runLoggable); ok {
				p = p.WithRunner(lr.WithRunLogger(rl))
			}
		}
	}
	runLog.LogSection(fmt.Sprintf("COLUMN RUN %s (%s) - %d rows", columnID, mode, len(targets)))

	final := make(map[string]matrix.Status, len(targets))
	const discarded = matrix.Status("discarded")
	w := newQueuedWriter(holder, r.cfg, r.now, func(rowID string) { final[rowID] = discarded })

	logger.Info().Int("rows", len(targets)).Msg("Column run started")
	func() {
		defer w.Flush()
		for i, rowID := range targets {
			if opts.Cancel.Cancelled() || ctx.Err() != nil {
				sum.Cancelled = true
				return
			}
			out, err := p.Execute(ctx, rowID, columnID, w)
			sum.Processed++
			switch {
			case err != nil:
				// the row or column vanished mid-run
				logger.Warn().Err(err).Str("row", rowID).Msg("Row skipped")
				runLog.LogError("row "+rowID, err)
				final[rowID] = discarded
			case out.Discarded:
				final[rowID] = discarded
			default:
				final[rowID] = out.Status
				if out.Status == matrix.StatusError {
					runLog.Log("Row %s failed: %s", rowID, out.Err)
				}
			}
			if w.Due() {
				w.Flush()
			}
			if opts.OnProgress != nil {
				ok, failed := tally(final)
				opts.OnProgress(Progress{RunID: runID, ColumnID: columnID, Current: i + 1, Total: len(targets), Succeeded: ok, Failed: failed})
			}
			if i == len(targets)-1 {
				return
			}
			delay := r.cfg.SuccessDelay
			if final[rowID] != matrix.StatusSuccess {
				delay = r.cfg.ErrorDelay
			}
			if !r.pause(ctx, opts.Cancel, delay) {
				sum.Cancelled = true
				return
			}
		}
	}()

	for _, st := range final {
		switch st {
		case matrix.StatusSuccess:
			sum.Succeeded++
		case matrix.StatusError:
			sum.Failed++
		default:
			sum.Discarded++
		}
	}
	for st, n := range map[string]int{"success": sum.Succeeded, "error": sum.Failed, "discarded": sum.Discarded} {
		if n > 0 {
			batchRows.WithLabelValues(string(mode), st).Add(float64(n))
		}
	}
	outcome := "completed"
	if sum.Cancelled {
		outcome = "cancelled"
	}
	batchRuns.WithLabelValues(string(mode), outcome).Inc()
	sum.Duration = r.now().Sub(start)

	runLog.Log("Run %s: processed %d/%d, succeeded %d, failed %d, discarded %d", outcome, sum.Processed, sum.Total, sum.Succeeded, sum.Failed, sum.Discarded)
	logger.Info().
		Int("processed", sum.Processed).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Int("discarded", sum.Discarded).
		Bool("cancelled", sum.Cancelled).
		Dur("took", sum.Duration).
		Msg("Column run finished")
	return sum, nil
}

func tally(final map[string]matrix.Status) (ok, failed int) {
	for _, st := range final {
		switch st {
		case matrix.StatusSuccess:
			ok++
		case matrix.StatusError:
			failed++
		}
	}
	return ok, failed
}

// pause waits d and reports false if the run was cancelled meanwhile.
func (r *Runner) pause(ctx context.Context, flag *CancelFlag, d time.Duration) bool {
	if d <= 0 {
		return !flag.Cancelled() && ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-flag.Done():
		return false
	case <-t.C:
		return true
	}
}
