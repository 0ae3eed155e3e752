package batch

import (
	"sync"
	"time"

	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/pipeline"
)

type pendingWrite struct {
	columnID string
	runID    string
	cell     matrix.Cell
}

// queuedWriter holds finished cells keyed by row id and publishes them in
// one matrix replacement per flush. Loading transitions bypass the queue.
type queuedWriter struct {
	holder    *matrix.Holder
	every     int
	interval  time.Duration
	now       func() time.Time
	onDiscard func(rowID string)

	mu        sync.Mutex
	pending   map[string]pendingWrite
	order     []string
	sinceLast int
	lastFlush time.Time
	flushes   int
}

var _ pipeline.Writer = (*queuedWriter)(nil)

func newQueuedWriter(h *matrix.Holder, cfg Config, now func() time.Time, onDiscard func(string)) *queuedWriter {
	return &queuedWriter{
		holder:    h,
		every:     cfg.FlushEvery,
		interval:  cfg.FlushInterval,
		now:       now,
		onDiscard: onDiscard,
		pending:   make(map[string]pendingWrite),
		lastFlush: now(),
	}
}

func (w *queuedWriter) Begin(rowID, columnID, runID string) error {
	_, err := w.holder.Apply(func(m *matrix.Matrix) (*matrix.Matrix, error) {
		return pipeline.BeginLoading(m, rowID, columnID, runID)
	})
	return err
}

// Commit queues cell unless the target has already moved on, in which case
// the write is dropped at once.
func (w *queuedWriter) Commit(rowID, columnID, runID string, cell matrix.Cell) bool {
	if _, ok := pipeline.CommitIfCurrent(w.holder.Current(), rowID, columnID, runID, cell); !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.pending[rowID]; !exists {
		w.order = append(w.order, rowID)
	}
	w.pending[rowID] = pendingWrite{columnID: columnID, runID: runID, cell: cell}
	w.sinceLast++
	return true
}

// Due reports whether the queue has reached its row or time threshold.
func (w *queuedWriter) Due() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return false
	}
	if w.every > 0 && w.sinceLast >= w.every {
		return true
	}
	return w.interval > 0 && w.now().Sub(w.lastFlush) >= w.interval
}

// Flush publishes every queued write whose target is still loading for its
// run and reports how many were applied.
func (w *queuedWriter) Flush() int {
	w.mu.Lock()
	pending, order := w.pending, w.order
	w.pending = make(map[string]pendingWrite)
	w.order = nil
	w.sinceLast = 0
	w.lastFlush = w.now()
	w.mu.Unlock()

	if len(order) == 0 {
		return 0
	}
	applied := 0
	var dropped []string
	_, _ = w.holder.Apply(func(m *matrix.Matrix) (*matrix.Matrix, error) {
		applied, dropped = 0, dropped[:0]
		updates := make([]matrix.CellUpdate, 0, len(order))
		for _, rowID := range order {
			pw := pending[rowID]
			if _, ok := pipeline.CommitIfCurrent(m, rowID, pw.columnID, pw.runID, pw.cell); !ok {
				dropped = append(dropped, rowID)
				continue
			}
			updates = append(updates, matrix.CellUpdate{RowID: rowID, ColumnID: pw.columnID, Cell: pw.cell})
		}
		next, skipped := m.WithCells(updates)
		applied = len(updates) - skipped
		return next, nil
	})
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
	if w.onDiscard != nil {
		for _, rowID := range dropped {
			w.onDiscard(rowID)
		}
	}
	return applied
}

func (w *queuedWriter) Flushes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushes
}
