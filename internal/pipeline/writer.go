package pipeline

import (
	"github.com/skillgrid/internal/matrix"
)

// Writer is where a run records its cell transitions.
type Writer interface {
	// Begin marks the cell loading for runID. It must take effect before
	// Begin returns.
	Begin(rowID, columnID, runID string) error
	// Commit writes cell if the target is still loading for runID. It
	// reports false when the write was discarded.
	Commit(rowID, columnID, runID string, cell matrix.Cell) bool
}

// CommitIfCurrent applies cell only while the target is still loading for
// runID. A cell that was edited, cancelled or re-run since is left alone.
func CommitIfCurrent(m *matrix.Matrix, rowID, columnID, runID string, cell matrix.Cell) (*matrix.Matrix, bool) {
	cur := m.Cell(rowID, columnID)
	if cur.Status != matrix.StatusLoading || cur.RunID != runID {
		return m, false
	}
	next, err := m.WithCell(rowID, columnID, cell)
	if err != nil {
		return m, false
	}
	return next, true
}

// BeginLoading returns m with the cell marked loading for runID.
func BeginLoading(m *matrix.Matrix, rowID, columnID, runID string) (*matrix.Matrix, error) {
	return m.WithCell(rowID, columnID, m.Cell(rowID, columnID).Loading(runID))
}

type directWriter struct {
	holder *matrix.Holder
}

// DirectWriter publishes every transition to holder as it happens.
func DirectWriter(holder *matrix.Holder) Writer {
	return directWriter{holder: holder}
}

func (w directWriter) Begin(rowID, columnID, runID string) error {
	_, err := w.holder.Apply(func(m *matrix.Matrix) (*matrix.Matrix, error) {
		return BeginLoading(m, rowID, columnID, runID)
	})
	return err
}

func (w directWriter) Commit(rowID, columnID, runID string, cell matrix.Cell) bool {
	applied := false
	_, _ = w.holder.Apply(func(m *matrix.Matrix) (*matrix.Matrix, error) {
		next, ok := CommitIfCurrent(m, rowID, columnID, runID, cell)
		applied = ok
		return next, nil
	})
	return applied
}
