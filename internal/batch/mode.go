package batch

import (
	"fmt"
	"strings"

	"github.com/skillgrid/internal/matrix"
)

// Mode selects which rows of a column a run targets.
type Mode string

const (
	ModeAll         Mode = "all"
	ModeFillEmpty   Mode = "fill_empty"
	ModeRetryFailed Mode = "retry_failed"
)

// ParseMode accepts the canonical names and their dashed spellings.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")) {
	case ModeAll:
		return ModeAll, nil
	case ModeFillEmpty, "":
		return ModeFillEmpty, nil
	case ModeRetryFailed:
		return ModeRetryFailed, nil
	}
	return "", fmt.Errorf("unknown batch mode %q (want all, fill_empty or retry_failed)", s)
}

// Destructive reports whether the mode may overwrite existing values.
func (m Mode) Destructive() bool { return m == ModeAll }

// SelectRows returns, in row order, the ids of rows the mode targets. Cells
// already in flight are never selected by the non-destructive modes.
func SelectRows(m *matrix.Matrix, columnID string, mode Mode) []string {
	out := []string{}
	for _, row := range m.Rows {
		cell := m.Cell(row.ID, columnID)
		switch mode {
		case ModeAll:
			out = append(out, row.ID)
		case ModeFillEmpty:
			if cell.Status == matrix.StatusError || (cell.Status != matrix.StatusLoading && cell.IsEmpty()) {
				out = append(out, row.ID)
			}
		case ModeRetryFailed:
			if cell.Status == matrix.StatusError {
				out = append(out, row.ID)
			}
		}
	}
	return out
}
