package grid

import (
	"github.com/skillgrid/internal/matrix"
)

// ColumnView is a visible column header.
type ColumnView struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Kind         matrix.ColumnKind `json:"kind"`
	Width        float64           `json:"width"`
	IsPrimaryKey bool              `json:"isPrimaryKey,omitempty"`
	Skill        bool              `json:"skill,omitempty"`
}

// CellView is what a cell looks like on screen.
type CellView struct {
	Text      string        `json:"text"`
	Status    matrix.Status `json:"status"`
	Tone      string        `json:"tone,omitempty"`
	Reasoning string        `json:"reasoning,omitempty"`
	Loading   bool          `json:"loading,omitempty"`
	Failed    bool          `json:"failed,omitempty"`
}

// RowView is one materialized row.
type RowView struct {
	ID    string     `json:"id"`
	Index int        `json:"index"`
	Label string     `json:"label"`
	Cells []CellView `json:"cells"`
}

// Frame is the drawable part of a matrix for one viewport.
type Frame struct {
	MatrixID     string       `json:"matrixId"`
	TotalRows    int          `json:"totalRows"`
	Columns      []ColumnView `json:"columns"`
	Rows         []RowView    `json:"rows"`
	RowWindow    RowWindow    `json:"rowWindow"`
	ColumnWindow ColumnWindow `json:"columnWindow"`
}

// Render materializes the rows and visible columns inside vp.
func Render(m *matrix.Matrix, vp Viewport) Frame {
	cols := m.VisibleColumns()
	widths := make([]float64, len(cols))
	for i, c := range cols {
		widths[i] = c.Width
	}
	rw := ComputeRowWindow(len(m.Rows), vp)
	cw := ComputeColumnWindow(widths, vp)

	f := Frame{MatrixID: m.ID, TotalRows: len(m.Rows), RowWindow: rw, ColumnWindow: cw}
	shown := cols[cw.Start:cw.End]
	f.Columns = make([]ColumnView, len(shown))
	for i, c := range shown {
		w := c.Width
		if w <= 0 {
			w = DefaultColumnWidth
		}
		f.Columns[i] = ColumnView{ID: c.ID, Title: c.Title, Kind: c.Kind, Width: w, IsPrimaryKey: c.IsPrimaryKey, Skill: c.Skill != nil}
	}

	f.Rows = make([]RowView, 0, rw.Len())
	for i := rw.Start; i < rw.End; i++ {
		row := m.Rows[i]
		rv := RowView{ID: row.ID, Index: i, Label: m.RowLabel(row), Cells: make([]CellView, len(shown))}
		for j, c := range shown {
			rv.Cells[j] = cellView(c, m.Cell(row.ID, c.ID))
		}
		f.Rows = append(f.Rows, rv)
	}
	return f
}

func cellView(col matrix.Column, cell matrix.Cell) CellView {
	v := CellView{Text: cell.Text(), Status: cell.Status, Reasoning: cell.Reasoning}
	if v.Status == "" {
		v.Status = matrix.StatusIdle
	}
	switch v.Status {
	case matrix.StatusLoading:
		v.Loading = true
	case matrix.StatusError:
		v.Failed = true
	}
	if col.Skill != nil {
		v.Tone = Tone(col.Skill.Formatting, cell)
	}
	return v
}
