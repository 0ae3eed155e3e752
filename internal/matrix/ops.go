package matrix

import (
	"fmt"
	"maps"
	"slices"
)

// CellUpdate addresses one cell write.
type CellUpdate struct {
	RowID    string
	ColumnID string
	Cell     Cell
}

// shallow copies the matrix header and the row slice. Row cell maps are
// shared until a row is replaced through withRow.
func (m *Matrix) shallow() *Matrix {
	out := *m
	out.Rows = slices.Clone(m.Rows)
	out.Columns = slices.Clone(m.Columns)
	return &out
}

func (r Row) withCell(columnID string, cell Cell) Row {
	cells := make(map[string]Cell, len(r.Cells)+1)
	maps.Copy(cells, r.Cells)
	cell.ColumnID = columnID
	if cell.Status == "" {
		cell.Status = StatusIdle
	}
	cells[columnID] = cell
	r.Cells = cells
	return r
}

// WithCell returns a new matrix with the cell at (rowID, columnID) replaced.
func (m *Matrix) WithCell(rowID, columnID string, cell Cell) (*Matrix, error) {
	ri := m.rowIndex(rowID)
	if ri < 0 {
		return nil, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	if m.columnIndex(columnID) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	out := m.shallow()
	out.Rows[ri] = m.Rows[ri].withCell(columnID, cell)
	return out, nil
}

// WithCells applies several writes in one replacement. Updates naming an
// unknown row or column are skipped and reported in the returned count.
func (m *Matrix) WithCells(updates []CellUpdate) (*Matrix, int) {
	if len(updates) == 0 {
		return m, 0
	}
	out := m.shallow()
	skipped := 0
	touched := map[int]bool{}
	for _, u := range updates {
		ri := out.rowIndex(u.RowID)
		if ri < 0 || out.columnIndex(u.ColumnID) < 0 {
			skipped++
			continue
		}
		if !touched[ri] {
			out.Rows[ri] = out.Rows[ri].withCell(u.ColumnID, u.Cell)
			touched[ri] = true
			continue
		}
		// the row already owns a fresh map
		u.Cell.ColumnID = u.ColumnID
		if u.Cell.Status == "" {
			u.Cell.Status = StatusIdle
		}
		out.Rows[ri].Cells[u.ColumnID] = u.Cell
	}
	return out, skipped
}

// EditCell records a user edit: the raw value is replaced, status returns to
// idle and all derived state is dropped.
func (m *Matrix) EditCell(rowID, columnID, value string) (*Matrix, error) {
	return m.WithCell(rowID, columnID, m.Cell(rowID, columnID).Reset(value))
}

// AddColumn appends col and gives every row an idle empty cell for it.
func (m *Matrix) AddColumn(col Column) (*Matrix, error) {
	if m.columnIndex(col.ID) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, col.ID)
	}
	out := m.shallow()
	out.Columns = append(out.Columns, col)
	for i := range out.Rows {
		out.Rows[i] = out.Rows[i].withCell(col.ID, Cell{Status: StatusIdle})
	}
	return out, nil
}

// UpdateColumn replaces the column definition with the same id.
func (m *Matrix) UpdateColumn(col Column) (*Matrix, error) {
	ci := m.columnIndex(col.ID)
	if ci < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, col.ID)
	}
	out := m.shallow()
	out.Columns[ci] = col
	return out, nil
}

func (m *Matrix) RemoveColumn(id string) (*Matrix, error) {
	ci := m.columnIndex(id)
	if ci < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, id)
	}
	out := m.shallow()
	out.Columns = slices.Delete(out.Columns, ci, ci+1)
	for i, r := range out.Rows {
		if _, ok := r.Cells[id]; !ok {
			continue
		}
		cells := maps.Clone(r.Cells)
		delete(cells, id)
		out.Rows[i].Cells = cells
	}
	return out, nil
}

// AddRow appends row, filling in idle cells for columns it does not mention.
func (m *Matrix) AddRow(row Row) (*Matrix, error) {
	if m.rowIndex(row.ID) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRow, row.ID)
	}
	cells := make(map[string]Cell, len(m.Columns))
	for id, c := range row.Cells {
		c.ColumnID = id
		if c.Status == "" {
			c.Status = StatusIdle
		}
		cells[id] = c
	}
	for _, col := range m.Columns {
		if _, ok := cells[col.ID]; !ok {
			cells[col.ID] = Cell{ColumnID: col.ID, Status: StatusIdle}
		}
	}
	row.Cells = cells
	out := m.shallow()
	out.Rows = append(out.Rows, row)
	return out, nil
}

func (m *Matrix) RemoveRow(id string) (*Matrix, error) {
	ri := m.rowIndex(id)
	if ri < 0 {
		return nil, fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	out := m.shallow()
	out.Rows = slices.Delete(out.Rows, ri, ri+1)
	return out, nil
}

// Clone returns a deep copy with no storage shared with m.
func (m *Matrix) Clone() *Matrix {
	out := m.shallow()
	for i, c := range out.Columns {
		if c.Skill != nil {
			sk := *c.Skill
			sk.FileIDs = slices.Clone(sk.FileIDs)
			sk.Params = maps.Clone(sk.Params)
			sk.Formatting = slices.Clone(sk.Formatting)
			out.Columns[i].Skill = &sk
		}
		out.Columns[i].Options = slices.Clone(c.Options)
	}
	for i, r := range out.Rows {
		out.Rows[i].Cells = maps.Clone(r.Cells)
	}
	return out
}

// Normalize fills in missing cell ids and statuses after decoding.
func (m *Matrix) Normalize() *Matrix {
	out := m.shallow()
	for i, r := range out.Rows {
		cells := make(map[string]Cell, len(out.Columns))
		for id, c := range r.Cells {
			c.ColumnID = id
			if c.Status == "" {
				c.Status = StatusIdle
			}
			cells[id] = c
		}
		for _, col := range out.Columns {
			if _, ok := cells[col.ID]; !ok {
				cells[col.ID] = Cell{ColumnID: col.ID, Status: StatusIdle}
			}
		}
		out.Rows[i].Cells = cells
	}
	return out
}
