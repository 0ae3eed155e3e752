// Package matrix holds the table data model. A Matrix is an immutable value:
// every mutation returns a new Matrix and leaves the receiver untouched.
package matrix

import (
	"errors"
	"strings"
	"time"

	"github.com/skillgrid/internal/validator"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrRowNotFound     = errors.New("row not found")
	ErrColumnNotFound  = errors.New("column not found")
	ErrDuplicateRow    = errors.New("duplicate row id")
	ErrDuplicateColumn = errors.New("duplicate column id")
)

// ColumnKind is the data kind of a column.
type ColumnKind string

const (
	KindText   ColumnKind = "text"
	KindNumber ColumnKind = "number"
	KindSelect ColumnKind = "select"
	KindAI     ColumnKind = "ai"
)

// Status is the execution status of a cell.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type Matrix struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

type Column struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Kind         ColumnKind   `json:"kind"`
	Width        float64      `json:"width,omitempty"`
	Hidden       bool         `json:"hidden,omitempty"`
	IsPrimaryKey bool         `json:"isPrimaryKey,omitempty"`
	Options      []string     `json:"options,omitempty"`
	Skill        *SkillConfig `json:"skill,omitempty"`
}

// Visible reports the column's visibility flag.
func (c Column) Visible() bool { return !c.Hidden }

// SkillConfig configures an ai column. When TemplateID names a registered
// template, Prompt is ignored.
type SkillConfig struct {
	ID         string            `json:"id"`
	TemplateID string            `json:"templateId,omitempty"`
	Name       string            `json:"name,omitempty"`
	Prompt     string            `json:"prompt,omitempty"`
	OutputKind validator.Kind    `json:"outputKind,omitempty"`
	FileIDs    []string          `json:"fileIds,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Formatting []FormatRule      `json:"formatting,omitempty"`
}

// FormatRule applies Tone to cells whose value satisfies Operator/Value.
type FormatRule struct {
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Tone     string `json:"tone"`
}

type Row struct {
	ID         string          `json:"id"`
	EntityName string          `json:"entityName,omitempty"`
	Cells      map[string]Cell `json:"cells"`
}

type Cell struct {
	ColumnID     string         `json:"columnId"`
	Value        string         `json:"value"`
	Status       Status         `json:"status"`
	DisplayValue string         `json:"displayValue,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Normalized   any            `json:"normalized,omitempty"`
	OutputKind   validator.Kind `json:"outputType,omitempty"`
	Provenance   *Provenance    `json:"provenance,omitempty"`
	Citations    []Citation     `json:"citations,omitempty"`
	RunID        string         `json:"runId,omitempty"`
}

type Provenance struct {
	TemplateID string    `json:"templateId,omitempty"`
	Model      string    `json:"model,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	FileIDs    []string  `json:"fileIds,omitempty"`
	PromptHash string    `json:"promptHash,omitempty"`
}

type Citation struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	return strings.TrimSpace(c.Value) == "" && strings.TrimSpace(c.DisplayValue) == ""
}

// Text is the human-facing value of the cell.
func (c Cell) Text() string {
	if c.DisplayValue != "" {
		return c.DisplayValue
	}
	return c.Value
}

// Reset returns an idle cell holding value with every derived field cleared.
func (c Cell) Reset(value string) Cell {
	return Cell{ColumnID: c.ColumnID, Value: value, Status: StatusIdle}
}

// Loading returns a copy of c marked in flight for runID. Previous results
// stay visible until the run resolves.
func (c Cell) Loading(runID string) Cell {
	c.Status = StatusLoading
	c.RunID = runID
	return c
}

// Column returns the column with the given id.
func (m *Matrix) Column(id string) (Column, bool) {
	if i := m.columnIndex(id); i >= 0 {
		return m.Columns[i], true
	}
	return Column{}, false
}

// ColumnByTitle finds a column by title, ignoring case and surrounding space.
func (m *Matrix) ColumnByTitle(title string) (Column, bool) {
	want := strings.TrimSpace(title)
	for _, c := range m.Columns {
		if strings.EqualFold(strings.TrimSpace(c.Title), want) {
			return c, true
		}
	}
	return Column{}, false
}

func (m *Matrix) Row(id string) (Row, bool) {
	if i := m.rowIndex(id); i >= 0 {
		return m.Rows[i], true
	}
	return Row{}, false
}

// Cell returns the cell at (rowID, columnID). A missing cell is an idle empty
// cell for that column.
func (m *Matrix) Cell(rowID, columnID string) Cell {
	if r, ok := m.Row(rowID); ok {
		if c, ok := r.Cells[columnID]; ok {
			if c.ColumnID == "" {
				c.ColumnID = columnID
			}
			if c.Status == "" {
				c.Status = StatusIdle
			}
			return c
		}
	}
	return Cell{ColumnID: columnID, Status: StatusIdle}
}

// PrimaryKey returns the first column flagged as primary key.
func (m *Matrix) PrimaryKey() (Column, bool) {
	for _, c := range m.Columns {
		if c.IsPrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

// RowLabel names a row for prompts and the grid: the entity name, else the
// primary-key value, else the row id. Whitespace-only values do not count.
func (m *Matrix) RowLabel(row Row) string {
	if name := strings.TrimSpace(row.EntityName); name != "" {
		return name
	}
	if pk, ok := m.PrimaryKey(); ok {
		if v := strings.TrimSpace(m.Cell(row.ID, pk.ID).Text()); v != "" {
			return v
		}
	}
	return row.ID
}

func (m *Matrix) VisibleColumns() []Column {
	out := make([]Column, 0, len(m.Columns))
	for _, c := range m.Columns {
		if c.Visible() {
			out = append(out, c)
		}
	}
	return out
}

func (m *Matrix) columnIndex(id string) int {
	for i, c := range m.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *Matrix) rowIndex(id string) int {
	for i, r := range m.Rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}
