package skills

import (
	"strings"

	"github.com/skillgrid/internal/matrix"
)

// Field is one column value of the row being compiled.
type Field struct {
	ColumnID string
	Title    string
	Value    string
}

// RowContext is the view of a row a template compiles against.
type RowContext struct {
	Label      string
	Species    string
	Cultivar   string
	CommonName string
	Fields     []Field
}

var (
	speciesTitles    = []string{"species", "scientific name", "botanical name", "latin name"}
	cultivarTitles   = []string{"cultivar", "variety"}
	commonNameTitles = []string{"common name", "common"}
)

// BuildRowContext collects the values of every column of row except
// targetColumnID.
func BuildRowContext(m *matrix.Matrix, row matrix.Row, targetColumnID string) RowContext {
	rc := RowContext{}
	for _, col := range m.Columns {
		if col.ID == targetColumnID {
			continue
		}
		v := strings.TrimSpace(m.Cell(row.ID, col.ID).Text())
		rc.Fields = append(rc.Fields, Field{ColumnID: col.ID, Title: col.Title, Value: v})

		title := strings.ToLower(strings.TrimSpace(col.Title))
		switch {
		case rc.Species == "" && matchesAny(title, speciesTitles):
			rc.Species = v
		case rc.Cultivar == "" && matchesAny(title, cultivarTitles):
			rc.Cultivar = v
		case rc.CommonName == "" && matchesAny(title, commonNameTitles):
			rc.CommonName = v
		}
	}
	rc.Label = m.RowLabel(row)
	return rc
}

func matchesAny(title string, candidates []string) bool {
	for _, c := range candidates {
		if title == c {
			return true
		}
	}
	return false
}

// Lookup resolves key by column title first and column id second.
func (rc RowContext) Lookup(key string) (string, bool) {
	want := strings.TrimSpace(key)
	for _, f := range rc.Fields {
		if strings.EqualFold(strings.TrimSpace(f.Title), want) {
			return f.Value, true
		}
	}
	for _, f := range rc.Fields {
		if f.ColumnID == want {
			return f.Value, true
		}
	}
	return "", false
}

// Describe renders the non-empty fields as "Title: value" lines in column order.
func (rc RowContext) Describe() string {
	var b strings.Builder
	for _, f := range rc.Fields {
		if f.Value == "" {
			continue
		}
		title := f.Title
		if title == "" {
			title = f.ColumnID
		}
		b.WriteString("- ")
		b.WriteString(title)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
