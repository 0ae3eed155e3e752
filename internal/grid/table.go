package grid

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/skillgrid/internal/matrix"
)

var (
	colorMuted   = lipgloss.Color("#2C4A54")
	colorError   = lipgloss.Color("#E74C3C")
	colorLoading = lipgloss.Color("#F4D03F")
	colorHeader  = lipgloss.Color("#20B9B4")

	toneColors = map[string]lipgloss.Color{
		"good":    lipgloss.Color("#2CD7C7"),
		"success": lipgloss.Color("#2CD7C7"),
		"green":   lipgloss.Color("#2CD7C7"),
		"warn":    lipgloss.Color("#F4D03F"),
		"warning": lipgloss.Color("#F4D03F"),
		"amber":   lipgloss.Color("#F4D03F"),
		"bad":     lipgloss.Color("#E74C3C"),
		"danger":  lipgloss.Color("#E74C3C"),
		"red":     lipgloss.Color("#E74C3C"),
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorHeader).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// MaxCellWidth bounds the characters printed per cell in RenderTable.
const MaxCellWidth = 32

// RenderTable draws f as a bordered terminal table with a footer naming the
// window shown.
func RenderTable(f Frame) string {
	headers := make([]string, 0, len(f.Columns)+1)
	headers = append(headers, "#")
	for _, c := range f.Columns {
		title := c.Title
		if c.Skill {
			title += " ✦"
		}
		headers = append(headers, title)
	}

	rows := make([][]string, len(f.Rows))
	for i, r := range f.Rows {
		line := make([]string, 0, len(r.Cells)+1)
		line = append(line, fmt.Sprint(r.Index+1))
		for _, c := range r.Cells {
			line = append(line, cellText(c))
		}
		rows[i] = line
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 || row < 0 || row >= len(f.Rows) {
				return cellStyle.Foreground(colorMuted)
			}
			cv := f.Rows[row].Cells[col-1]
			switch {
			case cv.Loading:
				return cellStyle.Foreground(colorLoading)
			case cv.Failed:
				return cellStyle.Foreground(colorError)
			case cv.Tone != "":
				if c, ok := toneColors[strings.ToLower(cv.Tone)]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})

	var sb strings.Builder
	sb.WriteString(t.String())
	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(colorMuted).Render(footer(f)))
	return sb.String()
}

func cellText(c CellView) string {
	var s string
	switch c.Status {
	case matrix.StatusLoading:
		s = "… " + c.Text
	case matrix.StatusError:
		s = "⚠ " + c.Text
	default:
		s = c.Text
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > MaxCellWidth {
		s = string(r[:MaxCellWidth-1]) + "…"
	}
	return s
}

func footer(f Frame) string {
	if f.TotalRows == 0 {
		return "no rows"
	}
	if f.RowWindow.Len() == 0 {
		return fmt.Sprintf("no rows in view (%d total)", f.TotalRows)
	}
	return fmt.Sprintf("rows %d-%d of %d", f.RowWindow.Start+1, f.RowWindow.End, f.TotalRows)
}
