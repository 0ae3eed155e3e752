package grid

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/validator"
)

// Conditional formatting operators.
const (
	OpEquals   = "equals"
	OpContains = "contains"
	OpGT       = "gt"
	OpGTE      = "gte"
	OpLT       = "lt"
	OpLTE      = "lte"
)

var numberPattern = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)*`)

// Tone returns the tone of the first rule cell satisfies, or "".
func Tone(rules []matrix.FormatRule, cell matrix.Cell) string {
	if cell.Status != matrix.StatusSuccess && cell.Status != matrix.StatusIdle {
		return ""
	}
	text := strings.TrimSpace(cell.Text())
	if text == "" {
		return ""
	}
	for _, r := range rules {
		if matches(r, text, cell.Normalized) {
			return r.Tone
		}
	}
	return ""
}

func matches(r matrix.FormatRule, text string, normalized any) bool {
	switch strings.ToLower(strings.TrimSpace(r.Operator)) {
	case OpEquals:
		return strings.EqualFold(text, strings.TrimSpace(r.Value))
	case OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(r.Value)))
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
	if err != nil {
		return false
	}
	got, ok := number(text, normalized)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.Operator)) {
	case OpGT:
		return got > want
	case OpGTE:
		return got >= want
	case OpLT:
		return got < want
	case OpLTE:
		return got <= want
	}
	return false
}

// number extracts the comparable figure of a cell, preferring its
// normalized value over the first number in its text.
func number(text string, normalized any) (float64, bool) {
	switch n := normalized.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	case validator.Money:
		return n.Amount, true
	case validator.Quantity:
		return n.Value, true
	case map[string]any:
		// decoded from JSON
		for _, k := range []string{"amount", "value"} {
			if f, ok := n[k].(float64); ok {
				return f, true
			}
		}
	}
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	return f, err == nil
}
