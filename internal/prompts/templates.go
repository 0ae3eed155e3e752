package prompts

import (
	"strings"

	"github.com/skillgrid/internal/validator"
)

// System role definitions
const (
	// AnalystRole frames every skill run.
	AnalystRole = "You are a meticulous horticulture and landscape analyst filling one cell of a research table."

	// AnswerShape is the grammar every response must follow.
	AnswerShape = `Answer on a single line in the form "<value> — <reason>": the value first, then a space, a dash and a space, then a one-sentence reason.`
)

// Evidence policy instructions
const (
	EvidenceRequiredInstruction = `EVIDENCE: Base the answer on the attached documents or well-established references. Mention the source you relied on in the reason.`

	NoGuessingInstruction = `NO GUESSING: If the information is not available, answer "Unknown — <what is missing>" instead of estimating.`
)

// Per-kind formatting instructions. Text answers carry no extra instruction.
const (
	BadgeInstruction = `Respond with a single short label, then " — ", then a one-sentence reason. Example: "Compliant — meets the 3 m setback".`

	ScoreInstruction = `Respond with a whole-number score out of 100 written as N/100, then " — ", then a one-sentence reason. Example: "72/100 — tolerates dry summers once established".`

	CurrencyInstruction = `Respond with a currency symbol (€, $ or £) and an amount, optionally followed by /day, /week, /month or /year, then " — ", then a one-sentence reason. Example: "€150/year — average pruning cost".`

	QuantityInstruction = `Respond with a number, a space and a unit, optionally followed by /day, /week, /month or /year, then " — ", then a one-sentence reason. Example: "12 m — typical mature height".`

	EnumInstruction = `Respond with exactly one of the allowed options, then " — ", then a one-sentence reason.`

	RangeInstruction = `Respond with a numeric range written as min-max, then " — ", then a one-sentence reason. Example: "5-8 — hardy across these zones".`
)

// KindInstruction returns the fixed formatting instruction for kind, or ""
// for plain text.
func KindInstruction(kind validator.Kind) string {
	switch kind {
	case validator.KindBadge:
		return BadgeInstruction
	case validator.KindScore:
		return ScoreInstruction
	case validator.KindCurrency:
		return CurrencyInstruction
	case validator.KindQuantity:
		return QuantityInstruction
	case validator.KindEnum:
		return EnumInstruction
	case validator.KindRange:
		return RangeInstruction
	default:
		return ""
	}
}

// FormatInstruction is KindInstruction followed by the allow-lists and
// defaults that apply to kind.
func FormatInstruction(kind validator.Kind, c validator.Constraints) string {
	lines := []string{}
	if base := KindInstruction(kind); base != "" {
		lines = append(lines, base)
	} else {
		lines = append(lines, AnswerShape)
	}

	add := func(label string, values []string) {
		if len(values) > 0 {
			lines = append(lines, label+": "+strings.Join(values, ", "))
		}
	}
	switch kind {
	case validator.KindBadge:
		add("Allowed values", c.AllowedValues)
	case validator.KindEnum:
		add("Allowed options", c.AllowedEnums)
	case validator.KindCurrency:
		add("Allowed currencies", c.AllowedCurrencies)
		add("Allowed periods", c.AllowedPeriods)
		if c.DefaultPeriod != "" {
			lines = append(lines, "Default period: "+c.DefaultPeriod)
		}
	case validator.KindQuantity:
		add("Allowed units", c.AllowedUnits)
		add("Allowed periods", c.AllowedPeriods)
		if c.DefaultUnit != "" {
			lines = append(lines, "Preferred unit: "+c.DefaultUnit)
		}
		if c.DefaultPeriod != "" {
			lines = append(lines, "Default period: "+c.DefaultPeriod)
		}
	}
	return strings.Join(lines, "\n")
}

// EvidenceInstruction joins the instructions for an evidence policy.
func EvidenceInstruction(required, noGuessing bool) string {
	parts := []string{}
	if required {
		parts = append(parts, EvidenceRequiredInstruction)
	}
	if noGuessing {
		parts = append(parts, NoGuessingInstruction)
	}
	return strings.Join(parts, "\n")
}
