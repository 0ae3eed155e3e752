package skills

import (
	"github.com/skillgrid/internal/prompts"
	"github.com/skillgrid/internal/validator"
)

const (
	CategoryCompliance   = "Compliance"
	CategoryEcology      = "Ecology"
	CategoryCost         = "Cost"
	CategoryHorticulture = "Horticulture"
)

// subject and tail frame every built-in body.
const subject = `Plant: {{VAR:label}}
Species: {{VAR:species|default="not recorded"}}
Cultivar: {{VAR:cultivar|default="not recorded"}}
Common name: {{VAR:common_name|default="not recorded"}}
`

const tail = `
Other details for this row:
{{VAR:row_context|default="(none)"}}

Attached files: {{VAR:files|join=", "|default="none"}}

Project context:
{{VAR:project_context|default="(none)"}}

{{VAR:evidence}}

Output format:
{{VAR:output_format}}`

func body(task, specifics string) string {
	b := prompts.AnalystRole + "\n\n" + task + "\n\n" + subject
	if specifics != "" {
		b += "\n" + specifics + "\n"
	}
	return b + tail
}

// BuiltinTemplates returns the shipped catalog.
func BuiltinTemplates() []Template {
	return []Template{
		{
			ID:          "setback-compliance",
			Name:        "Setback compliance",
			Category:    CategoryCompliance,
			Description: "Checks a planting position against setback rules.",
			OutputKind:  validator.KindBadge,
			Constraints: validator.Constraints{AllowedValues: []string{"Compliant", "Non-Compliant", "Needs Review"}},
			Evidence:    Evidence{Required: true, NoGuessing: true},
			Params: []Param{
				{Key: "distance_m", Label: "Distance to structure (m)", Type: ParamNumber, Default: "3", Required: true},
				{Key: "structure", Label: "Nearest structure", Type: ParamSelect, Default: "building", Options: []string{"building", "boundary", "pipe", "road"}},
				{Key: "jurisdiction", Label: "Jurisdiction", Type: ParamText},
			},
			Body: body(
				"Decide whether this plant complies with setback rules when planted {{VAR:param_distance_m}} m from the nearest {{VAR:param_structure}}.",
				"Jurisdiction: {{VAR:param_jurisdiction|default=\"use the project context\"}}",
			),
		},
		{
			ID:          "native-status",
			Name:        "Native status",
			Category:    CategoryEcology,
			Description: "Classifies the plant as native, non-native or invasive in a region.",
			OutputKind:  validator.KindBadge,
			Constraints: validator.Constraints{AllowedValues: []string{"Native", "Non-native", "Invasive"}},
			Evidence:    Evidence{Required: true},
			Params: []Param{
				{Key: "region", Label: "Region", Type: ParamText, Required: true, Default: "Western Europe"},
			},
			Body: body("Classify the native status of this plant in {{VAR:param_region}}.", ""),
		},
		{
			ID:          "drought-tolerance",
			Name:        "Drought tolerance",
			Category:    CategoryHorticulture,
			Description: "Scores drought tolerance from 0 (none) to 100 (extreme).",
			OutputKind:  validator.KindScore,
			Evidence:    Evidence{NoGuessing: true},
			Params: []Param{
				{Key: "established", Label: "Assume established planting", Type: ParamBoolean, Default: "true"},
			},
			Body: body(
				"Score the drought tolerance of this plant from 0 (none) to 100 (extreme).",
				"Assume an established planting: {{VAR:param_established}}",
			),
		},
		{
			ID:          "maintenance-cost",
			Name:        "Maintenance cost",
			Category:    CategoryCost,
			Description: "Estimates the recurring maintenance cost per plant.",
			OutputKind:  validator.KindCurrency,
			Constraints: validator.Constraints{
				AllowedCurrencies: []string{"EUR", "USD", "GBP"},
				AllowedPeriods:    []string{"year", "month"},
				DefaultPeriod:     "year",
			},
			Params: []Param{
				{Key: "currency", Label: "Currency", Type: ParamSelect, Default: "EUR", Options: []string{"EUR", "USD", "GBP"}},
				{Key: "setting", Label: "Setting", Type: ParamSelect, Default: "urban street", Options: []string{"urban street", "park", "private garden"}},
			},
			Body: body(
				"Estimate the typical maintenance cost of one specimen of this plant in a {{VAR:param_setting}} setting.",
				"Quote the amount in {{VAR:param_currency}}.",
			),
		},
		{
			ID:          "mature-height",
			Name:        "Mature height",
			Category:    CategoryHorticulture,
			Description: "Typical height at maturity.",
			OutputKind:  validator.KindQuantity,
			Constraints: validator.Constraints{AllowedUnits: []string{"m", "ft"}, DefaultUnit: "m"},
			Evidence:    Evidence{NoGuessing: true},
			Body:        body("State the typical mature height of this plant.", ""),
		},
		{
			ID:          "growth-rate",
			Name:        "Growth rate",
			Category:    CategoryHorticulture,
			OutputKind:  validator.KindEnum,
			Constraints: validator.Constraints{AllowedEnums: []string{"Slow", "Moderate", "Fast"}},
			Body:        body("Classify the growth rate of this plant.", ""),
		},
		{
			ID:          "hardiness-zone",
			Name:        "Hardiness zones",
			Category:    CategoryHorticulture,
			Description: "USDA hardiness zone range.",
			OutputKind:  validator.KindRange,
			Evidence:    Evidence{Required: true},
			Body:        body("Give the USDA hardiness zone range in which this plant reliably survives winter.", ""),
		},
		{
			ID:         "care-summary",
			Name:       "Care summary",
			Category:   CategoryHorticulture,
			OutputKind: validator.KindText,
			Params: []Param{
				{Key: "audience", Label: "Audience", Type: ParamSelect, Default: "maintenance crew", Options: []string{"maintenance crew", "homeowner", "designer"}},
			},
			Body: body("Write a one-line care summary of this plant for a {{VAR:param_audience}}.", ""),
		},
	}
}
