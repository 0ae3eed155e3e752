// Package skills holds the skill template catalog and the prompt compiler.
package skills

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/skillgrid/internal/prompts"
	"github.com/skillgrid/internal/validator"
)

var (
	ErrMissingParam  = errors.New("missing required parameter")
	ErrInvalidParam  = errors.New("invalid parameter value")
	ErrUnknownSkill  = errors.New("unknown skill template")
	ErrInvalidConfig = errors.New("invalid skill template")
)

// ParamType is the declared type of a template parameter.
type ParamType string

const (
	ParamText    ParamType = "text"
	ParamNumber  ParamType = "number"
	ParamSelect  ParamType = "select"
	ParamBoolean ParamType = "boolean"
)

type Param struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     ParamType `json:"type"`
	Default  string    `json:"default,omitempty"`
	Required bool      `json:"required,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

// check validates one resolved value against the declaration.
func (p Param) check(v string) error {
	if strings.TrimSpace(v) == "" {
		if p.Required {
			return fmt.Errorf("%w: %s", ErrMissingParam, p.Key)
		}
		return nil
	}
	switch p.Type {
	case ParamNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidParam, p.Key, v)
		}
	case ParamBoolean:
		if _, err := strconv.ParseBool(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %s must be true or false, got %q", ErrInvalidParam, p.Key, v)
		}
	case ParamSelect:
		if !slices.Contains(p.Options, v) {
			return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidParam, p.Key, strings.Join(p.Options, ", "), v)
		}
	}
	return nil
}

// Evidence is a template's evidence policy.
type Evidence struct {
	Required   bool `json:"evidenceRequired"`
	NoGuessing bool `json:"noGuessing"`
}

// Template is an immutable catalog entry.
type Template struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Category    string                `json:"category"`
	Description string                `json:"description,omitempty"`
	OutputKind  validator.Kind        `json:"outputKind"`
	Constraints validator.Constraints `json:"constraints"`
	Evidence    Evidence              `json:"evidence"`
	Params      []Param               `json:"params,omitempty"`
	Body        string                `json:"body"`
}

// CompileInput is everything a template compiles against.
type CompileInput struct {
	Row            RowContext
	Params         map[string]string
	FileNames      []string
	ProjectContext string
}

// Defaults returns the declared default of every parameter.
func (t *Template) Defaults() map[string]string {
	out := make(map[string]string, len(t.Params))
	for _, p := range t.Params {
		out[p.Key] = p.Default
	}
	return out
}

// MergeParams layers overrides on top of the defaults and checks the result.
// Overrides for undeclared keys are dropped.
func (t *Template) MergeParams(overrides map[string]string) (map[string]string, error) {
	merged := t.Defaults()
	for _, p := range t.Params {
		if v, ok := overrides[p.Key]; ok && strings.TrimSpace(v) != "" {
			merged[p.Key] = strings.TrimSpace(v)
		}
	}
	for _, p := range t.Params {
		if err := p.check(merged[p.Key]); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// Validator returns the output validator bound to this template.
func (t *Template) Validator() validator.Func {
	return validator.Bind(t.OutputKind, t.Constraints)
}

// Compile renders the prompt text. It is pure: the same input always yields
// the same bytes. Besides the fixed variables, {{VAR:column:<title or id>}}
// reads another column of the row, title first and column id second.
func (t *Template) Compile(in CompileInput) (string, error) {
	params, err := t.MergeParams(in.Params)
	if err != nil {
		return "", fmt.Errorf("compile %s: %w", t.ID, err)
	}
	vars := map[string]string{
		"label":           in.Row.Label,
		"species":         in.Row.Species,
		"cultivar":        in.Row.Cultivar,
		"common_name":     in.Row.CommonName,
		"row_context":     in.Row.Describe(),
		"files":           strings.Join(in.FileNames, "\n"),
		"project_context": strings.TrimSpace(in.ProjectContext),
		"evidence":        prompts.EvidenceInstruction(t.Evidence.Required, t.Evidence.NoGuessing),
		"output_format":   prompts.FormatInstruction(t.OutputKind, t.Constraints),
	}
	for k, v := range params {
		vars["param_"+k] = v
	}
	return prompts.RenderFunc(t.Body, func(name string) string {
		if ref, ok := strings.CutPrefix(name, prompts.ColumnPrefix); ok {
			v, _ := in.Row.Lookup(ref)
			return v
		}
		if v, ok := vars[name]; ok {
			return v
		}
		// any other name is read as a column title or id
		v, _ := in.Row.Lookup(name)
		return v
	}), nil
}

// Variables lists the placeholders the body uses.
func (t *Template) Variables() []string { return prompts.Variables(t.Body) }

func (t *Template) validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidConfig)
	}
	if !t.OutputKind.Valid() {
		return fmt.Errorf("%w: %s has unknown output kind %q", ErrInvalidConfig, t.ID, t.OutputKind)
	}
	if t.OutputKind == validator.KindEnum && len(t.Constraints.AllowedEnums) == 0 {
		return fmt.Errorf("%w: enum template %s declares no allowed options", ErrInvalidConfig, t.ID)
	}
	seen := map[string]bool{}
	for _, p := range t.Params {
		if seen[p.Key] {
			return fmt.Errorf("%w: %s declares parameter %s twice", ErrInvalidConfig, t.ID, p.Key)
		}
		seen[p.Key] = true
		if p.Type == ParamSelect && len(p.Options) == 0 {
			return fmt.Errorf("%w: %s select parameter %s has no options", ErrInvalidConfig, t.ID, p.Key)
		}
		if p.Default != "" {
			if err := p.check(p.Default); err != nil {
				return fmt.Errorf("%w: %s default: %v", ErrInvalidConfig, t.ID, err)
			}
		}
	}
	return nil
}

func (t *Template) clone() *Template {
	c := *t
	c.Params = slices.Clone(t.Params)
	for i := range c.Params {
		c.Params[i].Options = slices.Clone(c.Params[i].Options)
	}
	c.Constraints.AllowedValues = slices.Clone(t.Constraints.AllowedValues)
	c.Constraints.AllowedEnums = slices.Clone(t.Constraints.AllowedEnums)
	c.Constraints.AllowedUnits = slices.Clone(t.Constraints.AllowedUnits)
	c.Constraints.AllowedCurrencies = slices.Clone(t.Constraints.AllowedCurrencies)
	c.Constraints.AllowedPeriods = slices.Clone(t.Constraints.AllowedPeriods)
	return &c
}
