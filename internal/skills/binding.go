package skills

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/prompts"
	"github.com/skillgrid/internal/validator"
)

// Binding is how a skill configuration produces its prompt: Bound to a
// catalog template or Legacy free text.
type Binding interface {
	isBinding()
}

// Bound means the template is authoritative; any free prompt text on the
// configuration is ignored.
type Bound struct {
	Template *Template
	Params   map[string]string
}

// Legacy compiles the configuration's raw prompt by simple substitution.
type Legacy struct {
	Prompt     string
	OutputKind validator.Kind
}

func (Bound) isBinding()  {}
func (Legacy) isBinding() {}

// Resolve picks the binding for cfg. A template id missing from reg falls
// back to legacy mode.
func Resolve(reg *Registry, cfg matrix.SkillConfig) Binding {
	if cfg.TemplateID != "" {
		if t, ok := reg.Get(cfg.TemplateID); ok {
			return Bound{Template: t, Params: cfg.Params}
		}
	}
	kind := cfg.OutputKind
	if !kind.Valid() {
		kind = validator.KindText
	}
	return Legacy{Prompt: cfg.Prompt, OutputKind: kind}
}

// LegacyPromptIgnored reports whether cfg carries free prompt text that a
// bound template will override.
func LegacyPromptIgnored(reg *Registry, cfg matrix.SkillConfig) bool {
	_, bound := Resolve(reg, cfg).(Bound)
	return bound && strings.TrimSpace(cfg.Prompt) != ""
}

// CompileSource is the row a binding is compiled for.
type CompileSource struct {
	Matrix         *matrix.Matrix
	Row            matrix.Row
	ColumnID       string
	FileNames      []string
	ProjectContext string
}

// Compiled is the single prompt value a cell run works from.
type Compiled struct {
	Text        string
	TemplateID  string
	OutputKind  validator.Kind
	Constraints validator.Constraints
	Evidence    Evidence
	Validate    validator.Func
}

// CompileBinding resolves b against src.
func CompileBinding(b Binding, src CompileSource) (Compiled, error) {
	switch b := b.(type) {
	case Bound:
		text, err := b.Template.Compile(CompileInput{
			Row:            BuildRowContext(src.Matrix, src.Row, src.ColumnID),
			Params:         b.Params,
			FileNames:      src.FileNames,
			ProjectContext: src.ProjectContext,
		})
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{
			Text:        text,
			TemplateID:  b.Template.ID,
			OutputKind:  b.Template.OutputKind,
			Constraints: b.Template.Constraints,
			Evidence:    b.Template.Evidence,
			Validate:    b.Template.Validator(),
		}, nil
	case Legacy:
		if strings.TrimSpace(b.Prompt) == "" {
			return Compiled{}, fmt.Errorf("%w: column has neither a template nor a prompt", ErrUnknownSkill)
		}
		return Compiled{
			Text:       CompileLegacy(b.Prompt, b.OutputKind, src.Matrix, src.Row),
			OutputKind: b.OutputKind,
			Validate:   validator.Bind(b.OutputKind, validator.Constraints{}),
		}, nil
	default:
		return Compiled{}, fmt.Errorf("unsupported binding %T", b)
	}
}

var legacyToken = regexp.MustCompile(`\{([^{}\n]+)\}`)

// CompileLegacy substitutes {name}, {row} and {entity} with the row label and
// {Column Title} with that column's current value, then appends the kind's
// formatting instruction. Unknown tokens are left as written.
func CompileLegacy(prompt string, kind validator.Kind, m *matrix.Matrix, row matrix.Row) string {
	out := legacyToken.ReplaceAllStringFunc(prompt, func(tok string) string {
		key := strings.TrimSpace(tok[1 : len(tok)-1])
		switch strings.ToLower(key) {
		case "name", "row", "entity":
			return m.RowLabel(row)
		}
		col, ok := m.ColumnByTitle(key)
		if !ok {
			col, ok = m.Column(key)
		}
		if !ok {
			return tok
		}
		return m.Cell(row.ID, col.ID).Text()
	})
	out = strings.TrimSpace(out)
	if instr := prompts.KindInstruction(kind); instr != "" {
		out += "\n\n" + instr
	}
	return out
}
