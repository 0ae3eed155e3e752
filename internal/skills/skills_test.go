package skills

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/prompts"
	"github.com/skillgrid/internal/validator"
)

func treeMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	m := &matrix.Matrix{
		ID: "trees",
		Columns: []matrix.Column{
			{ID: "c-name", Title: "Tree", Kind: matrix.KindText, IsPrimaryKey: true},
			{ID: "c-species", Title: "Botanical name", Kind: matrix.KindText},
			{ID: "c-cultivar", Title: "Variety", Kind: matrix.KindText},
			{ID: "c-common", Title: "Common Name", Kind: matrix.KindText},
			{ID: "c-soil", Title: "Soil", Kind: matrix.KindSelect},
			{ID: "c-height", Title: "Height", Kind: matrix.KindAI, Skill: &matrix.SkillConfig{ID: "s", TemplateID: "mature-height"}},
		},
	}
	var err error
	m, err = m.AddRow(matrix.Row{ID: "r1", Cells: map[string]matrix.Cell{
		"c-name":     {Value: "T-014"},
		"c-species":  {Value: "Quercus robur"},
		"c-cultivar": {Value: "Fastigiata"},
		"c-common":   {Value: "English oak"},
		"c-soil":     {Value: "clay"},
	}})
	require.NoError(t, err)
	m, err = m.AddRow(matrix.Row{ID: "r2", EntityName: "Field maple"})
	require.NoError(t, err)
	return m
}

func scoreTemplate() Template {
	return Template{
		ID:         "fixture-score",
		Name:       "Fixture",
		OutputKind: validator.KindScore,
		Params: []Param{
			{Key: "region", Label: "Region", Type: ParamText, Default: "EU"},
			{Key: "mode", Label: "Mode", Type: ParamSelect, Default: "strict", Options: []string{"strict", "lenient"}},
		},
		Body: "Assess {{VAR:label}} ({{VAR:species}}) in {{VAR:param_region}} [{{VAR:param_mode}}].\n{{VAR:row_context}}\nFiles: {{VAR:files|join=\", \"|default=\"none\"}}\n{{VAR:output_format}}",
	}
}

func TestCompile_ExactText(t *testing.T) {
	tpl := scoreTemplate()
	got, err := tpl.Compile(CompileInput{
		Row: RowContext{
			Label:   "Oak",
			Species: "Quercus robur",
			Fields:  []Field{{ColumnID: "c1", Title: "Soil", Value: "clay"}, {ColumnID: "c2", Title: "Empty"}},
		},
		FileNames: []string{"site.pdf", "soil.csv"},
	})
	require.NoError(t, err)

	want := "Assess Oak (Quercus robur) in EU [strict].\n- Soil: clay\nFiles: site.pdf, soil.csv\n" + prompts.ScoreInstruction
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("compiled prompt mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_IsPure(t *testing.T) {
	m := treeMatrix(t)
	for _, tpl := range Builtin().List() {
		in := CompileInput{
			Row:            BuildRowContext(m, m.Rows[0], "c-height"),
			Params:         map[string]string{},
			FileNames:      []string{"plan.pdf"},
			ProjectContext: "Riverside park renewal",
		}
		first, err := tpl.Compile(in)
		require.NoError(t, err, tpl.ID)
		second, err := tpl.Compile(in)
		require.NoError(t, err)
		assert.Equal(t, first, second, tpl.ID)
		assert.NotContains(t, first, "{{VAR:", tpl.ID)
		assert.Contains(t, first, "T-014", tpl.ID)
		assert.Contains(t, first, "Riverside park renewal", tpl.ID)
	}
}

func TestCompile_ColumnReferences(t *testing.T) {
	tpl := Template{
		ID:         "fixture-soil",
		OutputKind: validator.KindText,
		Body:       "{{VAR:label}} grows in {{VAR:column:Soil}} soil ({{VAR:column:c-soil}}, {{VAR:c-soil}}); site {{VAR:column:Site|default=\"unknown\"}}.",
	}
	m := treeMatrix(t)
	got, err := tpl.Compile(CompileInput{Row: BuildRowContext(m, m.Rows[0], "c-height")})
	require.NoError(t, err)
	assert.Equal(t, "T-014 grows in clay soil (clay, clay); site unknown.", got)

	// Renaming the column breaks the title reference; the id still resolves.
	renamed, err := m.UpdateColumn(matrix.Column{ID: "c-soil", Title: "Substrate", Kind: matrix.KindSelect})
	require.NoError(t, err)
	got, err = tpl.Compile(CompileInput{Row: BuildRowContext(renamed, renamed.Rows[0], "c-height")})
	require.NoError(t, err)
	assert.Equal(t, "T-014 grows in  soil (clay, clay); site unknown.", got)

	// The target column is never readable from its own prompt.
	self := Template{ID: "fixture-self", OutputKind: validator.KindText, Body: "[{{VAR:column:Height|default=none}}]"}
	got, err = self.Compile(CompileInput{Row: BuildRowContext(m, m.Rows[0], "c-height")})
	require.NoError(t, err)
	assert.Equal(t, "[none]", got)
}

func TestMergeParams(t *testing.T) {
	tpl := scoreTemplate()

	merged, err := tpl.MergeParams(map[string]string{"region": "Nordics", "stale": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"region": "Nordics", "mode": "strict"}, merged)

	_, err = tpl.MergeParams(map[string]string{"mode": "chaotic"})
	assert.ErrorIs(t, err, ErrInvalidParam)

	tpl.Params = append(tpl.Params,
		Param{Key: "distance", Type: ParamNumber, Required: true},
		Param{Key: "flag", Type: ParamBoolean},
	)
	_, err = tpl.MergeParams(nil)
	assert.ErrorIs(t, err, ErrMissingParam)
	_, err = tpl.MergeParams(map[string]string{"distance": "three"})
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = tpl.MergeParams(map[string]string{"distance": "3", "flag": "maybe"})
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = tpl.MergeParams(map[string]string{"distance": "3", "flag": "true"})
	assert.NoError(t, err)

	_, err = tpl.Compile(CompileInput{})
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestBuildRowContext(t *testing.T) {
	m := treeMatrix(t)
	rc := BuildRowContext(m, m.Rows[0], "c-height")

	assert.Equal(t, "T-014", rc.Label)
	assert.Equal(t, "Quercus robur", rc.Species)
	assert.Equal(t, "Fastigiata", rc.Cultivar)
	assert.Equal(t, "English oak", rc.CommonName)
	assert.Len(t, rc.Fields, 5)

	v, ok := rc.Lookup("soil")
	assert.True(t, ok)
	assert.Equal(t, "clay", v)
	v, ok = rc.Lookup("c-common")
	assert.True(t, ok)
	assert.Equal(t, "English oak", v)
	_, ok = rc.Lookup("c-height")
	assert.False(t, ok, "target column is excluded")

	assert.Equal(t, "Field maple", BuildRowContext(m, m.Rows[1], "c-height").Label)
}

func TestRowLabel_FallsBackToRowID(t *testing.T) {
	m := &matrix.Matrix{Columns: []matrix.Column{{ID: "a", Title: "A"}}}
	m, err := m.AddRow(matrix.Row{ID: "row-7"})
	require.NoError(t, err)
	assert.Equal(t, "row-7", BuildRowContext(m, m.Rows[0], "a").Label)
}

func TestRegistry(t *testing.T) {
	reg := Builtin()
	assert.Same(t, reg, Builtin())
	assert.Equal(t, 8, reg.Len())

	ids := []string{}
	for _, tpl := range reg.List() {
		ids = append(ids, tpl.ID)
	}
	assert.Equal(t, []string{
		"setback-compliance", "native-status", "drought-tolerance", "maintenance-cost",
		"mature-height", "growth-rate", "hardiness-zone", "care-summary",
	}, ids)

	tpl, ok := reg.Get("setback-compliance")
	require.True(t, ok)
	res := tpl.Validator()("Compliant — meets setback rules")
	assert.True(t, res.OK)
	assert.Equal(t, "Compliant", res.Normalized)

	_, ok = reg.Get("nope")
	assert.False(t, ok)
	var nilReg *Registry
	_, ok = nilReg.Get("x")
	assert.False(t, ok)
}

func TestNewRegistry_Rejects(t *testing.T) {
	cases := map[string][]Template{
		"duplicate":     {scoreTemplate(), scoreTemplate()},
		"empty id":      {{OutputKind: validator.KindText}},
		"bad kind":      {{ID: "x", OutputKind: "colour"}},
		"enum no enums": {{ID: "x", OutputKind: validator.KindEnum}},
		"select no options": {{ID: "x", OutputKind: validator.KindText, Params: []Param{
			{Key: "p", Type: ParamSelect},
		}}},
		"bad default": {{ID: "x", OutputKind: validator.KindText, Params: []Param{
			{Key: "p", Type: ParamNumber, Default: "lots"},
		}}},
	}
	for name, tpls := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(tpls...)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	assert.Panics(t, func() { MustNewRegistry(scoreTemplate(), scoreTemplate()) })
}

func TestRegistry_CopiesInput(t *testing.T) {
	tpl := scoreTemplate()
	reg := MustNewRegistry(tpl)
	tpl.Params[1].Options[0] = "mutated"
	got, _ := reg.Get("fixture-score")
	assert.Equal(t, "strict", got.Params[1].Options[0])
}

func TestResolve(t *testing.T) {
	reg := Builtin()

	b := Resolve(reg, matrix.SkillConfig{TemplateID: "growth-rate", Prompt: "ignored {name}", Params: map[string]string{"k": "v"}})
	bound, ok := b.(Bound)
	require.True(t, ok)
	assert.Equal(t, "growth-rate", bound.Template.ID)
	assert.Equal(t, "v", bound.Params["k"])

	b = Resolve(reg, matrix.SkillConfig{TemplateID: "retired-template", Prompt: "p", OutputKind: validator.KindScore})
	assert.Equal(t, Legacy{Prompt: "p", OutputKind: validator.KindScore}, b)

	b = Resolve(reg, matrix.SkillConfig{Prompt: "p"})
	assert.Equal(t, Legacy{Prompt: "p", OutputKind: validator.KindText}, b)

	assert.True(t, LegacyPromptIgnored(reg, matrix.SkillConfig{TemplateID: "growth-rate", Prompt: "mine"}))
	assert.False(t, LegacyPromptIgnored(reg, matrix.SkillConfig{TemplateID: "growth-rate"}))
	assert.False(t, LegacyPromptIgnored(reg, matrix.SkillConfig{Prompt: "mine"}))
}

func TestCompileLegacy(t *testing.T) {
	m := treeMatrix(t)

	got := CompileLegacy("How tall does {name} ({Botanical name}) grow in {soil} soil? {Unknown}", validator.KindQuantity, m, m.Rows[0])
	want := "How tall does T-014 (Quercus robur) grow in clay soil? {Unknown}\n\n" + prompts.QuantityInstruction
	assert.Equal(t, want, got)

	got = CompileLegacy("Describe {entity} via {c-soil}.", validator.KindText, m, m.Rows[1])
	assert.Equal(t, "Describe Field maple via .", got)
}

func TestCompileBinding(t *testing.T) {
	m := treeMatrix(t)
	src := CompileSource{Matrix: m, Row: m.Rows[0], ColumnID: "c-height", FileNames: []string{"plan.pdf"}}

	c, err := CompileBinding(Resolve(Builtin(), *m.Columns[5].Skill), src)
	require.NoError(t, err)
	assert.Equal(t, "mature-height", c.TemplateID)
	assert.Equal(t, validator.KindQuantity, c.OutputKind)
	assert.Equal(t, []string{"m", "ft"}, c.Constraints.AllowedUnits)
	assert.True(t, c.Evidence.NoGuessing)
	assert.True(t, strings.Contains(c.Text, "plan.pdf"))
	assert.True(t, c.Validate("12 m — typical").OK)
	assert.False(t, c.Validate("12 yards — typical").OK)

	c, err = CompileBinding(Legacy{Prompt: "Score {name}", OutputKind: validator.KindScore}, src)
	require.NoError(t, err)
	assert.Empty(t, c.TemplateID)
	assert.Equal(t, "Score T-014\n\n"+prompts.ScoreInstruction, c.Text)
	assert.True(t, c.Validate("40/100 — fine").OK)

	_, err = CompileBinding(Legacy{OutputKind: validator.KindText}, src)
	assert.ErrorIs(t, err, ErrUnknownSkill)
}
