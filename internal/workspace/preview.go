package workspace

import (
	"context"
	"fmt"
	"maps"

	"github.com/skillgrid/internal/files"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/pipeline"
	"github.com/skillgrid/internal/skills"
	"github.com/skillgrid/internal/validator"
)

// PreviewRequest asks for the prompt a cell run would send. Params and
// ProjectContext override the column's configuration for this preview only.
type PreviewRequest struct {
	RowID          string            `json:"rowId"`
	ColumnID       string            `json:"columnId"`
	Params         map[string]string `json:"params,omitempty"`
	ProjectContext *string           `json:"projectContext,omitempty"`
}

// Preview is a compiled prompt.
type Preview struct {
	Prompt              string            `json:"prompt"`
	TemplateID          string            `json:"templateId,omitempty"`
	OutputKind          validator.Kind    `json:"outputKind"`
	Params              map[string]string `json:"params,omitempty"`
	FileNames           []string          `json:"fileNames,omitempty"`
	LegacyPromptIgnored bool              `json:"legacyPromptIgnored"`
}

// CompilePreview compiles the prompt for one cell without running it.
func (w *Workspace) CompilePreview(ctx context.Context, matrixID string, req PreviewRequest) (Preview, error) {
	s, err := w.session(ctx, matrixID)
	if err != nil {
		return Preview{}, err
	}
	m := s.holder.Current()
	col, ok := m.Column(req.ColumnID)
	if !ok {
		return Preview{}, fmt.Errorf("%w: %s", matrix.ErrColumnNotFound, req.ColumnID)
	}
	if col.Skill == nil {
		return Preview{}, fmt.Errorf("%w: %s", pipeline.ErrNotSkillColumn, req.ColumnID)
	}
	row, ok := m.Row(req.RowID)
	if !ok {
		return Preview{}, fmt.Errorf("%w: %s", matrix.ErrRowNotFound, req.RowID)
	}

	cfg := *col.Skill
	binding := skills.Resolve(w.opts.Registry, cfg)
	var params map[string]string
	if b, ok := binding.(skills.Bound); ok {
		overrides := maps.Clone(b.Params)
		if overrides == nil {
			overrides = map[string]string{}
		}
		maps.Copy(overrides, req.Params)
		if params, err = b.Template.MergeParams(overrides); err != nil {
			return Preview{}, err
		}
		binding = skills.Bound{Template: b.Template, Params: params}
	}

	project := w.opts.ProjectContext
	if req.ProjectContext != nil {
		project = *req.ProjectContext
	}
	resolved := files.ResolveAll(ctx, cfg.FileIDs, w.opts.Files, w.opts.Resolver, w.opts.FileLimits, w.logger)
	compiled, err := skills.CompileBinding(binding, skills.CompileSource{
		Matrix:         m,
		Row:            row,
		ColumnID:       req.ColumnID,
		FileNames:      files.Names(resolved),
		ProjectContext: project,
	})
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Prompt:              compiled.Text,
		TemplateID:          compiled.TemplateID,
		OutputKind:          compiled.OutputKind,
		Params:              params,
		FileNames:           files.Names(resolved),
		LegacyPromptIgnored: skills.LegacyPromptIgnored(w.opts.Registry, cfg),
	}, nil
}
