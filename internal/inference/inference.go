// Package inference is the boundary between the cell pipeline and the model
// that answers skill prompts.
package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/skillgrid/internal/files"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/validator"
)

// Request is one cell's worth of inference.
type Request struct {
	Prompt            string
	OutputKind        validator.Kind
	Validate          validator.Func
	ContextFiles      []files.File
	EvidenceRequired  bool
	NoGuessing        bool
	AllowedEnums      []string
	AllowedUnits      []string
	AllowedPeriods    []string
	AllowedCurrencies []string
	DefaultUnit       string
	DefaultPeriod     string

	// RowID labels log output only.
	RowID string
}

// Constraints reassembles the kind constraints carried by the request.
func (r Request) Constraints() validator.Constraints {
	return validator.Constraints{
		AllowedEnums:      r.AllowedEnums,
		AllowedUnits:      r.AllowedUnits,
		AllowedPeriods:    r.AllowedPeriods,
		AllowedCurrencies: r.AllowedCurrencies,
		DefaultUnit:       r.DefaultUnit,
		DefaultPeriod:     r.DefaultPeriod,
	}
}

// Response is the validated answer. OK=false with a nil Go error means the
// model answered but the answer failed validation.
type Response struct {
	OK           bool              `json:"ok"`
	RawText      string            `json:"rawText"`
	DisplayValue string            `json:"displayValue,omitempty"`
	Reasoning    string            `json:"reasoning,omitempty"`
	Normalized   any               `json:"normalized,omitempty"`
	OutputKind   validator.Kind    `json:"outputType"`
	Model        string            `json:"model"`
	PromptHash   string            `json:"promptHash"`
	Error        string            `json:"error,omitempty"`
	Citations    []matrix.Citation `json:"citations,omitempty"`
}

// Runner answers skill prompts. A returned error is a boundary failure
// (network, timeout, provider); the pipeline records it on the cell.
type Runner interface {
	RunSkillCell(ctx context.Context, req Request) (Response, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req Request) (Response, error)

func (f RunnerFunc) RunSkillCell(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// PromptHash is the hex SHA-256 of the exact prompt text.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Apply validates answer with the request's validator, falling back to the
// kind's default constraints when none is bound.
func Apply(req Request, answer string) validator.Result {
	fn := req.Validate
	if fn == nil {
		fn = validator.Bind(req.OutputKind, req.Constraints())
	}
	return fn(answer)
}
