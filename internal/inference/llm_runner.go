package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/skillgrid/internal/logging"
	"github.com/skillgrid/internal/prompts"
	"github.com/skillgrid/internal/retry"
)

// Options tunes an LLMRunner.
type Options struct {
	ModelName         string
	RequestsPerMinute int
	Burst             int
	Timeout           time.Duration
	Temperature       float64
	MaxTokens         int
	Structured        bool
	Retry             retry.RetryConfig
}

// DefaultOptions mirrors the [inference] config defaults.
func DefaultOptions() Options {
	return Options{
		RequestsPerMinute: 30,
		Burst:             1,
		Timeout:           60 * time.Second,
		Temperature:       0.2,
		MaxTokens:         512,
		Retry:             retry.LLMRetryConfig(),
	}
}

// LLMRunner answers skill prompts with a langchaingo model.
type LLMRunner struct {
	model     llms.Model
	opts      Options
	limiter   *rate.Limiter
	runLogger *logging.RunLogger
	logger    zerolog.Logger
}

var _ Runner = (*LLMRunner)(nil)

func NewLLMRunner(model llms.Model, opts Options) *LLMRunner {
	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), burst)
	}
	return &LLMRunner{model: model, opts: opts, limiter: limiter, logger: log.Logger}
}

// WithRunLogger returns a runner sharing the model and limiter that also
// writes requests and responses to l.
func (r *LLMRunner) WithRunLogger(l *logging.RunLogger) Runner {
	cp := *r
	cp.runLogger = l
	return &cp
}

func (r *LLMRunner) ModelName() string { return r.opts.ModelName }

// RunSkillCell sends req to the model, retrying transient failures, and
// validates the answer.
func (r *LLMRunner) RunSkillCell(ctx context.Context, req Request) (Response, error) {
	resp := Response{
		OutputKind: req.OutputKind,
		Model:      r.opts.ModelName,
		PromptHash: PromptHash(req.Prompt),
	}
	messages := r.messages(req)
	callOpts := []llms.CallOption{llms.WithTemperature(r.opts.Temperature)}
	if r.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(r.opts.MaxTokens))
	}
	if r.opts.Structured {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	r.runLogger.LogRequest(req.RowID, r.opts.ModelName, req.Prompt)

	var raw string
	result := retry.RetryWithBackoffAndReason(ctx, r.opts.Retry, func() (error, string) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err, "rate_limiter"
			}
		}
		callCtx := ctx
		if r.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
		}
		out, err := r.model.GenerateContent(callCtx, messages, callOpts...)
		if err != nil {
			return err, err.Error()
		}
		if out == nil || len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Content) == "" {
			return errEmptyResponse, "empty_response"
		}
		raw = out.Choices[0].Content
		return nil, "success"
	}, r.runLogger)

	if !result.Success {
		err := result.LastError
		if err == nil {
			err = errors.New("inference failed")
		}
		r.runLogger.LogError("row "+req.RowID, err)
		r.logger.Warn().Err(err).Str("row", req.RowID).Int("attempts", result.Attempts).Msg("Inference call failed")
		resp.Error = err.Error()
		return resp, fmt.Errorf("inference: %w", err)
	}

	r.runLogger.LogResponse(req.RowID, raw)
	resp.RawText = raw
	answer, citations := DecodeAnswer(raw)
	resp.Citations = citations

	res := Apply(req, answer)
	resp.OK = res.OK
	resp.DisplayValue = res.DisplayValue
	resp.Reasoning = res.Reasoning
	resp.Normalized = res.Normalized
	resp.Error = res.Error
	r.logger.Debug().
		Str("row", req.RowID).
		Str("kind", string(req.OutputKind)).
		Bool("ok", res.OK).
		Int("attempts", result.Attempts).
		Msg("Inference answer validated")
	return resp, nil
}

var errEmptyResponse = errors.New("model returned an empty response")

func (r *LLMRunner) messages(req Request) []llms.MessageContent {
	human := []llms.ContentPart{llms.TextContent{Text: req.Prompt}}
	for _, f := range req.ContextFiles {
		if f.Text == "" {
			continue
		}
		header := "--- Attached file: " + f.Name + " ---"
		if f.Truncated {
			header = "--- Attached file: " + f.Name + " (excerpt) ---"
		}
		human = append(human, llms.TextContent{Text: header + "\n" + f.Text})
	}
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemInstruction(req, r.opts.Structured)),
		{Role: llms.ChatMessageTypeHuman, Parts: human},
	}
}

// SystemInstruction frames the request with the answer grammar, the evidence
// policy and the allow-lists.
func SystemInstruction(req Request, structured bool) string {
	lines := []string{prompts.AnalystRole, prompts.AnswerShape}
	if ev := prompts.EvidenceInstruction(req.EvidenceRequired, req.NoGuessing); ev != "" {
		lines = append(lines, ev)
	}
	if f := prompts.FormatInstruction(req.OutputKind, req.Constraints()); f != prompts.AnswerShape {
		lines = append(lines, f)
	}
	if structured {
		lines = append(lines, `Reply with JSON only: {"answer": "<value> — <reason>", "citations": [{"title": "...", "url": "...", "snippet": "..."}]}.`)
	}
	return strings.Join(lines, "\n")
}
