package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names a model vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderCohere    Provider = "cohere"
	ProviderOllama    Provider = "ollama"
)

// ParseProvider accepts the canonical names plus a few aliases.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, nil
	case "gemini", "google", "googleai":
		return ProviderGemini, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "cohere":
		return ProviderCohere, nil
	case "ollama", "local":
		return ProviderOllama, nil
	}
	return "", fmt.Errorf("unsupported provider: %s", s)
}

// ModelOptions selects and authenticates a model.
type ModelOptions struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string
}

// DefaultModel is used when ModelOptions.Model is empty.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderCohere:
		return "command-r"
	case ProviderOllama:
		return "llama3"
	}
	return ""
}

// NewModel builds the langchaingo model for opts.
func NewModel(ctx context.Context, opts ModelOptions) (llms.Model, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel(opts.Provider)
	}
	if opts.Provider != ProviderOllama && opts.APIKey == "" {
		return nil, fmt.Errorf("provider %s requires an API key", opts.Provider)
	}

	log.Debug().
		Str("provider", string(opts.Provider)).
		Str("model", opts.Model).
		Str("base_url", opts.BaseURL).
		Msg("Creating inference model")

	var (
		model llms.Model
		err   error
	)
	switch opts.Provider {
	case ProviderOpenAI:
		o := []openai.Option{openai.WithModel(opts.Model), openai.WithToken(opts.APIKey)}
		if opts.BaseURL != "" {
			o = append(o, openai.WithBaseURL(opts.BaseURL))
		}
		model, err = openai.New(o...)
	case ProviderGemini:
		model, err = googleai.New(ctx, googleai.WithAPIKey(opts.APIKey), googleai.WithDefaultModel(opts.Model))
	case ProviderAnthropic:
		o := []anthropic.Option{anthropic.WithToken(opts.APIKey), anthropic.WithModel(opts.Model)}
		if opts.BaseURL != "" {
			o = append(o, anthropic.WithBaseURL(opts.BaseURL))
		}
		model, err = anthropic.New(o...)
	case ProviderCohere:
		o := []cohere.Option{cohere.WithToken(opts.APIKey), cohere.WithModel(opts.Model)}
		if opts.BaseURL != "" {
			o = append(o, cohere.WithBaseURL(opts.BaseURL))
		}
		model, err = cohere.New(o...)
	case ProviderOllama:
		if opts.BaseURL == "" {
			opts.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithServerURL(opts.BaseURL), ollama.WithModel(opts.Model))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", opts.Provider, err)
	}
	return model, nil
}
