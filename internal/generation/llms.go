package generation

import (
	"context"
	"strings"

	"github.com/lexlapax/go-llms/pkg/llm/domain"
	"github.com/lexlapax/go-llms/pkg/llm/provider"
)

// LLMSGenerator adapts a go-llms provider to the Generator interface.
type LLMSGenerator struct {
	provider domain.Provider
	model    string
}

func NewLLMSGenerator(p domain.Provider, model string) *LLMSGenerator {
	return &LLMSGenerator{provider: p, model: model}
}

// NewGeminiLLMS builds an LLMSGenerator backed by the go-llms Gemini provider.
func NewGeminiLLMS(apiKey, model string) *LLMSGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	return NewLLMSGenerator(provider.NewGeminiProvider(apiKey, model), model)
}

func (g *LLMSGenerator) Model() string { return g.model }

// Generate ignores Params.JSONOutput; the provider's plain text call has no
// response-format switch.
func (g *LLMSGenerator) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	opts := []domain.Option{
		domain.WithTemperature(p.Temperature),
		domain.WithTopK(DefaultTopK),
		domain.WithTopP(DefaultTopP),
	}
	if p.MaxOutputTokens > 0 {
		opts = append(opts, domain.WithMaxTokens(p.MaxOutputTokens))
	}

	text, err := g.provider.Generate(ctx, prompt, opts...)
	if err != nil {
		return "", &GenerationError{Op: "provider", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &GenerationError{Op: "provider", Err: ErrEmptyResponse}
	}
	return text, nil
}
