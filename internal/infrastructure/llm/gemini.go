package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/summarize"
)

// GeminiProvider serves the Google generative AI backend.
type GeminiProvider struct {
	model         llms.Model
	temperature   float64
	maxTokens     int
	maxInputChars int
}

var _ summarize.Provider = (*GeminiProvider)(nil)

// NewGemini builds the adapter. Construction dials the API, so it takes a
// context.
func NewGemini(ctx context.Context, cfg config.ProviderConfig, temperature float64, maxInputChars int) (*GeminiProvider, error) {
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("build gemini client: %w", err)
	}

	return &GeminiProvider{
		model:         client,
		temperature:   temperature,
		maxTokens:     cfg.MaxOutputTokens,
		maxInputChars: maxInputChars,
	}, nil
}

// Name identifies the provider in logs and degraded-output placeholders.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate runs one completion over the bounded content. An empty return
// with a nil error means the output was filtered; the retry wrapper turns
// that into a placeholder without retrying.
func (p *GeminiProvider) Generate(ctx context.Context, systemPrompt, content string) (string, error) {
	resp, err := p.model.GenerateContent(ctx,
		chatMessages(systemPrompt, boundContent(content, p.maxInputChars)),
		llms.WithTemperature(p.temperature),
		llms.WithMaxTokens(p.maxTokens),
	)
	if err != nil {
		return "", err
	}
	return firstChoice(resp), nil
}

// Classify maps the Google API error surface onto the retry kinds. Quota
// exhaustion surfaces as gRPC ResourceExhausted or HTTP 429 depending on the
// transport.
func (p *GeminiProvider) Classify(err error) summarize.ErrorKind {
	if err == nil {
		return summarize.KindUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "resourceexhausted"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"):
		return summarize.KindRateLimited
	case strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "deadline"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "timeout"):
		return summarize.KindTransient
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "permission"),
		strings.Contains(msg, "invalidargument"),
		strings.Contains(msg, "invalid_argument"),
		strings.Contains(msg, "400"):
		return summarize.KindPermanent
	default:
		return summarize.KindUnknown
	}
}
