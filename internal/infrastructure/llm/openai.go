// Package llm holds the concrete generation providers. Each adapter bounds
// its input, authenticates its backend, and classifies that backend's error
// surface into the closed kind set the retry wrapper understands.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/summarize"
)

// OpenAIProvider serves any OpenAI-compatible chat API. DeepSeek is the same
// wire protocol behind a different base URL and model, so one adapter covers
// both providers.
type OpenAIProvider struct {
	name          string
	model         llms.Model
	temperature   float64
	maxTokens     int
	maxInputChars int
}

var _ summarize.Provider = (*OpenAIProvider)(nil)

// NewOpenAI builds the adapter from provider settings. name distinguishes
// "openai" from "deepseek" in logs and placeholders.
func NewOpenAI(name string, cfg config.ProviderConfig, temperature float64, maxInputChars int) (*OpenAIProvider, error) {
	client, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", name, err)
	}

	return &OpenAIProvider{
		name:          name,
		model:         client,
		temperature:   temperature,
		maxTokens:     cfg.MaxOutputTokens,
		maxInputChars: maxInputChars,
	}, nil
}

// Name identifies the provider in logs and degraded-output placeholders.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Generate runs one chat completion over the bounded content.
func (p *OpenAIProvider) Generate(ctx context.Context, systemPrompt, content string) (string, error) {
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

// Classify maps the OpenAI-compatible error surface onto the retry kinds.
// The API reports conditions through status codes embedded in error text.
func (p *OpenAIProvider) Classify(err error) summarize.ErrorKind {
	if err == nil {
		return summarize.KindUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"):
		return summarize.KindRateLimited
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"):
		return summarize.KindTransient
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "model_not_found"),
		strings.Contains(msg, "400"):
		return summarize.KindPermanent
	default:
		return summarize.KindUnknown
	}
}

// chatMessages assembles the two-message conversation every provider uses.
func chatMessages(systemPrompt, content string) []llms.MessageContent {
	return []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(content)},
		},
	}
}

func firstChoice(resp *llms.ContentResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Content)
}

func boundContent(content string, max int) string {
	if max > 0 && len(content) > max {
		return content[:max]
	}
	return content
}
