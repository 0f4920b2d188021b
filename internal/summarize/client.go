// Package summarize wraps a generation provider with the retry and backoff
// policy the pipeline relies on. The wrapper never lets a provider failure
// escape: every degraded outcome becomes a readable placeholder so a missing
// summary can never block archival of the paper itself.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrorKind is the closed set of failure classes a provider adapter must
// normalize its error surface into. The retry loop is provider-agnostic.
type ErrorKind int

const (
	KindRateLimited ErrorKind = iota
	KindTransient
	KindPermanent
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Provider is the minimal capability contract a generation backend fulfils.
// Concrete variants differ only in authentication, input bounding, and how
// they recognize failure classes from their own error surface.
type Provider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, content string) (string, error)
	Classify(err error) ErrorKind
}

const (
	noContentPlaceholder   = "_No content available to summarize._"
	emptyOutputPlaceholder = "_The model returned no usable text for this paper._"
)

// Client runs the exponential-backoff retry loop around a Provider.
type Client struct {
	provider     Provider
	systemPrompt string
	maxRetries   int
	baseDelay    time.Duration
	sleep        func(time.Duration)
	logger       *slog.Logger
}

// NewClient builds the retry wrapper. maxRetries counts retries, so the
// provider is called at most maxRetries+1 times.
func NewClient(provider Provider, systemPrompt string, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Client {
	return &Client{
		provider:     provider,
		systemPrompt: systemPrompt,
		maxRetries:   maxRetries,
		baseDelay:    baseDelay,
		sleep:        time.Sleep,
		logger:       logger,
	}
}

// Summarize generates text for the content. It always returns usable
// markdown: real output on success, otherwise a placeholder naming the
// failure class. Only rate-limited failures are retried, with delays of
// baseDelay * 2^attempt.
func (c *Client) Summarize(ctx context.Context, content string) string {
	if strings.TrimSpace(content) == "" {
		return noContentPlaceholder
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		text, err := c.provider.Generate(ctx, c.systemPrompt, content)
		if err == nil {
			if text == "" {
				// Empty output (e.g. safety-filtered) is final, not transient.
				c.warn("provider returned empty output")
				return emptyOutputPlaceholder
			}
			c.info("summary generated", "chars", len(text), "attempt", attempt)
			return text
		}

		kind := c.provider.Classify(err)
		if kind == KindRateLimited && attempt < c.maxRetries {
			delay := c.baseDelay * (1 << attempt)
			c.warn("provider rate limited, backing off",
				"attempt", attempt+1, "max_retries", c.maxRetries, "delay", delay)
			c.sleep(delay)
			continue
		}

		c.error("generation failed", "kind", kind.String(), "error", err)
		return fmt.Sprintf("_Summary unavailable (%s error from %s)._", kind, c.provider.Name())
	}

	return fmt.Sprintf("_Summary unavailable (%s retries exhausted)._", c.provider.Name())
}

func (c *Client) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) error(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
