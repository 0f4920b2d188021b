// Package notify fans a run's results out to a Discord/Slack webhook and,
// optionally, an SMTP email digest. Notification failures never affect
// already-committed archival state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

const (
	webhookTimeout = 15 * time.Second

	// Discord allows at most 10 embeds per message.
	discordEmbedBatch = 10
	discordTitleMax   = 256
	discordDescMax    = 1024

	// Slack allows at most 50 blocks per message.
	slackBlockMax = 50
	slackTitleMax = 120
	slackLineMax  = 200
)

// WebhookNotifier posts run digests to a Discord or Slack incoming webhook.
// The platform is detected from the target URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier registers the webhook target.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		now:    time.Now,
		logger: logger,
	}
}

// PublishDigest sends the day's new papers as one batched message per
// platform limit window.
func (n *WebhookNotifier) PublishDigest(ctx context.Context, results []domain.Result) error {
	if n.url == "" || len(results) == 0 {
		return nil
	}

	today := n.now().UTC().Format("2006-01-02")
	if isDiscord(n.url) {
		return n.publishDiscordDigest(ctx, results, today)
	}
	return n.publishSlackDigest(ctx, results, today)
}

// PublishSummary sends the closing per-run statistics message.
func (n *WebhookNotifier) PublishSummary(ctx context.Context, stats domain.RunStats) error {
	if n.url == "" {
		return nil
	}

	text := fmt.Sprintf(
		"**SystemPaperDaily report**\n- Fetched: **%d**\n- Processed: **%d**\n- Skipped (duplicate): **%d**",
		stats.Total, stats.Processed, stats.Skipped,
	)

	var payload any
	if isDiscord(n.url) {
		payload = map[string]string{"content": text}
	} else {
		payload = map[string]string{"text": text}
	}
	return n.post(ctx, payload)
}

func (n *WebhookNotifier) publishDiscordDigest(ctx context.Context, results []domain.Result, today string) error {
	header := discordEmbed{
		Title:       fmt.Sprintf("SystemPaperDaily — %s", today),
		Description: fmt.Sprintf("**%d** new systems papers today", len(results)),
		Color:       0x57F287,
	}

	embeds := []discordEmbed{header}
	for _, res := range results {
		embed := discordEmbed{
			Title:       truncateText(res.Paper.Title, discordTitleMax),
			URL:         pageURL(res.Paper),
			Description: truncateText(firstLine(res.Summary), discordDescMax),
			Color:       0x5865F2,
		}
		if res.Paper.PDFURL != "" {
			embed.Fields = append(embed.Fields, discordField{Name: "PDF", Value: res.Paper.PDFURL, Inline: true})
		}
		if len(res.Paper.Categories) > 0 {
			cats := res.Paper.Categories
			if len(cats) > 3 {
				cats = cats[:3]
			}
			embed.Fields = append(embed.Fields, discordField{Name: "Categories", Value: strings.Join(cats, ", "), Inline: true})
		}
		embeds = append(embeds, embed)
	}

	for start := 0; start < len(embeds); start += discordEmbedBatch {
		end := start + discordEmbedBatch
		if end > len(embeds) {
			end = len(embeds)
		}
		if err := n.post(ctx, map[string]any{"embeds": embeds[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

func (n *WebhookNotifier) publishSlackDigest(ctx context.Context, results []domain.Result, today string) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": fmt.Sprintf("SystemPaperDaily — %s", today)},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*%d* new systems papers today", len(results))},
		},
		{"type": "divider"},
	}

	for _, res := range results {
		line := fmt.Sprintf("*<%s|%s>*\n%s",
			pageURL(res.Paper),
			truncateText(res.Paper.Title, slackTitleMax),
			truncateText(firstLine(res.Summary), slackLineMax),
		)
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": line},
		})
	}

	if len(blocks) > slackBlockMax {
		blocks = blocks[:slackBlockMax]
	}
	return n.post(ctx, map[string]any{"blocks": blocks})
}

func (n *WebhookNotifier) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}

type discordEmbed struct {
	Title       string         `json:"title"`
	URL         string         `json:"url,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func isDiscord(url string) bool {
	return strings.Contains(strings.ToLower(url), "discord")
}

func pageURL(p domain.Paper) string {
	if p.HTMLURL != "" {
		return p.HTMLURL
	}
	return p.PDFURL
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
