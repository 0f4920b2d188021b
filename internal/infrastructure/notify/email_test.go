package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/logging"
)

func testMailer(cfg config.EmailConfig) *EmailNotifier {
	m := NewEmailNotifier(cfg, logging.New("error"))
	m.now = func() time.Time {
		return time.Date(2026, time.August, 30, 6, 0, 0, 0, time.UTC)
	}
	return m
}

func TestSendDigestDisabledIsNoop(t *testing.T) {
	t.Parallel()

	m := testMailer(config.EmailConfig{Enabled: false})
	err := m.SendDigest(context.Background(), []domain.Result{{Paper: domain.Paper{ID: "x"}}})
	assert.NoError(t, err)
}

func TestSendDigestIncompleteCredentialsIsNoop(t *testing.T) {
	t.Parallel()

	m := testMailer(config.EmailConfig{Enabled: true, User: "a@example.com"})
	err := m.SendDigest(context.Background(), []domain.Result{{Paper: domain.Paper{ID: "x"}}})
	assert.NoError(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	m := testMailer(config.EmailConfig{})
	results := []domain.Result{
		{
			Paper: domain.Paper{
				ID:      "2501.00001",
				Title:   "First Paper",
				Authors: []string{"Alice", "Bob"},
				HTMLURL: "https://arxiv.org/abs/2501.00001",
			},
			Summary: "**TL;DR** it works.",
		},
		{
			Paper:   domain.Paper{ID: "2501.00002", Title: "Second Paper"},
			Summary: "Another summary.",
		},
	}

	md := m.renderMarkdown(results, "2026-08-30")
	assert.Contains(t, md, "# SystemPaperDaily — 2026-08-30")
	assert.Contains(t, md, "## 1. First Paper")
	assert.Contains(t, md, "## 2. Second Paper")
	assert.Contains(t, md, "**Authors**: Alice, Bob")
	assert.Contains(t, md, "**TL;DR** it works.")
	assert.Less(t, strings.Index(md, "First Paper"), strings.Index(md, "Second Paper"))
}

func TestBuildMessageIsMultipartAlternative(t *testing.T) {
	t.Parallel()

	m := testMailer(config.EmailConfig{User: "bot@example.com", To: "team@example.com"})
	msg := string(m.buildMessage("Daily digest", "plain body", "<html><body>html body</body></html>"))

	assert.Contains(t, msg, "From: bot@example.com\r\n")
	assert.Contains(t, msg, "To: team@example.com\r\n")
	assert.Contains(t, msg, "MIME-Version: 1.0\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, msg, "Content-Type: text/html; charset=utf-8")
	assert.Contains(t, msg, "plain body")
	assert.Contains(t, msg, "html body")

	// Plain part must precede the HTML part so capable clients prefer HTML.
	require.Less(t, strings.Index(msg, "plain body"), strings.Index(msg, "html body"))
	assert.True(t, strings.HasSuffix(msg, "--\r\n"), "message must be terminated")
}
