package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seeker214/SystemPaperDaily/internal/domain"
)

func captureServer(t *testing.T, payloads *[]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		*payloads = append(*payloads, payload)
		w.WriteHeader(http.StatusNoContent)
	}))
}

func resultFixture(i int) domain.Result {
	id := fmt.Sprintf("2501.%05d", i)
	return domain.Result{
		Paper: domain.Paper{
			ID:         id,
			Title:      fmt.Sprintf("Paper %d", i),
			HTMLURL:    "https://arxiv.org/abs/" + id,
			PDFURL:     "https://arxiv.org/pdf/" + id,
			Categories: []string{"cs.OS"},
		},
		Summary: fmt.Sprintf("Summary %d.\nMore detail below.", i),
	}
}

func newTestNotifier(url string) *WebhookNotifier {
	n := NewWebhookNotifier(url, nil)
	n.now = func() time.Time {
		return time.Date(2026, time.August, 30, 6, 0, 0, 0, time.UTC)
	}
	return n
}

func TestPublishDigestDiscordBatches(t *testing.T) {
	t.Parallel()

	var payloads []map[string]any
	server := captureServer(t, &payloads)
	defer server.Close()

	// "discord" in the URL selects the embed payload shape.
	n := newTestNotifier(server.URL + "/discord/webhook")

	var results []domain.Result
	for i := 0; i < 12; i++ {
		results = append(results, resultFixture(i))
	}

	err := n.PublishDigest(context.Background(), results)
	require.NoError(t, err)

	// 1 header + 12 papers = 13 embeds, capped at 10 per message.
	require.Len(t, payloads, 2)

	first := payloads[0]["embeds"].([]any)
	second := payloads[1]["embeds"].([]any)
	assert.Len(t, first, 10)
	assert.Len(t, second, 3)

	header := first[0].(map[string]any)
	assert.Equal(t, "SystemPaperDaily — 2026-08-30", header["title"])

	paper := first[1].(map[string]any)
	assert.Equal(t, "Paper 0", paper["title"])
	assert.Equal(t, "https://arxiv.org/abs/2501.00000", paper["url"])
	assert.Equal(t, "Summary 0.", paper["description"], "description keeps the first line only")
}

func TestPublishDigestSlackBlocks(t *testing.T) {
	t.Parallel()

	var payloads []map[string]any
	server := captureServer(t, &payloads)
	defer server.Close()

	n := newTestNotifier(server.URL + "/services/hooks")

	err := n.PublishDigest(context.Background(), []domain.Result{resultFixture(0), resultFixture(1)})
	require.NoError(t, err)

	require.Len(t, payloads, 1)
	blocks := payloads[0]["blocks"].([]any)
	// header + count + divider + one section per paper
	require.Len(t, blocks, 5)

	header := blocks[0].(map[string]any)
	assert.Equal(t, "header", header["type"])

	section := blocks[3].(map[string]any)
	text := section["text"].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Paper 0")
	assert.Contains(t, text, "https://arxiv.org/abs/2501.00000")
}

func TestPublishDigestSlackBlockCap(t *testing.T) {
	t.Parallel()

	var payloads []map[string]any
	server := captureServer(t, &payloads)
	defer server.Close()

	n := newTestNotifier(server.URL)

	var results []domain.Result
	for i := 0; i < 60; i++ {
		results = append(results, resultFixture(i))
	}

	err := n.PublishDigest(context.Background(), results)
	require.NoError(t, err)

	require.Len(t, payloads, 1)
	blocks := payloads[0]["blocks"].([]any)
	assert.Len(t, blocks, slackBlockMax)
}

func TestPublishSummaryShapes(t *testing.T) {
	t.Parallel()

	var payloads []map[string]any
	server := captureServer(t, &payloads)
	defer server.Close()

	stats := domain.RunStats{Total: 5, Processed: 3, Skipped: 2}

	discord := newTestNotifier(server.URL + "/discord")
	require.NoError(t, discord.PublishSummary(context.Background(), stats))

	slack := newTestNotifier(server.URL + "/slack")
	require.NoError(t, slack.PublishSummary(context.Background(), stats))

	require.Len(t, payloads, 2)
	assert.Contains(t, payloads[0]["content"], "Processed: **3**")
	assert.Contains(t, payloads[1]["text"], "Skipped (duplicate): **2**")
}

func TestPublishDigestEmptyIsNoop(t *testing.T) {
	t.Parallel()

	n := newTestNotifier("https://discord.example/webhook")
	require.NoError(t, n.PublishDigest(context.Background(), nil))
}

func TestPostRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)
	err := n.PublishSummary(context.Background(), domain.RunStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
