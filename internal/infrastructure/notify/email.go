package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

const smtpDialTimeout = 30 * time.Second

// EmailNotifier delivers the digest over implicit-TLS SMTP as a
// multipart/alternative message with both markdown and rendered HTML.
type EmailNotifier struct {
	cfg    config.EmailConfig
	md     goldmark.Markdown
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.Mailer = (*EmailNotifier)(nil)

// NewEmailNotifier prepares the mailer. Sending is a no-op unless the
// feature is enabled and fully configured.
func NewEmailNotifier(cfg config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		now:    time.Now,
		logger: logger,
	}
}

// SendDigest renders and delivers the day's digest email.
func (e *EmailNotifier) SendDigest(ctx context.Context, results []domain.Result) error {
	if !e.cfg.Enabled || len(results) == 0 {
		return nil
	}
	if e.cfg.User == "" || e.cfg.AuthCode == "" || e.cfg.To == "" {
		e.logger.Warn("email enabled but credentials incomplete, skipping")
		return nil
	}

	today := e.now().UTC().Format("2006-01-02")
	subject := fmt.Sprintf("SystemPaperDaily %s (%d papers)", today, len(results))
	markdown := e.renderMarkdown(results, today)

	var html bytes.Buffer
	if err := e.md.Convert([]byte(markdown), &html); err != nil {
		return fmt.Errorf("render digest html: %w", err)
	}

	msg := e.buildMessage(subject, markdown, wrapHTML(html.String()))
	if err := e.send(ctx, msg); err != nil {
		return fmt.Errorf("send digest email: %w", err)
	}
	e.logger.Info("digest email sent", "to", e.cfg.To, "papers", len(results))
	return nil
}

func (e *EmailNotifier) renderMarkdown(results []domain.Result, today string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# SystemPaperDaily — %s\n\n", today)
	fmt.Fprintf(&b, "%d new systems papers today.\n\n", len(results))
	for i, res := range results {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, res.Paper.Title)
		if len(res.Paper.Authors) > 0 {
			fmt.Fprintf(&b, "**Authors**: %s\n\n", strings.Join(res.Paper.Authors, ", "))
		}
		if res.Paper.HTMLURL != "" {
			fmt.Fprintf(&b, "**Link**: %s\n\n", res.Paper.HTMLURL)
		}
		if res.Paper.PDFURL != "" {
			fmt.Fprintf(&b, "**PDF**: %s\n\n", res.Paper.PDFURL)
		}
		b.WriteString(res.Summary)
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

func (e *EmailNotifier) buildMessage(subject, plain, html string) []byte {
	boundary := fmt.Sprintf("digest-%d", e.now().UnixNano())

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.User)
	fmt.Fprintf(&b, "To: %s\r\n", e.cfg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(plain)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}

// send speaks SMTP over implicit TLS, the mode expected on port 465.
func (e *EmailNotifier) send(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.cfg.SMTPHost, fmt.Sprint(e.cfg.SMTPPort))

	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: e.cfg.SMTPHost})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.AuthCode, e.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(e.cfg.User); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range strings.Split(e.cfg.To, ",") {
		rcpt = strings.TrimSpace(rcpt)
		if rcpt == "" {
			continue
		}
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return client.Quit()
}

func wrapHTML(body string) string {
	return `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 760px; margin: 0 auto; padding: 16px; color: #24292f; }
h1, h2 { border-bottom: 1px solid #d0d7de; padding-bottom: 4px; }
hr { border: none; border-top: 1px solid #d0d7de; margin: 24px 0; }
a { color: #0969da; }
</style></head>
<body>
` + body + `
</body>
</html>`
}
