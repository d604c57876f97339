// Package delivery emails generated reports to a fixed list of recipients.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/osteele/liquid"
	"github.com/resend/resend-go/v2"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
)

const defaultFrom = "Spend Insights <insights@example.com>"

const subjectTemplate = `{{ title }} - {{ generated_at }}`

const bodyTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; color: #1f2933;">
  <h1 style="font-size: 22px;">{{ title }}</h1>
  <p style="color: #616e7c;">Generated {{ generated_at }} from {{ record_count }} records.</p>
{% if empty %}
  <p><em>No spend data available.</em></p>
{% else %}
  <h2 style="font-size: 16px;">Where each campaign spends</h2>
  <ul>
  {% for f in campaign_findings %}
    <li><strong>{{ f.subject }}</strong>: {{ f.counterpart }} ({{ f.percentage | percent }}){% if f.tied_with != "" %}, tied with {{ f.tied_with }}{% endif %}</li>
  {% endfor %}
  </ul>
  <h2 style="font-size: 16px;">Who dominates each channel</h2>
  <ul>
  {% for f in channel_findings %}
    <li><strong>{{ f.subject }}</strong>: {{ f.counterpart }} ({{ f.percentage | percent }}){% if f.tied_with != "" %}, tied with {{ f.tied_with }}{% endif %}</li>
  {% endfor %}
  </ul>
  <p>Total spend: <strong>{{ grand_total }}</strong></p>
{% endif %}
  <p style="color: #9aa5b1; font-size: 12px;">The full matrices are attached.</p>
</body>
</html>
`

// Sender is the part of the Resend client used to send mail.
type Sender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Config configures report emails.
type Config struct {
	APIKey     string
	From       string
	Recipients []string
}

// Attachment is a rendered report file.
type Attachment struct {
	Filename string
	Content  []byte
}

// Mailer sends report emails through Resend.
type Mailer struct {
	sender     Sender
	from       string
	recipients []string
	engine     *liquid.Engine
	logger     *slog.Logger
}

// NewMailer creates a mailer. Without an API key every send is skipped.
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	var sender Sender
	if cfg.APIKey != "" {
		sender = resend.NewClient(cfg.APIKey).Emails
	}
	return NewMailerWithSender(sender, cfg, logger)
}

// NewMailerWithSender creates a mailer around an existing sender.
func NewMailerWithSender(sender Sender, cfg Config, logger *slog.Logger) *Mailer {
	from := cfg.From
	if from == "" {
		from = defaultFrom
	}

	engine := liquid.NewEngine()
	engine.RegisterFilter("percent", func(v float64) string {
		return distribution.FormatPercent(v)
	})

	return &Mailer{
		sender:     sender,
		from:       from,
		recipients: cfg.Recipients,
		engine:     engine,
		logger:     logger,
	}
}

// Enabled reports whether SendReport will actually send.
func (m *Mailer) Enabled() bool {
	return m.sender != nil && len(m.recipients) > 0
}

// SendReport emails a summary of r with the given attachments.
func (m *Mailer) SendReport(ctx context.Context, r *report.Report, attachments []Attachment) error {
	if !m.Enabled() {
		m.logger.Warn("resend client not configured, skipping report email")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := m.Render(r)
	if err != nil {
		return err
	}

	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      m.recipients,
		Subject: subject,
		Html:    body,
	}
	for _, a := range attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename: a.Filename,
			Content:  a.Content,
		})
	}

	resp, err := m.sender.Send(req)
	if err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}

	m.logger.Info("report email sent",
		slog.String("email_id", resp.Id),
		slog.Int("recipients", len(m.recipients)),
		slog.Int("attachments", len(attachments)),
	)
	return nil
}

// Render returns the subject and HTML body for r.
func (m *Mailer) Render(r *report.Report) (string, string, error) {
	bindings := liquid.Bindings{
		"title":             r.Title,
		"generated_at":      r.GeneratedAt.Format("2006-01-02 15:04"),
		"record_count":      r.RecordCount,
		"empty":             r.IsEmpty(),
		"campaign_findings": findingBindings(r.RowInsight.Findings),
		"channel_findings":  findingBindings(r.ColumnInsight.Findings),
		"grand_total":       r.GrandTotal.Display(),
	}

	subject, err := m.engine.ParseAndRenderString(subjectTemplate, bindings)
	if err != nil {
		return "", "", fmt.Errorf("failed to render email subject: %w", err)
	}
	body, err := m.engine.ParseAndRenderString(bodyTemplate, bindings)
	if err != nil {
		return "", "", fmt.Errorf("failed to render email body: %w", err)
	}
	return subject, body, nil
}

func findingBindings(findings []distribution.Finding) []map[string]any {
	out := make([]map[string]any, 0, len(findings))
	for _, f := range findings {
		out = append(out, map[string]any{
			"subject":     f.Subject,
			"counterpart": f.Counterpart,
			"percentage":  f.Percentage,
			"tied_with":   strings.Join(f.TiedWith, ", "),
		})
	}
	return out
}
