// Package report delivers lead and end-of-chat reports to the operator.
//
// Delivery is best-effort and fire-and-forget: each event is POSTed once as
// JSON to the configured webhook and optionally pushed as text through the
// operator messaging channel. Failures are logged, never retried, and never
// surfaced to the visitor.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/folkode/leadchat/internal/messaging"
	"github.com/folkode/leadchat/internal/models"
)

// DefaultTimeout bounds one webhook POST.
const DefaultTimeout = 15 * time.Second

// Deliverer is the report-delivery capability the session manager depends on.
type Deliverer interface {
	// SaveLead reports a freshly captured lead.
	SaveLead(ctx context.Context, user models.User)
	// SendFullChatReport reports a completed session: the lead, the full
	// transcript, the structured summary, and any scheduled meeting.
	SendFullChatReport(ctx context.Context, user models.User, messages []models.Message, summary models.SummaryReport, meeting *models.MeetingDetails)
}

// Opts holds configuration options for the webhook client.
type Opts struct {
	WebhookURL string
	Timeout    time.Duration
	Notifier   messaging.Service
	NotifyTo   string
}

// Option defines a configuration option for the webhook client.
type Option func(*Opts)

// WithWebhookURL sets the operator webhook endpoint.
func WithWebhookURL(url string) Option {
	return func(o *Opts) { o.WebhookURL = url }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithNotifier additionally pushes report text to the operator through a
// messaging service (e.g. WhatsApp).
func WithNotifier(svc messaging.Service, to string) Option {
	return func(o *Opts) {
		o.Notifier = svc
		o.NotifyTo = to
	}
}

// WebhookClient posts reports to a single operator-configured endpoint.
type WebhookClient struct {
	url      string
	client   *http.Client
	notifier messaging.Service
	notifyTo string
}

// NewWebhookClient creates a report delivery client.
func NewWebhookClient(opts ...Option) *WebhookClient {
	cfg := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("report.NewWebhookClient: created", "url_set", cfg.WebhookURL != "", "notifier_set", cfg.Notifier != nil)
	return &WebhookClient{
		url:      cfg.WebhookURL,
		client:   &http.Client{Timeout: cfg.Timeout},
		notifier: cfg.Notifier,
		notifyTo: cfg.NotifyTo,
	}
}

// leadPayload is the flattened lead-capture body.
type leadPayload struct {
	Subject       string `json:"_subject"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	ContactMethod string `json:"contactMethod"`
	ContactInfo   string `json:"contactInfo"`
}

// chatReportPayload is the flattened end-of-chat body.
type chatReportPayload struct {
	Subject         string `json:"_subject"`
	Template        string `json:"_template"`
	User            string `json:"user"`
	Summary         string `json:"summary"`
	Tags            string `json:"tags"`
	Temperature     string `json:"temperature"`
	LeadScore       int    `json:"leadScore"`
	PainPoint       string `json:"painPoint"`
	BudgetMention   string `json:"budgetMention"`
	TimelineMention string `json:"timelineMention"`
	MeetingRequest  string `json:"meeting_request"`
	Transcript      string `json:"transcript"`
}

// SaveLead reports a freshly captured lead.
func (c *WebhookClient) SaveLead(ctx context.Context, user models.User) {
	slog.Info("report.SaveLead: delivering lead", "name", user.Name, "contactMethod", user.ContactMethod)

	payload := leadPayload{
		Subject:       fmt.Sprintf("New Lead Captured: %s", user.Name),
		Type:          "LEAD_CAPTURE",
		Name:          user.Name,
		ContactMethod: string(user.ContactMethod),
		ContactInfo:   user.ContactInfo,
	}
	c.post(ctx, payload)

	c.notify(ctx, fmt.Sprintf("New lead captured: %s (%s: %s)", user.Name, user.ContactMethod, user.ContactInfo))
}

// SendFullChatReport reports a completed session.
func (c *WebhookClient) SendFullChatReport(ctx context.Context, user models.User, messages []models.Message, summary models.SummaryReport, meeting *models.MeetingDetails) {
	slog.Info("report.SendFullChatReport: delivering chat report",
		"name", user.Name, "temperature", summary.Temperature, "messages", len(messages))

	meetingRequest := "Not scheduled"
	if meeting != nil {
		meetingRequest = fmt.Sprintf("%s via %s", meeting.TimeSlot, meeting.ContactInfo)
	}

	payload := chatReportPayload{
		Subject:         fmt.Sprintf("Chat Report for %s - Temperature: %s", user.Name, summary.Temperature),
		Template:        "box",
		User:            fmt.Sprintf("%s (%s: %s)", user.Name, user.ContactMethod, user.ContactInfo),
		Summary:         summary.Summary,
		Tags:            strings.Join(summary.Tags, ", "),
		Temperature:     string(summary.Temperature),
		LeadScore:       summary.LeadScore,
		PainPoint:       summary.PainPoint,
		BudgetMention:   orNA(summary.BudgetMention),
		TimelineMention: orNA(summary.TimelineMention),
		MeetingRequest:  meetingRequest,
		Transcript:      FormatTranscript(user, messages),
	}
	c.post(ctx, payload)

	c.notify(ctx, fmt.Sprintf("Chat ended with %s - %s lead.\nTags: %s\n\n%s",
		user.Name, summary.Temperature, strings.Join(summary.Tags, ", "), summary.Summary))
}

// post performs the single best-effort webhook delivery attempt.
func (c *WebhookClient) post(ctx context.Context, payload interface{}) {
	if c.url == "" {
		slog.Debug("report.post: no webhook URL configured, skipping")
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("report.post: failed to marshal payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("report.post: failed to build request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("report.post: webhook delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("report.post: webhook returned non-success status", "status", resp.StatusCode)
		return
	}
	slog.Debug("report.post: webhook delivery succeeded", "status", resp.StatusCode)
}

// notify pushes report text to the operator messaging channel, if configured.
func (c *WebhookClient) notify(ctx context.Context, text string) {
	if c.notifier == nil || c.notifyTo == "" {
		return
	}
	if err := c.notifier.SendMessage(ctx, c.notifyTo, text); err != nil {
		slog.Error("report.notify: operator notification failed", "error", err)
	}
}

// FormatTranscript renders the message list as the operator-facing transcript.
func FormatTranscript(user models.User, messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		ts := time.UnixMilli(msg.Timestamp).Format("15:04")
		content := msg.Text
		if content == "" && msg.Component != "" {
			content = fmt.Sprintf("[%s]", msg.Component)
		}
		speaker := user.Name
		if msg.Sender == models.SenderBot {
			speaker = "FolKode"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", ts, speaker, content))
	}
	return strings.Join(lines, "\n")
}

// orNA substitutes "N/A" for empty optional summary fields.
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
