// Package genai provides the generative-AI conversation client for LeadChat
// using the OpenAI API.
//
// It exposes a stateful chat session with streamed completions and a one-shot
// schema-constrained summary call. Transport failures never escape this
// package: the stream path substitutes a localized connection error and the
// summary path substitutes a fixed fallback report, so callers always reach a
// terminal state.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/folkode/leadchat/internal/i18n"
	"github.com/folkode/leadchat/internal/models"
)

// DefaultModel is the chat model used unless overridden via options.
const DefaultModel = openai.ChatModelGPT4oMini

// chatService defines the minimal surface of the OpenAI chat completion
// service, allowing test doubles.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// ClientInterface is the AI capability the session manager depends on. It is
// an explicitly constructed, injected dependency so tests can substitute it.
type ClientInterface interface {
	// StartChat creates a stateful chat session preloaded with prior turns and
	// a system instruction parameterized by language and the lead's name.
	StartChat(history []models.Message, lang models.Language, userName string) *ChatSession

	// SendMessageStream sends the persona-prefixed message on the session and
	// invokes onChunk for each incremental piece of text, then onComplete with
	// the full concatenated text. On failure both callbacks receive a single
	// localized error string instead.
	SendMessageStream(ctx context.Context, session *ChatSession, message models.Message, personaPrefix string, onChunk func(string), onComplete func(string))

	// GenerateSummary asks the model for a schema-constrained summary of the
	// transcript. On any failure it returns a fallback report tagged
	// "Error"/Cold instead of an error.
	GenerateSummary(ctx context.Context, messages []models.Message, lang models.Language) models.SummaryReport
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	slog.Debug("genai.NewClient: creating client", "model", cfg.Model)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// ChatSession holds the remote conversation state: the system instruction and
// the accumulated turns. The handle is opaque to callers and reused for all
// subsequent turns in the session.
type ChatSession struct {
	mu       sync.Mutex
	lang     models.Language
	messages []openai.ChatCompletionMessageParamUnion
}

// StartChat creates a chat session preloaded with prior turns.
func (c *Client) StartChat(history []models.Message, lang models.Language, userName string) *ChatSession {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	msgs = append(msgs, openai.SystemMessage(SystemInstruction(lang, userName)))
	for _, m := range history {
		if param, ok := messageToParam(m); ok {
			msgs = append(msgs, param)
		}
	}
	slog.Debug("genai.StartChat: session created", "lang", lang, "historyTurns", len(msgs)-1)
	return &ChatSession{lang: lang, messages: msgs}
}

// messageToParam converts a chat message to an OpenAI turn. Component
// placeholder messages carry no text and are skipped.
func messageToParam(m models.Message) (openai.ChatCompletionMessageParamUnion, bool) {
	if m.Sender == models.SenderBot {
		if m.Text == "" {
			return openai.ChatCompletionMessageParamUnion{}, false
		}
		return openai.AssistantMessage(m.Text), true
	}
	if part, ok := filePart(m.File); ok {
		return openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(m.Text),
			part,
		}), true
	}
	return openai.UserMessage(m.Text), true
}

// filePart builds an inline image part from a file attachment. Only files with
// a base64 data URL are forwarded; documents have their extracted text in the
// message body already.
func filePart(f *models.FileAttachment) (openai.ChatCompletionContentPartUnionParam, bool) {
	if f == nil || !strings.Contains(f.DataURL, ";base64,") {
		return openai.ChatCompletionContentPartUnionParam{}, false
	}
	return openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
		URL: f.DataURL,
	}), true
}

// SendMessageStream streams one completion turn on the session.
func (c *Client) SendMessageStream(ctx context.Context, session *ChatSession, message models.Message, personaPrefix string, onChunk func(string), onComplete func(string)) {
	session.mu.Lock()
	prefixed := message
	prefixed.Text = personaPrefix + message.Text
	param, ok := messageToParam(prefixed)
	if !ok {
		session.mu.Unlock()
		slog.Warn("genai.SendMessageStream: message has no sendable content")
		onComplete("")
		return
	}
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: append(append([]openai.ChatCompletionMessageParamUnion{}, session.messages...), param),
	}
	session.mu.Unlock()

	stream := c.chat.NewStreaming(ctx, params)
	defer stream.Close()

	var fullText strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		fullText.WriteString(delta)
		onChunk(delta)
	}

	if err := stream.Err(); err != nil {
		slog.Error("genai.SendMessageStream: stream failed", "error", err)
		errText := i18n.AIConnectionError.Get(session.lang)
		onChunk(errText)
		onComplete(errText)
		return
	}

	text := fullText.String()
	session.mu.Lock()
	session.messages = append(session.messages, param, openai.AssistantMessage(text))
	session.mu.Unlock()

	slog.Debug("genai.SendMessageStream: stream completed", "responseLength", len(text))
	onComplete(text)
}

// summarySchema constrains the summary completion to the report shape.
var summarySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary":         map[string]interface{}{"type": "string"},
		"tags":            map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"temperature":     map[string]interface{}{"type": "string", "enum": []string{"Hot", "Warm", "Cold"}},
		"leadScore":       map[string]interface{}{"type": "integer"},
		"painPoint":       map[string]interface{}{"type": "string"},
		"budgetMention":   map[string]interface{}{"type": "string"},
		"timelineMention": map[string]interface{}{"type": "string"},
	},
	"required":             []string{"summary", "tags", "temperature"},
	"additionalProperties": false,
}

// FallbackSummary builds the report substituted when summarization fails, so
// report delivery always has a valid payload.
func FallbackSummary(detail string) models.SummaryReport {
	summary := "An error occurred while generating the summary."
	if detail != "" {
		summary = fmt.Sprintf("Error generating summary: %s", detail)
	}
	return models.SummaryReport{
		Summary:     summary,
		Tags:        []string{"Error"},
		Temperature: models.TemperatureCold,
	}
}

// GenerateSummary produces the structured lead report for a transcript.
func (c *Client) GenerateSummary(ctx context.Context, messages []models.Message, lang models.Language) models.SummaryReport {
	transcript := Transcript(messages)
	if transcript == "" {
		slog.Warn("genai.GenerateSummary: empty transcript")
		return FallbackSummary("empty transcript")
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SummaryInstruction(lang)),
			openai.UserMessage("TRANSCRIPT:\n\n" + transcript),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "summary_report",
					Schema: summarySchema,
				},
			},
		},
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("genai.GenerateSummary: completion failed", "error", err)
		return FallbackSummary(err.Error())
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.GenerateSummary: no choices returned")
		return FallbackSummary("no choices returned")
	}

	var report models.SummaryReport
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &report); err != nil {
		slog.Error("genai.GenerateSummary: failed to parse summary JSON", "error", err)
		return FallbackSummary("invalid summary format received")
	}
	if report.Summary == "" || len(report.Tags) == 0 || report.Temperature == "" {
		slog.Error("genai.GenerateSummary: summary missing required fields")
		return FallbackSummary("invalid summary format received")
	}

	slog.Debug("genai.GenerateSummary: summary generated", "temperature", report.Temperature, "tags", report.Tags)
	return report
}

// Transcript renders the text-carrying messages as a plain-text transcript.
func Transcript(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if m.Sender == models.SenderUser {
			b.WriteString("Client: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Text)
	}
	return b.String()
}
