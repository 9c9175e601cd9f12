package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/folkode/leadchat/internal/models"
)

// Deepgram REST endpoints.
const (
	DefaultDeepgramBaseURL = "https://api.deepgram.com"
	listenPath             = "/v1/listen"
	speakPath              = "/v1/speak"

	// DefaultHTTPTimeout bounds one transcription or synthesis request.
	DefaultHTTPTimeout = 30 * time.Second
)

// deepgramVoices is the fixed voice catalog exposed by the speak endpoint.
// Aura models are treated as premium.
var deepgramVoices = []Voice{
	{ID: "aura-2-thalia-en", Name: "Thalia", Language: "en-US", Premium: true},
	{ID: "aura-2-orion-en", Name: "Orion", Language: "en-US", Premium: true},
	{ID: "aura-2-celeste-es", Name: "Celeste", Language: "es-ES", Premium: true},
	{ID: "aura-2-javier-es", Name: "Javier", Language: "es-MX", Premium: true},
}

// Opts holds configuration options for the Deepgram client.
type Opts struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Option defines a configuration option for the Deepgram client.
type Option func(*Opts)

// WithAPIKey sets the Deepgram API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the Deepgram API base URL.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// DeepgramClient implements Recognizer and Synthesizer against the
// Deepgram REST API.
type DeepgramClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewDeepgramClient creates a Deepgram client, falling back to the
// DEEPGRAM_API_KEY environment variable when no key option is given.
func NewDeepgramClient(opts ...Option) (*DeepgramClient, error) {
	cfg := Opts{BaseURL: DefaultDeepgramBaseURL, Timeout: DefaultHTTPTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram API key must be provided")
	}
	slog.Debug("speech.NewDeepgramClient: created", "base_url", cfg.BaseURL)
	return &DeepgramClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// listenResponse is the subset of the transcription response we consume.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends one recorded utterance for transcription and returns
// the text of the top alternative.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mimeType string, lang models.Language) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload cannot be empty")
	}

	params := url.Values{}
	params.Set("model", "nova-2")
	params.Set("language", langTag(lang))
	params.Set("smart_format", "true")

	endpoint := c.baseURL + listenPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	req.Header.Set("Content-Type", mimeType)

	slog.Debug("speech.Transcribe: sending audio", "bytes", len(audio), "language", langTag(lang))
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	transcript := parsed.Results.Channels[0].Alternatives[0].Transcript
	slog.Debug("speech.Transcribe: transcript received", "length", len(transcript))
	return transcript, nil
}

// Synthesize renders text as audio using the given voice.
func (c *DeepgramClient) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	params := url.Values{}
	params.Set("model", voice.ID)
	endpoint := c.baseURL + speakPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	slog.Debug("speech.Synthesize: sending text", "voice", voice.ID, "length", len(text))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis returned status %d: %s", resp.StatusCode, string(detail))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}
	slog.Debug("speech.Synthesize: audio received", "bytes", len(audio))
	return audio, nil
}

// Voices returns the synthesis voice catalog.
func (c *DeepgramClient) Voices(ctx context.Context) ([]Voice, error) {
	out := make([]Voice, len(deepgramVoices))
	copy(out, deepgramVoices)
	return out, nil
}
