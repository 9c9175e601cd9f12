// Package testutil provides common test utilities and helpers for LeadChat tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/folkode/leadchat/internal/analytics"
	"github.com/folkode/leadchat/internal/api"
	"github.com/folkode/leadchat/internal/genai"
	"github.com/folkode/leadchat/internal/models"
	"github.com/folkode/leadchat/internal/report"
	"github.com/folkode/leadchat/internal/store"
	"github.com/folkode/leadchat/internal/util"
)

// MockAIClient is a scripted genai.ClientInterface for tests.
type MockAIClient struct {
	// Reply is streamed back for every turn. When ReplyFunc is set it
	// takes precedence and receives the user's message text.
	Reply     string
	ReplyFunc func(text string) string
	// Summary is returned by GenerateSummary; a zero value falls back to
	// a fixed Warm report.
	Summary models.SummaryReport
}

// StartChat returns an opaque session handle.
func (m *MockAIClient) StartChat(history []models.Message, lang models.Language, userName string) *genai.ChatSession {
	return &genai.ChatSession{}
}

// SendMessageStream streams the scripted reply in two chunks.
func (m *MockAIClient) SendMessageStream(ctx context.Context, session *genai.ChatSession, message models.Message, personaPrefix string, onChunk func(string), onComplete func(string)) {
	reply := m.Reply
	if m.ReplyFunc != nil {
		reply = m.ReplyFunc(message.Text)
	}
	if reply == "" {
		reply = "Understood. Tell me more about your project."
	}
	half := len(reply) / 2
	if half > 0 {
		onChunk(reply[:half])
		onChunk(reply[half:])
	} else {
		onChunk(reply)
	}
	onComplete(reply)
}

// GenerateSummary returns the scripted summary.
func (m *MockAIClient) GenerateSummary(ctx context.Context, messages []models.Message, lang models.Language) models.SummaryReport {
	if m.Summary.Summary != "" {
		return m.Summary
	}
	return models.SummaryReport{
		Summary:     "Visitor explored a project idea.",
		Tags:        []string{"Web App"},
		Temperature: models.TemperatureWarm,
	}
}

// NewTestServer creates a test API server with in-memory dependencies and a
// scripted AI client.
func NewTestServer() *api.Server {
	return NewTestServerWithAI(&MockAIClient{})
}

// NewTestServerWithAI creates a test API server around the given AI client.
func NewTestServerWithAI(ai genai.ClientInterface) *api.Server {
	st := store.NewInMemoryStore()
	metrics := analytics.NewAggregator(st)
	reporter := report.NewWebhookClient()
	return api.NewServer(st, ai, reporter, metrics, nil)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// TestLead returns a valid lead for tests.
func TestLead() models.User {
	return models.User{
		Name:          "Ada",
		ContactMethod: models.ContactEmail,
		ContactInfo:   "ada@example.com",
	}
}

// TestMessage returns a user-authored message for tests.
func TestMessage(text string) models.Message {
	return models.Message{
		ID:        util.GenerateID("msg-", 8),
		Sender:    models.SenderUser,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
