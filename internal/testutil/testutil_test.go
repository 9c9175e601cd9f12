package testutil

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestNewTestServer(t *testing.T) {
	server := NewTestServer()
	if server == nil {
		t.Fatal("NewTestServer returned nil")
	}
	if server.Handler() == nil {
		t.Error("Expected server handler to be created, got nil")
	}
}

func TestMockAIClientDefaults(t *testing.T) {
	ai := &MockAIClient{}

	session := ai.StartChat(nil, "en", "Ada")
	if session == nil {
		t.Fatal("StartChat returned nil session")
	}

	var chunks []string
	var full string
	ai.SendMessageStream(context.Background(), session, TestMessage("hello"), "", func(chunk string) {
		chunks = append(chunks, chunk)
	}, func(text string) {
		full = text
	})

	if full == "" {
		t.Error("expected a default reply, got empty string")
	}
	joined := ""
	for _, c := range chunks {
		joined += c
	}
	if joined != full {
		t.Errorf("chunks %q do not reassemble into final text %q", joined, full)
	}

	summary := ai.GenerateSummary(context.Background(), nil, "en")
	if summary.Summary == "" {
		t.Error("expected a default summary")
	}
	if len(summary.Tags) == 0 {
		t.Error("expected default summary tags")
	}
}

func TestMockAIClientReplyFunc(t *testing.T) {
	ai := &MockAIClient{
		Reply:     "static reply",
		ReplyFunc: func(text string) string { return "echo: " + text },
	}

	var full string
	ai.SendMessageStream(context.Background(), ai.StartChat(nil, "en", ""), TestMessage("ping"), "", func(string) {}, func(text string) {
		full = text
	})

	if full != "echo: ping" {
		t.Errorf("expected ReplyFunc to take precedence, got %q", full)
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
	}{
		{
			name:   "GET request with no body",
			method: "GET",
			url:    "/test",
			body:   nil,
		},
		{
			name:   "POST request with JSON body",
			method: "POST",
			url:    "/test",
			body:   map[string]string{"key": "value"},
		},
		{
			name:   "POST request with struct body",
			method: "POST",
			url:    "/session/lead",
			body:   TestLead(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateHTTPRequest(t, tt.method, tt.url, tt.body)

			if req == nil {
				t.Fatal("Expected request to be created, got nil")
			}
			if req.Method != tt.method {
				t.Errorf("Expected method %s, got %s", tt.method, req.Method)
			}
			if req.URL.Path != tt.url {
				t.Errorf("Expected URL %s, got %s", tt.url, req.URL.Path)
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"ok","result":{"healthy":true}}`)

	response := AssertJSONResponse(t, rr, "ok")
	if response == nil {
		t.Fatal("Expected response map to be returned")
	}
	if _, ok := response["result"]; !ok {
		t.Error("Expected result field to survive decoding")
	}
}

func TestMustMarshalRoundTrip(t *testing.T) {
	lead := TestLead()
	data := MustMarshalJSON(t, lead)

	var decoded map[string]interface{}
	MustUnmarshalJSON(t, data, &decoded)

	if decoded["name"] != "Ada" {
		t.Errorf("Expected name 'Ada', got %v", decoded["name"])
	}
}
