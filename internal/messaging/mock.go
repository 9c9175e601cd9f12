package messaging

import (
	"context"
	"sync"
)

// MockService is an in-memory Service implementation for tests.
type MockService struct {
	mu      sync.Mutex
	Sent    []MockSentMessage
	SendErr error
	stopped bool
}

// MockSentMessage records one delivered message.
type MockSentMessage struct {
	To   string
	Body string
}

// NewMockService creates a new MockService.
func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhoneNumber(recipient)
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrServiceStopped
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, MockSentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// SentMessages returns a copy of the recorded messages.
func (m *MockService) SentMessages() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}
