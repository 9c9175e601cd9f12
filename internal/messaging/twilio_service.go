package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/folkode/leadchat/internal/twiliowhatsapp"
)

// TwilioService implements the Service interface using the Twilio API.
type TwilioService struct {
	client  twiliowhatsapp.Sender
	mu      sync.RWMutex
	stopped bool
}

// NewTwilioService creates a new TwilioService wrapping the given sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	slog.Debug("TwilioService created")
	return &TwilioService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number by stripping non-digit characters.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizePhoneNumber(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op for Twilio.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop marks the service stopped; subsequent sends fail fast.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	slog.Info("TwilioService stopped")
	return nil
}

// SendMessage sends a message via the Twilio API.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("TwilioService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Info("TwilioService message sent", "to", canonicalTo)
	return nil
}
