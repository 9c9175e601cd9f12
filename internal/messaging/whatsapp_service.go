package messaging

import (
	"context"
	"log/slog"

	"github.com/folkode/leadchat/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client whatsapp.Sender
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	slog.Debug("WhatsAppService created")
	return &WhatsAppService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number by stripping non-digit characters.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizePhoneNumber(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("WhatsAppService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op; the underlying client connects at construction time.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	return nil
}

// Stop is a no-op for outbound-only delivery.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	return nil
}

// SendMessage sends a message to the given recipient.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Debug("WhatsAppService SendMessage invoked", "to", to, "body_length", len(body))
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Info("WhatsAppService message sent", "to", canonicalTo)
	return nil
}
