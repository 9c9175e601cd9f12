// Package messaging provides the operator notification channel.
//
// The assistant pushes lead alerts and end-of-chat digests to the FolKode
// team over WhatsApp. Two backends are supported: a direct Whatsmeow
// session and the Twilio WhatsApp API.
package messaging

import (
	"context"
	"errors"
	"regexp"
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable outbound message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Each backend applies its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// canonicalizePhoneNumber strips non-digits and validates the result.
func canonicalizePhoneNumber(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: too short (minimum 6 digits required)")
	}
	return canonical, nil
}
