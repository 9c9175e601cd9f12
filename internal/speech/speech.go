// Package speech provides voice input and output for the assistant.
//
// A Recognizer turns one recorded utterance into text and a Synthesizer
// turns reply text into audio. The Adapter above them owns the
// conversation-mode loop and voice selection.
package speech

import (
	"context"
	"errors"
	"strings"

	"github.com/folkode/leadchat/internal/models"
)

// ErrVoiceNotSupported indicates no synthesis voice exists for the
// requested language.
var ErrVoiceNotSupported = errors.New("no synthesis voice available for language")

// ErrNotListening indicates a stop request arrived with no capture active.
var ErrNotListening = errors.New("no active listening session")

// Voice describes one available synthesis voice.
type Voice struct {
	ID       string
	Name     string
	Language string // BCP 47 tag, e.g. "en-US"
	Premium  bool
	Local    bool
}

// Recognizer converts one recorded utterance to text.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, lang models.Language) (string, error)
}

// Synthesizer converts text to spoken audio using a specific voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
	Voices(ctx context.Context) ([]Voice, error)
}

// langTag maps an assistant language to its BCP 47 prefix.
func langTag(lang models.Language) string {
	switch lang {
	case models.LanguageSpanish:
		return "es"
	case models.LanguagePortuguese:
		return "pt"
	default:
		return "en"
	}
}

// SelectVoice picks the best voice for a language. Premium voices win,
// then locally hosted ones, then any voice matching the language prefix.
func SelectVoice(voices []Voice, lang models.Language) (Voice, bool) {
	tag := langTag(lang)
	matches := make([]Voice, 0, len(voices))
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Language), tag) {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return Voice{}, false
	}
	for _, v := range matches {
		if v.Premium {
			return v, true
		}
	}
	for _, v := range matches {
		if v.Local {
			return v, true
		}
	}
	return matches[0], true
}
