package i18n

import (
	"strings"
	"testing"

	"github.com/folkode/leadchat/internal/models"
)

func TestEntryGet(t *testing.T) {
	entry := Entry{
		models.LanguageEnglish: "hello",
		models.LanguageSpanish: "hola",
	}

	if got := entry.Get(models.LanguageSpanish); got != "hola" {
		t.Errorf("expected Spanish variant, got %q", got)
	}
	if got := entry.Get(models.LanguageEnglish); got != "hello" {
		t.Errorf("expected English variant, got %q", got)
	}
	// Unknown languages fall back to English.
	if got := entry.Get(models.Language("fr")); got != "hello" {
		t.Errorf("expected English fallback, got %q", got)
	}
}

func TestEntriesCoverAllLanguages(t *testing.T) {
	entries := map[string]Entry{
		"InitialBotGreeting":       InitialBotGreeting,
		"ProactivePrompt":          ProactivePrompt,
		"SchedulerBotConfirmation": SchedulerBotConfirmation,
		"WizardSummaryForAI":       WizardSummaryForAI,
		"DefineProjectSuggestion":  DefineProjectSuggestion,
		"ChatStartError":           ChatStartError,
		"AIConnectionError":        AIConnectionError,
		"VoiceNotSupported":        VoiceNotSupported,
	}
	languages := []models.Language{
		models.LanguageEnglish,
		models.LanguageSpanish,
		models.LanguagePortuguese,
	}

	for name, entry := range entries {
		for _, lang := range languages {
			if entry[lang] == "" {
				t.Errorf("%s is missing the %q variant", name, lang)
			}
		}
	}
}

func TestPlaceholdersPresentInAllVariants(t *testing.T) {
	tests := []struct {
		name         string
		entry        Entry
		placeholders []string
	}{
		{
			name:         "InitialBotGreeting",
			entry:        InitialBotGreeting,
			placeholders: []string{"{name}"},
		},
		{
			name:         "SchedulerBotConfirmation",
			entry:        SchedulerBotConfirmation,
			placeholders: []string{"{timeSlot}", "{contactMethod}"},
		},
		{
			name:         "WizardSummaryForAI",
			entry:        WizardSummaryForAI,
			placeholders: []string{"{projectType}", "{audience}", "{features}", "{extraDetails}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for lang, text := range tt.entry {
				for _, ph := range tt.placeholders {
					if !strings.Contains(text, ph) {
						t.Errorf("%s[%s] is missing placeholder %s", tt.name, lang, ph)
					}
				}
			}
		})
	}
}
