package speech

import (
	"testing"

	"github.com/folkode/leadchat/internal/models"
)

func TestSelectVoice(t *testing.T) {
	catalog := []Voice{
		{ID: "en-basic", Language: "en-GB"},
		{ID: "en-local", Language: "en-US", Local: true},
		{ID: "en-premium", Language: "en-US", Premium: true},
		{ID: "es-local", Language: "es-ES", Local: true},
		{ID: "pt-basic", Language: "pt-BR"},
	}

	tests := []struct {
		name       string
		voices     []Voice
		lang       models.Language
		expectedID string
		expectOK   bool
	}{
		{
			name:       "premium wins for english",
			voices:     catalog,
			lang:       models.LanguageEnglish,
			expectedID: "en-premium",
			expectOK:   true,
		},
		{
			name:       "local wins when no premium",
			voices:     catalog[:2],
			lang:       models.LanguageEnglish,
			expectedID: "en-local",
			expectOK:   true,
		},
		{
			name:       "first match when neither premium nor local",
			voices:     catalog,
			lang:       models.LanguagePortuguese,
			expectedID: "pt-basic",
			expectOK:   true,
		},
		{
			name:       "spanish local voice",
			voices:     catalog,
			lang:       models.LanguageSpanish,
			expectedID: "es-local",
			expectOK:   true,
		},
		{
			name:     "no match for unsupported language",
			voices:   catalog[3:],
			lang:     models.LanguageEnglish,
			expectOK: false,
		},
		{
			name:     "empty catalog",
			voices:   nil,
			lang:     models.LanguageEnglish,
			expectOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voice, ok := SelectVoice(tt.voices, tt.lang)
			if ok != tt.expectOK {
				t.Fatalf("SelectVoice ok = %v, want %v", ok, tt.expectOK)
			}
			if ok && voice.ID != tt.expectedID {
				t.Errorf("SelectVoice picked %q, want %q", voice.ID, tt.expectedID)
			}
		})
	}
}
