package persona

import "testing"

func TestPrefix(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			name:     "design keyword",
			message:  "Can you help with the UI design of my app?",
			expected: CreativeDirectorPrompt,
		},
		{
			name:     "tech keyword",
			message:  "What database would you recommend for this?",
			expected: TechLeadPrompt,
		},
		{
			name:     "no keyword",
			message:  "How much does a project usually cost?",
			expected: "",
		},
		{
			name:     "case insensitive",
			message:  "I care a lot about the VISUAL side",
			expected: CreativeDirectorPrompt,
		},
		{
			name:     "spanish design keyword",
			message:  "Me interesa el diseño de la interfaz",
			expected: CreativeDirectorPrompt,
		},
		{
			name:     "spanish tech keyword",
			message:  "Necesito una base de datos escalable",
			expected: TechLeadPrompt,
		},
		{
			name:     "design wins over tech",
			message:  "I want a good looking UI on top of a solid backend",
			expected: CreativeDirectorPrompt,
		},
		{
			name:     "empty message",
			message:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Prefix(tt.message)
			if got != tt.expected {
				t.Errorf("Prefix(%q) returned wrong persona instruction", tt.message)
			}
		})
	}
}
