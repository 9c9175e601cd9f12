// Package persona selects an alternate persona instruction for a user prompt.
//
// The assistant shifts register when the user asks about design or technical
// infrastructure. Detection is a case-insensitive substring scan over two
// keyword sets (English and Spanish); design keywords are checked first and
// the first matching set wins, so a message touching both topics gets the
// design persona.
package persona

import "strings"

// CreativeDirectorPrompt is prepended when the user asks about design.
const CreativeDirectorPrompt = `
**Personality Shift:** The user is asking about design. Adopt the persona of a friendly, insightful Creative Director. Use visual language and simple terms. Focus on user experience, aesthetics, and brand identity.`

// TechLeadPrompt is prepended when the user asks about technical topics.
const TechLeadPrompt = `
**Personality Shift:** The user is asking about technical topics. Adopt the persona of a helpful, clear-thinking Tech Lead. Explain complex tech concepts with simple analogies. Be precise but avoid jargon. Focus on architecture, scalability, and technology stacks in an easy-to-understand way.`

var designKeywords = []string{
	"design", "ui", "ux", "look", "feel", "aesthetic", "visual",
	"diseño", "interfaz", "apariencia",
}

var techKeywords = []string{
	"backend", "database", "api", "server", "cloud", "architecture", "scalability",
	"infraestructura", "base de datos", "escalabilidad",
}

// Prefix returns the persona instruction to prepend to the AI prompt for the
// given user message, or the empty string when no keyword matches.
func Prefix(messageText string) string {
	lower := strings.ToLower(messageText)

	for _, kw := range designKeywords {
		if strings.Contains(lower, kw) {
			return CreativeDirectorPrompt
		}
	}
	for _, kw := range techKeywords {
		if strings.Contains(lower, kw) {
			return TechLeadPrompt
		}
	}
	return ""
}
