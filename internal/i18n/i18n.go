// Package i18n provides the localized strings the conversation engine emits.
//
// Only backend-facing strings live here; presentation copy stays client-side.
// Every entry carries English, Spanish, and Portuguese variants and falls back
// to English for unknown languages.
package i18n

import "github.com/folkode/leadchat/internal/models"

// Entry maps a language to one localized string.
type Entry map[models.Language]string

// Get returns the string for the given language, falling back to English.
func (e Entry) Get(lang models.Language) string {
	if s, ok := e[lang]; ok {
		return s
	}
	return e[models.LanguageEnglish]
}

// InitialBotGreeting opens a fresh session. The {name} placeholder is replaced
// with the lead's name.
var InitialBotGreeting = Entry{
	models.LanguageEnglish:    "Hello {name}! I am FolKode, your AI assistant from FolKode. How can I help you plan your digital project today?\n\n👉 [What services do you offer?]\n👉 [Help me define my project]\n👉 [Tell me about your process]",
	models.LanguageSpanish:    "¡Hola {name}! Soy FolKode, tu asistente de IA de FolKode. ¿Cómo puedo ayudarte a planificar tu proyecto digital hoy?\n\n👉 [¿Qué servicios ofrecen?]\n👉 [Ayúdame a definir mi proyecto]\n👉 [Cuéntame sobre su proceso]",
	models.LanguagePortuguese: "Olá {name}! Eu sou o FolKode, seu assistente de IA da FolKode. Como posso ajudá-lo a planejar seu projeto digital hoje?\n\n👉 [Quais serviços vocês oferecem?]\n👉 [Ajude-me a definir meu projeto]\n👉 [Fale-me sobre o seu processo]",
}

// ProactivePrompt is injected by the inactivity watchdog.
var ProactivePrompt = Entry{
	models.LanguageEnglish:    "Is there anything else I can help you with?",
	models.LanguageSpanish:    "¿Hay algo más en lo que pueda ayudarte?",
	models.LanguagePortuguese: "Posso ajudar em mais alguma coisa?",
}

// SchedulerBotConfirmation confirms a scheduled meeting. Placeholders:
// {timeSlot}, {contactMethod}.
var SchedulerBotConfirmation = Entry{
	models.LanguageEnglish:    "Great! I've noted that down. Our team will contact you {timeSlot} via {contactMethod}. Talk soon!",
	models.LanguageSpanish:    "¡Genial! Lo he anotado. Nuestro equipo se pondrá en contacto contigo {timeSlot} a través de {contactMethod}. ¡Hablamos pronto!",
	models.LanguagePortuguese: "Ótimo! Anotei aqui. Nossa equipe entrará em contato com você {timeSlot} via {contactMethod}. Até breve!",
}

// WizardSummaryForAI is the user-voice summary the scoping wizard feeds back
// into the conversation. Placeholders: {projectType}, {audience}, {features},
// {extraDetails}.
var WizardSummaryForAI = Entry{
	models.LanguageEnglish:    "Here is a summary of my project idea:\n- **Project Type**: {projectType}\n- **Audience**: {audience}\n- **Key Features**: {features}\n- **Other Details**: {extraDetails}",
	models.LanguageSpanish:    "Aquí tienes un resumen de mi idea de proyecto:\n- **Tipo de Proyecto**: {projectType}\n- **Público**: {audience}\n- **Funcionalidades Clave**: {features}\n- **Otros Detalles**: {extraDetails}",
	models.LanguagePortuguese: "Aqui está um resumo da minha ideia de projeto:\n- **Tipo de Projeto**: {projectType}\n- **Público**: {audience}\n- **Recursos Principais**: {features}\n- **Outros Detalhes**: {extraDetails}",
}

// DefineProjectSuggestion is the greeting suggestion the wizard replaces.
var DefineProjectSuggestion = Entry{
	models.LanguageEnglish:    "Help me define my project",
	models.LanguageSpanish:    "Ayúdame a definir mi proyecto",
	models.LanguagePortuguese: "Ajude-me a definir meu projeto",
}

// ChatStartError is shown when the AI session could not be created.
var ChatStartError = Entry{
	models.LanguageEnglish:    "Sorry, we couldn't start the chat session. Please refresh and try again.",
	models.LanguageSpanish:    "Lo sentimos, no pudimos iniciar la sesión de chat. Por favor, actualiza la página e inténtalo de nuevo.",
	models.LanguagePortuguese: "Desculpe, não conseguimos iniciar a sessão de chat. Por favor, atualize a página e tente novamente.",
}

// AIConnectionError replaces a streamed response when the AI call fails.
var AIConnectionError = Entry{
	models.LanguageEnglish:    "I'm sorry, but I'm having trouble connecting to my brain right now. Please try again in a moment.",
	models.LanguageSpanish:    "Lo siento, estoy teniendo problemas de conexión. Por favor, inténtalo de nuevo en un momento.",
	models.LanguagePortuguese: "Desculpe, mas estou com problemas para me conectar ao meu cérebro agora. Por favor, tente novamente em um momento.",
}

// VoiceNotSupported is surfaced when no speech recognizer is configured.
var VoiceNotSupported = Entry{
	models.LanguageEnglish:    "Your browser doesn't support voice recognition.",
	models.LanguageSpanish:    "Tu navegador no es compatible con el reconocimiento de voz.",
	models.LanguagePortuguese: "Seu navegador não suporta reconhecimento de voz.",
}
