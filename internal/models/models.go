// Package models defines the core data structures for LeadChat.
//
// It includes the chat message, lead, summary report, and session types
// shared across modules.
package models

import (
	"errors"
	"time"
)

// Language is a supported conversation language.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageSpanish    Language = "es"
	LanguagePortuguese Language = "pt"
)

// IsValidLanguage checks if the given language is supported.
func IsValidLanguage(l Language) bool {
	switch l {
	case LanguageEnglish, LanguageSpanish, LanguagePortuguese:
		return true
	default:
		return false
	}
}

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Feedback is a one-shot like/dislike rating on a bot message.
type Feedback string

const (
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

// IsValidFeedback checks if the given feedback value is supported.
func IsValidFeedback(f Feedback) bool {
	return f == FeedbackLike || f == FeedbackDislike
}

// ComponentType names an interactive sub-flow the assistant can hand off to.
// The set is closed but extensible; each value must have a renderer on the
// presentation side.
type ComponentType string

const (
	// ComponentMeetingScheduler renders the meeting-scheduling sub-flow.
	ComponentMeetingScheduler ComponentType = "MeetingScheduler"
	// ComponentProjectScopingWizard renders the project-scoping wizard.
	ComponentProjectScopingWizard ComponentType = "ProjectScopingWizard"
)

// ContactMethod is the channel a lead prefers to be contacted on.
type ContactMethod string

const (
	ContactEmail     ContactMethod = "email"
	ContactWhatsApp  ContactMethod = "whatsapp"
	ContactLinkedIn  ContactMethod = "linkedin"
	ContactInstagram ContactMethod = "instagram"
	ContactFacebook  ContactMethod = "facebook"
	ContactTelegram  ContactMethod = "telegram"
	ContactPhone     ContactMethod = "phone"
)

// IsValidContactMethod checks if the given contact method is supported.
func IsValidContactMethod(m ContactMethod) bool {
	switch m {
	case ContactEmail, ContactWhatsApp, ContactLinkedIn, ContactInstagram,
		ContactFacebook, ContactTelegram, ContactPhone:
		return true
	default:
		return false
	}
}

// Temperature classifies a lead's commercial intent.
type Temperature string

const (
	TemperatureHot  Temperature = "Hot"
	TemperatureWarm Temperature = "Warm"
	TemperatureCold Temperature = "Cold"
)

// Validation constants for input validation
const (
	// MaxMessageTextLength defines the maximum allowed length for a user message
	MaxMessageTextLength = 8192
	// MaxUserNameLength defines the maximum allowed length for a lead name
	MaxUserNameLength = 200
	// MaxContactInfoLength defines the maximum allowed length for contact info
	MaxContactInfoLength = 500
)

// Error variables for better error handling and testability
var (
	ErrEmptyName            = errors.New("name cannot be empty")
	ErrNameTooLong          = errors.New("name exceeds maximum length")
	ErrInvalidContactMethod = errors.New("invalid contact method")
	ErrEmptyContactInfo     = errors.New("contact info cannot be empty")
	ErrContactInfoTooLong   = errors.New("contact info exceeds maximum length")
	ErrInvalidLanguage      = errors.New("unsupported language")
	ErrEmptyMessageText     = errors.New("message text cannot be empty")
	ErrMessageTextTooLong   = errors.New("message text exceeds maximum length")
	ErrInvalidFeedback      = errors.New("feedback must be like or dislike")
	ErrEmptyTimeSlot        = errors.New("time slot cannot be empty")
)

// FileAttachment is an optional file carried by a user message. DataURL holds a
// base64 data URL for images and is empty for documents, whose extracted text
// travels in the message body instead.
type FileAttachment struct {
	Name     string `json:"name"`
	DataURL  string `json:"dataUrl"`
	MimeType string `json:"mimeType"`
}

// SummaryReport is the structured lead summary produced once per ended session.
type SummaryReport struct {
	Summary         string      `json:"summary"`
	Tags            []string    `json:"tags"`
	Temperature     Temperature `json:"temperature"`
	LeadScore       int         `json:"leadScore,omitempty"`
	PainPoint       string      `json:"painPoint,omitempty"`
	BudgetMention   string      `json:"budgetMention,omitempty"`
	TimelineMention string      `json:"timelineMention,omitempty"`
}

// Message is a single entry in the chat thread. A message is exactly one of:
// plain text, a file attachment with accompanying text, a summary report, or a
// named sub-flow component placeholder. Immutable once delivered except for
// Feedback, which transitions exactly once from empty to like or dislike.
type Message struct {
	ID            string          `json:"id"`
	Sender        Sender          `json:"sender"`
	Text          string          `json:"text"`
	Timestamp     int64           `json:"timestamp"` // unix milliseconds
	File          *FileAttachment `json:"file,omitempty"`
	Feedback      Feedback        `json:"feedback,omitempty"`
	SummaryReport *SummaryReport  `json:"summaryReport,omitempty"`
	Component     ComponentType   `json:"component,omitempty"`
}

// User is a captured lead identity. Created once per session at lead-capture
// time; ContactMethod and ContactInfo may be overwritten if the user
// reschedules contact during the meeting sub-flow.
type User struct {
	Name          string        `json:"name"`
	ContactMethod ContactMethod `json:"contactMethod"`
	ContactInfo   string        `json:"contactInfo"`
}

// Validate performs validation on a captured lead.
func (u *User) Validate() error {
	if u.Name == "" {
		return ErrEmptyName
	}
	if len(u.Name) > MaxUserNameLength {
		return ErrNameTooLong
	}
	if !IsValidContactMethod(u.ContactMethod) {
		return ErrInvalidContactMethod
	}
	if u.ContactInfo == "" {
		return ErrEmptyContactInfo
	}
	if len(u.ContactInfo) > MaxContactInfoLength {
		return ErrContactInfoTooLong
	}
	return nil
}

// MeetingDetails is produced by the meeting sub-flow and consumed once to
// finalize the lead contact channel and trigger session end.
type MeetingDetails struct {
	ContactMethod ContactMethod `json:"contactMethod"`
	ContactInfo   string        `json:"contactInfo"`
	TimeSlot      string        `json:"timeSlot"`
}

// Validate performs validation on meeting details.
func (m *MeetingDetails) Validate() error {
	if !IsValidContactMethod(m.ContactMethod) {
		return ErrInvalidContactMethod
	}
	if m.ContactInfo == "" {
		return ErrEmptyContactInfo
	}
	if m.TimeSlot == "" {
		return ErrEmptyTimeSlot
	}
	return nil
}

// ProjectScope is the output of the project-scoping wizard sub-flow.
type ProjectScope struct {
	ProjectType  string   `json:"projectType"`
	Audience     string   `json:"audience"`
	Features     []string `json:"features"`
	ExtraDetails string   `json:"extraDetails"`
}

// Session is the persisted snapshot of one conversation: the ordered message
// list, the terminal flags, and the session start timestamp. Exactly one
// session is active per profile at a time; starting a new one discards the old
// snapshot.
type Session struct {
	Language          Language  `json:"language,omitempty"`
	User              *User     `json:"user,omitempty"`
	Messages          []Message `json:"messages"`
	IsChatEnded       bool      `json:"isChatEnded"`
	ShowGoodbyeScreen bool      `json:"showGoodbyeScreen"`
	StartedAt         time.Time `json:"startedAt"`
}

// Lead is a persisted lead-capture record.
type Lead struct {
	ProfileID string    `json:"profile_id"`
	User      User      `json:"user"`
	Time      time.Time `json:"time"`
}
