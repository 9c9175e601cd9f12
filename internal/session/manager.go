// Package session implements the conversation engine for one chat profile.
//
// The Manager is the authoritative state container: the ordered message
// thread, the captured lead, the terminal flags, and the timers that drive
// the proactive nudge and the post-meeting close. All mutation goes through
// its methods under one mutex, and every change is persisted to the store
// so a profile can resume after a restart.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/folkode/leadchat/internal/analytics"
	"github.com/folkode/leadchat/internal/genai"
	"github.com/folkode/leadchat/internal/i18n"
	"github.com/folkode/leadchat/internal/models"
	"github.com/folkode/leadchat/internal/persona"
	"github.com/folkode/leadchat/internal/report"
	"github.com/folkode/leadchat/internal/store"
	"github.com/folkode/leadchat/internal/util"
)

// Timing defaults for the conversation engine.
const (
	// DefaultInactivityDelay is how long the user may idle before the
	// assistant nudges them.
	DefaultInactivityDelay = 60 * time.Second
	// DefaultEndChatDelay is the pause between the meeting confirmation
	// and the automatic chat close.
	DefaultEndChatDelay = 1500 * time.Millisecond
)

// Sentinel errors returned by Manager operations.
var (
	ErrLeadRequired        = errors.New("lead must be captured before chatting")
	ErrLeadAlreadyCaptured = errors.New("lead already captured for this session")
	ErrChatEnded           = errors.New("chat session has ended")
	ErrBusy                = errors.New("a response is already in progress")
	ErrChatRestarted       = errors.New("chat session was restarted")
	ErrMessageNotFound     = errors.New("message not found")
	ErrFeedbackAlreadySet  = errors.New("feedback already recorded for this message")
)

// componentSignal matches the JSON control object the model emits to hand
// off to an interactive sub-flow. The object may appear anywhere in the
// reply; models often wrap it in a sentence despite the prompt contract.
var componentSignal = regexp.MustCompile(`\{\s*"component"\s*:\s*"([A-Za-z]+)"\s*\}`)

// Opts holds configuration options for the Manager.
type Opts struct {
	InactivityDelay time.Duration
	EndChatDelay    time.Duration
	ListeningProbe  func() bool
}

// Option defines a configuration option for the Manager.
type Option func(*Opts)

// WithInactivityDelay overrides the idle window before the proactive nudge.
func WithInactivityDelay(d time.Duration) Option {
	return func(o *Opts) { o.InactivityDelay = d }
}

// WithEndChatDelay overrides the pause before the post-meeting close.
func WithEndChatDelay(d time.Duration) Option {
	return func(o *Opts) { o.EndChatDelay = d }
}

// WithListeningProbe registers a check for an active voice capture; the
// proactive nudge is suppressed while it reports true.
func WithListeningProbe(probe func() bool) Option {
	return func(o *Opts) { o.ListeningProbe = probe }
}

// State is the externally visible snapshot of a session.
type State struct {
	models.Session
	IsLoading     bool `json:"isLoading"`
	IsSummarizing bool `json:"isSummarizing"`
}

// Manager drives one conversation.
type Manager struct {
	profileID string
	ai        genai.ClientInterface
	store     store.Store
	reporter  report.Deliverer
	metrics   *analytics.Aggregator
	timer     Timer

	inactivityDelay time.Duration
	endChatDelay    time.Duration
	listeningProbe  func() bool

	mu            sync.Mutex
	lang          models.Language
	user          *models.User
	messages      []models.Message
	meeting       *models.MeetingDetails
	isLoading     bool
	isSummarizing bool
	isChatEnded   bool
	showGoodbye   bool
	startedAt     time.Time
	chat          *genai.ChatSession

	// epoch increments on restart; async results carrying a stale epoch
	// are discarded instead of mutating the new session.
	epoch uint64

	watchdogID string
}

// NewManager creates the conversation engine for one profile and hydrates
// any persisted session snapshot from the store.
func NewManager(profileID string, ai genai.ClientInterface, st store.Store, reporter report.Deliverer, metrics *analytics.Aggregator, timer Timer, opts ...Option) *Manager {
	cfg := Opts{
		InactivityDelay: DefaultInactivityDelay,
		EndChatDelay:    DefaultEndChatDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		profileID:       profileID,
		ai:              ai,
		store:           st,
		reporter:        reporter,
		metrics:         metrics,
		timer:           timer,
		inactivityDelay: cfg.InactivityDelay,
		endChatDelay:    cfg.EndChatDelay,
		listeningProbe:  cfg.ListeningProbe,
	}
	m.hydrate()
	return m
}

// hydrate restores the persisted snapshot, if any, and re-opens the AI
// session for an unfinished chat.
func (m *Manager) hydrate() {
	saved, err := m.store.GetSession(m.profileID)
	if err != nil {
		slog.Error("Manager.hydrate: failed to load session", "error", err, "profileID", m.profileID)
		return
	}
	if saved == nil {
		slog.Debug("Manager.hydrate: no saved session", "profileID", m.profileID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lang = saved.Language
	m.user = saved.User
	m.messages = saved.Messages
	m.isChatEnded = saved.IsChatEnded
	m.showGoodbye = saved.ShowGoodbyeScreen
	m.startedAt = saved.StartedAt

	if !m.isChatEnded && m.user != nil {
		m.chat = m.ai.StartChat(m.replayHistoryLocked(), m.lang, m.user.Name)
		m.scheduleWatchdogLocked()
	}
	slog.Info("Manager.hydrate: session restored", "profileID", m.profileID, "messages", len(m.messages), "ended", m.isChatEnded)
}

// State returns a copy of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Session:       m.sessionLocked(),
		IsLoading:     m.isLoading,
		IsSummarizing: m.isSummarizing,
	}
}

// CaptureLead records the visitor's identity, opens the AI session and
// returns the localized greeting message.
func (m *Manager) CaptureLead(ctx context.Context, lang models.Language, user models.User) (models.Message, error) {
	if !models.IsValidLanguage(lang) {
		return models.Message{}, models.ErrInvalidLanguage
	}
	if err := user.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("invalid lead: %w", err)
	}

	m.mu.Lock()
	if m.user != nil {
		m.mu.Unlock()
		return models.Message{}, ErrLeadAlreadyCaptured
	}

	now := time.Now()
	m.lang = lang
	m.user = &user
	m.startedAt = now

	greeting := models.Message{
		ID:        util.GenerateID("msg-", 8),
		Sender:    models.SenderBot,
		Text:      strings.ReplaceAll(i18n.InitialBotGreeting.Get(lang), "{name}", user.Name),
		Timestamp: now.UnixMilli(),
	}
	m.messages = []models.Message{greeting}
	m.chat = m.ai.StartChat(nil, lang, user.Name)
	m.persistLocked()
	m.scheduleWatchdogLocked()
	m.mu.Unlock()

	slog.Info("Manager.CaptureLead: lead captured", "profileID", m.profileID, "name", user.Name, "lang", lang)

	m.metrics.RecordChatStarted()
	if err := m.store.AddLead(models.Lead{ProfileID: m.profileID, User: user, Time: now}); err != nil {
		slog.Error("Manager.CaptureLead: failed to persist lead", "error", err)
	}
	go m.reporter.SaveLead(context.Background(), user)

	return greeting, nil
}

// SendMessage appends the user's message, streams the assistant reply
// through onChunk and returns the completed reply message. When the model
// hands off to a sub-flow, the returned message is a component placeholder
// instead of text.
func (m *Manager) SendMessage(ctx context.Context, text string, file *models.FileAttachment, onChunk func(string)) (models.Message, error) {
	if text == "" {
		return models.Message{}, models.ErrEmptyMessageText
	}
	if len(text) > models.MaxMessageTextLength {
		return models.Message{}, models.ErrMessageTextTooLong
	}
	if onChunk == nil {
		onChunk = func(string) {}
	}

	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return models.Message{}, ErrLeadRequired
	}
	if m.isChatEnded {
		m.mu.Unlock()
		return models.Message{}, ErrChatEnded
	}
	if m.isLoading || m.isSummarizing {
		m.mu.Unlock()
		return models.Message{}, ErrBusy
	}

	userMsg := models.Message{
		ID:        util.GenerateID("msg-", 8),
		Sender:    models.SenderUser,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		File:      file,
	}
	m.messages = append(m.messages, userMsg)
	m.isLoading = true
	epoch := m.epoch
	chat := m.chat
	m.cancelWatchdogLocked()
	m.persistLocked()
	m.mu.Unlock()

	slog.Debug("Manager.SendMessage: dispatching to AI", "profileID", m.profileID, "length", len(text), "hasFile", file != nil)

	var fullText string
	m.ai.SendMessageStream(ctx, chat, userMsg, persona.Prefix(text), onChunk, func(complete string) {
		fullText = complete
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		slog.Debug("Manager.SendMessage: discarding stale reply", "profileID", m.profileID)
		return models.Message{}, ErrChatRestarted
	}
	m.isLoading = false

	botMsg := models.Message{
		ID:        util.GenerateID("msg-", 8),
		Sender:    models.SenderBot,
		Text:      fullText,
		Timestamp: time.Now().UnixMilli(),
	}
	m.messages = append(m.messages, botMsg)
	reply := botMsg
	if component, ok := detectComponent(fullText); ok {
		// The reply text stays in the thread; the placeholder follows it
		// so the sub-flow renders beneath whatever the model said.
		compMsg := models.Message{
			ID:        util.GenerateID("msg-", 8),
			Sender:    models.SenderBot,
			Timestamp: time.Now().UnixMilli(),
			Component: component,
		}
		m.messages = append(m.messages, compMsg)
		reply = compMsg
		slog.Info("Manager.SendMessage: sub-flow hand-off", "profileID", m.profileID, "component", component)
	}
	m.persistLocked()
	m.scheduleWatchdogLocked()

	return reply, nil
}

// SubmitFeedback records a one-shot rating on an assistant message.
func (m *Manager) SubmitFeedback(messageID string, fb models.Feedback) error {
	if !models.IsValidFeedback(fb) {
		return models.ErrInvalidFeedback
	}

	m.mu.Lock()
	var target *models.Message
	for i := range m.messages {
		if m.messages[i].ID == messageID && m.messages[i].Sender == models.SenderBot {
			target = &m.messages[i]
			break
		}
	}
	if target == nil {
		m.mu.Unlock()
		return ErrMessageNotFound
	}
	if target.Feedback != "" {
		m.mu.Unlock()
		return ErrFeedbackAlreadySet
	}
	target.Feedback = fb
	m.persistLocked()
	m.mu.Unlock()

	slog.Info("Manager.SubmitFeedback: feedback recorded", "profileID", m.profileID, "messageID", messageID, "feedback", fb)
	m.metrics.RecordFeedback(fb)
	return nil
}

// EndChat closes the session: it generates the structured summary, appends
// it as the final message, records analytics and delivers the report.
// Ending an already-ended chat is a no-op.
func (m *Manager) EndChat(ctx context.Context) (models.Message, error) {
	m.mu.Lock()
	if m.isChatEnded {
		last := m.summaryMessageLocked()
		m.mu.Unlock()
		slog.Debug("Manager.EndChat: chat already ended", "profileID", m.profileID)
		return last, nil
	}
	if m.isSummarizing {
		m.mu.Unlock()
		return models.Message{}, ErrBusy
	}
	if m.user == nil {
		m.mu.Unlock()
		return models.Message{}, ErrLeadRequired
	}

	m.isSummarizing = true
	epoch := m.epoch
	lang := m.lang
	transcript := append([]models.Message{}, m.messages...)
	m.cancelWatchdogLocked()
	m.mu.Unlock()

	slog.Info("Manager.EndChat: summarizing", "profileID", m.profileID, "messages", len(transcript))
	summary := m.ai.GenerateSummary(ctx, transcript, lang)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		slog.Debug("Manager.EndChat: discarding stale summary", "profileID", m.profileID)
		return models.Message{}, ErrChatRestarted
	}

	summaryMsg := models.Message{
		ID:            util.GenerateID("msg-", 8),
		Sender:        models.SenderBot,
		Timestamp:     time.Now().UnixMilli(),
		SummaryReport: &summary,
	}
	m.messages = append(m.messages, summaryMsg)
	m.isSummarizing = false
	m.isChatEnded = true
	m.showGoodbye = true
	duration := time.Since(m.startedAt)
	user := *m.user
	meeting := m.meeting
	delivered := append([]models.Message{}, m.messages...)
	m.persistLocked()
	m.mu.Unlock()

	m.metrics.RecordTopicTags(summary.Tags)
	m.metrics.RecordDuration(duration)
	m.reporter.SendFullChatReport(ctx, user, delivered, summary, meeting)

	slog.Info("Manager.EndChat: chat ended", "profileID", m.profileID, "temperature", summary.Temperature, "duration", duration)
	return summaryMsg, nil
}

// ScheduleMeeting consumes the meeting sub-flow result: it finalizes the
// lead's contact channel, confirms in the thread and closes the chat after
// a short pause.
func (m *Manager) ScheduleMeeting(ctx context.Context, details models.MeetingDetails) (models.Message, error) {
	if err := details.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("invalid meeting details: %w", err)
	}

	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return models.Message{}, ErrLeadRequired
	}
	if m.isChatEnded {
		m.mu.Unlock()
		return models.Message{}, ErrChatEnded
	}

	m.user.ContactMethod = details.ContactMethod
	m.user.ContactInfo = details.ContactInfo
	m.meeting = &details

	confirmation := i18n.SchedulerBotConfirmation.Get(m.lang)
	confirmation = strings.ReplaceAll(confirmation, "{timeSlot}", details.TimeSlot)
	confirmation = strings.ReplaceAll(confirmation, "{contactMethod}", string(details.ContactMethod))

	msg := models.Message{
		ID:        util.GenerateID("msg-", 8),
		Sender:    models.SenderBot,
		Text:      confirmation,
		Timestamp: time.Now().UnixMilli(),
	}
	// The scheduler placeholder has served its purpose; the confirmation
	// takes its place in the thread.
	m.messages = append(dropComponentMessages(m.messages, ""), msg)
	epoch := m.epoch
	m.persistLocked()
	m.mu.Unlock()

	slog.Info("Manager.ScheduleMeeting: meeting scheduled", "profileID", m.profileID, "timeSlot", details.TimeSlot, "contactMethod", details.ContactMethod)
	m.metrics.RecordConversion()

	// Let the confirmation land before the goodbye screen takes over.
	if _, err := m.timer.ScheduleAfter(m.endChatDelay, func() {
		m.mu.Lock()
		stale := m.epoch != epoch
		m.mu.Unlock()
		if stale {
			return
		}
		if _, err := m.EndChat(context.Background()); err != nil && !errors.Is(err, ErrChatRestarted) {
			slog.Error("Manager.ScheduleMeeting: deferred end failed", "error", err, "profileID", m.profileID)
		}
	}); err != nil {
		slog.Error("Manager.ScheduleMeeting: failed to schedule chat close", "error", err)
	}

	return msg, nil
}

// StartProjectWizard inserts the project-scoping wizard into the thread.
func (m *Manager) StartProjectWizard() (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return models.Message{}, ErrLeadRequired
	}
	if m.isChatEnded {
		return models.Message{}, ErrChatEnded
	}

	msg := models.Message{
		ID:        util.GenerateID("msg-", 8),
		Sender:    models.SenderBot,
		Timestamp: time.Now().UnixMilli(),
		Component: models.ComponentProjectScopingWizard,
	}
	// The chip that offered to define the project is consumed by opening
	// the wizard.
	suggestion := i18n.DefineProjectSuggestion.Get(m.lang)
	kept := make([]models.Message, 0, len(m.messages))
	for _, prev := range m.messages {
		if suggestion != "" && strings.Contains(prev.Text, suggestion) {
			continue
		}
		kept = append(kept, prev)
	}
	m.messages = append(kept, msg)
	m.persistLocked()
	slog.Info("Manager.StartProjectWizard: wizard inserted", "profileID", m.profileID)
	return msg, nil
}

// SubmitProjectScope turns the wizard answers into a user-voiced summary
// and runs it through the normal conversation turn.
func (m *Manager) SubmitProjectScope(ctx context.Context, scope models.ProjectScope, onChunk func(string)) (models.Message, error) {
	text := i18n.WizardSummaryForAI.Get(m.currentLang())
	text = strings.ReplaceAll(text, "{projectType}", scope.ProjectType)
	text = strings.ReplaceAll(text, "{audience}", scope.Audience)
	text = strings.ReplaceAll(text, "{features}", strings.Join(scope.Features, ", "))
	extra := scope.ExtraDetails
	if extra == "" {
		extra = "N/A"
	}
	text = strings.ReplaceAll(text, "{extraDetails}", extra)

	// The wizard placeholder comes out of the thread; the scope summary
	// continues the conversation in its stead.
	m.mu.Lock()
	m.messages = dropComponentMessages(m.messages, models.ComponentProjectScopingWizard)
	m.persistLocked()
	m.mu.Unlock()

	slog.Debug("Manager.SubmitProjectScope: scope submitted", "profileID", m.profileID, "projectType", scope.ProjectType)
	return m.SendMessage(ctx, text, nil, onChunk)
}

// RecordSuggestionClick counts a tapped suggestion chip.
func (m *Manager) RecordSuggestionClick(label string) {
	m.metrics.RecordSuggestionClick(label)
}

// Restart discards the session. In-flight AI results from before the
// restart are dropped when they complete.
func (m *Manager) Restart() error {
	m.mu.Lock()
	m.epoch++
	m.cancelWatchdogLocked()
	m.lang = ""
	m.user = nil
	m.messages = nil
	m.meeting = nil
	m.isLoading = false
	m.isSummarizing = false
	m.isChatEnded = false
	m.showGoodbye = false
	m.startedAt = time.Time{}
	m.chat = nil
	m.mu.Unlock()

	slog.Info("Manager.Restart: session discarded", "profileID", m.profileID)
	if err := m.store.DeleteSession(m.profileID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Stop cancels outstanding timers.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelWatchdogLocked()
}

func (m *Manager) currentLang() models.Language {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lang
}

// replayHistoryLocked builds the turns fed back into a fresh AI session.
// A chat-start error message is a transient notice, not part of the
// conversation, so it stays out of the replayed history. Callers hold mu.
func (m *Manager) replayHistoryLocked() []models.Message {
	errText := i18n.ChatStartError.Get(m.lang)
	history := make([]models.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.Sender == models.SenderBot && errText != "" && strings.Contains(msg.Text, errText) {
			continue
		}
		history = append(history, msg)
	}
	return history
}

// sessionLocked builds the persistable snapshot. Callers hold mu.
func (m *Manager) sessionLocked() models.Session {
	msgs := make([]models.Message, len(m.messages))
	copy(msgs, m.messages)
	var user *models.User
	if m.user != nil {
		u := *m.user
		user = &u
	}
	return models.Session{
		Language:          m.lang,
		User:              user,
		Messages:          msgs,
		IsChatEnded:       m.isChatEnded,
		ShowGoodbyeScreen: m.showGoodbye,
		StartedAt:         m.startedAt,
	}
}

// persistLocked saves the snapshot. Persistence failures are logged, not
// surfaced; the in-memory state stays authoritative.
func (m *Manager) persistLocked() {
	if err := m.store.SaveSession(m.profileID, m.sessionLocked()); err != nil {
		slog.Error("Manager.persistLocked: failed to save session", "error", err, "profileID", m.profileID)
	}
}

// summaryMessageLocked returns the final summary message of an ended chat.
func (m *Manager) summaryMessageLocked() models.Message {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].SummaryReport != nil {
			return m.messages[i]
		}
	}
	return models.Message{}
}

// scheduleWatchdogLocked arms the inactivity nudge. Callers hold mu.
func (m *Manager) scheduleWatchdogLocked() {
	m.cancelWatchdogLocked()
	if m.isChatEnded || m.inactivityDelay <= 0 {
		return
	}
	epoch := m.epoch
	id, err := m.timer.ScheduleAfter(m.inactivityDelay, func() {
		m.onInactivity(epoch)
	})
	if err != nil {
		slog.Error("Manager.scheduleWatchdogLocked: failed to schedule", "error", err)
		return
	}
	m.watchdogID = id
}

func (m *Manager) cancelWatchdogLocked() {
	if m.watchdogID != "" {
		if err := m.timer.Cancel(m.watchdogID); err != nil {
			slog.Debug("Manager.cancelWatchdogLocked: cancel failed", "error", err)
		}
		m.watchdogID = ""
	}
}

// onInactivity fires the proactive nudge when the user has gone quiet. It
// only triggers when the last word belongs to the user and nothing else is
// happening: no reply streaming, no summary running, no voice capture.
func (m *Manager) onInactivity(epoch uint64) {
	if m.listeningProbe != nil && m.listeningProbe() {
		slog.Debug("Manager.onInactivity: suppressed, voice capture active", "profileID", m.profileID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.isChatEnded || m.isLoading || m.isSummarizing {
		return
	}
	if len(m.messages) == 0 || m.messages[len(m.messages)-1].Sender != models.SenderUser {
		return
	}

	msg := models.Message{
		ID:        util.GenerateID("msg-", 8),
		Sender:    models.SenderBot,
		Text:      i18n.ProactivePrompt.Get(m.lang),
		Timestamp: time.Now().UnixMilli(),
	}
	m.messages = append(m.messages, msg)
	m.persistLocked()
	slog.Info("Manager.onInactivity: proactive nudge sent", "profileID", m.profileID)
}

// dropComponentMessages filters interactive placeholder messages out of the
// thread. An empty component drops every placeholder; a named one drops only
// that sub-flow's.
func dropComponentMessages(messages []models.Message, component models.ComponentType) []models.Message {
	kept := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.Component != "" && (component == "" || m.Component == component) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// detectComponent recognizes the sub-flow hand-off control signal.
func detectComponent(text string) (models.ComponentType, bool) {
	match := componentSignal.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	component := models.ComponentType(match[1])
	switch component {
	case models.ComponentMeetingScheduler, models.ComponentProjectScopingWizard:
		return component, true
	default:
		return "", false
	}
}
