package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/folkode/leadchat/internal/analytics"
	"github.com/folkode/leadchat/internal/genai"
	"github.com/folkode/leadchat/internal/i18n"
	"github.com/folkode/leadchat/internal/models"
	"github.com/folkode/leadchat/internal/store"
)

// mockAI is a scripted genai.ClientInterface.
type mockAI struct {
	mu        sync.Mutex
	reply     string
	summary   models.SummaryReport
	during    func()        // invoked after the user turn is accepted, before completion
	block     chan struct{} // when set, SendMessageStream waits on it
	started   chan struct{} // when set, closed once streaming begins
	sentTexts []string
	prefixes  []string
	histories [][]models.Message
}

func (a *mockAI) StartChat(history []models.Message, lang models.Language, userName string) *genai.ChatSession {
	a.mu.Lock()
	a.histories = append(a.histories, history)
	a.mu.Unlock()
	return &genai.ChatSession{}
}

func (a *mockAI) SendMessageStream(ctx context.Context, session *genai.ChatSession, message models.Message, personaPrefix string, onChunk func(string), onComplete func(string)) {
	a.mu.Lock()
	a.sentTexts = append(a.sentTexts, message.Text)
	a.prefixes = append(a.prefixes, personaPrefix)
	started := a.started
	a.mu.Unlock()

	if started != nil {
		close(started)
		a.mu.Lock()
		a.started = nil
		a.mu.Unlock()
	}
	if a.during != nil {
		a.during()
	}
	if a.block != nil {
		<-a.block
	}

	reply := a.reply
	if reply == "" {
		reply = "Tell me more about your project."
	}
	onChunk(reply)
	onComplete(reply)
}

func (a *mockAI) GenerateSummary(ctx context.Context, messages []models.Message, lang models.Language) models.SummaryReport {
	if a.summary.Summary != "" {
		return a.summary
	}
	return models.SummaryReport{
		Summary:     "Visitor explored a project idea.",
		Tags:        []string{"Web App"},
		Temperature: models.TemperatureWarm,
	}
}

func (a *mockAI) lastText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sentTexts) == 0 {
		return ""
	}
	return a.sentTexts[len(a.sentTexts)-1]
}

// mockDeliverer records report deliveries.
type mockDeliverer struct {
	mu          sync.Mutex
	leads       []models.User
	reports     int
	lastSummary models.SummaryReport
	lastMeeting *models.MeetingDetails
}

func (d *mockDeliverer) SaveLead(ctx context.Context, user models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leads = append(d.leads, user)
}

func (d *mockDeliverer) SendFullChatReport(ctx context.Context, user models.User, messages []models.Message, summary models.SummaryReport, meeting *models.MeetingDetails) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports++
	d.lastSummary = summary
	d.lastMeeting = meeting
}

func (d *mockDeliverer) reportCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reports
}

func (d *mockDeliverer) leadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.leads)
}

// fakeTimer collects scheduled callbacks so tests control when they fire.
type fakeTimer struct {
	mu     sync.Mutex
	nextID int
	fns    map[string]func()
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{fns: make(map[string]func())}
}

func (t *fakeTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	t.fns[id] = fn
	return id, nil
}

func (t *fakeTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fns, id)
	return nil
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fns = make(map[string]func())
}

// firePending runs all pending callbacks in scheduling order and clears them.
func (t *fakeTimer) firePending() {
	t.mu.Lock()
	pending := make([]func(), 0, len(t.fns))
	for i := 1; i <= t.nextID; i++ {
		if fn, ok := t.fns[fmt.Sprintf("timer_%d", i)]; ok {
			pending = append(pending, fn)
		}
	}
	t.fns = make(map[string]func())
	t.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (t *fakeTimer) pendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fns)
}

type fixture struct {
	manager  *Manager
	ai       *mockAI
	store    *store.InMemoryStore
	reporter *mockDeliverer
	metrics  *analytics.Aggregator
	timer    *fakeTimer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		ai:       &mockAI{},
		store:    store.NewInMemoryStore(),
		reporter: &mockDeliverer{},
		timer:    newFakeTimer(),
	}
	f.metrics = analytics.NewAggregator(f.store)
	f.manager = NewManager("default", f.ai, f.store, f.reporter, f.metrics, f.timer, opts...)
	return f
}

func validLead() models.User {
	return models.User{Name: "Ada", ContactMethod: models.ContactEmail, ContactInfo: "ada@example.com"}
}

func (f *fixture) captureLead(t *testing.T) models.Message {
	t.Helper()
	greeting, err := f.manager.CaptureLead(context.Background(), models.LanguageEnglish, validLead())
	if err != nil {
		t.Fatalf("CaptureLead failed: %v", err)
	}
	return greeting
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCaptureLead(t *testing.T) {
	f := newFixture(t)

	greeting := f.captureLead(t)
	if greeting.Sender != models.SenderBot {
		t.Errorf("expected bot greeting, got sender %q", greeting.Sender)
	}
	if !strings.Contains(greeting.Text, "Ada") {
		t.Errorf("expected greeting personalized with lead name, got %q", greeting.Text)
	}
	if strings.Contains(greeting.Text, "{name}") {
		t.Error("expected {name} placeholder replaced")
	}

	state := f.manager.State()
	if state.User == nil || state.User.Name != "Ada" {
		t.Errorf("expected lead stored in state, got %+v", state.User)
	}
	if len(state.Messages) != 1 {
		t.Errorf("expected greeting as the only message, got %d", len(state.Messages))
	}

	leads, err := f.store.GetLeads()
	if err != nil {
		t.Fatalf("GetLeads failed: %v", err)
	}
	if len(leads) != 1 || leads[0].User.Name != "Ada" {
		t.Errorf("expected lead persisted, got %+v", leads)
	}
	if got := f.metrics.Snapshot().TotalChats; got != 1 {
		t.Errorf("expected chat counted, got %d", got)
	}
	waitFor(t, func() bool { return f.reporter.leadCount() == 1 }, "lead report delivery")
}

func TestCaptureLeadValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.CaptureLead(context.Background(), models.Language("de"), validLead()); !errors.Is(err, models.ErrInvalidLanguage) {
		t.Errorf("expected ErrInvalidLanguage, got %v", err)
	}
	if _, err := f.manager.CaptureLead(context.Background(), models.LanguageEnglish, models.User{}); err == nil {
		t.Error("expected validation error for empty lead")
	}

	f.captureLead(t)
	if _, err := f.manager.CaptureLead(context.Background(), models.LanguageEnglish, validLead()); !errors.Is(err, ErrLeadAlreadyCaptured) {
		t.Errorf("expected ErrLeadAlreadyCaptured, got %v", err)
	}
}

func TestSendMessageRequiresLead(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.SendMessage(context.Background(), "hello", nil, nil); !errors.Is(err, ErrLeadRequired) {
		t.Errorf("expected ErrLeadRequired, got %v", err)
	}
}

func TestSendMessageStreamsReply(t *testing.T) {
	f := newFixture(t)
	f.ai.reply = "Happy to help with your store."
	f.captureLead(t)

	var chunks []string
	reply, err := f.manager.SendMessage(context.Background(), "I want an online store", nil, func(c string) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply.Text != "Happy to help with your store." {
		t.Errorf("unexpected reply text %q", reply.Text)
	}
	if len(chunks) == 0 {
		t.Error("expected streamed chunks")
	}

	state := f.manager.State()
	if len(state.Messages) != 3 { // greeting, user, reply
		t.Fatalf("expected 3 messages, got %d", len(state.Messages))
	}
	if state.Messages[1].Sender != models.SenderUser || state.Messages[1].Text != "I want an online store" {
		t.Errorf("user message not recorded: %+v", state.Messages[1])
	}
	if state.IsLoading {
		t.Error("expected loading cleared after reply")
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)

	if _, err := f.manager.SendMessage(context.Background(), "", nil, nil); !errors.Is(err, models.ErrEmptyMessageText) {
		t.Errorf("expected ErrEmptyMessageText, got %v", err)
	}
	long := strings.Repeat("a", models.MaxMessageTextLength+1)
	if _, err := f.manager.SendMessage(context.Background(), long, nil, nil); !errors.Is(err, models.ErrMessageTextTooLong) {
		t.Errorf("expected ErrMessageTextTooLong, got %v", err)
	}
}

func TestSendMessageWhileLoadingIsRejected(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)

	var concurrentErr error
	f.ai.during = func() {
		_, concurrentErr = f.manager.SendMessage(context.Background(), "second message", nil, nil)
	}

	if _, err := f.manager.SendMessage(context.Background(), "first message", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if !errors.Is(concurrentErr, ErrBusy) {
		t.Errorf("expected ErrBusy for concurrent send, got %v", concurrentErr)
	}
}

func TestSendMessageAppliesPersonaPrefix(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)

	if _, err := f.manager.SendMessage(context.Background(), "what backend should I use?", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	f.ai.mu.Lock()
	prefix := f.ai.prefixes[len(f.ai.prefixes)-1]
	f.ai.mu.Unlock()
	if prefix == "" {
		t.Error("expected a persona prefix for a technical question")
	}
}

func TestComponentHandOff(t *testing.T) {
	f := newFixture(t)
	f.ai.reply = `{"component": "MeetingScheduler"}`
	f.captureLead(t)

	reply, err := f.manager.SendMessage(context.Background(), "can we schedule a call?", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply.Component != models.ComponentMeetingScheduler {
		t.Errorf("expected MeetingScheduler component, got %q", reply.Component)
	}
	if reply.Text != "" {
		t.Errorf("expected empty text on component message, got %q", reply.Text)
	}
}

func TestComponentHandOffEmbeddedInProse(t *testing.T) {
	f := newFixture(t)
	f.ai.reply = `Sure, let's set that up! {"component": "MeetingScheduler"}`
	f.captureLead(t)

	reply, err := f.manager.SendMessage(context.Background(), "can we schedule a call?", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply.Component != models.ComponentMeetingScheduler {
		t.Errorf("expected MeetingScheduler component, got %q with text %q", reply.Component, reply.Text)
	}
}

func TestDetectComponent(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		component models.ComponentType
		ok        bool
	}{
		{
			name:      "meeting scheduler signal",
			text:      `{"component":"MeetingScheduler"}`,
			component: models.ComponentMeetingScheduler,
			ok:        true,
		},
		{
			name:      "wizard signal with whitespace",
			text:      ` { "component" : "ProjectScopingWizard" } `,
			component: models.ComponentProjectScopingWizard,
			ok:        true,
		},
		{
			name: "unknown component name",
			text: `{"component":"Carousel"}`,
			ok:   false,
		},
		{
			name:      "signal embedded in prose",
			text:      `Sure, let's set that up! {"component": "MeetingScheduler"}`,
			component: models.ComponentMeetingScheduler,
			ok:        true,
		},
		{
			name: "plain text",
			text: "Let me know when works for you.",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			component, ok := detectComponent(tt.text)
			if ok != tt.ok || component != tt.component {
				t.Errorf("detectComponent(%q) = (%q, %v), want (%q, %v)", tt.text, component, ok, tt.component, tt.ok)
			}
		})
	}
}

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t)
	greeting := f.captureLead(t)

	if err := f.manager.SubmitFeedback(greeting.ID, models.FeedbackLike); err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}
	if got := f.manager.State().Messages[0].Feedback; got != models.FeedbackLike {
		t.Errorf("expected like recorded, got %q", got)
	}
	if got := f.metrics.Snapshot().Feedback.Likes; got != 1 {
		t.Errorf("expected 1 like in analytics, got %d", got)
	}

	// Feedback transitions exactly once.
	if err := f.manager.SubmitFeedback(greeting.ID, models.FeedbackDislike); !errors.Is(err, ErrFeedbackAlreadySet) {
		t.Errorf("expected ErrFeedbackAlreadySet, got %v", err)
	}
	if got := f.manager.State().Messages[0].Feedback; got != models.FeedbackLike {
		t.Errorf("expected original feedback kept, got %q", got)
	}

	if err := f.manager.SubmitFeedback("msg-unknown", models.FeedbackLike); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
	if err := f.manager.SubmitFeedback(greeting.ID, models.Feedback("shrug")); !errors.Is(err, models.ErrInvalidFeedback) {
		t.Errorf("expected ErrInvalidFeedback, got %v", err)
	}
}

func TestSubmitFeedbackOnUserMessage(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)
	if _, err := f.manager.SendMessage(context.Background(), "hello", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	userMsgID := f.manager.State().Messages[1].ID
	if err := f.manager.SubmitFeedback(userMsgID, models.FeedbackLike); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound for user message, got %v", err)
	}
}

func TestEndChat(t *testing.T) {
	f := newFixture(t)
	f.ai.summary = models.SummaryReport{
		Summary:     "Hot e-commerce lead.",
		Tags:        []string{"E-commerce", "Web App"},
		Temperature: models.TemperatureHot,
	}
	f.captureLead(t)

	summaryMsg, err := f.manager.EndChat(context.Background())
	if err != nil {
		t.Fatalf("EndChat failed: %v", err)
	}
	if summaryMsg.SummaryReport == nil || summaryMsg.SummaryReport.Summary != "Hot e-commerce lead." {
		t.Errorf("expected summary report message, got %+v", summaryMsg)
	}

	state := f.manager.State()
	if !state.IsChatEnded || !state.ShowGoodbyeScreen {
		t.Errorf("expected terminal flags set, got %+v", state)
	}
	if state.Messages[len(state.Messages)-1].SummaryReport == nil {
		t.Error("expected summary as the final message")
	}

	snap := f.metrics.Snapshot()
	if len(snap.ChatDurations) != 1 {
		t.Errorf("expected exactly one duration recorded, got %d", len(snap.ChatDurations))
	}
	if snap.TopicTags["E-commerce"] != 1 || snap.TopicTags["Web App"] != 1 {
		t.Errorf("expected topic tags recorded, got %v", snap.TopicTags)
	}
	if f.reporter.reportCount() != 1 {
		t.Errorf("expected exactly one chat report, got %d", f.reporter.reportCount())
	}
}

func TestEndChatIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)

	first, err := f.manager.EndChat(context.Background())
	if err != nil {
		t.Fatalf("EndChat failed: %v", err)
	}
	second, err := f.manager.EndChat(context.Background())
	if err != nil {
		t.Fatalf("second EndChat failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same summary message, got %q vs %q", second.ID, first.ID)
	}

	if f.reporter.reportCount() != 1 {
		t.Errorf("expected one chat report after double end, got %d", f.reporter.reportCount())
	}
	if got := len(f.metrics.Snapshot().ChatDurations); got != 1 {
		t.Errorf("expected one duration after double end, got %d", got)
	}
}

func TestSendMessageAfterEnd(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)
	if _, err := f.manager.EndChat(context.Background()); err != nil {
		t.Fatalf("EndChat failed: %v", err)
	}

	if _, err := f.manager.SendMessage(context.Background(), "one more thing", nil, nil); !errors.Is(err, ErrChatEnded) {
		t.Errorf("expected ErrChatEnded, got %v", err)
	}
	if _, err := f.manager.StartProjectWizard(); !errors.Is(err, ErrChatEnded) {
		t.Errorf("expected ErrChatEnded from wizard, got %v", err)
	}
}

func TestScheduleMeeting(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)

	details := models.MeetingDetails{
		ContactMethod: models.ContactPhone,
		ContactInfo:   "15551234567",
		TimeSlot:      "tomorrow morning",
	}
	confirmation, err := f.manager.ScheduleMeeting(context.Background(), details)
	if err != nil {
		t.Fatalf("ScheduleMeeting failed: %v", err)
	}
	if !strings.Contains(confirmation.Text, "tomorrow morning") || !strings.Contains(confirmation.Text, "phone") {
		t.Errorf("confirmation missing meeting details: %q", confirmation.Text)
	}

	// The meeting overrides the lead's contact channel.
	state := f.manager.State()
	if state.User.ContactMethod != models.ContactPhone || state.User.ContactInfo != "15551234567" {
		t.Errorf("expected contact channel updated, got %+v", state.User)
	}
	if got := f.metrics.Snapshot().TotalConversions; got != 1 {
		t.Errorf("expected conversion recorded, got %d", got)
	}

	// The deferred close ends the chat and the report carries the meeting.
	f.timer.firePending()
	waitFor(t, func() bool { return f.manager.State().IsChatEnded }, "deferred chat close")
	if f.reporter.reportCount() != 1 {
		t.Fatalf("expected one chat report, got %d", f.reporter.reportCount())
	}
	f.reporter.mu.Lock()
	meeting := f.reporter.lastMeeting
	f.reporter.mu.Unlock()
	if meeting == nil || meeting.TimeSlot != "tomorrow morning" {
		t.Errorf("expected meeting in report, got %+v", meeting)
	}
}

func TestScheduleMeetingReplacesComponentMessage(t *testing.T) {
	f := newFixture(t)
	f.ai.reply = `{"component": "MeetingScheduler"}`
	f.captureLead(t)
	if _, err := f.manager.SendMessage(context.Background(), "can we schedule a call?", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	details := models.MeetingDetails{ContactMethod: models.ContactPhone, ContactInfo: "15551234567", TimeSlot: "tomorrow morning"}
	confirmation, err := f.manager.ScheduleMeeting(context.Background(), details)
	if err != nil {
		t.Fatalf("ScheduleMeeting failed: %v", err)
	}

	// The scheduler placeholder gives way to the confirmation.
	messages := f.manager.State().Messages
	for _, m := range messages {
		if m.Component != "" {
			t.Errorf("expected component placeholder removed, found %q", m.Component)
		}
	}
	if last := messages[len(messages)-1]; last.ID != confirmation.ID {
		t.Errorf("expected confirmation as last message, got %+v", last)
	}
}

func TestScheduleMeetingValidation(t *testing.T) {
	f := newFixture(t)

	details := models.MeetingDetails{ContactMethod: models.ContactPhone, ContactInfo: "15551234567", TimeSlot: "today"}
	if _, err := f.manager.ScheduleMeeting(context.Background(), details); !errors.Is(err, ErrLeadRequired) {
		t.Errorf("expected ErrLeadRequired, got %v", err)
	}

	f.captureLead(t)
	if _, err := f.manager.ScheduleMeeting(context.Background(), models.MeetingDetails{}); err == nil {
		t.Error("expected validation error for empty details")
	}
}

func TestProjectWizard(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.StartProjectWizard(); !errors.Is(err, ErrLeadRequired) {
		t.Errorf("expected ErrLeadRequired, got %v", err)
	}

	f.captureLead(t)
	wizardMsg, err := f.manager.StartProjectWizard()
	if err != nil {
		t.Fatalf("StartProjectWizard failed: %v", err)
	}
	if wizardMsg.Component != models.ComponentProjectScopingWizard {
		t.Errorf("expected wizard component, got %q", wizardMsg.Component)
	}

	scope := models.ProjectScope{
		ProjectType: "E-commerce Store",
		Audience:    "Small retailers",
		Features:    []string{"Payments", "Inventory"},
	}
	if _, err := f.manager.SubmitProjectScope(context.Background(), scope, nil); err != nil {
		t.Fatalf("SubmitProjectScope failed: %v", err)
	}

	sent := f.ai.lastText()
	for _, want := range []string{"E-commerce Store", "Small retailers", "Payments, Inventory", "N/A"} {
		if !strings.Contains(sent, want) {
			t.Errorf("wizard summary missing %q:\n%s", want, sent)
		}
	}
	if strings.Contains(sent, "{projectType}") || strings.Contains(sent, "{extraDetails}") {
		t.Errorf("wizard summary has unreplaced placeholders:\n%s", sent)
	}

	// Submitting the scope retires the wizard placeholder.
	for _, m := range f.manager.State().Messages {
		if m.Component == models.ComponentProjectScopingWizard {
			t.Error("expected wizard placeholder removed after scope submission")
		}
	}
}

func TestStartProjectWizardConsumesSuggestionMessage(t *testing.T) {
	suggestion := i18n.DefineProjectSuggestion.Get(models.LanguageEnglish)
	f := newFixture(t)
	f.ai.reply = "Happy to help! 👉 [" + suggestion + "]"
	f.captureLead(t)
	if _, err := f.manager.SendMessage(context.Background(), "what can you do?", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if _, err := f.manager.StartProjectWizard(); err != nil {
		t.Fatalf("StartProjectWizard failed: %v", err)
	}

	messages := f.manager.State().Messages
	for _, m := range messages {
		if strings.Contains(m.Text, suggestion) {
			t.Errorf("expected suggestion message removed, found %q", m.Text)
		}
	}
	if last := messages[len(messages)-1]; last.Component != models.ComponentProjectScopingWizard {
		t.Errorf("expected wizard placeholder as last message, got %+v", last)
	}
}

func TestRestartClearsSession(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)
	if _, err := f.manager.SendMessage(context.Background(), "hello", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if err := f.manager.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	state := f.manager.State()
	if state.User != nil || len(state.Messages) != 0 || state.IsChatEnded {
		t.Errorf("expected cleared state, got %+v", state)
	}
	saved, err := f.store.GetSession("default")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if saved != nil {
		t.Error("expected persisted snapshot deleted")
	}

	// A new lead can be captured immediately.
	f.captureLead(t)
	if len(f.manager.State().Messages) != 1 {
		t.Error("expected fresh session after restart")
	}
}

func TestRestartDiscardsInFlightReply(t *testing.T) {
	f := newFixture(t)
	f.ai.block = make(chan struct{})
	f.ai.started = make(chan struct{})
	started := f.ai.started
	f.captureLead(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.SendMessage(context.Background(), "slow question", nil, nil)
		errCh <- err
	}()

	<-started
	if err := f.manager.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	close(f.ai.block)

	if err := <-errCh; !errors.Is(err, ErrChatRestarted) {
		t.Errorf("expected ErrChatRestarted, got %v", err)
	}
	if got := len(f.manager.State().Messages); got != 0 {
		t.Errorf("expected stale reply discarded, got %d messages", got)
	}
}

func TestInactivityNudgeFiresWhenUserSpokeLast(t *testing.T) {
	st := store.NewInMemoryStore()
	// A snapshot whose last word belongs to the user, as after a crash
	// mid-reply.
	saved := models.Session{
		Language: models.LanguageEnglish,
		User:     &models.User{Name: "Ada", ContactMethod: models.ContactEmail, ContactInfo: "ada@example.com"},
		Messages: []models.Message{
			{ID: "msg-1", Sender: models.SenderBot, Text: "Hello Ada!"},
			{ID: "msg-2", Sender: models.SenderUser, Text: "I have a question"},
		},
		StartedAt: time.Now(),
	}
	if err := st.SaveSession("default", saved); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	timer := newFakeTimer()
	m := NewManager("default", &mockAI{}, st, &mockDeliverer{}, analytics.NewAggregator(st), timer)
	if timer.pendingCount() == 0 {
		t.Fatal("expected watchdog armed after hydration")
	}

	timer.firePending()
	messages := m.State().Messages
	last := messages[len(messages)-1]
	if last.Sender != models.SenderBot || !strings.Contains(last.Text, "anything else") {
		t.Errorf("expected proactive nudge appended, got %+v", last)
	}
}

func TestInactivityNudgeSuppressedWhenBotSpokeLast(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t) // greeting is the last message

	f.timer.firePending()
	if got := len(f.manager.State().Messages); got != 1 {
		t.Errorf("expected no nudge while bot spoke last, got %d messages", got)
	}
}

func TestInactivityNudgeSuppressedWhileListening(t *testing.T) {
	st := store.NewInMemoryStore()
	saved := models.Session{
		Language: models.LanguageEnglish,
		User:     &models.User{Name: "Ada", ContactMethod: models.ContactEmail, ContactInfo: "ada@example.com"},
		Messages: []models.Message{
			{ID: "msg-1", Sender: models.SenderUser, Text: "hold on"},
		},
		StartedAt: time.Now(),
	}
	if err := st.SaveSession("default", saved); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	timer := newFakeTimer()
	m := NewManager("default", &mockAI{}, st, &mockDeliverer{}, analytics.NewAggregator(st), timer,
		WithListeningProbe(func() bool { return true }))

	timer.firePending()
	if got := len(m.State().Messages); got != 1 {
		t.Errorf("expected no nudge during voice capture, got %d messages", got)
	}
}

func TestInactivityNudgeSuppressedAfterRestart(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)
	if err := f.manager.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	f.timer.firePending()
	if got := len(f.manager.State().Messages); got != 0 {
		t.Errorf("expected no nudge after restart, got %d messages", got)
	}
}

func TestHydrationRestoresSession(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)
	if _, err := f.manager.SendMessage(context.Background(), "I need a mobile app", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	restored := NewManager("default", f.ai, f.store, f.reporter, f.metrics, newFakeTimer())
	state := restored.State()
	if state.User == nil || state.User.Name != "Ada" {
		t.Errorf("expected lead restored, got %+v", state.User)
	}
	if len(state.Messages) != 3 {
		t.Errorf("expected 3 messages restored, got %d", len(state.Messages))
	}

	// The restored session keeps working.
	if _, err := restored.SendMessage(context.Background(), "what about pricing?", nil, nil); err != nil {
		t.Fatalf("SendMessage on restored session failed: %v", err)
	}
}

func TestHydrationOfEndedSession(t *testing.T) {
	f := newFixture(t)
	f.captureLead(t)
	if _, err := f.manager.EndChat(context.Background()); err != nil {
		t.Fatalf("EndChat failed: %v", err)
	}

	timer := newFakeTimer()
	restored := NewManager("default", f.ai, f.store, f.reporter, f.metrics, timer)
	if !restored.State().IsChatEnded {
		t.Error("expected ended flag restored")
	}
	if timer.pendingCount() != 0 {
		t.Error("expected no watchdog for an ended session")
	}
	if _, err := restored.SendMessage(context.Background(), "hi", nil, nil); !errors.Is(err, ErrChatEnded) {
		t.Errorf("expected ErrChatEnded on restored ended session, got %v", err)
	}
}

func TestHydrationExcludesChatStartErrorFromReplay(t *testing.T) {
	st := store.NewInMemoryStore()
	errText := i18n.ChatStartError.Get(models.LanguageEnglish)
	saved := models.Session{
		Language: models.LanguageEnglish,
		User:     &models.User{Name: "Ada", ContactMethod: models.ContactEmail, ContactInfo: "ada@example.com"},
		Messages: []models.Message{
			{ID: "msg-1", Sender: models.SenderBot, Text: "Hello Ada!"},
			{ID: "msg-2", Sender: models.SenderBot, Text: errText},
			{ID: "msg-3", Sender: models.SenderUser, Text: "let's try again"},
		},
		StartedAt: time.Now(),
	}
	if err := st.SaveSession("default", saved); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	ai := &mockAI{}
	m := NewManager("default", ai, st, &mockDeliverer{}, analytics.NewAggregator(st), newFakeTimer())

	// The error notice stays visible in the thread but is not replayed
	// into the fresh AI session.
	if got := len(m.State().Messages); got != 3 {
		t.Fatalf("expected full thread restored, got %d messages", got)
	}
	ai.mu.Lock()
	defer ai.mu.Unlock()
	if len(ai.histories) != 1 {
		t.Fatalf("expected one chat session opened, got %d", len(ai.histories))
	}
	if got := len(ai.histories[0]); got != 2 {
		t.Fatalf("expected 2 replayed turns, got %d", got)
	}
	for _, msg := range ai.histories[0] {
		if msg.Text == errText {
			t.Error("expected chat-start error excluded from replayed history")
		}
	}
}

func TestRecordSuggestionClick(t *testing.T) {
	f := newFixture(t)
	f.manager.RecordSuggestionClick("See pricing")
	f.manager.RecordSuggestionClick("See pricing")

	if got := f.metrics.Snapshot().Suggestions["See pricing"]; got != 2 {
		t.Errorf("expected 2 clicks recorded, got %d", got)
	}
}
