// Package api provides HTTP handlers for LeadChat endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/folkode/leadchat/internal/i18n"
	"github.com/folkode/leadchat/internal/models"
	"github.com/folkode/leadchat/internal/session"
	"github.com/folkode/leadchat/internal/speech"
	"github.com/folkode/leadchat/internal/suggest"
)

// MaxAudioBytes bounds one uploaded voice utterance.
const MaxAudioBytes = 10 << 20

// messageView decorates a message with its presentation fields: the text
// with suggestion markers stripped and the extracted suggestion labels.
type messageView struct {
	models.Message
	DisplayText string   `json:"displayText,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func newMessageView(m models.Message) messageView {
	view := messageView{Message: m}
	if m.Sender == models.SenderBot && m.Text != "" {
		view.DisplayText = suggest.Strip(m.Text)
		view.Suggestions = suggest.Extract(m.Text)
	}
	return view
}

// sessionView is the GET /session payload.
type sessionView struct {
	session.State
	Views []messageView `json:"messageViews"`
}

// statusForSessionError maps manager errors to HTTP status codes.
func statusForSessionError(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrChatEnded),
		errors.Is(err, session.ErrChatRestarted),
		errors.Is(err, session.ErrLeadAlreadyCaptured),
		errors.Is(err, session.ErrFeedbackAlreadySet):
		return http.StatusConflict
	case errors.Is(err, session.ErrMessageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.st.GetAnalytics(); err != nil {
		slog.Warn("Server.healthHandler: store check failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach store"
		writeJSONResponse(w, http.StatusServiceUnavailable, healthData)
		return
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// sessionHandler returns the session snapshot (GET /session).
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state := s.manager(profileID(r)).State()
	views := make([]messageView, 0, len(state.Messages))
	for _, m := range state.Messages {
		views = append(views, newMessageView(m))
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionView{State: state, Views: views}))
}

// leadRequest is the POST /session/lead body.
type leadRequest struct {
	Language models.Language `json:"language"`
	User     models.User     `json:"user"`
}

// leadHandler captures the visitor's identity and opens the chat
// (POST /session/lead).
func (s *Server) leadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.leadHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.leadHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	greeting, err := s.manager(profileID(r)).CaptureLead(r.Context(), req.Language, req.User)
	if err != nil {
		slog.Warn("Server.leadHandler: lead capture failed", "error", err)
		writeJSONResponse(w, statusForSessionError(err), models.Error(err.Error()))
		return
	}

	slog.Info("Server.leadHandler: lead captured", "name", req.User.Name)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Lead captured successfully", newMessageView(greeting)))
}

// messageRequest is the POST /session/messages body.
type messageRequest struct {
	Text string                 `json:"text"`
	File *models.FileAttachment `json:"file,omitempty"`
}

// messagesHandler runs one conversation turn and streams the reply as
// server-sent events (POST /session/messages).
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.messagesHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messagesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	m := s.manager(profileID(r))
	s.streamTurn(w, r, func(onChunk func(string)) (models.Message, error) {
		return m.SendMessage(r.Context(), req.Text, req.File, onChunk)
	})
}

// streamTurn executes a conversation turn, emitting delta events as chunks
// arrive and a terminal message event with the completed reply. Errors
// raised before the first chunk are returned as plain JSON.
func (s *Server) streamTurn(w http.ResponseWriter, r *http.Request, turn func(onChunk func(string)) (models.Message, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Server.streamTurn: response writer does not support flushing")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming not supported"))
		return
	}

	started := false
	startStream := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	botMsg, err := turn(func(delta string) {
		startStream()
		payload, marshalErr := json.Marshal(map[string]string{"delta": delta})
		if marshalErr != nil {
			slog.Error("Server.streamTurn: failed to marshal delta", "error", marshalErr)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	})

	if err != nil {
		if !started {
			slog.Warn("Server.streamTurn: turn failed", "error", err)
			writeJSONResponse(w, statusForSessionError(err), models.Error(err.Error()))
			return
		}
		slog.Error("Server.streamTurn: turn failed mid-stream", "error", err)
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		flusher.Flush()
		return
	}

	startStream()
	payload, marshalErr := json.Marshal(newMessageView(botMsg))
	if marshalErr != nil {
		slog.Error("Server.streamTurn: failed to marshal final message", "error", marshalErr)
		return
	}
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
	flusher.Flush()
	slog.Debug("Server.streamTurn: turn completed", "messageID", botMsg.ID)
}

// feedbackRequest is the feedback body.
type feedbackRequest struct {
	Feedback models.Feedback `json:"feedback"`
}

// messageFeedbackHandler records a rating on an assistant message
// (POST /session/messages/{id}/feedback).
func (s *Server) messageFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.messageFeedbackHandler: processing request", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/session/messages/")
	segments := strings.Split(path, "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] != "feedback" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown message endpoint"))
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	messageID := segments[0]

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messageFeedbackHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if err := s.manager(profileID(r)).SubmitFeedback(messageID, req.Feedback); err != nil {
		slog.Warn("Server.messageFeedbackHandler: feedback rejected", "error", err, "messageID", messageID)
		writeJSONResponse(w, statusForSessionError(err), models.Error(err.Error()))
		return
	}

	slog.Info("Server.messageFeedbackHandler: feedback recorded", "messageID", messageID, "feedback", req.Feedback)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Feedback recorded successfully", nil))
}

// endChatHandler closes the session and returns the summary message
// (POST /session/end).
func (s *Server) endChatHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.endChatHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	summaryMsg, err := s.manager(profileID(r)).EndChat(r.Context())
	if err != nil {
		slog.Warn("Server.endChatHandler: end chat failed", "error", err)
		writeJSONResponse(w, statusForSessionError(err), models.Error(err.Error()))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Chat ended", newMessageView(summaryMsg)))
}

// meetingHandler consumes the meeting sub-flow result (POST /session/meeting).
func (s *Server) meetingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.meetingHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var details models.MeetingDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		slog.Warn("Server.meetingHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	msg, err := s.manager(profileID(r)).ScheduleMeeting(r.Context(), details)
	if err != nil {
		slog.Warn("Server.meetingHandler: meeting rejected", "error", err)
		writeJSONResponse(w, statusForSessionError(err), models.Error(err.Error()))
		return
	}

	slog.Info("Server.meetingHandler: meeting scheduled", "timeSlot", details.TimeSlot)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Meeting scheduled", newMessageView(msg)))
}

// wizardHandler inserts the project-scoping wizard (POST /session/wizard).
func (s *Server) wizardHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.wizardHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	msg, err := s.manager(profileID(r)).StartProjectWizard()
	if err != nil {
		slog.Warn("Server.wizardHandler: wizard rejected", "error", err)
		writeJSONResponse(w, statusForSessionError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Wizard started", newMessageView(msg)))
}

// wizardSubmitHandler feeds the wizard answers into the conversation and
// streams the reply (POST /session/wizard/submit).
func (s *Server) wizardSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.wizardSubmitHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var scope models.ProjectScope
	if err := json.NewDecoder(r.Body).Decode(&scope); err != nil {
		slog.Warn("Server.wizardSubmitHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	m := s.manager(profileID(r))
	s.streamTurn(w, r, func(onChunk func(string)) (models.Message, error) {
		return m.SubmitProjectScope(r.Context(), scope, onChunk)
	})
}

// suggestionClickRequest is the suggestion click body.
type suggestionClickRequest struct {
	Label string `json:"label"`
}

// suggestionClickHandler counts a tapped suggestion chip
// (POST /session/suggestions/click).
func (s *Server) suggestionClickHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.suggestionClickHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req suggestionClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.suggestionClickHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Label == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: label"))
		return
	}

	s.manager(profileID(r)).RecordSuggestionClick(req.Label)
	writeJSONResponse(w, http.StatusOK, models.Recorded())
}

// restartHandler discards the session (POST /session/restart).
func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.restartHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := s.manager(profileID(r)).Restart(); err != nil {
		slog.Error("Server.restartHandler: restart failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to restart session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session restarted", nil))
}

// voiceUnsupported answers a voice request when no adapter is configured.
func (s *Server) voiceUnsupported(w http.ResponseWriter, r *http.Request) {
	lang := s.manager(profileID(r)).State().Language
	writeJSONResponse(w, http.StatusNotImplemented, models.Error(i18n.VoiceNotSupported.Get(lang)))
}

// voiceToggleHandler flips voice capture (POST /voice/toggle).
func (s *Server) voiceToggleHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.voiceToggleHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.voice == nil {
		s.voiceUnsupported(w, r)
		return
	}

	listening := s.voice.ToggleListening()
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"listening": listening}))
}

// voiceModeRequest is the POST /voice/mode body.
type voiceModeRequest struct {
	Conversation bool `json:"conversation"`
}

// voiceModeHandler switches hands-free conversation mode (POST /voice/mode).
func (s *Server) voiceModeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.voiceModeHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.voice == nil {
		s.voiceUnsupported(w, r)
		return
	}

	var req voiceModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	s.voice.SetConversationMode(req.Conversation)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"conversation": req.Conversation}))
}

// voiceListenHandler transcribes one uploaded utterance and, when a
// transcript was captured, runs it through the conversation turn
// (POST /voice/listen).
func (s *Server) voiceListenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.voiceListenHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.voice == nil {
		s.voiceUnsupported(w, r)
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, MaxAudioBytes))
	if err != nil {
		slog.Warn("Server.voiceListenHandler: failed to read audio", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read audio payload"))
		return
	}

	m := s.manager(profileID(r))
	lang := m.State().Language
	transcript, err := s.voice.Listen(r.Context(), audio, r.Header.Get("Content-Type"), lang)
	if err != nil {
		if errors.Is(err, speech.ErrNotListening) {
			writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
			return
		}
		// Capture errors fail silently toward the visitor.
		slog.Error("Server.voiceListenHandler: transcription failed", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if transcript == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.streamTurn(w, r, func(onChunk func(string)) (models.Message, error) {
		return m.SendMessage(r.Context(), transcript, nil, onChunk)
	})
}

// voiceSpeakRequest is the POST /voice/speak body.
type voiceSpeakRequest struct {
	Text string `json:"text"`
}

// voiceSpeakHandler synthesizes reply text as audio (POST /voice/speak).
func (s *Server) voiceSpeakHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.voiceSpeakHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.voice == nil {
		s.voiceUnsupported(w, r)
		return
	}

	var req voiceSpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Text == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: text"))
		return
	}

	lang := s.manager(profileID(r)).State().Language
	audio, err := s.voice.Speak(r.Context(), suggest.Strip(req.Text), lang)
	if err != nil {
		if errors.Is(err, speech.ErrVoiceNotSupported) {
			writeJSONResponse(w, http.StatusNotImplemented, models.Error(i18n.VoiceNotSupported.Get(lang)))
			return
		}
		slog.Error("Server.voiceSpeakHandler: synthesis failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to synthesize speech"))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		slog.Error("Server.voiceSpeakHandler: failed to write audio", "error", err)
	}
}

// analyticsHandler returns the aggregated analytics snapshot
// (GET /analytics).
func (s *Server) analyticsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.analyticsHandler: processing request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.metrics.Snapshot()))
}

// leadsHandler returns all captured leads (GET /leads).
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.leadsHandler: processing request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	leads, err := s.st.GetLeads()
	if err != nil {
		slog.Error("Server.leadsHandler: failed to fetch leads", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch leads"))
		return
	}
	slog.Debug("Server.leadsHandler: leads fetched", "count", len(leads))
	writeJSONResponse(w, http.StatusOK, models.Success(leads))
}
