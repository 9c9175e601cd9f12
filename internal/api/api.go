// Package api provides HTTP handlers and the main API server logic for LeadChat.
//
// It exposes RESTful endpoints for the conversation lifecycle: lead capture,
// streamed chat turns, feedback, the meeting and project-scoping sub-flows,
// voice input/output, and the analytics panel. Sessions are keyed by the
// X-Profile-ID request header.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/folkode/leadchat/internal/analytics"
	"github.com/folkode/leadchat/internal/genai"
	"github.com/folkode/leadchat/internal/report"
	"github.com/folkode/leadchat/internal/session"
	"github.com/folkode/leadchat/internal/speech"
	"github.com/folkode/leadchat/internal/store"
)

// Defaults for the API server.
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// ProfileIDHeader carries the caller's profile key.
	ProfileIDHeader = "X-Profile-ID"
	// DefaultProfileID is used when the header is absent.
	DefaultProfileID = "default"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	SessionOptions []session.Option
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSessionOptions forwards options to every session manager the server
// creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *Opts) { o.SessionOptions = append(o.SessionOptions, opts...) }
}

// Server wires the conversation engine to HTTP.
type Server struct {
	addr        string
	st          store.Store
	gaClient    genai.ClientInterface
	reporter    report.Deliverer
	metrics     *analytics.Aggregator
	voice       *speech.Adapter
	sessionOpts []session.Option

	managersMu sync.Mutex
	managers   map[string]*session.Manager

	httpServer *http.Server
}

// NewServer creates the API server.
func NewServer(st store.Store, gaClient genai.ClientInterface, reporter report.Deliverer, metrics *analytics.Aggregator, voice *speech.Adapter, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("api.NewServer: created", "addr", cfg.Addr, "voice_enabled", voice != nil)
	return &Server{
		addr:        cfg.Addr,
		st:          st,
		gaClient:    gaClient,
		reporter:    reporter,
		metrics:     metrics,
		voice:       voice,
		sessionOpts: cfg.SessionOptions,
		managers:    make(map[string]*session.Manager),
	}
}

// manager returns the session manager for a profile, creating and
// hydrating it on first use.
func (s *Server) manager(profileID string) *session.Manager {
	s.managersMu.Lock()
	defer s.managersMu.Unlock()
	if m, ok := s.managers[profileID]; ok {
		return m
	}
	opts := s.sessionOpts
	if s.voice != nil {
		opts = append(append([]session.Option{}, opts...), session.WithListeningProbe(s.voice.IsListening))
	}
	m := session.NewManager(profileID, s.gaClient, s.st, s.reporter, s.metrics, session.NewSimpleTimer(), opts...)
	s.managers[profileID] = m
	slog.Debug("Server.manager: manager created", "profileID", profileID)
	return m
}

// profileID extracts the caller's profile key from the request.
func profileID(r *http.Request) string {
	if id := r.Header.Get(ProfileIDHeader); id != "" {
		return id
	}
	return DefaultProfileID
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/session", s.sessionHandler)
	mux.HandleFunc("/session/lead", s.leadHandler)
	mux.HandleFunc("/session/messages", s.messagesHandler)
	mux.HandleFunc("/session/messages/", s.messageFeedbackHandler)
	mux.HandleFunc("/session/end", s.endChatHandler)
	mux.HandleFunc("/session/meeting", s.meetingHandler)
	mux.HandleFunc("/session/wizard", s.wizardHandler)
	mux.HandleFunc("/session/wizard/submit", s.wizardSubmitHandler)
	mux.HandleFunc("/session/suggestions/click", s.suggestionClickHandler)
	mux.HandleFunc("/session/restart", s.restartHandler)
	mux.HandleFunc("/voice/toggle", s.voiceToggleHandler)
	mux.HandleFunc("/voice/mode", s.voiceModeHandler)
	mux.HandleFunc("/voice/listen", s.voiceListenHandler)
	mux.HandleFunc("/voice/speak", s.voiceSpeakHandler)
	mux.HandleFunc("/analytics", s.analyticsHandler)
	mux.HandleFunc("/leads", s.leadsHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		s.stopManagers()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) stopManagers() {
	s.managersMu.Lock()
	defer s.managersMu.Unlock()
	for _, m := range s.managers {
		m.Stop()
	}
}
