package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/folkode/leadchat/internal/models"
)

// DefaultReListenDelay is the pause between the end of a spoken reply and
// re-arming capture in conversation mode.
const DefaultReListenDelay = 250 * time.Millisecond

// AdapterOpts holds configuration options for the Adapter.
type AdapterOpts struct {
	ReListenDelay time.Duration
}

// AdapterOption defines a configuration option for the Adapter.
type AdapterOption func(*AdapterOpts)

// WithReListenDelay overrides the conversation-mode re-listen pause.
func WithReListenDelay(d time.Duration) AdapterOption {
	return func(o *AdapterOpts) { o.ReListenDelay = d }
}

// Adapter coordinates voice input and output for one deployment.
//
// Capture and playback are mutually exclusive: speaking cancels any
// in-flight synthesis and suspends listening, and in conversation mode
// capture re-arms shortly after a reply finishes.
type Adapter struct {
	recognizer  Recognizer
	synthesizer Synthesizer

	mu               sync.Mutex
	listening        bool
	conversationMode bool
	cancelSpeak      context.CancelFunc
	relistenTimer    *time.Timer
	relistenDelay    time.Duration

	voicesOnce sync.Once
	voices     []Voice
	voicesErr  error
}

// NewAdapter creates a voice adapter over the given providers.
func NewAdapter(recognizer Recognizer, synthesizer Synthesizer, opts ...AdapterOption) *Adapter {
	cfg := AdapterOpts{ReListenDelay: DefaultReListenDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("speech.NewAdapter: created", "relisten_delay", cfg.ReListenDelay)
	return &Adapter{
		recognizer:    recognizer,
		synthesizer:   synthesizer,
		relistenDelay: cfg.ReListenDelay,
	}
}

// IsListening reports whether capture is armed.
func (a *Adapter) IsListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// ConversationMode reports whether hands-free mode is on.
func (a *Adapter) ConversationMode() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversationMode
}

// SetConversationMode switches hands-free mode. Turning it off also
// disarms capture and cancels any pending re-listen.
func (a *Adapter) SetConversationMode(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conversationMode = on
	if !on {
		a.listening = false
		a.stopRelistenLocked()
	}
	slog.Debug("speech.SetConversationMode", "on", on)
}

// ToggleListening flips the capture state and reports the new value.
// Arming capture silences any reply still being spoken.
func (a *Adapter) ToggleListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listening = !a.listening
	if a.listening {
		a.cancelSpeakLocked()
		a.stopRelistenLocked()
	}
	slog.Debug("speech.ToggleListening", "listening", a.listening)
	return a.listening
}

// Listen transcribes one recorded utterance. Capture must be armed.
func (a *Adapter) Listen(ctx context.Context, audio []byte, mimeType string, lang models.Language) (string, error) {
	a.mu.Lock()
	if !a.listening {
		a.mu.Unlock()
		return "", ErrNotListening
	}
	a.mu.Unlock()

	transcript, err := a.recognizer.Transcribe(ctx, audio, mimeType, lang)
	if err != nil {
		slog.Error("speech.Listen: transcription failed", "error", err)
		return "", fmt.Errorf("failed to transcribe utterance: %w", err)
	}

	// One utterance per arm outside conversation mode.
	a.mu.Lock()
	if !a.conversationMode {
		a.listening = false
	}
	a.mu.Unlock()

	slog.Info("speech.Listen: utterance transcribed", "length", len(transcript))
	return transcript, nil
}

// Speak renders reply text as audio in the best voice for the language.
// It cancels any reply still being synthesized and suspends capture; in
// conversation mode, capture re-arms after a short pause.
func (a *Adapter) Speak(ctx context.Context, text string, lang models.Language) ([]byte, error) {
	voices, err := a.voiceCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load voice catalog: %w", err)
	}
	voice, ok := SelectVoice(voices, lang)
	if !ok {
		slog.Warn("speech.Speak: no voice for language", "language", lang)
		return nil, ErrVoiceNotSupported
	}

	a.mu.Lock()
	a.cancelSpeakLocked()
	a.stopRelistenLocked()
	a.listening = false
	speakCtx, cancel := context.WithCancel(ctx)
	a.cancelSpeak = cancel
	a.mu.Unlock()

	audio, err := a.synthesizer.Synthesize(speakCtx, text, voice)

	a.mu.Lock()
	if a.cancelSpeak != nil {
		a.cancelSpeak()
		a.cancelSpeak = nil
	}
	if err == nil && a.conversationMode {
		a.scheduleRelistenLocked()
	}
	a.mu.Unlock()

	if err != nil {
		slog.Error("speech.Speak: synthesis failed", "error", err, "voice", voice.ID)
		return nil, fmt.Errorf("failed to synthesize reply: %w", err)
	}
	slog.Info("speech.Speak: reply synthesized", "voice", voice.ID, "bytes", len(audio))
	return audio, nil
}

// StopSpeaking cancels any in-flight synthesis.
func (a *Adapter) StopSpeaking() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelSpeakLocked()
}

func (a *Adapter) cancelSpeakLocked() {
	if a.cancelSpeak != nil {
		a.cancelSpeak()
		a.cancelSpeak = nil
		slog.Debug("speech: in-flight synthesis cancelled")
	}
}

func (a *Adapter) scheduleRelistenLocked() {
	a.relistenTimer = time.AfterFunc(a.relistenDelay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.conversationMode {
			a.listening = true
			slog.Debug("speech: capture re-armed after reply")
		}
	})
}

func (a *Adapter) stopRelistenLocked() {
	if a.relistenTimer != nil {
		a.relistenTimer.Stop()
		a.relistenTimer = nil
	}
}

func (a *Adapter) voiceCatalog(ctx context.Context) ([]Voice, error) {
	a.voicesOnce.Do(func() {
		a.voices, a.voicesErr = a.synthesizer.Voices(ctx)
	})
	return a.voices, a.voicesErr
}
