package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/folkode/leadchat/internal/analytics"
	"github.com/folkode/leadchat/internal/api"
	"github.com/folkode/leadchat/internal/genai"
	"github.com/folkode/leadchat/internal/lockfile"
	"github.com/folkode/leadchat/internal/messaging"
	"github.com/folkode/leadchat/internal/report"
	"github.com/folkode/leadchat/internal/scheduler"
	"github.com/folkode/leadchat/internal/session"
	"github.com/folkode/leadchat/internal/speech"
	"github.com/folkode/leadchat/internal/store"
	"github.com/folkode/leadchat/internal/twiliowhatsapp"
	"github.com/folkode/leadchat/internal/util"
	"github.com/folkode/leadchat/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadChat state data
	DefaultStateDir = "/var/lib/leadchat"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadchat.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// One instance per state directory
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gaClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	metrics := analytics.NewAggregator(st)

	notifier, notifyTo := buildNotifier(flags, config)
	reporter := buildReporter(flags, notifier, notifyTo)
	voice := buildVoiceAdapter(config)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if notifier != nil && notifyTo != "" {
		if err := sched.ScheduleAnalyticsDigest(*flags.digestCron, metrics, notifier, notifyTo); err != nil {
			slog.Error("Failed to schedule analytics digest", "error", err)
			os.Exit(1)
		}
	}

	server := api.NewServer(st, gaClient, reporter, metrics, voice,
		buildAPIOptions(flags, config)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping LeadChat with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("LeadChat failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadChat exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	DeepgramKey     string
	APIAddr         string
	WebhookURL      string
	OperatorNumber  string
	NotifyChannel   string
	WhatsAppDSN     string
	DigestCron      string
	VoiceEnabled    bool
	InactivityDelay time.Duration
	EndChatDelay    time.Duration
}

// Flags holds command line flag values
type Flags struct {
	qrOutput   *string
	numeric    *bool
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	apiAddr    *string
	webhookURL *string
	digestCron *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("LEADCHAT_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		DeepgramKey:     os.Getenv("DEEPGRAM_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		WebhookURL:      os.Getenv("REPORT_WEBHOOK_URL"),
		OperatorNumber:  os.Getenv("OPERATOR_WHATSAPP_NUMBER"),
		NotifyChannel:   os.Getenv("NOTIFY_CHANNEL"),
		WhatsAppDSN:     os.Getenv("WHATSAPP_DB_DSN"),
		DigestCron:      os.Getenv("DIGEST_SCHEDULE"),
		VoiceEnabled:    util.ParseBoolEnv("VOICE_ENABLED", false),
		InactivityDelay: util.ParseDurationEnv("INACTIVITY_DELAY", session.DefaultInactivityDelay),
		EndChatDelay:    util.ParseDurationEnv("END_CHAT_DELAY", session.DefaultEndChatDelay),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADCHAT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("LEADCHAT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LEADCHAT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"DEEPGRAM_API_KEY_SET", config.DeepgramKey != "",
		"API_ADDR", config.APIAddr,
		"REPORT_WEBHOOK_URL_SET", config.WebhookURL != "",
		"NOTIFY_CHANNEL", config.NotifyChannel,
		"VOICE_ENABLED", config.VoiceEnabled)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:   flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for LeadChat data (overrides $LEADCHAT_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		webhookURL: flag.String("webhook-url", config.WebhookURL, "operator report webhook URL (overrides $REPORT_WEBHOOK_URL)"),
		digestCron: flag.String("digest-cron", config.DigestCron, "cron schedule for the analytics digest (overrides $DIGEST_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"webhookURL_set", *flags.webhookURL != "",
		"digestCron", *flags.digestCron)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore selects the store backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildNotifier wires the operator notification channel. The channel is
// selected by $NOTIFY_CHANNEL: "whatsapp" uses a direct Whatsmeow session,
// "twilio" the Twilio API, anything else disables notifications.
func buildNotifier(flags Flags, config Config) (messaging.Service, string) {
	if config.OperatorNumber == "" {
		slog.Debug("No operator number configured, notifications disabled")
		return nil, ""
	}

	switch config.NotifyChannel {
	case "whatsapp":
		var waOpts []whatsapp.Option
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		if config.WhatsAppDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(config.WhatsAppDSN))
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			slog.Error("Failed to initialize WhatsApp client, notifications disabled", "error", err)
			return nil, ""
		}
		return messaging.NewWhatsAppService(client), config.OperatorNumber
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			slog.Error("Failed to initialize Twilio client, notifications disabled", "error", err)
			return nil, ""
		}
		return messaging.NewTwilioService(client), config.OperatorNumber
	default:
		slog.Debug("No notification channel selected", "NOTIFY_CHANNEL", config.NotifyChannel)
		return nil, ""
	}
}

// buildReporter constructs the report delivery client.
func buildReporter(flags Flags, notifier messaging.Service, notifyTo string) report.Deliverer {
	var reportOpts []report.Option
	if *flags.webhookURL != "" {
		reportOpts = append(reportOpts, report.WithWebhookURL(*flags.webhookURL))
	}
	if notifier != nil && notifyTo != "" {
		reportOpts = append(reportOpts, report.WithNotifier(notifier, notifyTo))
	}
	return report.NewWebhookClient(reportOpts...)
}

// buildVoiceAdapter constructs the speech adapter when voice is enabled.
func buildVoiceAdapter(config Config) *speech.Adapter {
	if !config.VoiceEnabled {
		return nil
	}
	client, err := speech.NewDeepgramClient(speech.WithAPIKey(config.DeepgramKey))
	if err != nil {
		slog.Error("Failed to initialize speech client, voice disabled", "error", err)
		return nil
	}
	return speech.NewAdapter(client, client)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	apiOpts := []api.Option{
		api.WithSessionOptions(
			session.WithInactivityDelay(config.InactivityDelay),
			session.WithEndChatDelay(config.EndChatDelay),
		),
	}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
