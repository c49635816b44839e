package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/api"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/lang"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/lockfile"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/messaging"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/metacloud"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/relay"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/store"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/translate"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/twiliowhatsapp"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/util"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for relay state data
	DefaultStateDir = "/var/lib/translationbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "translationbot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// A second instance sharing the state directory would race the dedup
	// store and could double-reply.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping translation relay with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir,
		"dsn_set", *flags.dbDSN != "",
		"backend", *flags.backend,
		"provider", *flags.provider,
		"api_addr", *flags.apiAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("Translation relay failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("Translation relay exited successfully")
}

// run wires storage, translation, transport, and the API server together.
func run(ctx context.Context, flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	translator, err := translate.New(ctx, buildTranslateOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to initialize translator: %w", err)
	}

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging backend: %w", err)
	}

	targets := lang.DefaultTargets
	if *flags.targetLangs != "" {
		targets, err = lang.ParseTargets(*flags.targetLangs)
		if err != nil {
			return fmt.Errorf("invalid target languages: %w", err)
		}
	}
	slog.Info("Relay target languages configured", "targets", targets)

	relayOpts := []relay.Option{relay.WithTargets(targets)}
	if attempts := util.ParseIntEnv("RELAY_ATTEMPTS", relay.DefaultAttempts); attempts != relay.DefaultAttempts {
		relayOpts = append(relayOpts, relay.WithAttempts(attempts))
	}
	if timeout := util.ParseDurationEnv("RELAY_CALL_TIMEOUT", relay.DefaultCallTimeout); timeout != relay.DefaultCallTimeout {
		relayOpts = append(relayOpts, relay.WithCallTimeout(timeout))
	}
	orchestrator := relay.NewOrchestrator(translator, msgService, st, relayOpts...)

	server := api.NewServer(msgService, orchestrator, st, buildAPIOptions(flags)...)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	Provider      string
	GoogleKey     string
	LibreURL      string
	OpenAIKey     string
	TargetLangs   string
	Backend       string
	VerifyToken   string
	AccessToken   string
	PhoneNumberID string
	APIAddr       string
	SweepSchedule string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	provider      *string
	googleKey     *string
	libreURL      *string
	openaiKey     *string
	targetLangs   *string
	backend       *string
	verifyToken   *string
	accessToken   *string
	phoneNumberID *string
	apiAddr       *string
	sweepSchedule *string
}

// initializeLogger sets up structured logging. LOG_DEBUG=false drops the
// level to info for quieter production deployments.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("LOG_DEBUG", true) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("TRANSLATIONBOT_STATE_DIR"),
		Provider:      os.Getenv("TRANSLATE_PROVIDER"),
		GoogleKey:     os.Getenv("GOOGLE_API_KEY"),
		LibreURL:      os.Getenv("LIBRETRANSLATE_URL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		TargetLangs:   os.Getenv("TARGET_LANGUAGES"),
		Backend:       os.Getenv("MESSAGING_BACKEND"),
		VerifyToken:   os.Getenv("VERIFY_TOKEN"),
		AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		APIAddr:       os.Getenv("API_ADDR"),
		SweepSchedule: os.Getenv("SWEEP_SCHEDULE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TRANSLATIONBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"TRANSLATIONBOT_STATE_DIR", config.StateDir,
		"TRANSLATE_PROVIDER", config.Provider,
		"GOOGLE_API_KEY_SET", config.GoogleKey != "",
		"LIBRETRANSLATE_URL_SET", config.LibreURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TARGET_LANGUAGES", config.TargetLangs,
		"MESSAGING_BACKEND", config.Backend,
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"WHATSAPP_ACCESS_TOKEN_SET", config.AccessToken != "",
		"WHATSAPP_PHONE_NUMBER_ID_SET", config.PhoneNumberID != "",
		"API_ADDR", config.APIAddr,
		"SWEEP_SCHEDULE", config.SweepSchedule)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code (whatsmeow backend)"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code (whatsmeow backend)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for relay data (overrides $TRANSLATIONBOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the relay store (overrides $DATABASE_URL)"),
		provider:      flag.String("translate-provider", config.Provider, "translation provider: google, libre, or openai (overrides $TRANSLATE_PROVIDER)"),
		googleKey:     flag.String("google-api-key", config.GoogleKey, "Google Cloud Translation API key (overrides $GOOGLE_API_KEY)"),
		libreURL:      flag.String("libretranslate-url", config.LibreURL, "LibreTranslate endpoint URL (overrides $LIBRETRANSLATE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		targetLangs:   flag.String("target-languages", config.TargetLangs, "comma-separated default target language codes (overrides $TARGET_LANGUAGES)"),
		backend:       flag.String("messaging-backend", config.Backend, "messaging backend: whatsmeow, cloud, or twilio (overrides $MESSAGING_BACKEND)"),
		verifyToken:   flag.String("verify-token", config.VerifyToken, "Meta webhook verification token (overrides $VERIFY_TOKEN)"),
		accessToken:   flag.String("access-token", config.AccessToken, "Meta Cloud API access token (overrides $WHATSAPP_ACCESS_TOKEN)"),
		phoneNumberID: flag.String("phone-number-id", config.PhoneNumberID, "Meta Cloud API phone number id (overrides $WHATSAPP_PHONE_NUMBER_ID)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepSchedule: flag.String("sweep-schedule", config.SweepSchedule, "cron expression for the dedup sweep (overrides $SWEEP_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"provider", *flags.provider,
		"backend", *flags.backend,
		"apiAddr", *flags.apiAddr)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	return nil
}

// buildStore constructs the relay store from the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildTranslateOptions constructs translation provider options.
func buildTranslateOptions(flags Flags) []translate.Option {
	var opts []translate.Option
	switch *flags.provider {
	case translate.ProviderLibre:
		opts = append(opts, translate.WithProvider(translate.ProviderLibre))
		if *flags.libreURL != "" {
			opts = append(opts, translate.WithEndpoint(*flags.libreURL))
		}
	case translate.ProviderOpenAI:
		opts = append(opts, translate.WithProvider(translate.ProviderOpenAI))
		if *flags.openaiKey != "" {
			opts = append(opts, translate.WithAPIKey(*flags.openaiKey))
		}
	default:
		opts = append(opts, translate.WithProvider(translate.ProviderGoogle))
		if *flags.googleKey != "" {
			opts = append(opts, translate.WithAPIKey(*flags.googleKey))
		}
	}
	return opts
}

// buildMessagingService constructs the configured messaging backend.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.backend {
	case "cloud":
		client, err := metacloud.NewClient(
			metacloud.WithAccessToken(*flags.accessToken),
			metacloud.WithPhoneNumberID(*flags.phoneNumberID),
		)
		if err != nil {
			return nil, err
		}
		slog.Info("Using Meta Cloud API messaging backend")
		return messaging.NewCloudService(client), nil

	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		slog.Info("Using Twilio messaging backend")
		return messaging.NewTwilioService(client), nil

	default:
		waOpts := buildWhatsAppOptions(flags)
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		slog.Info("Using whatsmeow messaging backend")
		return messaging.NewWhatsAppService(client), nil
	}
}

// buildWhatsAppOptions constructs WhatsApp client configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	// The whatsmeow session shares the state directory with the relay store.
	waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	if *flags.sweepSchedule != "" {
		apiOpts = append(apiOpts, api.WithSweepSchedule(*flags.sweepSchedule))
	}
	if ttl := util.ParseDurationEnv("DEDUP_TTL", api.DefaultDedupTTL); ttl != api.DefaultDedupTTL {
		apiOpts = append(apiOpts, api.WithDedupTTL(ttl))
	}
	return apiOpts
}
