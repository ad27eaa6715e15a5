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

	"github.com/BTreeMap/MoodPipe/internal/analyzer"
	"github.com/BTreeMap/MoodPipe/internal/api"
	"github.com/BTreeMap/MoodPipe/internal/genai"
	"github.com/BTreeMap/MoodPipe/internal/lockfile"
	"github.com/BTreeMap/MoodPipe/internal/notify"
	"github.com/BTreeMap/MoodPipe/internal/pipeline"
	"github.com/BTreeMap/MoodPipe/internal/script"
	"github.com/BTreeMap/MoodPipe/internal/tts"
	"github.com/BTreeMap/MoodPipe/internal/voicecache"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for MoodPipe state data
	DefaultStateDir = "/var/lib/moodpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "moodpipe.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// A second instance sharing the SQLite state directory would corrupt the
	// voice cache, so take an exclusive lock before opening anything.
	if voicecache.DetectDSNType(*flags.dbDSN) != "postgres" {
		lock, err := lockfile.Acquire(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	genaiClient, err := buildGenAIClient(flags)
	if err != nil {
		slog.Error("MoodPipe requires an OpenAI API key for emotion analysis", "error", err)
		os.Exit(1)
	}

	store := buildStore(flags)
	defer store.Close()

	orchestrator := pipeline.New(pipeline.Deps{
		Analyzer: analyzer.New(genaiClient),
		Scripts:  script.New(genaiClient),
		Synth:    tts.NewPollySynthesizer(tts.ConfigFromEnv()),
		Store:    store,
		Notifier: buildNotifier(),
	})

	server := api.NewServer(orchestrator, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping MoodPipe with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("MoodPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("MoodPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	apiAddr   *string
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
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("MOODPIPE_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MOODPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MOODPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for MoodPipe data (overrides $MOODPIPE_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the voice cache (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

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

// buildGenAIClient constructs the shared OpenAI-backed client.
func buildGenAIClient(flags Flags) (*genai.Client, error) {
	if *flags.openaiKey != "" {
		return genai.NewClientWithKey(*flags.openaiKey), nil
	}
	return genai.NewClient()
}

// buildStoreOptions constructs voice cache configuration options
func buildStoreOptions(flags Flags) []voicecache.Option {
	var storeOpts []voicecache.Option
	if *flags.dbDSN != "" {
		if voicecache.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, voicecache.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, voicecache.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildStore opens the voice cache and wraps it in the in-memory fallback so
// a broken database never blocks interventions.
func buildStore(flags Flags) voicecache.Store {
	primary, err := voicecache.New(buildStoreOptions(flags)...)
	if err != nil {
		slog.Warn("Voice cache backend unavailable, starting on in-memory fallback", "error", err)
		return voicecache.NewResilient(nil)
	}
	return voicecache.NewResilient(primary)
}

// buildNotifier constructs the optional crisis SMS notifier. Missing Twilio
// credentials disable escalation rather than failing startup.
func buildNotifier() notify.Notifier {
	client, err := notify.NewClient()
	if err != nil {
		slog.Info("Crisis SMS escalation disabled", "reason", err)
		return nil
	}
	slog.Info("Crisis SMS escalation enabled")
	return client
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
