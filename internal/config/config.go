package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrInvalidStorage is returned by Validate for an unknown storage backend.
var ErrInvalidStorage = errors.New("invalid storage backend")

// Config holds all configuration for the application
type Config struct {
	Env string

	// Storage settings
	Storage          string
	DBPath           string
	ConnectionString string
	AccountName      string
	TableName        string
	// Reset deletes the SQLite database before an ingestion run.
	Reset bool

	// Server settings
	ServerHost string
	ServerPort int
	AdminToken string

	// Ingestion settings
	Schedule        string
	RetentionDays   int
	ImageLookupCap  int
	ResultsPerQuery int
	QueriesCSVPath  string

	// Vendor settings
	SerperAPIKey    string
	SerperBaseURL   string
	SerperRPS       int
	AnthropicAPIKey string
	LLMModel        string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		Env:             DefaultEnv,
		Storage:         DefaultStorage,
		DBPath:          DefaultDBPath,
		TableName:       DefaultTableName,
		ServerHost:      DefaultServerHost,
		ServerPort:      DefaultServerPort,
		Schedule:        DefaultSchedule,
		RetentionDays:   DefaultRetentionDays,
		ImageLookupCap:  DefaultImageLookupCap,
		ResultsPerQuery: DefaultResultsPerQuery,
		SerperBaseURL:   DefaultSerperBaseURL,
		SerperRPS:       DefaultSerperRPS,
		LLMModel:        DefaultLLMModel,
		LogLevel:        logLevel,
	}
}

// FromEnv returns DefaultConfig overridden by the process environment.
// Secrets are only ever read from the environment.
func FromEnv() *Config {
	cfg := DefaultConfig()

	cfg.Env = GetEnvString("AGGREGATOR_ENV", cfg.Env)
	defaultLevel := cfg.LogLevel
	if cfg.IsProduction() {
		defaultLevel = zerolog.InfoLevel
	}
	cfg.LogLevel = GetEnvLogLevel("AGGREGATOR_LOG_LEVEL", defaultLevel)

	cfg.Storage = GetEnvString("AGGREGATOR_STORAGE", cfg.Storage)
	cfg.DBPath = GetEnvString("AGGREGATOR_DB_PATH", cfg.DBPath)
	cfg.ConnectionString = GetEnvString("AZURE_STORAGE_CONNECTION_STRING", "")
	cfg.AccountName = GetEnvString("AZURE_STORAGE_ACCOUNT_NAME", "")
	cfg.TableName = GetEnvString("AGGREGATOR_TABLE_NAME", cfg.TableName)
	cfg.Reset = GetEnvBool("AGGREGATOR_RESET", false)

	cfg.ServerHost = GetEnvString("AGGREGATOR_HOST", cfg.ServerHost)
	cfg.ServerPort = GetEnvInt("AGGREGATOR_PORT", cfg.ServerPort)
	cfg.AdminToken = GetEnvString("AGGREGATOR_ADMIN_TOKEN", "")

	cfg.Schedule = GetEnvString("AGGREGATOR_SCHEDULE", cfg.Schedule)
	cfg.RetentionDays = GetEnvInt("AGGREGATOR_RETENTION_DAYS", cfg.RetentionDays)
	cfg.ImageLookupCap = GetEnvInt("AGGREGATOR_IMAGE_LOOKUP_CAP", cfg.ImageLookupCap)
	cfg.ResultsPerQuery = GetEnvInt("AGGREGATOR_RESULTS_PER_QUERY", cfg.ResultsPerQuery)
	cfg.QueriesCSVPath = GetEnvString("AGGREGATOR_QUERIES_CSV", "")

	cfg.SerperAPIKey = GetEnvString("SERPER_API_KEY", "")
	cfg.SerperBaseURL = GetEnvString("SERPER_BASE_URL", cfg.SerperBaseURL)
	cfg.SerperRPS = GetEnvInt("AGGREGATOR_SERPER_RPS", cfg.SerperRPS)
	cfg.AnthropicAPIKey = GetEnvString("ANTHROPIC_API_KEY", "")
	cfg.LLMModel = GetEnvString("AGGREGATOR_LLM_MODEL", cfg.LLMModel)

	return cfg
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage) {
	case StorageSQLite:
		if c.DBPath == "" {
			return errors.New("sqlite storage needs a database path")
		}
	case StorageAzure:
		if c.ConnectionString == "" && c.AccountName == "" {
			return errors.New("azure storage needs AZURE_STORAGE_CONNECTION_STRING or AZURE_STORAGE_ACCOUNT_NAME")
		}
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidStorage, c.Storage, StorageSQLite, StorageAzure)
	}

	if c.RetentionDays < 1 {
		return fmt.Errorf("retention days must be at least 1, got %d", c.RetentionDays)
	}
	if c.Reset && !strings.EqualFold(c.Storage, StorageSQLite) {
		return errors.New("reset is only supported for sqlite storage")
	}
	if c.ImageLookupCap < 0 {
		return fmt.Errorf("image lookup cap must not be negative, got %d", c.ImageLookupCap)
	}
	return nil
}

// ReadOnlyServer reports whether the API server can open SQLite read-only.
// Without an admin token FetchNow and SweepNow always refuse, so nothing
// the server does writes.
func (c *Config) ReadOnlyServer() bool {
	return strings.EqualFold(c.Storage, StorageSQLite) && c.AdminToken == ""
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
