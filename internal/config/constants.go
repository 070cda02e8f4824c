package config

// Constants defining default values for application configuration
const (
	DefaultEnv = EnvDevelopment

	DefaultDBPath    = "./layofflens.db"
	DefaultStorage   = StorageSQLite
	DefaultTableName = "layoffitems"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultSchedule        = "0 6 * * *" // Daily at 06:00
	DefaultRetentionDays   = 90
	DefaultImageLookupCap  = 8
	DefaultResultsPerQuery = 10

	DefaultSerperBaseURL = "https://google.serper.dev"
	DefaultSerperRPS     = 5
	DefaultLLMModel      = "claude-3-5-haiku-latest"

	DefaultLogLevel = "debug"
)

// Runtime environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageAzure  = "azure"
)
