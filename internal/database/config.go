package database

import "time"

const (
	defaultMaxIdleConns    = 4
	defaultMaxOpenConns    = 4
	defaultConnMaxLifetime = time.Hour
)

// Config holds database connection settings.
type Config struct {
	DBPath string

	// Zero values fall back to defaults.
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	CacheSizeKB     int
	BusyTimeoutMS   int
	ReadOnly        bool
}

// NewReadOnlyConfig returns a configuration that opens dbPath read-only.
// The file must already exist.
func NewReadOnlyConfig(dbPath string) *Config {
	cfg := NewConfig(dbPath)
	cfg.ReadOnly = true
	return cfg
}

// NewConfig returns a read-write configuration for dbPath.
func NewConfig(dbPath string) *Config {
	return &Config{
		DBPath:          dbPath,
		ConnMaxLifetime: defaultConnMaxLifetime,
		CacheSizeKB:     -16000, // 16MB
		BusyTimeoutMS:   5000,
	}
}
