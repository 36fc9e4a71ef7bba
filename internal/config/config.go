package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache"      validate:"required"`
	Allocation AllocationConfig `mapstructure:"allocation" validate:"required"`
}

// ServerConfig contains all HTTP-server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// CacheConfig contains settings for the external key-value cache and the
// circuit breaker guarding it. A missing URL is a fatal startup error: the
// cache layer itself is fail-open at runtime, but we refuse to boot into a
// silently cacheless configuration.
type CacheConfig struct {
	URL                    string `mapstructure:"url"                      validate:"required"`
	OpTimeoutMs            int    `mapstructure:"op_timeout_ms"            validate:"required,gt=0"`
	DefaultTTLSeconds      int    `mapstructure:"default_ttl_seconds"      validate:"required,gt=0"`
	BreakerFailures        int    `mapstructure:"breaker_failures"         validate:"required,gt=0"`
	BreakerRecoverySeconds int    `mapstructure:"breaker_recovery_seconds" validate:"required,gt=0"`
}

// AllocationConfig contains the tunables of the allocation engine.
type AllocationConfig struct {
	MaxTasksPerWorker int     `mapstructure:"max_tasks_per_worker" validate:"required,gt=0"`
	MaxRadiusKm       float64 `mapstructure:"max_radius_km"        validate:"required,gt=0"`
	CellSizeDegrees   float64 `mapstructure:"cell_size_degrees"    validate:"required,gt=0"`
	DefaultBatchSize  int     `mapstructure:"default_batch_size"   validate:"required,gt=0"`
}
