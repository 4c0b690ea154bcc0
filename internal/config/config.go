package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Pool    PoolConfig    `mapstructure:"pool" validate:"required"`
	Limits  LimitsConfig  `mapstructure:"limits" validate:"required"`
	Monitor MonitorConfig `mapstructure:"monitor"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeoutSeconds bounds how long HTTP shutdown and pool draining may take.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// PoolConfig contains the worker pool settings.
type PoolConfig struct {
	// WorkerCount is the number of workers. Zero means GOMAXPROCS-1, minimum one.
	WorkerCount int `mapstructure:"worker_count" validate:"gte=0,lte=1024"`
	// MaxQueueSize is the default admission bound applied when a submission
	// does not carry its own.
	MaxQueueSize int `mapstructure:"max_queue_size" validate:"required,gt=0"`
}

// LimitsConfig configures rate limiting of task submissions at the HTTP edge.
type LimitsConfig struct {
	SubmitRPS   float64 `mapstructure:"submit_rps" validate:"gt=0"`
	SubmitBurst int     `mapstructure:"submit_burst" validate:"gt=0"`
}

// MonitorConfig configures the periodic pool health report.
type MonitorConfig struct {
	// StatsSchedule is a cron expression (or descriptor such as "@every 1m").
	// Empty disables the report.
	StatsSchedule string `mapstructure:"stats_schedule"`
	// LongTaskThresholdSeconds flags tasks held by a worker for longer than
	// this in the report.
	LongTaskThresholdSeconds int `mapstructure:"long_task_threshold_seconds" validate:"gte=1"`
}
