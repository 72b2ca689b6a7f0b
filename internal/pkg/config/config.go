package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Grid      GridConfig      `mapstructure:"grid"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Export    ExportConfig    `mapstructure:"export"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

// DatabaseConfig is optional: an empty host keeps sessions in memory.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// NATSConfig: an empty URL disables event publishing and the WebSocket relay.
type NATSConfig struct {
	URL string `mapstructure:"url"`
	// ArchiveDurable names the consumer that archives CSV exports on stats.attached.
	ArchiveDurable string `mapstructure:"archive_durable"`
}

// ValkeyConfig: an empty address disables the extraction cache.
type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// StatsConfig points at the raster statistics service.
type StatsConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// GridConfig bounds the spacing accepted from clients, in meters.
type GridConfig struct {
	DefaultSpacing  float64 `mapstructure:"default_spacing"`
	FallbackSpacing float64 `mapstructure:"fallback_spacing"`
	MinSpacing      float64 `mapstructure:"min_spacing"`
	MaxSpacing      float64 `mapstructure:"max_spacing"`
	MaxPoints       int     `mapstructure:"max_points"`
}

type SessionsConfig struct {
	IdleTTLMinutes int    `mapstructure:"idle_ttl_minutes"`
	PurgeSchedule  string `mapstructure:"purge_schedule"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// ExportConfig: an empty bucket disables archiving.
type ExportConfig struct {
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geosampler")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geosampler")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.archive_durable", "export-archiver")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "geosampler:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("stats.base_url", "http://localhost:5000")
	v.SetDefault("stats.timeout_seconds", 120)
	v.SetDefault("stats.cache_ttl_seconds", 3600)
	v.SetDefault("grid.default_spacing", 100)
	v.SetDefault("grid.fallback_spacing", 50)
	v.SetDefault("grid.min_spacing", 10)
	v.SetDefault("grid.max_spacing", 5000)
	v.SetDefault("grid.max_points", 20000)
	v.SetDefault("sessions.idle_ttl_minutes", 24*60)
	v.SetDefault("sessions.purge_schedule", "@every 15m")
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geosampler-extraction")
	v.SetDefault("export.s3_bucket", "")
	v.SetDefault("export.s3_prefix", "exports/")
	v.SetDefault("export.s3_region", "")
	v.SetDefault("export.s3_endpoint", "")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOSAMPLER_STATS_BASE_URL → stats.base_url
	v.SetEnvPrefix("GEOSAMPLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled() {
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.Stats.BaseURL == "" {
		errs = append(errs, "stats.base_url is required")
	}
	if c.Stats.TimeoutSeconds <= 0 {
		errs = append(errs, "stats.timeout_seconds must be positive")
	}
	if c.Grid.MinSpacing <= 0 {
		errs = append(errs, "grid.min_spacing must be positive")
	}
	if c.Grid.MaxSpacing < c.Grid.MinSpacing {
		errs = append(errs, fmt.Sprintf("grid.max_spacing (%v) must not be below grid.min_spacing (%v)",
			c.Grid.MaxSpacing, c.Grid.MinSpacing))
	}
	if c.Grid.DefaultSpacing < c.Grid.MinSpacing || c.Grid.DefaultSpacing > c.Grid.MaxSpacing {
		errs = append(errs, fmt.Sprintf("grid.default_spacing must be within %v-%v, got %v",
			c.Grid.MinSpacing, c.Grid.MaxSpacing, c.Grid.DefaultSpacing))
	}
	if c.Grid.FallbackSpacing < 0 {
		errs = append(errs, "grid.fallback_spacing must not be negative")
	}
	if c.Grid.MaxPoints < 0 {
		errs = append(errs, "grid.max_points must not be negative")
	}
	if c.Sessions.IdleTTLMinutes < 0 {
		errs = append(errs, "sessions.idle_ttl_minutes must not be negative")
	}
	if c.Temporal.Enabled && c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required when temporal is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
