package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the insuredmine services.
// Values come from an optional YAML file with environment variable overrides.
// Secrets are only read from the environment.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"5000"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// Timezone is the location weekday/time schedules are interpreted in.
	Timezone string `yaml:"timezone" env:"TIMEZONE" env-default:"Local"`

	Database  DatabaseConfig  `yaml:"database"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL            string        `yaml:"-" env:"DATABASE_URL"` // carries credentials
	MaxConns       int32         `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"16"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DATABASE_CONNECT_TIMEOUT" env-default:"30s"`
	AutoMigrate    bool          `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE" env-default:"true"`
}

// IngestConfig controls file upload handling and parsing.
type IngestConfig struct {
	UploadDir       string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"uploads"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"104857600"`
	Delimiter       string `yaml:"delimiter" env:"INGEST_DELIMITER" env-default:","`
	MaxParseWorkers int64  `yaml:"max_parse_workers" env:"INGEST_MAX_PARSE_WORKERS" env-default:"4"`
}

// SchedulerConfig controls the scheduled message dispatcher.
type SchedulerConfig struct {
	Interval  time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL" env-default:"60s"`
	BatchSize int           `yaml:"batch_size" env:"SCHEDULER_BATCH_SIZE" env-default:"500"`
}

// MonitorConfig controls the CPU load monitor.
type MonitorConfig struct {
	Enabled            bool          `yaml:"enabled" env:"MONITOR_ENABLED" env-default:"true"`
	Threshold          float64       `yaml:"threshold" env:"MONITOR_THRESHOLD" env-default:"70"`
	Interval           time.Duration `yaml:"interval" env:"MONITOR_INTERVAL" env-default:"5s"`
	ShutdownOnOverload bool          `yaml:"shutdown_on_overload" env:"MONITOR_SHUTDOWN_ON_OVERLOAD" env-default:"false"`
	ShutdownGrace      time.Duration `yaml:"shutdown_grace" env:"MONITOR_SHUTDOWN_GRACE" env-default:"10s"`
}

// RedisConfig enables the aggregated report cache when Addr is set.
type RedisConfig struct {
	Addr      string        `yaml:"addr" env:"REDIS_ADDR" env-default:""`
	Password  string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB        int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	ReportTTL time.Duration `yaml:"report_ttl" env:"REDIS_REPORT_TTL" env-default:"5m"`
}

// IsEnabled returns true if a Redis address is configured.
func (c *RedisConfig) IsEnabled() bool {
	return c.Addr != ""
}

// AuthConfig enables bearer token checks on the API when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"-" env:"JWT_SECRET"`
}

// Load reads configuration from path (if it exists) with environment overrides.
// An empty path means environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return cfg, cfg.validate()
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

func (c *Config) validate() error {
	if len([]rune(c.Ingest.Delimiter)) != 1 {
		return fmt.Errorf("config: ingest delimiter must be a single character, got %q", c.Ingest.Delimiter)
	}
	if c.Ingest.MaxParseWorkers <= 0 {
		return fmt.Errorf("config: ingest max_parse_workers must be positive")
	}
	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("config: database connect_timeout must be positive, got %v", c.Database.ConnectTimeout)
	}
	if c.Monitor.Threshold <= 0 || c.Monitor.Threshold > 100 {
		return fmt.Errorf("config: monitor threshold must be in (0, 100], got %v", c.Monitor.Threshold)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
