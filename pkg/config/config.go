package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration shared by the API server,
// the migration runner and the crmsync tool.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Sync        SyncConfig        `yaml:"sync"`
	Reports     ReportsConfig     `yaml:"reports"`
	Lock        LockConfig        `yaml:"lock"`
	Auth        AuthConfig        `yaml:"auth"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// EnvironmentConfig holds the environment flag and the candidate connection strings.
// Connection strings normally come from the process environment, not the YAML file.
type EnvironmentConfig struct {
	Mode           string `yaml:"mode" env:"APP_ENV"`
	DatabaseURL    string `yaml:"database_url" env:"DATABASE_URL"`
	ProductionURL  string `yaml:"production_url" env:"PROD_DATABASE_URL"`
	DevelopmentURL string `yaml:"development_url" env:"DEV_DATABASE_URL"`
	MaxOpenConns   int    `yaml:"max_open_conns" default:"10" env:"DB_MAX_OPEN_CONNS" validate:"min=1"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0" env:"SERVER_HOST"`
	Port            int           `yaml:"port" default:"8080" env:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"5m"`
}

// SyncConfig contains settings for comparison and reconciliation runs
type SyncConfig struct {
	MaxRetries     int           `yaml:"max_retries" default:"3" env:"SYNC_MAX_RETRIES" validate:"min=1,max=20"`
	RetryDelay     time.Duration `yaml:"retry_delay" default:"2s" env:"SYNC_RETRY_DELAY"`
	ReportDir      string        `yaml:"report_dir" default:"sync-reports" env:"SYNC_REPORT_DIR" validate:"required"`
	CriticalTables []string      `yaml:"critical_tables" default:"[\"customers\",\"customer_notes\",\"customer_files\"]"`

	// PreserveKeys copies production primary keys into development instead of letting
	// development renumber them.
	PreserveKeys bool `yaml:"preserve_primary_keys" env:"SYNC_PRESERVE_PRIMARY_KEYS"`
}

// ReportsConfig configures where sync reports are persisted besides the local report directory
type ReportsConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures an optional S3-compatible bucket for report uploads.
// Uploads are disabled while Bucket is empty.
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"REPORTS_S3_BUCKET"`
	Region          string `yaml:"region" default:"auto" env:"REPORTS_S3_REGION"`
	Endpoint        string `yaml:"endpoint" env:"REPORTS_S3_ENDPOINT" validate:"omitempty,url"`
	Prefix          string `yaml:"prefix" default:"sync-reports/" env:"REPORTS_S3_PREFIX"`
	AccessKeyID     string `yaml:"access_key_id" env:"REPORTS_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"REPORTS_S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" default:"true"`
}

// Enabled reports whether S3 uploads are configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// LockConfig configures the optional redis run lock
type LockConfig struct {
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl" default:"15m"`
}

// AuthConfig contains JWT settings for the authenticated HTTP surface
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string        `yaml:"issuer" default:"crm-backend"`
	TokenTTL  time.Duration `yaml:"token_ttl" default:"12h"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled        bool   `yaml:"enabled" default:"true"`
	PushGatewayURL string `yaml:"push_gateway_url" env:"PUSHGATEWAY_URL" validate:"omitempty,url"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" env:"LOG_FORMAT" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// Load loads configuration from an optional YAML file and the process environment.
//
// Precedence, lowest first: struct defaults, YAML file, environment variables.
// A .env file in the working directory is loaded unless APP_ENV is production.
func Load(configPath string) (*Config, error) {
	if !isProductionMode(os.Getenv("APP_ENV")) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	for _, table := range cfg.Sync.CriticalTables {
		if strings.TrimSpace(table) == "" {
			return fmt.Errorf("sync.critical_tables contains an empty name")
		}
	}
	return nil
}

func isProductionMode(mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}
