package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds report database connection settings.
// Driver selects "postgres" (default) or "sqlite".
type DatabaseConfig struct {
	Driver             string `yaml:"driver"`
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"-"`
	Name               string `yaml:"name"`
	SSLMode            string `yaml:"sslmode"`
	SQLiteDSN          string `yaml:"sqlite_dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// MinIOConfig holds object storage settings for MinIO.
// PublicBaseURL is the externally reachable origin used to build public object URLs.
type MinIOConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"-"`
	SecretKey     string `yaml:"-"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// AnalysisConfig configures the remote analysis endpoint.
type AnalysisConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PipelineConfig holds ingestion limits and the upload retry policy.
type PipelineConfig struct {
	MaxPages          int           `yaml:"max_pages"`
	WorkDir           string        `yaml:"work_dir"`
	UploadMaxAttempts int           `yaml:"upload_max_attempts"`
	UploadBackoff     time.Duration `yaml:"upload_backoff"`
	RunLockTTL        time.Duration `yaml:"run_lock_ttl"`
}

// RedisConfig enables the cross-instance run guard when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds the shared secret used to verify identity tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"-"`
}

// AppConfig is the centralized configuration struct for the application.
// Values come from an optional YAML file (CONFIG_FILE) and are overridden by environment variables.
// Secrets are only read from the environment.
type AppConfig struct {
	Port     string         `yaml:"port"`
	Timezone string         `yaml:"timezone"`
	Database DatabaseConfig `yaml:"database"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"-"`
}

// Defaults returns the configuration used when neither YAML nor environment provide a value.
func Defaults() *AppConfig {
	return &AppConfig{
		Port:     "8080",
		Timezone: "UTC",
		Database: DatabaseConfig{
			Driver:             "postgres",
			Port:               "5432",
			SSLMode:            "disable",
			SQLiteDSN:          "file:legalease.db?cache=shared&mode=rwc",
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
		},
		MinIO: MinIOConfig{
			Bucket: "pdf-by-user",
		},
		Analysis: AnalysisConfig{
			Timeout: 120 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxPages:          20,
			WorkDir:           os.TempDir(),
			UploadMaxAttempts: 3,
			UploadBackoff:     time.Second,
			RunLockTTL:        10 * time.Minute,
		},
	}
}

// Load reads configuration from the YAML file named by CONFIG_FILE (if any) and environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() (*AppConfig, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadYAML(path string, cfg *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)

	db := &cfg.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnv("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Name = getEnv("DB_NAME", db.Name)
	db.SSLMode = getEnv("DB_SSLMODE", db.SSLMode)
	db.SQLiteDSN = getEnv("SQLITE_DSN", db.SQLiteDSN)
	db.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", db.MaxOpenConns)
	db.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", db.MaxIdleConns)
	db.ConnMaxLifetimeSec = getEnvInt("DB_CONN_MAX_LIFETIME_SEC", db.ConnMaxLifetimeSec)

	m := &cfg.MinIO
	m.Endpoint = getEnv("MINIO_ENDPOINT", m.Endpoint)
	m.AccessKey = getEnv("MINIO_ACCESS_KEY", m.AccessKey)
	m.SecretKey = getEnv("MINIO_SECRET_KEY", m.SecretKey)
	m.Bucket = getEnv("MINIO_BUCKET", m.Bucket)
	m.UseSSL = getEnvBool("MINIO_USE_SSL", m.UseSSL)
	m.PublicBaseURL = getEnv("MINIO_PUBLIC_BASE_URL", m.PublicBaseURL)

	cfg.Analysis.BaseURL = getEnv("ANALYSIS_BASE_URL", cfg.Analysis.BaseURL)
	cfg.Analysis.Timeout = getEnvDuration("ANALYSIS_TIMEOUT", cfg.Analysis.Timeout)

	p := &cfg.Pipeline
	p.MaxPages = getEnvInt("PIPELINE_MAX_PAGES", p.MaxPages)
	p.WorkDir = getEnv("PIPELINE_WORK_DIR", p.WorkDir)
	p.UploadMaxAttempts = getEnvInt("UPLOAD_MAX_ATTEMPTS", p.UploadMaxAttempts)
	p.UploadBackoff = getEnvDuration("UPLOAD_BACKOFF", p.UploadBackoff)
	p.RunLockTTL = getEnvDuration("RUN_LOCK_TTL", p.RunLockTTL)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
