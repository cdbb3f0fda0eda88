package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Translate TranslateConfig `mapstructure:"translate"`
	Print     PrintConfig     `mapstructure:"print"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port               int      `mapstructure:"port"`
	PublicRatePerHour  int      `mapstructure:"public_rate_per_hour"`
	TranslateRatePerIP int      `mapstructure:"translate_rate_per_ip"`
	WSAllowedOrigins   []string `mapstructure:"ws_allowed_origins"`
	PhotoMaxBytes      int64    `mapstructure:"photo_max_bytes"`
	ClamdAddr          string   `mapstructure:"clamd_addr"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// OAuthConfig 包含 Google OAuth 登录所需的配置。
type OAuthConfig struct {
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	RedirectURL        string `mapstructure:"redirect_url"`
	UIRedirectURL      string `mapstructure:"ui_redirect_url"`
}

// AuthConfig 包含会话令牌签发所需的配置。
type AuthConfig struct {
	PrivateKeyPath  string        `mapstructure:"private_key_path"`
	PublicKeyPath   string        `mapstructure:"public_key_path"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
}

// TranslateConfig 包含翻译网关的配置。
type TranslateConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	SourceLang   string        `mapstructure:"source_lang"`
	FieldTimeout time.Duration `mapstructure:"field_timeout"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// PrintConfig 指向外部打印/渲染服务。
type PrintConfig struct {
	ServiceURL string        `mapstructure:"service_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.public_rate_per_hour", 600)
	v.SetDefault("api.translate_rate_per_ip", 60)
	v.SetDefault("api.photo_max_bytes", 5*1024*1024)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cvhub")
	v.SetDefault("database.user", "cvhub")
	v.SetDefault("database.password", "cvhub")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "cvhub")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 14*24*time.Hour)
	v.SetDefault("translate.endpoint", "https://libretranslate.de/translate")
	v.SetDefault("translate.source_lang", "en")
	v.SetDefault("translate.field_timeout", 10*time.Second)
	v.SetDefault("translate.concurrency", 4)
	v.SetDefault("print.timeout", 60*time.Second)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.public_rate_per_hour":   "API_PUBLIC_RATE_PER_HOUR",
		"api.translate_rate_per_ip":  "API_TRANSLATE_RATE_PER_IP",
		"api.ws_allowed_origins":     "API_WS_ALLOWED_ORIGINS",
		"api.photo_max_bytes":        "API_PHOTO_MAX_BYTES",
		"api.clamd_addr":             "CLAMD_ADDR",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.public_endpoint":      "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.region":               "MINIO_REGION",
		"minio.bucket_lookup":        "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"oauth.google_client_id":     "GOOGLE_CLIENT_ID",
		"oauth.google_client_secret": "GOOGLE_CLIENT_SECRET",
		"oauth.redirect_url":         "OAUTH_REDIRECT_URL",
		"oauth.ui_redirect_url":      "OAUTH_UI_REDIRECT_URL",
		"auth.private_key_path":      "AUTH_PRIVATE_KEY_PATH",
		"auth.public_key_path":       "AUTH_PUBLIC_KEY_PATH",
		"auth.access_token_ttl":      "AUTH_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":     "AUTH_REFRESH_TOKEN_TTL",
		"auth.cookie_domain":         "AUTH_COOKIE_DOMAIN",
		"translate.endpoint":         "TRANSLATE_ENDPOINT",
		"translate.source_lang":      "TRANSLATE_SOURCE_LANG",
		"translate.field_timeout":    "TRANSLATE_FIELD_TIMEOUT",
		"translate.concurrency":      "TRANSLATE_CONCURRENCY",
		"print.service_url":          "PRINT_SERVICE_URL",
		"print.timeout":              "PRINT_TIMEOUT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Translate.Endpoint == "" {
		return errors.New("translate endpoint is required")
	}
	if cfg.Translate.SourceLang == "" {
		return errors.New("translate source lang is required")
	}
	if cfg.Translate.FieldTimeout <= 0 {
		return errors.New("translate field timeout must be positive")
	}
	if cfg.Translate.Concurrency <= 0 {
		return errors.New("translate concurrency must be positive")
	}
	return nil
}
