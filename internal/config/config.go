package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	AI       AIConfig       `mapstructure:"ai"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Features FeatureFlags   `mapstructure:"features"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig contains the PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig contains session token settings.
type AuthConfig struct {
	Secret  string `mapstructure:"secret"`
	BaseURL string `mapstructure:"base_url"`
}

// RedisConfig contains the Redis address shared by the task queue,
// pubsub notifications and rate counters.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// AIConfig identifies the model used by the analysis worker.
type AIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Provider string `mapstructure:"provider"`
}

// OAuthConfig carries optional provider credentials.
type OAuthConfig struct {
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GitHubClientID     string `mapstructure:"github_client_id"`
	GitHubClientSecret string `mapstructure:"github_client_secret"`
}

// StripeConfig carries optional billing keys.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// FeatureFlags toggles optional product features.
type FeatureFlags struct {
	CoverLetter bool `mapstructure:"cover_letter"`
	JobMatch    bool `mapstructure:"job_match"`
	ATSScore    bool `mapstructure:"ats_score"`
}

// ClamdConfig points at an optional clamd instance for upload scanning.
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// FieldError describes one violated configuration field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError aggregates every violated field so startup can report
// them all at once, one line per field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return "invalid environment: " + strings.Join(lines, "; ")
}

var (
	loadOnce sync.Once
	cached   *Config
	loadErr  error
)

// Get returns the process-wide configuration. The environment is read and
// validated exactly once; later calls return the cached structure and never
// observe environment changes.
func Get() (*Config, error) {
	loadOnce.Do(func() {
		cached, loadErr = load()
	})
	return cached, loadErr
}

// MustGet wraps Get and panics on failure.
func MustGet() *Config {
	cfg, err := Get()
	if err != nil {
		panic(err)
	}
	return cfg
}

func load() (*Config, error) {
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resumes")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("features.cover_letter", false)
	v.SetDefault("features.job_match", false)
	v.SetDefault("features.ats_score", true)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"database.url":               "DATABASE_URL",
		"auth.secret":                "NEXTAUTH_SECRET",
		"auth.base_url":              "NEXTAUTH_URL",
		"redis.addr":                 "REDIS_ADDR",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.bucket":               "MINIO_BUCKET",
		"ai.api_key":                 "GEMINI_API_KEY",
		"ai.model":                   "AI_MODEL",
		"ai.provider":                "AI_PROVIDER",
		"oauth.google_client_id":     "GOOGLE_CLIENT_ID",
		"oauth.google_client_secret": "GOOGLE_CLIENT_SECRET",
		"oauth.github_client_id":     "GITHUB_CLIENT_ID",
		"oauth.github_client_secret": "GITHUB_CLIENT_SECRET",
		"stripe.secret_key":          "STRIPE_SECRET_KEY",
		"stripe.webhook_secret":      "STRIPE_WEBHOOK_SECRET",
		"features.cover_letter":      "FEATURE_COVER_LETTER",
		"features.job_match":         "FEATURE_JOB_MATCH",
		"features.ats_score":         "FEATURE_ATS_SCORE",
		"clamd.addr":                 "CLAMD_ADDR",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	var fields []FieldError

	if cfg.API.Port <= 0 {
		fields = append(fields, FieldError{"API_PORT", "must be positive"})
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		fields = append(fields, FieldError{"DATABASE_URL", "is required"})
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		fields = append(fields, FieldError{"NEXTAUTH_SECRET", "is required"})
	}
	if strings.TrimSpace(cfg.Auth.BaseURL) == "" {
		fields = append(fields, FieldError{"NEXTAUTH_URL", "is required"})
	} else if u, err := url.Parse(cfg.Auth.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		fields = append(fields, FieldError{"NEXTAUTH_URL", "must be a valid URL"})
	}
	if cfg.Redis.Addr == "" {
		fields = append(fields, FieldError{"REDIS_ADDR", "is required"})
	}
	if cfg.MinIO.Endpoint == "" {
		fields = append(fields, FieldError{"MINIO_ENDPOINT", "is required"})
	}
	if cfg.MinIO.Bucket == "" {
		fields = append(fields, FieldError{"MINIO_BUCKET", "is required"})
	}
	if cfg.AI.Model == "" {
		fields = append(fields, FieldError{"AI_MODEL", "is required"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
