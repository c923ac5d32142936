package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Draft backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Artifact backends.
const (
	ArtifactMemory = "memory"
	ArtifactS3     = "s3"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	DraftBackend     string        `mapstructure:"DRAFT_BACKEND"`
	SQLitePath       string        `mapstructure:"SQLITE_PATH"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBSchema         string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	AutosaveDelay    time.Duration `mapstructure:"AUTOSAVE_DELAY"`
	DefaultWorkspace string        `mapstructure:"DEFAULT_WORKSPACE"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	PastebinBaseURL  string        `mapstructure:"PASTEBIN_BASE_URL"`
	AuthSigningKey   string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer       string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience     string        `mapstructure:"AUTH_AUDIENCE"`
	ArtifactBackend  string        `mapstructure:"ARTIFACT_BACKEND"`
	S3Bucket         string        `mapstructure:"S3_BUCKET"`
	S3Region         string        `mapstructure:"S3_REGION"`
	S3Endpoint       string        `mapstructure:"S3_ENDPOINT"`
	S3PathStyle      bool          `mapstructure:"S3_PATH_STYLE"`
	S3Prefix         string        `mapstructure:"S3_PREFIX"`
	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DRAFT_BACKEND", "SQLITE_PATH", "DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTOSAVE_DELAY", "DEFAULT_WORKSPACE", "CORS_ORIGINS", "PASTEBIN_BASE_URL",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"ARTIFACT_BACKEND", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_PATH_STYLE", "S3_PREFIX",
	"BODY_LIMIT", "REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// Load reads the environment and an optional .env file in the working
// directory. It does not validate; call Validate before serving.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DRAFT_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_PATH", "data/upo-drafts.db")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("AUTOSAVE_DELAY", "1s")
	v.SetDefault("DEFAULT_WORKSPACE", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("PASTEBIN_BASE_URL", "http://dontpad.com")
	v.SetDefault("ARTIFACT_BACKEND", ArtifactMemory)
	v.SetDefault("S3_PREFIX", "artifacts/")
	v.SetDefault("BODY_LIMIT", "256K")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects configurations the server cannot run with. Outside
// development a signing key is mandatory, since requests would otherwise be
// admitted without authentication.
func (c *Config) Validate() error {
	var errs []error
	switch c.DraftBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite draft backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres draft backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("DRAFT_BACKEND must be sqlite, postgres or memory, got %q", c.DraftBackend))
	}

	switch c.ArtifactBackend {
	case ArtifactMemory:
	case ArtifactS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 artifact backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ARTIFACT_BACKEND must be memory or s3, got %q", c.ArtifactBackend))
	}

	if c.AutosaveDelay <= 0 {
		errs = append(errs, fmt.Errorf("AUTOSAVE_DELAY must be positive, got %s", c.AutosaveDelay))
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		errs = append(errs, fmt.Errorf("AUTH_SIGNING_KEY must be set when ENV=%q", c.Env))
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		errs = append(errs, errors.New("AUTH_SIGNING_KEY must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}
