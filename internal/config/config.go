// Package config maps environment variables into a typed Config.
//
// An optional .env file in the working directory is loaded first; variables
// already present in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the storefront.
type Config struct {
	// Server
	Port        string `env:"PORT"        envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"   envDefault:"info"`
	BaseURL     string `env:"BASE_URL"    envDefault:"http://localhost:8080"`
	TrustProxy  bool   `env:"TRUST_PROXY" envDefault:"false"`

	// Database
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabasePath   string `env:"DATABASE_PATH"   envDefault:"shop.db"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Sessions
	SessionStore         string        `env:"SESSION_STORE"          envDefault:"database"`
	SessionSecret        string        `env:"SESSION_SECRET,required"`
	SessionTTL           time.Duration `env:"SESSION_TTL"            envDefault:"336h"`
	SessionTouchInterval time.Duration `env:"SESSION_TOUCH_INTERVAL" envDefault:"1h"`
	SessionCookieName    string        `env:"SESSION_COOKIE_NAME"    envDefault:"shop_session"`
	CookieSecure         bool          `env:"COOKIE_SECURE"          envDefault:"true"`
	RedisURL             string        `env:"REDIS_URL"`
	MongoURI             string        `env:"MONGODB_URI"`
	MongoDatabase        string        `env:"MONGODB_DATABASE"       envDefault:"shop"`

	// Auth
	BcryptCost              int  `env:"BCRYPT_COST"                envDefault:"12"`
	ResetRevealUnknownEmail bool `env:"RESET_REVEAL_UNKNOWN_EMAIL" envDefault:"false"`
	LoginRatePerMinute      int  `env:"LOGIN_RATE_PER_MINUTE"      envDefault:"10"`

	// Files
	FileStore      string `env:"FILE_STORE"       envDefault:"disk"`
	UploadDir      string `env:"UPLOAD_DIR"       envDefault:"uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	S3             S3Config

	// Mail
	MailDriver  string `env:"MAIL_DRIVER"   envDefault:"log"`
	MailFrom    string `env:"MAIL_FROM"     envDefault:"shop@example.com"`
	MailReplyTo string `env:"MAIL_REPLY_TO"`
	SMTP        SMTPConfig
	Postmark    PostmarkConfig
}

// S3Config holds object storage settings used when FILE_STORE=s3.
type S3Config struct {
	Bucket         string `env:"S3_BUCKET"`
	Region         string `env:"S3_REGION"           envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	Prefix         string `env:"S3_PREFIX"`
}

// SMTPConfig holds relay settings used when MAIL_DRIVER=smtp.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT"     envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	TLSMode  string `env:"SMTP_TLS_MODE" envDefault:"starttls"`
}

// PostmarkConfig holds API settings used when MAIL_DRIVER=postmark.
type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

// Load reads .env if present, then parses and validates the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	} else if c.IsProduction() && c.BcryptCost < 12 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least 12 in production, got %d", c.BcryptCost))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.LoginRatePerMinute <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DATABASE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver))
	}

	switch c.SessionStore {
	case "database":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when SESSION_STORE=redis"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when SESSION_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be database, redis or mongo, got %q", c.SessionStore))
	}

	switch c.FileStore {
	case "disk", "database":
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when FILE_STORE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("FILE_STORE must be disk, s3 or database, got %q", c.FileStore))
	}

	switch c.MailDriver {
	case "log":
	case "smtp":
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when MAIL_DRIVER=smtp"))
		}
	case "postmark":
		if c.Postmark.ServerToken == "" {
			errs = append(errs, errors.New("POSTMARK_SERVER_TOKEN is required when MAIL_DRIVER=postmark"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_DRIVER must be log, smtp or postmark, got %q", c.MailDriver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SlogLevel converts LOG_LEVEL to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q is not a valid level", c.LogLevel)
	}
	return level, nil
}
