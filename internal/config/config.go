package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// minSigningSecretLen is the shortest HS256 secret accepted at startup.
const minSigningSecretLen = 32

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8000"`
	AppEnv  string `env:"APP_ENV"  envDefault:"development"`

	AWSRegion      string `env:"AWS_REGION"            envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	ProviderURL              string        `env:"PROVIDER_URL"               envDefault:"http://localhost:9999"`
	ProviderAPIKey           string        `env:"PROVIDER_API_KEY"`
	ProviderTimeout          time.Duration `env:"PROVIDER_TIMEOUT"           envDefault:"10s"`
	ProviderRemoteValidation bool          `env:"PROVIDER_REMOTE_VALIDATION" envDefault:"false"`

	TokenSigningSecret string        `env:"TOKEN_SIGNING_SECRET"`
	TokenIssuer        string        `env:"TOKEN_ISSUER"   envDefault:"otp-gate"`
	TokenAudience      string        `env:"TOKEN_AUDIENCE" envDefault:"authenticated"`
	TokenTTL           time.Duration `env:"TOKEN_TTL"      envDefault:"1h"`

	OTPTTL           time.Duration `env:"OTP_TTL"            envDefault:"10m"`
	OTPMaxAttempts   int           `env:"OTP_MAX_ATTEMPTS"   envDefault:"5"`
	OTPLockoutWindow time.Duration `env:"OTP_LOCKOUT_WINDOW" envDefault:"15m"`

	SMTPHost     string `env:"SMTP_HOST"     envDefault:"localhost"`
	SMTPPort     string `env:"SMTP_PORT"     envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM"     envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailAppName  string `env:"MAIL_APP_NAME" envDefault:"CareerAutomate"`

	FrontendURL    string   `env:"FRONTEND_URL"    envDefault:"http://localhost:3000"`
	PublicBaseURL  string   `env:"PUBLIC_BASE_URL" envDefault:"http://127.0.0.1:8000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins

	// TrustProxyHeaders rewrites RemoteAddr from X-Real-IP / X-Forwarded-For.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Verifications string `env:"DYNAMO_TABLE_VERIFICATIONS" envDefault:"verifications"`
}

// Load reads all configuration from environment variables and checks the
// settings the process cannot start without.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ProviderURL = strings.TrimRight(cfg.ProviderURL, "/")
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if len(c.TokenSigningSecret) < minSigningSecretLen {
		errs = append(errs, fmt.Errorf("TOKEN_SIGNING_SECRET must be at least %d bytes", minSigningSecretLen))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.OTPMaxAttempts < 1 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the process runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
