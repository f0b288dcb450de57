package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL       string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns        int32         `envconfig:"DB_MAX_CONNS"`
	DBMinConns        int32         `envconfig:"DB_MIN_CONNS"`
	DBMaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME"`

	Secret        string        `envconfig:"SECRET" required:"true"`
	TokenLifetime time.Duration `envconfig:"TOKEN_LIFETIME" default:"1h"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/v1/auth/google/callback"`

	FrontendURL              string `envconfig:"FRONTEND_URL"`
	FrontendOAuthRedirectURL string `envconfig:"FRONTEND_OAUTH_REDIRECT_URL" default:"http://localhost:5173/oauth?token"`
	FrontendLoginRedirectURL string `envconfig:"FRONTEND_LOGIN_REDIRECT_URL" default:"http://localhost:5173/login"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`

	RedisURL string `envconfig:"REDIS_URL"`

	MailFrom     string `envconfig:"MAIL_FROM" default:"no-reply@localhost"`
	SESRegion    string `envconfig:"SES_REGION" default:"us-east-1"`
	SESEndpoint  string `envconfig:"SES_ENDPOINT"`
	SESAccessKey string `envconfig:"SES_ACCESS_KEY_ID"`
	SESSecretKey string `envconfig:"SES_SECRET_ACCESS_KEY"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`

	// Requests per minute per client IP on the auth endpoints. Zero disables limiting.
	AuthRateLimit int `envconfig:"AUTH_RATE_LIMIT" default:"20"`

	// Bootstrap: ensure a superuser exists on startup
	InitSuperuserEmail    string `envconfig:"INIT_SUPERUSER_EMAIL"`
	InitSuperuserPassword string `envconfig:"INIT_SUPERUSER_PASSWORD"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("TODOAPI", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasGoogle() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// HasSES reports whether email should go through Amazon SES. Without static
// keys the default AWS credential chain is used, so a region alone is not enough.
func (c *Config) HasSES() bool {
	return c.SESEndpoint != "" || (c.SESAccessKey != "" && c.SESSecretKey != "")
}

func (c *Config) HasBootstrapSuperuser() bool {
	return c.InitSuperuserEmail != "" && c.InitSuperuserPassword != ""
}
