package app

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:3001/api"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"30s"`

	AuthRecheck time.Duration `envconfig:"AUTH_RECHECK_INTERVAL" default:"1m"`

	BudgetYear         int           `envconfig:"BUDGET_YEAR" default:"2025"`
	LockCacheTTL       time.Duration `envconfig:"LOCK_CACHE_TTL" default:"2m"`
	AggregateCacheSize int           `envconfig:"AGGREGATE_CACHE_SIZE" default:"256"`
	UploadPreviewTTL   time.Duration `envconfig:"UPLOAD_PREVIEW_TTL" default:"30m"`
	SuperCostCenter    string        `envconfig:"SUPER_COST_CENTER" default:"FIN&CORP"`
}

// LoadConfig reads configuration from a .env file, when present, and then
// from environment variables. Variables already set win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.BudgetYear < 2000 || cfg.BudgetYear > 2100 {
		return nil, errors.New("budget year out of range")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
