package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full environment surface. Database and worker settings may
// additionally be overridden at runtime through the settings table.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"EFLENGINE_LOG_LEVEL" envDefault:"info"`

	DB       DBConfig
	Auth     AuthConfig
	Validate ValidateConfig
	PDFText  PDFTextConfig
	Watch    WatchConfig
	Worker   WorkerConfig
	Redis    RedisConfig
	Alerts   AlertConfig
	CORS     CORSConfig
}

type DBConfig struct {
	Driver      string `env:"EFLENGINE_DB_DRIVER" envDefault:"memory"`
	DSN         string `env:"EFLENGINE_DB_DSN"`
	AutoMigrate bool   `env:"EFLENGINE_AUTO_MIGRATE" envDefault:"true"`
}

// AuthConfig can switch off token authentication entirely. Meant for local
// development against a throwaway store.
type AuthConfig struct {
	Disabled bool `env:"EFLENGINE_AUTH_DISABLED" envDefault:"false"`
}

type ValidateConfig struct {
	// Allowed gap between a modeled average price and the disclosed one,
	// in cents per kWh.
	ToleranceCents float64 `env:"EFLENGINE_VALIDATE_TOLERANCE_CENTS" envDefault:"0.5"`
}

// PDFTextConfig points at the standalone pdftotext service. Empty URL means
// local extraction only.
type PDFTextConfig struct {
	URL   string `env:"EFLENGINE_PDFTEXT_URL"`
	Token string `env:"EFLENGINE_PDFTEXT_TOKEN"`
}

type WatchConfig struct {
	Dir string `env:"EFLENGINE_WATCH_DIR"`
}

type WorkerConfig struct {
	// Seconds between revalidation cycles, or a cron expression.
	RevalidateInterval string `env:"EFLENGINE_REVALIDATE_INTERVAL" envDefault:"3600"`
}

// RedisConfig enables the shared cost cache. Empty Addr falls back to the
// in-process cache.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
}

type AlertConfig struct {
	WebhookURL  string `env:"ALERT_WEBHOOK_URL"`
	WebhookType string `env:"ALERT_WEBHOOK_TYPE" envDefault:"generic"`
	MinFailures int    `env:"ALERT_MIN_FAILURES" envDefault:"1"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads .env if present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
