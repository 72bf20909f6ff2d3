package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	AppEnv    string `env:"APP_ENV" env-default:"development"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`

	HTTPListenAddr   string `env:"HTTP_LISTEN_ADDR" env-default:":8080"`
	PublicBasePath   string `env:"PUBLIC_BASE_PATH"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" env-default:"tokobuilder"`

	StoreID string `env:"STORE_ID" env-default:"default"`

	DatabaseDriver string `env:"DATABASE_DRIVER" env-default:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseSchema string `env:"DATABASE_SCHEMA"`
	SQLitePath     string `env:"SQLITE_PATH" env-default:"data/toko-builder.db"`

	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisTLS      bool   `env:"REDIS_TLS" env-default:"false"`

	GeminiAPIKeys  []string      `env:"GEMINI_API_KEYS" env-separator:","`
	GeminiModel    string        `env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
	GeminiTimeout  time.Duration `env:"GEMINI_TIMEOUT" env-default:"30s"`
	GeminiCooldown time.Duration `env:"GEMINI_COOLDOWN" env-default:"5m"`

	SimulateAI     bool `env:"SIMULATE_AI" env-default:"false"`
	AdvisorEnabled bool `env:"ADVISOR_ENABLED" env-default:"true"`

	WhatsAppEnabled   bool   `env:"WHATSAPP_ENABLED" env-default:"false"`
	WhatsAppStorePath string `env:"WHATSAPP_STORE_PATH" env-default:"data/wa.db"`
	WhatsAppLogLevel  string `env:"WHATSAPP_LOG_LEVEL" env-default:"INFO"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	switch cfg.DatabaseDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required with the postgres driver")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if !cfg.SimulateAI && len(cfg.GeminiAPIKeys) == 0 {
		return nil, fmt.Errorf("GEMINI_API_KEYS is required unless SIMULATE_AI is set")
	}

	return &cfg, nil
}
