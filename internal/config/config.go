package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port          int     `env:"PORT" envDefault:"8080"`
	DatabaseURL   string  `env:"DATABASE_URL,required"`
	RedisURL      string  `env:"REDIS_URL,required"`
	SessionSecret string  `env:"SESSION_SECRET"`
	Environment   string  `env:"ENVIRONMENT" envDefault:"development"`
	Model         string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	MaxTokens     int     `env:"OPENAI_MAX_TOKENS" envDefault:"1024"`
	Temperature   float32 `env:"OPENAI_TEMPERATURE" envDefault:"0.3"`
	LogLevel      string  `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsProduction reports whether the server runs with production hardening:
// secure cookies and enforced TLS verification on upstream calls.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("OPENAI_TEMPERATURE must be between 0 and 2")
	}

	if c.IsProduction() {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("running in non-production mode: upstream TLS verification is disabled")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
