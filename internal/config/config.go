package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	Port        string `env:"PORT" envDefault:"8080"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	PaymentProvider    string  `env:"PAYMENT_PROVIDER" envDefault:"simulated" validate:"omitempty,oneof=simulated stripe"`
	PaymentSuccessRate float64 `env:"PAYMENT_SUCCESS_RATE" envDefault:"0.9" validate:"gte=0,lte=1"`
	StripeSecretKey    string  `env:"STRIPE_SECRET_KEY" validate:"required_if=PaymentProvider stripe"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"none" validate:"omitempty,oneof=none resend postmark mailgun"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"omitempty,email"`
	MailgunDomain string `env:"MAILGUN_DOMAIN"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaOrderTopic string   `env:"KAFKA_ORDER_TOPIC" envDefault:"exstore.orders"`

	ShippingConfigPath string `env:"SHIPPING_CONFIG_PATH"`
	StoreName          string `env:"STORE_NAME" envDefault:"EXStore"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	_ = godotenv.Load() // load .env if it exists

	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.EmailEnabled() {
		if strings.TrimSpace(c.EmailAPIKey) == "" {
			return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER is %q", c.EmailProvider)
		}
		if strings.TrimSpace(c.EmailFrom) == "" {
			return fmt.Errorf("EMAIL_FROM is required when EMAIL_PROVIDER is %q", c.EmailProvider)
		}
		if c.EmailProvider == "mailgun" && strings.TrimSpace(c.MailgunDomain) == "" {
			return fmt.Errorf("MAILGUN_DOMAIN is required when EMAIL_PROVIDER is mailgun")
		}
	}

	return nil
}

func (c *Config) EmailEnabled() bool {
	provider := strings.ToLower(strings.TrimSpace(c.EmailProvider))
	return provider != "" && provider != "none"
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
