package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort               = 18790
	DefaultRequestTimeout     = 30 * time.Second
	DefaultMaxBodyBytes       = 1 << 20
	DefaultSweepInterval      = 60 * time.Second
	DefaultMaxSessions        = 10000
	DefaultIdempotencyWindow  = 5 * time.Minute
	DefaultIdempotencyEntries = 10000
	DefaultValidatorThreshold = 0.35
	DefaultOllamaEndpoint     = "http://localhost:11434"
	DefaultOllamaModel        = "llama3.2"
)

// Default session lifetimes per channel.
const (
	DefaultWebappTTL    = 24 * time.Hour
	DefaultWhatsAppTTL  = 30 * time.Minute
	DefaultInstagramTTL = 15 * time.Minute
	DefaultTelegramTTL  = time.Hour
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: DefaultPort,
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "none",
			},
			RequestTimeout: Duration(DefaultRequestTimeout),
			MaxBodyBytes:   DefaultMaxBodyBytes,
		},
		Session: SessionConfig{
			TTL: ChannelTTLs{
				Webapp:    Duration(DefaultWebappTTL),
				WhatsApp:  Duration(DefaultWhatsAppTTL),
				Instagram: Duration(DefaultInstagramTTL),
				Telegram:  Duration(DefaultTelegramTTL),
				X:         Duration(DefaultWebappTTL),
			},
			SweepInterval: Duration(DefaultSweepInterval),
			MaxSessions:   DefaultMaxSessions,
		},
		Idempotency: IdempotencyConfig{
			Window:     Duration(DefaultIdempotencyWindow),
			MaxEntries: DefaultIdempotencyEntries,
		},
		Validator: ValidatorConfig{
			Threshold: DefaultValidatorThreshold,
		},
		Store: StoreConfig{
			Path: ":memory:",
		},
		LLM: LLMConfig{
			Provider: "canned",
			Endpoint: DefaultOllamaEndpoint,
			Model:    DefaultOllamaModel,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
