package config

// Config is the root configuration for the action gateway.
type Config struct {
	Gateway     GatewayConfig             `yaml:"gateway,omitempty"`
	Session     SessionConfig             `yaml:"session,omitempty"`
	Idempotency IdempotencyConfig         `yaml:"idempotency,omitempty"`
	RateLimits  map[string]RateLimitEntry `yaml:"rateLimits,omitempty"` // keyed by action name
	Validator   ValidatorConfig           `yaml:"validator,omitempty"`
	Store       StoreConfig               `yaml:"store,omitempty"`
	LLM         LLMConfig                 `yaml:"llm,omitempty"`
	Logging     LoggingConfig             `yaml:"logging,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
	CSRF           GatewayCSRF `yaml:"csrf,omitempty"`
	RequestTimeout Duration    `yaml:"requestTimeout,omitempty"`
	MaxBodyBytes   int64       `yaml:"maxBodyBytes,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode  string `yaml:"mode,omitempty"` // "none" | "token"
	Token string `yaml:"token,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayCSRF configures CSRF tokens for webapp sessions.
type GatewayCSRF struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Secret  string `yaml:"secret,omitempty"`
}

// SessionConfig defines session lifetimes per channel and the sweep cadence.
type SessionConfig struct {
	TTL           ChannelTTLs `yaml:"ttl,omitempty"`
	SweepInterval Duration    `yaml:"sweepInterval,omitempty"`
	MaxSessions   int         `yaml:"maxSessions,omitempty"`
}

// ChannelTTLs holds the session time-to-live for each channel.
// Zero values fall back to the webapp TTL.
type ChannelTTLs struct {
	Webapp    Duration `yaml:"webapp,omitempty"`
	WhatsApp  Duration `yaml:"whatsapp,omitempty"`
	Instagram Duration `yaml:"instagram,omitempty"`
	Telegram  Duration `yaml:"telegram,omitempty"`
	X         Duration `yaml:"x,omitempty"`
}

// IdempotencyConfig controls the replay window for idempotency keys.
type IdempotencyConfig struct {
	Window     Duration `yaml:"window,omitempty"`
	MaxEntries int      `yaml:"maxEntries,omitempty"`
}

// RateLimitEntry overrides the rate policy of a single capability.
// Disabled removes the limit entirely.
type RateLimitEntry struct {
	Window   Duration `yaml:"window,omitempty"`
	MaxCalls int      `yaml:"maxCalls,omitempty"`
	Disabled bool     `yaml:"disabled,omitempty"`
}

// ValidatorConfig controls the grounding check applied to chat replies.
type ValidatorConfig struct {
	Enabled   *bool   `yaml:"enabled,omitempty"` // defaults to true
	Threshold float64 `yaml:"threshold,omitempty"`
}

// IsEnabled reports whether the validator should run.
func (v ValidatorConfig) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// StoreConfig selects where built-in handlers persist their data.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite file, ":memory:" for ephemeral
}

// LLMConfig selects the chat completion backend.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"` // "canned" | "ollama"
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`
	System   string `yaml:"system,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
