package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${ENV_VAR} references in secret fields.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.CSRF.Secret = expandEnvVars(cfg.Gateway.CSRF.Secret)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()

	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = d.Gateway.Auth.Mode
	}
	if cfg.Gateway.RequestTimeout == 0 {
		cfg.Gateway.RequestTimeout = d.Gateway.RequestTimeout
	}
	if cfg.Gateway.MaxBodyBytes == 0 {
		cfg.Gateway.MaxBodyBytes = d.Gateway.MaxBodyBytes
	}

	ttl := &cfg.Session.TTL
	if ttl.Webapp == 0 {
		ttl.Webapp = d.Session.TTL.Webapp
	}
	if ttl.WhatsApp == 0 {
		ttl.WhatsApp = d.Session.TTL.WhatsApp
	}
	if ttl.Instagram == 0 {
		ttl.Instagram = d.Session.TTL.Instagram
	}
	if ttl.Telegram == 0 {
		ttl.Telegram = d.Session.TTL.Telegram
	}
	if ttl.X == 0 {
		ttl.X = ttl.Webapp
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = d.Session.SweepInterval
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = d.Session.MaxSessions
	}

	if cfg.Idempotency.Window == 0 {
		cfg.Idempotency.Window = d.Idempotency.Window
	}
	if cfg.Idempotency.MaxEntries == 0 {
		cfg.Idempotency.MaxEntries = d.Idempotency.MaxEntries
	}

	if cfg.Validator.Threshold == 0 {
		cfg.Validator.Threshold = d.Validator.Threshold
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = d.Store.Path
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = d.LLM.Provider
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = d.LLM.Endpoint
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = d.LLM.Model
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads ACTIONGW_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACTIONGW_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("ACTIONGW_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("ACTIONGW_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Mode = "token"
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("ACTIONGW_CSRF_SECRET"); v != "" {
		cfg.Gateway.CSRF.Enabled = true
		cfg.Gateway.CSRF.Secret = v
	}
	if v := os.Getenv("ACTIONGW_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gateway.RequestTimeout = Duration(d)
		}
	}
	if v := os.Getenv("ACTIONGW_IDEMPOTENCY_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Idempotency.Window = Duration(d)
		}
	}
	if v := os.Getenv("ACTIONGW_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("ACTIONGW_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ACTIONGW_LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("ACTIONGW_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("ACTIONGW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
