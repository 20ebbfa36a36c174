package config

import (
	"fmt"
	"slices"

	"github.com/soyeahso/actiongw/internal/domain"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is \"custom\"")
	}

	validAuthModes := []string{"none", "token"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}
	if cfg.Gateway.Auth.Mode == "token" && cfg.Gateway.Auth.Token == "" {
		add("gateway.auth.token", "required when auth mode is \"token\"")
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}
	if cfg.Gateway.CSRF.Enabled && len(cfg.Gateway.CSRF.Secret) < 16 {
		add("gateway.csrf.secret", "must be at least 16 characters when CSRF is enabled")
	}
	if cfg.Gateway.RequestTimeout < 0 {
		add("gateway.requestTimeout", "must not be negative")
	}
	if cfg.Gateway.MaxBodyBytes < 0 {
		add("gateway.maxBodyBytes", "must not be negative")
	}

	// Session
	ttls := map[string]Duration{
		"webapp":    cfg.Session.TTL.Webapp,
		"whatsapp":  cfg.Session.TTL.WhatsApp,
		"instagram": cfg.Session.TTL.Instagram,
		"telegram":  cfg.Session.TTL.Telegram,
		"x":         cfg.Session.TTL.X,
	}
	for _, name := range []string{"webapp", "whatsapp", "instagram", "telegram", "x"} {
		if ttls[name] < 0 {
			add("session.ttl."+name, "must not be negative")
		}
	}
	if cfg.Session.SweepInterval < 0 {
		add("session.sweepInterval", "must not be negative")
	}
	if cfg.Session.MaxSessions < 0 {
		add("session.maxSessions", "must not be negative")
	}

	// Idempotency
	if cfg.Idempotency.Window < 0 {
		add("idempotency.window", "must not be negative")
	}
	if cfg.Idempotency.MaxEntries < 0 {
		add("idempotency.maxEntries", "must not be negative")
	}

	// Rate limits
	for _, action := range sortedKeys(cfg.RateLimits) {
		entry := cfg.RateLimits[action]
		path := "rateLimits." + action
		if _, ok := domain.ParseAction(action); !ok {
			add(path, "unknown action %q", action)
			continue
		}
		if entry.Disabled {
			continue
		}
		if entry.Window <= 0 {
			add(path+".window", "must be positive")
		}
		if entry.MaxCalls <= 0 {
			add(path+".maxCalls", "must be positive")
		}
	}

	// Validator
	if cfg.Validator.Threshold < 0 || cfg.Validator.Threshold > 1 {
		add("validator.threshold", "must be between 0 and 1, got %v", cfg.Validator.Threshold)
	}

	// LLM
	validProviders := []string{"canned", "ollama"}
	if cfg.LLM.Provider != "" && !slices.Contains(validProviders, cfg.LLM.Provider) {
		add("llm.provider", "must be one of %v, got %q", validProviders, cfg.LLM.Provider)
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
