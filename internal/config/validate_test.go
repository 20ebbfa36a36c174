package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	assert.Empty(t, issues)
}

func TestValidate_Port(t *testing.T) {
	for _, port := range []int{0, 8080, 65535} {
		cfg := Defaults()
		cfg.Gateway.Port = port
		assert.Empty(t, Validate(&cfg), "port %d should be valid", port)
	}
	for _, port := range []int{-1, 70000} {
		cfg := Defaults()
		cfg.Gateway.Port = port
		issues := Validate(&cfg)
		require.NotEmpty(t, issues)
		assert.Equal(t, "gateway.port", issues[0].Path)
	}
}

func TestValidate_Bind(t *testing.T) {
	for _, bind := range []string{"auto", "lan", "loopback", ""} {
		cfg := Defaults()
		cfg.Gateway.Bind = bind
		assert.Empty(t, Validate(&cfg), "bind %q should be valid", bind)
	}

	cfg := Defaults()
	cfg.Gateway.Bind = "tailnet"
	issues := Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "gateway.bind", issues[0].Path)

	cfg = Defaults()
	cfg.Gateway.Bind = "custom"
	issues = Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "gateway.customBindHost", issues[0].Path)

	cfg.Gateway.CustomBindHost = "10.0.0.5"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Auth(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Auth.Mode = "password"
	issues := Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "gateway.auth.mode", issues[0].Path)

	cfg = Defaults()
	cfg.Gateway.Auth.Mode = "token"
	issues = Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "gateway.auth.token", issues[0].Path)

	cfg.Gateway.Auth.Token = "abc"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_TLSAndCSRF(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.TLS.Enabled = true
	cfg.Gateway.TLS.CertPath = "/tmp/cert.pem"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.tls", issues[0].Path)

	cfg = Defaults()
	cfg.Gateway.CSRF.Enabled = true
	cfg.Gateway.CSRF.Secret = "short"
	issues = Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.csrf.secret", issues[0].Path)

	cfg.Gateway.CSRF.Secret = "a-much-longer-secret-value"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_NegativeDurations(t *testing.T) {
	cfg := Defaults()
	cfg.Session.TTL.WhatsApp = Duration(-time.Minute)
	cfg.Idempotency.Window = Duration(-time.Second)
	cfg.Gateway.RequestTimeout = Duration(-time.Second)

	issues := Validate(&cfg)
	paths := make([]string, 0, len(issues))
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.Contains(t, paths, "session.ttl.whatsapp")
	assert.Contains(t, paths, "idempotency.window")
	assert.Contains(t, paths, "gateway.requestTimeout")
}

func TestValidate_RateLimits(t *testing.T) {
	tests := []struct {
		name     string
		limits   map[string]RateLimitEntry
		wantPath string
	}{
		{
			name:   "valid override",
			limits: map[string]RateLimitEntry{"chat_send": {Window: Duration(time.Minute), MaxCalls: 10}},
		},
		{
			name:   "disabled needs no window",
			limits: map[string]RateLimitEntry{"lead_save": {Disabled: true}},
		},
		{
			name:     "unknown action",
			limits:   map[string]RateLimitEntry{"bogus_action": {Window: Duration(time.Minute), MaxCalls: 1}},
			wantPath: "rateLimits.bogus_action",
		},
		{
			name:     "missing window",
			limits:   map[string]RateLimitEntry{"chat_send": {MaxCalls: 1}},
			wantPath: "rateLimits.chat_send.window",
		},
		{
			name:     "zero max calls",
			limits:   map[string]RateLimitEntry{"chat_send": {Window: Duration(time.Minute)}},
			wantPath: "rateLimits.chat_send.maxCalls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.RateLimits = tt.limits
			issues := Validate(&cfg)
			if tt.wantPath == "" {
				assert.Empty(t, issues)
				return
			}
			require.NotEmpty(t, issues)
			assert.Equal(t, tt.wantPath, issues[0].Path)
		})
	}
}

func TestValidate_Threshold(t *testing.T) {
	cfg := Defaults()
	cfg.Validator.Threshold = 1.5
	issues := Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "validator.threshold", issues[0].Path)
}

func TestValidate_LLMProvider(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Provider = "openai"
	issues := Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "llm.provider", issues[0].Path)
}

func TestValidate_Logging(t *testing.T) {
	for _, level := range []string{"silent", "fatal", "error", "warn", "info", "debug", "trace", ""} {
		cfg := Defaults()
		cfg.Logging.Level = level
		assert.Empty(t, Validate(&cfg), "log level %q should be valid", level)
	}

	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	cfg.Logging.ConsoleStyle = "fancy"
	issues := Validate(&cfg)
	require.Len(t, issues, 2)
	assert.Equal(t, "logging.level", issues[0].Path)
	assert.Equal(t, "logging.consoleStyle", issues[1].Path)
}

func TestValidationIssue_String(t *testing.T) {
	issue := ValidationIssue{Path: "gateway.port", Message: "bad port"}
	assert.Equal(t, "gateway.port: bad port", issue.String())
}
