package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/gateway"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	a, err := buildApp(cfg, ":memory:", logging.New(io.Discard, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// runCmd executes the root command against an isolated home directory.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ACTIONGW_HOME", t.TempDir())

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBuildApp_RegistersBuiltins(t *testing.T) {
	a := testApp(t, config.Defaults())

	keys := a.registry.List()
	for _, key := range []string{"chat.send", "view.open", "pricing.query", "lead.save", "memory.save", "team.search", "language.set"} {
		assert.Contains(t, keys, key)
	}
	assert.Equal(t, "canned", a.llm.Name())
	assert.Len(t, a.gateway.Policy().All(), len(domain.AllActions))
}

func TestBuildApp_HandlesEvents(t *testing.T) {
	a := testApp(t, config.Defaults())
	ctx := context.Background()

	resp := a.gateway.Handle(ctx, domain.EventRequest{
		SessionID: "cli-test",
		Action:    "open_view",
		Payload:   json.RawMessage(`{"route":"/pricing"}`),
	})
	require.True(t, resp.OK, resp.Message)
	require.NotEmpty(t, resp.Patches)

	resp = a.gateway.Handle(ctx, domain.EventRequest{
		SessionID: "cli-test",
		Action:    "chat_send",
		Payload:   json.RawMessage(`{"message":"what plans do you have?"}`),
	})
	assert.True(t, resp.OK, resp.Message)

	_, ok := a.sessions.Get("cli-test")
	assert.True(t, ok)
}

func TestBuildApp_RateOverride(t *testing.T) {
	cfg := config.Defaults()
	cfg.RateLimits = map[string]config.RateLimitEntry{
		"open_view": {Window: config.Duration(time.Minute), MaxCalls: 1},
	}
	a := testApp(t, cfg)
	ctx := context.Background()

	req := domain.EventRequest{SessionID: "s1", Action: "open_view", Payload: json.RawMessage(`{"route":"/"}`)}
	assert.True(t, a.gateway.Handle(ctx, req).OK)

	resp := a.gateway.Handle(ctx, req)
	assert.False(t, resp.OK)
	assert.Equal(t, domain.CodeRateLimited, resp.Code)
	assert.Positive(t, resp.RetryAfterMs)
}

func TestBuildApp_CalcOverflowKeepsEnvelope(t *testing.T) {
	a := testApp(t, config.Defaults())
	ts := httptest.NewServer(gateway.New(a.cfg.Gateway, a.gateway, a.log).Handler())
	defer ts.Close()

	big := "1" + strings.Repeat("0", 300)
	for _, expr := range []string{"1e300*1e300", big + "*" + big} {
		t.Run(expr[:8], func(t *testing.T) {
			body := `{"sessionId":"s1","action":"tool_run","idempotencyKey":"calc-` + expr[:3] + `","payload":{"tool":"calc","args":{"expr":"` + expr + `"}}}`
			for i := 0; i < 2; i++ {
				resp, err := http.Post(ts.URL+"/api/event", "application/json", strings.NewReader(body))
				require.NoError(t, err)
				data, err := io.ReadAll(resp.Body)
				resp.Body.Close()
				require.NoError(t, err)

				assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
				var env domain.Response
				require.NoError(t, json.Unmarshal(data, &env), "body %q", data)
				assert.False(t, env.OK)
				assert.Equal(t, domain.CodeHandlerError, env.Code)
			}
		})
	}
}

func TestRateOverrides(t *testing.T) {
	assert.Nil(t, rateOverrides(nil))

	got := rateOverrides(map[string]config.RateLimitEntry{
		"chat_send":     {Window: config.Duration(30 * time.Second), MaxCalls: 5},
		"pricing_query": {Disabled: true},
	})
	require.Len(t, got, 2)
	assert.Equal(t, 30*time.Second, got["chat_send"].Window)
	assert.Equal(t, 5, got["chat_send"].MaxCalls)
	assert.True(t, got["pricing_query"].Disabled)
}

func TestSessionTTLs(t *testing.T) {
	ttl := config.Defaults().Session.TTL
	got := sessionTTLs(ttl)

	require.Len(t, got, len(domain.AllChannels))
	assert.Equal(t, ttl.Webapp.D(), got[domain.ChannelWebapp])
	assert.Equal(t, ttl.WhatsApp.D(), got[domain.ChannelWhatsApp])
	assert.Equal(t, ttl.Telegram.D(), got[domain.ChannelTelegram])
}

func TestGatewayURL(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Port = 9000
	assert.Equal(t, "http://127.0.0.1:9000", gatewayURL(cfg))

	cfg.Gateway.TLS.Enabled = true
	cfg.Gateway.Bind = "custom"
	cfg.Gateway.CustomBindHost = "10.0.0.5"
	assert.Equal(t, "https://10.0.0.5:9000", gatewayURL(cfg))
}

func TestRedactSecrets(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Auth.Token = "tok-secret"
	cfg.Gateway.CSRF.Secret = "csrf-secret-0123456789"

	redactSecrets(&cfg)
	assert.Equal(t, redacted, cfg.Gateway.Auth.Token)
	assert.Equal(t, redacted, cfg.Gateway.CSRF.Secret)

	empty := config.Defaults()
	redactSecrets(&empty)
	assert.Empty(t, empty.Gateway.Auth.Token)
}

func TestEventFlagsRequest(t *testing.T) {
	f := eventFlags{sessionID: "cli", key: "key-000001", channel: "whatsapp", user: "ana"}
	req, err := f.request([]string{"chat_send", `{"message":"hi"}`})
	require.NoError(t, err)
	assert.Equal(t, "chat_send", req.Action)
	assert.Equal(t, "key-000001", req.IdempotencyKey)
	require.NotNil(t, req.Meta)
	assert.Equal(t, "whatsapp", req.Meta.Channel)
	assert.Equal(t, "ana", req.Meta.User)

	req, err = eventFlags{sessionID: "cli"}.request([]string{"open_view"})
	require.NoError(t, err)
	assert.Nil(t, req.Payload)
	assert.Nil(t, req.Meta)

	_, err = eventFlags{}.request([]string{"chat_send", "{not json"})
	assert.Error(t, err)
}

func TestSendRemote(t *testing.T) {
	var gotAuth string
	var gotReq domain.EventRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/event", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.Success([]domain.Patch{domain.Navigate("/pricing")}))
	}))
	defer srv.Close()

	resp, err := sendRemote(context.Background(), srv.URL, "tok", domain.EventRequest{SessionID: "s1", Action: "open_view"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Len(t, resp.Patches, 1)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "open_view", gotReq.Action)
}

func TestSendRemote_NonEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := sendRemote(context.Background(), srv.URL, "", domain.EventRequest{SessionID: "s1", Action: "open_view"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "actiongw")
}

func TestConfigPathCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	out, err := runCmd(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestConfigShowCmd_RedactsToken(t *testing.T) {
	path := writeConfig(t, "gateway:\n  auth:\n    mode: token\n    token: very-secret\n")

	out, err := runCmd(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "very-secret")

	out, err = runCmd(t, "--config", path, "config", "show", "--secrets")
	require.NoError(t, err)
	assert.Contains(t, out, "very-secret")
}

func TestConfigValidateCmd(t *testing.T) {
	good := writeConfig(t, "gateway:\n  port: 18080\n")
	out, err := runCmd(t, "--config", good, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	bad := writeConfig(t, "gateway:\n  auth:\n    mode: token\n")
	out, err = runCmd(t, "--config", bad, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "gateway.auth.token")
}

func TestHandlersCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := runCmd(t, "--config", path, "handlers")
	require.NoError(t, err)
	assert.Contains(t, out, "chat.send")
	assert.Contains(t, out, "pricing_query")
	assert.Contains(t, out, "tool.<name>")

	out, err = runCmd(t, "--config", path, "handlers", "--json")
	require.NoError(t, err)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Contains(t, body, "handlers")
	assert.Contains(t, body, "capabilities")
}

func TestEventSendCmd_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := runCmd(t, "--config", path, "event", "send", "open_view", `{"route":"/team"}`, "--local")
	require.NoError(t, err)

	var resp struct {
		OK      bool             `json:"ok"`
		Patches []map[string]any `json:"patches"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.Patches)
}

func TestEventSendCmd_LocalFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := runCmd(t, "--config", path, "event", "send", "launch_rockets", "--local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.CodePolicyViolation)
	assert.Contains(t, out, `"ok": false`)
}

func TestStatusCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	path := writeConfig(t, "gateway:\n  port: "+u.Port()+"\n")

	out, err := runCmd(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Gateway: port="+u.Port())
	assert.Contains(t, out, "ok at "+srv.URL)
	assert.Contains(t, out, "LLM:     canned")
}
