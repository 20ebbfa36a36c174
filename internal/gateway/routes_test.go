package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiRequest(t *testing.T, ts *httptest.Server, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) domain.Response {
	t.Helper()
	var env domain.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestServerMethods(t *testing.T) {
	srv, _ := testServer(t)
	assert.Equal(t, []string{MethodEvent, MethodHandlers, MethodHealth}, srv.Methods())
}

func TestPostEvent_Success(t *testing.T) {
	_, ts := testServer(t)

	resp := apiRequest(t, ts, "POST", "/api/event",
		`{"sessionId":"s1","action":"open_view","payload":{"route":"/pricing"}}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	env := decodeEnvelope(t, resp)
	assert.True(t, env.OK)
	assert.Len(t, env.Patches, 1)
}

func TestPostEvent_StatusMapping(t *testing.T) {
	_, ts, _ := testServerWith(t, serverOptions{
		keys: []string{"view.open"},
		gateway: gatewayOptions{register: func(reg *registry.Registry) {
			mustRegister(t, reg, registry.Entry{
				Key: "lead.save", Module: "test",
				Handler: func(ctx context.Context, params any, hc registry.HandlerContext) (any, error) {
					return nil, errors.New("crm unavailable")
				},
			})
		}},
	})

	tests := []struct {
		name     string
		body     string
		wantCode string
		want     int
	}{
		{"malformed json", `{"sessionId":`, domain.CodeValidationFailed, http.StatusBadRequest},
		{"missing session", `{"action":"open_view"}`, domain.CodeValidationFailed, http.StatusBadRequest},
		{"unknown action", `{"sessionId":"s1","action":"bogus_action"}`, domain.CodePolicyViolation, http.StatusForbidden},
		{"handler error", `{"sessionId":"s1","action":"lead_save","payload":{"email":"a@b.co"}}`, domain.CodeHandlerError, http.StatusBadGateway},
		{"missing handler", `{"sessionId":"s1","action":"team_search","payload":"go"}`, domain.CodeNotFound, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := apiRequest(t, ts, "POST", "/api/event", tt.body, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			env := decodeEnvelope(t, resp)
			assert.False(t, env.OK)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

func TestPostEvent_RateLimitedSetsRetryAfter(t *testing.T) {
	_, ts := testServer(t)

	body := `{"sessionId":"s1","action":"pricing_query","payload":{}}`
	for i := 0; i < 20; i++ {
		resp := apiRequest(t, ts, "POST", "/api/event", body, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "call %d", i+1)
	}

	resp := apiRequest(t, ts, "POST", "/api/event", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	retry, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, domain.CodeRateLimited, env.Code)
	assert.Positive(t, env.RetryAfterMs)
}

func TestPostEvent_BodyTooLarge(t *testing.T) {
	_, ts, _ := testServerWith(t, serverOptions{tweak: func(cfg *config.GatewayConfig) {
		cfg.MaxBodyBytes = 64
	}})

	body := `{"sessionId":"s1","action":"open_view","payload":"` + strings.Repeat("a", 200) + `"}`
	resp := apiRequest(t, ts, "POST", "/api/event", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.CodeValidationFailed, decodeEnvelope(t, resp).Code)
}

func TestPostEvent_RequiresBearerToken(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/event", "application/json",
		strings.NewReader(`{"sessionId":"s1","action":"open_view"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	_, ts, tg := testServerWith(t, serverOptions{})

	resp := apiRequest(t, ts, "POST", "/api/session", `{"channel":"telegram","user":"ana"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.SessionID)
	assert.Equal(t, "telegram", body.Channel)
	assert.Empty(t, body.CSRFToken, "csrf disabled by default")

	sess, ok := tg.sessions.Get(body.SessionID)
	require.True(t, ok)
	assert.Equal(t, "ana", sess.User)
	assert.Equal(t, sess.ExpiresAt().Unix(), body.ExpiresAt.Unix())
}

func TestCreateSession_EmptyBodyDefaultsToWebapp(t *testing.T) {
	_, ts := testServer(t)

	resp := apiRequest(t, ts, "POST", "/api/session", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "webapp", body.Channel)
}

func TestCreateSession_BadChannel(t *testing.T) {
	_, ts := testServer(t)

	resp := apiRequest(t, ts, "POST", "/api/session", `{"channel":"fax"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func csrfServer(t *testing.T) (*httptest.Server, *testGateway) {
	t.Helper()
	_, ts, tg := testServerWith(t, serverOptions{tweak: func(cfg *config.GatewayConfig) {
		cfg.CSRF = config.GatewayCSRF{Enabled: true, Secret: "csrf-secret"}
	}})
	return ts, tg
}

func TestCSRF_WebappSessionRequiresToken(t *testing.T) {
	ts, _ := csrfServer(t)

	resp := apiRequest(t, ts, "POST", "/api/session", `{"channel":"webapp"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.CSRFToken)

	body := `{"sessionId":"` + created.SessionID + `","action":"open_view","payload":"/team"}`

	missing := apiRequest(t, ts, "POST", "/api/event", body, nil)
	assert.Equal(t, http.StatusForbidden, missing.StatusCode)
	assert.Equal(t, domain.CodePolicyViolation, decodeEnvelope(t, missing).Code)

	ok := apiRequest(t, ts, "POST", "/api/event", body, map[string]string{"X-CSRF-Token": created.CSRFToken})
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestCSRF_TokenBoundToSession(t *testing.T) {
	ts, _ := csrfServer(t)

	var a, b createSessionResponse
	require.NoError(t, json.NewDecoder(apiRequest(t, ts, "POST", "/api/session", `{}`, nil).Body).Decode(&a))
	require.NoError(t, json.NewDecoder(apiRequest(t, ts, "POST", "/api/session", `{}`, nil).Body).Decode(&b))

	body := `{"sessionId":"` + a.SessionID + `","action":"open_view","payload":"/team"}`
	resp := apiRequest(t, ts, "POST", "/api/event", body, map[string]string{"X-CSRF-Token": b.CSRFToken})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCSRF_MessagingSessionsSkipCheck(t *testing.T) {
	ts, _ := csrfServer(t)

	resp := apiRequest(t, ts, "POST", "/api/session", `{"channel":"whatsapp"}`, nil)
	var created createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Empty(t, created.CSRFToken)

	body := `{"sessionId":"` + created.SessionID + `","action":"open_view","payload":"/team"}`
	assert.Equal(t, http.StatusOK, apiRequest(t, ts, "POST", "/api/event", body, nil).StatusCode)
}

func TestDeleteSession(t *testing.T) {
	_, ts, tg := testServerWith(t, serverOptions{})

	resp := apiRequest(t, ts, "POST", "/api/session", `{}`, nil)
	var created createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	body := `{"sessionId":"` + created.SessionID + `","action":"open_view","idempotencyKey":"click-0001","payload":{"route":"/team"}}`
	apiRequest(t, ts, "POST", "/api/event", body, nil)
	apiRequest(t, ts, "POST", "/api/event", body, nil)
	require.Equal(t, int64(1), tg.callCount("view.open"))

	del := apiRequest(t, ts, "DELETE", "/api/session/"+created.SessionID, "", nil)
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
	_, ok := tg.sessions.Get(created.SessionID)
	assert.False(t, ok)

	apiRequest(t, ts, "POST", "/api/event", body, nil)
	assert.Equal(t, int64(2), tg.callCount("view.open"), "deleted session forgets its keys")

	again := apiRequest(t, ts, "DELETE", "/api/session/"+created.SessionID, "", nil)
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestWriteJSON_Unencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"result": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var env domain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.OK)
	assert.Equal(t, domain.CodeHandlerError, env.Code)
	assert.Contains(t, env.Message, ErrUnencodable.Error())
}

func TestListHandlers(t *testing.T) {
	_, ts := testServer(t)

	resp := apiRequest(t, ts, "GET", "/api/handlers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HandlersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Stats.Total)
	assert.Equal(t, 2, body.Stats.Modules["test"])
	require.Len(t, body.Handlers, 2)
	assert.Equal(t, "view.open", body.Handlers[1].Key)
}

func TestCapabilities(t *testing.T) {
	_, ts := testServer(t)

	resp := apiRequest(t, ts, "GET", "/api/capabilities", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Capabilities []CapabilityInfo `json:"capabilities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Capabilities, len(domain.AllActions))

	byAction := make(map[string]CapabilityInfo)
	for _, c := range body.Capabilities {
		byAction[c.Action] = c
	}
	assert.Equal(t, "tool.<name>", byAction["tool_run"].Target)
	assert.Equal(t, int64(60000), byAction["pricing_query"].WindowMs)
	assert.Equal(t, 20, byAction["pricing_query"].MaxCalls)
	assert.Zero(t, byAction["open_view"].MaxCalls)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		resp domain.Response
		want int
	}{
		{domain.Success(nil), http.StatusOK},
		{domain.Failure(domain.CodeValidationFailed, ""), http.StatusBadRequest},
		{domain.Failure(domain.CodePolicyViolation, ""), http.StatusForbidden},
		{domain.Failure(domain.CodeRateLimited, ""), http.StatusTooManyRequests},
		{domain.Failure(domain.CodeHandlerError, ""), http.StatusBadGateway},
		{domain.Failure(domain.CodeNotFound, ""), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.resp), tt.resp.Code)
	}
}

func TestWriteEnvelope_RoundsRetryAfterUp(t *testing.T) {
	rr := httptest.NewRecorder()
	resp := domain.Failure(domain.CodeRateLimited, "slow down")
	resp.RetryAfterMs = 1001
	writeEnvelope(rr, resp)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
}
