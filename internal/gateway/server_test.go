package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/hooks"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/soyeahso/actiongw/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-123"

type serverOptions struct {
	gateway gatewayOptions
	keys    []string
	tweak   func(cfg *config.GatewayConfig)
}

func testServerWith(t *testing.T, opts serverOptions) (*Server, *httptest.Server, *testGateway) {
	t.Helper()
	keys := opts.keys
	if keys == nil {
		keys = []string{"view.open", "pricing.query"}
	}
	tg := newTestGateway(t, opts.gateway, keys...)

	cfg := config.Defaults().Gateway
	cfg.Auth.Mode = AuthModeToken
	cfg.Auth.Token = testToken
	if opts.tweak != nil {
		opts.tweak(&cfg)
	}

	srv := New(cfg, tg.gw, logging.New(nil, "silent"), WithHooks(tg.hooks))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, tg
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, ts, _ := testServerWith(t, serverOptions{})
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// dialAndConnect opens a WebSocket, reads the challenge and sends connect.
// It returns the connection and the connect response frame.
func dialAndConnect(t *testing.T, ts *httptest.Server, info ClientInfo, token string) (*websocket.Conn, Frame) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	assert.Equal(t, FrameTypeEvent, challenge.Type)
	assert.Equal(t, EventChallenge, challenge.Event)

	params := ConnectParams{MinProtocol: 1, MaxProtocol: 1, Client: info}
	if token != "" {
		params.Auth = &ConnectAuth{Token: token}
	}
	connectReq, err := NewRequest("req-1", MethodConnect, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(connectReq))

	var reply Frame
	require.NoError(t, conn.ReadJSON(&reply))
	return conn, reply
}

// authenticatedConn returns a WebSocket connection that has completed the handshake.
func authenticatedConn(t *testing.T, ts *httptest.Server, info ClientInfo) *websocket.Conn {
	t.Helper()
	conn, hello := dialAndConnect(t, ts, info, testToken)
	require.NotNil(t, hello.OK)
	require.True(t, *hello.OK, "handshake should succeed")
	return conn
}

func webClient() ClientInfo {
	return ClientInfo{ID: "web", Version: "1.0.0", Platform: "browser", Channel: "webapp"}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	// Public endpoint only returns status
	assert.Empty(t, health.Version)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	_, ts := testServer(t)

	_, helloResp := dialAndConnect(t, ts, webClient(), testToken)
	assert.Equal(t, FrameTypeResponse, helloResp.Type)
	assert.Equal(t, "req-1", helloResp.ID)
	require.NotNil(t, helloResp.OK)
	assert.True(t, *helloResp.OK)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(helloResp.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Equal(t, []string{MethodEvent, MethodHandlers, MethodHealth}, hello.Features.Methods)
	assert.Equal(t, actionNames(), hello.Features.Actions)
	assert.Greater(t, hello.Policy.MaxPayload, 0)
}

func TestWebSocketHandshakeWrongToken(t *testing.T) {
	_, ts := testServer(t)

	_, errResp := dialAndConnect(t, ts, webClient(), "wrong-token")
	assert.Equal(t, FrameTypeResponse, errResp.Type)
	require.NotNil(t, errResp.OK)
	assert.False(t, *errResp.OK)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, "unauthorized", errResp.Error.Code)
}

func TestWebSocketHandshakeNoAuthMode(t *testing.T) {
	_, ts, _ := testServerWith(t, serverOptions{tweak: func(cfg *config.GatewayConfig) {
		cfg.Auth = config.GatewayAuth{Mode: AuthModeNone}
	}})

	_, hello := dialAndConnect(t, ts, webClient(), "")
	require.NotNil(t, hello.OK)
	assert.True(t, *hello.OK)
}

func TestWebSocketHandshakeRequiresConnect(t *testing.T) {
	_, ts := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	req, _ := NewRequest("req-x", MethodHealth, nil)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "protocol_error", resp.Error.Code)
}

func TestWebSocketRPCHealth(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts, webClient())

	req, _ := NewRequest("req-2", MethodHealth, nil)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, FrameTypeResponse, resp.Type)
	assert.Equal(t, "req-2", resp.ID)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
	assert.Equal(t, map[string]int{"webapp": 1}, health.Channels)
	assert.Equal(t, 2, health.Handlers)
}

func TestWebSocketRPCHandlers(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts, webClient())

	req, _ := NewRequest("req-3", MethodHandlers, nil)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)

	var body HandlersResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &body))
	assert.Equal(t, 2, body.Stats.Total)
	require.Len(t, body.Handlers, 2)
	assert.Equal(t, "pricing.query", body.Handlers[0].Key)
}

func TestWebSocketEvent(t *testing.T) {
	_, ts, tg := testServerWith(t, serverOptions{})
	conn := authenticatedConn(t, ts, ClientInfo{ID: "wa", Version: "1", Platform: "linux", Channel: "whatsapp"})

	req, err := NewRequest("evt-1", MethodEvent, map[string]any{
		"action":  "open_view",
		"payload": map[string]any{"route": "/pricing"},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "evt-1", resp.ID)
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)

	var envelope struct {
		OK      bool           `json:"ok"`
		Patches []domain.Patch `json:"patches"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &envelope))
	assert.True(t, envelope.OK)
	assert.Len(t, envelope.Patches, 1)

	sessions := tg.sessions.List()
	require.Len(t, sessions, 1)
	assert.True(t, strings.HasPrefix(sessions[0].ID, "ws-"))
	assert.Equal(t, domain.ChannelWhatsApp, sessions[0].Channel)
}

func TestWebSocketEventFailureIsOkFrame(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts, webClient())

	req, _ := NewRequest("evt-2", MethodEvent, map[string]any{
		"sessionId": "s-explicit",
		"action":    "bogus_action",
	})
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)
	assert.Nil(t, resp.Error)

	var envelope domain.Response
	require.NoError(t, json.Unmarshal(resp.Payload, &envelope))
	assert.False(t, envelope.OK)
	assert.Equal(t, domain.CodePolicyViolation, envelope.Code)
}

func TestWebSocketEventsAnsweredInOrder(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts, webClient())

	for i := 0; i < 5; i++ {
		req, _ := NewRequest("evt-"+string(rune('a'+i)), MethodEvent, map[string]any{
			"action":  "open_view",
			"payload": "/team",
		})
		require.NoError(t, conn.WriteJSON(req))
	}
	for i := 0; i < 5; i++ {
		var resp Frame
		require.NoError(t, conn.ReadJSON(&resp))
		assert.Equal(t, "evt-"+string(rune('a'+i)), resp.ID)
	}
}

func TestWebSocketRPCUnknownMethod(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts, webClient())

	req, _ := NewRequest("req-6", "nonexistent.method", nil)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "method_not_found", resp.Error.Code)
}

func TestWebSocketHandlerSeesFrameRequestID(t *testing.T) {
	var got string
	_, ts, _ := testServerWith(t, serverOptions{
		keys: []string{},
		gateway: gatewayOptions{register: func(reg *registry.Registry) {
			mustRegister(t, reg, registry.Entry{
				Key: "view.open", Module: "test",
				Handler: func(ctx context.Context, params any, hc registry.HandlerContext) (any, error) {
					got = hc.RequestID
					return domain.ViewTarget{Route: "/"}, nil
				},
			})
		}},
	})
	conn := authenticatedConn(t, ts, webClient())

	req, _ := NewRequest("frame-99", MethodEvent, map[string]any{"action": "open_view"})
	require.NoError(t, conn.WriteJSON(req))
	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Equal(t, "frame-99", got)
}

func TestCheckWebSocketOrigin(t *testing.T) {
	check := checkWebSocketOrigin([]string{"https://app.example.com"})

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(r), "no origin header")

	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		bind string
		port int
		want string
	}{
		{"loopback", 18789, "127.0.0.1:18789"},
		{"lan", 9999, "0.0.0.0:9999"},
		{"auto", 8080, "0.0.0.0:8080"},
		{"custom", 3000, "0.0.0.0:3000"},
		{"unknown", 5000, "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.bind, func(t *testing.T) {
			addr := resolveBindAddr(config.GatewayConfig{Bind: tt.bind, Port: tt.port})
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestServerStart(t *testing.T) {
	tg := newTestGateway(t, gatewayOptions{}, "view.open")

	var events []string
	tg.hooks.On(hooks.EventGatewayStart, "test", func(ctx context.Context, p hooks.Payload) error {
		events = append(events, p.Event)
		return nil
	})

	cfg := config.Defaults().Gateway
	cfg.Port = 0 // let OS pick a port
	cfg.Bind = "loopback"

	srv := New(cfg, tg.gw, logging.New(nil, "silent"), WithHooks(tg.hooks))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts := &httptest.Server{URL: "http://" + srv.Addr()}
	conn, hello := dialAndConnect(t, ts, webClient(), "")
	require.True(t, *hello.OK)
	require.Eventually(t, func() bool { return srv.clients.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, EventShutdown, frame.Event)

	assert.NoError(t, <-errCh)
	assert.Equal(t, []string{hooks.EventGatewayStart}, events)
}
