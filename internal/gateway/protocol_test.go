package gateway

import (
	"encoding/json"
	"testing"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	var out Frame
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestEventRequestFrame(t *testing.T) {
	req := domain.EventRequest{
		SessionID:      "ws-1",
		Action:         "chat_send",
		IdempotencyKey: "msg-000042",
		Payload:        json.RawMessage(`{"message":"halo"}`),
		Meta:           &domain.EventMeta{Channel: "telegram"},
	}
	frame, err := NewRequest("7", MethodEvent, req)
	require.NoError(t, err)

	got := roundTrip(t, frame)
	assert.Equal(t, FrameTypeRequest, got.Type)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, MethodEvent, got.Method)
	assert.Nil(t, got.OK)

	var decoded domain.EventRequest
	require.NoError(t, json.Unmarshal(got.Params, &decoded))
	assert.Equal(t, req.Action, decoded.Action)
	assert.Equal(t, req.IdempotencyKey, decoded.IdempotencyKey)
	assert.JSONEq(t, `{"message":"halo"}`, string(decoded.Payload))
	require.NotNil(t, decoded.Meta)
	assert.Equal(t, "telegram", decoded.Meta.Channel)
}

func TestEnvelopeResponseFrame(t *testing.T) {
	tests := []struct {
		name string
		resp domain.Response
		want string
	}{
		{
			name: "success",
			resp: domain.Success([]domain.Patch{domain.Navigate("/pricing")}),
			want: `{"ok":true,"patches":[{"op":"navigate","route":"/pricing"}]}`,
		},
		{
			name: "failure stays an ok frame",
			resp: domain.Response{Code: domain.CodeRateLimited, Message: "slow down", RetryAfterMs: 1500},
			want: `{"ok":false,"code":"rate_limited","message":"slow down","retryAfterMs":1500}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewResponse("9", tt.resp)
			require.NoError(t, err)

			got := roundTrip(t, frame)
			assert.Equal(t, FrameTypeResponse, got.Type)
			require.NotNil(t, got.OK)
			assert.True(t, *got.OK)
			assert.Nil(t, got.Error)
			assert.JSONEq(t, tt.want, string(got.Payload))
		})
	}
}

func TestNewResponse_NilPayload(t *testing.T) {
	frame, err := NewResponse("1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, "null", string(frame.Payload))
}

func TestErrorResponseFrame(t *testing.T) {
	frame := NewErrorResponse("3", ErrorShape{
		Code:    "unknown_method",
		Message: "unknown method: chat.send",
		Details: map[string]string{"method": "chat.send"},
	})

	got := roundTrip(t, frame)
	require.NotNil(t, got.OK)
	assert.False(t, *got.OK)
	assert.Empty(t, got.Payload)
	require.NotNil(t, got.Error)
	assert.Equal(t, "unknown_method", got.Error.Code)
	assert.Zero(t, got.Error.RetryAfter)
	assert.False(t, got.Error.Retryable)
}

func TestErrorShape_Retry(t *testing.T) {
	data, err := json.Marshal(ErrorShape{Code: "throttled", Message: "try later", Retryable: true, RetryAfter: 300000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"throttled","message":"try later","retryable":true,"retryAfterMs":300000}`, string(data))

	data, err = json.Marshal(ErrorShape{Code: "protocol_error", Message: "bad frame"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"protocol_error","message":"bad frame"}`, string(data))
}

func TestEventFrames(t *testing.T) {
	challenge, err := NewEvent(EventChallenge, map[string]any{"nonce": "n-1"}, 0)
	require.NoError(t, err)
	got := roundTrip(t, challenge)
	assert.Equal(t, FrameTypeEvent, got.Type)
	assert.Equal(t, EventChallenge, got.Event)
	assert.Zero(t, got.Seq)
	assert.Empty(t, got.ID)

	shutdown, err := NewEvent(EventShutdown, map[string]any{"reason": "shutdown"}, 12)
	require.NoError(t, err)
	got = roundTrip(t, shutdown)
	assert.Equal(t, EventShutdown, got.Event)
	assert.Equal(t, int64(12), got.Seq)
	assert.JSONEq(t, `{"reason":"shutdown"}`, string(got.Payload))
}

func TestConnectParams(t *testing.T) {
	params := ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      ClientInfo{ID: "wa-bridge", Version: "2.1.0", Platform: "linux", Channel: "whatsapp"},
	}
	data, err := json.Marshal(params)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "auth")
	assert.Equal(t, "whatsapp", raw["client"].(map[string]any)["channel"])

	params.Auth = &ConnectAuth{Token: "tok"}
	data, err = json.Marshal(params)
	require.NoError(t, err)

	var decoded ConnectParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Auth)
	assert.Equal(t, "tok", decoded.Auth.Token)
}

func TestHelloOK(t *testing.T) {
	hello := HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: "0.4.0", ConnID: "c-1"},
		Features: Features{
			Methods: []string{MethodEvent, MethodHandlers, MethodHealth},
			Actions: []string{"chat_send", "open_view"},
		},
		Policy: ServerPolicy{MaxPayload: maxFramePayload, TickIntervalMs: tickIntervalMs},
	}
	data, err := json.Marshal(hello)
	require.NoError(t, err)

	var decoded HelloOK
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, hello, decoded)
	assert.NotContains(t, string(data), "commit")
}
