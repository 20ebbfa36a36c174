package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/hooks"
	"github.com/soyeahso/actiongw/internal/registry"
	"github.com/soyeahso/actiongw/internal/session"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	api := func(h http.HandlerFunc) http.Handler {
		return bearerAuthMiddleware(h, s.auth, s.throttle, s.log)
	}

	mux.Handle("POST /api/event", api(s.handleEvent))
	mux.Handle("POST /api/session", api(s.handleCreateSession))
	mux.Handle("DELETE /api/session/{id}", api(s.handleDeleteSession))
	mux.Handle("GET /api/handlers", api(s.handleListHandlers))
	mux.Handle("GET /api/capabilities", api(s.handleCapabilities))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all WebSocket method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle(MethodEvent, s.rpcEvent)
	s.Handle(MethodHealth, s.rpcHealth)
	s.Handle(MethodHandlers, s.rpcHandlers)
}

func (s *Server) bodyLimit() int64 {
	if s.cfg.MaxBodyBytes > 0 {
		return s.cfg.MaxBodyBytes
	}
	return maxFramePayload
}

// handleEvent runs one event through the gateway and writes the envelope.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())

	var req domain.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeEnvelope(w, domain.Failure(domain.CodeValidationFailed,
				fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit)))
			return
		}
		writeEnvelope(w, domain.Failure(domain.CodeValidationFailed, "invalid JSON body: "+err.Error()))
		return
	}

	if err := s.checkCSRF(r, req.SessionID); err != nil {
		s.log.Warn().
			Str("requestId", RequestIDFromContext(r.Context())).
			Str("sessionId", req.SessionID).
			Err(err).
			Msg("csrf check failed")
		writeEnvelope(w, domain.Failure(domain.CodePolicyViolation, err.Error()))
		return
	}

	writeEnvelope(w, s.gw.Handle(r.Context(), req))
}

// checkCSRF verifies the X-CSRF-Token header for live webapp sessions that
// were issued a token. Other sessions pass through.
func (s *Server) checkCSRF(r *http.Request, sessionID string) error {
	if s.csrf == nil || sessionID == "" {
		return nil
	}
	sess, ok := s.gw.Sessions().Get(sessionID)
	if !ok || sess.Channel != domain.ChannelWebapp || sess.CSRFToken == "" {
		return nil
	}
	return s.csrf.Verify(r.Header.Get("X-CSRF-Token"), sessionID)
}

// writeEnvelope writes resp with its mapped HTTP status. Rate limited
// responses also carry Retry-After in whole seconds, rounded up.
func writeEnvelope(w http.ResponseWriter, resp domain.Response) {
	if resp.Code == domain.CodeRateLimited && resp.RetryAfterMs > 0 {
		secs := (resp.RetryAfterMs + 999) / 1000
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeJSON(w, HTTPStatus(resp), resp)
}

type createSessionRequest struct {
	Channel string `json:"channel,omitempty"`
	User    string `json:"user,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

type createSessionResponse struct {
	SessionID string    `json:"sessionId"`
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expiresAt"`
	CSRFToken string    `json:"csrfToken,omitempty"`
}

// handleCreateSession opens a session ahead of the first event. Webapp
// sessions get a CSRF token when CSRF protection is enabled.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())

	var body createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, domain.CodeValidationFailed, "invalid JSON body: "+err.Error())
			return
		}
	}

	ch := domain.ChannelWebapp
	if body.Channel != "" {
		parsed, ok := domain.ParseChannel(body.Channel)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, domain.CodeValidationFailed,
				fmt.Sprintf("channel must be one of %v", domain.AllChannels))
			return
		}
		ch = parsed
	}

	sessions := s.gw.Sessions()
	id := session.NewID()
	attrs := session.Attrs{Channel: ch, User: body.User, Origin: body.Origin}

	if s.csrf != nil && ch == domain.ChannelWebapp {
		token, err := s.csrf.Issue(id, sessions.TTL(ch))
		if err != nil {
			s.log.Error().Err(err).Msg("issuing csrf token")
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "could not issue csrf token")
			return
		}
		attrs.CSRFToken = token
	}

	sess := sessions.Create(id, attrs)
	if s.hooks != nil {
		s.hooks.Emit(r.Context(), hooks.EventSessionStart, map[string]any{
			"sessionId": sess.ID,
			"channel":   string(sess.Channel),
			"source":    "api",
		})
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID,
		Channel:   string(sess.Channel),
		ExpiresAt: sess.ExpiresAt(),
		CSRFToken: sess.CSRFToken,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.gw.EndSession(id) {
		writeJSONError(w, http.StatusNotFound, domain.CodeNotFound, "session not found: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlerInfo describes one registered handler.
type HandlerInfo struct {
	Key          string `json:"key"`
	Module       string `json:"module"`
	Description  string `json:"description,omitempty"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
}

// HandlersResponse is the body of GET /api/handlers.
type HandlersResponse struct {
	Handlers []HandlerInfo `json:"handlers"`
	Stats    registry.Stats `json:"stats"`
}

func (s *Server) handlersResponse() HandlersResponse {
	reg := s.gw.Registry()
	entries := reg.Entries()
	infos := make([]HandlerInfo, len(entries))
	for i, e := range entries {
		infos[i] = HandlerInfo{
			Key:          e.Key,
			Module:       e.Module,
			Description:  e.Description,
			RequiresAuth: e.RequiresAuth,
		}
	}
	return HandlersResponse{Handlers: infos, Stats: reg.Stats()}
}

func (s *Server) handleListHandlers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.handlersResponse())
}

// CapabilityInfo is the client view of one action's policy.
type CapabilityInfo struct {
	Action   string `json:"action"`
	Target   string `json:"target"`
	Cost     string `json:"cost"`
	WindowMs int64  `json:"windowMs,omitempty"`
	MaxCalls int    `json:"maxCalls,omitempty"`
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps := s.gw.Policy().All()
	out := make([]CapabilityInfo, len(caps))
	for i, c := range caps {
		out[i] = CapabilityInfo{
			Action: string(c.Action),
			Target: c.Target.String(),
			Cost:   string(c.Cost),
		}
		if c.Rate != nil {
			out[i].WindowMs = c.Rate.Window.Milliseconds()
			out[i].MaxCalls = c.Rate.MaxCalls
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": out})
}

// WebSocket handlers

// rpcEvent handles an "event" request. Session and channel default to the
// connection's. The envelope, failed or not, is the ok payload.
func (s *Server) rpcEvent(rc *RequestContext) {
	var req domain.EventRequest
	if err := rc.Params(&req); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = rc.Client.SessionID
	}
	if ch := rc.Client.Info.Channel; ch != "" {
		if req.Meta == nil {
			req.Meta = &domain.EventMeta{}
		}
		if req.Meta.Channel == "" {
			req.Meta.Channel = ch
		}
	}

	rc.Respond(s.gw.Handle(rc.Context(), req))
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		Channels: s.clients.ByChannel(),
		Sessions: s.gw.Sessions().Len(),
		Handlers: len(s.gw.Registry().List()),
		UptimeMs: s.uptime().Milliseconds(),
	})
}

func (s *Server) rpcHandlers(rc *RequestContext) {
	rc.Respond(s.handlersResponse())
}
