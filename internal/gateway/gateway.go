package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/hooks"
	"github.com/soyeahso/actiongw/internal/idempotency"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/policy"
	"github.com/soyeahso/actiongw/internal/registry"
	"github.com/soyeahso/actiongw/internal/session"
	"github.com/soyeahso/actiongw/internal/validator"
)

// DefaultHandlerTimeout bounds a single handler dispatch.
const DefaultHandlerTimeout = 30 * time.Second

// Components are the collaborators of a Gateway. Validator and Hooks are
// optional.
type Components struct {
	Policy      *policy.Table
	Limiter     *policy.Limiter
	Sessions    *session.Store
	Idempotency *idempotency.Cache
	Registry    *registry.Registry
	Validator   *validator.Validator
	Hooks       *hooks.Manager
	Timeout     time.Duration
}

// Gateway runs client events through policy, rate limiting, idempotency,
// normalization and dispatch, and turns handler results into patches.
type Gateway struct {
	policy    *policy.Table
	limiter   *policy.Limiter
	sessions  *session.Store
	idem      *idempotency.Cache
	registry  *registry.Registry
	validator *validator.Validator
	hooks     *hooks.Manager
	timeout   time.Duration
	log       *logging.Logger
}

// NewGateway wires a gateway from its components.
func NewGateway(c Components, log *logging.Logger) (*Gateway, error) {
	switch {
	case c.Policy == nil:
		return nil, errors.New("gateway: nil policy table")
	case c.Limiter == nil:
		return nil, errors.New("gateway: nil rate limiter")
	case c.Sessions == nil:
		return nil, errors.New("gateway: nil session store")
	case c.Idempotency == nil:
		return nil, errors.New("gateway: nil idempotency cache")
	case c.Registry == nil:
		return nil, errors.New("gateway: nil handler registry")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	return &Gateway{
		policy:    c.Policy,
		limiter:   c.Limiter,
		sessions:  c.Sessions,
		idem:      c.Idempotency,
		registry:  c.Registry,
		validator: c.Validator,
		hooks:     c.Hooks,
		timeout:   timeout,
		log:       log.Sub("gateway"),
	}, nil
}

// Registry returns the handler registry the gateway dispatches to.
func (g *Gateway) Registry() *registry.Registry { return g.registry }

// Policy returns the capability table.
func (g *Gateway) Policy() *policy.Table { return g.policy }

// Sessions returns the session store.
func (g *Gateway) Sessions() *session.Store { return g.sessions }

// EndSession deletes the session and drops its remembered responses. It
// reports whether a live or expired session existed.
func (g *Gateway) EndSession(id string) bool {
	dropped := g.idem.ForgetSession(id)
	ok := g.sessions.Delete(id)
	if ok || dropped > 0 {
		g.log.Info().Str("sessionId", id).Int("forgotten", dropped).Msg("session ended")
	}
	return ok
}

// Handle processes one event and always returns an envelope. Only
// successful responses are remembered for the idempotency window. Events
// that fail validation are logged and reach no hook.
func (g *Gateway) Handle(ctx context.Context, req domain.EventRequest) domain.Response {
	start := time.Now()
	rid := RequestIDFromContext(ctx)

	if err := req.Validate(); err != nil {
		resp := failureFor(err)
		g.log.Warn().
			Str("requestId", rid).
			Str("action", req.Action).
			Str("reason", resp.Message).
			Msg("event rejected")
		return resp
	}

	g.emit(ctx, hooks.EventActionReceived, map[string]any{
		"requestId": rid,
		"sessionId": req.SessionID,
		"action":    req.Action,
	})

	if req.IdempotencyKey == "" {
		return g.finish(ctx, req, rid, g.process(ctx, req, rid), false, start)
	}

	key := idempotency.Key(req.SessionID, req.IdempotencyKey)
	resp, replayed := g.idem.Do(key, func() (domain.Response, bool) {
		resp := g.process(ctx, req, rid)
		return resp, resp.OK
	})
	return g.finish(ctx, req, rid, resp, replayed, start)
}

func (g *Gateway) process(ctx context.Context, req domain.EventRequest, rid string) domain.Response {
	capability, err := g.policy.Resolve(req.Action)
	if err != nil {
		return failureFor(err)
	}

	if d := g.limiter.Allow(policy.RateKey(string(capability.Action), req.SessionID), capability.Rate); !d.Allowed {
		return failureFor(&RateLimitError{Action: capability.Action, Limit: d.Limit, RetryAfter: d.RetryAfter})
	}

	sess := g.session(ctx, req)

	params, err := normalize.Normalize(req.Action, req.Payload, req.MetaOrEmpty())
	if err != nil {
		return failureFor(err)
	}

	key, err := policy.ResolveTarget(capability, params, g.registry)
	if err != nil {
		return failureFor(err)
	}

	entry, ok := g.registry.Get(key)
	if !ok {
		return failureFor(registry.ErrHandlerNotFound)
	}
	if entry.RequiresAuth && sess.User == "" {
		return failureFor(ErrAuthRequired)
	}

	dctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	hc := registry.HandlerContext{
		RequestID: rid,
		Action:    capability.Action,
		Session:   sess,
		Log:       g.log.With("requestId", rid).With("handler", key),
	}
	result, err := g.registry.Execute(dctx, key, params, hc)
	if err != nil {
		if errors.Is(dctx.Err(), context.DeadlineExceeded) {
			err = &registry.HandlerError{Key: entry.Key, Module: entry.Module, Err: ErrHandlerTimeout}
		}
		return failureFor(err)
	}

	resp := domain.Success(g.buildPatches(capability.Action, params, result))
	if _, err := json.Marshal(resp); err != nil {
		return failureFor(&registry.HandlerError{Key: entry.Key, Module: entry.Module, Err: fmt.Errorf("%w: %v", ErrUnencodable, err)})
	}
	return resp
}

// session returns the live session for the event, creating it from meta on
// first contact or after expiry.
func (g *Gateway) session(ctx context.Context, req domain.EventRequest) domain.Session {
	if s, ok := g.sessions.Get(req.SessionID); ok {
		return s
	}

	meta := req.MetaOrEmpty()
	ch, _ := domain.ParseChannel(meta.Channel)
	s := g.sessions.Create(req.SessionID, session.Attrs{
		Channel: ch,
		User:    meta.User,
		Origin:  meta.Origin,
	})
	g.emit(ctx, hooks.EventSessionStart, map[string]any{
		"sessionId": s.ID,
		"channel":   string(s.Channel),
		"source":    "event",
	})
	return s
}

func (g *Gateway) finish(ctx context.Context, req domain.EventRequest, rid string, resp domain.Response, replayed bool, start time.Time) domain.Response {
	elapsed := time.Since(start)

	if resp.OK {
		g.log.Info().
			Str("requestId", rid).
			Str("sessionId", req.SessionID).
			Str("action", req.Action).
			Int("patches", len(resp.Patches)).
			Bool("replayed", replayed).
			Dur("duration", elapsed).
			Msg("action completed")
		g.emit(ctx, hooks.EventActionCompleted, map[string]any{
			"requestId": rid,
			"sessionId": req.SessionID,
			"action":    req.Action,
			"replayed":  replayed,
			"patches":   len(resp.Patches),
		})
		return resp
	}

	g.log.Warn().
		Str("requestId", rid).
		Str("sessionId", req.SessionID).
		Str("action", req.Action).
		Str("code", resp.Code).
		Str("reason", resp.Message).
		Dur("duration", elapsed).
		Msg("action failed")
	g.emit(ctx, hooks.EventActionFailed, map[string]any{
		"requestId": rid,
		"sessionId": req.SessionID,
		"action":    req.Action,
		"code":      resp.Code,
	})
	return resp
}

func (g *Gateway) emit(ctx context.Context, event string, data map[string]any) {
	if g.hooks != nil {
		g.hooks.Emit(ctx, event, data)
	}
}
