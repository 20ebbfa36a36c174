package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/actiongw/internal/builtins"
	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/gateway"
	"github.com/soyeahso/actiongw/internal/hooks"
	"github.com/soyeahso/actiongw/internal/idempotency"
	"github.com/soyeahso/actiongw/internal/llm"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/soyeahso/actiongw/internal/policy"
	"github.com/soyeahso/actiongw/internal/registry"
	"github.com/soyeahso/actiongw/internal/session"
	"github.com/soyeahso/actiongw/internal/store"
	"github.com/soyeahso/actiongw/internal/validator"
	"golang.org/x/sync/errgroup"
)

// app is a fully wired gateway process.
type app struct {
	cfg      config.Config
	db       *store.DB
	llm      llm.Client
	registry *registry.Registry
	limiter  *policy.Limiter
	sessions *session.Store
	idem     *idempotency.Cache
	hooks    *hooks.Manager
	gateway  *gateway.Gateway
	log      *logging.Logger
}

// buildApp wires every component from cfg. storePath is the resolved
// SQLite location. The caller must Close the app.
func buildApp(cfg config.Config, storePath string, log *logging.Logger) (*app, error) {
	db, err := store.Open(storePath, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &app{cfg: cfg, db: db, log: log}
	if err := a.wire(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg
	log := a.log

	client, err := llm.FromConfig(cfg.LLM, log)
	if err != nil {
		return err
	}
	a.llm = client

	a.registry = registry.New(log)
	deps := builtins.DepsFromDB(a.db, client, log)
	deps.System = cfg.LLM.System
	if err := builtins.RegisterAll(a.registry, deps); err != nil {
		return fmt.Errorf("registering handlers: %w", err)
	}

	table, err := policy.NewTable(policy.DefaultCapabilities(), rateOverrides(cfg.RateLimits))
	if err != nil {
		return err
	}

	a.hooks = hooks.NewManager(log)
	a.hooks.OnAll("audit", hooks.AuditLog(log))

	a.limiter = policy.NewLimiter()
	a.sessions = session.NewStore(
		session.WithTTLs(sessionTTLs(cfg.Session.TTL)),
		session.WithMaxSessions(cfg.Session.MaxSessions),
		session.OnEvict(func(s domain.Session, reason session.EvictReason) {
			a.hooks.EmitAsync(context.Background(), hooks.EventSessionEnd, map[string]any{
				"sessionId": s.ID,
				"channel":   string(s.Channel),
				"reason":    string(reason),
			})
		}),
	)
	a.idem = idempotency.New(cfg.Idempotency.Window.D(), cfg.Idempotency.MaxEntries)

	var v *validator.Validator
	if cfg.Validator.IsEnabled() {
		v = validator.New(cfg.Validator.Threshold)
	}

	a.gateway, err = gateway.NewGateway(gateway.Components{
		Policy:      table,
		Limiter:     a.limiter,
		Sessions:    a.sessions,
		Idempotency: a.idem,
		Registry:    a.registry,
		Validator:   v,
		Hooks:       a.hooks,
		Timeout:     cfg.Gateway.RequestTimeout.D(),
	}, log)
	return err
}

// serve runs the HTTP server with the session sweeper and limiter cleanup
// until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	srv := gateway.New(a.cfg.Gateway, a.gateway, a.log, gateway.WithHooks(a.hooks))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.sessions.Run(ctx, a.cfg.Session.SweepInterval.D())
		return nil
	})
	g.Go(func() error {
		a.limiter.Run(ctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		return srv.Start(ctx)
	})
	return g.Wait()
}

// Close releases the store and the idempotency timers.
func (a *app) Close() error {
	a.idem.Close()
	return a.db.Close()
}

func rateOverrides(entries map[string]config.RateLimitEntry) map[string]policy.Override {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]policy.Override, len(entries))
	for name, e := range entries {
		out[name] = policy.Override{
			Window:   e.Window.D(),
			MaxCalls: e.MaxCalls,
			Disabled: e.Disabled,
		}
	}
	return out
}

func sessionTTLs(t config.ChannelTTLs) session.TTLs {
	return session.TTLs{
		domain.ChannelWebapp:    t.Webapp.D(),
		domain.ChannelWhatsApp:  t.WhatsApp.D(),
		domain.ChannelInstagram: t.Instagram.D(),
		domain.ChannelTelegram:  t.Telegram.D(),
		domain.ChannelX:         t.X.D(),
	}
}
