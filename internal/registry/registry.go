// Package registry maps handler keys to business handlers and dispatches
// calls to them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/logging"
)

var (
	// ErrDuplicateHandler indicates a key was registered twice.
	ErrDuplicateHandler = errors.New("handler already registered")
	// ErrHandlerNotFound indicates no handler is registered under a key.
	ErrHandlerNotFound = errors.New("handler not found")
	// ErrInvalidEntry indicates an entry with an empty key or nil handler.
	ErrInvalidEntry = errors.New("invalid handler entry")
	// ErrParamsType indicates a handler received params of the wrong type.
	ErrParamsType = errors.New("unexpected params type")
)

// HandlerContext carries per-request data into a handler.
type HandlerContext struct {
	RequestID string
	Action    domain.Action
	Session   domain.Session
	Log       *logging.Logger
}

// SessionID returns the id of the calling session.
func (hc HandlerContext) SessionID() string { return hc.Session.ID }

// User returns the session user, empty for anonymous sessions.
func (hc HandlerContext) User() string { return hc.Session.User }

// Channel returns the channel the session arrived on.
func (hc HandlerContext) Channel() domain.Channel { return hc.Session.Channel }

// Handler is the opaque handler shape stored in the registry.
type Handler func(ctx context.Context, params any, hc HandlerContext) (any, error)

// Entry is one registered handler.
type Entry struct {
	Key          string
	Module       string
	Description  string
	RequiresAuth bool
	Handler      Handler
}

// HandlerError wraps a failure raised by a handler.
type HandlerError struct {
	Key    string
	Module string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s (%s): %v", e.Key, e.Module, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Stats summarizes registry contents.
type Stats struct {
	Total   int            `json:"total"`
	Modules map[string]int `json:"modules"`
}

// Registry is a key to handler table. It is written during startup and
// read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	log     *logging.Logger
}

// New creates an empty registry.
func New(log *logging.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		log:     log.Sub("registry"),
	}
}

// Register adds an entry under its key.
func (r *Registry) Register(e Entry) error {
	if e.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidEntry)
	}
	if e.Handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidEntry, e.Key)
	}
	if e.Module == "" {
		e.Module = "core"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.entries[e.Key]; exists {
		return fmt.Errorf("%w: %s (module %s)", ErrDuplicateHandler, e.Key, existing.Module)
	}
	r.entries[e.Key] = e

	r.log.Info().
		Str("key", e.Key).
		Str("module", e.Module).
		Bool("requiresAuth", e.RequiresAuth).
		Msg("handler registered")
	return nil
}

// Has reports whether a handler exists under key.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Get returns the entry registered under key.
func (r *Registry) Get(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// Execute invokes the handler registered under key. Handler errors and
// panics come back as *HandlerError.
func (r *Registry) Execute(ctx context.Context, key string, params any, hc HandlerContext) (result any, err error) {
	e, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, key)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Str("key", key).
				Interface("panic", rec).
				Msg("handler panicked")
			result = nil
			err = &HandlerError{Key: e.Key, Module: e.Module, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	result, err = e.Handler(ctx, params, hc)
	if err != nil {
		return nil, &HandlerError{Key: e.Key, Module: e.Module, Err: err}
	}
	return result, nil
}

// List returns all registered keys in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns all entries sorted by key.
func (r *Registry) Entries() []Entry {
	keys := r.List()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := r.entries[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Stats returns the total handler count and a per-module breakdown.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{Total: len(r.entries), Modules: make(map[string]int)}
	for _, e := range r.entries {
		s.Modules[e.Module]++
	}
	return s
}

// Typed adapts a handler with concrete params and result types to the
// opaque Handler shape.
func Typed[P, R any](fn func(ctx context.Context, params P, hc HandlerContext) (R, error)) Handler {
	return func(ctx context.Context, params any, hc HandlerContext) (any, error) {
		p, ok := params.(P)
		if !ok {
			var want P
			return nil, fmt.Errorf("%w: want %T, got %T", ErrParamsType, want, params)
		}
		return fn(ctx, p, hc)
	}
}
