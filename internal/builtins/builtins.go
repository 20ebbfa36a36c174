// Package builtins provides the business handlers the gateway ships with.
// Each module registers its handlers under fixed keys.
package builtins

import (
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/actiongw/internal/llm"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/soyeahso/actiongw/internal/registry"
	"github.com/soyeahso/actiongw/internal/store"
)

// ErrInvalidParams is returned by handlers whose input fails business rules.
var ErrInvalidParams = errors.New("invalid params")

// Deps holds what the built-in modules need.
type Deps struct {
	Log      *logging.Logger
	LLM      llm.Client
	Memories *store.MemoryStore
	Leads    *store.LeadStore
	Prefs    *store.PrefsStore

	// System is an extra instruction appended to the chat system prompt.
	System string

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DepsFromDB wires the SQLite-backed stores of db into deps.
func DepsFromDB(db *store.DB, client llm.Client, log *logging.Logger) Deps {
	return Deps{
		Log:      log,
		LLM:      client,
		Memories: store.NewMemoryStore(db),
		Leads:    store.NewLeadStore(db),
		Prefs:    store.NewPrefsStore(db),
	}
}

// Module registers a group of handlers.
type Module func(reg *registry.Registry, deps Deps) error

// Modules lists every built-in module by name, in registration order.
var Modules = []struct {
	Name     string
	Register Module
}{
	{"chat", RegisterChat},
	{"tools", RegisterTools},
	{"view", RegisterView},
	{"memory", RegisterMemory},
	{"leads", RegisterLeads},
	{"language", RegisterLanguage},
	{"team", RegisterTeam},
	{"pricing", RegisterPricing},
}

// RegisterAll registers every built-in module.
func RegisterAll(reg *registry.Registry, deps Deps) error {
	for _, m := range Modules {
		if err := m.Register(reg, deps); err != nil {
			return fmt.Errorf("register %s: %w", m.Name, err)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
