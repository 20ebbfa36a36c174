// Package policy holds the capability table that binds every action to its
// handler target, cost tier and rate limit, plus the limiter that enforces
// those limits.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/soyeahso/actiongw/internal/domain"
)

var (
	// ErrPolicyViolation indicates an action or target the policy does not allow.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrInvalidTable indicates a capability table that cannot be loaded.
	ErrInvalidTable = errors.New("invalid capability table")
)

// Cost is the relative expense tier of an action.
type Cost string

const (
	CostLow    Cost = "low"
	CostMedium Cost = "medium"
	CostHigh   Cost = "high"
)

// Rate is a rolling-window limit: at most MaxCalls accepted calls per Window.
type Rate struct {
	Window   time.Duration `json:"window"`
	MaxCalls int           `json:"maxCalls"`
}

// Target names the handler an action dispatches to. A dynamic target is
// resolved per request as Prefix + the tool name carried in the params.
type Target struct {
	Key     string `json:"key,omitempty"`
	Dynamic bool   `json:"dynamic,omitempty"`
	Prefix  string `json:"prefix,omitempty"`
}

// Static returns a target bound to a single handler key.
func Static(key string) Target { return Target{Key: key} }

// Dynamic returns a target resolved at request time under prefix.
func Dynamic(prefix string) Target { return Target{Dynamic: true, Prefix: prefix} }

func (t Target) String() string {
	if t.Dynamic {
		return t.Prefix + "<name>"
	}
	return t.Key
}

// Capability is the policy bound to one action.
type Capability struct {
	Action domain.Action `json:"action"`
	Target Target        `json:"target"`
	Cost   Cost          `json:"cost"`
	Rate   *Rate         `json:"rate,omitempty"`
}

// Override replaces the rate policy of one action. Disabled removes it.
type Override struct {
	Window   time.Duration
	MaxCalls int
	Disabled bool
}

// DefaultCapabilities returns the built-in capability table.
func DefaultCapabilities() []Capability {
	perMinute := func(n int) *Rate { return &Rate{Window: time.Minute, MaxCalls: n} }
	return []Capability{
		{Action: domain.ActionChatSend, Target: Static("chat.send"), Cost: CostHigh, Rate: perMinute(30)},
		{Action: domain.ActionToolRun, Target: Dynamic("tool."), Cost: CostMedium, Rate: perMinute(20)},
		{Action: domain.ActionOpenView, Target: Static("view.open"), Cost: CostLow},
		{Action: domain.ActionMemorySave, Target: Static("memory.save"), Cost: CostLow, Rate: perMinute(30)},
		{Action: domain.ActionLeadSave, Target: Static("lead.save"), Cost: CostMedium, Rate: perMinute(5)},
		{Action: domain.ActionSetLanguage, Target: Static("language.set"), Cost: CostLow},
		{Action: domain.ActionTeamSearch, Target: Static("team.search"), Cost: CostMedium, Rate: perMinute(30)},
		{Action: domain.ActionPricingQuery, Target: Static("pricing.query"), Cost: CostMedium, Rate: perMinute(20)},
		{Action: domain.ActionCollectiveMemory, Target: Static("memory.collective"), Cost: CostMedium, Rate: perMinute(20)},
	}
}

// Table is an immutable action to capability mapping.
type Table struct {
	caps map[domain.Action]Capability
}

// NewTable validates caps and applies rate overrides keyed by action name.
// Every action of the enum must appear exactly once.
func NewTable(caps []Capability, overrides map[string]Override) (*Table, error) {
	t := &Table{caps: make(map[domain.Action]Capability, len(caps))}

	for _, c := range caps {
		if !c.Action.Valid() {
			return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidTable, c.Action)
		}
		if _, dup := t.caps[c.Action]; dup {
			return nil, fmt.Errorf("%w: duplicate action %q", ErrInvalidTable, c.Action)
		}
		if c.Target.Dynamic && c.Target.Prefix == "" {
			return nil, fmt.Errorf("%w: dynamic target for %q has no prefix", ErrInvalidTable, c.Action)
		}
		if !c.Target.Dynamic && c.Target.Key == "" {
			return nil, fmt.Errorf("%w: action %q has no target", ErrInvalidTable, c.Action)
		}
		if c.Rate != nil && (c.Rate.Window <= 0 || c.Rate.MaxCalls <= 0) {
			return nil, fmt.Errorf("%w: action %q has a non-positive rate", ErrInvalidTable, c.Action)
		}
		if c.Rate != nil {
			r := *c.Rate
			c.Rate = &r
		}
		t.caps[c.Action] = c
	}

	for _, a := range domain.AllActions {
		if _, ok := t.caps[a]; !ok {
			return nil, fmt.Errorf("%w: action %q has no capability", ErrInvalidTable, a)
		}
	}

	for name, o := range overrides {
		a, ok := domain.ParseAction(name)
		if !ok {
			return nil, fmt.Errorf("%w: override for unknown action %q", ErrInvalidTable, name)
		}
		c := t.caps[a]
		switch {
		case o.Disabled:
			c.Rate = nil
		case o.Window > 0 && o.MaxCalls > 0:
			c.Rate = &Rate{Window: o.Window, MaxCalls: o.MaxCalls}
		default:
			return nil, fmt.Errorf("%w: override for %q needs a positive window and maxCalls", ErrInvalidTable, name)
		}
		t.caps[a] = c
	}

	return t, nil
}

// Resolve returns the capability for an action name.
func (t *Table) Resolve(action string) (Capability, error) {
	a, ok := domain.ParseAction(action)
	if !ok {
		return Capability{}, fmt.Errorf("%w: unknown action %q", ErrPolicyViolation, action)
	}
	c, ok := t.caps[a]
	if !ok {
		return Capability{}, fmt.Errorf("%w: no capability for %q", ErrPolicyViolation, action)
	}
	return c, nil
}

// All returns the capabilities in enum order.
func (t *Table) All() []Capability {
	out := make([]Capability, 0, len(t.caps))
	for _, a := range domain.AllActions {
		out = append(out, t.caps[a])
	}
	return out
}

// ToolNamer is implemented by params that carry a dynamic tool name.
type ToolNamer interface {
	ToolName() string
}

// HandlerLookup reports whether a handler key is registered.
type HandlerLookup interface {
	Has(key string) bool
}

var toolNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// ResolveTarget returns the handler key to dispatch to. Static targets
// return their key. Dynamic targets derive Prefix+name from params and
// require the derived key to be registered.
func ResolveTarget(c Capability, params any, handlers HandlerLookup) (string, error) {
	if !c.Target.Dynamic {
		return c.Target.Key, nil
	}

	tn, ok := params.(ToolNamer)
	if !ok {
		return "", fmt.Errorf("%w: %s requires a tool name", ErrPolicyViolation, c.Action)
	}
	name := tn.ToolName()
	if name == "" {
		return "", fmt.Errorf("%w: %s requires a tool name", ErrPolicyViolation, c.Action)
	}
	if !toolNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: invalid tool name %q", ErrPolicyViolation, name)
	}

	key := c.Target.Prefix + name
	if handlers == nil || !handlers.Has(key) {
		return "", fmt.Errorf("%w: tool %q is not available", ErrPolicyViolation, name)
	}
	return key, nil
}
