// Package normalize turns the loosely shaped payloads clients send into the
// canonical parameter structs handlers accept.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/tidwall/gjson"
)

// ErrUnknownAction is returned for an action outside the enum.
var ErrUnknownAction = errors.New("unknown action")

// DefaultCurrency is used when a pricing query names none.
const DefaultCurrency = "IDR"

// Search limits.
const (
	DefaultLimit = 5
	MaxLimit     = 20
)

// Alias sets, checked in order.
var (
	queryKeys    = []string{"query", "message", "text", "content", "prompt"}
	toolNameKeys = []string{"tool", "name", "toolName", "tool_name"}
	toolArgsKeys = []string{"args", "arguments", "params", "input"}
	routeKeys    = []string{"route", "view", "path", "target"}
	memoryKeys   = []string{"text", "content", "memory", "note"}
	langKeys     = []string{"language", "lang", "code", "locale"}
	searchKeys   = []string{"query", "q", "search", "skill", "role"}
	productKeys  = []string{"query", "product", "service", "sku", "item"}
	tierKeys     = []string{"tier", "plan", "package"}
	modeKeys     = []string{"mode", "op", "operation"}
)

// Normalize converts payload and meta into the canonical params for action.
// It never fails for an action of the enum; unknown fields are dropped.
func Normalize(action string, payload json.RawMessage, meta domain.EventMeta) (any, error) {
	a, ok := domain.ParseAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	root := parse(payload)

	switch a {
	case domain.ActionChatSend:
		return chat(root, meta), nil
	case domain.ActionToolRun:
		return tool(root), nil
	case domain.ActionOpenView:
		return view(root), nil
	case domain.ActionMemorySave:
		return MemoryParams{Text: firstString(root, memoryKeys...), Tags: tags(root)}, nil
	case domain.ActionLeadSave:
		return lead(root, meta), nil
	case domain.ActionSetLanguage:
		return language(root), nil
	case domain.ActionTeamSearch:
		return SearchParams{Query: firstString(root, searchKeys...), Limit: limit(root)}, nil
	case domain.ActionPricingQuery:
		return pricing(root), nil
	case domain.ActionCollectiveMemory:
		return collective(root), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func parse(payload json.RawMessage) gjson.Result {
	if len(payload) == 0 {
		return gjson.Result{}
	}
	return gjson.ParseBytes(payload)
}

// firstString returns the first non-blank string among keys. A bare string
// payload counts as the value of every key.
func firstString(root gjson.Result, keys ...string) string {
	if root.Type == gjson.String {
		return strings.TrimSpace(root.Str)
	}
	if !root.IsObject() {
		return ""
	}
	for _, k := range keys {
		v := root.Get(k)
		if !v.Exists() {
			continue
		}
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return ""
}

func chat(root gjson.Result, meta domain.EventMeta) ChatParams {
	p := ChatParams{
		Query:    firstString(root, queryKeys...),
		History:  history(root, meta),
		Language: strings.ToLower(firstString(objectOnly(root), "language", "lang")),
	}
	if p.Query == "" {
		for i := len(p.History) - 1; i >= 0; i-- {
			if p.History[i].Role == "user" && strings.TrimSpace(p.History[i].Content) != "" {
				p.Query = strings.TrimSpace(p.History[i].Content)
				break
			}
		}
	}
	return p
}

// history prefers meta.conversation_history and falls back to a history
// array carried in the payload.
func history(root gjson.Result, meta domain.EventMeta) []domain.HistoryTurn {
	if len(meta.ConversationHistory) > 0 {
		out := make([]domain.HistoryTurn, len(meta.ConversationHistory))
		copy(out, meta.ConversationHistory)
		return out
	}
	if !root.IsObject() {
		return nil
	}
	var out []domain.HistoryTurn
	root.Get("history").ForEach(func(_, turn gjson.Result) bool {
		role := strings.ToLower(turn.Get("role").String())
		content := turn.Get("content").String()
		if role != "" && content != "" {
			out = append(out, domain.HistoryTurn{Role: role, Content: content})
		}
		return true
	})
	return out
}

func tool(root gjson.Result) ToolParams {
	p := ToolParams{Name: firstString(root, toolNameKeys...)}
	for _, k := range toolArgsKeys {
		v := root.Get(k)
		if v.IsObject() {
			if m, ok := v.Value().(map[string]any); ok {
				p.Args = m
			}
			break
		}
	}
	return p
}

func view(root gjson.Result) ViewParams {
	p := ViewParams{Route: firstString(root, routeKeys...)}
	if p.Route != "" && !strings.HasPrefix(p.Route, "/") {
		p.Route = "/" + p.Route
	}
	root.Get("params").ForEach(func(k, v gjson.Result) bool {
		if p.Params == nil {
			p.Params = make(map[string]string)
		}
		p.Params[k.String()] = v.String()
		return true
	})
	return p
}

func lead(root gjson.Result, meta domain.EventMeta) LeadParams {
	obj := objectOnly(root)
	p := LeadParams{
		Name:    firstString(obj, "name", "fullName", "full_name"),
		Email:   strings.ToLower(firstString(obj, "email", "mail")),
		Phone:   firstString(obj, "phone", "phoneNumber", "phone_number", "whatsapp", "wa"),
		Company: firstString(obj, "company", "business", "organization"),
		Note:    firstString(obj, "note", "notes", "message"),
		Source:  firstString(obj, "source"),
	}
	if p.Source == "" {
		p.Source = meta.Channel
	}
	if p.Source == "" {
		p.Source = string(domain.ChannelWebapp)
	}
	return p
}

func language(root gjson.Result) LanguageParams {
	code := strings.ToLower(firstString(root, langKeys...))
	code = strings.ReplaceAll(code, "_", "-")
	if i := strings.IndexByte(code, '-'); i > 0 {
		code = code[:i]
	}
	return LanguageParams{Code: code}
}

func pricing(root gjson.Result) PricingParams {
	obj := objectOnly(root)
	p := PricingParams{
		Query:    firstString(root, productKeys...),
		Tier:     strings.ToLower(firstString(obj, tierKeys...)),
		Currency: strings.ToUpper(firstString(obj, "currency")),
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	return p
}

func collective(root gjson.Result) CollectiveParams {
	obj := objectOnly(root)
	p := CollectiveParams{
		Mode:  strings.ToLower(firstString(obj, modeKeys...)),
		Query: firstString(root, searchKeys...),
		Text:  firstString(obj, memoryKeys...),
		Tags:  tags(obj),
		Limit: limit(obj),
	}
	switch p.Mode {
	case ModeSave, ModeSearch:
	default:
		if p.Text != "" && firstString(obj, searchKeys...) == "" {
			p.Mode = ModeSave
		} else {
			p.Mode = ModeSearch
		}
	}
	if p.Mode == ModeSave && p.Text == "" {
		p.Text = p.Query
	}
	return p
}

// tags accepts an array of strings or a comma separated string.
func tags(root gjson.Result) []string {
	v := root.Get("tags")
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	switch {
	case v.IsArray():
		v.ForEach(func(_, t gjson.Result) bool {
			add(t.String())
			return true
		})
	case v.Type == gjson.String:
		for _, s := range strings.Split(v.Str, ",") {
			add(s)
		}
	}
	return out
}

func limit(root gjson.Result) int {
	n := int(root.Get("limit").Int())
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// objectOnly hides bare string payloads from lookups that must not treat
// the string as every field.
func objectOnly(root gjson.Result) gjson.Result {
	if root.IsObject() {
		return root
	}
	return gjson.Result{}
}
