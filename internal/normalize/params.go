package normalize

import "github.com/soyeahso/actiongw/internal/domain"

// ChatParams is the canonical input of chat.send.
type ChatParams struct {
	Query    string               `json:"query"`
	History  []domain.HistoryTurn `json:"history,omitempty"`
	Language string               `json:"language,omitempty"`
}

// ToolParams is the canonical input of a dynamic tool.
type ToolParams struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolName returns the dynamic tool name.
func (p ToolParams) ToolName() string { return p.Name }

// ViewParams is the canonical input of view.open.
type ViewParams struct {
	Route  string            `json:"route"`
	Params map[string]string `json:"params,omitempty"`
}

// MemoryParams is the canonical input of memory.save.
type MemoryParams struct {
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
}

// LeadParams is the canonical input of lead.save.
type LeadParams struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Note    string `json:"note,omitempty"`
	Source  string `json:"source,omitempty"`
}

// LanguageParams is the canonical input of language.set.
type LanguageParams struct {
	Code string `json:"code"`
}

// SearchParams is the canonical input of team.search.
type SearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// PricingParams is the canonical input of pricing.query.
type PricingParams struct {
	Query    string `json:"query,omitempty"`
	Tier     string `json:"tier,omitempty"`
	Currency string `json:"currency"`
}

// Collective memory modes.
const (
	ModeSearch = "search"
	ModeSave   = "save"
)

// CollectiveParams is the canonical input of memory.collective.
type CollectiveParams struct {
	Mode  string   `json:"mode"`
	Query string   `json:"query,omitempty"`
	Text  string   `json:"text,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Limit int      `json:"limit"`
}
