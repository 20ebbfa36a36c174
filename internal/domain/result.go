package domain

import "time"

// ChatReply is the result of the chat handler.
type ChatReply struct {
	Reply   string   `json:"reply"`
	Sources []string `json:"sources,omitempty"`
	Model   string   `json:"model,omitempty"`
}

// ToolOutput is the result of a dynamic tool invocation.
type ToolOutput struct {
	Name   string `json:"name"`
	Output any    `json:"output"`
}

// ViewTarget is the result of the view handler.
type ViewTarget struct {
	Route string `json:"route"`
	Title string `json:"title,omitempty"`
}

// MemoryRecord is one stored memory.
type MemoryRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Scope     string    `json:"scope"` // "session" | "collective"
	Text      string    `json:"text"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CollectiveResult is the result of a collective memory call: either a saved
// record or a list of search matches.
type CollectiveResult struct {
	Saved   *MemoryRecord  `json:"saved,omitempty"`
	Query   string         `json:"query,omitempty"`
	Matches []MemoryRecord `json:"matches,omitempty"`
}

// LeadRecord is one captured sales lead.
type LeadRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Note      string    `json:"note,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// LanguageChoice is the result of the language handler.
type LanguageChoice struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TeamMember is one entry of the team directory.
type TeamMember struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Skills []string `json:"skills,omitempty"`
}

// TeamResults is the result of a team search.
type TeamResults struct {
	Query   string       `json:"query"`
	Members []TeamMember `json:"members"`
}

// PriceItem is one product or service in the pricing catalogue.
type PriceItem struct {
	SKU    string `json:"sku"`
	Name   string `json:"name"`
	Tier   string `json:"tier,omitempty"`
	Amount int64  `json:"amount"`
	Unit   string `json:"unit,omitempty"`
}

// PricingQuote is the result of a pricing query.
type PricingQuote struct {
	Query    string      `json:"query,omitempty"`
	Currency string      `json:"currency"`
	Items    []PriceItem `json:"items"`
}
