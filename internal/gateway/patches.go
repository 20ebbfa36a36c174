package gateway

import (
	"fmt"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
)

// Patch targets understood by the client.
const (
	TargetMessages          = "messages"
	TargetMemories          = "memories"
	TargetCollective        = "collective"
	TargetCollectiveResults = "collective.results"
	TargetTeamResults       = "team.results"
	TargetPricingItems      = "pricing.items"
	TargetToolResults       = "tools.results"
)

const ungroundedNotice = "This answer may not be accurate. Please double-check with our team."

// buildPatches turns a handler result into the ordered patch list for the
// action. Results of an unexpected type are passed through as a state patch.
func (g *Gateway) buildPatches(action domain.Action, params, result any) []domain.Patch {
	switch r := result.(type) {
	case domain.ChatReply:
		return g.chatPatches(params, r)

	case domain.ToolOutput:
		var args any
		if p, ok := params.(normalize.ToolParams); ok {
			args = p.Args
		}
		return []domain.Patch{
			domain.Tool(r.Name, args),
			domain.Append(TargetToolResults, r),
		}

	case domain.ViewTarget:
		patches := []domain.Patch{domain.Navigate(r.Route)}
		if r.Title != "" {
			patches = append(patches, domain.Set("view.title", r.Title))
		}
		return patches

	case domain.MemoryRecord:
		return []domain.Patch{
			domain.Append(TargetMemories, r),
			domain.Notify(domain.LevelSuccess, "Saved to memory."),
		}

	case domain.LeadRecord:
		return []domain.Patch{
			domain.Set("lead.id", r.ID),
			domain.Notify(domain.LevelSuccess, "Thanks! Our team will contact you soon."),
		}

	case domain.LanguageChoice:
		return []domain.Patch{
			domain.Set("language", r.Code),
			domain.Notify(domain.LevelInfo, fmt.Sprintf("Language set to %s.", r.Name)),
		}

	case domain.TeamResults:
		return []domain.Patch{domain.Replace(TargetTeamResults, r.Members)}

	case domain.PricingQuote:
		return []domain.Patch{
			domain.Replace(TargetPricingItems, r.Items),
			domain.Set("pricing.currency", r.Currency),
		}

	case domain.CollectiveResult:
		if r.Saved != nil {
			return []domain.Patch{
				domain.Append(TargetCollective, *r.Saved),
				domain.Notify(domain.LevelSuccess, "Shared with the team."),
			}
		}
		return []domain.Patch{domain.Replace(TargetCollectiveResults, r.Matches)}

	default:
		g.log.Debug().
			Str("action", string(action)).
			Str("type", fmt.Sprintf("%T", result)).
			Msg("no patch builder for result, sending state")
		return []domain.Patch{domain.State(result)}
	}
}

// chatPatches appends the user turn and the reply, then a warning when the
// validator does not trust the reply.
func (g *Gateway) chatPatches(params any, r domain.ChatReply) []domain.Patch {
	var query string
	if p, ok := params.(normalize.ChatParams); ok {
		query = p.Query
	}

	patches := []domain.Patch{
		domain.Append(TargetMessages, domain.ChatMessage{Role: "user", Content: query}),
		domain.Append(TargetMessages, domain.ChatMessage{Role: "assistant", Content: r.Reply}),
	}

	if g.validator != nil {
		report := g.validator.Validate(r.Reply, r.Sources)
		if g.validator.Flag(report) {
			g.log.Debug().
				Float64("confidence", report.Confidence).
				Strs("reasons", report.Reasons).
				Msg("reply below confidence threshold")
			patches = append(patches, domain.Notify(domain.LevelWarn, ungroundedNotice))
		}
	}
	return patches
}
