// Package domain holds the types shared by every layer of the action gateway:
// the closed action and channel enums, the inbound event shape, sessions,
// patches and the response envelope.
package domain

// Action is a named client intent accepted by the gateway.
type Action string

const (
	ActionChatSend         Action = "chat_send"
	ActionToolRun          Action = "tool_run"
	ActionOpenView         Action = "open_view"
	ActionMemorySave       Action = "memory_save"
	ActionLeadSave         Action = "lead_save"
	ActionSetLanguage      Action = "set_language"
	ActionTeamSearch       Action = "team_search"
	ActionPricingQuery     Action = "pricing_query"
	ActionCollectiveMemory Action = "collective_memory"
)

// AllActions lists every action in declaration order.
var AllActions = []Action{
	ActionChatSend,
	ActionToolRun,
	ActionOpenView,
	ActionMemorySave,
	ActionLeadSave,
	ActionSetLanguage,
	ActionTeamSearch,
	ActionPricingQuery,
	ActionCollectiveMemory,
}

// Valid reports whether a is a member of the action enum.
func (a Action) Valid() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAction converts a raw action name, reporting whether it is known.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	return a, a.Valid()
}
