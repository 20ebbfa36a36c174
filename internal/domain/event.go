package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Idempotency key length bounds, inclusive.
const (
	MinIdempotencyKeyLen = 6
	MaxIdempotencyKeyLen = 64
	MaxSessionIDLen      = 256
)

// EventRequest is a single client event submitted to the gateway.
// An empty IdempotencyKey means the client did not send one.
type EventRequest struct {
	SessionID      string          `json:"sessionId"`
	Action         string          `json:"action"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Meta           *EventMeta      `json:"meta,omitempty"`
}

// EventMeta carries optional client context alongside the payload.
type EventMeta struct {
	Channel             string        `json:"channel,omitempty"`
	User                string        `json:"user,omitempty"`
	Origin              string        `json:"origin,omitempty"`
	ConversationHistory []HistoryTurn `json:"conversation_history,omitempty"`
}

// UnmarshalJSON accepts both conversation_history and conversationHistory,
// since web and messaging clients disagree on the casing.
func (m *EventMeta) UnmarshalJSON(data []byte) error {
	type plain EventMeta
	var aux struct {
		plain
		CamelHistory []HistoryTurn `json:"conversationHistory,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = EventMeta(aux.plain)
	if len(m.ConversationHistory) == 0 && len(aux.CamelHistory) > 0 {
		m.ConversationHistory = aux.CamelHistory
	}
	return nil
}

// HistoryTurn is one prior turn of a conversation supplied by the client.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MetaOrEmpty returns the event meta, or a zero value when absent.
func (r EventRequest) MetaOrEmpty() EventMeta {
	if r.Meta == nil {
		return EventMeta{}
	}
	return *r.Meta
}

// FieldIssue describes one structural problem with an event.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldIssue) String() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// ValidationError is returned when an event fails structural validation.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

// Validate checks the shape of the event. Membership of Action in the
// action enum is a policy question and is not checked here.
func (r EventRequest) Validate() error {
	var issues []FieldIssue

	sid := strings.TrimSpace(r.SessionID)
	switch {
	case sid == "":
		issues = append(issues, FieldIssue{Field: "sessionId", Message: "is required"})
	case len(r.SessionID) > MaxSessionIDLen:
		issues = append(issues, FieldIssue{
			Field:   "sessionId",
			Message: fmt.Sprintf("must be at most %d characters", MaxSessionIDLen),
		})
	case strings.ContainsFunc(r.SessionID, unicode.IsControl):
		issues = append(issues, FieldIssue{Field: "sessionId", Message: "must not contain control characters"})
	}

	if strings.TrimSpace(r.Action) == "" {
		issues = append(issues, FieldIssue{Field: "action", Message: "is required"})
	}

	if r.IdempotencyKey != "" {
		n := len(r.IdempotencyKey)
		if n < MinIdempotencyKeyLen || n > MaxIdempotencyKeyLen {
			issues = append(issues, FieldIssue{
				Field: "idempotencyKey",
				Message: fmt.Sprintf("must be %d-%d characters, got %d",
					MinIdempotencyKeyLen, MaxIdempotencyKeyLen, n),
			})
		}
	}

	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		issues = append(issues, FieldIssue{Field: "payload", Message: "must be valid JSON"})
	}

	if r.Meta != nil && r.Meta.Channel != "" {
		if _, ok := ParseChannel(r.Meta.Channel); !ok {
			issues = append(issues, FieldIssue{
				Field:   "meta.channel",
				Message: fmt.Sprintf("must be one of %v, got %q", AllChannels, r.Meta.Channel),
			})
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
