package builtins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/llm"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
)

// maxHistoryTurns caps how much client history is forwarded to the model.
const maxHistoryTurns = 20

// RegisterChat registers chat.send.
func RegisterChat(reg *registry.Registry, deps Deps) error {
	if deps.LLM == nil {
		return errors.New("chat: no llm client")
	}
	return reg.Register(registry.Entry{
		Key:         "chat.send",
		Module:      "chat",
		Description: "Answer a chat message with the configured model",
		Handler: registry.Typed(func(ctx context.Context, p normalize.ChatParams, hc registry.HandlerContext) (domain.ChatReply, error) {
			return chatSend(ctx, deps, p, hc)
		}),
	})
}

func chatSend(ctx context.Context, deps Deps, p normalize.ChatParams, hc registry.HandlerContext) (domain.ChatReply, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return domain.ChatReply{}, invalid("empty chat message")
	}

	lang := p.Language
	if lang == "" && deps.Prefs != nil {
		if code, ok, err := deps.Prefs.Language(ctx, hc.SessionID()); err == nil && ok {
			lang = code
		}
	}

	req := llm.CompletionRequest{
		System:   buildSystemPrompt(deps, hc, lang),
		Messages: historyMessages(p.History, query),
	}

	resp, err := deps.LLM.Complete(ctx, req)
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("completion: %w", err)
	}

	if hc.Log != nil {
		hc.Log.Debug().
			Str("model", resp.Model).
			Int("inputTokens", resp.Usage.InputTokens).
			Int("outputTokens", resp.Usage.OutputTokens).
			Dur("duration", resp.Duration).
			Msg("chat completion")
	}

	return domain.ChatReply{
		Reply:   resp.Content,
		Sources: resp.Sources,
		Model:   resp.Model,
	}, nil
}

// historyMessages converts client history into model messages and appends
// the current query unless history already ends with it.
func historyMessages(history []domain.HistoryTurn, query string) []llm.Message {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		content := strings.TrimSpace(h.Content)
		if content == "" {
			continue
		}
		role := llm.RoleUser
		if h.Role == llm.RoleAssistant || h.Role == "bot" {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: content})
	}

	if n := len(msgs); n > 0 && msgs[n-1].Role == llm.RoleUser && msgs[n-1].Content == query {
		return msgs
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: query})
}

func buildSystemPrompt(deps Deps, hc registry.HandlerContext, lang string) string {
	var b strings.Builder

	b.WriteString("You are the customer assistant of a small business.\n")
	fmt.Fprintf(&b, "Current date: %s\n", deps.now().Format("2006-01-02"))

	if ch := hc.Channel(); ch != "" {
		fmt.Fprintf(&b, "Channel: %s\n", ch)
	}
	if user := hc.User(); user != "" {
		fmt.Fprintf(&b, "User: %s\n", user)
	}
	if name, ok := supportedLanguages[lang]; ok {
		fmt.Fprintf(&b, "Reply in %s.\n", name)
	}

	b.WriteString("\nGuidelines:\n")
	b.WriteString("- Answer only from what you know about the business.\n")
	b.WriteString("- If you are not sure, say so and offer to connect the user with the team.\n")

	if deps.System != "" {
		b.WriteString("\n")
		b.WriteString(deps.System)
		b.WriteString("\n")
	}
	return b.String()
}
