package builtins

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
	"github.com/soyeahso/actiongw/internal/store"
)

// maxMemoryText bounds a single saved memory.
const maxMemoryText = 4000

// RegisterMemory registers memory.save and memory.collective.
func RegisterMemory(reg *registry.Registry, deps Deps) error {
	if deps.Memories == nil {
		return errors.New("memory: no memory store")
	}
	m := deps.Memories

	if err := reg.Register(registry.Entry{
		Key:         "memory.save",
		Module:      "memory",
		Description: "Save a note to the session's memory",
		Handler: registry.Typed(func(ctx context.Context, p normalize.MemoryParams, hc registry.HandlerContext) (domain.MemoryRecord, error) {
			return saveMemory(ctx, m, store.ScopeSession, p.Text, p.Tags, hc)
		}),
	}); err != nil {
		return err
	}

	return reg.Register(registry.Entry{
		Key:          "memory.collective",
		Module:       "memory",
		Description:  "Search or add to the shared knowledge base",
		RequiresAuth: true,
		Handler: registry.Typed(func(ctx context.Context, p normalize.CollectiveParams, hc registry.HandlerContext) (domain.CollectiveResult, error) {
			if p.Mode == normalize.ModeSave {
				rec, err := saveMemory(ctx, m, store.ScopeCollective, p.Text, p.Tags, hc)
				if err != nil {
					return domain.CollectiveResult{}, err
				}
				return domain.CollectiveResult{Saved: &rec}, nil
			}

			matches, err := m.Search(ctx, store.ScopeCollective, p.Query, p.Limit)
			if err != nil {
				return domain.CollectiveResult{}, err
			}
			return domain.CollectiveResult{Query: p.Query, Matches: matches}, nil
		}),
	})
}

func saveMemory(ctx context.Context, m *store.MemoryStore, scope, text string, tags []string, hc registry.HandlerContext) (domain.MemoryRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.MemoryRecord{}, invalid("empty memory text")
	}
	if len(text) > maxMemoryText {
		return domain.MemoryRecord{}, invalid("memory text longer than %d bytes", maxMemoryText)
	}
	return m.Save(ctx, domain.MemoryRecord{
		SessionID: hc.SessionID(),
		Scope:     scope,
		Text:      text,
		Tags:      tags,
	})
}
