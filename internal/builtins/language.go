package builtins

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
)

var supportedLanguages = map[string]string{
	"en": "English",
	"id": "Bahasa Indonesia",
	"ms": "Bahasa Melayu",
	"zh": "Chinese",
	"ja": "Japanese",
	"ar": "Arabic",
}

// RegisterLanguage registers language.set.
func RegisterLanguage(reg *registry.Registry, deps Deps) error {
	if deps.Prefs == nil {
		return errors.New("language: no prefs store")
	}
	prefs := deps.Prefs

	return reg.Register(registry.Entry{
		Key:         "language.set",
		Module:      "language",
		Description: "Set the session's reply language",
		Handler: registry.Typed(func(ctx context.Context, p normalize.LanguageParams, hc registry.HandlerContext) (domain.LanguageChoice, error) {
			code := languageCode(p.Code)
			name, ok := supportedLanguages[code]
			if !ok {
				return domain.LanguageChoice{}, invalid("unsupported language %q", p.Code)
			}
			if err := prefs.SetLanguage(ctx, hc.SessionID(), code); err != nil {
				return domain.LanguageChoice{}, err
			}
			return domain.LanguageChoice{Code: code, Name: name}, nil
		}),
	})
}

// languageCode reduces a locale such as "id-ID" or "en_US" to its language.
func languageCode(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	return s
}
