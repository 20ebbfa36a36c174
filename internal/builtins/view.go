package builtins

import (
	"context"
	"net/url"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
)

// Views maps every route the client may navigate to onto its title.
var Views = map[string]string{
	"/":         "Home",
	"/chat":     "Chat",
	"/pricing":  "Pricing",
	"/team":     "Our team",
	"/contact":  "Contact us",
	"/memories": "Memories",
	"/settings": "Settings",
}

// RegisterView registers view.open.
func RegisterView(reg *registry.Registry, _ Deps) error {
	return reg.Register(registry.Entry{
		Key:         "view.open",
		Module:      "view",
		Description: "Navigate the client to an allowed view",
		Handler:     registry.Typed(viewOpen),
	})
}

func viewOpen(_ context.Context, p normalize.ViewParams, _ registry.HandlerContext) (domain.ViewTarget, error) {
	route := strings.TrimSpace(p.Route)
	if route == "" {
		route = "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	route = strings.ToLower(route)

	title, ok := Views[route]
	if !ok {
		return domain.ViewTarget{}, invalid("unknown view %q", p.Route)
	}

	if len(p.Params) > 0 {
		q := url.Values{}
		for k, v := range p.Params {
			q.Set(k, v)
		}
		route += "?" + q.Encode()
	}
	return domain.ViewTarget{Route: route, Title: title}, nil
}
