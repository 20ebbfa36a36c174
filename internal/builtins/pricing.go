package builtins

import (
	"context"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
)

// Catalogue is the static price list, amounts in IDR.
var Catalogue = []domain.PriceItem{
	{SKU: "plan-starter", Name: "Starter plan", Tier: "starter", Amount: 150000, Unit: "month"},
	{SKU: "plan-growth", Name: "Growth plan", Tier: "growth", Amount: 450000, Unit: "month"},
	{SKU: "plan-enterprise", Name: "Enterprise plan", Tier: "enterprise", Amount: 2500000, Unit: "month"},
	{SKU: "addon-whatsapp", Name: "WhatsApp channel add-on", Tier: "growth", Amount: 100000, Unit: "month"},
	{SKU: "addon-seat", Name: "Extra agent seat", Tier: "starter", Amount: 50000, Unit: "seat/month"},
	{SKU: "svc-setup", Name: "Guided setup", Amount: 750000, Unit: "once"},
}

// RegisterPricing registers pricing.query.
func RegisterPricing(reg *registry.Registry, _ Deps) error {
	return reg.Register(registry.Entry{
		Key:         "pricing.query",
		Module:      "pricing",
		Description: "Look up prices from the catalogue",
		Handler:     registry.Typed(pricingQuery),
	})
}

func pricingQuery(_ context.Context, p normalize.PricingParams, _ registry.HandlerContext) (domain.PricingQuote, error) {
	currency := strings.ToUpper(p.Currency)
	if currency == "" {
		currency = normalize.DefaultCurrency
	}
	if currency != normalize.DefaultCurrency {
		return domain.PricingQuote{}, invalid("prices are only quoted in %s", normalize.DefaultCurrency)
	}

	q := strings.ToLower(strings.TrimSpace(p.Query))
	tier := strings.ToLower(strings.TrimSpace(p.Tier))

	items := []domain.PriceItem{}
	for _, it := range Catalogue {
		if tier != "" && it.Tier != tier {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) && !strings.Contains(it.SKU, q) {
			continue
		}
		items = append(items, it)
	}
	return domain.PricingQuote{Query: p.Query, Currency: currency, Items: items}, nil
}
