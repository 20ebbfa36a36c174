package builtins

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
)

// RegisterLeads registers lead.save.
func RegisterLeads(reg *registry.Registry, deps Deps) error {
	if deps.Leads == nil {
		return errors.New("leads: no lead store")
	}
	leads := deps.Leads

	return reg.Register(registry.Entry{
		Key:         "lead.save",
		Module:      "leads",
		Description: "Capture a sales lead",
		Handler: registry.Typed(func(ctx context.Context, p normalize.LeadParams, hc registry.HandlerContext) (domain.LeadRecord, error) {
			lead, err := cleanLead(p)
			if err != nil {
				return domain.LeadRecord{}, err
			}
			lead.SessionID = hc.SessionID()
			if lead.Source == "" {
				lead.Source = string(hc.Channel())
			}
			return leads.Save(ctx, lead)
		}),
	})
}

func cleanLead(p normalize.LeadParams) (domain.LeadRecord, error) {
	lead := domain.LeadRecord{
		Name:    strings.TrimSpace(p.Name),
		Email:   strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:   cleanPhone(p.Phone),
		Company: strings.TrimSpace(p.Company),
		Note:    strings.TrimSpace(p.Note),
		Source:  strings.TrimSpace(p.Source),
	}

	if lead.Email == "" && lead.Phone == "" {
		return domain.LeadRecord{}, invalid("lead needs an email or a phone number")
	}
	if lead.Email != "" {
		addr, err := mail.ParseAddress(lead.Email)
		if err != nil || addr.Address != lead.Email {
			return domain.LeadRecord{}, invalid("invalid email %q", p.Email)
		}
	}
	if p.Phone != "" && len(strings.TrimPrefix(lead.Phone, "+")) < 6 {
		return domain.LeadRecord{}, invalid("invalid phone number %q", p.Phone)
	}
	return lead, nil
}

// cleanPhone keeps digits and a leading plus.
func cleanPhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
