package builtins

import (
	"context"
	"strings"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/normalize"
	"github.com/soyeahso/actiongw/internal/registry"
)

// Team is the static team directory searched by team.search.
var Team = []domain.TeamMember{
	{ID: "t-01", Name: "Ayu Lestari", Role: "Account Manager", Skills: []string{"sales", "onboarding", "retail"}},
	{ID: "t-02", Name: "Budi Santoso", Role: "Backend Engineer", Skills: []string{"go", "postgres", "integrations"}},
	{ID: "t-03", Name: "Citra Dewi", Role: "Product Designer", Skills: []string{"ux", "figma", "research"}},
	{ID: "t-04", Name: "Dimas Pratama", Role: "Customer Support Lead", Skills: []string{"support", "whatsapp", "training"}},
	{ID: "t-05", Name: "Eka Putri", Role: "Data Analyst", Skills: []string{"sql", "reporting", "forecasting"}},
	{ID: "t-06", Name: "Fajar Nugroho", Role: "Solutions Consultant", Skills: []string{"pricing", "enterprise", "demos"}},
}

// RegisterTeam registers team.search.
func RegisterTeam(reg *registry.Registry, _ Deps) error {
	return reg.Register(registry.Entry{
		Key:         "team.search",
		Module:      "team",
		Description: "Search the team directory by name, role or skill",
		Handler:     registry.Typed(teamSearch),
	})
}

func teamSearch(_ context.Context, p normalize.SearchParams, _ registry.HandlerContext) (domain.TeamResults, error) {
	q := strings.ToLower(strings.TrimSpace(p.Query))
	limit := p.Limit
	if limit <= 0 {
		limit = normalize.DefaultLimit
	}

	members := []domain.TeamMember{}
	for _, m := range Team {
		if len(members) >= limit {
			break
		}
		if q == "" || memberMatches(m, q) {
			members = append(members, m)
		}
	}
	return domain.TeamResults{Query: p.Query, Members: members}, nil
}

func memberMatches(m domain.TeamMember, q string) bool {
	if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.Role), q) {
		return true
	}
	for _, s := range m.Skills {
		if strings.Contains(s, q) {
			return true
		}
	}
	return false
}
