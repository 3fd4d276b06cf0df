package usercontext

import (
	"context"
	"sync"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
)

// Org is a context-scoped proxy for one managed platform organization.
// Handles are memoized per context; the name is immutable after
// construction and only cached payloads mutate.
type Org struct {
	ctx      *Context
	name     string
	settings config.OrganizationConfig

	mu              sync.Mutex
	membershipState string
}

// Name returns the organization's configured name.
func (o *Org) Name() string {
	return o.name
}

// Settings returns the organization's configuration entry.
func (o *Org) Settings() config.OrganizationConfig {
	return o.settings
}

// MembershipState returns the acting user's membership state as recorded
// by the most recent organization snapshot, or empty when none has run.
func (o *Org) MembershipState() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.membershipState
}

func (o *Org) setMembershipState(state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.membershipState = state
}

// QueryMembership reports the acting user's membership in this
// organization. Passing allowCaching=false bypasses the gateway's cache
// layers, used during onboarding.
func (o *Org) QueryMembership(ctx context.Context, allowCaching bool) (*platform.OrgMembership, error) {
	login := o.ctx.Platform.Username
	if !allowCaching {
		if refresher, ok := o.ctx.gateway.(platform.MembershipRefresher); ok {
			return refresher.OrgMembershipFresh(ctx, o.name, login)
		}
	}
	return o.ctx.gateway.OrgMembership(ctx, o.name, login)
}

// Teams enumerates this organization's teams, including secret teams.
// The gateway caches this enumeration.
func (o *Org) Teams(ctx context.Context) ([]*Team, error) {
	details, err := o.ctx.gateway.OrgTeams(ctx, o.name)
	if err != nil {
		return nil, err
	}
	teams := make([]*Team, 0, len(details))
	for _, d := range details {
		teams = append(teams, &Team{ctx: o.ctx, org: o, id: d.ID, details: d})
	}
	return teams, nil
}

// SudoersTeam returns the handle for this organization's configured
// sudoers team. The returned handle is not hydrated.
func (o *Org) SudoersTeam() *Team {
	return &Team{ctx: o.ctx, org: o, id: o.settings.SudoersTeamID}
}
