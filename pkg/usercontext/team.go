package usercontext

import (
	"context"
	"strconv"
	"sync"

	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
)

// Team is a context-scoped proxy for one platform team. Teams reached
// through an organization carry that organization; teams hydrated
// directly by id carry none. The id is immutable after construction.
type Team struct {
	ctx *Context
	// org is nil for teams constructed by id alone.
	org *Org
	id  int64

	mu      sync.Mutex
	details *platform.TeamDetails
}

// ID returns the team's platform id.
func (t *Team) ID() int64 {
	return t.id
}

// Org returns the owning organization handle, or nil for teams hydrated
// directly by id.
func (t *Team) Org() *Org {
	return t.org
}

// Name returns the team name when details have been fetched, otherwise
// the stringified id.
func (t *Team) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.details != nil {
		return t.details.Name
	}
	return strconv.FormatInt(t.id, 10)
}

// Details fetches and memoizes the team's detail payload.
func (t *Team) Details(ctx context.Context) (*platform.TeamDetails, error) {
	t.mu.Lock()
	if t.details != nil {
		defer t.mu.Unlock()
		return t.details, nil
	}
	t.mu.Unlock()

	details, err := t.ctx.gateway.TeamByID(ctx, t.id)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.details = details
	return t.details, nil
}

// Members lists the team's members filtered by role. The gateway caches
// this per-team enumeration.
func (t *Team) Members(ctx context.Context, role string) ([]*platform.UserDetails, error) {
	return t.ctx.gateway.TeamMembers(ctx, t.id, role)
}

// HasMember reports whether the given platform user id appears in the
// team's member list.
func (t *Team) HasMember(ctx context.Context, platformID string) (bool, error) {
	members, err := t.Members(ctx, platform.RoleAll)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if strconv.FormatInt(member.ID, 10) == platformID {
			return true, nil
		}
	}
	return false, nil
}
