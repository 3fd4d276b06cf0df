package usercontext

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
)

// MyOrganizations records the acting user's membership state on every
// configured organization. Individual membership queries that fail do
// not abort the snapshot; the org simply stays "not a member" and the
// first error encountered is dropped after a debug log line. Passing
// allowCaching=false bypasses the gateway caches, used during
// onboarding. The result ordering follows configuration order.
func (c *Context) MyOrganizations(ctx context.Context, allowCaching bool) []*Org {
	orgs := c.Orgs()

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error
	for _, org := range orgs {
		org := org
		wg.Add(1)
		go func() {
			defer wg.Done()
			membership, err := org.QueryMembership(ctx, allowCaching)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
			}
			state := ""
			if membership != nil {
				state = membership.State
			}
			org.setMembershipState(state)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		c.log.WithError(firstErr).Debug("organization membership snapshot dropped an error")
	}
	return orgs
}

// AllOrganizationTeams concatenates every configured organization's team
// list into one sequence, in organization order. This is not specific to
// the acting user and includes secret teams. Any single organization's
// failure aborts the aggregate.
func (c *Context) AllOrganizationTeams(ctx context.Context) ([]*Team, error) {
	orgs := c.Orgs()
	perOrg := make([][]*Team, len(orgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, org := range orgs {
		i, org := i, org
		g.Go(func() error {
			teams, err := org.Teams(gctx)
			if err != nil {
				return err
			}
			perOrg[i] = teams
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []*Team
	for _, teams := range perOrg {
		all = append(all, teams...)
	}
	return all, nil
}

// MyTeamMemberships returns the teams across all organizations whose
// role-filtered member list contains the target platform user id. An
// empty target defaults to the acting user. This walk makes heavy use of
// the gateway's per-team member cache; a cache miss costs N API calls
// for N teams. Any per-team failure aborts the operation. Result
// ordering is not guaranteed.
func (c *Context) MyTeamMemberships(ctx context.Context, role, targetID string) ([]*Team, error) {
	if targetID == "" {
		targetID = c.Platform.ID
	}
	teams, err := c.AllOrganizationTeams(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var myTeams []*Team
	g, gctx := errgroup.WithContext(ctx)
	for _, team := range teams {
		team := team
		g.Go(func() error {
			members, err := team.Members(gctx, role)
			if err != nil {
				return err
			}
			for _, member := range members {
				if strconv.FormatInt(member.ID, 10) == targetID {
					mu.Lock()
					myTeams = append(myTeams, team)
					mu.Unlock()
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return myTeams, nil
}

// Maintainer is one deduplicated team maintainer together with the ids
// of every team they maintain. The team id set lives here, outside the
// user handle, so aggregation never mutates the handle's own shape.
type Maintainer struct {
	User    *User
	TeamIDs []int64
}

// AllMaintainers returns the full set of team maintainers across all
// organizations, deduplicated by user id, each carrying the set of team
// ids where they maintain. After enumeration every unique maintainer's
// identity link is resolved; any resolution failure aborts the
// operation. Designed for tooling that needs to reach the people running
// their engineering groups through this portal. Result ordering is not
// guaranteed.
func (c *Context) AllMaintainers(ctx context.Context) ([]*Maintainer, error) {
	teams, err := c.AllOrganizationTeams(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	byID := make(map[string]*Maintainer)
	g, gctx := errgroup.WithContext(ctx)
	for _, team := range teams {
		team := team
		g.Go(func() error {
			members, err := team.Members(gctx, platform.RoleMaintainer)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, member := range members {
				id := strconv.FormatInt(member.ID, 10)
				entry, ok := byID[id]
				if !ok {
					user := c.userWithLogin(id, member.Login)
					entry = &Maintainer{User: user}
					byID[id] = entry
				}
				entry.TeamIDs = appendTeamID(entry.TeamIDs, team.ID())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	maintainers := make([]*Maintainer, 0, len(byID))
	users := make([]*User, 0, len(byID))
	for _, entry := range byID {
		sort.Slice(entry.TeamIDs, func(i, j int) bool { return entry.TeamIDs[i] < entry.TeamIDs[j] })
		maintainers = append(maintainers, entry)
		users = append(users, entry.User)
	}
	if err := c.ResolveLinks(ctx, users); err != nil {
		return nil, err
	}
	return maintainers, nil
}

func appendTeamID(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
