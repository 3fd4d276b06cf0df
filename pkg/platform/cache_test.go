package platform

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGateway returns canned answers and counts upstream calls.
type countingGateway struct {
	mu    sync.Mutex
	calls map[string]int

	teams       map[string][]*TeamDetails
	members     map[string][]*UserDetails
	memberships map[string]*OrgMembership
}

func newCountingGateway() *countingGateway {
	return &countingGateway{
		calls:       make(map[string]int),
		teams:       make(map[string][]*TeamDetails),
		members:     make(map[string][]*UserDetails),
		memberships: make(map[string]*OrgMembership),
	}
}

func (g *countingGateway) count(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
}

func (g *countingGateway) callCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *countingGateway) UserByID(ctx context.Context, id int64) (*UserDetails, error) {
	g.count("user_by_id")
	return &UserDetails{ID: id}, nil
}

func (g *countingGateway) UserByLogin(ctx context.Context, login string) (*UserDetails, error) {
	g.count("user_by_login")
	return &UserDetails{Login: login}, nil
}

func (g *countingGateway) TeamByID(ctx context.Context, teamID int64) (*TeamDetails, error) {
	g.count("team_by_id")
	return &TeamDetails{ID: teamID}, nil
}

func (g *countingGateway) OrgMembership(ctx context.Context, org, login string) (*OrgMembership, error) {
	g.count("org_membership")
	return g.memberships[org+":"+login], nil
}

func (g *countingGateway) OrgTeams(ctx context.Context, org string) ([]*TeamDetails, error) {
	g.count("org_teams")
	return g.teams[org], nil
}

func (g *countingGateway) TeamMembers(ctx context.Context, teamID int64, role string) ([]*UserDetails, error) {
	g.count("team_members")
	return g.members[fmt.Sprintf("%d:%s", teamID, role)], nil
}

func TestCachedGatewayOrgTeams(t *testing.T) {
	ctx := context.Background()

	t.Run("second read is served from cache", func(t *testing.T) {
		upstream := newCountingGateway()
		upstream.teams["contoso"] = []*TeamDetails{{ID: 1, Name: "alpha"}}
		cached := NewCachedGateway(upstream, nil, "portal", nil, nil)

		first, err := cached.OrgTeams(ctx, "contoso")
		require.NoError(t, err)
		second, err := cached.OrgTeams(ctx, "contoso")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, upstream.callCount("org_teams"))
	})

	t.Run("redis layer survives a fresh in-process cache", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		upstream := newCountingGateway()
		upstream.teams["contoso"] = []*TeamDetails{{ID: 1, Name: "alpha", Slug: "alpha"}}

		warm := NewCachedGateway(upstream, client, "portal", nil, nil)
		_, err := warm.OrgTeams(ctx, "contoso")
		require.NoError(t, err)

		// A second process with an empty LRU reads through redis, never
		// reaching the upstream again.
		cold := NewCachedGateway(upstream, client, "portal", nil, nil)
		teams, err := cold.OrgTeams(ctx, "contoso")
		require.NoError(t, err)
		require.Len(t, teams, 1)
		assert.Equal(t, "alpha", teams[0].Slug)
		assert.Equal(t, 1, upstream.callCount("org_teams"))
	})

	t.Run("undecodable redis entry falls through to upstream", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		require.NoError(t, mr.Set("portal.teams:contoso", "{not json"))

		upstream := newCountingGateway()
		upstream.teams["contoso"] = []*TeamDetails{{ID: 1}}
		cached := NewCachedGateway(upstream, client, "portal", nil, nil)

		teams, err := cached.OrgTeams(ctx, "contoso")
		require.NoError(t, err)
		assert.Len(t, teams, 1)
		assert.Equal(t, 1, upstream.callCount("org_teams"))

		replaced, err := mr.Get("portal.teams:contoso")
		require.NoError(t, err)
		assert.NotEqual(t, "{not json", replaced, "the bad entry is replaced with a good one")
	})
}

func TestCachedGatewayTeamMembers(t *testing.T) {
	ctx := context.Background()
	upstream := newCountingGateway()
	upstream.members["7:member"] = []*UserDetails{{ID: 1001, Login: "alicehub"}}
	upstream.members["7:all"] = []*UserDetails{{ID: 1001, Login: "alicehub"}, {ID: 2002, Login: "bobhub"}}
	cached := NewCachedGateway(upstream, nil, "portal", nil, nil)

	t.Run("cached per team and role", func(t *testing.T) {
		members, err := cached.TeamMembers(ctx, 7, RoleMember)
		require.NoError(t, err)
		assert.Len(t, members, 1)
		_, err = cached.TeamMembers(ctx, 7, RoleMember)
		require.NoError(t, err)
		assert.Equal(t, 1, upstream.callCount("team_members"))

		// A different role is a different cache entry.
		all, err := cached.TeamMembers(ctx, 7, RoleAll)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, 2, upstream.callCount("team_members"))
	})

	t.Run("empty role defaults to all", func(t *testing.T) {
		all, err := cached.TeamMembers(ctx, 7, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, 2, upstream.callCount("team_members"), "shares the all-role cache entry")
	})
}

func TestCachedGatewayOrgMembership(t *testing.T) {
	ctx := context.Background()

	t.Run("membership answers are cached, including negatives", func(t *testing.T) {
		upstream := newCountingGateway()
		upstream.memberships["contoso:alicehub"] = &OrgMembership{State: MembershipStateActive, Role: "member"}
		cached := NewCachedGateway(upstream, nil, "portal", nil, nil)

		membership, err := cached.OrgMembership(ctx, "contoso", "alicehub")
		require.NoError(t, err)
		require.NotNil(t, membership)
		_, err = cached.OrgMembership(ctx, "contoso", "alicehub")
		require.NoError(t, err)
		assert.Equal(t, 1, upstream.callCount("org_membership"))

		// Not a member caches too.
		none, err := cached.OrgMembership(ctx, "contoso", "stranger")
		require.NoError(t, err)
		assert.Nil(t, none)
		_, err = cached.OrgMembership(ctx, "contoso", "stranger")
		require.NoError(t, err)
		assert.Equal(t, 2, upstream.callCount("org_membership"))
	})

	t.Run("fresh read bypasses and repopulates the cache", func(t *testing.T) {
		upstream := newCountingGateway()
		cached := NewCachedGateway(upstream, nil, "portal", nil, nil)

		_, err := cached.OrgMembership(ctx, "contoso", "alicehub")
		require.NoError(t, err)

		// The user accepts their invitation out of band.
		upstream.memberships["contoso:alicehub"] = &OrgMembership{State: MembershipStateActive}

		fresh, err := cached.OrgMembershipFresh(ctx, "contoso", "alicehub")
		require.NoError(t, err)
		require.NotNil(t, fresh)
		assert.Equal(t, 2, upstream.callCount("org_membership"))

		// The fresh answer replaced the cached negative.
		cachedAnswer, err := cached.OrgMembership(ctx, "contoso", "alicehub")
		require.NoError(t, err)
		require.NotNil(t, cachedAnswer)
		assert.Equal(t, 2, upstream.callCount("org_membership"))
	})
}

func TestCachedGatewayPassThrough(t *testing.T) {
	ctx := context.Background()
	upstream := newCountingGateway()
	cached := NewCachedGateway(upstream, nil, "portal", nil, nil)

	for i := 0; i < 2; i++ {
		_, err := cached.UserByID(ctx, 5)
		require.NoError(t, err)
		_, err = cached.UserByLogin(ctx, "alicehub")
		require.NoError(t, err)
		_, err = cached.TeamByID(ctx, 7)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, upstream.callCount("user_by_id"))
	assert.Equal(t, 2, upstream.callCount("user_by_login"))
	assert.Equal(t, 2, upstream.callCount("team_by_id"))
}
