package usercontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/links"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
)

func twoOrgConfig() *config.Config {
	return testConfig(config.SchemeGitHub,
		config.OrganizationConfig{Name: "contoso", SudoersTeamID: 900},
		config.OrganizationConfig{Name: "fabrikam"},
	)
}

func aggregateTestContext(t *testing.T, cfg *config.Config, store *fakeStore, gateway *fakeGateway) *Context {
	t.Helper()
	return newTestContextFromClaims(t, cfg, store, gateway, &RequestUser{
		GitHub: &PlatformClaims{ID: "1001", Username: "alicehub"},
	})
}

func TestMyOrganizations(t *testing.T) {
	t.Run("records each membership state in configuration order", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.memberships["contoso:alicehub"] = &platform.OrgMembership{State: platform.MembershipStateActive, Role: "member"}
		gateway.memberships["fabrikam:alicehub"] = &platform.OrgMembership{State: platform.MembershipStatePending, Role: "member"}
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), gateway)

		orgs := uc.MyOrganizations(context.Background(), true)
		require.Len(t, orgs, 2)
		assert.Equal(t, "contoso", orgs[0].Name())
		assert.Equal(t, platform.MembershipStateActive, orgs[0].MembershipState())
		assert.Equal(t, "fabrikam", orgs[1].Name())
		assert.Equal(t, platform.MembershipStatePending, orgs[1].MembershipState())
	})

	t.Run("a failing membership query never aborts the snapshot", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.memberships["contoso:alicehub"] = &platform.OrgMembership{State: platform.MembershipStateActive}
		gateway.membershipErr["fabrikam"] = &platform.APIError{StatusCode: 502, Operation: "org_membership"}
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), gateway)

		orgs := uc.MyOrganizations(context.Background(), true)
		require.Len(t, orgs, 2)
		assert.Equal(t, platform.MembershipStateActive, orgs[0].MembershipState())
		assert.Equal(t, "", orgs[1].MembershipState())
	})
}

func TestAllOrganizationTeams(t *testing.T) {
	gateway := newFakeGateway()
	gateway.teamsByOrg["contoso"] = []*platform.TeamDetails{
		{ID: 1, Name: "alpha", OrgLogin: "contoso"},
		{ID: 2, Name: "beta", OrgLogin: "contoso"},
	}
	gateway.teamsByOrg["fabrikam"] = []*platform.TeamDetails{
		{ID: 3, Name: "gamma", OrgLogin: "fabrikam"},
	}

	t.Run("concatenates in organization order", func(t *testing.T) {
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), gateway)
		teams, err := uc.AllOrganizationTeams(context.Background())
		require.NoError(t, err)
		require.Len(t, teams, 3)
		assert.Equal(t, int64(1), teams[0].ID())
		assert.Equal(t, int64(2), teams[1].ID())
		assert.Equal(t, int64(3), teams[2].ID())
		assert.Equal(t, "contoso", teams[0].Org().Name())
		assert.Equal(t, "fabrikam", teams[2].Org().Name())
	})

	t.Run("one failing organization aborts the aggregate", func(t *testing.T) {
		failing := newFakeGateway()
		failing.teamsByOrg["contoso"] = gateway.teamsByOrg["contoso"]
		failing.orgTeamsErr["fabrikam"] = &platform.APIError{StatusCode: 500, Operation: "org_teams"}
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), failing)
		_, err := uc.AllOrganizationTeams(context.Background())
		require.Error(t, err)
	})
}

func TestMyTeamMemberships(t *testing.T) {
	alice := &platform.UserDetails{ID: 1001, Login: "alicehub"}
	bob := &platform.UserDetails{ID: 2002, Login: "bobhub"}

	gateway := newFakeGateway()
	gateway.teamsByOrg["contoso"] = []*platform.TeamDetails{
		{ID: 1, Name: "alpha", OrgLogin: "contoso"},
		{ID: 2, Name: "beta", OrgLogin: "contoso"},
	}
	gateway.teamsByOrg["fabrikam"] = []*platform.TeamDetails{
		{ID: 3, Name: "gamma", OrgLogin: "fabrikam"},
	}
	gateway.setMembers(1, platform.RoleMember, alice, bob)
	gateway.setMembers(2, platform.RoleMember, bob)
	gateway.setMembers(3, platform.RoleMember, alice)
	gateway.setMembers(1, platform.RoleMaintainer, bob)
	gateway.setMembers(2, platform.RoleMaintainer)
	gateway.setMembers(3, platform.RoleMaintainer)

	t.Run("defaults to the acting user", func(t *testing.T) {
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), gateway)
		teams, err := uc.MyTeamMemberships(context.Background(), platform.RoleMember, "")
		require.NoError(t, err)
		ids := teamIDs(teams)
		assert.ElementsMatch(t, []int64{1, 3}, ids)
	})

	t.Run("role filter excludes plain members", func(t *testing.T) {
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), gateway)
		teams, err := uc.MyTeamMemberships(context.Background(), platform.RoleMaintainer, "")
		require.NoError(t, err)
		assert.Empty(t, teams)
	})

	t.Run("explicit target overrides the acting user", func(t *testing.T) {
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), gateway)
		teams, err := uc.MyTeamMemberships(context.Background(), platform.RoleMaintainer, "2002")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1}, teamIDs(teams))
	})

	t.Run("a failing team aborts the walk", func(t *testing.T) {
		failing := newFakeGateway()
		failing.teamsByOrg["contoso"] = gateway.teamsByOrg["contoso"]
		failing.teamsByOrg["fabrikam"] = gateway.teamsByOrg["fabrikam"]
		failing.setMembers(1, platform.RoleMember, alice)
		failing.setMembers(3, platform.RoleMember, alice)
		failing.teamMembersErr[2] = &platform.APIError{StatusCode: 502, Operation: "team_members"}
		uc := aggregateTestContext(t, twoOrgConfig(), newFakeStore(), failing)
		_, err := uc.MyTeamMemberships(context.Background(), platform.RoleMember, "")
		require.Error(t, err)
	})
}

func TestAllMaintainers(t *testing.T) {
	maude := &platform.UserDetails{ID: 5001, Login: "maude"}
	marvin := &platform.UserDetails{ID: 5002, Login: "marvin"}

	gateway := newFakeGateway()
	gateway.teamsByOrg["contoso"] = []*platform.TeamDetails{
		{ID: 1, Name: "alpha", OrgLogin: "contoso"},
		{ID: 2, Name: "beta", OrgLogin: "contoso"},
	}
	gateway.teamsByOrg["fabrikam"] = []*platform.TeamDetails{
		{ID: 3, Name: "gamma", OrgLogin: "fabrikam"},
	}
	// maude maintains both contoso teams; marvin maintains one team in
	// each organization.
	gateway.setMembers(1, platform.RoleMaintainer, maude, marvin)
	gateway.setMembers(2, platform.RoleMaintainer, maude)
	gateway.setMembers(3, platform.RoleMaintainer, marvin)

	t.Run("deduplicates by user across teams and organizations", func(t *testing.T) {
		store := newFakeStore()
		store.addLink(&links.Link{PlatformID: "5001", PlatformUsername: "maude", DirectoryUsername: "maude@contoso.com"})
		uc := aggregateTestContext(t, twoOrgConfig(), store, gateway)

		maintainers, err := uc.AllMaintainers(context.Background())
		require.NoError(t, err)
		require.Len(t, maintainers, 2)

		byLogin := make(map[string]*Maintainer)
		for _, m := range maintainers {
			byLogin[m.User.Login()] = m
		}
		require.Contains(t, byLogin, "maude")
		require.Contains(t, byLogin, "marvin")

		assert.Equal(t, []int64{1, 2}, byLogin["maude"].TeamIDs)
		assert.Equal(t, []int64{1, 3}, byLogin["marvin"].TeamIDs)

		require.NotNil(t, byLogin["maude"].User.Link())
		assert.Equal(t, "maude@contoso.com", byLogin["maude"].User.Link().DirectoryUsername)
		assert.Nil(t, byLogin["marvin"].User.Link())

		assert.Same(t, uc.User("5001"), byLogin["maude"].User, "maintainer handles are the memoized handles")
	})

	t.Run("link resolution failure aborts", func(t *testing.T) {
		store := newFakeStore()
		store.platformErr = &links.TransportError{StatusCode: 503}
		uc := aggregateTestContext(t, twoOrgConfig(), store, gateway)
		_, err := uc.AllMaintainers(context.Background())
		require.True(t, IsStorageFailure(err))
	})
}

func teamIDs(teams []*Team) []int64 {
	ids := make([]int64, 0, len(teams))
	for _, team := range teams {
		ids = append(ids, team.ID())
	}
	return ids
}
