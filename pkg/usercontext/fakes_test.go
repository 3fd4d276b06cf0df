package usercontext

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/links"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
)

// fakeStore is an in-memory links.Store that records its queries.
type fakeStore struct {
	mu          sync.Mutex
	byDirectory map[string][]*links.Link
	byPlatform  map[string]*links.Link

	directoryErr error
	platformErr  error

	idQueries [][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byDirectory: make(map[string][]*links.Link),
		byPlatform:  make(map[string]*links.Link),
	}
}

func (s *fakeStore) addLink(link *links.Link) {
	s.byDirectory[link.DirectoryID] = append(s.byDirectory[link.DirectoryID], link)
	s.byPlatform[link.PlatformID] = link
}

func (s *fakeStore) FindByDirectoryID(ctx context.Context, directoryID string) ([]*links.Link, error) {
	if s.directoryErr != nil {
		return nil, s.directoryErr
	}
	return s.byDirectory[directoryID], nil
}

func (s *fakeStore) FindByPlatformIDs(ctx context.Context, platformIDs []string) ([]*links.Link, error) {
	s.mu.Lock()
	s.idQueries = append(s.idQueries, platformIDs)
	s.mu.Unlock()
	if s.platformErr != nil {
		return nil, s.platformErr
	}
	var found []*links.Link
	for _, id := range platformIDs {
		if link, ok := s.byPlatform[id]; ok {
			found = append(found, link)
		}
	}
	return found, nil
}

func (s *fakeStore) FindByPlatformID(ctx context.Context, platformID string) (*links.Link, error) {
	return s.byPlatform[platformID], nil
}

func (s *fakeStore) queries() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idQueries
}

// fakeGateway is an in-memory platform.Gateway fixture.
type fakeGateway struct {
	mu sync.Mutex

	usersByID    map[int64]*platform.UserDetails
	usersByLogin map[string]*platform.UserDetails
	teamsByID    map[int64]*platform.TeamDetails
	teamsByOrg   map[string][]*platform.TeamDetails
	members      map[string][]*platform.UserDetails
	memberships  map[string]*platform.OrgMembership

	orgTeamsErr    map[string]error
	teamMembersErr map[int64]error
	membershipErr  map[string]error
	userLoginErr   map[string]error

	calls map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		usersByID:      make(map[int64]*platform.UserDetails),
		usersByLogin:   make(map[string]*platform.UserDetails),
		teamsByID:      make(map[int64]*platform.TeamDetails),
		teamsByOrg:     make(map[string][]*platform.TeamDetails),
		members:        make(map[string][]*platform.UserDetails),
		memberships:    make(map[string]*platform.OrgMembership),
		orgTeamsErr:    make(map[string]error),
		teamMembersErr: make(map[int64]error),
		membershipErr:  make(map[string]error),
		userLoginErr:   make(map[string]error),
		calls:          make(map[string]int),
	}
}

func memberKey(teamID int64, role string) string {
	return fmt.Sprintf("%d:%s", teamID, role)
}

func (g *fakeGateway) setMembers(teamID int64, role string, members ...*platform.UserDetails) {
	g.members[memberKey(teamID, role)] = members
}

func (g *fakeGateway) record(operation string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[operation]++
}

func (g *fakeGateway) callCount(operation string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[operation]
}

func (g *fakeGateway) UserByID(ctx context.Context, id int64) (*platform.UserDetails, error) {
	g.record("user_by_id")
	if user, ok := g.usersByID[id]; ok {
		return user, nil
	}
	return nil, &platform.APIError{StatusCode: 404, Operation: "user_by_id"}
}

func (g *fakeGateway) UserByLogin(ctx context.Context, login string) (*platform.UserDetails, error) {
	g.record("user_by_login")
	if err := g.userLoginErr[login]; err != nil {
		return nil, err
	}
	if user, ok := g.usersByLogin[login]; ok {
		return user, nil
	}
	return nil, &platform.APIError{StatusCode: 404, Operation: "user_by_login"}
}

func (g *fakeGateway) TeamByID(ctx context.Context, teamID int64) (*platform.TeamDetails, error) {
	g.record("team_by_id")
	if team, ok := g.teamsByID[teamID]; ok {
		return team, nil
	}
	return nil, &platform.APIError{StatusCode: 404, Operation: "team_by_id"}
}

func (g *fakeGateway) OrgMembership(ctx context.Context, org, login string) (*platform.OrgMembership, error) {
	g.record("org_membership")
	if err := g.membershipErr[org]; err != nil {
		return nil, err
	}
	return g.memberships[org+":"+login], nil
}

func (g *fakeGateway) OrgTeams(ctx context.Context, org string) ([]*platform.TeamDetails, error) {
	g.record("org_teams")
	if err := g.orgTeamsErr[org]; err != nil {
		return nil, err
	}
	return g.teamsByOrg[org], nil
}

func (g *fakeGateway) TeamMembers(ctx context.Context, teamID int64, role string) ([]*platform.UserDetails, error) {
	g.record("team_members")
	if err := g.teamMembersErr[teamID]; err != nil {
		return nil, err
	}
	return g.members[memberKey(teamID, role)], nil
}

func testConfig(scheme string, orgs ...config.OrganizationConfig) *config.Config {
	return &config.Config{
		Authentication: config.AuthenticationConfig{Scheme: scheme},
		Organizations:  orgs,
	}
}

func newTestContextFromClaims(t *testing.T, cfg *config.Config, store links.Store, gateway platform.Gateway, user *RequestUser) *Context {
	t.Helper()
	uc, err := New(context.Background(), Options{
		Config:  cfg,
		Store:   store,
		Gateway: gateway,
		User:    user,
	})
	if err != nil {
		t.Fatalf("failed to build context: %v", err)
	}
	return uc
}
