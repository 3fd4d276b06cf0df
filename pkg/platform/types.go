// Package platform provides the narrow gateway contract for the code
// hosting platform API, a REST client implementing it, and a caching
// layer that keeps team and membership reads off the rate-limited API.
package platform

import (
	"context"
	"fmt"
)

// Team membership roles accepted by member list queries.
const (
	RoleAll        = "all"
	RoleMember     = "member"
	RoleMaintainer = "maintainer"
)

// Organization membership states as reported by the platform.
const (
	MembershipStateActive  = "active"
	MembershipStatePending = "pending"
)

// UserDetails is the platform's view of a user account.
type UserDetails struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Type      string `json:"type,omitempty"`
}

// TeamDetails is the platform's view of a team.
type TeamDetails struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Privacy     string `json:"privacy,omitempty"`
	// OrgLogin is the owning organization when known. Teams fetched
	// directly by id may not carry it.
	OrgLogin string `json:"org_login,omitempty"`
}

// OrgMembership is a user's membership state within an organization.
type OrgMembership struct {
	State string `json:"state"`
	Role  string `json:"role"`
}

// Gateway is the boundary contract against the platform API. All calls
// are subject to the platform's rate limits; implementations own any
// timeout or retry policy.
type Gateway interface {
	// UserByID fetches account details by numeric id.
	UserByID(ctx context.Context, id int64) (*UserDetails, error)

	// UserByLogin fetches account details by login name.
	UserByLogin(ctx context.Context, login string) (*UserDetails, error)

	// TeamByID fetches team details by id alone, without an owning
	// organization.
	TeamByID(ctx context.Context, teamID int64) (*TeamDetails, error)

	// OrgMembership reports a user's membership in an organization.
	// A missing membership returns (nil, nil).
	OrgMembership(ctx context.Context, org, login string) (*OrgMembership, error)

	// OrgTeams enumerates every team in an organization, including
	// secret teams visible to the owner token.
	OrgTeams(ctx context.Context, org string) ([]*TeamDetails, error)

	// TeamMembers lists a team's members filtered by role.
	TeamMembers(ctx context.Context, teamID int64, role string) ([]*UserDetails, error)
}

// MembershipRefresher is implemented by gateways that cache membership
// reads and can bypass the cache, used during onboarding when a stale
// answer would mislead the user.
type MembershipRefresher interface {
	// OrgMembershipFresh behaves like Gateway.OrgMembership but skips
	// and repopulates any cache layers.
	OrgMembershipFresh(ctx context.Context, org, login string) (*OrgMembership, error)
}

// APIError is a non-success response from the platform API.
type APIError struct {
	StatusCode int
	Body       string
	Operation  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform API %s returned HTTP %d", e.Operation, e.StatusCode)
}

// IsNotFound reports whether an error is a 404 from the platform API.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 404
}
