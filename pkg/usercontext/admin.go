package usercontext

import (
	"context"
	"fmt"
)

// IsPortalAdministrator determines whether the acting user administers
// the portal. A distinguished sudoers team on the primary organization
// is used rather than the platform's own admin flag, to reduce REST
// calls against the rate-limited API. A query failure is never treated
// as "not an admin": callers must distinguish the error from a negative
// result.
func (c *Context) IsPortalAdministrator(ctx context.Context) (bool, error) {
	org, err := c.Org("")
	if err != nil {
		return false, &AdminCheckFailedError{Err: err}
	}
	team := org.SudoersTeam()
	if team.ID() == 0 {
		return false, &AdminCheckFailedError{Err: fmt.Errorf("no sudoers team is configured for the %s organization", org.Name())}
	}
	isMember, err := team.HasMember(ctx, c.Platform.ID)
	if err != nil {
		return false, &AdminCheckFailedError{Err: err}
	}
	return isMember, nil
}
