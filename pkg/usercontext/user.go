package usercontext

import (
	"context"
	"strconv"
	"sync"

	"github.com/turner-mzeller/GitHubPortal/pkg/links"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
)

// User is a context-scoped proxy for one platform user account. Handles
// are memoized per context by id; the id is immutable after construction
// and only the cached detail payload and attached link mutate.
type User struct {
	ctx *Context
	id  string

	mu      sync.Mutex
	login   string
	details *platform.UserDetails
	link    *links.Link
}

// ID returns the platform user id, stringified.
func (u *User) ID() string {
	return u.id
}

// Login returns the platform username when known.
func (u *User) Login() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.login
}

func (u *User) setLogin(login string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.login == "" {
		u.login = login
	}
}

// Link returns the user's identity link when one has been resolved.
func (u *User) Link() *links.Link {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.link
}

func (u *User) setLink(link *links.Link) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.link = link
	if u.login == "" && link != nil {
		u.login = link.PlatformUsername
	}
}

// Details returns the user's profile payload, fetching it by id on the
// first call loaded through this handle.
func (u *User) Details(ctx context.Context) (*platform.UserDetails, error) {
	u.mu.Lock()
	if u.details != nil {
		defer u.mu.Unlock()
		return u.details, nil
	}
	u.mu.Unlock()

	id, err := strconv.ParseInt(u.id, 10, 64)
	if err != nil {
		return nil, ErrMissingIdentifier
	}
	details, err := u.ctx.gateway.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.applyDetails(details)
	return details, nil
}

// DetailsByLogin fetches the user's live profile by username. A user who
// left the platform surfaces here as an error the caller may choose to
// ignore.
func (u *User) DetailsByLogin(ctx context.Context) (*platform.UserDetails, error) {
	login := u.Login()
	if login == "" {
		return nil, ErrMissingIdentifier
	}
	details, err := u.ctx.gateway.UserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	u.applyDetails(details)
	return details, nil
}

func (u *User) applyDetails(details *platform.UserDetails) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.details = details
	if u.login == "" && details != nil {
		u.login = details.Login
	}
}
