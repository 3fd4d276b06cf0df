// Package usercontext implements the per-request resolution context that
// reconciles a corporate directory identity and a platform identity into
// a single link, and exposes cached, batch-efficient lookups of users,
// teams and organizations built on that link.
package usercontext

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/links"
	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
)

// DirectoryIdentity is the resolved corporate directory side of the
// acting user.
type DirectoryIdentity struct {
	ObjectID    string
	Username    string
	DisplayName string
}

// PlatformIdentity is the resolved platform side of the acting user.
// The id is the platform's numeric user id, stringified.
type PlatformIdentity struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// Tokens are the acting user's platform access tokens.
type Tokens struct {
	Standard string
	Elevated string
}

// Options configures context construction. Exactly one of Link or User
// must be set.
type Options struct {
	Config  *config.Config
	Store   links.Store
	Gateway platform.Gateway
	Logger  *observability.Logger

	// Link seeds the context from an already-known identity link.
	Link *links.Link
	// User seeds the context from an inbound request's claims.
	User *RequestUser
}

// Context is the per-request orchestrator holding the resolved identity,
// the per-context handle caches and the current link. It is constructed
// fresh for every request or batch operation and never shared.
type Context struct {
	cfg     *config.Config
	store   links.Store
	gateway platform.Gateway
	log     *observability.Logger

	Directory DirectoryIdentity
	Platform  PlatformIdentity
	Tokens    Tokens

	link              *links.Link
	primaryMembership *platform.OrgMembership

	mu    sync.Mutex
	orgs  map[string]*Org
	users map[string]*User
	self  *User
}

// New builds a resolution context. Seeding from a link adopts the link
// directly; seeding from request claims runs full link resolution
// against the store.
func New(ctx context.Context, opts Options) (*Context, error) {
	if opts.Config == nil || opts.Store == nil || opts.Gateway == nil {
		return nil, fmt.Errorf("usercontext: config, store and gateway are all required")
	}
	log := opts.Logger
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	c := &Context{
		cfg:     opts.Config,
		store:   opts.Store,
		gateway: opts.Gateway,
		log:     log,
		orgs:    make(map[string]*Org),
		users:   make(map[string]*User),
	}
	if opts.Link != nil && opts.User != nil {
		return nil, ErrInvalidInput
	}
	if opts.Link != nil {
		c.applyLink(opts.Link)
		return c, nil
	}
	if opts.User != nil {
		if err := c.resolveFromClaims(ctx, opts.User); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, ErrNotInitialized
}

// Link returns the resolved identity link, or nil when the acting user
// has not linked an account yet.
func (c *Context) Link() *links.Link {
	return c.link
}

// PrimaryMembership returns the acting user's membership record on the
// primary organization, when one has been recorded.
func (c *Context) PrimaryMembership() *platform.OrgMembership {
	return c.primaryMembership
}

// SetPrimaryMembership records the acting user's primary organization
// membership for the life of this context.
func (c *Context) SetPrimaryMembership(membership *platform.OrgMembership) {
	c.primaryMembership = membership
}

// Self returns the user handle for the acting user, or nil when no
// platform identity is known.
func (c *Context) Self() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// resolveFromClaims populates the context from an inbound request's
// dual-provider claims and reconciles them against the stored link.
func (c *Context) resolveFromClaims(ctx context.Context, user *RequestUser) error {
	if user.GitHub != nil {
		c.Platform.ID = user.GitHub.ID
		c.Platform.Username = user.GitHub.Username
		c.Platform.DisplayName = user.GitHub.DisplayName
		c.Platform.AvatarURL = user.GitHub.AvatarURL
		c.Tokens.Standard = user.GitHub.AccessToken
	}
	if user.Azure != nil {
		c.Directory.ObjectID = user.Azure.ObjectID
		c.Directory.Username = user.Azure.Username
		c.Directory.DisplayName = user.Azure.DisplayName
	}

	if c.cfg.Authentication.Scheme == config.SchemeAAD && user.Azure != nil && user.Azure.ObjectID != "" {
		matches, err := c.store.FindByDirectoryID(ctx, user.Azure.ObjectID)
		if err != nil {
			return fmt.Errorf("there was a problem trying to load the link for the active user: %w", err)
		}
		if len(matches) == 0 {
			// No link yet; the caller provisions the linking flow.
			return nil
		}
		if len(matches) > 1 {
			return &TooManyLinksError{Links: matches}
		}
		link := matches[0]
		if user.GitHub != nil && user.GitHub.Username != "" &&
			link.PlatformUsername != user.GitHub.Username && link.PlatformID != user.GitHub.ID {
			return c.conflictingIdentity(link, user)
		}
		c.applyLink(link)
		return nil
	}

	if c.Platform.ID == "" {
		return &LogicError{Message: "there's a logic bug in the user context object, we cannot continue"}
	}
	self := c.userWithLogin(c.Platform.ID, c.Platform.Username)
	c.mu.Lock()
	c.self = self
	c.mu.Unlock()
	link, err := c.store.FindByPlatformID(ctx, c.Platform.ID)
	if err != nil {
		return fmt.Errorf("we were not able to retrieve information about any link for your user account at this time: %w", err)
	}
	if link != nil {
		c.applyLink(link)
	}
	return nil
}

// applyLink adopts an identity link: every identity field and both
// tokens are copied into the context, the link becomes the context's
// resolved link, and the acting user's handle is created if absent.
func (c *Context) applyLink(link *links.Link) {
	c.Platform.Username = link.PlatformUsername
	c.Platform.ID = link.PlatformID
	c.Platform.AvatarURL = link.PlatformAvatarURL
	c.Directory.ObjectID = link.DirectoryID
	c.Directory.Username = link.DirectoryUsername
	c.Directory.DisplayName = link.DirectoryDisplayName
	c.Tokens.Standard = link.PlatformToken
	c.Tokens.Elevated = link.PlatformElevatedToken
	c.link = link

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil && c.Platform.ID != "" {
		c.self = c.userLocked(c.Platform.ID, c.Platform.Username)
	}
	if c.self != nil {
		c.self.setLink(link)
	}
}

func (c *Context) conflictingIdentity(link *links.Link, user *RequestUser) error {
	endUser := user.Azure.DisplayName
	if endUser == "" {
		endUser = user.Azure.Username
	}
	return &ConflictingIdentityError{
		EndUser:               endUser,
		AuthenticatedUsername: user.GitHub.Username,
		LinkedUsernameHint:    obfuscate(link.PlatformUsername, len(link.PlatformUsername)/2),
		Remediation: FancyLink{
			Link:  "/signout/github/?redirect=github",
			Title: fmt.Sprintf("Sign Out %s on GitHub", user.GitHub.Username),
		},
		SkipLog: true,
	}
}

// Orgs returns a handle for every organization registered for
// management, in configuration order.
func (c *Context) Orgs() []*Org {
	orgs := make([]*Org, 0, len(c.cfg.Organizations))
	for _, settings := range c.cfg.Organizations {
		org, err := c.Org(settings.Name)
		if err != nil {
			// Configured names always resolve; a failure here means the
			// configuration changed under us.
			continue
		}
		orgs = append(orgs, org)
	}
	return orgs
}

// Org returns the memoized handle for a configured organization. An
// empty name selects the primary organization. The same name always
// returns the identical handle instance for the life of this context.
func (c *Context) Org(name string) (*Org, error) {
	if name == "" {
		primary, ok := c.cfg.PrimaryOrganization()
		if !ok {
			return nil, fmt.Errorf("no organizations are configured for this portal instance")
		}
		name = primary.Name
	}
	key := strings.ToLower(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if org, ok := c.orgs[key]; ok {
		return org, nil
	}
	settings, ok := c.cfg.Organization(name)
	if !ok {
		return nil, fmt.Errorf("the requested organization %q is not currently available for actions or is not configured for use at this time", name)
	}
	org := &Org{ctx: c, name: settings.Name, settings: settings}
	c.orgs[key] = org
	return org, nil
}

// User returns the memoized handle for a platform user id. The same id
// always returns the identical handle instance for the life of this
// context.
func (c *Context) User(id string) *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userLocked(id, "")
}

func (c *Context) userWithLogin(id, login string) *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userLocked(id, login)
}

func (c *Context) userLocked(id, login string) *User {
	if user, ok := c.users[id]; ok {
		if login != "" {
			user.setLogin(login)
		}
		return user
	}
	user := &User{ctx: c, id: id, login: login}
	c.users[id] = user
	return user
}

// TeamByID returns a team handle hydrated by id alone, with no owning
// organization back-reference. These handles are not memoized.
func (c *Context) TeamByID(ctx context.Context, teamID int64) (*Team, error) {
	team := &Team{ctx: c, id: teamID}
	if _, err := team.Details(ctx); err != nil {
		return nil, fmt.Errorf("there was a problem retrieving the details for the team, the team may no longer exist: %w", err)
	}
	return team, nil
}

// TeamSet returns hydrated handles for a set of team ids. Any single
// failure aborts the set.
func (c *Context) TeamSet(ctx context.Context, teamIDs []int64) ([]*Team, error) {
	teams := make([]*Team, 0, len(teamIDs))
	for _, teamID := range teamIDs {
		team, err := c.TeamByID(ctx, teamID)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// obfuscate masks all but the trailing visible runes of a value.
func obfuscate(value string, visible int) string {
	runes := []rune(value)
	if visible < 0 {
		visible = 0
	}
	if visible > len(runes) {
		visible = len(runes)
	}
	masked := make([]rune, 0, len(runes))
	for i := 0; i < len(runes)-visible; i++ {
		masked = append(masked, '*')
	}
	return string(masked) + string(runes[len(runes)-visible:])
}
