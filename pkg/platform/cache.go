package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
)

const (
	defaultCacheEntries = 2048

	teamsTTL      = 10 * time.Minute
	membersTTL    = 5 * time.Minute
	membershipTTL = 5 * time.Minute
)

// CachedGateway layers an in-process LRU and a shared redis cache over
// the expensive enumeration reads: org team lists, team member lists and
// org membership checks. Everything else passes straight through.
type CachedGateway struct {
	gateway Gateway
	redis   *redis.Client
	prefix  string

	teams       *lru.LRU[string, []*TeamDetails]
	members     *lru.LRU[string, []*UserDetails]
	memberships *lru.LRU[string, *OrgMembership]

	metrics *observability.Metrics
	log     *observability.Logger
}

// NewCachedGateway wraps a gateway with caching. The redis client may be
// nil, in which case only the in-process layer is used. Metrics may be
// nil.
func NewCachedGateway(gateway Gateway, redisClient *redis.Client, prefix string, metrics *observability.Metrics, log *observability.Logger) *CachedGateway {
	return &CachedGateway{
		gateway:     gateway,
		redis:       redisClient,
		prefix:      prefix,
		teams:       lru.NewLRU[string, []*TeamDetails](defaultCacheEntries, nil, teamsTTL),
		members:     lru.NewLRU[string, []*UserDetails](defaultCacheEntries, nil, membersTTL),
		memberships: lru.NewLRU[string, *OrgMembership](defaultCacheEntries, nil, membershipTTL),
		metrics:     metrics,
		log:         log,
	}
}

// UserByID passes through uncached.
func (c *CachedGateway) UserByID(ctx context.Context, id int64) (*UserDetails, error) {
	return c.gateway.UserByID(ctx, id)
}

// UserByLogin passes through uncached.
func (c *CachedGateway) UserByLogin(ctx context.Context, login string) (*UserDetails, error) {
	return c.gateway.UserByLogin(ctx, login)
}

// TeamByID passes through uncached.
func (c *CachedGateway) TeamByID(ctx context.Context, teamID int64) (*TeamDetails, error) {
	return c.gateway.TeamByID(ctx, teamID)
}

// OrgTeams returns the cached team list for an organization.
func (c *CachedGateway) OrgTeams(ctx context.Context, org string) ([]*TeamDetails, error) {
	key := c.key("teams", org)
	if teams, ok := c.teams.Get(key); ok {
		c.hit("org_teams")
		return teams, nil
	}
	var teams []*TeamDetails
	if c.fromRedis(ctx, key, &teams) {
		c.hit("org_teams")
		c.teams.Add(key, teams)
		return teams, nil
	}
	c.miss("org_teams")
	teams, err := c.gateway.OrgTeams(ctx, org)
	if err != nil {
		return nil, err
	}
	c.teams.Add(key, teams)
	c.toRedis(ctx, key, teams, teamsTTL)
	return teams, nil
}

// TeamMembers returns the cached role-filtered member list for a team.
func (c *CachedGateway) TeamMembers(ctx context.Context, teamID int64, role string) ([]*UserDetails, error) {
	if role == "" {
		role = RoleAll
	}
	key := c.key("team-members", fmt.Sprintf("%d:%s", teamID, role))
	if members, ok := c.members.Get(key); ok {
		c.hit("team_members")
		return members, nil
	}
	var members []*UserDetails
	if c.fromRedis(ctx, key, &members) {
		c.hit("team_members")
		c.members.Add(key, members)
		return members, nil
	}
	c.miss("team_members")
	members, err := c.gateway.TeamMembers(ctx, teamID, role)
	if err != nil {
		return nil, err
	}
	c.members.Add(key, members)
	c.toRedis(ctx, key, members, membersTTL)
	return members, nil
}

// OrgMembership returns the cached membership state for a user in an
// organization. A cached nil (no membership) is a valid answer.
func (c *CachedGateway) OrgMembership(ctx context.Context, org, login string) (*OrgMembership, error) {
	key := c.key("membership", org+":"+login)
	if membership, ok := c.memberships.Get(key); ok {
		c.hit("org_membership")
		return membership, nil
	}
	c.miss("org_membership")
	return c.fetchMembership(ctx, key, org, login)
}

// OrgMembershipFresh skips the cache layers and repopulates them, used
// during onboarding where a stale membership answer would mislead.
func (c *CachedGateway) OrgMembershipFresh(ctx context.Context, org, login string) (*OrgMembership, error) {
	key := c.key("membership", org+":"+login)
	return c.fetchMembership(ctx, key, org, login)
}

func (c *CachedGateway) fetchMembership(ctx context.Context, key, org, login string) (*OrgMembership, error) {
	membership, err := c.gateway.OrgMembership(ctx, org, login)
	if err != nil {
		return nil, err
	}
	c.memberships.Add(key, membership)
	return membership, nil
}

func (c *CachedGateway) key(kind, suffix string) string {
	return c.prefix + "." + kind + ":" + suffix
}

func (c *CachedGateway) fromRedis(ctx context.Context, key string, out interface{}) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		if c.log != nil {
			c.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		}
		c.redis.Del(ctx, key)
		return false
	}
	return true
}

func (c *CachedGateway) toRedis(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil && c.log != nil {
		c.log.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}

func (c *CachedGateway) hit(cache string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	}
}

func (c *CachedGateway) miss(cache string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}
