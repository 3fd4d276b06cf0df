package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
)

const perPage = 100

// Client implements Gateway over the platform's REST API. Organization
// scoped reads use that organization's owner token; account reads fall
// back to the first owner token available.
type Client struct {
	baseURL    string
	userAgent  string
	httpClients map[string]*http.Client
	defaultHTTP *http.Client

	// teamOwners remembers which organization a team was enumerated
	// under, so direct-by-id team reads reuse the right owner token.
	mu         sync.RWMutex
	teamOwners map[int64]string

	metrics *observability.Metrics
	log     *observability.Logger
}

// NewClient creates a REST gateway from the portal configuration.
// Metrics may be nil.
func NewClient(cfg config.GitHubConfig, orgs []config.OrganizationConfig, metrics *observability.Metrics, log *observability.Logger) *Client {
	c := &Client{
		baseURL:     cfg.APIBaseURL,
		userAgent:   cfg.UserAgent,
		httpClients: make(map[string]*http.Client, len(orgs)),
		teamOwners:  make(map[int64]string),
		metrics:     metrics,
		log:         log,
	}
	ctx := context.Background()
	for _, org := range orgs {
		if org.OwnerToken == "" {
			continue
		}
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: org.OwnerToken})
		client := oauth2.NewClient(ctx, source)
		client.Timeout = 30 * time.Second
		c.httpClients[org.Name] = client
		if c.defaultHTTP == nil {
			c.defaultHTTP = client
		}
	}
	if c.defaultHTTP == nil {
		c.defaultHTTP = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// UserByID fetches account details by numeric id.
func (c *Client) UserByID(ctx context.Context, id int64) (*UserDetails, error) {
	var user UserDetails
	err := c.get(ctx, "", "user_by_id", fmt.Sprintf("/user/%d", id), nil, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByLogin fetches account details by login name.
func (c *Client) UserByLogin(ctx context.Context, login string) (*UserDetails, error) {
	var user UserDetails
	err := c.get(ctx, "", "user_by_login", "/users/"+url.PathEscape(login), nil, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// TeamByID fetches team details by id alone.
func (c *Client) TeamByID(ctx context.Context, teamID int64) (*TeamDetails, error) {
	var payload struct {
		TeamDetails
		Organization *struct {
			Login string `json:"login"`
		} `json:"organization"`
	}
	org := c.teamOwner(teamID)
	err := c.get(ctx, org, "team_by_id", fmt.Sprintf("/teams/%d", teamID), nil, &payload)
	if err != nil {
		return nil, err
	}
	team := payload.TeamDetails
	if payload.Organization != nil {
		team.OrgLogin = payload.Organization.Login
	}
	return &team, nil
}

// OrgMembership reports a user's membership in an organization. A 404
// means no membership and returns (nil, nil).
func (c *Client) OrgMembership(ctx context.Context, org, login string) (*OrgMembership, error) {
	var membership OrgMembership
	path := "/orgs/" + url.PathEscape(org) + "/memberships/" + url.PathEscape(login)
	err := c.get(ctx, org, "org_membership", path, nil, &membership)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// OrgTeams enumerates every team in an organization.
func (c *Client) OrgTeams(ctx context.Context, org string) ([]*TeamDetails, error) {
	var teams []*TeamDetails
	page := 1
	for {
		var batch []*TeamDetails
		query := url.Values{
			"per_page": []string{strconv.Itoa(perPage)},
			"page":     []string{strconv.Itoa(page)},
		}
		err := c.get(ctx, org, "org_teams", "/orgs/"+url.PathEscape(org)+"/teams", query, &batch)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		for _, team := range batch {
			team.OrgLogin = org
			c.teamOwners[team.ID] = org
		}
		c.mu.Unlock()
		teams = append(teams, batch...)
		if len(batch) < perPage {
			return teams, nil
		}
		page++
	}
}

// TeamMembers lists a team's members filtered by role.
func (c *Client) TeamMembers(ctx context.Context, teamID int64, role string) ([]*UserDetails, error) {
	if role == "" {
		role = RoleAll
	}
	var members []*UserDetails
	org := c.teamOwner(teamID)
	page := 1
	for {
		var batch []*UserDetails
		query := url.Values{
			"role":     []string{role},
			"per_page": []string{strconv.Itoa(perPage)},
			"page":     []string{strconv.Itoa(page)},
		}
		err := c.get(ctx, org, "team_members", fmt.Sprintf("/teams/%d/members", teamID), query, &batch)
		if err != nil {
			return nil, err
		}
		members = append(members, batch...)
		if len(batch) < perPage {
			return members, nil
		}
		page++
	}
}

func (c *Client) teamOwner(teamID int64) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.teamOwners[teamID]
}

func (c *Client) get(ctx context.Context, org, operation, path string, query url.Values, out interface{}) error {
	start := time.Now()
	err := c.doGet(ctx, org, path, query, out)
	if c.metrics != nil {
		c.metrics.ObserveGatewayCall(operation, start, err)
	}
	return err
}

func (c *Client) doGet(ctx context.Context, org, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build platform request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)

	httpClient := c.defaultHTTP
	if org != "" {
		if orgClient, ok := c.httpClients[org]; ok {
			httpClient = orgClient
		}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" && c.metrics != nil {
		if value, err := strconv.ParseFloat(remaining, 64); err == nil {
			c.metrics.RateLimitRemaining.Set(value)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body), Operation: path}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode platform response: %w", err)
	}
	return nil
}
