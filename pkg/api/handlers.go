// Package api exposes the portal's JSON endpoints over the resolved
// user context: the acting user's identity, organization and team
// memberships, the maintainer census and the administrator check.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/contextkeys"
	"github.com/turner-mzeller/GitHubPortal/pkg/httputil"
	portalmiddleware "github.com/turner-mzeller/GitHubPortal/pkg/middleware"
	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
	"github.com/turner-mzeller/GitHubPortal/pkg/session"
	"github.com/turner-mzeller/GitHubPortal/pkg/usercontext"
)

// Handlers serves the portal API.
type Handlers struct {
	cfg      *config.Config
	sessions *session.Store
	log      *observability.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(cfg *config.Config, sessions *session.Store, log *observability.Logger) *Handlers {
	return &Handlers{cfg: cfg, sessions: sessions, log: log}
}

// Register mounts the API routes.
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/api/me", h.Me).Methods(http.MethodGet)
	router.HandleFunc("/api/me/orgs", h.MyOrganizations).Methods(http.MethodGet)
	router.HandleFunc("/api/me/teams", h.MyTeams).Methods(http.MethodGet)
	router.HandleFunc("/api/maintainers", h.Maintainers).Methods(http.MethodGet)
	router.HandleFunc("/api/admin", h.Admin).Methods(http.MethodGet)
	router.HandleFunc("/api/alerts", h.Alerts).Methods(http.MethodGet)
}

// userContext extracts the resolved context or writes a 401.
func (h *Handlers) userContext(w http.ResponseWriter, r *http.Request) *usercontext.Context {
	uc := portalmiddleware.FromRequest(r)
	if uc == nil {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "sign in required")
		return nil
	}
	return uc
}

type identityResponse struct {
	PrimaryScheme string             `json:"primaryAuthenticationScheme"`
	GitHub        *platformIdentity  `json:"github,omitempty"`
	Azure         *directoryIdentity `json:"azure,omitempty"`
	Linked        bool               `json:"linked"`
}

type platformIdentity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type directoryIdentity struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Me reports the acting user's resolved identity.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	uc := h.userContext(w, r)
	if uc == nil {
		return
	}
	resp := identityResponse{
		PrimaryScheme: h.cfg.Authentication.Scheme,
		Linked:        uc.Link() != nil,
	}
	if uc.Platform.ID != "" || uc.Platform.Username != "" {
		resp.GitHub = &platformIdentity{
			ID:          uc.Platform.ID,
			Username:    uc.Platform.Username,
			DisplayName: uc.Platform.DisplayName,
			AvatarURL:   uc.Platform.AvatarURL,
		}
	}
	if uc.Directory.Username != "" {
		resp.Azure = &directoryIdentity{
			Username:    uc.Directory.Username,
			DisplayName: uc.Directory.DisplayName,
		}
	}
	httputil.WriteSuccess(w, resp)
}

type orgResponse struct {
	Name            string `json:"name"`
	MembershipState string `json:"membershipState"`
}

// MyOrganizations reports the acting user's membership state per
// configured organization. Passing fresh=1 bypasses the caches, used by
// the onboarding flow.
func (h *Handlers) MyOrganizations(w http.ResponseWriter, r *http.Request) {
	uc := h.userContext(w, r)
	if uc == nil {
		return
	}
	allowCaching := r.URL.Query().Get("fresh") == ""
	orgs := uc.MyOrganizations(r.Context(), allowCaching)
	resp := make([]orgResponse, 0, len(orgs))
	for _, org := range orgs {
		resp = append(resp, orgResponse{Name: org.Name(), MembershipState: org.MembershipState()})
	}
	httputil.WriteSuccess(w, resp)
}

type teamResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Org  string `json:"org,omitempty"`
}

// MyTeams reports the teams whose role-filtered member lists contain the
// acting user (or the ?user= target id).
func (h *Handlers) MyTeams(w http.ResponseWriter, r *http.Request) {
	uc := h.userContext(w, r)
	if uc == nil {
		return
	}
	role := r.URL.Query().Get("role")
	if role == "" {
		role = platform.RoleMember
	}
	teams, err := uc.MyTeamMemberships(r.Context(), role, r.URL.Query().Get("user"))
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := make([]teamResponse, 0, len(teams))
	for _, team := range teams {
		entry := teamResponse{ID: team.ID(), Name: team.Name()}
		if org := team.Org(); org != nil {
			entry.Org = org.Name()
		}
		resp = append(resp, entry)
	}
	httputil.WriteSuccess(w, resp)
}

type maintainerResponse struct {
	ID        string  `json:"id"`
	Login     string  `json:"login"`
	Linked    bool    `json:"linked"`
	Corporate string  `json:"corporate,omitempty"`
	TeamIDs   []int64 `json:"teamIds"`
}

// Maintainers returns the cross-organization maintainer census. Portal
// administrators only.
func (h *Handlers) Maintainers(w http.ResponseWriter, r *http.Request) {
	uc := h.userContext(w, r)
	if uc == nil {
		return
	}
	isAdmin, err := uc.IsPortalAdministrator(r.Context())
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	if !isAdmin {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "portal administrators only")
		return
	}
	maintainers, err := uc.AllMaintainers(r.Context())
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := make([]maintainerResponse, 0, len(maintainers))
	for _, m := range maintainers {
		entry := maintainerResponse{
			ID:      m.User.ID(),
			Login:   m.User.Login(),
			TeamIDs: m.TeamIDs,
		}
		if link := m.User.Link(); link != nil {
			entry.Linked = true
			entry.Corporate = link.DirectoryUsername
		}
		resp = append(resp, entry)
	}
	httputil.WriteSuccess(w, resp)
}

type adminResponse struct {
	Administrator bool `json:"administrator"`
}

// Admin reports whether the acting user is a portal administrator. A
// failed check surfaces as an error, never as "not an admin".
func (h *Handlers) Admin(w http.ResponseWriter, r *http.Request) {
	uc := h.userContext(w, r)
	if uc == nil {
		return
	}
	isAdmin, err := uc.IsPortalAdministrator(r.Context())
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	httputil.WriteSuccess(w, adminResponse{Administrator: isAdmin})
}

// Alerts drains and returns the session's queued alerts, numbered in
// order.
func (h *Handlers) Alerts(w http.ResponseWriter, r *http.Request) {
	sessionID := contextkeys.GetSessionID(r.Context())
	if sessionID == "" || h.sessions == nil {
		httputil.WriteSuccess(w, []session.Alert{})
		return
	}
	alerts, err := h.sessions.DrainAlerts(r.Context(), sessionID)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteSuccess(w, alerts)
}
