package middleware

import (
	"net/http"

	"github.com/turner-mzeller/GitHubPortal/pkg/config"
	"github.com/turner-mzeller/GitHubPortal/pkg/contextkeys"
	"github.com/turner-mzeller/GitHubPortal/pkg/httputil"
	"github.com/turner-mzeller/GitHubPortal/pkg/links"
	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
	"github.com/turner-mzeller/GitHubPortal/pkg/platform"
	"github.com/turner-mzeller/GitHubPortal/pkg/session"
	"github.com/turner-mzeller/GitHubPortal/pkg/usercontext"
)

// UserContext builds a fresh resolution context per request from the
// session's claims, optionally enriched with a verified directory bearer
// token, and stores it on the request context. Requests with no usable
// claims pass through without one; handlers decide whether that is
// acceptable.
type UserContext struct {
	cfg      *config.Config
	store    links.Store
	gateway  platform.Gateway
	sessions *session.Store
	// verifier may be nil when the directory provider is not configured.
	verifier *DirectoryVerifier
	log      *observability.Logger
}

// NewUserContext creates the user context middleware.
func NewUserContext(cfg *config.Config, store links.Store, gateway platform.Gateway, sessions *session.Store, verifier *DirectoryVerifier, log *observability.Logger) *UserContext {
	return &UserContext{
		cfg:      cfg,
		store:    store,
		gateway:  gateway,
		sessions: sessions,
		verifier: verifier,
		log:      log,
	}
}

// Handler wraps an HTTP handler with user context resolution.
func (m *UserContext) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, err := m.requestUser(r)
		if err != nil {
			httputil.WriteResolutionError(ctx, w, err)
			return
		}
		if user == nil || (user.GitHub == nil && user.Azure == nil) {
			next.ServeHTTP(w, r)
			return
		}
		uc, err := usercontext.New(ctx, usercontext.Options{
			Config:  m.cfg,
			Store:   m.store,
			Gateway: m.gateway,
			Logger:  m.log,
			User:    user,
		})
		if err != nil {
			httputil.WriteResolutionError(ctx, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithUserContext(ctx, uc)))
	})
}

// requestUser assembles the dual-provider claims for this request: the
// session's stored claims plus, when present, a verified directory
// bearer token.
func (m *UserContext) requestUser(r *http.Request) (*usercontext.RequestUser, error) {
	ctx := r.Context()
	var user *usercontext.RequestUser
	if sessionID := contextkeys.GetSessionID(ctx); sessionID != "" && m.sessions != nil {
		stored, err := m.sessions.User(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		user = stored
	}
	if m.verifier != nil {
		if raw, ok := bearerToken(r.Header.Get("Authorization")); ok {
			claims, err := m.verifier.Verify(ctx, raw)
			if err != nil {
				return nil, err
			}
			if user == nil {
				user = &usercontext.RequestUser{}
			}
			user.Azure = claims
		}
	}
	return user, nil
}

// FromRequest returns the resolved user context for a request, or nil
// for anonymous requests.
func FromRequest(r *http.Request) *usercontext.Context {
	if uc, ok := r.Context().Value(contextkeys.UserContextKey).(*usercontext.Context); ok {
		return uc
	}
	return nil
}
