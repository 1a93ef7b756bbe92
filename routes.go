package authclient

import (
	"fmt"
)

// Routes supplies the backend paths for auth endpoints. The core treats every
// returned path as an opaque string; only the transport interprets it.
type Routes interface {
	// SessionRoute is the session resource: refreshed with POST, terminated
	// with DELETE.
	SessionRoute() string

	// ProfileRoute returns the authenticated user profile endpoint.
	ProfileRoute() string

	// ProviderLoginRoute returns the login endpoint for a named provider.
	ProviderLoginRoute(providerName string) string

	// ProviderLinkRoute returns the identity-link endpoint for a named
	// provider, scoped to the current session.
	ProviderLinkRoute(providerName string) string
}

// DefaultRoutes builds REST paths for the stock backend layout. Base is
// prepended verbatim, e.g. "/api/client/v2.0".
type DefaultRoutes struct {
	Base  string
	AppID string
}

var _ Routes = DefaultRoutes{}

// NewDefaultRoutes creates routes for the given app under the standard base
// path.
func NewDefaultRoutes(appID string) DefaultRoutes {
	return DefaultRoutes{Base: "/api/client/v2.0", AppID: appID}
}

// SessionRoute implements Routes.
func (r DefaultRoutes) SessionRoute() string {
	return r.Base + "/auth/session"
}

// ProfileRoute implements Routes.
func (r DefaultRoutes) ProfileRoute() string {
	return r.Base + "/auth/profile"
}

// ProviderLoginRoute implements Routes.
func (r DefaultRoutes) ProviderLoginRoute(providerName string) string {
	return fmt.Sprintf("%s/app/%s/auth/providers/%s/login", r.Base, r.AppID, providerName)
}

// ProviderLinkRoute implements Routes.
func (r DefaultRoutes) ProviderLinkRoute(providerName string) string {
	return r.ProviderLoginRoute(providerName) + "?link=true"
}
