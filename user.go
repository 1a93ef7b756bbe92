package authclient

import (
	"time"
)

// User is an immutable snapshot of one known user's session state. Snapshots
// are taken under the manager lock; mutating one has no effect on the
// manager.
type User struct {
	ID               string       `json:"id"`
	DeviceID         string       `json:"device_id,omitempty"`
	ProviderType     string       `json:"provider_type,omitempty"`
	ProviderName     string       `json:"provider_name,omitempty"`
	Profile          *UserProfile `json:"profile,omitempty"`
	LoggedIn         bool         `json:"logged_in"`
	LastAuthActivity time.Time    `json:"last_auth_activity"`
}

// Identities returns the user's linked login identities in backend order.
func (u *User) Identities() []ProviderIdentity {
	if u == nil || u.Profile == nil {
		return nil
	}
	return append([]ProviderIdentity(nil), u.Profile.Identities...)
}

// IsAnonymous reports whether the user logged in through the anonymous
// provider.
func (u *User) IsAnonymous() bool {
	return u != nil && u.ProviderType == ProviderTypeAnonymous
}
