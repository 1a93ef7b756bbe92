package authclient

import (
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
)

// Material keys recognized when a credential embeds a serialized session
// (redirect-completion flows).
const (
	MaterialKeyUserID       = "user_id"
	MaterialKeyDeviceID     = "device_id"
	MaterialKeyAccessToken  = "access_token"
	MaterialKeyRefreshToken = "refresh_token"
)

// AuthInfo is the token/identity bundle for one user's session. Values are
// replaced wholesale through Merge; a zero field counts as absent.
type AuthInfo struct {
	UserID               string       `json:"user_id,omitempty"`
	DeviceID             string       `json:"device_id,omitempty"`
	AccessToken          string       `json:"access_token,omitempty"`
	RefreshToken         string       `json:"refresh_token,omitempty"`
	LoggedInProviderType string       `json:"logged_in_provider_type,omitempty"`
	LoggedInProviderName string       `json:"logged_in_provider_name,omitempty"`
	Profile              *UserProfile `json:"user_profile,omitempty"`
}

// Merge overlays other on top of a. Fields present in other win; absent
// fields keep the value from a. Neither receiver nor argument is mutated.
func (a AuthInfo) Merge(other AuthInfo) AuthInfo {
	out := a
	if other.UserID != "" {
		out.UserID = other.UserID
	}
	if other.DeviceID != "" {
		out.DeviceID = other.DeviceID
	}
	if other.AccessToken != "" {
		out.AccessToken = other.AccessToken
	}
	if other.RefreshToken != "" {
		out.RefreshToken = other.RefreshToken
	}
	if other.LoggedInProviderType != "" {
		out.LoggedInProviderType = other.LoggedInProviderType
	}
	if other.LoggedInProviderName != "" {
		out.LoggedInProviderName = other.LoggedInProviderName
	}
	if other.Profile != nil {
		out.Profile = other.Profile.Clone()
	}
	return out
}

// LoggedOut clears both tokens while retaining the user's identity, provider,
// profile, and device id. Used for records that stay in the known users table
// after logout.
func (a AuthInfo) LoggedOut() AuthInfo {
	out := a
	out.AccessToken = ""
	out.RefreshToken = ""
	return out
}

// ClearedUser drops everything except the device id. Used when a session slot
// must be fully vacated.
func (a AuthInfo) ClearedUser() AuthInfo {
	return AuthInfo{DeviceID: a.DeviceID}
}

// HasTokens reports whether both tokens are present.
func (a AuthInfo) HasTokens() bool {
	return a.AccessToken != "" && a.RefreshToken != ""
}

// decodeAPIAuthInfo parses the backend's session payload (login, link, and
// refresh responses share the shape).
func decodeAPIAuthInfo(body []byte) (AuthInfo, error) {
	var info AuthInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return AuthInfo{}, goerrors.Wrap(err, goerrors.CategoryOperation, "could not decode session payload").
			WithTextCode(TextCodeServiceError)
	}
	return info, nil
}

// authInfoFromMaterial rebuilds an AuthInfo from credential material for
// credentials flagged with MaterialContainsAuthInfo.
func authInfoFromMaterial(material map[string]string) AuthInfo {
	return AuthInfo{
		UserID:       material[MaterialKeyUserID],
		DeviceID:     material[MaterialKeyDeviceID],
		AccessToken:  material[MaterialKeyAccessToken],
		RefreshToken: material[MaterialKeyRefreshToken],
	}
}
