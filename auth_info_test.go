package authclient_test

import (
	"testing"

	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
)

func TestAuthInfoMergeKeepsAbsentFields(t *testing.T) {
	base := authclient.AuthInfo{
		UserID:       "user-1",
		DeviceID:     "device-1",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	}

	merged := base.Merge(authclient.AuthInfo{AccessToken: "new-access"})

	assert.Equal(t, "new-access", merged.AccessToken)
	assert.Equal(t, "user-1", merged.UserID)
	assert.Equal(t, "device-1", merged.DeviceID)
	assert.Equal(t, "old-refresh", merged.RefreshToken)

	// Neither side is mutated.
	assert.Equal(t, "old-access", base.AccessToken)
}

func TestAuthInfoMergeClonesProfile(t *testing.T) {
	incoming := authclient.AuthInfo{
		Profile: &authclient.UserProfile{Data: map[string]string{"name": "Tester"}},
	}

	merged := authclient.AuthInfo{}.Merge(incoming)
	incoming.Profile.Data["name"] = "Changed"

	assert.Equal(t, "Tester", merged.Profile.Name())
}

func TestAuthInfoLoggedOutRetainsIdentity(t *testing.T) {
	info := authclient.AuthInfo{
		UserID:               "user-1",
		DeviceID:             "device-1",
		AccessToken:          "access",
		RefreshToken:         "refresh",
		LoggedInProviderType: authclient.ProviderTypeUserPassword,
		Profile:              &authclient.UserProfile{UserType: "normal"},
	}

	out := info.LoggedOut()

	assert.Empty(t, out.AccessToken)
	assert.Empty(t, out.RefreshToken)
	assert.Equal(t, "user-1", out.UserID)
	assert.Equal(t, "device-1", out.DeviceID)
	assert.Equal(t, authclient.ProviderTypeUserPassword, out.LoggedInProviderType)
	assert.NotNil(t, out.Profile)
	assert.False(t, out.HasTokens())
}

func TestAuthInfoClearedUserKeepsOnlyDeviceID(t *testing.T) {
	info := authclient.AuthInfo{
		UserID:       "user-1",
		DeviceID:     "device-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
	}

	assert.Equal(t, authclient.AuthInfo{DeviceID: "device-1"}, info.ClearedUser())
}

func TestUserProfileAccessors(t *testing.T) {
	profile := &authclient.UserProfile{
		UserType: "normal",
		Data: map[string]string{
			"name":        "Tester",
			"email":       "tester@example.com",
			"picture_url": "https://example.com/p.png",
		},
	}

	assert.Equal(t, "Tester", profile.Name())
	assert.Equal(t, "tester@example.com", profile.Email())
	assert.Equal(t, "https://example.com/p.png", profile.PictureURL())

	var empty *authclient.UserProfile
	assert.Empty(t, empty.Name())
	assert.Nil(t, empty.Clone())
}

func TestUserProfileCloneIsIndependent(t *testing.T) {
	profile := &authclient.UserProfile{
		Data:       map[string]string{"name": "Tester"},
		Identities: []authclient.ProviderIdentity{{ID: "id-1", ProviderType: authclient.ProviderTypeAnonymous}},
	}

	clone := profile.Clone()
	clone.Data["name"] = "Changed"
	clone.Identities[0].ID = "id-2"

	assert.Equal(t, "Tester", profile.Name())
	assert.Equal(t, "id-1", profile.Identities[0].ID)
}
