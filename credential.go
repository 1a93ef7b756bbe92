package authclient

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

// Provider types understood by the default credential constructors. The core
// only gives special treatment to the anonymous provider; everything else is
// an opaque provider route.
const (
	ProviderTypeAnonymous    = "anon-user"
	ProviderTypeUserPassword = "local-userpass"
	ProviderTypeCustomToken  = "custom-token"
	ProviderTypeAPIKey       = "api-key"
	ProviderTypeGoogle       = "oauth2-google"
	ProviderTypeFacebook     = "oauth2-facebook"
)

// Credential describes one login method: which provider to use, the
// provider-specific material, and two capability flags that alter control
// flow during login.
type Credential struct {
	// ProviderName addresses the provider route on the backend. It usually
	// matches the provider type unless the app configured multiple providers
	// of the same type.
	ProviderName string

	// ProviderType identifies the kind of provider (anonymous,
	// username/password, etc.).
	ProviderType string

	// Material is the provider-specific payload sent with the login request.
	// The core never inspects it unless MaterialContainsAuthInfo is set.
	Material map[string]string

	// MaterialContainsAuthInfo marks credentials whose material already holds
	// a serialized session (redirect-completion flows). Login merges the
	// material directly instead of calling the backend.
	MaterialContainsAuthInfo bool

	// CapabilitiesRedirect marks providers that log in through a browser
	// redirect rather than a direct request.
	CapabilitiesRedirect bool
}

// Validate checks the structural invariants of a credential.
func (c Credential) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ProviderName, validation.Required),
		validation.Field(&c.ProviderType, validation.Required),
	)
}

// AnonymousCredential logs in without any user-supplied material.
func AnonymousCredential() Credential {
	return Credential{
		ProviderName: ProviderTypeAnonymous,
		ProviderType: ProviderTypeAnonymous,
		Material:     map[string]string{},
	}
}

// UserPasswordCredential logs in with an email/username and password pair.
func UserPasswordCredential(username, password string) Credential {
	return Credential{
		ProviderName: ProviderTypeUserPassword,
		ProviderType: ProviderTypeUserPassword,
		Material: map[string]string{
			"username": username,
			"password": password,
		},
	}
}

// CustomTokenCredential logs in with a token issued by an external system.
func CustomTokenCredential(token string) Credential {
	return Credential{
		ProviderName: ProviderTypeCustomToken,
		ProviderType: ProviderTypeCustomToken,
		Material: map[string]string{
			"token": token,
		},
	}
}

// APIKeyCredential logs in with a server-issued API key.
func APIKeyCredential(key string) Credential {
	return Credential{
		ProviderName: ProviderTypeAPIKey,
		ProviderType: ProviderTypeAPIKey,
		Material: map[string]string{
			"key": key,
		},
	}
}

// RedirectResultCredential completes a redirect login. The material is the
// serialized session handed back by the redirect flow, so login merges it
// without a network round trip.
func RedirectResultCredential(providerName, providerType string, material map[string]string) Credential {
	return Credential{
		ProviderName:             providerName,
		ProviderType:             providerType,
		Material:                 material,
		MaterialContainsAuthInfo: true,
		CapabilitiesRedirect:     true,
	}
}
