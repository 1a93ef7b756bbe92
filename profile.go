package authclient

// ProviderIdentity is one login identity attached to a user. Linking adds
// entries; they are only removed when the user itself is removed.
type ProviderIdentity struct {
	ID           string `json:"id"`
	ProviderType string `json:"provider_type"`
}

// UserProfile is the backend's view of a user: its type, free-form data
// fields, and the ordered list of linked identities.
type UserProfile struct {
	UserType   string             `json:"type,omitempty"`
	Data       map[string]string  `json:"data,omitempty"`
	Identities []ProviderIdentity `json:"identities,omitempty"`
}

// Name returns the profile's display name, if the provider supplied one.
func (p *UserProfile) Name() string { return p.dataField("name") }

// Email returns the profile's email, if the provider supplied one.
func (p *UserProfile) Email() string { return p.dataField("email") }

// PictureURL returns the profile's avatar URL, if the provider supplied one.
func (p *UserProfile) PictureURL() string { return p.dataField("picture_url") }

func (p *UserProfile) dataField(key string) string {
	if p == nil || p.Data == nil {
		return ""
	}
	return p.Data[key]
}

// Clone returns a deep copy so callers cannot mutate shared session state.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := &UserProfile{UserType: p.UserType}
	if p.Data != nil {
		out.Data = make(map[string]string, len(p.Data))
		for k, v := range p.Data {
			out.Data[k] = v
		}
	}
	if p.Identities != nil {
		out.Identities = append([]ProviderIdentity(nil), p.Identities...)
	}
	return out
}
