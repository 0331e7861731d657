package domain

// OAuthToken is the token set issued by the provider token endpoint.
// It is replaced wholesale on every refresh; the four fields never change
// independently.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64 // seconds, as reported by the provider
}

// UserProfile is the transient result of a profile fetch. It is only used to
// bind a local user and is never stored as-is.
type UserProfile struct {
	Username string
	FullName string
	Email    string
	Roles    []string
}

// HasRole reports whether the profile carries the given authority.
func (p UserProfile) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
