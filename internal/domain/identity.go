package domain

// Identity keys shared between the flow controller and the rememberers.
const (
	IdentityUserID    = "user_id"
	IdentitySessionID = "session_id"
)

// Identity is the session payload handed to a rememberer. The core only
// relies on IdentityUserID; adapters may add their own keys.
type Identity map[string]string

func NewIdentity(userName string) Identity {
	return Identity{IdentityUserID: userName}
}

// UserID returns the bound user name, or "" for an anonymous identity.
func (id Identity) UserID() string {
	if id == nil {
		return ""
	}
	return id[IdentityUserID]
}

// Authenticated reports whether the identity names a user.
func (id Identity) Authenticated() bool {
	return id.UserID() != ""
}

// Header is a single response header produced by a rememberer.
type Header struct {
	Name  string
	Value string
}
