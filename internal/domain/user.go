package domain

import "time"

// User is the local account bound to a provider username.
// Name is the primary key and never changes once the row exists.
type User struct {
	Name      string
	FullName  string
	Email     string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyProfile overwrites the provider-owned attributes. The admin flag is
// recomputed every time so a role removed upstream is removed locally too.
func (u *User) ApplyProfile(p UserProfile, adminRole string) {
	u.FullName = p.FullName
	u.Email = p.Email
	u.IsAdmin = p.HasRole(adminRole)
}
