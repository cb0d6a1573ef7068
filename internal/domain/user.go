package domain

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account holder. PasswordHash is set only through a PasswordHasher.
type User struct {
	ID           int64
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	IsSuperuser  bool
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Registration is the self-service signup payload.
type Registration struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// ToUser copies the profile fields into a new non-superuser account.
// The password is not copied; callers hash it separately.
func (r Registration) ToUser() *User {
	return &User{
		Email:     strings.TrimSpace(r.Email),
		Username:  strings.TrimSpace(r.Username),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Roles:     []string{RoleUser},
	}
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
}

// Empty reports whether no field was supplied.
func (p ProfileUpdate) Empty() bool {
	return p.Email == nil && p.Username == nil && p.FirstName == nil && p.LastName == nil
}

// Normalize trims the identity fields the same way Registration.ToUser does.
func (p ProfileUpdate) Normalize() ProfileUpdate {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	p.Email = trim(p.Email)
	p.Username = trim(p.Username)
	return p
}

// ApplyTo merges the supplied fields onto u and reports whether anything changed.
func (p ProfileUpdate) ApplyTo(u *User) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src == nil || *dst == *src {
			return
		}
		*dst = *src
		changed = true
	}
	set(&u.Email, p.Email)
	set(&u.Username, p.Username)
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	return changed
}
