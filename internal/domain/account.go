package domain

import "time"

type AccountId = int64
type Email = string
type Password = string

type Account struct {
	Id              AccountId
	Email           Email
	PassHash        string
	FirstName       string
	LastName        string
	Phone           string
	SchoolName      string
	Position        string
	IsActive        bool
	IsVerified      bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	Roles           []Role
}

// HasAnyRole reports whether the account holds at least one of the given role names.
func (a *Account) HasAnyRole(names ...string) bool {
	for _, r := range a.Roles {
		for _, n := range names {
			if r.Name == n {
				return true
			}
		}
	}
	return false
}

type Credentials struct {
	Email    Email
	Password Password
}

// Registration is the input for creating a new account.
// Password arrives in plaintext and must be hashed before it reaches storage.
type Registration struct {
	Email      Email
	Password   Password
	FirstName  string
	LastName   string
	Phone      string
	SchoolName string
	Position   string
}

// ProfileUpdate carries the mutable, non-security-relevant account attributes.
type ProfileUpdate struct {
	FirstName  string
	LastName   string
	Phone      string
	SchoolName string
	Position   string
}
