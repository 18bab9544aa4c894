package domain

type RoleId = int64

// Role catalog names. Seeded once at bootstrap, read-only afterwards.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

type Role struct {
	Id          RoleId
	Name        string
	Description string
}
