// Package api defines the wire-level request and response shapes.
package api

import (
	"time"

	"github.com/memberd-dev/memberd/internal/domain"
)

// Response is the uniform envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type RegisterRequest struct {
	Email      string `validate:"required" json:"email"`
	Password   string `validate:"required" json:"password"`
	FirstName  string `validate:"required" json:"firstName"`
	LastName   string `validate:"required" json:"lastName"`
	Phone      string `json:"phone,omitempty"`
	SchoolName string `json:"schoolName,omitempty"`
	Position   string `json:"position,omitempty"`
}

type LoginRequest struct {
	Email    string `validate:"required" json:"email"`
	Password string `validate:"required" json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `validate:"required" json:"refreshToken"`
}

type ResendVerificationRequest struct {
	Email string `validate:"required" json:"email"`
}

type UpdateProfileRequest struct {
	FirstName  string `validate:"required" json:"firstName"`
	LastName   string `validate:"required" json:"lastName"`
	Phone      string `json:"phone,omitempty"`
	SchoolName string `json:"schoolName,omitempty"`
	Position   string `json:"position,omitempty"`
}

type SetActiveRequest struct {
	Active *bool `validate:"required" json:"active"`
}

// AccountResponse carries the safe account fields. The password hash never
// appears here.
type AccountResponse struct {
	Id              int64      `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Phone           string     `json:"phone,omitempty"`
	SchoolName      string     `json:"schoolName,omitempty"`
	Position        string     `json:"position,omitempty"`
	IsActive        bool       `json:"isActive"`
	IsVerified      bool       `json:"isVerified"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	Roles           []string   `json:"roles"`
}

type LoginResponse struct {
	Account      AccountResponse `json:"account"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

type RoleResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewAccountResponse strips secrets and flattens roles to names.
func NewAccountResponse(a domain.Account) AccountResponse {
	roles := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		roles = append(roles, r.Name)
	}
	return AccountResponse{
		Id:              a.Id,
		Email:           a.Email,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Phone:           a.Phone,
		SchoolName:      a.SchoolName,
		Position:        a.Position,
		IsActive:        a.IsActive,
		IsVerified:      a.IsVerified,
		EmailVerifiedAt: a.EmailVerifiedAt,
		Roles:           roles,
	}
}
