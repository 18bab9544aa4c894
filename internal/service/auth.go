package service

import (
	"fmt"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"

	"github.com/memberd-dev/memberd/internal/config"
	"github.com/memberd-dev/memberd/internal/domain"
	"github.com/memberd-dev/memberd/internal/errors"
	"github.com/memberd-dev/memberd/internal/logger"
	"github.com/memberd-dev/memberd/internal/token"
)

const minPasswordLen = 8

type AuthService interface {
	Register(reg domain.Registration) error
	Login(creds domain.Credentials) (domain.Account, TokenPair, error)
	Refresh(refreshToken string) (domain.Account, TokenPair, error)
	VerifyEmail(tokenStr string) error
	ResendVerification(email domain.Email) error

	Account(id domain.AccountId) (domain.Account, error)
	UpdateProfile(id domain.AccountId, profile domain.ProfileUpdate) error

	// Admin operations
	SetAccountActive(id domain.AccountId, active bool) error
	GrantRole(id domain.AccountId, roleName string) error
	RevokeRole(id domain.AccountId, roleName string) error
	Roles() ([]domain.Role, error)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type AccountStorage interface {
	SaveAccount(account domain.Account) (domain.AccountId, error)
	AccountByEmail(email domain.Email) (domain.Account, error)
	AccountById(id domain.AccountId) (domain.Account, error)
	MarkVerified(id domain.AccountId, defaultRole string) error
	SetActive(id domain.AccountId, active bool) error
	UpdateProfile(id domain.AccountId, profile domain.ProfileUpdate) error
	RolesByAccount(id domain.AccountId) ([]domain.Role, error)
	GrantRole(id domain.AccountId, roleName string) error
	RevokeRole(id domain.AccountId, roleName string) error
	Roles() ([]domain.Role, error)
}

type Email interface {
	Send(recipientEmail, subject, body string) error
	IsCorrect(email domain.Email) error
}

type Auth struct {
	storage  AccountStorage
	email    Email
	tokens   token.TokenService
	cfg      *config.Config
	sanitize *bluemonday.Policy
}

func NewAuth(storage AccountStorage, email Email, tokens token.TokenService, cfg *config.Config) *Auth {
	return &Auth{
		storage:  storage,
		email:    email,
		tokens:   tokens,
		cfg:      cfg,
		sanitize: bluemonday.StrictPolicy(),
	}
}

// Register creates an unverified account with zero roles and emails a
// verification link. The account stays usable for login immediately; only the
// Authorization Guard cares about the unverified state.
func (a *Auth) Register(reg domain.Registration) error {
	if err := a.email.IsCorrect(reg.Email); err != nil {
		return err
	}
	if len(reg.Password) < minPasswordLen {
		return &errors.ErrorWithStatusCode{
			Message:    fmt.Sprintf("Password must be at least %d characters", minPasswordLen),
			StatusCode: http.StatusBadRequest,
			Code:       errors.CodeBadRequest,
		}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}

	id, err := a.storage.SaveAccount(domain.Account{
		Email:      reg.Email,
		PassHash:   string(passHash),
		FirstName:  a.sanitize.Sanitize(reg.FirstName),
		LastName:   a.sanitize.Sanitize(reg.LastName),
		Phone:      a.sanitize.Sanitize(reg.Phone),
		SchoolName: a.sanitize.Sanitize(reg.SchoolName),
		Position:   a.sanitize.Sanitize(reg.Position),
	})
	if err != nil {
		return err
	}

	// Verification email failure must not corrupt account state: the account
	// row is kept and the client can request a resend.
	if err := a.sendVerificationLink(id, reg.Email); err != nil {
		logger.Log.Error("failed to send verification email", "account_id", id, "error", err)
	}
	return nil
}

// Login checks credentials and returns the account with a fresh token pair.
// Unknown email and wrong password are deliberately indistinguishable.
func (a *Auth) Login(creds domain.Credentials) (domain.Account, TokenPair, error) {
	if err := a.email.IsCorrect(creds.Email); err != nil {
		return domain.Account{}, TokenPair{}, err
	}

	account, err := a.storage.AccountByEmail(creds.Email)
	if err != nil {
		if e, ok := err.(*errors.ErrorWithStatusCode); ok && e.StatusCode == http.StatusNotFound {
			// to not leak existing users
			return domain.Account{}, TokenPair{}, invalidCredentials()
		}
		return domain.Account{}, TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PassHash), []byte(creds.Password)); err != nil {
		logger.Log.Debug("password verification failed", "error", err)
		return domain.Account{}, TokenPair{}, invalidCredentials()
	}

	if !account.IsActive {
		return domain.Account{}, TokenPair{}, accountDisabled()
	}

	pair, err := a.issueTokenPair(account)
	if err != nil {
		return domain.Account{}, TokenPair{}, err
	}

	roles, err := a.storage.RolesByAccount(account.Id)
	if err != nil {
		return domain.Account{}, TokenPair{}, err
	}
	account.Roles = roles

	return account, pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair. Account state
// is re-read so a deactivated account cannot mint new access tokens.
func (a *Auth) Refresh(refreshToken string) (domain.Account, TokenPair, error) {
	claims, err := a.tokens.Verify(refreshToken, token.PurposeRefresh)
	if err != nil {
		return domain.Account{}, TokenPair{}, err
	}
	id, err := claims.AccountId()
	if err != nil {
		return domain.Account{}, TokenPair{}, &errors.ErrorWithStatusCode{Message: "Invalid token", StatusCode: http.StatusUnauthorized, Code: errors.CodeInvalidToken}
	}

	account, err := a.storage.AccountById(id)
	if err != nil {
		return domain.Account{}, TokenPair{}, err
	}
	if !account.IsActive {
		return domain.Account{}, TokenPair{}, accountDisabled()
	}

	pair, err := a.issueTokenPair(account)
	if err != nil {
		return domain.Account{}, TokenPair{}, err
	}
	return account, pair, nil
}

// VerifyEmail consumes an email-verify token and moves the account to the
// verified state. Duplicate presentations are no-op successes so double
// clicks on the emailed link don't surface errors.
func (a *Auth) VerifyEmail(tokenStr string) error {
	claims, err := a.tokens.Verify(tokenStr, token.PurposeEmailVerify)
	if err != nil {
		return err
	}
	id, err := claims.AccountId()
	if err != nil {
		return &errors.ErrorWithStatusCode{Message: "Invalid token", StatusCode: http.StatusUnauthorized, Code: errors.CodeInvalidToken}
	}

	return a.storage.MarkVerified(id, a.cfg.Public.DefaultRole)
}

// ResendVerification re-issues the verification link. Unknown and already
// verified emails yield success to avoid account enumeration.
func (a *Auth) ResendVerification(email domain.Email) error {
	if err := a.email.IsCorrect(email); err != nil {
		return err
	}

	account, err := a.storage.AccountByEmail(email)
	if err != nil {
		if e, ok := err.(*errors.ErrorWithStatusCode); ok && e.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	if account.IsVerified {
		return nil
	}

	return a.sendVerificationLink(account.Id, account.Email)
}

func (a *Auth) Account(id domain.AccountId) (domain.Account, error) {
	return a.storage.AccountById(id)
}

// UpdateProfile sanitizes and stores the mutable profile attributes.
func (a *Auth) UpdateProfile(id domain.AccountId, profile domain.ProfileUpdate) error {
	return a.storage.UpdateProfile(id, domain.ProfileUpdate{
		FirstName:  a.sanitize.Sanitize(profile.FirstName),
		LastName:   a.sanitize.Sanitize(profile.LastName),
		Phone:      a.sanitize.Sanitize(profile.Phone),
		SchoolName: a.sanitize.Sanitize(profile.SchoolName),
		Position:   a.sanitize.Sanitize(profile.Position),
	})
}

// SetAccountActive toggles the account. Takes effect on the very next request
// because the guard re-reads account state every time.
func (a *Auth) SetAccountActive(id domain.AccountId, active bool) error {
	return a.storage.SetActive(id, active)
}

func (a *Auth) GrantRole(id domain.AccountId, roleName string) error {
	return a.storage.GrantRole(id, roleName)
}

func (a *Auth) RevokeRole(id domain.AccountId, roleName string) error {
	return a.storage.RevokeRole(id, roleName)
}

func (a *Auth) Roles() ([]domain.Role, error) {
	return a.storage.Roles()
}

func (a *Auth) issueTokenPair(account domain.Account) (TokenPair, error) {
	accessToken, err := a.tokens.NewAccessToken(account.Id, account.Email)
	if err != nil {
		logger.Log.Error("failed to create access token", "account_id", account.Id, "error", err)
		return TokenPair{}, err
	}
	refreshToken, err := a.tokens.NewRefreshToken(account.Id)
	if err != nil {
		logger.Log.Error("failed to create refresh token", "account_id", account.Id, "error", err)
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (a *Auth) sendVerificationLink(id domain.AccountId, email domain.Email) error {
	verifyToken, err := a.tokens.NewEmailVerifyToken(id)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/v1/auth/verify-email?token=%s", a.cfg.Public.BaseURL, verifyToken)
	body := fmt.Sprintf(`
		Hello,

		Please confirm your email address by opening the link below

		%s

		The link is valid for %s. If you did not request this, please ignore this email.
	`, link, a.cfg.VerifyTokenTTL())

	return a.email.Send(email, "Please confirm your email address", body)
}

func invalidCredentials() error {
	return &errors.ErrorWithStatusCode{
		Message:    "Invalid credentials",
		StatusCode: http.StatusUnauthorized,
		Code:       errors.CodeInvalidCredentials,
	}
}

func accountDisabled() error {
	return &errors.ErrorWithStatusCode{
		Message:    "Account disabled",
		StatusCode: http.StatusForbidden,
		Code:       errors.CodeAccountDisabled,
	}
}
