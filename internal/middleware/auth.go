package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/memberd-dev/memberd/internal/domain"
	"github.com/memberd-dev/memberd/internal/errors"
	"github.com/memberd-dev/memberd/internal/token"
	"github.com/memberd-dev/memberd/internal/utils"
)

// AccountLoader is the slice of storage the guard needs. Account state and
// roles are re-read on every request so deactivations and role revocations
// take effect immediately, with no cache invalidation.
type AccountLoader interface {
	AccountById(id domain.AccountId) (domain.Account, error)
}

type TokenVerifier interface {
	Verify(tokenStr string, expected token.Purpose) (*token.Claims, error)
}

// Key to store the resolved account in the request context
type key int

const AccountKey key = 0

// Auth holds dependencies for the authorization guard middleware
type Auth struct {
	tokens        TokenVerifier
	accounts      AccountLoader
	secureCookies bool
}

func NewAuth(tokens TokenVerifier, accounts AccountLoader, secureCookies bool) *Auth {
	return &Auth{
		tokens:        tokens,
		accounts:      accounts,
		secureCookies: secureCookies,
	}
}

// RequireAuth returns middleware that requires a valid access token from an
// active, verified account.
func (a *Auth) RequireAuth() func(http.Handler) http.Handler {
	return a.guard()
}

// RequireRoles returns middleware that additionally requires the account to
// hold at least one of the given roles.
func (a *Auth) RequireRoles(names ...string) func(http.Handler) http.Handler {
	return a.guard(names...)
}

// guard enforces the authorization sequence in strict order, short-circuiting
// on the first failure. Authentication failures (missing/invalid token, stale
// subject) answer 401; account-state and role failures answer 403 so clients
// can tell "log in again" apart from "you are logged in but not allowed".
func (a *Auth) guard(requiredRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := a.resolveAccount(r)
			if err != nil {
				if e, ok := err.(*errors.ErrorWithStatusCode); ok && e.Code == errors.CodeAccountDisabled {
					// Clear the JWT cookie so the next page load lands on login
					a.clearAccessCookie(w)
				}
				utils.WriteError(w, err)
				return
			}

			if len(requiredRoles) > 0 && !account.HasAnyRole(requiredRoles...) {
				utils.WriteError(w, &errors.ErrorWithStatusCode{
					Message:    "Access denied",
					StatusCode: http.StatusForbidden,
					Code:       errors.CodeInsufficientRole,
				})
				return
			}

			ctx := context.WithValue(r.Context(), AccountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveAccount walks the token-to-account chain: extract bearer credential,
// verify it as an access token, load the subject account, then check the
// account-state invariants. Exactly one terminal outcome per request.
func (a *Auth) resolveAccount(r *http.Request) (*domain.Account, error) {
	// Try the cookie first (browser clients), then the Authorization header
	// (API/mobile clients).
	var tokenString string
	accessCookie, err := r.Cookie("accessToken")
	if err == nil {
		tokenString = accessCookie.Value
	} else if t, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		tokenString = t
	}

	if tokenString == "" {
		return nil, &errors.ErrorWithStatusCode{
			Message:    "Please sign-in",
			StatusCode: http.StatusUnauthorized,
			Code:       errors.CodeMissingCredential,
		}
	}

	claims, err := a.tokens.Verify(tokenString, token.PurposeAccess)
	if err != nil {
		return nil, err
	}

	id, err := claims.AccountId()
	if err != nil {
		return nil, &errors.ErrorWithStatusCode{
			Message:    "Invalid token",
			StatusCode: http.StatusUnauthorized,
			Code:       errors.CodeInvalidToken,
		}
	}

	account, err := a.accounts.AccountById(id)
	if err != nil {
		if e, ok := err.(*errors.ErrorWithStatusCode); ok && e.StatusCode == http.StatusNotFound {
			// The token outlived the account.
			return nil, &errors.ErrorWithStatusCode{
				Message:    "Account no longer exists",
				StatusCode: http.StatusUnauthorized,
				Code:       errors.CodeAccountNotFound,
			}
		}
		return nil, err
	}

	if !account.IsActive {
		return nil, &errors.ErrorWithStatusCode{
			Message:    "Account disabled",
			StatusCode: http.StatusForbidden,
			Code:       errors.CodeAccountDisabled,
		}
	}

	if !account.IsVerified {
		return nil, &errors.ErrorWithStatusCode{
			Message:    "Please verify your email address",
			StatusCode: http.StatusForbidden,
			Code:       errors.CodeAccountUnverified,
		}
	}

	return &account, nil
}

func (a *Auth) clearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetAccountFromContext retrieves the resolved account from the context
func GetAccountFromContext(r *http.Request) *domain.Account {
	account, ok := r.Context().Value(AccountKey).(*domain.Account)
	if !ok {
		return nil
	}
	return account
}
