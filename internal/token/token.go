package token

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/memberd-dev/memberd/internal/domain"
	internal_errors "github.com/memberd-dev/memberd/internal/errors"
	"github.com/memberd-dev/memberd/internal/logger"
)

// Purpose tags every token with its single allowed use. A token presented
// for a different purpose is rejected regardless of signature and expiry.
type Purpose string

const (
	PurposeAccess      Purpose = "access"
	PurposeRefresh     Purpose = "refresh"
	PurposeEmailVerify Purpose = "email-verify"
)

type Claims struct {
	Purpose Purpose `json:"purpose"`
	Email   string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccountId parses the subject claim back into an account id.
func (c *Claims) AccountId() (domain.AccountId, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed subject claim: %w", err)
	}
	return id, nil
}

type TokenService interface {
	NewAccessToken(accountId domain.AccountId, email domain.Email) (string, error)
	NewRefreshToken(accountId domain.AccountId) (string, error)
	NewEmailVerifyToken(accountId domain.AccountId) (string, error)
	Verify(tokenStr string, expected Purpose) (*Claims, error)
}

type Service struct {
	secretKey  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	verifyTTL  time.Duration
}

func New(secretKey string, accessTTL, refreshTTL, verifyTTL time.Duration) *Service {
	return &Service{secretKey, accessTTL, refreshTTL, verifyTTL}
}

func (s *Service) NewAccessToken(accountId domain.AccountId, email domain.Email) (string, error) {
	return s.sign(accountId, email, PurposeAccess, s.accessTTL)
}

func (s *Service) NewRefreshToken(accountId domain.AccountId) (string, error) {
	return s.sign(accountId, "", PurposeRefresh, s.refreshTTL)
}

func (s *Service) NewEmailVerifyToken(accountId domain.AccountId) (string, error) {
	return s.sign(accountId, "", PurposeEmailVerify, s.verifyTTL)
}

func (s *Service) sign(accountId domain.AccountId, email domain.Email, purpose Purpose, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Purpose: purpose,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountId, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		logger.Log.Error("failed to sign token", "purpose", purpose, "error", err)
		return "", errors.New("can't create token")
	}
	return tokenString, nil
}

// Verify checks signature and expiry (jwt/v5 treats now == exp as expired,
// which is the boundary we want), then enforces the purpose claim.
func (s *Service) Verify(tokenStr string, expected Purpose) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &internal_errors.ErrorWithStatusCode{
				Message:    "Token expired",
				StatusCode: http.StatusUnauthorized,
				Code:       internal_errors.CodeTokenExpired,
			}
		}
		return nil, &internal_errors.ErrorWithStatusCode{
			Message:    "Invalid token",
			StatusCode: http.StatusUnauthorized,
			Code:       internal_errors.CodeInvalidToken,
		}
	}
	if !token.Valid {
		return nil, &internal_errors.ErrorWithStatusCode{
			Message:    "Invalid token",
			StatusCode: http.StatusUnauthorized,
			Code:       internal_errors.CodeInvalidToken,
		}
	}

	if claims.Purpose != expected {
		return nil, &internal_errors.ErrorWithStatusCode{
			Message:    fmt.Sprintf("Token not valid for %s", expected),
			StatusCode: http.StatusUnauthorized,
			Code:       internal_errors.CodeWrongPurpose,
		}
	}

	return claims, nil
}
