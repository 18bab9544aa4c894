package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"

	"github.com/memberd-dev/memberd/internal/domain"
	internal_errors "github.com/memberd-dev/memberd/internal/errors"
	"github.com/memberd-dev/memberd/internal/logger"
)

const uniqueViolation = "23505"

// =========================================================================
// Public Methods (satisfy the service.AccountStorage interface)
// =========================================================================

// SaveAccount is the public entry point for creating a new account. It wraps
// the core logic in a transaction to ensure the operation is atomic.
func (s *Storage) SaveAccount(account domain.Account) (domain.AccountId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id domain.AccountId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.saveAccount(tx, account)
		return err
	})
	return id, err
}

// AccountByEmail is a read-only method to fetch an account by its email.
// Roles are not populated; use RolesByAccount when the caller needs them.
func (s *Storage) AccountByEmail(email domain.Email) (domain.Account, error) {
	return s.account(s.db, "email = $1", email)
}

// AccountById fetches an account by primary key with its roles populated.
// The Authorization Guard reads through this on every request.
func (s *Storage) AccountById(id domain.AccountId) (domain.Account, error) {
	account, err := s.account(s.db, "id = $1", id)
	if err != nil {
		return domain.Account{}, err
	}
	roles, err := s.RolesByAccount(id)
	if err != nil {
		return domain.Account{}, err
	}
	account.Roles = roles
	return account, nil
}

// MarkVerified flips the account into the verified state and stamps
// email_verified_at exactly once. Re-running it for an already verified
// account is a no-op. When the freshly verified account holds zero roles the
// default role is granted inside the same transaction, so no request can
// observe a verified account mid-bootstrap.
func (s *Storage) MarkVerified(id domain.AccountId, defaultRole string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
            UPDATE accounts SET is_verified = true, email_verified_at = now()
            WHERE id = $1 AND is_verified = false`, id)
		if err != nil {
			return fmt.Errorf("failed to mark account verified: %w", err)
		}
		updated, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows for verification: %w", err)
		}
		if updated == 0 {
			// Either already verified (no-op success) or the account is gone.
			var exists bool
			if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)", id).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check account existence: %w", err)
			}
			if !exists {
				return &internal_errors.ErrorWithStatusCode{Message: "Account not found", StatusCode: http.StatusNotFound, Code: internal_errors.CodeAccountNotFound}
			}
			return nil
		}

		var roleCount int
		if err := tx.QueryRow("SELECT count(*) FROM account_roles WHERE account_id = $1", id).Scan(&roleCount); err != nil {
			return fmt.Errorf("failed to count roles: %w", err)
		}
		if roleCount > 0 {
			return nil
		}

		// Bootstrap policy: a verified account must hold at least one role.
		granted, err := s.grantRole(tx, id, defaultRole)
		if err != nil {
			return err
		}
		if !granted {
			// A missing catalog entry must not block verification.
			logger.Log.Warn("default role missing from catalog, verified account left without roles",
				"account_id", id, "role", defaultRole)
		}
		return nil
	})
}

// SetActive toggles the account's active flag.
func (s *Storage) SetActive(id domain.AccountId, active bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec("UPDATE accounts SET is_active = $1 WHERE id = $2", active, id)
		if err != nil {
			return fmt.Errorf("failed to update active flag: %w", err)
		}
		return requireRowsAffected(result, "Account not found", internal_errors.CodeAccountNotFound)
	})
}

// UpdateProfile rewrites the mutable profile attributes.
func (s *Storage) UpdateProfile(id domain.AccountId, profile domain.ProfileUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
            UPDATE accounts SET first_name = $1, last_name = $2, phone = $3, school_name = $4, position = $5
            WHERE id = $6`,
			profile.FirstName, profile.LastName, profile.Phone, profile.SchoolName, profile.Position, id)
		if err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return requireRowsAffected(result, "Account not found", internal_errors.CodeAccountNotFound)
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

func (s *Storage) saveAccount(q Querier, account domain.Account) (domain.AccountId, error) {
	var id domain.AccountId
	err := q.QueryRow(`
        INSERT INTO accounts(email, password_hash, first_name, last_name, phone, school_name, position)
        VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		account.Email, account.PassHash, account.FirstName, account.LastName,
		account.Phone, account.SchoolName, account.Position).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return -1, &internal_errors.ErrorWithStatusCode{Message: "Email already registered", StatusCode: http.StatusConflict, Code: internal_errors.CodeDuplicateEmail}
		}
		return -1, fmt.Errorf("failed to insert account: %w", err)
	}
	return id, nil
}

func (s *Storage) account(q Querier, where string, arg interface{}) (domain.Account, error) {
	var a domain.Account
	var verifiedAt sql.NullTime
	err := q.QueryRow(`
        SELECT id, email, password_hash, first_name, last_name, phone, school_name, position,
               is_active, is_verified, (email_verified_at at time zone 'utc'), (created_at at time zone 'utc')
        FROM accounts WHERE `+where, arg).Scan(
		&a.Id, &a.Email, &a.PassHash, &a.FirstName, &a.LastName, &a.Phone, &a.SchoolName, &a.Position,
		&a.IsActive, &a.IsVerified, &verifiedAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, &internal_errors.ErrorWithStatusCode{Message: "Account not found", StatusCode: http.StatusNotFound, Code: internal_errors.CodeAccountNotFound}
		}
		return domain.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	if verifiedAt.Valid {
		a.EmailVerifiedAt = &verifiedAt.Time
	}
	return a, nil
}

func requireRowsAffected(result sql.Result, notFoundMsg, code string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: notFoundMsg, StatusCode: http.StatusNotFound, Code: code}
	}
	return nil
}
