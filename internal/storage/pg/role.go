package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/memberd-dev/memberd/internal/domain"
	internal_errors "github.com/memberd-dev/memberd/internal/errors"
)

// Roles returns the full role catalog.
func (s *Storage) Roles() ([]domain.Role, error) {
	rows, err := s.db.Query("SELECT id, name, description FROM roles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var r domain.Role
		if err := rows.Scan(&r.Id, &r.Name, &r.Description); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// RoleByName fetches a single catalog entry.
func (s *Storage) RoleByName(name string) (domain.Role, error) {
	var r domain.Role
	err := s.db.QueryRow("SELECT id, name, description FROM roles WHERE name = $1", name).Scan(&r.Id, &r.Name, &r.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Role{}, &internal_errors.ErrorWithStatusCode{Message: "Role not found", StatusCode: http.StatusNotFound, Code: internal_errors.CodeNotFound}
		}
		return domain.Role{}, fmt.Errorf("failed to query role: %w", err)
	}
	return r, nil
}

// RolesByAccount returns the roles currently held by the account.
func (s *Storage) RolesByAccount(id domain.AccountId) ([]domain.Role, error) {
	rows, err := s.db.Query(`
        SELECT r.id, r.name, r.description
        FROM roles r
        JOIN account_roles ar ON ar.role_id = r.id
        WHERE ar.account_id = $1
        ORDER BY r.id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query account roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var r domain.Role
		if err := rows.Scan(&r.Id, &r.Name, &r.Description); err != nil {
			return nil, fmt.Errorf("failed to scan account role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// GrantRole attaches a catalog role to an account. Granting an already held
// role is a no-op; an unknown role name is a 404.
func (s *Storage) GrantRole(accountId domain.AccountId, roleName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		granted, err := s.grantRole(tx, accountId, roleName)
		if err != nil {
			return err
		}
		if !granted {
			return &internal_errors.ErrorWithStatusCode{Message: "Role not found", StatusCode: http.StatusNotFound, Code: internal_errors.CodeNotFound}
		}
		return nil
	})
}

// RevokeRole removes a role from an account. Revoking a role the account does
// not hold is a 404 so admin tooling notices typos.
func (s *Storage) RevokeRole(accountId domain.AccountId, roleName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
            DELETE FROM account_roles
            WHERE account_id = $1 AND role_id = (SELECT id FROM roles WHERE name = $2)`,
			accountId, roleName)
		if err != nil {
			return fmt.Errorf("failed to revoke role: %w", err)
		}
		return requireRowsAffected(result, "Role not held by account", internal_errors.CodeNotFound)
	})
}

// grantRole inserts the join row, resolving the role id by name.
// Returns false when the role name is not in the catalog. The insert is
// idempotent: (account_id, role_id) is the primary key and conflicts are
// ignored.
func (s *Storage) grantRole(q Querier, accountId domain.AccountId, roleName string) (bool, error) {
	result, err := q.Exec(`
        INSERT INTO account_roles(account_id, role_id)
        SELECT $1, id FROM roles WHERE name = $2
        ON CONFLICT (account_id, role_id) DO NOTHING`,
		accountId, roleName)
	if err != nil {
		return false, fmt.Errorf("failed to grant role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows for role grant: %w", err)
	}
	if affected == 0 {
		// Distinguish "role already held" (fine) from "role name unknown".
		var exists bool
		if err := q.QueryRow("SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1)", roleName).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check role existence: %w", err)
		}
		return exists, nil
	}
	return true, nil
}
