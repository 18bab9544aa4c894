package pg

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/memberd-dev/memberd/internal/config"
	"github.com/memberd-dev/memberd/internal/domain"
	internal_errors "github.com/memberd-dev/memberd/internal/errors"
)

var storage *Storage

func TestMain(m *testing.M) {
	ctx := context.Background()
	var container *postgres.PostgresContainer
	storage, container = mustSetup(ctx)
	defer teardown(ctx, storage, container)

	exitCode := m.Run()
	os.Exit(exitCode)
}

func mustSetup(ctx context.Context) (*Storage, *postgres.PostgresContainer) {
	dbName := "memberd"
	dbUser := "user"
	dbPassword := "password"
	container, err := postgres.Run(ctx,
		"postgres:15.3-alpine",
		postgres.WithInitScripts(filepath.Join("migrations", "init.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			// First, we wait for the container to log readiness twice.
			// This is because it will restart itself after the first startup.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start container: %s", err)
	}
	containerPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("failed to obtain container port: %s", err)
	}
	port, err := strconv.Atoi(containerPort.Port())
	if err != nil {
		log.Fatalf("failed to obtain int container port: %s", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("failed to obtain container host: %s", err)
	}

	storage, err := New(&config.Config{
		Public:  config.Public{DefaultRole: domain.RoleMember},
		Private: config.Private{Pg: config.Pg{Host: host, Port: port, User: dbUser, Password: dbPassword, Dbname: dbName}},
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres container: %s", err)
	}
	return storage, container
}

func teardown(ctx context.Context, storage *Storage, container *postgres.PostgresContainer) {
	if err := storage.Cleanup(); err != nil {
		log.Printf("failed to close storage connection: %s", err)
	}
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
}

var emailSeq atomic.Int64

// mustSaveAccount inserts a fresh account with a unique email and returns it.
func mustSaveAccount(t *testing.T) domain.Account {
	t.Helper()
	account := domain.Account{
		Email:     fmt.Sprintf("user%d@example.com", emailSeq.Add(1)),
		PassHash:  "hash",
		FirstName: "Test",
		LastName:  "User",
	}
	id, err := storage.SaveAccount(account)
	require.NoError(t, err)
	account.Id = id
	return account
}

func statusCode(t *testing.T, err error) (int, string) {
	t.Helper()
	e, ok := err.(*internal_errors.ErrorWithStatusCode)
	require.True(t, ok, "expected ErrorWithStatusCode, got %T", err)
	return e.StatusCode, e.Code
}

func TestSaveAccount(t *testing.T) {
	t.Run("new account starts active and unverified", func(t *testing.T) {
		saved := mustSaveAccount(t)

		got, err := storage.AccountById(saved.Id)
		require.NoError(t, err)
		assert.Equal(t, saved.Email, got.Email)
		assert.Equal(t, "hash", got.PassHash)
		assert.True(t, got.IsActive)
		assert.False(t, got.IsVerified)
		assert.Nil(t, got.EmailVerifiedAt)
		assert.Empty(t, got.Roles)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("duplicate email", func(t *testing.T) {
		saved := mustSaveAccount(t)

		_, err := storage.SaveAccount(domain.Account{Email: saved.Email, PassHash: "other"})
		require.Error(t, err)
		status, code := statusCode(t, err)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, internal_errors.CodeDuplicateEmail, code)
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		saved := mustSaveAccount(t)

		upper := domain.Account{Email: "UPPER." + saved.Email, PassHash: "hash"}
		_, err := storage.SaveAccount(upper)
		require.NoError(t, err)

		_, err = storage.AccountByEmail("upper." + saved.Email)
		require.Error(t, err)
		status, _ := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestAccountByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		saved := mustSaveAccount(t)

		got, err := storage.AccountByEmail(saved.Email)
		require.NoError(t, err)
		assert.Equal(t, saved.Id, got.Id)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := storage.AccountByEmail("nobody@example.com")
		require.Error(t, err)
		status, code := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, internal_errors.CodeAccountNotFound, code)
	})
}

func TestAccountById(t *testing.T) {
	t.Run("loads roles", func(t *testing.T) {
		saved := mustSaveAccount(t)
		require.NoError(t, storage.GrantRole(saved.Id, domain.RoleModerator))

		got, err := storage.AccountById(saved.Id)
		require.NoError(t, err)
		require.Len(t, got.Roles, 1)
		assert.Equal(t, domain.RoleModerator, got.Roles[0].Name)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := storage.AccountById(999999)
		require.Error(t, err)
		status, _ := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestMarkVerified(t *testing.T) {
	t.Run("sets verified state and grants default role", func(t *testing.T) {
		saved := mustSaveAccount(t)

		require.NoError(t, storage.MarkVerified(saved.Id, domain.RoleMember))

		got, err := storage.AccountById(saved.Id)
		require.NoError(t, err)
		assert.True(t, got.IsVerified)
		require.NotNil(t, got.EmailVerifiedAt)
		assert.WithinDuration(t, time.Now().UTC(), *got.EmailVerifiedAt, time.Minute)
		require.Len(t, got.Roles, 1)
		assert.Equal(t, domain.RoleMember, got.Roles[0].Name)
	})

	t.Run("idempotent and keeps first timestamp", func(t *testing.T) {
		saved := mustSaveAccount(t)
		require.NoError(t, storage.MarkVerified(saved.Id, domain.RoleMember))
		first, err := storage.AccountById(saved.Id)
		require.NoError(t, err)

		require.NoError(t, storage.MarkVerified(saved.Id, domain.RoleMember))

		second, err := storage.AccountById(saved.Id)
		require.NoError(t, err)
		assert.Equal(t, first.EmailVerifiedAt, second.EmailVerifiedAt)
		assert.Len(t, second.Roles, 1)
	})

	t.Run("does not grant default role when one already held", func(t *testing.T) {
		saved := mustSaveAccount(t)
		require.NoError(t, storage.GrantRole(saved.Id, domain.RoleModerator))

		require.NoError(t, storage.MarkVerified(saved.Id, domain.RoleMember))

		got, err := storage.AccountById(saved.Id)
		require.NoError(t, err)
		require.Len(t, got.Roles, 1)
		assert.Equal(t, domain.RoleModerator, got.Roles[0].Name)
	})

	t.Run("unknown default role verifies without grant", func(t *testing.T) {
		saved := mustSaveAccount(t)

		require.NoError(t, storage.MarkVerified(saved.Id, "no-such-role"))

		got, err := storage.AccountById(saved.Id)
		require.NoError(t, err)
		assert.True(t, got.IsVerified)
		assert.Empty(t, got.Roles)
	})

	t.Run("unknown account", func(t *testing.T) {
		err := storage.MarkVerified(999999, domain.RoleMember)
		require.Error(t, err)
		status, _ := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestSetActive(t *testing.T) {
	t.Run("toggle", func(t *testing.T) {
		saved := mustSaveAccount(t)

		require.NoError(t, storage.SetActive(saved.Id, false))
		got, err := storage.AccountById(saved.Id)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		require.NoError(t, storage.SetActive(saved.Id, true))
		got, err = storage.AccountById(saved.Id)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
	})

	t.Run("unknown account", func(t *testing.T) {
		err := storage.SetActive(999999, false)
		require.Error(t, err)
		status, _ := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestUpdateProfile(t *testing.T) {
	saved := mustSaveAccount(t)

	err := storage.UpdateProfile(saved.Id, domain.ProfileUpdate{
		FirstName:  "Janet",
		LastName:   "Smith",
		Phone:      "555-1234",
		SchoolName: "Springfield High",
		Position:   "Principal",
	})
	require.NoError(t, err)

	got, err := storage.AccountById(saved.Id)
	require.NoError(t, err)
	assert.Equal(t, "Janet", got.FirstName)
	assert.Equal(t, "Smith", got.LastName)
	assert.Equal(t, "555-1234", got.Phone)
	assert.Equal(t, "Springfield High", got.SchoolName)
	assert.Equal(t, "Principal", got.Position)
	assert.Equal(t, saved.Email, got.Email)
}

func TestRoles(t *testing.T) {
	roles, err := storage.Roles()
	require.NoError(t, err)
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{domain.RoleAdmin, domain.RoleModerator, domain.RoleMember}, names)
}

func TestRoleByName(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		role, err := storage.RoleByName(domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, role.Name)
		assert.NotZero(t, role.Id)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := storage.RoleByName("no-such-role")
		require.Error(t, err)
		status, _ := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestGrantRevokeRole(t *testing.T) {
	t.Run("grant then revoke", func(t *testing.T) {
		saved := mustSaveAccount(t)

		require.NoError(t, storage.GrantRole(saved.Id, domain.RoleModerator))
		roles, err := storage.RolesByAccount(saved.Id)
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, domain.RoleModerator, roles[0].Name)

		require.NoError(t, storage.RevokeRole(saved.Id, domain.RoleModerator))
		roles, err = storage.RolesByAccount(saved.Id)
		require.NoError(t, err)
		assert.Empty(t, roles)
	})

	t.Run("grant is idempotent", func(t *testing.T) {
		saved := mustSaveAccount(t)

		require.NoError(t, storage.GrantRole(saved.Id, domain.RoleMember))
		require.NoError(t, storage.GrantRole(saved.Id, domain.RoleMember))

		roles, err := storage.RolesByAccount(saved.Id)
		require.NoError(t, err)
		assert.Len(t, roles, 1)
	})

	t.Run("grant unknown role", func(t *testing.T) {
		saved := mustSaveAccount(t)

		err := storage.GrantRole(saved.Id, "no-such-role")
		require.Error(t, err)
		status, code := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, internal_errors.CodeNotFound, code)
	})

	t.Run("revoke role not held", func(t *testing.T) {
		saved := mustSaveAccount(t)

		err := storage.RevokeRole(saved.Id, domain.RoleModerator)
		require.Error(t, err)
		status, _ := statusCode(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
