package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/motivation-hub/internal/migrations"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// setupTestDatabase поднимает Postgres в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))
	require.NoError(t, CheckDatabaseReady(ctx, storage))
	return storage
}

// testDataFactory создает тестовые данные через методы Storage.
type testDataFactory struct {
	storage *Storage
}

func (f *testDataFactory) user(t *testing.T, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Username:     "user-" + uuid.NewString()[:8],
		PasswordHash: "hash",
		Role:         role,
	}
	u.Email = u.Username + "@example.com"
	require.NoError(t, f.storage.CreateUser(context.Background(), u))
	return u
}

func (f *testDataFactory) pkg(t *testing.T, maxScopes, perDay int) *models.Package {
	t.Helper()
	p := &models.Package{
		Name:           "pkg-" + uuid.NewString()[:8],
		Price:          decimal.RequireFromString("9.99"),
		Duration:       models.DurationMonthly,
		DurationDays:   30,
		MaxScopes:      maxScopes,
		MessagesPerDay: perDay,
		IsActive:       true,
	}
	require.NoError(t, f.storage.CreatePackage(context.Background(), p))
	return p
}

func (f *testDataFactory) scopes(t *testing.T, n int) []models.Scope {
	t.Helper()
	out := make([]models.Scope, 0, n)
	for range n {
		sc := &models.Scope{Name: "scope-" + uuid.NewString()[:8], Category: models.CategoryCareer, IsActive: true}
		require.NoError(t, f.storage.CreateScope(context.Background(), sc))
		out = append(out, *sc)
	}
	return out
}

func (f *testDataFactory) pendingSubscription(t *testing.T, u *models.User, p *models.Package, scopes []models.Scope) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		UserID:         u.ID,
		PackageID:      p.ID,
		Status:         models.StatusPending,
		AutoRenew:      true,
		SelectedScopes: scopes,
	}
	require.NoError(t, f.storage.CreateSubscription(context.Background(), sub))
	return sub
}
