package userstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/crm"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
	mghelper "github.com/rxpartners/crm-backend/pkg/pgutil/migrations"
	"github.com/rxpartners/crm-backend/pkg/user"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()

	ctx := context.Background()
	db, _, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	require.NoError(t, mghelper.CreateSchema(ctx, db, zap.NewNop(), &crm.UserDao{}))
	return ctx, NewStore(db)
}

func TestPGStore_CreateAndGetUser(t *testing.T) {
	ctx, store := setupStore(t)

	usr := user.New("maria", "maria@rxpartners.test", user.RoleAdmin, "$2a$10$hash")
	require.NoError(t, store.CreateUser(ctx, usr))
	require.NotZero(t, usr.ID)
	assert.False(t, usr.CreatedAt.IsZero())

	byID, err := store.GetUser(ctx, WithID(usr.ID))
	require.NoError(t, err)
	assert.Equal(t, "maria", byID.Username)
	assert.Equal(t, user.RoleAdmin, byID.Role)
	assert.Equal(t, "$2a$10$hash", byID.PasswordHash)

	byName, err := store.GetUser(ctx, WithUsername("maria"))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, byName.ID)
}

func TestPGStore_DefaultRole(t *testing.T) {
	ctx, store := setupStore(t)

	usr := user.New("sam", "sam@rxpartners.test", "", "hash")
	require.NoError(t, store.CreateUser(ctx, usr))

	got, err := store.GetUser(ctx, WithID(usr.ID))
	require.NoError(t, err)
	assert.Equal(t, user.RoleSales, got.Role)
	assert.False(t, got.IsAdmin())
}

func TestPGStore_GetUser_NotFound(t *testing.T) {
	ctx, store := setupStore(t)

	_, err := store.GetUser(ctx, WithUsername("nobody"))
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.GetUser(ctx)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUserNotFound))
}

func TestPGStore_DuplicateUsername(t *testing.T) {
	ctx, store := setupStore(t)

	require.NoError(t, store.CreateUser(ctx, user.New("maria", "a@rxpartners.test", "", "h")))
	err := store.CreateUser(ctx, user.New("maria", "b@rxpartners.test", "", "h"))
	require.Error(t, err)

	var pgErr pgdriver.Error
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Field('C'))
}

func TestPGStore_ListUsersAndUpdatePassword(t *testing.T) {
	ctx, store := setupStore(t)

	first := user.New("ann", "ann@rxpartners.test", user.RoleViewer, "old")
	second := user.New("bob", "bob@rxpartners.test", user.RoleSales, "old")
	require.NoError(t, store.CreateUser(ctx, first))
	require.NoError(t, store.CreateUser(ctx, second))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ann", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)

	require.NoError(t, store.UpdatePasswordHash(ctx, second.ID, "new"))
	got, err := store.GetUser(ctx, WithID(second.ID))
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)

	assert.ErrorIs(t, store.UpdatePasswordHash(ctx, 9999, "x"), ErrUserNotFound)
}
