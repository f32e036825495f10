package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/types"
)

type accountFixture struct {
	service   *AccountService
	accounts  *fakeAccountRepo
	admins    *fakeAdminRepo
	employees *fakeEmployeeRepo
	visitors  *fakeVisitorRepo
	sessions  *fakeSessionRepo
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()

	accounts := newFakeAccountRepo()
	admins := newFakeAdminRepo()
	employees := newFakeEmployeeRepo()
	visitors := newFakeVisitorRepo()
	sessions := newFakeSessionRepo()

	return &accountFixture{
		service:   NewAccountService(accounts, admins, employees, visitors, sessions, testLogger()),
		accounts:  accounts,
		admins:    admins,
		employees: employees,
		visitors:  visitors,
		sessions:  sessions,
	}
}

func TestFirstAdminBecomesSuperAdmin(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	first, err := f.service.RegisterAdmin(ctx, "root@example.com", "secret123", "Root Admin")
	require.NoError(t, err)
	assert.True(t, first.IsSuperAdmin)
	assert.Equal(t, "SUPER ADMIN", first.AdminTitle)
	assert.Equal(t, []types.AdminPermission{types.PermissionAll}, first.Permissions)

	second, err := f.service.RegisterAdmin(ctx, "second@example.com", "secret123", "Second Admin")
	require.NoError(t, err)
	assert.False(t, second.IsSuperAdmin)
	assert.Equal(t, []types.AdminPermission{types.PermissionRead}, second.Permissions)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterVisitor(ctx, "jane@example.com", "secret123", "Jane", "")
	require.NoError(t, err)

	_, err = f.service.RegisterVisitor(ctx, "Jane@Example.com", "secret123", "Jane Again", "")
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
}

func TestRegisterEmployeeRequiresBadge(t *testing.T) {
	f := newAccountFixture(t)

	_, err := f.service.RegisterEmployee(context.Background(), "grace@example.com", "secret123", "Grace", "", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "employeeId")
}

func TestRegisterEmployeeCompensatesOnProfileFailure(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterEmployee(ctx, "grace@example.com", "secret123", "Grace", "EMP-001", "Eng", "Engineer")
	require.NoError(t, err)

	// Duplicate badge fails the profile insert; the account insert must be
	// rolled back so the email can be retried with a fresh badge.
	_, err = f.service.RegisterEmployee(ctx, "hedy@example.com", "secret123", "Hedy", "EMP-001", "Eng", "Engineer")
	require.Error(t, err)

	_, err = f.accounts.GetByEmail(ctx, "hedy@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.service.RegisterEmployee(ctx, "hedy@example.com", "secret123", "Hedy", "EMP-002", "Eng", "Engineer")
	require.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterEmployee(ctx, "grace@example.com", "secret123", "Grace", "EMP-001", "", "")
	require.NoError(t, err)

	account, err := f.service.Authenticate(ctx, "grace@example.com", "secret123", types.RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", account.Email)

	// Email casing is normalized.
	_, err = f.service.Authenticate(ctx, "Grace@Example.com", "secret123", types.RoleEmployee)
	require.NoError(t, err)
}

func TestAuthenticateFailuresAreGeneric(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterEmployee(ctx, "grace@example.com", "secret123", "Grace", "EMP-001", "", "")
	require.NoError(t, err)

	cases := []struct {
		name     string
		email    string
		password string
		role     types.Role
	}{
		{"unknown email", "ghost@example.com", "secret123", types.RoleEmployee},
		{"wrong password", "grace@example.com", "wrong", types.RoleEmployee},
		{"wrong role", "grace@example.com", "secret123", types.RoleAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Authenticate(ctx, tc.email, tc.password, tc.role)
			require.Error(t, err)
			appErr, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindUnauthorized, appErr.Kind)
			assert.Equal(t, "invalid credentials", appErr.Message)
		})
	}
}

func TestEnsureKioskVisitor(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	visitor, account, err := f.service.EnsureKioskVisitor(ctx, "walkin@example.com", "Walk In")
	require.NoError(t, err)
	assert.NotEmpty(t, visitor.ID)
	assert.NotEmpty(t, account.PasswordHash)

	// Second contact reuses the same profile.
	again, _, err := f.service.EnsureKioskVisitor(ctx, "walkin@example.com", "Walk In")
	require.NoError(t, err)
	assert.Equal(t, visitor.ID, again.ID)
}

func TestMarkEmailVerified(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterVisitor(ctx, "jane@example.com", "secret123", "Jane", "")
	require.NoError(t, err)
	account, err := f.accounts.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)

	require.NoError(t, f.service.MarkEmailVerified(ctx, account.ID))

	err = f.service.MarkEmailVerified(ctx, account.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already verified")
}

func TestResetPassword(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterVisitor(ctx, "jane@example.com", "oldpassword", "Jane", "")
	require.NoError(t, err)
	account, err := f.accounts.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)

	require.NoError(t, f.service.ResetPassword(ctx, account.ID, "newpassword"))

	updated, err := f.accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpassword")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("oldpassword")))

	_, err = f.service.Authenticate(ctx, "jane@example.com", "newpassword", types.RoleVisitor)
	require.NoError(t, err)
}
