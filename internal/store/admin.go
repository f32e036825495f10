package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AdminRepository handles persistence for admin profiles.
type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// CreateWithSuperAdminCheck inserts an admin profile, promoting it to super
// admin when no super admin exists yet. The check and insert run in one
// transaction under a table lock so two concurrent first registrations
// cannot both win.
func (r *AdminRepository) CreateWithSuperAdminCheck(ctx context.Context, admin types.Admin) (types.Admin, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Admin{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE admins IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return types.Admin{}, err
	}

	var superExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE is_super_admin)`).Scan(&superExists); err != nil {
		return types.Admin{}, err
	}

	admin.ID = uuid.NewString()
	admin.CreatedAt = time.Now()
	if !superExists {
		admin.IsSuperAdmin = true
		admin.AdminTitle = "SUPER ADMIN"
		admin.Permissions = []types.AdminPermission{types.PermissionAll}
	} else {
		admin.IsSuperAdmin = false
		if len(admin.Permissions) == 0 {
			admin.Permissions = []types.AdminPermission{types.PermissionRead}
		}
	}

	permissions := make([]string, len(admin.Permissions))
	for i, p := range admin.Permissions {
		permissions[i] = string(p)
	}

	const query = `
		INSERT INTO admins (id, account_id, admin_title, permissions, is_super_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(
		ctx,
		query,
		admin.ID,
		admin.AccountID,
		admin.AdminTitle,
		pq.Array(permissions),
		admin.IsSuperAdmin,
		admin.CreatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.Admin{}, ErrConflict
		}
		return types.Admin{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Admin{}, err
	}
	return admin, nil
}

// GetByAccountID fetches an admin profile together with its owning account.
func (r *AdminRepository) GetByAccountID(ctx context.Context, accountID string) (types.Admin, error) {
	const query = `
		SELECT a.id, a.account_id, a.admin_title, a.permissions, a.is_super_admin, a.created_at,
			c.id, c.email, c.full_name, c.roles, c.is_email_verified, c.is_social_auth, c.created_at, c.updated_at
		FROM admins a
		JOIN accounts c ON c.id = a.account_id
		WHERE a.account_id = $1`
	var admin types.Admin
	var account types.Account
	var permissions, roles []string
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&admin.ID,
		&admin.AccountID,
		&admin.AdminTitle,
		pq.Array(&permissions),
		&admin.IsSuperAdmin,
		&admin.CreatedAt,
		&account.ID,
		&account.Email,
		&account.FullName,
		pq.Array(&roles),
		&account.IsEmailVerified,
		&account.IsSocialAuth,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Admin{}, ErrNotFound
		}
		return types.Admin{}, err
	}

	admin.Permissions = make([]types.AdminPermission, len(permissions))
	for i, p := range permissions {
		admin.Permissions[i] = types.AdminPermission(p)
	}
	parsedRoles, err := types.ParseRoles(roles)
	if err != nil {
		return types.Admin{}, err
	}
	account.Roles = parsedRoles
	admin.Account = &account
	return admin, nil
}

func (r *AdminRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM admins WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
