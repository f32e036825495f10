package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AccountService owns account lifecycle use-cases: registration of the
// three role profiles, credential checks and password changes. Profiles
// are created atomically with their backing account; on profile failure
// the account insert is compensated with a delete.
type AccountService struct {
	accounts  AccountRepository
	admins    AdminRepository
	employees EmployeeRepository
	visitors  VisitorRepository
	sessions  SessionRepository
	logger    *slog.Logger
}

func NewAccountService(
	accounts AccountRepository,
	admins AdminRepository,
	employees EmployeeRepository,
	visitors VisitorRepository,
	sessions SessionRepository,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		admins:    admins,
		employees: employees,
		visitors:  visitors,
		sessions:  sessions,
		logger:    logger,
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *AccountService) createAccount(ctx context.Context, email, password, fullName string, role types.Role) (types.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return types.Account{}, apperr.Validation("email is required")
	}

	account := types.Account{
		Email:    email,
		FullName: strings.TrimSpace(fullName),
		Roles:    []types.Role{role},
	}
	if password != "" {
		hashed, err := hashPassword(password)
		if err != nil {
			return types.Account{}, err
		}
		account.PasswordHash = hashed
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Account{}, apperr.Conflict("the email provided is already in use")
		}
		return types.Account{}, err
	}
	return created, nil
}

// compensate removes the account created for a profile that failed to
// persist, so no bare account is left behind.
func (s *AccountService) compensate(ctx context.Context, accountID string) {
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		s.logger.Error("compensating account delete failed", "accountId", accountID, "error", err)
	}
}

// RegisterAdmin creates an account plus admin profile. The first admin
// ever registered becomes the super admin with full permissions; later
// admins start read-only.
func (s *AccountService) RegisterAdmin(ctx context.Context, email, password, fullName string) (types.Admin, error) {
	if password == "" {
		return types.Admin{}, apperr.Validation("password is required")
	}
	account, err := s.createAccount(ctx, email, password, fullName, types.RoleAdmin)
	if err != nil {
		return types.Admin{}, err
	}

	admin, err := s.admins.CreateWithSuperAdminCheck(ctx, types.Admin{
		AccountID:  account.ID,
		AdminTitle: "ADMIN",
	})
	if err != nil {
		s.compensate(ctx, account.ID)
		return types.Admin{}, err
	}
	admin.Account = &account
	return admin, nil
}

// RegisterEmployee creates an account plus employee profile keyed by a
// unique human-readable employee ID.
func (s *AccountService) RegisterEmployee(ctx context.Context, email, password, fullName, employeeID, department, title string) (types.Employee, error) {
	if password == "" {
		return types.Employee{}, apperr.Validation("password is required")
	}
	if strings.TrimSpace(employeeID) == "" {
		return types.Employee{}, apperr.Validation("employeeId is required")
	}

	account, err := s.createAccount(ctx, email, password, fullName, types.RoleEmployee)
	if err != nil {
		return types.Employee{}, err
	}

	employee, err := s.employees.Create(ctx, types.Employee{
		AccountID:  account.ID,
		FullName:   account.FullName,
		EmployeeID: strings.TrimSpace(employeeID),
		Department: strings.TrimSpace(department),
		Title:      strings.TrimSpace(title),
	})
	if err != nil {
		s.compensate(ctx, account.ID)
		if errors.Is(err, store.ErrConflict) {
			return types.Employee{}, apperr.Conflict("employeeId already exists")
		}
		return types.Employee{}, err
	}
	return employee, nil
}

// RegisterVisitor creates an account plus visitor profile.
func (s *AccountService) RegisterVisitor(ctx context.Context, email, password, name, phone string) (types.Visitor, error) {
	if password == "" {
		return types.Visitor{}, apperr.Validation("password is required")
	}
	if strings.TrimSpace(name) == "" {
		return types.Visitor{}, apperr.Validation("name is required")
	}

	account, err := s.createAccount(ctx, email, password, name, types.RoleVisitor)
	if err != nil {
		return types.Visitor{}, err
	}

	visitor, err := s.visitors.Create(ctx, types.Visitor{
		AccountID: account.ID,
		Name:      strings.TrimSpace(name),
		Phone:     strings.TrimSpace(phone),
	})
	if err != nil {
		s.compensate(ctx, account.ID)
		return types.Visitor{}, err
	}
	return visitor, nil
}

// EnsureKioskVisitor finds or provisions the account+visitor pair for an
// unauthenticated kiosk clock. Provisioned accounts get a throwaway
// password hash so they cannot be signed into until a reset.
func (s *AccountService) EnsureKioskVisitor(ctx context.Context, email, name string) (types.Visitor, types.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return types.Visitor{}, types.Account{}, apperr.Validation("email and name are required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		account, err = s.createAccount(ctx, email, randomPassword(), name, types.RoleVisitor)
		if err != nil {
			return types.Visitor{}, types.Account{}, err
		}
	case err != nil:
		return types.Visitor{}, types.Account{}, err
	}

	visitor, err := s.visitors.GetByAccountID(ctx, account.ID)
	if errors.Is(err, store.ErrNotFound) {
		visitor, err = s.visitors.Create(ctx, types.Visitor{
			AccountID: account.ID,
			Name:      name,
		})
	}
	if err != nil {
		return types.Visitor{}, types.Account{}, err
	}
	return visitor, account, nil
}

// Authenticate checks credentials for a role-scoped sign-in. Every failure
// is the same generic unauthorized outcome so the response never reveals
// whether the email, password or role was wrong.
func (s *AccountService) Authenticate(ctx context.Context, email, password string, role types.Role) (types.Account, error) {
	invalid := apperr.Unauthorized("invalid credentials")

	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, invalid
		}
		return types.Account{}, err
	}
	if !types.HasRole(account.Roles, role) {
		return types.Account{}, invalid
	}
	if account.PasswordHash == "" {
		return types.Account{}, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return types.Account{}, invalid
	}
	return account, nil
}

// ListPublicEmployees returns the host-pickable directory entries.
func (s *AccountService) ListPublicEmployees(ctx context.Context) ([]types.Employee, error) {
	return s.employees.ListPublic(ctx)
}

// EmployeeByBadge resolves an employee by badge number for the public
// kiosk views.
func (s *AccountService) EmployeeByBadge(ctx context.Context, employeeID string) (types.Employee, error) {
	employee, err := s.employees.GetByEmployeeID(ctx, strings.TrimSpace(employeeID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Employee{}, apperr.NotFound("Employee not found")
		}
		return types.Employee{}, err
	}
	return employee, nil
}

// Profile returns the role-specific profile for an account.
func (s *AccountService) Profile(ctx context.Context, accountID string, role types.Role) (any, error) {
	var profile any
	var err error
	switch role {
	case types.RoleAdmin:
		profile, err = s.admins.GetByAccountID(ctx, accountID)
	case types.RoleEmployee:
		profile, err = s.employees.GetByAccountID(ctx, accountID)
	case types.RoleVisitor:
		profile, err = s.visitors.GetByAccountID(ctx, accountID)
	default:
		return nil, apperr.Validation("unknown role")
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(string(role) + " profile not found")
		}
		return nil, err
	}
	return profile, nil
}

// MarkEmailVerified flips the verification flag after a successful OTP.
func (s *AccountService) MarkEmailVerified(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("account not found")
		}
		return err
	}
	if account.IsEmailVerified {
		return apperr.Validation(account.Email + " is already verified")
	}
	account.IsEmailVerified = true
	_, err = s.accounts.Update(ctx, account)
	return err
}

// ResetPassword applies a new password after a successful reset OTP.
func (s *AccountService) ResetPassword(ctx context.Context, accountID, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("password is required")
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("account not found")
		}
		return err
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	account.PasswordHash = hashed
	_, err = s.accounts.Update(ctx, account)
	return err
}

func randomPassword() string {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
