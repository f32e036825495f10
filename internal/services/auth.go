package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/internal/token"
	"github.com/gatehouse-hq/apiserver/types"
)

// Principal is the resolved identity: the account (password never
// populated), the roles carried by the session payload, and exactly one
// role profile.
type Principal struct {
	Account types.Account
	Roles   []types.Role

	Admin    *types.Admin
	Employee *types.Employee
	Visitor  *types.Visitor

	// RotatedAccess/RotatedRefresh are set when resolution fell back to
	// the refresh token and re-issued the pair. The caller must emit
	// both as cookies: a status check is a potentially mutating
	// operation by contract (sliding session).
	RotatedAccess  string
	RotatedRefresh string
}

// AuthService resolves raw cookie values into a Principal. Every failure
// it returns is an unauthorized outcome whose handler is expected to clear
// both auth cookies, so stale tokens never wedge a client.
type AuthService struct {
	tokens    *token.Manager
	accounts  AccountRepository
	sessions  *SessionService
	admins    AdminRepository
	employees EmployeeRepository
	visitors  VisitorRepository
	logger    *slog.Logger
}

func NewAuthService(
	tokens *token.Manager,
	accounts AccountRepository,
	sessions *SessionService,
	admins AdminRepository,
	employees EmployeeRepository,
	visitors VisitorRepository,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		tokens:    tokens,
		accounts:  accounts,
		sessions:  sessions,
		admins:    admins,
		employees: employees,
		visitors:  visitors,
		logger:    logger,
	}
}

// Resolve authenticates a request from its two token cookies.
//
// The access token is tried first and, when valid, trusted without an
// account round-trip. Otherwise the refresh token is verified, the account
// re-fetched (a deleted account must not authenticate on a still-valid
// signed token), and a fresh pair issued with the session row rotated.
func (s *AuthService) Resolve(ctx context.Context, accessRaw, refreshRaw, ip, userAgent string) (Principal, error) {
	if accessRaw == "" && refreshRaw == "" {
		return Principal{}, apperr.Unauthorized("authentication tokens required")
	}

	var principal Principal
	var payload token.Payload
	resolved := false

	if accessRaw != "" {
		if p, err := s.tokens.Verify(accessRaw, token.KindAccess); err == nil {
			payload = p
			principal.Account = types.Account{
				ID:    p.AccountID,
				Email: p.Email,
				Roles: p.Roles,
			}
			resolved = true
		}
	}

	if !resolved && refreshRaw != "" {
		p, err := s.tokens.Verify(refreshRaw, token.KindRefresh)
		if err != nil {
			return Principal{}, apperr.Unauthorized("session cleared due to invalid credentials")
		}

		account, err := s.accounts.GetByID(ctx, p.AccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Principal{}, apperr.Unauthorized("invalid session client")
			}
			return Principal{}, err
		}

		access, refresh, err := s.sessions.Issue(ctx, account, ip, userAgent)
		if err != nil {
			return Principal{}, err
		}

		payload = token.Payload{AccountID: account.ID, Email: account.Email, Roles: account.Roles}
		account.PasswordHash = ""
		principal.Account = account
		principal.RotatedAccess = access
		principal.RotatedRefresh = refresh
		resolved = true
	}

	if !resolved {
		return Principal{}, apperr.Unauthorized("invalid authentication tokens")
	}

	principal.Roles = payload.Roles
	if err := s.attachProfile(ctx, &principal, payload); err != nil {
		return Principal{}, err
	}
	return principal, nil
}

// attachProfile resolves the role profile matching the payload's roles.
// An account whose profile row was deleted must not silently authenticate
// as a bare account.
func (s *AuthService) attachProfile(ctx context.Context, principal *Principal, payload token.Payload) error {
	notFound := func(err error) error {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthorized("session profile not found")
		}
		return err
	}

	switch {
	case types.HasRole(payload.Roles, types.RoleAdmin):
		admin, err := s.admins.GetByAccountID(ctx, payload.AccountID)
		if err != nil {
			return notFound(err)
		}
		principal.Admin = &admin
	case types.HasRole(payload.Roles, types.RoleEmployee):
		employee, err := s.employees.GetByAccountID(ctx, payload.AccountID)
		if err != nil {
			return notFound(err)
		}
		principal.Employee = &employee
	case types.HasRole(payload.Roles, types.RoleVisitor):
		visitor, err := s.visitors.GetByAccountID(ctx, payload.AccountID)
		if err != nil {
			return notFound(err)
		}
		principal.Visitor = &visitor
	default:
		return apperr.Unauthorized("session profile not found")
	}
	return nil
}

// Authorize wraps Resolve with a required-role check. Role mismatch is a
// forbidden outcome, distinct from authentication failure.
func (s *AuthService) Authorize(ctx context.Context, accessRaw, refreshRaw, ip, userAgent string, required types.Role) (Principal, error) {
	principal, err := s.Resolve(ctx, accessRaw, refreshRaw, ip, userAgent)
	if err != nil {
		return Principal{}, err
	}
	if !types.HasRole(principal.Roles, required) {
		return Principal{}, apperr.Forbidden("access denied: " + string(required) + " role required")
	}
	return principal, nil
}
