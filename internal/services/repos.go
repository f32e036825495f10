package services

import (
	"context"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	Update(ctx context.Context, account types.Account) (types.Account, error)
	Delete(ctx context.Context, id string) error
}

// SessionRepository defines persistence operations for refresh sessions.
type SessionRepository interface {
	Upsert(ctx context.Context, session types.Session) (types.Session, error)
	GetByAccountAndUserAgent(ctx context.Context, accountID, userAgent string) (types.Session, error)
	ListByAccount(ctx context.Context, accountID string) ([]types.Session, error)
	DeleteByAccountAndUserAgent(ctx context.Context, accountID, userAgent string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

// AdminRepository defines persistence operations for admin profiles.
type AdminRepository interface {
	CreateWithSuperAdminCheck(ctx context.Context, admin types.Admin) (types.Admin, error)
	GetByAccountID(ctx context.Context, accountID string) (types.Admin, error)
	Delete(ctx context.Context, id string) error
}

// EmployeeRepository defines persistence operations for employee profiles.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (types.Employee, error)
	GetByEmployeeID(ctx context.Context, employeeID string) (types.Employee, error)
	GetByAccountID(ctx context.Context, accountID string) (types.Employee, error)
	Create(ctx context.Context, employee types.Employee) (types.Employee, error)
	ListPublic(ctx context.Context) ([]types.Employee, error)
	Delete(ctx context.Context, id string) error
}

// VisitorRepository defines persistence operations for visitor profiles.
type VisitorRepository interface {
	GetByID(ctx context.Context, id string) (types.Visitor, error)
	GetByAccountID(ctx context.Context, accountID string) (types.Visitor, error)
	Create(ctx context.Context, visitor types.Visitor) (types.Visitor, error)
	Delete(ctx context.Context, id string) error
}

// AttendanceRepository defines persistence operations for the attendance
// log.
type AttendanceRepository interface {
	ListRecent(ctx context.Context, actorType types.ActorType, actorID string, visitType types.VisitType, limit int) ([]types.AttendanceRecord, error)
	AppendDecided(ctx context.Context, record types.AttendanceRecord, decide func(last *types.AttendanceRecord) (types.ClockAction, error)) (types.AttendanceRecord, error)
	List(ctx context.Context, filter types.AttendanceFilter) ([]types.AttendanceRecord, error)
	DailySummary(ctx context.Context, day time.Time) ([]types.DailySummaryRow, error)
	TotalsForActor(ctx context.Context, actorType types.ActorType, actorID string, from, to time.Time) (types.ActionTotals, error)
}

// OTPRepository defines persistence operations for one-time codes.
type OTPRepository interface {
	TryReserve(ctx context.Context, accountID string, purpose types.OTPPurpose, window time.Duration) (bool, error)
	Put(ctx context.Context, otp types.OTP) error
	Get(ctx context.Context, accountID string, purpose types.OTPPurpose) (types.OTP, error)
	MarkUsed(ctx context.Context, otp types.OTP) error
}
