package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gatehouse-hq/apiserver/internal/mq"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]types.Account
	seq      int
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[string]types.Account{}}
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (r *fakeAccountRepo) GetByEmail(_ context.Context, email string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *fakeAccountRepo) Create(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return types.Account{}, store.ErrConflict
		}
	}
	r.seq++
	account.ID = fmt.Sprintf("acc-%d", r.seq)
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = account
	return account, nil
}

func (r *fakeAccountRepo) Update(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return types.Account{}, store.ErrNotFound
	}
	account.UpdatedAt = time.Now()
	r.accounts[account.ID] = account
	return account, nil
}

func (r *fakeAccountRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]types.Session
	seq      int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]types.Session{}}
}

func sessionKey(accountID, userAgent string) string {
	return accountID + "|" + userAgent
}

func (r *fakeSessionRepo) Upsert(_ context.Context, session types.Session) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionKey(session.AccountID, session.UserAgent)
	if existing, ok := r.sessions[key]; ok {
		session.ID = existing.ID
	} else {
		r.seq++
		session.ID = fmt.Sprintf("sess-%d", r.seq)
	}
	session.LastAccessed = time.Now()
	r.sessions[key] = session
	return session, nil
}

func (r *fakeSessionRepo) GetByAccountAndUserAgent(_ context.Context, accountID, userAgent string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionKey(accountID, userAgent)]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (r *fakeSessionRepo) ListByAccount(_ context.Context, accountID string) ([]types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Session
	for _, session := range r.sessions {
		if session.AccountID == accountID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSessionRepo) DeleteByAccountAndUserAgent(_ context.Context, accountID, userAgent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey(accountID, userAgent))
	return nil
}

func (r *fakeSessionRepo) DeleteByAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, session := range r.sessions {
		if session.AccountID == accountID {
			delete(r.sessions, key)
		}
	}
	return nil
}

type fakeAdminRepo struct {
	mu     sync.Mutex
	admins map[string]types.Admin
	seq    int
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{admins: map[string]types.Admin{}}
}

func (r *fakeAdminRepo) CreateWithSuperAdminCheck(_ context.Context, admin types.Admin) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hasSuper := false
	for _, existing := range r.admins {
		if existing.IsSuperAdmin {
			hasSuper = true
			break
		}
	}
	if !hasSuper {
		admin.IsSuperAdmin = true
		admin.AdminTitle = "SUPER ADMIN"
		admin.Permissions = []types.AdminPermission{types.PermissionAll}
	} else if len(admin.Permissions) == 0 {
		admin.Permissions = []types.AdminPermission{types.PermissionRead}
	}

	r.seq++
	admin.ID = fmt.Sprintf("adm-%d", r.seq)
	admin.CreatedAt = time.Now()
	r.admins[admin.ID] = admin
	return admin, nil
}

func (r *fakeAdminRepo) GetByAccountID(_ context.Context, accountID string) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, admin := range r.admins {
		if admin.AccountID == accountID {
			return admin, nil
		}
	}
	return types.Admin{}, store.ErrNotFound
}

func (r *fakeAdminRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins, id)
	return nil
}

type fakeEmployeeRepo struct {
	mu        sync.Mutex
	employees map[string]types.Employee
	seq       int
}

func newFakeEmployeeRepo() *fakeEmployeeRepo {
	return &fakeEmployeeRepo{employees: map[string]types.Employee{}}
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id string) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	employee, ok := r.employees[id]
	if !ok {
		return types.Employee{}, store.ErrNotFound
	}
	return employee, nil
}

func (r *fakeEmployeeRepo) GetByEmployeeID(_ context.Context, employeeID string) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, employee := range r.employees {
		if employee.EmployeeID == employeeID {
			return employee, nil
		}
	}
	return types.Employee{}, store.ErrNotFound
}

func (r *fakeEmployeeRepo) GetByAccountID(_ context.Context, accountID string) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, employee := range r.employees {
		if employee.AccountID == accountID {
			return employee, nil
		}
	}
	return types.Employee{}, store.ErrNotFound
}

func (r *fakeEmployeeRepo) Create(_ context.Context, employee types.Employee) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.employees {
		if existing.EmployeeID == employee.EmployeeID {
			return types.Employee{}, store.ErrConflict
		}
	}
	r.seq++
	employee.ID = fmt.Sprintf("emp-%d", r.seq)
	employee.CreatedAt = time.Now()
	r.employees[employee.ID] = employee
	return employee, nil
}

func (r *fakeEmployeeRepo) ListPublic(_ context.Context) ([]types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Employee, 0, len(r.employees))
	for _, employee := range r.employees {
		out = append(out, employee)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEmployeeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.employees, id)
	return nil
}

type fakeVisitorRepo struct {
	mu       sync.Mutex
	visitors map[string]types.Visitor
	seq      int
}

func newFakeVisitorRepo() *fakeVisitorRepo {
	return &fakeVisitorRepo{visitors: map[string]types.Visitor{}}
}

func (r *fakeVisitorRepo) GetByID(_ context.Context, id string) (types.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	visitor, ok := r.visitors[id]
	if !ok {
		return types.Visitor{}, store.ErrNotFound
	}
	return visitor, nil
}

func (r *fakeVisitorRepo) GetByAccountID(_ context.Context, accountID string) (types.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, visitor := range r.visitors {
		if visitor.AccountID == accountID {
			return visitor, nil
		}
	}
	return types.Visitor{}, store.ErrNotFound
}

func (r *fakeVisitorRepo) Create(_ context.Context, visitor types.Visitor) (types.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	visitor.ID = fmt.Sprintf("vis-%d", r.seq)
	visitor.CreatedAt = time.Now()
	r.visitors[visitor.ID] = visitor
	return visitor, nil
}

func (r *fakeVisitorRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.visitors, id)
	return nil
}

type fakeAttendanceRepo struct {
	mu      sync.Mutex
	records []types.AttendanceRecord
	seq     int
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{}
}

func (r *fakeAttendanceRepo) latest(actorType types.ActorType, actorID string, visitType types.VisitType) *types.AttendanceRecord {
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if record.ActorType == actorType && record.ActorID == actorID && record.VisitType == visitType {
			return &record
		}
	}
	return nil
}

func (r *fakeAttendanceRepo) AppendDecided(_ context.Context, record types.AttendanceRecord, decide func(last *types.AttendanceRecord) (types.ClockAction, error)) (types.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	action, err := decide(r.latest(record.ActorType, record.ActorID, record.VisitType))
	if err != nil {
		return types.AttendanceRecord{}, err
	}

	r.seq++
	record.ID = fmt.Sprintf("att-%d", r.seq)
	record.Action = action
	record.RecordedAt = time.Now()
	r.records = append(r.records, record)
	return record, nil
}

func (r *fakeAttendanceRepo) ListRecent(_ context.Context, actorType types.ActorType, actorID string, visitType types.VisitType, limit int) ([]types.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.AttendanceRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		record := r.records[i]
		if record.ActorType == actorType && record.ActorID == actorID && record.VisitType == visitType {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) List(_ context.Context, filter types.AttendanceFilter) ([]types.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.AttendanceRecord
	for _, record := range r.records {
		if filter.ActorType != "" && record.ActorType != filter.ActorType {
			continue
		}
		if filter.ActorID != "" && record.ActorID != filter.ActorID {
			continue
		}
		if !filter.From.IsZero() && record.RecordedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && record.RecordedAt.After(filter.To) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (r *fakeAttendanceRepo) DailySummary(_ context.Context, day time.Time) ([]types.DailySummaryRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[string]*types.DailySummaryRow{}
	for _, record := range r.records {
		if record.RecordedAt.Format("2006-01-02") != day.Format("2006-01-02") {
			continue
		}
		key := string(record.ActorType) + "|" + string(record.Action)
		if counts[key] == nil {
			counts[key] = &types.DailySummaryRow{ActorType: record.ActorType, Action: record.Action}
		}
		counts[key].Count++
	}

	var out []types.DailySummaryRow
	for _, row := range counts {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActorType != out[j].ActorType {
			return out[i].ActorType < out[j].ActorType
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (r *fakeAttendanceRepo) TotalsForActor(_ context.Context, actorType types.ActorType, actorID string, from, to time.Time) (types.ActionTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var totals types.ActionTotals
	for _, record := range r.records {
		if record.ActorType != actorType || record.ActorID != actorID {
			continue
		}
		if !from.IsZero() && record.RecordedAt.Before(from) {
			continue
		}
		if !to.IsZero() && record.RecordedAt.After(to) {
			continue
		}
		switch record.Action {
		case types.ActionIn:
			totals.In++
		case types.ActionOut:
			totals.Out++
		}
	}
	return totals, nil
}

type fakeOTPRepo struct {
	mu       sync.Mutex
	codes    map[string]types.OTP
	reserved map[string]bool
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{codes: map[string]types.OTP{}, reserved: map[string]bool{}}
}

func otpKey(accountID string, purpose types.OTPPurpose) string {
	return accountID + "|" + string(purpose)
}

func (r *fakeOTPRepo) TryReserve(_ context.Context, accountID string, purpose types.OTPPurpose, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := otpKey(accountID, purpose)
	if r.reserved[key] {
		return false, nil
	}
	r.reserved[key] = true
	return true, nil
}

func (r *fakeOTPRepo) resetWindow(accountID string, purpose types.OTPPurpose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, otpKey(accountID, purpose))
}

func (r *fakeOTPRepo) Put(_ context.Context, otp types.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[otpKey(otp.AccountID, otp.Purpose)] = otp
	return nil
}

func (r *fakeOTPRepo) Get(_ context.Context, accountID string, purpose types.OTPPurpose) (types.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.codes[otpKey(accountID, purpose)]
	if !ok {
		return types.OTP{}, store.ErrNotFound
	}
	return otp, nil
}

func (r *fakeOTPRepo) MarkUsed(_ context.Context, otp types.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp.Used = true
	r.codes[otpKey(otp.AccountID, otp.Purpose)] = otp
	return nil
}

type capturedBus struct {
	mu     sync.Mutex
	mail   []mq.MailJob
	clocks []mq.ClockEvent
}

func (b *capturedBus) PublishMailJob(_ context.Context, job mq.MailJob) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mail = append(b.mail, job)
	return fmt.Sprintf("mail-%d", len(b.mail)), nil
}

func (b *capturedBus) PublishClockEvent(_ context.Context, event mq.ClockEvent) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clocks = append(b.clocks, event)
	return fmt.Sprintf("clock-%d", len(b.clocks)), nil
}
