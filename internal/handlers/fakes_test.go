package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-hq/apiserver/internal/services"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/internal/token"
	"github.com/gatehouse-hq/apiserver/types"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]types.Account
	seq      int
}

func (r *memAccountRepo) GetByID(_ context.Context, id string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (r *memAccountRepo) GetByEmail(_ context.Context, email string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *memAccountRepo) Create(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return types.Account{}, store.ErrConflict
		}
	}
	r.seq++
	account.ID = fmt.Sprintf("acc-%d", r.seq)
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memAccountRepo) Update(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return types.Account{}, store.ErrNotFound
	}
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memAccountRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]types.Session
	seq      int
}

func (r *memSessionRepo) key(accountID, userAgent string) string {
	return accountID + "|" + userAgent
}

func (r *memSessionRepo) Upsert(_ context.Context, session types.Session) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.key(session.AccountID, session.UserAgent)
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

func (r *memSessionRepo) GetByAccountAndUserAgent(_ context.Context, accountID, userAgent string) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[r.key(accountID, userAgent)]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (r *memSessionRepo) ListByAccount(_ context.Context, accountID string) ([]types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Session
	for _, session := range r.sessions {
		if session.AccountID == accountID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (r *memSessionRepo) DeleteByAccountAndUserAgent(_ context.Context, accountID, userAgent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, r.key(accountID, userAgent))
	return nil
}

func (r *memSessionRepo) DeleteByAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, session := range r.sessions {
		if session.AccountID == accountID {
			delete(r.sessions, key)
		}
	}
	return nil
}

type memAdminRepo struct {
	mu     sync.Mutex
	admins map[string]types.Admin
	seq    int
}

func (r *memAdminRepo) CreateWithSuperAdminCheck(_ context.Context, admin types.Admin) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hasSuper := false
	for _, existing := range r.admins {
		if existing.IsSuperAdmin {
			hasSuper = true
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
	r.admins[admin.ID] = admin
	return admin, nil
}

func (r *memAdminRepo) GetByAccountID(_ context.Context, accountID string) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, admin := range r.admins {
		if admin.AccountID == accountID {
			return admin, nil
		}
	}
	return types.Admin{}, store.ErrNotFound
}

func (r *memAdminRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins, id)
	return nil
}

type memEmployeeRepo struct {
	mu        sync.Mutex
	employees map[string]types.Employee
	seq       int
}

func (r *memEmployeeRepo) GetByID(_ context.Context, id string) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	employee, ok := r.employees[id]
	if !ok {
		return types.Employee{}, store.ErrNotFound
	}
	return employee, nil
}

func (r *memEmployeeRepo) GetByEmployeeID(_ context.Context, employeeID string) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, employee := range r.employees {
		if employee.EmployeeID == employeeID {
			return employee, nil
		}
	}
	return types.Employee{}, store.ErrNotFound
}

func (r *memEmployeeRepo) GetByAccountID(_ context.Context, accountID string) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, employee := range r.employees {
		if employee.AccountID == accountID {
			return employee, nil
		}
	}
	return types.Employee{}, store.ErrNotFound
}

func (r *memEmployeeRepo) Create(_ context.Context, employee types.Employee) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.employees {
		if existing.EmployeeID == employee.EmployeeID {
			return types.Employee{}, store.ErrConflict
		}
	}
	r.seq++
	employee.ID = fmt.Sprintf("emp-%d", r.seq)
	r.employees[employee.ID] = employee
	return employee, nil
}

func (r *memEmployeeRepo) ListPublic(_ context.Context) ([]types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Employee, 0, len(r.employees))
	for _, employee := range r.employees {
		out = append(out, employee)
	}
	return out, nil
}

func (r *memEmployeeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.employees, id)
	return nil
}

type memVisitorRepo struct {
	mu       sync.Mutex
	visitors map[string]types.Visitor
	seq      int
}

func (r *memVisitorRepo) GetByID(_ context.Context, id string) (types.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	visitor, ok := r.visitors[id]
	if !ok {
		return types.Visitor{}, store.ErrNotFound
	}
	return visitor, nil
}

func (r *memVisitorRepo) GetByAccountID(_ context.Context, accountID string) (types.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, visitor := range r.visitors {
		if visitor.AccountID == accountID {
			return visitor, nil
		}
	}
	return types.Visitor{}, store.ErrNotFound
}

func (r *memVisitorRepo) Create(_ context.Context, visitor types.Visitor) (types.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	visitor.ID = fmt.Sprintf("vis-%d", r.seq)
	r.visitors[visitor.ID] = visitor
	return visitor, nil
}

func (r *memVisitorRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.visitors, id)
	return nil
}

type memAttendanceRepo struct {
	mu      sync.Mutex
	records []types.AttendanceRecord
	seq     int
}

func (r *memAttendanceRepo) AppendDecided(_ context.Context, record types.AttendanceRecord, decide func(last *types.AttendanceRecord) (types.ClockAction, error)) (types.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last *types.AttendanceRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		candidate := r.records[i]
		if candidate.ActorType == record.ActorType && candidate.ActorID == record.ActorID && candidate.VisitType == record.VisitType {
			last = &candidate
			break
		}
	}

	action, err := decide(last)
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

func (r *memAttendanceRepo) ListRecent(_ context.Context, actorType types.ActorType, actorID string, visitType types.VisitType, limit int) ([]types.AttendanceRecord, error) {
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

func (r *memAttendanceRepo) List(_ context.Context, filter types.AttendanceFilter) ([]types.AttendanceRecord, error) {
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
		out = append(out, record)
	}
	return out, nil
}

func (r *memAttendanceRepo) DailySummary(_ context.Context, day time.Time) ([]types.DailySummaryRow, error) {
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
	return out, nil
}

func (r *memAttendanceRepo) TotalsForActor(_ context.Context, actorType types.ActorType, actorID string, from, to time.Time) (types.ActionTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var totals types.ActionTotals
	for _, record := range r.records {
		if record.ActorType != actorType || record.ActorID != actorID {
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

// testEnv mounts the full route tree over in-memory repositories.
type testEnv struct {
	router     *chi.Mux
	accounts   *services.AccountService
	sessions   *services.SessionService
	auth       *services.AuthService
	tokens     *token.Manager
	sessionsDB *memSessionRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accountRepo := &memAccountRepo{accounts: map[string]types.Account{}}
	sessionRepo := &memSessionRepo{sessions: map[string]types.Session{}}
	adminRepo := &memAdminRepo{admins: map[string]types.Admin{}}
	employeeRepo := &memEmployeeRepo{employees: map[string]types.Employee{}}
	visitorRepo := &memVisitorRepo{visitors: map[string]types.Visitor{}}
	attendanceRepo := &memAttendanceRepo{}

	tokens := token.NewManager("test-secret", 15*time.Minute, 14*24*time.Hour)

	accountService := services.NewAccountService(accountRepo, adminRepo, employeeRepo, visitorRepo, sessionRepo, logger)
	sessionService := services.NewSessionService(sessionRepo, tokens)
	authService := services.NewAuthService(tokens, accountRepo, sessionService, adminRepo, employeeRepo, visitorRepo, logger)
	attendanceService := services.NewAttendanceService(attendanceRepo, employeeRepo, visitorRepo, accountRepo, nil, logger)
	reportService := services.NewReportService(attendanceRepo, nil, logger)

	authHandler := NewAuthHandler(accountService, sessionService, authService, false, 15*time.Minute, 14*24*time.Hour)
	attendanceHandler := NewAttendanceHandler(attendanceService, accountService, reportService)
	employeeHandler := NewEmployeeHandler(accountService)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/admins", func(r chi.Router) {
		RegisterRouter(r, authHandler, types.RoleAdmin)
	})
	router.Route("/employees", func(r chi.Router) {
		RegisterRouter(r, authHandler, types.RoleEmployee)
		EmployeeRouter(r, employeeHandler)
	})
	router.Route("/visitors", func(r chi.Router) {
		RegisterRouter(r, authHandler, types.RoleVisitor)
	})
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authHandler)
	})
	router.Route("/attendance", func(r chi.Router) {
		AttendanceRouter(r, attendanceHandler, authHandler)
	})

	return &testEnv{
		router:     router,
		accounts:   accountService,
		sessions:   sessionService,
		auth:       authService,
		tokens:     tokens,
		sessionsDB: sessionRepo,
	}
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, cookie := range rec.Result().Cookies() {
		out[cookie.Name] = cookie
	}
	return out
}

func registerEmployeeAccount(t *testing.T, env *testEnv) types.Employee {
	t.Helper()
	employee, err := env.accounts.RegisterEmployee(
		context.Background(),
		"grace@example.com", "secret123", "Grace Hopper", "EMP-001", "Eng", "Engineer",
	)
	require.NoError(t, err)
	return employee
}
