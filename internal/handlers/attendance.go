package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-hq/apiserver/internal/services"
	"github.com/gatehouse-hq/apiserver/types"
)

// AttendanceHandler serves the clock and reporting endpoints.
type AttendanceHandler struct {
	attendance *services.AttendanceService
	accounts   *services.AccountService
	reports    *services.ReportService
}

func NewAttendanceHandler(
	attendance *services.AttendanceService,
	accounts *services.AccountService,
	reports *services.ReportService,
) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, accounts: accounts, reports: reports}
}

// AttendanceRouter mounts the attendance subtree. Kiosk endpoints are
// public; the rest are role-gated through auth.
func AttendanceRouter(r chi.Router, handler *AttendanceHandler, auth *AuthHandler) {
	r.Route("/employee", func(r chi.Router) {
		r.Post("/kiosk-clock", handler.EmployeeKioskClock)
		r.Get("/public-status", handler.EmployeePublicStatus)
		r.With(auth.RequireRole(types.RoleEmployee)).Post("/clock", handler.EmployeeClock)
		r.With(auth.RequireRole(types.RoleEmployee)).Get("/status", handler.EmployeeStatus)
	})
	r.Route("/visitor", func(r chi.Router) {
		r.Post("/kiosk-clock", handler.VisitorKioskClock)
		r.With(auth.RequireRole(types.RoleVisitor)).Post("/clock", handler.VisitorClock)
		r.With(auth.RequireRole(types.RoleVisitor)).Get("/status", handler.VisitorStatus)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(types.RoleAdmin))
		r.Post("/visitor/force-clock-out", handler.ForceVisitorClockOut)
		r.Get("/records", handler.Records)
		r.Get("/summary/daily", handler.DailySummary)
		r.Get("/totals/employee/{employeeID}", handler.EmployeeTotals)
		r.Post("/export", handler.Export)
	})
}

type clockRequest struct {
	EmployeeID     string `json:"employeeId"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Action         string `json:"action"`
	VisitType      string `json:"visitType"`
	HostEmployeeID string `json:"hostEmployeeId"`
	ActorID        string `json:"actorId"`
}

var errInvalidFilter = errors.New("invalid filter")

// decodeClock tolerates an empty body: a bare POST is a valid toggle for
// the session clock endpoints.
func decodeClock(r *http.Request) (clockRequest, types.ClockAction, types.VisitType, bool) {
	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, "", "", false
	}
	action, ok := types.ParseClockAction(strings.TrimSpace(req.Action))
	if !ok {
		return req, "", "", false
	}
	visitType, ok := types.ParseVisitType(strings.TrimSpace(req.VisitType))
	if !ok {
		return req, "", "", false
	}
	return req, action, visitType, true
}

// EmployeeKioskClock toggles or clocks an employee by badge number. No
// session involved: the kiosk terminal is trusted hardware.
func (h *AttendanceHandler) EmployeeKioskClock(w http.ResponseWriter, r *http.Request) {
	req, action, _, ok := decodeClock(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	record, err := h.attendance.ClockEmployeeByBadge(r.Context(), req.EmployeeID, action)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// EmployeeClock clocks the signed-in employee.
func (h *AttendanceHandler) EmployeeClock(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok || principal.Employee == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	_, action, _, decoded := decodeClock(r)
	if !decoded {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	record, err := h.attendance.ClockEmployee(r.Context(), *principal.Employee, action)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// EmployeeStatus reports the signed-in employee's derived clock state.
func (h *AttendanceHandler) EmployeeStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok || principal.Employee == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status, err := h.attendance.Status(r.Context(), types.ActorEmployee, principal.Employee.ID, types.VisitRegular, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// EmployeePublicStatus is the kiosk read side: clock state by badge
// number, no session, no record details beyond the derived state.
func (h *AttendanceHandler) EmployeePublicStatus(w http.ResponseWriter, r *http.Request) {
	employeeID := strings.TrimSpace(r.URL.Query().Get("employeeId"))
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "employeeId is required")
		return
	}

	employee, err := h.accounts.EmployeeByBadge(r.Context(), employeeID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	status, err := h.attendance.Status(r.Context(), types.ActorEmployee, employee.ID, types.VisitRegular, 1)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"employeeId":         employee.EmployeeID,
		"fullName":           employee.FullName,
		"currentlyClockedIn": status.CurrentlyClockedIn,
		"lastInAt":           status.LastInAt,
	})
}

// VisitorClock clocks the signed-in visitor. Action is required; regular
// visits need a host employee.
func (h *AttendanceHandler) VisitorClock(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok || principal.Visitor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, action, visitType, decoded := decodeClock(r)
	if !decoded {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	record, err := h.attendance.ClockVisitor(r.Context(), *principal.Visitor, action, visitType, req.HostEmployeeID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// VisitorKioskClock provisions the visitor on first contact, then clocks.
func (h *AttendanceHandler) VisitorKioskClock(w http.ResponseWriter, r *http.Request) {
	req, action, visitType, decoded := decodeClock(r)
	if !decoded {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "email and name are required")
		return
	}

	visitor, _, err := h.accounts.EnsureKioskVisitor(r.Context(), req.Email, req.Name)
	if err != nil {
		writeAppError(w, err)
		return
	}

	record, err := h.attendance.ClockVisitor(r.Context(), visitor, action, visitType, req.HostEmployeeID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// VisitorStatus reports the signed-in visitor's derived state for one
// visit type.
func (h *AttendanceHandler) VisitorStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok || principal.Visitor == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	visitType, ok := types.ParseVisitType(strings.TrimSpace(r.URL.Query().Get("visitType")))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid visitType")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status, err := h.attendance.Status(r.Context(), types.ActorVisitor, principal.Visitor.ID, visitType, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ForceVisitorClockOut is the admin override for visitors who left
// without clocking out.
func (h *AttendanceHandler) ForceVisitorClockOut(w http.ResponseWriter, r *http.Request) {
	req, _, visitType, decoded := decodeClock(r)
	if !decoded {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	record, err := h.attendance.ForceVisitorClockOut(r.Context(), req.ActorID, req.Email, visitType)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func parseFilter(r *http.Request) (types.AttendanceFilter, error) {
	query := r.URL.Query()

	actorType, ok := types.ParseActorType(strings.TrimSpace(query.Get("actorType")))
	if !ok {
		return types.AttendanceFilter{}, errInvalidFilter
	}

	filter := types.AttendanceFilter{
		ActorType: actorType,
		ActorID:   strings.TrimSpace(query.Get("actorId")),
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return types.AttendanceFilter{}, errInvalidFilter
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return types.AttendanceFilter{}, errInvalidFilter
		}
		filter.To = to
	}
	return filter, nil
}

// Records returns filtered attendance records enriched with actor and
// host profiles.
func (h *AttendanceHandler) Records(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	records, err := h.attendance.AdminRecords(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// DailySummary returns per-(actorType, action) counts for one day.
// date defaults to today.
func (h *AttendanceHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	rows, err := h.attendance.DailySummary(r.Context(), day)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    day.Format("2006-01-02"),
		"summary": rows,
	})
}

// EmployeeTotals counts IN/OUT events for one employee over a range.
func (h *AttendanceHandler) EmployeeTotals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	totals, err := h.attendance.EmployeeTotals(r.Context(), chi.URLParam(r, "employeeID"), filter.From, filter.To)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// Export uploads the filtered records as a CSV object and returns its
// key.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	export, err := h.reports.ExportCSV(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, export)
}
